package prepare

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/ariana-dev/ariana-cli/internal/classify"
	ctxio "github.com/ariana-dev/ariana-cli/internal/ioutil"
)

const mirrorDirPerm = 0o777

// ProbeSymlinkSupport attempts to create and immediately remove a throwaway
// symlink, reporting whether the filesystem (and host OS) permits it. On
// Windows this can fail without elevated privileges; callers should log a
// single advisory and proceed with copies, which remain correct either way.
func ProbeSymlinkSupport(fsys afero.Fs) bool {
	linker, ok := fsys.(afero.Linker)
	if !ok {
		return false
	}

	dir := os.TempDir()
	src := filepath.Join(dir, ".ariana-symlink-probe-src")
	dest := filepath.Join(dir, ".ariana-symlink-probe-dest")

	if err := afero.WriteFile(fsys, src, []byte("probe"), 0o644); err != nil {
		return false
	}
	defer fsys.Remove(src) //nolint:errcheck

	err := linker.SymlinkIfPossible(src, dest)
	defer fsys.Remove(dest) //nolint:errcheck

	return err == nil
}

// MaterializeAll mirrors every dirs-to-link-or-copy and files-to-link-or-copy
// entry into the destination tree. Failures are collected and returned
// rather than aborting the batch, mirroring the preparer's per-file error
// policy (§7: "File I/O failure during walk/write: log, continue").
func MaterializeAll(ctx context.Context, fsys afero.Fs, log *slog.Logger, items CollectedItems, symlinkOK bool) []error {
	var failures []error

	for _, pair := range items.DirsToLinkOrCopy {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)

			return failures
		}

		if err := linkOrCopy(ctx, fsys, log, pair.Src, pair.Dest, true, symlinkOK); err != nil {
			log.Error("failed to mirror directory", "src", pair.Src, "dest", pair.Dest, "error", err, "error-type", "runtime")
			failures = append(failures, err)
		}
	}

	for _, pair := range items.FilesToLinkOrCopy {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)

			return failures
		}

		if err := linkOrCopy(ctx, fsys, log, pair.Src, pair.Dest, false, symlinkOK); err != nil {
			log.Error("failed to mirror file", "src", pair.Src, "dest", pair.Dest, "error", err, "error-type", "runtime")
			failures = append(failures, err)
		}
	}

	return failures
}

func linkOrCopy(ctx context.Context, fsys afero.Fs, log *slog.Logger, src, dest string, isDir bool, symlinkOK bool) error {
	if err := fsys.MkdirAll(filepath.Dir(dest), mirrorDirPerm); err != nil {
		return fmt.Errorf("failed to create parent: %q (%w)", filepath.Dir(dest), err)
	}

	if !isDir && classify.MustCopyNotLink(src) {
		return copyFile(ctx, fsys, src, dest)
	}

	if symlinkOK {
		if linker, ok := fsys.(afero.Linker); ok {
			if err := linker.SymlinkIfPossible(src, dest); err == nil {
				return nil
			}

			log.Debug("symlink failed, falling back to copy", "src", src, "dest", dest)
		}
	}

	if isDir {
		return copyDir(ctx, fsys, src, dest)
	}

	return copyFile(ctx, fsys, src, dest)
}

func copyFile(ctx context.Context, fsys afero.Fs, src, dest string) error {
	in, err := fsys.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open: %q (%w)", src, err)
	}
	defer in.Close()

	out, err := fsys.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create: %q (%w)", dest, err)
	}
	defer out.Close()

	reader := &ctxio.ContextReader{Ctx: ctx, Reader: in}

	if _, err := io.Copy(out, reader); err != nil {
		return fmt.Errorf("failed to copy: %q -> %q (%w)", src, dest, err)
	}

	return nil
}

func copyDir(ctx context.Context, fsys afero.Fs, src, dest string) error {
	return afero.Walk(fsys, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("failed to walk: %q (%w)", path, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path: %q (%w)", path, err)
		}
		target := filepath.Join(dest, rel)

		if info.IsDir() {
			return fsys.MkdirAll(target, mirrorDirPerm) //nolint:wrapcheck
		}

		return copyFile(ctx, fsys, path, target)
	})
}
