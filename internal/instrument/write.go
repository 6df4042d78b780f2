package instrument

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/ariana-dev/ariana-cli/internal/prepare"
)

const mirrorDirPerm = 0o777

// WriteResults applies the server's instrumented_contents back to disk. In
// in-place mode the original bytes are appended to the backup archive before
// the source is overwritten; in mirror mode the (possibly instrumented)
// content is written to dest instead, leaving the original untouched.
//
// A per-file write failure is logged and skipped rather than aborting the
// batch (spec §7: "File I/O failure during walk/write" is per-file
// locality — log, continue, surface a count). The returned slice collects
// those failures for the caller to log a summary; a missing backup archive
// for an in-place write is the one non-per-file condition here (it would
// recur identically for every remaining file), so it still short-circuits
// the batch.
func WriteResults(fsys afero.Fs, log *slog.Logger, backup *prepare.Backup, inPlace bool, files []prepare.PathPair, originals map[string][]byte, instrumented map[string]*string) []error {
	var failures []error

	for _, pair := range files {
		original, ok := originals[pair.Src]
		if !ok {
			// Already logged and skipped by ReadOriginals; nothing to write back.
			continue
		}

		content := original
		if inst := instrumented[pair.Src]; inst != nil {
			content = []byte(*inst)
		}

		if inPlace {
			if backup == nil {
				return append(failures, fmt.Errorf("%w: %q", errNoBackupForInPlaceWrite, pair.Src))
			}

			if err := backup.Add(pair.Src, original); err != nil {
				log.Error("failed to back up before overwrite", "src", pair.Src, "error", err, "error-type", "runtime")
				failures = append(failures, err)

				continue
			}

			if err := afero.WriteFile(fsys, pair.Src, content, 0o644); err != nil {
				log.Error("failed to overwrite in place", "src", pair.Src, "error", err, "error-type", "runtime")
				failures = append(failures, err)
			}

			continue
		}

		if err := fsys.MkdirAll(filepath.Dir(pair.Dest), mirrorDirPerm); err != nil {
			log.Error("failed to create parent", "dest", pair.Dest, "error", err, "error-type", "runtime")
			failures = append(failures, err)

			continue
		}

		if err := afero.WriteFile(fsys, pair.Dest, content, 0o644); err != nil {
			log.Error("failed to write mirror", "dest", pair.Dest, "error", err, "error-type", "runtime")
			failures = append(failures, err)
		}
	}

	return failures
}

// ReadOriginals reads the pre-transform content of every instrument
// candidate, which both the server request body and the backup/restore
// path need.
//
// A file that fails to read (permission denied, removed mid-walk, ...) is
// logged and omitted from the result rather than aborting the whole read,
// per spec §7's per-file I/O failure policy; the returned slice collects
// those failures so the caller can surface a count. Context cancellation is
// not a per-file condition and still stops the loop immediately.
func ReadOriginals(ctx context.Context, fsys afero.Fs, log *slog.Logger, files []prepare.PathPair) (map[string][]byte, []error) {
	originals := make(map[string][]byte, len(files))
	var failures []error

	for _, pair := range files {
		if err := ctx.Err(); err != nil {
			return originals, append(failures, err)
		}

		content, err := afero.ReadFile(fsys, pair.Src)
		if err != nil {
			log.Error("failed to read source file", "src", pair.Src, "error", err, "error-type", "runtime")
			failures = append(failures, err)

			continue
		}

		originals[pair.Src] = content
	}

	return originals, failures
}
