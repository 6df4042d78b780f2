package prepare

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
)

// Restore reverses an in-place run by reading every entry out of the backup
// archive under arianaDir and writing it back to the path stored as its
// key. This is the preferred restore path (component H, archive-driven):
// it needs no Collected Items snapshot, so it also backs `--restore` when
// invoked as a standalone command against a prior run's .ariana directory.
func Restore(fsys afero.Fs, arianaDir string) error {
	path := BackupArchivePath(arianaDir)

	exists, err := afero.Exists(fsys, path)
	if err != nil {
		return fmt.Errorf("failed to stat backup archive: %q (%w)", path, err)
	}
	if !exists {
		return fmt.Errorf("%w: %q", errBackupNotFound, path)
	}

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return fmt.Errorf("failed to read backup archive: %q (%w)", path, err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("failed to open backup archive: %q (%w)", path, err)
	}

	for _, entry := range zr.File {
		if err := restoreEntry(fsys, entry); err != nil {
			return err
		}
	}

	return nil
}

// RestoreItems is the items-driven fallback: it restores only the sources
// named by items.FilesToInstrument, looking each one up by its absolute
// path inside the backup archive. Used when a Collected Items snapshot from
// the run is still available and a narrower restore is wanted.
func RestoreItems(fsys afero.Fs, arianaDir string, items CollectedItems) error {
	path := BackupArchivePath(arianaDir)

	exists, err := afero.Exists(fsys, path)
	if err != nil {
		return fmt.Errorf("failed to stat backup archive: %q (%w)", path, err)
	}
	if !exists {
		return fmt.Errorf("%w: %q", errBackupNotFound, path)
	}

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return fmt.Errorf("failed to read backup archive: %q (%w)", path, err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("failed to open backup archive: %q (%w)", path, err)
	}

	byName := make(map[string]*zip.File, len(zr.File))
	for _, entry := range zr.File {
		byName[entry.Name] = entry
	}

	for _, pair := range items.FilesToInstrument {
		entry, ok := byName[pair.Src]
		if !ok {
			return fmt.Errorf("%w: %q", errBackupEntryMissing, pair.Src)
		}

		if err := restoreEntry(fsys, entry); err != nil {
			return err
		}
	}

	return nil
}

func restoreEntry(fsys afero.Fs, entry *zip.File) error {
	// Archive keys are absolute source paths written with filepath.Join,
	// so they are already native to the platform that wrote them; restoring
	// on a different platform is not a supported path.
	dest := filepath.Clean(entry.Name)

	if err := fsys.MkdirAll(filepath.Dir(dest), mirrorDirPerm); err != nil {
		return fmt.Errorf("failed to create parent: %q (%w)", filepath.Dir(dest), err)
	}

	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("failed to open backup entry: %q (%w)", entry.Name, err)
	}
	defer rc.Close()

	out, err := fsys.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create: %q (%w)", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("failed to restore: %q (%w)", dest, err)
	}

	return nil
}

// RemoveMirror deletes the mirror workspace wholesale, the trivial restore
// path for non-in-place runs where originals were never touched.
func RemoveMirror(fsys afero.Fs, arianaDir string) error {
	if err := fsys.RemoveAll(arianaDir); err != nil {
		return fmt.Errorf("failed to remove mirror: %q (%w)", arianaDir, err)
	}

	return nil
}
