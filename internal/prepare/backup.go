package prepare

import (
	"archive/zip"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/spf13/afero"
)

const backupArchiveName = "__ariana_backups.zip"

// Backup is a mutex-protected ZIP archive that captures the pre-instrument
// content of every source file rewritten in place, keyed by its absolute
// path, so an in-place run can be undone exactly.
type Backup struct {
	mu   sync.Mutex
	file afero.File
	zw   *zip.Writer
}

// OpenBackup creates (or truncates) the backup archive under arianaDir.
func OpenBackup(fsys afero.Fs, arianaDir string) (*Backup, error) {
	if err := fsys.MkdirAll(arianaDir, mirrorDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create ariana dir: %q (%w)", arianaDir, err)
	}

	path := BackupArchivePath(arianaDir)

	f, err := fsys.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create backup archive: %q (%w)", path, err)
	}

	zw := zip.NewWriter(f)
	// Registering a faster deflate implementation benefits every entry
	// written through this archive's zip.Writer.
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.DefaultCompression)
	})

	return &Backup{file: f, zw: zw}, nil
}

// BackupArchivePath returns the conventional location of the backup archive
// inside arianaDir.
func BackupArchivePath(arianaDir string) string {
	return filepath.Join(arianaDir, backupArchiveName)
}

// Add writes content under the archive entry named by the absolute source
// path, so restoration can recreate it without consulting the walk output.
func (b *Backup) Add(absPath string, content []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	w, err := b.zw.Create(absPath)
	if err != nil {
		return fmt.Errorf("failed to add backup entry: %q (%w)", absPath, err)
	}

	if _, err := w.Write(content); err != nil {
		return fmt.Errorf("failed to write backup entry: %q (%w)", absPath, err)
	}

	return nil
}

// Close flushes the central directory and closes the underlying file.
func (b *Backup) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize backup archive: %w", err)
	}

	if err := b.file.Close(); err != nil {
		return fmt.Errorf("failed to close backup archive: %w", err)
	}

	return nil
}
