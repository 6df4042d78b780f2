package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ariana-dev/ariana-cli/internal/prepare"
)

// runRestore implements `--restore`: it invokes the archive-driven
// restorer against the current project's backup, independent of whether a
// Collected Items snapshot from the run that made it still exists.
func (prog *program) runRestore(_ context.Context) error {
	projectRoot, err := prog.workingDirAbs()
	if err != nil {
		return err
	}

	arianaDir := filepath.Join(projectRoot, arianaDirName)

	if err := prepare.Restore(prog.fsys, arianaDir); err != nil {
		return fmt.Errorf("failed to restore from backup: %w", err)
	}

	prog.log.Info("restored original files from backup", "archive", prepare.BackupArchivePath(arianaDir))

	return nil
}
