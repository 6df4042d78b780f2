package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ariana-dev/ariana-cli/internal/vault"
)

// runRecap implements `--recap`: it reads back the last run's persisted
// vault key and prints the service's textual trace-tree summary.
func (prog *program) runRecap(ctx context.Context) error {
	projectRoot, err := prog.workingDirAbs()
	if err != nil {
		return err
	}

	arianaDir := filepath.Join(projectRoot, arianaDirName)

	secretKey, err := vault.ReadSecretKey(prog.fsys, arianaDir)
	if err != nil {
		return fmt.Errorf("failed to read vault key: %w", err)
	}

	machineHash, err := vault.MachineHash(ctx, prog.fsys, prog.homeDir)
	if err != nil {
		return fmt.Errorf("failed to derive machine hash: %w", err)
	}

	client := vault.NewClient(prog.opts.APIURL, machineHash)

	answer, err := client.Recap(ctx, secretKey)
	if err != nil {
		return fmt.Errorf("failed to fetch recap: %w", err)
	}

	fmt.Fprintln(prog.stdout, answer)

	return nil
}
