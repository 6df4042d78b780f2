package vault

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const secretFileName = ".vault_secret_key"

const secretFileWarning = "# do not share this file: it grants access to this run's traces and output\n"

// SecretFilePath returns the conventional location of the persisted vault
// key inside arianaDir.
func SecretFilePath(arianaDir string) string {
	return filepath.Join(arianaDir, secretFileName)
}

// PersistSecretKey writes key to arianaDir/.vault_secret_key, preceded by a
// warning line, so a later `--recap` invocation can recover it.
func PersistSecretKey(fsys afero.Fs, arianaDir, key string) error {
	if err := fsys.MkdirAll(arianaDir, 0o777); err != nil {
		return fmt.Errorf("failed to create: %q (%w)", arianaDir, err)
	}

	content := secretFileWarning + key + "\n"

	if err := afero.WriteFile(fsys, SecretFilePath(arianaDir), []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write: %q (%w)", SecretFilePath(arianaDir), err)
	}

	return nil
}

// ReadSecretKey reads back the vault key persisted by PersistSecretKey.
func ReadSecretKey(fsys afero.Fs, arianaDir string) (string, error) {
	data, err := afero.ReadFile(fsys, SecretFilePath(arianaDir))
	if err != nil {
		return "", fmt.Errorf("failed to read: %q (%w)", SecretFilePath(arianaDir), err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			return line, nil
		}
	}

	return "", fmt.Errorf("%w: %q", errEmptySecretFile, SecretFilePath(arianaDir))
}
