// Package config persists the small amount of local CLI state that
// survives between runs: the authenticated session's JWT. Everything else
// about a run (vault key, backup archive) lives under the project's
// .ariana directory instead, handled by package vault and package prepare.
package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

const configFileName = "config.json"

// File is the flat JSON document stored at the CLI config path.
type File struct {
	JWT string `json:"jwt"`
}

// Path returns the conventional config file location under configDir
// (typically the user's XDG config home, joined with "ariana").
func Path(configDir string) string {
	return filepath.Join(configDir, "ariana", configFileName)
}

// Load reads the config file, returning a zero-value File if it does not
// exist yet.
func Load(fsys afero.Fs, configDir string) (File, error) {
	path := Path(configDir)

	exists, err := afero.Exists(fsys, path)
	if err != nil {
		return File{}, fmt.Errorf("failed to stat config file: %q (%w)", path, err)
	}
	if !exists {
		return File{}, nil
	}

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read config file: %q (%w)", path, err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("failed to parse config file: %q (%w)", path, err)
	}

	return f, nil
}

// Save writes f to the config file, creating its parent directory if
// needed.
func Save(fsys afero.Fs, configDir string, f File) error {
	path := Path(configDir)

	if err := fsys.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %q (%w)", filepath.Dir(path), err)
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := afero.WriteFile(fsys, path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %q (%w)", path, err)
	}

	return nil
}
