package prepare

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

var gitignoreEntries = []string{".ariana/", ".traces/"}

// AmendGitignore appends this tool's working directories to
// projectRoot/.gitignore, creating the file if absent, skipping entries
// already present. It is idempotent: running it again on an already-amended
// file is a no-op.
func AmendGitignore(fsys afero.Fs, projectRoot string) error {
	path := filepath.Join(projectRoot, ".gitignore")

	existing := ""

	present, err := afero.Exists(fsys, path)
	if err != nil {
		return fmt.Errorf("failed to stat: %q (%w)", path, err)
	}
	if present {
		data, err := afero.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("failed to read: %q (%w)", path, err)
		}
		existing = string(data)
	}

	lines := strings.Split(existing, "\n")
	have := make(map[string]bool, len(lines))
	for _, l := range lines {
		have[strings.TrimSpace(l)] = true
	}

	var toAdd []string
	for _, entry := range gitignoreEntries {
		if !have[entry] {
			toAdd = append(toAdd, entry)
		}
	}
	if len(toAdd) == 0 {
		return nil
	}

	updated := existing
	if updated != "" && !strings.HasSuffix(updated, "\n") {
		updated += "\n"
	}
	updated += strings.Join(toAdd, "\n") + "\n"

	if err := afero.WriteFile(fsys, path, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("failed to write: %q (%w)", path, err)
	}

	return nil
}
