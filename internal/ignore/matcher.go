// Package ignore composes a project's .gitignore chain with an optional
// .arianaignore into a single matcher, extended one directory at a time as
// the project walk descends.
package ignore

import (
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
)

const arianaIgnoreName = ".arianaignore"

type layer struct {
	root string
	ign  *gitignore.GitIgnore
}

// Matcher is an immutable, appendable chain of per-directory ignore files.
// Extending a Matcher never mutates the receiver; callers that descend into
// a subdirectory should hold onto the extended copy for that subtree only,
// so sibling subtrees never see each other's deeper ignore rules.
type Matcher struct {
	layers []layer
}

// New returns an empty Matcher that ignores nothing.
func New() *Matcher {
	return &Matcher{}
}

// Extend reads dir/.gitignore and dir/.arianaignore (if present) and
// returns a new Matcher with those rules appended on top of the receiver's.
func (m *Matcher) Extend(fsys afero.Fs, dir string) (*Matcher, error) {
	next := &Matcher{layers: append([]layer(nil), m.layers...)}

	for _, name := range []string{".gitignore", arianaIgnoreName} {
		path := filepath.Join(dir, name)

		lines, err := readLines(fsys, path)
		if err != nil {
			continue // absent or unreadable; not an error for the walk
		}
		if len(lines) == 0 {
			continue
		}

		ign := gitignore.CompileIgnoreLines(lines...)
		next.layers = append(next.layers, layer{root: dir, ign: ign})
	}

	return next, nil
}

// Match reports whether path is ignored by any layer in the chain, relative
// to that layer's own root. Later-added (deeper) layers are consulted last.
func (m *Matcher) Match(path string) bool {
	ignored := false

	for _, l := range m.layers {
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			continue
		}
		if l.ign.MatchesPath(rel) {
			ignored = true
		}
	}

	return ignored
}

func readLines(fsys afero.Fs, path string) ([]string, error) {
	exists, err := afero.Exists(fsys, path)
	if err != nil || !exists {
		return nil, err
	}

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}

	return splitLines(string(data)), nil
}

func splitLines(s string) []string {
	var lines []string

	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}

	return lines
}
