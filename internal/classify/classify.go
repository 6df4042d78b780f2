// Package classify holds the pure predicates that decide, per directory
// entry, whether it should be explored, mirrored as a leaf directory,
// instrumented, or copied verbatim.
package classify

import (
	"path/filepath"
	"strings"
)

const maxInstrumentableSize = 4 * 1024 * 1024 // 4 MiB

var exploreSkipList = map[string]bool{
	"node_modules":         true,
	".git":                 true,
	".ariana":              true,
	"dist":                 true,
	"build":                true,
	"target":               true,
	".ariana_saved_traces": true,
	".traces":              true,
	"venv":                 true,
	"site-packages":        true,
	"__pycache__":          true,
	".ariana-saved-traces": true,
}

var mirrorDirSkipList = map[string]bool{
	".git":                 true,
	".ariana":              true,
	".ariana_saved_traces": true,
	".traces":              true,
	".ariana-saved-traces": true,
}

var instrumentableExts = map[string]bool{
	"js":  true,
	"ts":  true,
	"jsx": true,
	"tsx": true,
	"py":  true,
}

var copyNotLinkExts = map[string]bool{
	"html":   true,
	"htm":    true,
	"css":    true,
	"sass":   true,
	"scss":   true,
	"vue":    true,
	"svelte": true,
}

// ShouldExplore reports whether a directory with this base name should be
// descended into during the project walk.
func ShouldExplore(dirName string) bool {
	if exploreSkipList[dirName] {
		return false
	}
	if strings.Contains(dirName, ".") || strings.HasPrefix(dirName, "_") {
		return false
	}

	return true
}

// ShouldMirrorDir reports whether a directory is a candidate to be mirrored
// as a leaf (symlinked or copied wholesale), rather than recreated and
// descended into file-by-file.
func ShouldMirrorDir(dirName string) bool {
	return !mirrorDirSkipList[dirName]
}

// Instrumentable reports whether the file at path is eligible for the
// remote instrumentation transform, based on extension, size, and name.
func Instrumentable(path string, size int64) bool {
	if size >= maxInstrumentableSize {
		return false
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if !instrumentableExts[ext] {
		return false
	}

	base := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(base, ".config.js") || strings.HasSuffix(base, ".config.ts") {
		return false
	}

	return true
}

// MustCopyNotLink reports whether a file's extension means it must be
// copied rather than symlinked into the mirror, because downstream
// tooling may reject or misresolve a symlinked asset of this type.
func MustCopyNotLink(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	return copyNotLinkExts[ext]
}
