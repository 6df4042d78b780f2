package prepare

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/ariana-dev/ariana-cli/internal/classify"
	"github.com/ariana-dev/ariana-cli/internal/ignore"
)

type walkFrame struct {
	dir     string
	matcher *ignore.Matcher
}

// Collect walks projectRoot and partitions its entries into the three
// Collected Items sets, with destinations rooted at arianaDir. The walk is
// iterative (an explicit stack), extending the ignore matcher one
// directory at a time so rules compound downward without leaking across
// sibling subtrees.
func Collect(fsys afero.Fs, projectRoot, arianaDir string) (CollectedItems, error) {
	stack := []walkFrame{{dir: projectRoot, matcher: ignore.New()}}

	mirrorCandidates := make(map[string]bool)
	parentsOfFiles := make(map[string]bool)
	filesToInstrument := make(map[string]PathPair)
	filesToLinkOrCopy := make(map[string]PathPair)

	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		matcher, err := frame.matcher.Extend(fsys, frame.dir)
		if err != nil {
			return CollectedItems{}, fmt.Errorf("failed to extend ignore matcher: %q (%w)", frame.dir, err)
		}

		entries, err := afero.ReadDir(fsys, frame.dir)
		if err != nil {
			return CollectedItems{}, fmt.Errorf("failed to read directory: %q (%w)", frame.dir, err)
		}

		for _, entry := range entries {
			entryPath := filepath.Join(frame.dir, entry.Name())

			if entry.IsDir() {
				if classify.ShouldExplore(entry.Name()) && !matcher.Match(entryPath) {
					stack = append(stack, walkFrame{dir: entryPath, matcher: matcher})
				}
				if classify.ShouldMirrorDir(entry.Name()) {
					mirrorCandidates[entryPath] = true
				}

				continue
			}

			markAncestors(parentsOfFiles, entryPath, projectRoot)

			dest, err := destPath(entryPath, projectRoot, arianaDir)
			if err != nil {
				return CollectedItems{}, err
			}

			if !matcher.Match(entryPath) && classify.Instrumentable(entryPath, entry.Size()) {
				filesToInstrument[entryPath] = PathPair{Src: entryPath, Dest: dest}
			} else {
				filesToLinkOrCopy[entryPath] = PathPair{Src: entryPath, Dest: dest}
			}
		}
	}

	var dirsToLinkOrCopy []PathPair
	for dir := range mirrorCandidates {
		if parentsOfFiles[dir] {
			continue
		}

		dest, err := destPath(dir, projectRoot, arianaDir)
		if err != nil {
			return CollectedItems{}, err
		}

		dirsToLinkOrCopy = append(dirsToLinkOrCopy, PathPair{Src: dir, Dest: dest})
	}

	items := CollectedItems{
		DirsToLinkOrCopy:  sortedPairs(dirsToLinkOrCopy),
		FilesToInstrument: sortedPairs(mapValues(filesToInstrument)),
		FilesToLinkOrCopy: sortedPairs(mapValues(filesToLinkOrCopy)),
	}

	return items, nil
}

// markAncestors records every ancestor of path, up to and including
// projectRoot, as containing a separately-tracked file; it stops early once
// it reaches an ancestor already recorded, since everything above it will
// already be marked too.
func markAncestors(parentsOfFiles map[string]bool, path, projectRoot string) {
	dir := filepath.Dir(path)

	for {
		if parentsOfFiles[dir] {
			return
		}

		parentsOfFiles[dir] = true

		if dir == projectRoot {
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}

		dir = parent
	}
}

func destPath(src, projectRoot, arianaDir string) (string, error) {
	rel, err := filepath.Rel(projectRoot, src)
	if err != nil {
		return "", fmt.Errorf("failed to compute relative path: %q (%w)", src, err)
	}

	return filepath.Join(arianaDir, rel), nil
}

func mapValues(m map[string]PathPair) []PathPair {
	out := make([]PathPair, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}

	return out
}

func sortedPairs(pairs []PathPair) []PathPair {
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Src < pairs[j].Src })

	return pairs
}
