// Package prepare implements the workspace preparer (component B): it
// walks a project tree, partitions it into the three Collected Items sets,
// and materializes a mirror workspace (or, for in-place runs, leaves the
// tree untouched for the instrumentation client to rewrite directly).
package prepare

// PathPair is a (src, dest) pair produced by the walk, where dest is always
// ariana_dir joined with the path of src relative to the project root.
type PathPair struct {
	Src  string
	Dest string
}

// ImportStyle is the detected ECMAScript module style of a project,
// forwarded on every instrumentation RPC for the run.
type ImportStyle int

const (
	// ImportStyleCJS is CommonJS (require/module.exports); the default
	// when a project gives no strong indication otherwise.
	ImportStyleCJS ImportStyle = iota
	// ImportStyleESM is ECMAScript modules (import/export).
	ImportStyleESM
)

// String implements [fmt.Stringer].
func (s ImportStyle) String() string {
	if s == ImportStyleESM {
		return "esm"
	}

	return "cjs"
}

// CollectedItems is the three-way partition of a project tree produced by
// the preparer's walk. The three sets are pairwise disjoint over Src paths.
type CollectedItems struct {
	// DirsToLinkOrCopy are leaf directories (no descendant file is
	// separately tracked) to mirror by symlink or copy.
	DirsToLinkOrCopy []PathPair
	// FilesToInstrument are source files eligible for the transform.
	FilesToInstrument []PathPair
	// FilesToLinkOrCopy are non-eligible files to mirror verbatim.
	FilesToLinkOrCopy []PathPair
}

// Stats summarizes a CollectedItems for logging.
func (c CollectedItems) Stats() (dirs, instrument, copyOrLink int) {
	return len(c.DirsToLinkOrCopy), len(c.FilesToInstrument), len(c.FilesToLinkOrCopy)
}
