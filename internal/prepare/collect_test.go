package prepare

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func buildSampleProject(t *testing.T) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	files := map[string]string{
		"/proj/.gitignore":            "*.log\n",
		"/proj/main.py":               "print('hi')\n",
		"/proj/debug.log":             "noisy\n",
		"/proj/node_modules/pkg/a.js": "module.exports = {}\n",
		"/proj/src/app.js":            "console.log('hi')\n",
		"/proj/src/.gitignore":        "scratch.tmp\n",
		"/proj/src/scratch.tmp":       "temp\n",
		"/proj/assets/logo.png":       "\x89PNG",
	}

	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}

	return fs
}

func Test_Unit_Collect_PartitionsByInstrumentability(t *testing.T) {
	t.Parallel()

	fs := buildSampleProject(t)

	items, err := Collect(fs, "/proj", "/proj/.ariana")
	require.NoError(t, err)

	var instrumented []string
	for _, p := range items.FilesToInstrument {
		instrumented = append(instrumented, p.Src)
	}

	require.Contains(t, instrumented, "/proj/main.py")
	require.Contains(t, instrumented, "/proj/src/app.js")
	require.NotContains(t, instrumented, "/proj/debug.log")
	require.NotContains(t, instrumented, "/proj/src/scratch.tmp")
}

func Test_Unit_Collect_IgnoredFilesStillLinkedNotInstrumented(t *testing.T) {
	t.Parallel()

	fs := buildSampleProject(t)

	items, err := Collect(fs, "/proj", "/proj/.ariana")
	require.NoError(t, err)

	var linked []string
	for _, p := range items.FilesToLinkOrCopy {
		linked = append(linked, p.Src)
	}

	require.Contains(t, linked, "/proj/debug.log")
	require.Contains(t, linked, "/proj/src/scratch.tmp")
	require.Contains(t, linked, "/proj/assets/logo.png")
}

func Test_Unit_Collect_MirrorsNodeModulesAsWholeDir(t *testing.T) {
	t.Parallel()

	fs := buildSampleProject(t)

	items, err := Collect(fs, "/proj", "/proj/.ariana")
	require.NoError(t, err)

	var dirs []string
	for _, p := range items.DirsToLinkOrCopy {
		dirs = append(dirs, p.Src)
	}

	require.Contains(t, dirs, "/proj/node_modules")
}

func Test_Unit_Collect_DestPathsAreRelativeToArianaDir(t *testing.T) {
	t.Parallel()

	fs := buildSampleProject(t)

	items, err := Collect(fs, "/proj", "/mirror")
	require.NoError(t, err)

	found := false
	for _, p := range items.FilesToInstrument {
		if p.Src == "/proj/main.py" {
			require.Equal(t, "/mirror/main.py", p.Dest)
			found = true
		}
	}
	require.True(t, found)
}

func Test_Unit_Collect_SiblingIgnoreRulesDoNotLeak(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/a/.gitignore", []byte("secret.py\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/proj/a/secret.py", []byte("x = 1\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/proj/b/secret.py", []byte("x = 1\n"), 0o644))

	items, err := Collect(fs, "/proj", "/proj/.ariana")
	require.NoError(t, err)

	var instrumented []string
	for _, p := range items.FilesToInstrument {
		instrumented = append(instrumented, p.Src)
	}
	var linked []string
	for _, p := range items.FilesToLinkOrCopy {
		linked = append(linked, p.Src)
	}

	require.Contains(t, linked, "/proj/a/secret.py")
	require.Contains(t, instrumented, "/proj/b/secret.py")
}
