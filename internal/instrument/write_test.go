package instrument

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/ariana-dev/ariana-cli/internal/prepare"
)

func Test_Unit_ReadOriginals_ReadsEveryFile(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/a.py", []byte("one"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/proj/b.py", []byte("two"), 0o644))

	files := []prepare.PathPair{{Src: "/proj/a.py"}, {Src: "/proj/b.py"}}

	originals, failures := ReadOriginals(context.Background(), fs, discardLogger(), files)
	require.Empty(t, failures)
	require.Equal(t, "one", string(originals["/proj/a.py"]))
	require.Equal(t, "two", string(originals["/proj/b.py"]))
}

func Test_Unit_ReadOriginals_SkipsUnreadableFileAndContinues(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/a.py", []byte("one"), 0o644))

	files := []prepare.PathPair{{Src: "/proj/a.py"}, {Src: "/proj/missing.py"}}

	originals, failures := ReadOriginals(context.Background(), fs, discardLogger(), files)
	require.Len(t, failures, 1)
	require.Equal(t, "one", string(originals["/proj/a.py"]))
	require.NotContains(t, originals, "/proj/missing.py")
}

func Test_Unit_WriteResults_InPlaceBacksUpThenOverwrites(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/a.py", []byte("original"), 0o644))

	backup, err := prepare.OpenBackup(fs, "/proj/.ariana")
	require.NoError(t, err)

	files := []prepare.PathPair{{Src: "/proj/a.py", Dest: "/proj/.ariana/a.py"}}
	originals := map[string][]byte{"/proj/a.py": []byte("original")}
	instrumentedStr := "instrumented"
	instrumented := map[string]*string{"/proj/a.py": &instrumentedStr}

	require.Empty(t, WriteResults(fs, discardLogger(), backup, true, files, originals, instrumented))
	require.NoError(t, backup.Close())

	content, err := afero.ReadFile(fs, "/proj/a.py")
	require.NoError(t, err)
	require.Equal(t, "instrumented", string(content))
}

func Test_Unit_WriteResults_MirrorWritesToDestLeavingSrcUntouched(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/a.py", []byte("original"), 0o644))

	files := []prepare.PathPair{{Src: "/proj/a.py", Dest: "/mirror/a.py"}}
	originals := map[string][]byte{"/proj/a.py": []byte("original")}
	instrumented := map[string]*string{"/proj/a.py": nil}

	require.Empty(t, WriteResults(fs, discardLogger(), nil, false, files, originals, instrumented))

	content, err := afero.ReadFile(fs, "/mirror/a.py")
	require.NoError(t, err)
	require.Equal(t, "original", string(content))

	srcContent, err := afero.ReadFile(fs, "/proj/a.py")
	require.NoError(t, err)
	require.Equal(t, "original", string(srcContent))
}

func Test_Unit_WriteResults_MissingBackupFailsOnlyInPlaceWrite(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()

	files := []prepare.PathPair{{Src: "/proj/a.py", Dest: "/proj/.ariana/a.py"}}
	originals := map[string][]byte{"/proj/a.py": []byte("original")}
	instrumented := map[string]*string{"/proj/a.py": nil}

	failures := WriteResults(fs, discardLogger(), nil, true, files, originals, instrumented)
	require.Len(t, failures, 1)
}
