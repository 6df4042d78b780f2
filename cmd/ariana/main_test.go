package main

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func Test_Unit_NewProgram_FailsWithoutCommandOrMode(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}

	prog, err := newProgram([]string{"ariana"}, fs, stdout, stderr, "/home/tester")
	require.Error(t, err)
	require.Nil(t, prog)
	require.Contains(t, stderr.String(), "command is required")
}

func Test_Unit_NewProgram_SucceedsWithRecap(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}

	prog, err := newProgram([]string{"ariana", "--recap"}, fs, stdout, stderr, "/home/tester")
	require.NoError(t, err)
	require.NotNil(t, prog)
	require.True(t, prog.opts.Recap)
}

func Test_Unit_ConfigDir_JoinsHomeDirWithDotConfig(t *testing.T) {
	t.Parallel()

	prog := &program{homeDir: "/home/tester"}
	require.Equal(t, "/home/tester/.config", prog.configDir())
}
