package vault

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func Test_Unit_SecretFile_RoundTrips(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()

	require.NoError(t, PersistSecretKey(fs, "/proj/.ariana", "vault-1"))

	key, err := ReadSecretKey(fs, "/proj/.ariana")
	require.NoError(t, err)
	require.Equal(t, "vault-1", key)
}

func Test_Unit_SecretFile_SkipsWarningCommentLine(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, SecretFilePath("/proj/.ariana"), []byte("# warning\nvault-2\n"), 0o600))

	key, err := ReadSecretKey(fs, "/proj/.ariana")
	require.NoError(t, err)
	require.Equal(t, "vault-2", key)
}
