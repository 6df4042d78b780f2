package supervisor

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func Test_Unit_Launch_RejectsEmptyCommand(t *testing.T) {
	t.Parallel()

	_, err := Launch(".", nil, discardLogger())
	require.ErrorIs(t, err, errEmptyCommand)
}

func Test_Integ_Supervisor_CapturesStdoutAndExitsCleanly(t *testing.T) {
	t.Parallel()

	sup, err := Launch(".", []string{"sh", "-c", "echo hello"}, discardLogger())
	require.NoError(t, err)

	out, err := io.ReadAll(sup.Stdout())
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(out))

	code, interrupted := sup.Wait(context.Background())
	require.Equal(t, 0, code)
	require.False(t, interrupted)
}

func Test_Integ_Supervisor_PropagatesNonZeroExitCode(t *testing.T) {
	t.Parallel()

	sup, err := Launch(".", []string{"sh", "-c", "exit 7"}, discardLogger())
	require.NoError(t, err)

	code, interrupted := sup.Wait(context.Background())
	require.Equal(t, 7, code)
	require.False(t, interrupted)
}

func Test_Integ_Supervisor_TerminatesOnCancelAndReportsInterrupted(t *testing.T) {
	t.Parallel()

	sup, err := Launch(".", []string{"sh", "-c", "sleep 30"}, discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, interrupted := sup.Wait(ctx)
	require.True(t, interrupted)
}
