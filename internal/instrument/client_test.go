package instrument

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ariana-dev/ariana-cli/internal/prepare"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func Test_Unit_InstrumentFiles_ReturnsInstrumentedContentAlignedByPath(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		paths, _ := req["files_paths"].([]any)
		out := make([]*string, len(paths))
		for i := range out {
			s := "instrumented"
			out[i] = &s
		}

		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"instrumented_contents": out}))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "vault1", discardLogger())

	results := client.InstrumentFiles(context.Background(), "/proj", prepare.ImportStyleESM, map[string][]byte{
		"/proj/a.py": []byte("print(1)"),
		"/proj/b.py": []byte("print(22)"),
	})

	require.Len(t, results, 2)
	require.NotNil(t, results["/proj/a.py"])
	require.Equal(t, "instrumented", *results["/proj/a.py"])
}

func Test_Unit_InstrumentFiles_FallsBackToNilOnServerFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "vault1", discardLogger())

	results := client.InstrumentFiles(context.Background(), "/proj", prepare.ImportStyleCJS, map[string][]byte{
		"/proj/a.py": []byte("print(1)"),
	})

	require.Len(t, results, 1)
	require.Nil(t, results["/proj/a.py"])
}

func Test_Unit_InstrumentFiles_ChunksAtMaxBatchSize(t *testing.T) {
	t.Parallel()

	var seenBatchSizes []int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		paths, _ := req["files_paths"].([]any)
		seenBatchSizes = append(seenBatchSizes, len(paths))

		out := make([]*string, len(paths))
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"instrumented_contents": out}))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "vault1", discardLogger())

	files := make(map[string][]byte, 301)
	for i := 0; i < 301; i++ {
		files[fmt.Sprintf("/proj/file-%03d.py", i)] = []byte("x")
	}

	results := client.InstrumentFiles(context.Background(), "/proj", prepare.ImportStyleCJS, files)

	require.Len(t, results, 301)
	require.Len(t, seenBatchSizes, 2)
	require.Equal(t, 300, seenBatchSizes[0])
	require.Equal(t, 1, seenBatchSizes[1])
}
