package traceio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func Test_Unit_Shipper_DrainFlushesBufferedRecords(t *testing.T) {
	t.Parallel()

	var gotBodies []map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotBodies = append(gotBodies, body)
	}))
	defer srv.Close()

	s := NewShipper(srv.URL, "vault1", discardLogger())

	s.Enqueue(context.Background(), `{"a":1}`)
	s.Enqueue(context.Background(), `{"a":2}`)
	s.Drain(context.Background())

	require.Len(t, gotBodies, 1)
	traces, _ := gotBodies[0]["traces"].([]any)
	require.Len(t, traces, 2)
}

func Test_Unit_Shipper_DiscardsMalformedPayload(t *testing.T) {
	t.Parallel()

	var pushed int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&pushed, 1)
	}))
	defer srv.Close()

	s := NewShipper(srv.URL, "vault1", discardLogger())

	s.Enqueue(context.Background(), `not json`)
	s.Drain(context.Background())

	require.Equal(t, int32(0), atomic.LoadInt32(&pushed))
}

func Test_Unit_Shipper_FlushesImmediatelyAtBatchBound(t *testing.T) {
	t.Parallel()

	var batchSizes []int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		traces, _ := body["traces"].([]any)
		batchSizes = append(batchSizes, len(traces))
	}))
	defer srv.Close()

	s := NewShipper(srv.URL, "vault1", discardLogger())

	for i := 0; i < maxBatchRecords; i++ {
		s.Enqueue(context.Background(), fmt.Sprintf(`{"i":%d}`, i))
	}

	require.Len(t, batchSizes, 1)
	require.Equal(t, maxBatchRecords, batchSizes[0])
}

func Test_Unit_Shipper_AbortsAfterNon2xxAndStopsAccepting(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewShipper(srv.URL, "vault1", discardLogger())

	s.Enqueue(context.Background(), `{"a":1}`)
	s.Drain(context.Background())

	require.True(t, s.aborted)
}
