package traceio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

const (
	maxBatchRecords = 50_000
	flushInterval   = 3 * time.Second
	pushTimeout     = 30 * time.Second
)

// Shipper aggregates extracted trace payloads and flushes them to the push
// endpoint in bounded batches, either when the buffer fills, on a periodic
// tick, or on drain.
type Shipper struct {
	httpClient *http.Client
	apiURL     string
	vault      string
	log        *slog.Logger

	mu      sync.Mutex
	buffer  []json.RawMessage
	aborted bool
}

// NewShipper builds a Shipper for one vault's push endpoint.
func NewShipper(apiURL, vault string, log *slog.Logger) *Shipper {
	return &Shipper{
		httpClient: &http.Client{Transport: cleanhttp.DefaultPooledTransport(), Timeout: pushTimeout},
		apiURL:     apiURL,
		vault:      vault,
		log:        log,
	}
}

// Enqueue validates payload as well-formed JSON and appends it to the
// buffer, flushing immediately if the buffer has reached the batch bound.
// Malformed payloads are logged and discarded.
func (s *Shipper) Enqueue(ctx context.Context, payload string) {
	if !json.Valid([]byte(payload)) {
		s.log.Error("discarding malformed trace payload", "error-type", "runtime")

		return
	}

	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()

		return
	}

	s.buffer = append(s.buffer, json.RawMessage(payload))
	full := len(s.buffer) >= maxBatchRecords
	s.mu.Unlock()

	if full {
		s.flush(ctx)
	}
}

// Run ticks the periodic flush timer until ctx is cancelled.
func (s *Shipper) Run(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flush(ctx)
		}
	}
}

// Drain partitions any remaining records into batch-sized chunks and pushes
// each before returning. Once the shipper has aborted, Drain returns without
// pushing what is left.
func (s *Shipper) Drain(ctx context.Context) {
	for {
		s.mu.Lock()
		done := s.aborted || len(s.buffer) == 0
		s.mu.Unlock()

		if done {
			return
		}

		s.flush(ctx)
	}
}

func (s *Shipper) flush(ctx context.Context) {
	s.mu.Lock()
	if s.aborted || len(s.buffer) == 0 {
		s.mu.Unlock()

		return
	}

	n := min(len(s.buffer), maxBatchRecords)
	batch := s.buffer[:n]
	s.buffer = s.buffer[n:]
	s.mu.Unlock()

	if err := s.push(ctx, batch); err != nil {
		s.log.Error("trace push failed, aborting shipper", "error", err, "error-type", "runtime", "batch_size", len(batch))

		s.mu.Lock()
		s.aborted = true
		s.mu.Unlock()
	}
}

func (s *Shipper) push(ctx context.Context, batch []json.RawMessage) error {
	body, err := json.Marshal(map[string]any{"traces": batch})
	if err != nil {
		return fmt.Errorf("failed to marshal push body: %w", err)
	}

	url := fmt.Sprintf("%s/vaults/traces/%s/push", s.apiURL, s.vault)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", errNon2xxPush, resp.StatusCode)
	}

	return nil
}
