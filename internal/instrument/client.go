// Package instrument implements the batched remote instrumentation client
// (component C): it ships source file contents to the transform service and
// writes back whatever comes out, falling back to the originals on failure.
package instrument

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/ariana-dev/ariana-cli/internal/prepare"
)

const (
	maxBatchFiles  = 300
	requestTimeout = 6 * time.Hour
)

// Client talks to the remote instrumentation endpoint for one vault.
type Client struct {
	httpClient *http.Client
	apiURL     string
	vault      string
	log        *slog.Logger
}

// NewClient builds a Client with a pooled, keep-alive transport suited to
// long-running bulk uploads.
func NewClient(apiURL, vault string, log *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: cleanhttp.DefaultPooledTransport(),
			Timeout:   requestTimeout,
		},
		apiURL: apiURL,
		vault:  vault,
		log:    log,
	}
}

type batchedRequest struct {
	FilesContents      []string            `json:"files_contents"`
	FilesPaths         []string            `json:"files_paths"`
	ProjectRoot        string              `json:"project_root"`
	ProjectImportStyle prepare.ImportStyle `json:"-"`
}

// MarshalJSON overrides the import style's wire representation to the
// lowercase string the remote service expects.
func (r batchedRequest) MarshalJSON() ([]byte, error) {
	type alias struct {
		FilesContents      []string `json:"files_contents"`
		FilesPaths         []string `json:"files_paths"`
		ProjectRoot        string   `json:"project_root"`
		ProjectImportStyle string   `json:"project_import_style"`
	}

	data, err := json.Marshal(alias{
		FilesContents:      r.FilesContents,
		FilesPaths:         r.FilesPaths,
		ProjectRoot:        r.ProjectRoot,
		ProjectImportStyle: r.ProjectImportStyle.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal instrumentation request: %w", err)
	}

	return data, nil
}

type batchedResponse struct {
	InstrumentedContents []*string `json:"instrumented_contents"`
}

// job pairs a file's path with its content and is the unit sorted and
// chunked by the batching policy.
type job struct {
	path    string
	content []byte
}

// InstrumentFiles sorts files by ascending size, chunks them into groups of
// at most 300, and posts each chunk to the instrument-batched endpoint. The
// returned map is keyed by the same paths as files; a nil entry means the
// server declined (or the batch failed outright), and the caller must fall
// back to the original content.
func (c *Client) InstrumentFiles(ctx context.Context, projectRoot string, style prepare.ImportStyle, files map[string][]byte) map[string]*string {
	jobs := make([]job, 0, len(files))
	for path, content := range files {
		jobs = append(jobs, job{path: path, content: content})
	}

	sort.Slice(jobs, func(i, j int) bool { return len(jobs[i].content) < len(jobs[j].content) })

	results := make(map[string]*string, len(jobs))

	for start := 0; start < len(jobs); start += maxBatchFiles {
		end := min(start+maxBatchFiles, len(jobs))
		chunk := jobs[start:end]

		instrumented, err := c.instrumentBatch(ctx, projectRoot, style, chunk)
		if err != nil {
			c.log.Error("instrumentation batch failed, falling back to originals",
				"error", err, "error-type", "runtime", "batch_size", len(chunk))

			for _, j := range chunk {
				results[j.path] = nil
			}

			continue
		}

		for i, j := range chunk {
			results[j.path] = instrumented[i]
		}
	}

	return results
}

func (c *Client) instrumentBatch(ctx context.Context, projectRoot string, style prepare.ImportStyle, chunk []job) ([]*string, error) {
	req := batchedRequest{
		FilesContents: make([]string, len(chunk)),
		FilesPaths:    make([]string, len(chunk)),
		ProjectRoot:   projectRoot,
	}
	req.ProjectImportStyle = style

	for i, j := range chunk {
		req.FilesContents[i] = string(j.content)
		req.FilesPaths[i] = j.path
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/vaults/traces/%s/instrument-batched", c.apiURL, c.vault)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck

		return nil, fmt.Errorf("%w: status %d", errNon2xxResponse, resp.StatusCode)
	}

	var parsed batchedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(parsed.InstrumentedContents) != len(chunk) {
		return nil, fmt.Errorf("%w: got %d, want %d", errMismatchedResponseLength, len(parsed.InstrumentedContents), len(chunk))
	}

	return parsed.InstrumentedContents, nil
}
