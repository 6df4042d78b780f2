// Package vault implements the thin client contract for the remote vault
// service: run registration, recap lookup, and the machine-hash identifier
// both endpoints require.
package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

const requestTimeout = 30 * time.Second

// Client talks to the unauthenticated vault endpoints.
type Client struct {
	httpClient  *http.Client
	apiURL      string
	machineHash string
}

// NewClient builds a Client for apiURL, tagging every request with
// machineHash.
func NewClient(apiURL, machineHash string) *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: cleanhttp.DefaultPooledTransport(),
			Timeout:   requestTimeout,
		},
		apiURL:      apiURL,
		machineHash: machineHash,
	}
}

// Create registers a new run with the vault service and returns its secret
// key, which identifies the destination for this run's traces and output.
func (c *Client) Create(ctx context.Context, command, cwd string) (string, error) {
	body, err := json.Marshal(map[string]string{"command": command, "cwd": cwd})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.apiURL + "/unauthenticated/vaults/create"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Machine-Hash", c.machineHash)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", errVaultCreateFailed, resp.StatusCode)
	}

	var parsed struct {
		SecretKey string `json:"secret_key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return parsed.SecretKey, nil
}

// Recap fetches a textual summary of the given vault's trace tree.
func (c *Client) Recap(ctx context.Context, secretKey string) (string, error) {
	url := fmt.Sprintf("%s/vaults/%s/get-trace-tree", c.apiURL, secretKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-Machine-Hash", c.machineHash)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", errRecapFailed, resp.StatusCode)
	}

	var parsed struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return parsed.Answer, nil
}
