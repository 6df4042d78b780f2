// Package auth implements the thin client for the CLI's `--login` contract
// against the vault service's auth endpoints. Session management beyond
// persisting the returned JWT is out of scope (spec: "the user's
// authentication flow" is an external collaborator); this package only
// shapes the requests and decodes the responses.
package auth

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

// Client talks to the vault service's auth endpoints.
type Client struct {
	httpClient *http.Client
	apiURL     string
}

// NewClient builds an auth Client for apiURL.
func NewClient(apiURL string) *Client {
	return &Client{
		httpClient: &http.Client{Transport: cleanhttp.DefaultPooledTransport(), Timeout: requestTimeout},
		apiURL:     apiURL,
	}
}

// RequestLoginCode asks the service to email a one-time login code to
// email.
func (c *Client) RequestLoginCode(ctx context.Context, email string) error {
	return c.postNoResponse(ctx, "/unauthenticated/request-login-code", map[string]string{"email": email})
}

// ValidateLoginCode exchanges email and the emailed code for a session
// JWT.
func (c *Client) ValidateLoginCode(ctx context.Context, email, code string) (string, error) {
	return c.postForJWT(ctx, "/unauthenticated/validate-login-code", map[string]string{"email": email, "code": code})
}

// Register creates a new account, returning a session JWT.
func (c *Client) Register(ctx context.Context, email, password string) (string, error) {
	return c.postForJWT(ctx, "/unauthenticated/register", map[string]string{"email": email, "password": password})
}

// ValidateEmail confirms an emailed verification code for a newly
// registered account.
func (c *Client) ValidateEmail(ctx context.Context, email, code string) error {
	return c.postNoResponse(ctx, "/unauthenticated/validate-email", map[string]string{"email": email, "code": code})
}

// Login exchanges an email/password pair for a session JWT.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	return c.postForJWT(ctx, "/unauthenticated/login", map[string]string{"email": email, "password": password})
}

// Account fetches the authenticated account's profile, given a session
// JWT.
func (c *Client) Account(ctx context.Context, jwt string) (map[string]any, error) {
	url := c.apiURL + "/authenticated/account"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+jwt)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", errAuthEndpointFailed, resp.StatusCode)
	}

	var account map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return account, nil
}

func (c *Client) postNoResponse(ctx context.Context, path string, payload map[string]string) error {
	resp, err := c.post(ctx, path, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return nil
}

func (c *Client) postForJWT(ctx context.Context, path string, payload map[string]string) (string, error) {
	resp, err := c.post(ctx, path, payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed struct {
		JWT string `json:"jwt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return parsed.JWT, nil
}

func (c *Client) post(ctx context.Context, path string, payload map[string]string) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()

		return nil, fmt.Errorf("%w: status %d", errAuthEndpointFailed, resp.StatusCode)
	}

	return resp, nil
}
