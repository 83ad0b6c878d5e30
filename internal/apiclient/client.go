package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/shindakun/btweet/internal/models"
)

const (
	endpointLogin = "/api/auth/login"

	// maxResponseBytes bounds how much of a response body is read
	maxResponseBytes = 1 << 20
)

// Client talks to the B-Tweet API
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the API at baseURL. A zero timeout leaves
// requests bounded only by their context.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	normalized, err := normalizeServerURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Transport = otelhttp.NewTransport(httpClient.Transport)
	httpClient.Timeout = timeout

	return &Client{
		baseURL: normalized,
		http:    httpClient,
	}, nil
}

// normalizeServerURL ensures the URL has a scheme and no trailing slash
func normalizeServerURL(server string) (string, error) {
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}

	u, err := url.Parse(server)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q", server)
	}

	return strings.TrimRight(u.Scheme+"://"+u.Host+u.Path, "/"), nil
}

// BaseURL returns the normalized API base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login posts credentials to the auth endpoint and returns the authenticated
// user payload. Every failure is a *RequestError.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (json.RawMessage, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return nil, &RequestError{Message: FallbackMessage, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpointLogin, bytes.NewReader(body))
	if err != nil {
		return nil, &RequestError{Message: FallbackMessage, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RequestError{Message: FallbackMessage, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &RequestError{Status: resp.StatusCode, Message: FallbackMessage, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{
			Status:  resp.StatusCode,
			Message: errorMessage(data),
			Err:     fmt.Errorf("login failed with HTTP status: %d", resp.StatusCode),
		}
	}

	if !json.Valid(data) {
		return nil, &RequestError{Status: resp.StatusCode, Message: FallbackMessage, Err: fmt.Errorf("login response is not JSON")}
	}

	return json.RawMessage(data), nil
}

// errorMessage extracts the "error" field of an error body, falling back to
// the generic message when the body is empty, not JSON or has no such field
func errorMessage(data []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		return FallbackMessage
	}
	return body.Error
}
