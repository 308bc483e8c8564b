package trustctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// msgTokenNotFound mirrors the sentinel the registry API reports when the
// bearer token is missing or expired.
const msgTokenNotFound = "token not found"

// TokenSource supplies the bearer credential attached to every request.
// The session authentication guard owns issuing and refreshing it.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a TokenSource returning a fixed credential.
type StaticToken string

func (t StaticToken) Token() (string, error) { return string(t), nil }

// envelope is the uniform response shape of the registry API.
type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data,omitempty"`
	Message    string          `json:"message,omitempty"`
	StatusCode int             `json:"statusCode,omitempty"`
}

// HTTPClient implements RegistryClient against the registry HTTP API.
type HTTPClient struct {
	baseURL     string
	httpClient  *http.Client
	tokenSource TokenSource
}

// NewHTTPClient creates a registry client for the API mounted at baseURL
// (e.g. "https://api.example.com/api/devices").
func NewHTTPClient(baseURL string, tokenSource TokenSource, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  httpClient,
		tokenSource: tokenSource,
	}
}

// ListDevices fetches the device list for the authenticated account.
func (c *HTTPClient) ListDevices(ctx context.Context) (DeviceList, error) {
	var list DeviceList
	if err := c.do(ctx, http.MethodGet, "/", nil, &list); err != nil {
		return DeviceList{}, err
	}
	return list, nil
}

// RevokeDevice terminates the session of the given device.
func (c *HTTPClient) RevokeDevice(ctx context.Context, deviceID string) error {
	return c.do(ctx, http.MethodDelete, "/"+deviceID, nil, nil)
}

// RevokeAllDevices terminates every session for the account.
func (c *HTTPClient) RevokeAllDevices(ctx context.Context, includeCurrentDevice bool) error {
	body := map[string]bool{"include_current_device": includeCurrentDevice}
	return c.do(ctx, http.MethodPost, "/logout-all", body, nil)
}

// TrustDevice grants trust to the given device.
func (c *HTTPClient) TrustDevice(ctx context.Context, deviceID string) error {
	return c.do(ctx, http.MethodPost, "/"+deviceID+"/trust", struct{}{}, nil)
}

// UntrustDevice revokes trust from the given device.
func (c *HTTPClient) UntrustDevice(ctx context.Context, deviceID string) error {
	return c.do(ctx, http.MethodDelete, "/"+deviceID+"/trust", nil, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokenSource.Token()
	if err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if !env.Success {
		if resp.StatusCode == http.StatusUnauthorized || env.StatusCode == http.StatusUnauthorized ||
			env.Message == msgTokenNotFound {
			return fmt.Errorf("%w: %s", ErrUnauthenticated, env.Message)
		}
		if env.Message != "" {
			return fmt.Errorf("registry error: %s", env.Message)
		}
		return fmt.Errorf("registry error: status %d", resp.StatusCode)
	}

	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}

	return nil
}
