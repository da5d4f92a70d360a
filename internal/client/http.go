package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	nexerr "github.com/XDukeHD/nex-client/internal/errors"
)

const (
	tokenPath = "/v1/websocket"
	loginPath = "/v1/login"

	// maxResponseSize bounds JSON response reads.
	maxResponseSize = 1 << 20

	probeTimeout = 5 * time.Second
)

// HTTPClient makes REST calls to a NEX server. It never retries; retry
// policy belongs to the stream session.
type HTTPClient struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTTPClient creates a client with the given request timeout. A nil
// logger falls back to slog.Default().
func NewHTTPClient(timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// FetchStreamToken exchanges the bearer token for a single-use stream
// token and socket URL via GET /v1/websocket.
//
// A nil endpoint or empty token returns ErrNotConfigured without touching
// the network. A 401 returns ErrUnauthorized; every other failure returns
// ErrUnreachable.
func (c *HTTPClient) FetchStreamToken(ctx context.Context, endpoint *Endpoint, creds *Credentials) (StreamToken, error) {
	if endpoint == nil {
		return StreamToken{}, nexerr.NotConfigured("Endpoint")
	}
	if creds == nil || creds.BearerToken == "" {
		return StreamToken{}, nexerr.NotConfigured("Bearer token")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.BaseURL()+tokenPath, nil)
	if err != nil {
		return StreamToken{}, nexerr.Unreachable(err, "Failed to build stream token request")
	}
	setAuth(req, creds.BearerToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return StreamToken{}, nexerr.Unreachable(err, "Failed to get stream token")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return StreamToken{}, nexerr.Unauthorized("Session expired")
	}
	if resp.StatusCode >= 300 {
		return StreamToken{}, nexerr.Unreachable(
			fmt.Errorf("GET %s: %d %s", tokenPath, resp.StatusCode, errorBody(resp.Body)),
			"Failed to get stream token")
	}

	var out WebSocketTokenResponse
	if err := decodeBody(resp.Body, &out); err != nil {
		return StreamToken{}, nexerr.Unreachable(err, "Malformed stream token response")
	}
	if out.Data.Token == "" || out.Data.Socket == "" {
		return StreamToken{}, nexerr.Unreachable(
			fmt.Errorf("object %q missing token or socket", out.Object),
			"Malformed stream token response")
	}

	c.logger.Debug("stream token issued", "endpoint", endpoint.String(), "socket", out.Data.Socket)
	return StreamToken{Token: out.Data.Token, SocketURL: out.Data.Socket}, nil
}

// Login posts username and password to /v1/login and returns the bearer
// token. Bad credentials return ErrUnauthorized.
func (c *HTTPClient) Login(ctx context.Context, endpoint Endpoint, username, password string) (Credentials, error) {
	data, err := json.Marshal(LoginRequest{Username: username, Password: password})
	if err != nil {
		return Credentials{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.BaseURL()+loginPath, bytes.NewReader(data))
	if err != nil {
		return Credentials{}, nexerr.Unreachable(err, "Failed to build login request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Credentials{}, nexerr.Unreachable(err, "Connection failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return Credentials{}, nexerr.New(nexerr.ErrUnauthorized,
			"Invalid credentials", "Please check your username and password")
	}
	if resp.StatusCode >= 300 {
		return Credentials{}, nexerr.Unreachable(
			fmt.Errorf("POST %s: %d %s", loginPath, resp.StatusCode, errorBody(resp.Body)),
			"Server error")
	}

	var out LoginResponse
	if err := decodeBody(resp.Body, &out); err != nil {
		return Credentials{}, nexerr.Unreachable(err, "Malformed login response")
	}
	if out.Token == "" {
		return Credentials{}, nexerr.Unreachable(fmt.Errorf("empty token"), "No token received from server")
	}
	return Credentials{BearerToken: out.Token}, nil
}

// Probe sends HEAD /v1/websocket to check the server answers at all. Any
// HTTP response, including 401, counts as reachable.
func (c *HTTPClient) Probe(ctx context.Context, endpoint Endpoint) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint.BaseURL()+tokenPath, nil)
	if err != nil {
		return nexerr.Unreachable(err, "Failed to build probe request")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nexerr.Unreachable(err, "Server did not answer")
	}
	resp.Body.Close()
	return nil
}

func setAuth(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func decodeBody(body io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return json.Unmarshal(data, v)
}

func errorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, maxResponseSize))
	return string(bytes.TrimSpace(data))
}
