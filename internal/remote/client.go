package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"driftq/internal/config"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// APIError carries the remote status line (e.g. "409 Conflict") so the queue
// records a failure reason the UI can actually show.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: %s", e.Status, e.Body)
	}
	return e.Status
}

// Client talks to the backend the queued mutations replay against.
type Client struct {
	baseURL     string
	healthPath  string
	sessionPath string
	httpClient  *http.Client
	tokenSource oauth2.TokenSource
	logger      *zerolog.Logger
}

func NewClient(cfg config.RemoteConfig, logger *zerolog.Logger) (*Client, error) {
	c := &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		healthPath:  cfg.HealthPath,
		sessionPath: cfg.SessionPath,
		httpClient:  &http.Client{Timeout: cfg.RemoteTimeout()},
		logger:      logger,
	}

	switch {
	case cfg.Auth.TokenURL != "":
		ccCfg := &clientcredentials.Config{
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			TokenURL:     cfg.Auth.TokenURL,
		}
		c.tokenSource = ccCfg.TokenSource(context.Background())
	case cfg.Auth.Token != "":
		c.tokenSource = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Auth.Token})
	default:
		return nil, fmt.Errorf("remote auth: either token or token_url must be set")
	}

	return c, nil
}

// Invoke performs one JSON call against the remote API. A non-2xx response is
// returned as an *APIError.
func (c *Client) Invoke(ctx context.Context, method, path string, payload json.RawMessage) error {
	var body io.Reader
	if len(payload) > 0 {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if err := c.authorize(req); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &APIError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(raw)),
	}
}

// CheckAuth verifies the session is usable before a replay batch starts:
// the token source must produce a valid token and the session endpoint must
// accept it.
func (c *Client) CheckAuth(ctx context.Context) error {
	token, err := c.tokenSource.Token()
	if err != nil {
		return fmt.Errorf("obtain token: %w", err)
	}
	if !token.Valid() {
		return fmt.Errorf("token is expired")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.sessionPath, nil)
	if err != nil {
		return err
	}
	token.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("session check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("session rejected: %s", resp.Status)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("session check failed: %s", resp.Status)
	}
	return nil
}

// Probe checks backend reachability for the network detector. Auth failures
// still count as reachable; they are the auth gate's problem, not the
// detector's.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+c.healthPath, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("health endpoint returned %s", resp.Status)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) error {
	token, err := c.tokenSource.Token()
	if err != nil {
		return fmt.Errorf("obtain token: %w", err)
	}
	token.SetAuthHeader(req)
	return nil
}
