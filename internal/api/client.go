// Package api implements the authenticated HTTP client for the
// EduForge backend. Credentials are carried via cookies; an expired
// access credential (HTTP 401) is recovered transparently by running
// the registered refresh operation once and retrying the original
// request exactly once. Concurrent requests that hit 401 while a
// refresh is in flight wait for that refresh instead of starting
// their own.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"

	"github.com/eduforge/eduforge-go/internal/telemetry"
)

// RefreshFunc performs the credential refresh call. On success the
// server reissues cookies into the client's jar.
type RefreshFunc func(ctx context.Context) error

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client used for plain
// requests. The cookie jar is installed on it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout for non-streaming requests.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client issues HTTP requests against the backend, carrying session
// cookies and recovering from expired credentials.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client
	logger       *slog.Logger
	metrics      *telemetry.Metrics

	refreshPath   string
	refreshFn     RefreshFunc
	group         singleflight.Group
	onAuthExpired func()
}

// NewClient creates a client for the given base URL. The client owns a
// cookie jar shared between plain and streaming requests.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	c := &Client{
		baseURL:    trimSlash(baseURL),
		httpClient: &http.Client{Jar: jar, Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient.Jar = jar
	// Streaming responses stay open for the life of a generation, so
	// the streaming client carries no overall timeout; cancellation is
	// context-driven.
	c.streamClient = &http.Client{Jar: jar, Transport: c.httpClient.Transport}
	return c, nil
}

// SetRefresh registers the refresh operation and the path of the
// refresh endpoint itself, which is exempt from 401 recovery.
func (c *Client) SetRefresh(path string, fn RefreshFunc) {
	c.refreshPath = path
	c.refreshFn = fn
}

// SetOnAuthExpired registers a hook invoked when a refresh fails and
// the auth session must be torn down.
func (c *Client) SetOnAuthExpired(fn func()) {
	c.onAuthExpired = fn
}

// ResetCookies discards all stored cookies. Used on logout as a
// defensive fallback even though the server expires them.
func (c *Client) ResetCookies() error {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return fmt.Errorf("reset cookie jar: %w", err)
	}
	c.httpClient.Jar = jar
	c.streamClient.Jar = jar
	return nil
}

// Do issues a request and returns the response body. A 401 on any
// path other than the refresh endpoint triggers one refresh and one
// retry; every other error status is returned as a *ServerError.
func (c *Client) Do(ctx context.Context, method, path string, body any) ([]byte, error) {
	resp, err := c.execute(ctx, method, path, body, false)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: method, URL: c.baseURL + path, Err: err}
	}
	return data, nil
}

// DoJSON issues a request and decodes the JSON response into out.
// A nil out discards the body.
func (c *Client) DoJSON(ctx context.Context, method, path string, body, out any) error {
	data, err := c.Do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response %s %s: %w", method, path, err)
	}
	return nil
}

// Stream issues a request whose response body is consumed
// incrementally. The caller owns the returned body and must close it.
func (c *Client) Stream(ctx context.Context, method, path string, body any) (io.ReadCloser, error) {
	resp, err := c.execute(ctx, method, path, body, true)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// execute runs the request with 401 recovery. The logical request is
// retried at most once no matter how many 401s it accumulates.
func (c *Client) execute(ctx context.Context, method, path string, body any, stream bool) (*http.Response, error) {
	payload, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	resp, err := c.roundTrip(ctx, method, path, payload, stream)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && path != c.refreshPath && c.refreshFn != nil {
		_ = resp.Body.Close()
		c.logger.Debug("credential expired, refreshing", "method", method, "path", path)
		if err := c.refreshCredentials(ctx); err != nil {
			return nil, err
		}
		resp, err = c.roundTrip(ctx, method, path, payload, stream)
		if err != nil {
			return nil, err
		}
	}

	if resp.StatusCode >= 400 {
		defer func() { _ = resp.Body.Close() }()
		data, _ := io.ReadAll(resp.Body)
		return nil, &ServerError{Status: resp.StatusCode, Body: data}
	}
	return resp, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, stream bool) (*http.Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request %s %s: %w", method, path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if stream {
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Cache-Control", "no-cache")
	}

	hc := c.httpClient
	if stream {
		hc = c.streamClient
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: method, URL: c.baseURL + path, Err: err}
	}
	c.metrics.RecordRequest(method, resp.StatusCode)
	return resp, nil
}

// refreshCredentials runs the refresh operation, deduplicated so that
// at most one refresh is in flight at a time. Every caller waiting on
// the shared refresh observes the same outcome: retry after success,
// or AuthExpiredError after failure.
func (c *Client) refreshCredentials(ctx context.Context) error {
	_, err, _ := c.group.Do("refresh", func() (any, error) {
		// The refresh is shared by every caller waiting on it, so it
		// must not die with the initiating caller's context.
		rctx := context.WithoutCancel(ctx)
		if err := c.refreshFn(rctx); err != nil {
			c.metrics.RecordRefresh("failure")
			c.logger.Warn("credential refresh failed", "error", err)
			if c.onAuthExpired != nil {
				c.onAuthExpired()
			}
			return nil, &AuthExpiredError{Err: err}
		}
		c.metrics.RecordRefresh("success")
		c.logger.Debug("credential refresh succeeded")
		return nil, nil
	})
	return err
}

func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	if raw, ok := body.([]byte); ok {
		return raw, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	return data, nil
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
