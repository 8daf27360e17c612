package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
)

// Client downloads files over HTTP with optional auth and retry logic.
type Client struct {
	httpClient *http.Client
	username   string
	password   string
	token      string
	userAgent  string
	maxRetries uint64
	backoff    time.Duration
	maxBytes   int64
}

// APIError represents a non-2xx HTTP response.
type APIError struct {
	StatusCode int
	Body       string // first 512 bytes
	retryAfter string // internal: Retry-After header value for 429s
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures Client behavior.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithTransport replaces the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

// WithBasicAuth sends HTTP basic credentials (Kaggle username and API key).
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithBearer sends a Bearer token. Ignored when basic auth is set.
func WithBearer(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithRetries sets the retry count and the base delay of the exponential
// backoff. Default: 3 retries starting at 1s (1s, 2s, 4s).
func WithRetries(n uint64, base time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = n
		c.backoff = base
	}
}

// WithMaxBytes caps the size of a downloaded body. Default: 512MB.
func WithMaxBytes(n int64) Option {
	return func(c *Client) {
		c.maxBytes = n
	}
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		userAgent:  "sympcheck/1.0",
		maxRetries: 3,
		backoff:    time.Second,
		maxBytes:   512 << 20,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ErrTooLarge reports a body that exceeded the configured size cap.
var ErrTooLarge = errors.New("httpclient: response too large")

// Download fetches url into the file at dst. Each attempt writes a fresh
// dst+".part" that is renamed into place only after the body is complete,
// so an interrupted download never leaves a truncated dst.
//
// Returns *APIError for non-2xx responses. Retries on 429 (honouring
// Retry-After), 5xx, and transport errors with exponential backoff.
func (c *Client) Download(ctx context.Context, url, dst string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("httpclient: %w", err)
	}
	part := dst + ".part"
	defer os.Remove(part)

	var lastErr *APIError
	next := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.backoff))
	b := retry.BackoffFunc(func() (time.Duration, bool) {
		d, stop := next.Next()
		if stop {
			return 0, true
		}
		if wait := retryAfterDelay(lastErr); wait > 0 {
			return wait, false
		}
		return d, false
	})

	var written int64
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		n, err := c.fetch(ctx, url, part)
		if err == nil {
			written = n
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
				lastErr = apiErr
				return retry.RetryableError(err)
			}
			return err
		}
		if errors.Is(err, ErrTooLarge) || ctx.Err() != nil {
			return err
		}
		lastErr = nil
		return retry.RetryableError(err)
	})
	if err != nil {
		return 0, err
	}
	if err := os.Rename(part, dst); err != nil {
		return 0, fmt.Errorf("httpclient: %w", err)
	}
	return written, nil
}

// fetch performs a single GET and streams a 2xx body into path.
func (c *Client) fetch(ctx context.Context, url, path string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	switch {
	case c.username != "":
		req.SetBasicAuth(c.username, c.password)
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			retryAfter: resp.Header.Get("Retry-After"),
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, io.LimitReader(resp.Body, c.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}
	if n > c.maxBytes {
		return 0, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, c.maxBytes)
	}
	return n, nil
}

// retryAfterDelay returns the server-requested wait for a 429, or 0.
func retryAfterDelay(lastErr *APIError) time.Duration {
	if lastErr == nil || lastErr.StatusCode != http.StatusTooManyRequests || lastErr.retryAfter == "" {
		return 0
	}
	if secs, err := strconv.Atoi(lastErr.retryAfter); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
