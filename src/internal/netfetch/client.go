// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package netfetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/helper/gc"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/logger"
)

var (
	// ErrFetchFailed wraps every failure returned by [Client.Fetch].
	ErrFetchFailed = errors.New("netfetch: fetch failed")

	// ErrUnsupportedScheme indicates a URL that is neither http nor https.
	ErrUnsupportedScheme = errors.New("netfetch: unsupported URL scheme")

	// ErrHTTPStatus indicates a non-200 response.
	ErrHTTPStatus = errors.New("netfetch: unexpected HTTP status")

	// ErrResponseTooLarge indicates a body above the configured limit.
	ErrResponseTooLarge = errors.New("netfetch: response too large")

	// ErrIdleTimeout indicates the server stopped sending data.
	ErrIdleTimeout = errors.New("netfetch: idle timeout")
)

// Config holds HTTP settings for all fetches.
type Config struct {
	// Timeout is the default total request time.
	Timeout time.Duration
	// IdleTimeout is the default maximum gap between received bytes.
	IdleTimeout time.Duration
	// MaxResponseBytes caps response bodies.
	MaxResponseBytes int64
	// MaxRetries is how many times a transient failure is retried.
	MaxRetries uint
	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration
	// Version is the application version used in the default User-Agent.
	Version string
	// UserAgent overrides the default User-Agent when set.
	UserAgent string
}

// DefaultConfig returns the defaults used when a field is left zero.
func DefaultConfig(version string) Config {
	return Config{
		Timeout:          10 * time.Second,
		IdleTimeout:      5 * time.Second,
		MaxResponseBytes: 10 << 20,
		MaxRetries:       1,
		RetryDelay:       200 * time.Millisecond,
		Version:          version,
	}
}

// Request describes one fetch.
type Request struct {
	URL string
	// Body turns the request into a POST (OCSP uses this).
	Body        []byte
	ContentType string
	Accept      string

	// MaxRequestTime and MaxIdleTime override the client defaults when set.
	MaxRequestTime time.Duration
	MaxIdleTime    time.Duration
}

// Client performs fetches. It is safe for concurrent use.
type Client struct {
	cfg Config
	log logger.Logger

	mu     sync.Mutex
	client *http.Client
}

// NewClient returns a Client. Zero fields of cfg take their defaults.
func NewClient(cfg Config, log logger.Logger) *Client {
	def := DefaultConfig(cfg.Version)
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = def.MaxResponseBytes
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	return &Client{cfg: cfg, log: logger.OrNop(log)}
}

// UserAgent returns the User-Agent header value.
func (c *Client) UserAgent() string {
	if c.cfg.UserAgent != "" {
		return c.cfg.UserAgent
	}
	return fmt.Sprintf("TLS-Cert-Trust-Engine/%s (+https://github.com/H0llyW00dzZ/tls-cert-trust-engine)", c.cfg.Version)
}

// HTTPClient returns the shared http.Client, creating it on first use.
// Per-request limits are enforced through contexts, so it has no Timeout.
func (c *Client) HTTPClient() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		c.client = &http.Client{}
	}
	return c.client
}

// SetHTTPClient replaces the underlying http.Client, mostly for tests.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.client = hc
}

// Fetch performs req and returns the response body. Transient failures
// (transport errors, 5xx, idle timeouts) are retried up to MaxRetries times.
func (c *Client) Fetch(ctx context.Context, req Request) ([]byte, error) {
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %w: %q", ErrFetchFailed, ErrUnsupportedScheme, req.URL)
	}

	var data []byte
	err = retry.Do(
		func() error {
			var attemptErr error
			data, attemptErr = c.fetchOnce(ctx, req)
			return attemptErr
		},
		retry.Context(ctx),
		retry.Attempts(c.cfg.MaxRetries+1),
		retry.Delay(c.cfg.RetryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.log.Printf("netfetch: retry %d for %s: %v", n+1, req.URL, err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetchFailed, req.URL, err)
	}
	return data, nil
}

func (c *Client) fetchOnce(parent context.Context, req Request) ([]byte, error) {
	total := req.MaxRequestTime
	if total <= 0 {
		total = c.cfg.Timeout
	}
	idle := req.MaxIdleTime
	if idle <= 0 {
		idle = c.cfg.IdleTimeout
	}

	ctx, cancel := context.WithTimeout(parent, total)
	defer cancel()

	watchdog := newIdleWatchdog(ctx, idle)
	defer watchdog.stop()

	method := http.MethodGet
	var body io.Reader
	if req.Body != nil {
		method = http.MethodPost
		body = bytes.NewReader(req.Body)
	}

	hreq, err := http.NewRequestWithContext(watchdog.ctx, method, req.URL, body)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	hreq.Header.Set("User-Agent", c.UserAgent())
	if req.ContentType != "" {
		hreq.Header.Set("Content-Type", req.ContentType)
	}
	if req.Accept != "" {
		hreq.Header.Set("Accept", req.Accept)
	}

	resp, err := c.HTTPClient().Do(hreq)
	if err != nil {
		return nil, watchdog.explain(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode)
		if resp.StatusCode < http.StatusInternalServerError {
			return nil, retry.Unrecoverable(err)
		}
		return nil, err
	}

	data, err := gc.ReadLimited(watchdog.reader(resp.Body), c.cfg.MaxResponseBytes)
	if errors.Is(err, gc.ErrLimitExceeded) {
		return nil, retry.Unrecoverable(fmt.Errorf("%w: limit %d bytes", ErrResponseTooLarge, c.cfg.MaxResponseBytes))
	}
	if err != nil {
		return nil, watchdog.explain(err)
	}
	return data, nil
}
