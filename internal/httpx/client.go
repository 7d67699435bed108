// Package httpx is the HTTP client shared by every upstream catalog and
// search provider: per-upstream rate limiting, size limits and retries of
// server errors with exponential backoff.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout     = 8 * time.Second
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond

	// MaxResponseSize is the maximum response body size (10MB)
	MaxResponseSize = 10 * 1024 * 1024

	UserAgent = "shelf-meta-srv/1.0 (+https://github.com/shelf-meta-srv)"
)

// Options configures one upstream client.
type Options struct {
	Name        string
	Timeout     time.Duration
	RPS         float64 // 0 disables limiting
	MaxAttempts int
	BaseDelay   time.Duration
	Headers     map[string]string
	HTTPClient  *http.Client
}

type Client struct {
	name      string
	http      *http.Client
	limiter   *rate.Limiter
	headers   map[string]string
	attempts  int
	baseDelay time.Duration
	logger    *zap.Logger
}

// StatusError is a non-2xx upstream answer.
type StatusError struct {
	Code     int
	Upstream string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status code: %d", e.Upstream, e.Code)
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500
}

func New(opts Options, logger *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), 1)
	}

	return &Client{
		name:      opts.Name,
		http:      hc,
		limiter:   limiter,
		headers:   opts.Headers,
		attempts:  opts.MaxAttempts,
		baseDelay: opts.BaseDelay,
		logger:    logger.With(zap.String("upstream", opts.Name)),
	}
}

func (c *Client) Name() string { return c.name }

// GetJSON decodes the JSON body of a GET into target.
func (c *Client) GetJSON(ctx context.Context, url string, target any) error {
	body, err := c.Do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.name, err)
	}
	return nil
}

// PostJSON sends payload as JSON and decodes the answer into target.
func (c *Client) PostJSON(ctx context.Context, url string, payload, target any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	body, err := c.Do(ctx, http.MethodPost, url, raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.name, err)
	}
	return nil
}

// GetText returns the raw body of a GET.
func (c *Client) GetText(ctx context.Context, url string) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, url, nil)
}

// Head succeeds when url answers with a 2xx status.
func (c *Client) Head(ctx context.Context, url string) error {
	_, err := c.Do(ctx, http.MethodHead, url, nil)
	return err
}

// Do runs one request, retrying 5xx answers. Transport errors, 4xx answers
// and cancellation are returned immediately.
func (c *Client) Do(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.baseDelay),
		backoff.WithRandomizationFactor(0),
		backoff.WithMultiplier(2),
		backoff.WithMaxElapsedTime(0),
	)
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.attempts-1)), ctx)

	op := func() ([]byte, error) {
		return c.once(ctx, method, url, payload)
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Debug("retrying upstream request",
			zap.String("method", method), zap.Duration("wait", wait), zap.Error(err))
	}

	return backoff.RetryNotifyWithData[[]byte](op, policy, notify)
}

func (c *Client) once(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, backoff.Permanent(err)
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json, text/xml;q=0.9, */*;q=0.8")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%s: request failed: %w", c.name, err))
	}
	defer resp.Body.Close()

	c.logger.Debug("upstream request",
		zap.String("method", method),
		zap.String("host", req.URL.Host),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, MaxResponseSize))
		serr := &StatusError{Code: resp.StatusCode, Upstream: c.name}
		if serr.Temporary() {
			return nil, serr
		}
		return nil, backoff.Permanent(serr)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%s: read body: %w", c.name, err))
	}
	if len(body) > MaxResponseSize {
		return nil, backoff.Permanent(fmt.Errorf("%s: response body too large: %d bytes", c.name, len(body)))
	}
	return body, nil
}
