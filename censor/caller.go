package censor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	// provider rate limits are respected by capping in-flight requests
	DefaultConcurrency = 80
	DefaultTimeout     = 15 * time.Second

	maxResponseBytes = 8 << 20
)

var UserAgent = "aiocensor/" + versioninfo.Short()

type CallerOptions struct {
	// max in-flight requests; defaults to DefaultConcurrency
	Concurrency int64
	// per-attempt bound; defaults to DefaultTimeout
	Timeout time.Duration
	// optional requests-per-second cap (zero means unlimited)
	RateLimit float64
}

// Caller issues provider HTTP requests under a counting permit pool, an
// optional rate limiter, and a per-call timeout. It classifies failures into
// the error taxonomy: connection failures, 429 and 5xx responses are
// ErrTransport (retryable), 401/403 are ErrAuth, other non-2xx are ErrService.
type Caller struct {
	Provider string
	Client   *http.Client
	Timeout  time.Duration

	permits *semaphore.Weighted
	limiter *rate.Limiter
	closed  atomic.Bool
}

func NewCaller(provider string, client *http.Client, opts CallerOptions) *Caller {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	c := &Caller{
		Provider: provider,
		Client:   client,
		Timeout:  opts.Timeout,
		permits:  semaphore.NewWeighted(opts.Concurrency),
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return c
}

// Do builds a request with the call-scoped context, sends it, and returns the
// body of a 2xx response.
func (c *Caller) Do(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	if c.closed.Load() {
		return nil, Errorf(ErrClosed, c.Provider, "detector is closed")
	}

	if err := c.permits.Acquire(ctx, 1); err != nil {
		return nil, Wrap(ErrTransport, c.Provider, "waiting for request permit", err)
	}
	defer c.permits.Release(1)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, Wrap(ErrTransport, c.Provider, "waiting for rate limiter", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	req, err := build(ctx)
	if err != nil {
		if KindOf(err) != nil {
			return nil, err
		}
		return nil, Wrap(ErrInvalidInput, c.Provider, "building request", err)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent)
	}

	start := time.Now()
	resp, err := c.Client.Do(req)
	providerDuration.WithLabelValues(c.Provider).Observe(time.Since(start).Seconds())
	if err != nil {
		providerRequests.WithLabelValues(c.Provider, "error").Inc()
		return nil, Wrap(ErrTransport, c.Provider, "request failed", err)
	}
	defer resp.Body.Close()
	providerRequests.WithLabelValues(c.Provider, fmt.Sprint(resp.StatusCode)).Inc()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, Wrap(ErrTransport, c.Provider, "reading response body", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, Errorf(ErrAuth, c.Provider, "request rejected statusCode=%d body=%s", resp.StatusCode, snippet(body))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, Errorf(ErrTransport, c.Provider, "request failed statusCode=%d", resp.StatusCode)
	default:
		return nil, Errorf(ErrService, c.Provider, "request failed statusCode=%d body=%s", resp.StatusCode, snippet(body))
	}
}

// Close marks the caller closed and drops idle pooled connections.
func (c *Caller) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.Client.CloseIdleConnections()
	return nil
}

func (c *Caller) Closed() bool {
	return c.closed.Load()
}

func snippet(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
