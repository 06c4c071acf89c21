package censor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func getRequest(url string) func(ctx context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

func TestCallerStatusClassification(t *testing.T) {
	assert := assert.New(t)

	statuses := map[int]error{
		200: nil,
		401: ErrAuth,
		403: ErrAuth,
		400: ErrService,
		404: ErrService,
		429: ErrTransport,
		500: ErrTransport,
		503: ErrTransport,
	}
	for status, kind := range statuses {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(UserAgent, r.Header.Get("User-Agent"))
			w.WriteHeader(status)
			w.Write([]byte(`{"ok":true}`))
		}))
		c := NewCaller("test", srv.Client(), CallerOptions{})
		body, err := c.Do(context.Background(), getRequest(srv.URL))
		if kind == nil {
			assert.NoError(err)
			assert.Equal(`{"ok":true}`, string(body))
		} else {
			assert.ErrorIs(err, kind, "status=%d", status)
		}
		srv.Close()
	}
}

func TestCallerConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewCaller("test", nil, CallerOptions{Timeout: time.Second})
	_, err := c.Do(context.Background(), getRequest(url))
	assert.ErrorIs(t, err, ErrTransport)
}

func TestCallerTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewCaller("test", srv.Client(), CallerOptions{Timeout: 50 * time.Millisecond})
	_, err := c.Do(context.Background(), getRequest(srv.URL))
	assert.ErrorIs(t, err, ErrTransport)
}

func TestCallerConcurrencyCap(t *testing.T) {
	assert := assert.New(t)

	var inflight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inflight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inflight.Add(-1)
	}))
	defer srv.Close()

	c := NewCaller("test", srv.Client(), CallerOptions{Concurrency: 3})
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Do(context.Background(), getRequest(srv.URL))
			assert.NoError(err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(peak.Load(), int32(3))
	assert.Greater(peak.Load(), int32(0))
}

func TestCallerClosed(t *testing.T) {
	c := NewCaller("test", nil, CallerOptions{})
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
	assert.True(t, c.Closed())
	_, err := c.Do(context.Background(), getRequest("http://127.0.0.1:1"))
	assert.ErrorIs(t, err, ErrClosed)
}
