package robusthttp

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFetchClientRetries(t *testing.T) {
	assert := assert.New(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("image bytes"))
	}))
	defer srv.Close()

	c := NewFetchClient(WithRetryWaitMin(time.Millisecond), WithRetryWaitMax(time.Millisecond))
	resp, err := c.Get(srv.URL)
	assert.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal(int32(2), calls.Load())
}

func TestFetchClientDoesNotRetryRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewFetchClient(WithRetryWaitMin(time.Millisecond), WithRetryWaitMax(time.Millisecond))
	resp, err := c.Get(srv.URL)
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHostTLSTransport(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()
	u, err := url.Parse(srv.URL)
	assert.NoError(err)

	// self-signed certificate: only accepted when the host is listed
	strict := &http.Client{Transport: NewHostTLSTransport(nil), Timeout: time.Second}
	_, err = strict.Get(srv.URL)
	assert.Error(err)

	tr := NewHostTLSTransport([]string{u.Hostname()})
	assert.True(tr.Insecure(u.Hostname()))
	assert.False(tr.Insecure("example.com"))
	lax := &http.Client{Transport: tr, Timeout: time.Second}
	resp, err := lax.Get(srv.URL)
	assert.NoError(err)
	resp.Body.Close()
	assert.Equal(http.StatusOK, resp.StatusCode)
}

type countingTransport struct {
	calls atomic.Int32
}

func (c *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return http.DefaultTransport.RoundTrip(req)
}

func TestFetchClientOptions(t *testing.T) {
	assert := assert.New(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := &countingTransport{}
	c := NewFetchClient(
		WithTransport(tr),
		WithMaxRetries(3),
		WithRetryWaitMin(time.Millisecond),
		WithRetryWaitMax(time.Millisecond),
	)
	_, err := c.Get(srv.URL)
	assert.Error(err)
	assert.Equal(int32(4), calls.Load())
	assert.Equal(int32(4), tr.calls.Load())
}
