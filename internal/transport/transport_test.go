package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/example/damsdk/internal/metrics"
)

func fastOptions() Options {
	return Options{
		MaxRetries:    3,
		BackoffFactor: time.Millisecond,
	}
}

func newClient(opts Options) *http.Client {
	return &http.Client{Transport: Chain(NewPooledTransport(PoolConfig{}), opts)}
}

func TestHeadersAndRequestID(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	opts := fastOptions()
	opts.Headers = map[string]string{
		"X-API-Key-ID":     "key-id",
		"X-API-Key-Secret": "key-secret",
		"Accept":           "application/json",
	}
	client := newClient(opts)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/public/files", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "image/*")
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "key-id", got.Get("X-API-Key-ID"))
	assert.Equal(t, "key-secret", got.Get("X-API-Key-Secret"))
	assert.Equal(t, "image/*", got.Get("Accept"), "request headers win over defaults")
	assert.Len(t, got.Get(HeaderRequestID), 36)
	assert.Empty(t, req.Header.Get(HeaderRequestID), "caller request is not mutated")
}

func TestRetryOnRetryableStatus(t *testing.T) {
	var (
		calls int32
		ids   sync.Map
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids.Store(r.Header.Get(HeaderRequestID), true)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"file_ids":["a"]}`, string(body), "body is replayed on every attempt")
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	client := newClient(fastOptions())
	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/files/bulk-delete", strings.NewReader(`{"file_ids":["a"]}`))
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	distinct := 0
	ids.Range(func(_, _ any) bool { distinct++; return true })
	assert.Equal(t, 1, distinct, "all attempts share one request id")
}

func TestRetryExhaustedReturnsLastResponse(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"down"}`))
	}))
	defer server.Close()

	client := newClient(fastOptions())
	resp, err := client.Get(server.URL + "/api/stats/dashboard")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, `{"message":"down"}`, string(body))
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls), "one attempt plus three retries")
}

func TestNoRetryForOtherStatusesOrMethods(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Method == http.MethodPatch {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newClient(fastOptions())
	resp, err := client.Get(server.URL + "/api/public/files/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	req, _ := http.NewRequest(http.MethodPatch, server.URL+"/api/public/files/x", nil)
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRetryTransportErrors(t *testing.T) {
	var calls int32
	flaky := RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if atomic.AddInt32(&calls, 1) < 2 {
			return nil, errors.New("connection reset by peer")
		}
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("{}")), Request: req}, nil
	})

	client := &http.Client{Transport: Chain(flaky, fastOptions())}
	resp, err := client.Get("http://dam.invalid/api/public/files")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	opts := fastOptions()
	opts.BackoffFactor = time.Second
	client := newClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/public/files", nil)

	start := time.Now()
	_, err := client.Do(req)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestMetricsAndLogging(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	collectors, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	core, logs := observer.New(zap.DebugLevel)

	opts := fastOptions()
	opts.Metrics = collectors
	opts.Logger = zap.New(core)
	client := newClient(opts)

	resp, err := client.Get(server.URL + "/api/public/files/abc")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, 1.0, testutil.ToFloat64(collectors.RequestsTotal.WithLabelValues("GET", "/api/public/files/{id}", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collectors.RetriesTotal.WithLabelValues("GET")))

	assert.Equal(t, 2, logs.FilterMessage("dam request").Len())
	retries := logs.FilterMessage("retrying dam request").All()
	require.Len(t, retries, 1)
	assert.Equal(t, int64(http.StatusTooManyRequests), retries[0].ContextMap()["status"])
}

func TestBreakerOpensAndSurfacesError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cb := NewBreaker(BreakerSettings{Name: "test", MinRequests: 2, FailureRate: 0.5, Timeout: time.Minute})
	client := newClient(Options{Breaker: cb})

	for i := 0; i < 2; i++ {
		resp, err := client.Get(server.URL + "/api/stats/storage")
		require.NoError(t, err, "5xx responses are returned to the caller")
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		resp.Body.Close()
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := client.Get(server.URL + "/api/stats/storage")
	require.Error(t, err)
	assert.True(t, IsBreakerOpen(err))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestOpenBreakerIsNotRetried(t *testing.T) {
	var calls int32
	failing := RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("dial tcp: connection refused")
	})

	cb := NewBreaker(BreakerSettings{MinRequests: 1, FailureRate: 0.1, Timeout: time.Minute})
	opts := fastOptions()
	opts.Breaker = cb
	client := &http.Client{Transport: Chain(failing, opts)}

	_, err := client.Get("http://dam.invalid/api/public/files")
	require.Error(t, err)
	assert.True(t, IsBreakerOpen(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "the breaker trips after the first failure")
}
