// Package transport provides the http.RoundTripper middleware chain used by the DAM clients.
//
// A request passes through the layers in this order:
//
//	headers -> metrics -> retry -> logging -> circuit breaker -> pooled base transport
//
// Headers and the request id are set once per call, so every retry attempt of a
// call shares the same X-Request-ID. Metrics observe whole calls, logging observes
// individual attempts.
package transport

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/example/damsdk/internal/metrics"
)

// Defaults for the retry policy
const (
	DefaultMaxRetries    = 3
	DefaultBackoffFactor = 500 * time.Millisecond
	DefaultMaxInterval   = 120 * time.Second
)

var (
	// DefaultRetryStatuses are the response codes that trigger a retry
	DefaultRetryStatuses = []int{
		http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
	}

	// DefaultRetryMethods are the methods that may be retried
	DefaultRetryMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}
)

// RoundTripperFunc adapts a function to http.RoundTripper
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip implements http.RoundTripper
func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// PoolConfig configures the pooled base transport
type PoolConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	InsecureSkipVerify  bool
}

// NewPooledTransport creates the keep-alive transport shared by every call of a client
func NewPooledTransport(cfg PoolConfig) *http.Transport {
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = 10
	}
	if cfg.IdleConnTimeout <= 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}

	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if cfg.InsecureSkipVerify {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via VerifySSL=false
	}
	return t
}

// Options configures the middleware chain
type Options struct {
	// Headers are set on every request unless the request already carries them
	Headers map[string]string

	// MaxRetries is the number of retries after the first attempt. Zero disables retries.
	MaxRetries    int
	BackoffFactor time.Duration
	RetryStatuses []int
	RetryMethods  []string

	// Breaker enables the circuit breaker when non-nil
	Breaker *gobreaker.CircuitBreaker

	Logger  *zap.Logger
	Metrics *metrics.Collectors
}

// Chain wraps base with the middleware configured in opts
func Chain(base http.RoundTripper, opts Options) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rt := base
	if opts.Breaker != nil {
		rt = &breakerTransport{next: rt, cb: opts.Breaker}
	}
	rt = &loggingTransport{next: rt, logger: logger}
	if opts.MaxRetries > 0 {
		rt = newRetryTransport(rt, opts, logger)
	}
	if opts.Metrics != nil {
		rt = &metricsTransport{next: rt, metrics: opts.Metrics}
	}
	return &headerTransport{next: rt, headers: opts.Headers}
}
