package dam

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Config holds client configuration. Zero numeric and duration fields take the
// documented defaults, so a Config literal with only the credentials set is valid.
type Config struct {
	// APIURL is the base URL of the DAM API, e.g. "http://localhost:55055"
	APIURL    string
	KeyID     string
	KeySecret string

	// Timeout bounds a whole call, retries included. Default 30s.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt. Zero selects
	// the default of 3; set DisableRetries to turn retries off.
	MaxRetries int
	// DisableRetries turns the retry policy off
	DisableRetries bool
	// BackoffFactor is the wait before the first retry; later waits double. Default 500ms.
	BackoffFactor time.Duration

	// SkipTLSVerify disables certificate verification
	SkipTLSVerify bool

	// MaxFileSize is checked before any upload is sent. Default 100 MiB.
	MaxFileSize int64
	// MaxBatchFiles caps the sources of a multi-file upload. Default 10.
	MaxBatchFiles int

	MaxIdleConns        int
	MaxIdleConnsPerHost int

	// UserAgent overrides the default "DAM-Go-SDK/<version>"
	UserAgent string

	// AsyncWorkers and AsyncQueueSize size the AsyncClient worker pool. Defaults 8 and 64.
	AsyncWorkers   int
	AsyncQueueSize int
	// AsyncFailFast fails AsyncClient calls with ErrQueueFull instead of waiting
	// for queue space
	AsyncFailFast bool

	// CircuitBreaker wraps calls in a circuit breaker that opens after repeated
	// transport failures or 5xx responses
	CircuitBreaker bool

	// TokenSource adds an Authorization bearer header, needed by authenticated
	// endpoints such as bulk delete
	TokenSource oauth2.TokenSource

	// Logger receives request logs. Nil disables logging.
	Logger *zap.Logger

	// MetricsRegisterer receives the client metrics. Nil disables metrics.
	MetricsRegisterer prometheus.Registerer

	// Transport replaces the pooled base transport, mostly useful in tests
	Transport http.RoundTripper
}

// DefaultConfig returns a Config for apiURL with every default filled in
func DefaultConfig(apiURL, keyID, keySecret string) Config {
	return Config{
		APIURL:         apiURL,
		KeyID:          keyID,
		KeySecret:      keySecret,
		Timeout:        DefaultTimeout,
		MaxRetries:     DefaultMaxRetries,
		BackoffFactor:  DefaultBackoffFactor,
		MaxFileSize:    DefaultMaxFileSize,
		MaxBatchFiles:  DefaultMaxBatchFiles,
		UserAgent:      DefaultUserAgent,
		AsyncWorkers:   DefaultAsyncWorkers,
		AsyncQueueSize: DefaultAsyncQueueSize,
	}
}

// withDefaults returns a copy of c with zero fields replaced by defaults
func (c Config) withDefaults() Config {
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BackoffFactor == 0 {
		c.BackoffFactor = DefaultBackoffFactor
	}
	if c.MaxFileSize == 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.MaxBatchFiles == 0 {
		c.MaxBatchFiles = DefaultMaxBatchFiles
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.AsyncWorkers == 0 {
		c.AsyncWorkers = DefaultAsyncWorkers
	}
	if c.AsyncQueueSize == 0 {
		c.AsyncQueueSize = DefaultAsyncQueueSize
	}
	return c
}

// Validate reports configuration problems as KindConfiguration errors
func (c Config) Validate() error {
	c = c.withDefaults()

	if c.APIURL == "" {
		return newError(KindConfiguration, "api url is required")
	}
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return wrapError(KindConfiguration, err, "invalid api url %q", c.APIURL)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return newError(KindConfiguration, "api url must be an absolute http or https url, got %q", c.APIURL)
	}
	if c.KeyID == "" || c.KeySecret == "" {
		return newError(KindConfiguration, "api key id and secret are required")
	}

	switch {
	case c.Timeout < 0:
		return newError(KindConfiguration, "timeout must not be negative")
	case c.MaxRetries < 0:
		return newError(KindConfiguration, "max retries must not be negative")
	case c.BackoffFactor < 0:
		return newError(KindConfiguration, "backoff factor must not be negative")
	case c.MaxFileSize < 0:
		return newError(KindConfiguration, "max file size must not be negative")
	case c.MaxBatchFiles < 0:
		return newError(KindConfiguration, "max batch files must not be negative")
	case c.MaxIdleConns < 0 || c.MaxIdleConnsPerHost < 0:
		return newError(KindConfiguration, "idle connection limits must not be negative")
	case c.AsyncWorkers < 0 || c.AsyncQueueSize < 0:
		return newError(KindConfiguration, "async pool sizes must not be negative")
	}
	return nil
}
