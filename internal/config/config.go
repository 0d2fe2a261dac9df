// Package config loads the damctl configuration from defaults, a JSON file and the environment
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"github.com/example/damsdk/dam"
	"github.com/example/damsdk/internal/auth"
	"github.com/example/damsdk/internal/logging"
	"github.com/example/damsdk/storage"
)

// EnvPrefix prefixes every environment variable, e.g. DAM_API_URL
const EnvPrefix = "DAM"

// Duration is a time.Duration read from strings such as "30s" in JSON and the environment
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Settings holds the damctl configuration
type Settings struct {
	API     APIConfig      `json:"api" envconfig:"API"`
	HTTP    HTTPConfig     `json:"http" envconfig:"HTTP"`
	Upload  UploadConfig   `json:"upload" envconfig:"UPLOAD"`
	Async   AsyncConfig    `json:"async" envconfig:"ASYNC"`
	Auth    AuthConfig     `json:"auth" envconfig:"AUTH"`
	Storage storage.Config `json:"storage" envconfig:"STORAGE"`
	Log     LogConfig      `json:"log" envconfig:"LOG"`
}

// APIConfig contains the DAM endpoint and API key
type APIConfig struct {
	URL       string `json:"url" envconfig:"URL"`
	KeyID     string `json:"keyID" envconfig:"KEY_ID"`
	KeySecret string `json:"keySecret" envconfig:"KEY_SECRET"`
}

// HTTPConfig contains transport configuration
type HTTPConfig struct {
	Timeout        Duration `json:"timeout" envconfig:"TIMEOUT"`
	MaxRetries     int      `json:"maxRetries" envconfig:"MAX_RETRIES"`
	BackoffFactor  Duration `json:"backoffFactor" envconfig:"BACKOFF_FACTOR"`
	VerifySSL      bool     `json:"verifySSL" envconfig:"VERIFY_SSL"`
	CircuitBreaker bool     `json:"circuitBreaker" envconfig:"CIRCUIT_BREAKER"`
	MaxIdleConns   int      `json:"maxIdleConns" envconfig:"MAX_IDLE_CONNS"`
	UserAgent      string   `json:"userAgent" envconfig:"USER_AGENT"`
}

// UploadConfig contains upload limits
type UploadConfig struct {
	MaxFileSize   int64 `json:"maxFileSize" envconfig:"MAX_FILE_SIZE"`
	MaxBatchFiles int   `json:"maxBatchFiles" envconfig:"MAX_BATCH_FILES"`
}

// AsyncConfig contains worker pool configuration
type AsyncConfig struct {
	Workers   int  `json:"workers" envconfig:"WORKERS"`
	QueueSize int  `json:"queueSize" envconfig:"QUEUE_SIZE"`
	FailFast  bool `json:"failFast" envconfig:"FAIL_FAST"`
}

// AuthConfig contains bearer token configuration for authenticated endpoints
type AuthConfig struct {
	Token        string   `json:"token" envconfig:"TOKEN"`
	ClientID     string   `json:"clientID" envconfig:"CLIENT_ID"`
	ClientSecret string   `json:"clientSecret" envconfig:"CLIENT_SECRET"`
	TokenURL     string   `json:"tokenURL" envconfig:"TOKEN_URL"`
	Scopes       []string `json:"scopes" envconfig:"SCOPES"`
	GoogleADC    bool     `json:"googleADC" envconfig:"GOOGLE_ADC"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level       string `json:"level" envconfig:"LEVEL"`
	Development bool   `json:"development" envconfig:"DEVELOPMENT"`
}

// Default returns the built-in settings
func Default() *Settings {
	return &Settings{
		HTTP: HTTPConfig{
			Timeout:       Duration(dam.DefaultTimeout),
			MaxRetries:    dam.DefaultMaxRetries,
			BackoffFactor: Duration(dam.DefaultBackoffFactor),
			VerifySSL:     true,
			UserAgent:     dam.DefaultUserAgent,
		},
		Upload: UploadConfig{
			MaxFileSize:   dam.DefaultMaxFileSize,
			MaxBatchFiles: dam.DefaultMaxBatchFiles,
		},
		Async: AsyncConfig{
			Workers:   dam.DefaultAsyncWorkers,
			QueueSize: dam.DefaultAsyncQueueSize,
		},
		Storage: storage.Config{
			Provider: "local",
			Options:  map[string]string{"basePath": "./storage"},
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads settings: defaults first, then configFile if it exists, then
// DAM_* environment variables
func Load(configFile string) (*Settings, error) {
	settings := Default()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("error reading config file: %w", err)
		default:
			if err := json.Unmarshal(data, settings); err != nil {
				return nil, fmt.Errorf("error parsing config file: %w", err)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, settings); err != nil {
		return nil, fmt.Errorf("error reading environment: %w", err)
	}
	return settings, nil
}

// TokenSettings returns the bearer token settings
func (s *Settings) TokenSettings() auth.Settings {
	return auth.Settings{
		Token:        s.Auth.Token,
		ClientID:     s.Auth.ClientID,
		ClientSecret: s.Auth.ClientSecret,
		TokenURL:     s.Auth.TokenURL,
		Scopes:       s.Auth.Scopes,
		GoogleADC:    s.Auth.GoogleADC,
	}
}

// ClientConfig converts the settings to a client configuration. A MaxRetries
// of zero disables retries.
func (s *Settings) ClientConfig(ctx context.Context, logger *zap.Logger) (dam.Config, error) {
	cfg := dam.Config{
		APIURL:         s.API.URL,
		KeyID:          s.API.KeyID,
		KeySecret:      s.API.KeySecret,
		Timeout:        time.Duration(s.HTTP.Timeout),
		MaxRetries:     s.HTTP.MaxRetries,
		DisableRetries: s.HTTP.MaxRetries == 0,
		BackoffFactor:  time.Duration(s.HTTP.BackoffFactor),
		SkipTLSVerify:  !s.HTTP.VerifySSL,
		CircuitBreaker: s.HTTP.CircuitBreaker,
		MaxIdleConns:   s.HTTP.MaxIdleConns,
		UserAgent:      s.HTTP.UserAgent,
		MaxFileSize:    s.Upload.MaxFileSize,
		MaxBatchFiles:  s.Upload.MaxBatchFiles,
		AsyncWorkers:   s.Async.Workers,
		AsyncQueueSize: s.Async.QueueSize,
		AsyncFailFast:  s.Async.FailFast,
		Logger:         logger,
	}

	src, err := auth.TokenSource(ctx, s.TokenSettings())
	if err != nil {
		return dam.Config{}, fmt.Errorf("invalid auth settings: %w", err)
	}
	cfg.TokenSource = src

	return cfg, cfg.Validate()
}

// Logger builds the logger described by the settings
func (s *Settings) Logger() (*zap.Logger, error) {
	return logging.New(logging.Config{Level: s.Log.Level, Development: s.Log.Development})
}
