package dam

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("http://localhost:55055", "id", "secret")

	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.BackoffFactor)
	assert.Equal(t, int64(100*1024*1024), cfg.MaxFileSize)
	assert.Equal(t, 10, cfg.MaxBatchFiles)
	assert.Equal(t, "DAM-Go-SDK/1.0.0", cfg.UserAgent)
	assert.False(t, cfg.SkipTLSVerify)
	assert.NoError(t, cfg.Validate())
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{APIURL: " https://dam.example.com/ ", KeyID: "id", KeySecret: "secret"}.withDefaults()

	assert.Equal(t, "https://dam.example.com", cfg.APIURL)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, DefaultAsyncWorkers, cfg.AsyncWorkers)
	assert.Equal(t, DefaultAsyncQueueSize, cfg.AsyncQueueSize)
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config { return DefaultConfig("http://localhost:55055", "id", "secret") }

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing url", func(c *Config) { c.APIURL = "" }, "api url is required"},
		{"relative url", func(c *Config) { c.APIURL = "localhost:55055" }, "api url must be an absolute http or https url"},
		{"ftp url", func(c *Config) { c.APIURL = "ftp://dam.example.com" }, "api url must be an absolute http or https url"},
		{"bad url", func(c *Config) { c.APIURL = "http://[::1" }, "invalid api url"},
		{"missing key id", func(c *Config) { c.KeyID = "" }, "api key id and secret are required"},
		{"missing secret", func(c *Config) { c.KeySecret = "" }, "api key id and secret are required"},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, "timeout must not be negative"},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, "max retries must not be negative"},
		{"negative file size", func(c *Config) { c.MaxFileSize = -1 }, "max file size must not be negative"},
		{"negative workers", func(c *Config) { c.AsyncWorkers = -2 }, "async pool sizes must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)
			assert.Contains(t, err.Error(), tt.want)

			_, err = NewClient(cfg)
			assert.ErrorIs(t, err, ErrConfiguration)
			_, err = NewAsyncClient(cfg)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestNewClientAppliesDefaults(t *testing.T) {
	client, err := NewClient(Config{APIURL: "http://localhost:55055/", KeyID: "id", KeySecret: "secret"})
	require.NoError(t, err)
	defer client.Close()

	cfg := client.Config()
	assert.Equal(t, "http://localhost:55055", cfg.APIURL)
	assert.Equal(t, DefaultMaxBatchFiles, cfg.MaxBatchFiles)
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
}
