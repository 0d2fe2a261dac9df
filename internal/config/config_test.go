package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/damsdk/dam"
)

func TestLoadDefaults(t *testing.T) {
	settings, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, Duration(30*time.Second), settings.HTTP.Timeout)
	assert.Equal(t, 3, settings.HTTP.MaxRetries)
	assert.True(t, settings.HTTP.VerifySSL)
	assert.Equal(t, "local", settings.Storage.Provider)
	assert.Equal(t, "info", settings.Log.Level)
}

func TestLoadFileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "damctl.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"api": {"url": "http://file.example.com", "keyID": "file-id", "keySecret": "file-secret"},
		"http": {"timeout": "10s", "maxRetries": 5, "verifySSL": false},
		"storage": {"provider": "s3", "options": {"bucket": "assets", "region": "eu-west-1"}}
	}`), 0644))

	t.Setenv("DAM_API_URL", "http://env.example.com")
	t.Setenv("DAM_HTTP_BACKOFF_FACTOR", "250ms")
	t.Setenv("DAM_LOG_LEVEL", "debug")
	t.Setenv("DAM_AUTH_TOKEN", "env-token")

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://env.example.com", settings.API.URL, "environment wins over the file")
	assert.Equal(t, "file-id", settings.API.KeyID)
	assert.Equal(t, Duration(10*time.Second), settings.HTTP.Timeout)
	assert.Equal(t, Duration(250*time.Millisecond), settings.HTTP.BackoffFactor)
	assert.Equal(t, 5, settings.HTTP.MaxRetries)
	assert.False(t, settings.HTTP.VerifySSL)
	assert.Equal(t, "s3", settings.Storage.Provider)
	assert.Equal(t, "assets", settings.Storage.Options["bucket"])
	assert.Equal(t, "debug", settings.Log.Level)
	assert.Equal(t, "env-token", settings.Auth.Token)
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"http": {"timeout": "soon"}}`), 0644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "error parsing config file")

	t.Setenv("DAM_HTTP_MAX_RETRIES", "many")
	_, err = Load("")
	assert.ErrorContains(t, err, "error reading environment")
}

func TestClientConfig(t *testing.T) {
	settings := Default()
	settings.API = APIConfig{URL: "https://dam.example.com", KeyID: "id", KeySecret: "secret"}
	settings.HTTP.VerifySSL = false
	settings.Auth.Token = "token"

	cfg, err := settings.ClientConfig(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "https://dam.example.com", cfg.APIURL)
	assert.True(t, cfg.SkipTLSVerify)
	assert.False(t, cfg.DisableRetries)
	assert.Equal(t, 3, cfg.MaxRetries)
	require.NotNil(t, cfg.TokenSource)

	token, err := cfg.TokenSource.Token()
	require.NoError(t, err)
	assert.Equal(t, "token", token.AccessToken)

	settings.HTTP.MaxRetries = 0
	cfg, err = settings.ClientConfig(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, cfg.DisableRetries)
}

func TestClientConfigErrors(t *testing.T) {
	settings := Default()
	_, err := settings.ClientConfig(context.Background(), nil)
	assert.ErrorIs(t, err, dam.ErrConfiguration)

	settings.API = APIConfig{URL: "https://dam.example.com", KeyID: "id", KeySecret: "secret"}
	settings.Auth.ClientID = "only-id"
	_, err = settings.ClientConfig(context.Background(), nil)
	assert.ErrorContains(t, err, "invalid auth settings")
}

func TestSettingsLogger(t *testing.T) {
	settings := Default()
	settings.Log.Level = "debug"

	logger, err := settings.Logger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))
}
