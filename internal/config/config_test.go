package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: "http://prices.example:5000/api"
  timeout: 10s
  max_retries: 2
  retry_delay_base: 250ms

engine:
  history_limit: 10
  favorites_limit: 5

storage:
  backend: sqlite
  db_path: "./data/test.db"

alerts:
  enabled: true
  cooldown: 30m

telegram:
  bot_token: "test_token"
  chat_id: "12345"
  enabled: true

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://prices.example:5000/api", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 2, cfg.API.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.API.RetryDelayBase)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Alerts.Cooldown)
	assert.Equal(t, "0 8 * * *", cfg.Alerts.DailySchedule, "unset keys keep defaults")
	assert.True(t, cfg.Telegram.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "api:\n  base_url: \"http://from-file/api\"\n")
	t.Setenv("MANDINETRA_API_BASE_URL", "http://from-env/api")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://from-env/api", cfg.API.BaseURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.Engine.HistoryLimit)
	assert.Equal(t, 5, cfg.Engine.FavoritesLimit)
	assert.Equal(t, "file", cfg.Storage.Backend)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"empty base url", func(c *Config) { c.API.BaseURL = "" }, true},
		{"short timeout", func(c *Config) { c.API.Timeout = 100 * time.Millisecond }, true},
		{"zero retries", func(c *Config) { c.API.MaxRetries = 0 }, true},
		{"zero history", func(c *Config) { c.Engine.HistoryLimit = 0 }, true},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "s3" }, true},
		{"memory backend", func(c *Config) { c.Storage.Backend = "memory" }, false},
		{"redis without addr", func(c *Config) {
			c.Storage.Backend = "redis"
			c.Storage.RedisAddr = ""
		}, true},
		{"telegram without token", func(c *Config) { c.Telegram.Enabled = true }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
