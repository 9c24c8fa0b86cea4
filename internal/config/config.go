package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Mock     MockConfig     `mapstructure:"mock"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// APIConfig holds prediction service configuration
type APIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`      // catalog GETs only; predictions are never retried
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"` // linear backoff base
}

// EngineConfig holds the in-memory bounds of the buyer engine
type EngineConfig struct {
	HistoryLimit   int `mapstructure:"history_limit"`
	FavoritesLimit int `mapstructure:"favorites_limit"`
}

// StorageConfig holds durable key/value backend configuration
type StorageConfig struct {
	Backend   string `mapstructure:"backend"` // file, sqlite, redis or memory
	DataDir   string `mapstructure:"data_dir"`
	DBPath    string `mapstructure:"db_path"`
	RedisAddr string `mapstructure:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// AlertsConfig holds alert monitoring configuration
type AlertsConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Cooldown       time.Duration `mapstructure:"cooldown"`
	DailySchedule  string        `mapstructure:"daily_schedule"`
	WeeklySchedule string        `mapstructure:"weekly_schedule"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// MockConfig holds the local mock prediction service configuration
type MockConfig struct {
	Listen         string   `mapstructure:"listen"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// A .env file in the working directory is applied first when present.
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("MANDINETRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// API defaults
	v.SetDefault("api.base_url", "http://127.0.0.1:5000/api")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.max_retries", 3)
	v.SetDefault("api.retry_delay_base", "1s")

	// Engine defaults
	v.SetDefault("engine.history_limit", 10)
	v.SetDefault("engine.favorites_limit", 5)

	// Storage defaults
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.data_dir", defaultDataDir())
	v.SetDefault("storage.db_path", "./data/mandinetra.db")
	v.SetDefault("storage.redis_addr", "127.0.0.1:6379")
	v.SetDefault("storage.redis_db", 0)
	v.SetDefault("storage.key_prefix", "mandinetra:")

	// Alerts defaults
	v.SetDefault("alerts.enabled", true)
	v.SetDefault("alerts.cooldown", "1h")
	v.SetDefault("alerts.daily_schedule", "0 8 * * *")
	v.SetDefault("alerts.weekly_schedule", "0 8 * * MON")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Mock service defaults
	v.SetDefault("mock.listen", "127.0.0.1:5000")
	v.SetDefault("mock.allowed_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return dir + string(os.PathSeparator) + "mandinetra"
	}
	return "./data"
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate API config
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.Timeout < 1*time.Second {
		return fmt.Errorf("api.timeout must be at least 1 second")
	}
	if c.API.MaxRetries < 1 {
		return fmt.Errorf("api.max_retries must be at least 1")
	}
	if c.API.RetryDelayBase < 0 {
		return fmt.Errorf("api.retry_delay_base must not be negative")
	}

	// Validate Engine config
	if c.Engine.HistoryLimit < 1 {
		return fmt.Errorf("engine.history_limit must be at least 1")
	}
	if c.Engine.FavoritesLimit < 1 {
		return fmt.Errorf("engine.favorites_limit must be at least 1")
	}

	// Validate Storage config
	switch c.Storage.Backend {
	case "file":
		if c.Storage.DataDir == "" {
			return fmt.Errorf("storage.data_dir is required for the file backend")
		}
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("storage.db_path is required for the sqlite backend")
		}
	case "redis":
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("storage.redis_addr is required for the redis backend")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.backend must be one of: file, sqlite, redis, memory")
	}

	// Validate Alerts config
	if c.Alerts.Enabled {
		if c.Alerts.Cooldown < 0 {
			return fmt.Errorf("alerts.cooldown must not be negative")
		}
		if c.Alerts.DailySchedule == "" || c.Alerts.WeeklySchedule == "" {
			return fmt.Errorf("alerts.daily_schedule and alerts.weekly_schedule are required when alerts are enabled")
		}
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
