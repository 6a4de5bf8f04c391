package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/rewired-gh/slotscope/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	Stores   map[string]string `mapstructure:"stores"`
	Server   ServerConfig      `mapstructure:"server"`
	Loader   LoaderConfig      `mapstructure:"loader"`
	Cache    CacheConfig       `mapstructure:"cache"`
	Pivot    PivotConfig       `mapstructure:"pivot"`
	Telegram TelegramConfig    `mapstructure:"telegram"`
	Logging  LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds HTTP dashboard configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LoaderConfig holds resource fetch configuration
type LoaderConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	// RefreshInterval drives the background re-fetch loop. Zero disables it.
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// CacheConfig holds snapshot persistence configuration
type CacheConfig struct {
	SnapshotDBPath    string `mapstructure:"snapshot_db_path"`
	SnapshotsPerStore int    `mapstructure:"snapshots_per_store"`
}

// PivotConfig holds pivot construction configuration
type PivotConfig struct {
	// DuplicatePolicy resolves multiple records per (machine, date) cell:
	// fail, last, or mean.
	DuplicatePolicy string `mapstructure:"duplicate_policy"`
}

// TelegramConfig holds refresh-alert notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("SLOTSCOPE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8642)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")

	// Loader defaults
	v.SetDefault("loader.timeout", "30s")
	v.SetDefault("loader.max_retries", 3)
	v.SetDefault("loader.retry_delay_base", "1s")
	v.SetDefault("loader.refresh_interval", "6h")

	// Cache defaults
	v.SetDefault("cache.snapshot_db_path", "./data/snapshots.db")
	v.SetDefault("cache.snapshots_per_store", 10)

	// Pivot defaults
	v.SetDefault("pivot.duplicate_policy", "fail")

	// Telegram defaults
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// DuplicatePolicy returns the parsed pivot duplicate policy.
func (c *Config) DuplicatePolicy() models.DuplicatePolicy {
	p, err := models.ParseDuplicatePolicy(c.Pivot.DuplicatePolicy)
	if err != nil {
		return models.DuplicateFail
	}
	return p
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if len(c.Stores) == 0 {
		return fmt.Errorf("stores must contain at least one store -> URL entry")
	}
	for name, url := range c.Stores {
		if name == "" {
			return fmt.Errorf("store name must not be empty")
		}
		if url == "" {
			return fmt.Errorf("store %q has an empty resource URL", name)
		}
	}

	// Validate Server config
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.ReadTimeout < time.Second {
		return fmt.Errorf("server.read_timeout must be at least 1 second")
	}
	if c.Server.WriteTimeout < time.Second {
		return fmt.Errorf("server.write_timeout must be at least 1 second")
	}

	// Validate Loader config
	if c.Loader.Timeout < time.Second {
		return fmt.Errorf("loader.timeout must be at least 1 second")
	}
	if c.Loader.MaxRetries < 1 {
		return fmt.Errorf("loader.max_retries must be at least 1")
	}
	if c.Loader.RetryDelayBase <= 0 {
		return fmt.Errorf("loader.retry_delay_base must be positive")
	}
	if c.Loader.RefreshInterval != 0 && c.Loader.RefreshInterval < time.Minute {
		return fmt.Errorf("loader.refresh_interval must be zero or at least 1 minute")
	}

	// Validate Cache config
	if c.Cache.SnapshotsPerStore < 1 {
		return fmt.Errorf("cache.snapshots_per_store must be at least 1")
	}
	if c.Cache.SnapshotDBPath == "" {
		return fmt.Errorf("cache.snapshot_db_path is required")
	}

	// Validate Pivot config
	if _, err := models.ParseDuplicatePolicy(c.Pivot.DuplicatePolicy); err != nil {
		return fmt.Errorf("pivot.duplicate_policy: %w", err)
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
