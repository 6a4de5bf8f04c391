package config

import (
	"os"
	"testing"
	"time"

	"github.com/rewired-gh/slotscope/internal/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Remove(tmpfile.Name()) })

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpfile.Name()
}

func TestLoadAndValidate(t *testing.T) {
	content := `
stores:
  musashisakai: "https://files.example.com/exports/musashisakai.csv"
  koenji: "https://files.example.com/exports/koenji.csv"

server:
  host: "0.0.0.0"
  port: 9000

loader:
  timeout: 10s
  max_retries: 2

cache:
  snapshot_db_path: "./data/test-snapshots.db"
  snapshots_per_store: 5

pivot:
  duplicate_policy: "mean"

telegram:
  bot_token: "test_token"
  chat_id: "12345"
  enabled: true

logging:
  level: "debug"
  format: "text"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if len(cfg.Stores) != 2 {
		t.Errorf("stores = %v, want 2 entries", cfg.Stores)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("server.port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Loader.Timeout != 10*time.Second {
		t.Errorf("loader.timeout = %v, want 10s", cfg.Loader.Timeout)
	}
	if cfg.DuplicatePolicy() != models.DuplicateMean {
		t.Errorf("duplicate policy = %v, want mean", cfg.DuplicatePolicy())
	}
}

func TestDefaults(t *testing.T) {
	content := `
stores:
  musashisakai: "https://files.example.com/exports/musashisakai.csv"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed with defaults: %v", err)
	}

	if cfg.Server.Port != 8642 {
		t.Errorf("default port = %d, want 8642", cfg.Server.Port)
	}
	if cfg.DuplicatePolicy() != models.DuplicateFail {
		t.Errorf("default duplicate policy = %v, want fail", cfg.DuplicatePolicy())
	}
	if cfg.Telegram.Enabled {
		t.Error("telegram should default to disabled")
	}
}

func TestValidateErrors(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(writeConfig(t, "stores:\n  a: \"https://example.com/a.csv\"\n"))
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no stores", func(c *Config) { c.Stores = nil }},
		{"empty store URL", func(c *Config) { c.Stores["a"] = "" }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad duplicate policy", func(c *Config) { c.Pivot.DuplicatePolicy = "first" }},
		{"telegram enabled without token", func(c *Config) { c.Telegram.Enabled = true; c.Telegram.ChatID = "1" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"zero retries", func(c *Config) { c.Loader.MaxRetries = 0 }},
		{"short refresh interval", func(c *Config) { c.Loader.RefreshInterval = 10 * time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
