package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadFromPath(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel() != "info" {
		t.Fatalf("expected default log level, got %q", cfg.LogLevel())
	}
	if !cfg.Reconnect.Auto {
		t.Fatalf("expected auto reconnect by default")
	}
	if cfg.ReconnectAttempts() != defaultReconnectAttempts {
		t.Fatalf("unexpected attempts: %d", cfg.ReconnectAttempts())
	}
	if cfg.StoreBackend() != "file" {
		t.Fatalf("unexpected backend: %q", cfg.StoreBackend())
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[logging]
level = "debug"

[reconnect]
auto = false
max_attempts = 7
delay_ms = 500

[staleness]
poll_interval_seconds = 3

[store]
backend = "bbolt"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel() != "debug" {
		t.Fatalf("log level: %q", cfg.LogLevel())
	}
	if cfg.Reconnect.Auto {
		t.Fatalf("expected auto=false")
	}
	if cfg.ReconnectAttempts() != 7 {
		t.Fatalf("attempts: %d", cfg.ReconnectAttempts())
	}
	if cfg.ReconnectDelay() != 500*time.Millisecond {
		t.Fatalf("delay: %v", cfg.ReconnectDelay())
	}
	if cfg.PollInterval() != 3*time.Second {
		t.Fatalf("poll interval: %v", cfg.PollInterval())
	}
	if cfg.StoreBackend() != "bbolt" {
		t.Fatalf("backend: %q", cfg.StoreBackend())
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "warn"
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.LogLevel() != "warn" {
		t.Fatalf("round trip lost level: %q", loaded.LogLevel())
	}
}
