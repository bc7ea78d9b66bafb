package config

import (
	"errors"
	"os"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultReconnectAttempts = 3
	defaultReconnectDelayMS  = 2000
	defaultPollIntervalSec   = 15
	defaultStoreBackend      = "file"
)

type Config struct {
	Logging   LoggingConfig   `json:"logging" toml:"logging"`
	Reconnect ReconnectConfig `json:"reconnect" toml:"reconnect"`
	Staleness StalenessConfig `json:"staleness" toml:"staleness"`
	Store     StoreConfig     `json:"store" toml:"store"`
}

type LoggingConfig struct {
	Level string `json:"level" toml:"level"`
}

// ReconnectConfig carries the caller-driven retry policy. The multiplexer
// itself never retries; it only consults Auto when classifying an unexpected
// connection loss.
type ReconnectConfig struct {
	Auto        bool `json:"auto" toml:"auto"`
	MaxAttempts int  `json:"max_attempts" toml:"max_attempts"`
	DelayMS     int  `json:"delay_ms" toml:"delay_ms"`
}

type StalenessConfig struct {
	PollIntervalSeconds int `json:"poll_interval_seconds" toml:"poll_interval_seconds"`
}

type StoreConfig struct {
	Backend string `json:"backend" toml:"backend"`
	DBPath  string `json:"db_path" toml:"db_path"`
}

func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Reconnect: ReconnectConfig{
			Auto:        true,
			MaxAttempts: defaultReconnectAttempts,
			DelayMS:     defaultReconnectDelayMS,
		},
		Staleness: StalenessConfig{PollIntervalSeconds: defaultPollIntervalSec},
		Store:     StoreConfig{Backend: defaultStoreBackend},
	}
}

func Load() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	return loadFromPath(path)
}

func loadFromPath(path string) (Config, error) {
	cfg := Default()
	if err := readTOML(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readTOML(path string, out any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return toml.Unmarshal(data, out)
}

func (c Config) LogLevel() string {
	level := strings.TrimSpace(c.Logging.Level)
	if level == "" {
		return "info"
	}
	return level
}

func (c Config) ReconnectAttempts() int {
	if c.Reconnect.MaxAttempts <= 0 {
		return defaultReconnectAttempts
	}
	return c.Reconnect.MaxAttempts
}

func (c Config) ReconnectDelay() time.Duration {
	ms := c.Reconnect.DelayMS
	if ms <= 0 {
		ms = defaultReconnectDelayMS
	}
	return time.Duration(ms) * time.Millisecond
}

func (c Config) PollInterval() time.Duration {
	sec := c.Staleness.PollIntervalSeconds
	if sec <= 0 {
		sec = defaultPollIntervalSec
	}
	return time.Duration(sec) * time.Second
}

func (c Config) StoreBackend() string {
	backend := strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if backend == "" {
		return defaultStoreBackend
	}
	return backend
}

func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
