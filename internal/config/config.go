package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.hangouts/config.toml.
type Config struct {
	DefaultUser string    `toml:"default_user"`
	ServerURL   string    `toml:"server_url"`
	SearchURL   string    `toml:"search_url"`
	LogLevel    string    `toml:"log_level"`
	Reconnect   Reconnect `toml:"reconnect"`
}

// Reconnect controls redialing after the server drops the socket.
type Reconnect struct {
	Enabled     bool          `toml:"enabled"`
	BaseDelay   time.Duration `toml:"base_delay"`
	MaxDelay    time.Duration `toml:"max_delay"`
	MaxAttempts int           `toml:"max_attempts"`
}

// Default returns the values used when config.toml is absent or silent.
func Default() *Config {
	return &Config{
		ServerURL: "ws://localhost:3000/hangouts",
		SearchURL: "http://localhost:3000/hangouts/findOne",
		LogLevel:  "info",
		Reconnect: Reconnect{
			BaseDelay: time.Second,
			MaxDelay:  30 * time.Second,
		},
	}
}

// Load reads config from the given path on top of Default. Returns nil and
// an error if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
