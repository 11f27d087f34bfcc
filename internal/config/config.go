// Package config loads the CLI configuration from a TOML file with
// environment variable overrides, and manages the persisted session token.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the chorecoins.toml configuration file.
type Config struct {
	Backend  Backend `toml:"backend"`
	LogLevel string  `toml:"log-level"`
}

// Backend selects and parameterizes the backend implementation.
type Backend struct {
	// URL is the hosted service base URL. Ignored when Local is set.
	URL string `toml:"url"`

	// Local switches to the embedded SQLite backend.
	Local bool `toml:"local"`

	// DBPath is the embedded database location.
	DBPath string `toml:"db-path"`

	// TokenSecret signs session tokens issued by the embedded backend.
	TokenSecret string `toml:"token-secret"`

	// TimeoutSeconds is the per-call deadline. 0 uses the default (10s).
	TimeoutSeconds int `toml:"timeout-seconds"`
}

// Dir returns the chorecoins configuration directory, creating it if needed.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	dir := filepath.Join(base, "chorecoins")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// Load reads the configuration file at path (default location when empty),
// applies environment overrides, and fills in defaults. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "chorecoins.toml")
	}

	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.Backend.URL = getEnv("CHORECOINS_BACKEND_URL", cfg.Backend.URL)
	cfg.Backend.DBPath = getEnv("CHORECOINS_DB_PATH", cfg.Backend.DBPath)
	cfg.Backend.TokenSecret = getEnv("CHORECOINS_TOKEN_SECRET", cfg.Backend.TokenSecret)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	if v := os.Getenv("CHORECOINS_LOCAL"); v != "" {
		cfg.Backend.Local = strings.EqualFold(v, "true") || v == "1"
	}

	if cfg.Backend.URL == "" {
		cfg.Backend.Local = true
	}
	if cfg.Backend.DBPath == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		cfg.Backend.DBPath = filepath.Join(dir, "chorecoins.db")
	}
	if cfg.Backend.TokenSecret == "" {
		cfg.Backend.TokenSecret = "chorecoins-local-dev"
	}

	return &cfg, nil
}

// Timeout returns the configured per-call deadline, or 0 when unset.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// tokenFile is where the session token persists between CLI runs.
func tokenFile() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "token"), nil
}

// ReadToken returns the persisted session token, or "" when none exists.
func ReadToken() (string, error) {
	path, err := tokenFile()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// WriteToken persists the session token.
func WriteToken(token string) error {
	path, err := tokenFile()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// RemoveToken deletes the persisted session token.
func RemoveToken() error {
	path, err := tokenFile()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

// selectionFile is where the selected child id persists between CLI runs.
func selectionFile() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "selected_child"), nil
}

// ReadSelectedChild returns the persisted child selection, or "" when none
// exists.
func ReadSelectedChild() (string, error) {
	path, err := selectionFile()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read selection: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// WriteSelectedChild persists the selected child id.
func WriteSelectedChild(childID string) error {
	path, err := selectionFile()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(childID+"\n"), 0600); err != nil {
		return fmt.Errorf("write selection: %w", err)
	}
	return nil
}

// RemoveSelectedChild deletes the persisted child selection.
func RemoveSelectedChild() error {
	path, err := selectionFile()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove selection: %w", err)
	}
	return nil
}
