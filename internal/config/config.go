// Package config handles configuration file loading and parsing for the
// livenotify client and the livenotifyd daemon.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Default client configuration values.
const (
	DefaultClientTimeout = 5 * time.Second
	DefaultPreviewWidth  = 48
)

// Config represents the livenotify client configuration.
type Config struct {
	Client  ClientConfig  `toml:"client"`
	Preview PreviewConfig `toml:"preview"`
}

// ClientConfig holds settings for calls to the daemon.
type ClientConfig struct {
	Timeout Duration `toml:"timeout"`
	// CallbackPath is the object path exported by `listen` for direct
	// callbacks. Empty disables the callback path.
	CallbackPath string `toml:"callback_path"`
}

// PreviewConfig holds settings of the offline preview renderer.
type PreviewConfig struct {
	Width           int     `toml:"width"`
	HostVersion     int     `toml:"host_version"`
	Density         float64 `toml:"density"`
	ShowDiagnostics bool    `toml:"show_diagnostics"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			Timeout:      Duration(DefaultClientTimeout),
			CallbackPath: "/io/github/jmylchreest/LiveNotify/Listener",
		},
		Preview: PreviewConfig{
			Width:           DefaultPreviewWidth,
			HostVersion:     35,
			Density:         1.0,
			ShowDiagnostics: true,
		},
	}
}

// ConfigPath returns the path to the client config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "livenotify", "config.toml")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Client.Timeout.Duration() <= 0 {
		return fmt.Errorf("client timeout must be positive, got %s", c.Client.Timeout.Duration())
	}
	if c.Preview.Width < 20 || c.Preview.Width > 200 {
		return fmt.Errorf("preview width must be between 20 and 200, got %d", c.Preview.Width)
	}
	if c.Preview.Density <= 0 {
		return fmt.Errorf("preview density must be positive, got %g", c.Preview.Density)
	}
	return nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
