package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "5s", "10s", "1m", "1h30m", or integer milliseconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '5s', '1m', '1h30m' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Host versions accepted in [host].
const (
	MinHostVersion = 21
	MaxHostVersion = 99
)

// DaemonConfig is the configuration for livenotifyd.
// Loaded from ~/.config/livenotify/livenotifyd.toml
type DaemonConfig struct {
	Display   DisplayConfig     `toml:"display"`
	Host      HostConfig        `toml:"host"`
	Channel   ChannelConfig     `toml:"channel"`
	Templates TemplateConfig    `toml:"templates"`
	Icons     map[string]string `toml:"icons"` // small icon name -> icon reference
	Log       LogConfig         `toml:"log"`
}

// DisplayConfig describes the display notifications are rendered for.
type DisplayConfig struct {
	Density float64 `toml:"density"` // Pixels per dp
}

// HostConfig describes the notification host.
type HostConfig struct {
	Version     int      `toml:"version"`      // Capability level, gates style features
	Foreground  bool     `toml:"foreground"`   // Hold a foreground presence for calls
	AppName     string   `toml:"app_name"`     // Notify app_name and desktop-entry
	CallTimeout Duration `toml:"call_timeout"` // Time limit for one request
}

// ChannelConfig names the channel notifications are posted on.
type ChannelConfig struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

// TemplateConfig contains layout template settings.
type TemplateConfig struct {
	Dir   string `toml:"dir"`   // User template directory; ~ is expanded
	Watch bool   `toml:"watch"` // Reload templates when the directory changes
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// ValidLogLevels returns all valid log level values.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// DefaultDaemonConfig returns a new DaemonConfig with default values.
func DefaultDaemonConfig() *DaemonConfig {
	return &DaemonConfig{
		Display: DisplayConfig{
			Density: 1.0,
		},
		Host: HostConfig{
			Version:     35,
			Foreground:  true,
			AppName:     "livenotify",
			CallTimeout: Duration(10 * time.Second),
		},
		Channel: ChannelConfig{
			ID:   "live_updates_channel",
			Name: "Live Updates",
		},
		Templates: TemplateConfig{
			Dir:   defaultTemplateDir(),
			Watch: true,
		},
		Icons: map[string]string{},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultTemplateDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, "livenotify", "templates")
}

// DaemonConfigPath returns the path to the daemon config file.
func DaemonConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "livenotify", "livenotifyd.toml"), nil
}

// LoadDaemonConfig loads the daemon configuration from the default path.
// If the file doesn't exist, returns the default configuration.
func LoadDaemonConfig() (*DaemonConfig, error) {
	path, err := DaemonConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadDaemonConfigFile(path)
}

// LoadDaemonConfigFile loads the daemon configuration from path, overlaying
// the defaults. A missing file yields the defaults.
func LoadDaemonConfigFile(path string) (*DaemonConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultDaemonConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultDaemonConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// SaveDaemonConfig saves the daemon configuration to the default path.
func SaveDaemonConfig(config *DaemonConfig) error {
	path, err := DaemonConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return SaveDaemonConfigFile(config, path)
}

// SaveDaemonConfigFile saves the daemon configuration to path.
func SaveDaemonConfigFile(config *DaemonConfig, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *DaemonConfig) Validate() error {
	if c.Display.Density <= 0 || c.Display.Density > 8 {
		return fmt.Errorf("density must be in (0, 8], got %g", c.Display.Density)
	}

	if c.Host.Version < MinHostVersion || c.Host.Version > MaxHostVersion {
		return fmt.Errorf("host version must be between %d and %d, got %d",
			MinHostVersion, MaxHostVersion, c.Host.Version)
	}
	if c.Host.CallTimeout.Duration() < 0 {
		return fmt.Errorf("call_timeout must not be negative, got %s", c.Host.CallTimeout.Duration())
	}

	if strings.TrimSpace(c.Channel.ID) == "" {
		return fmt.Errorf("channel id must not be empty")
	}

	validLevel := false
	for _, l := range ValidLogLevels() {
		if strings.EqualFold(c.Log.Level, l) {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid log level %q, must be one of: %v", c.Log.Level, ValidLogLevels())
	}

	for name, ref := range c.Icons {
		if strings.TrimSpace(ref) == "" {
			return fmt.Errorf("icon %q has an empty reference", name)
		}
	}

	return nil
}

// SlogLevel returns the configured log level.
func (c *DaemonConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// TemplateDir returns the template directory with ~ expanded.
func (c *DaemonConfig) TemplateDir() string {
	return expandPath(c.Templates.Dir)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
