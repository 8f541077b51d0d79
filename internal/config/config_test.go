package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultClientTimeout, cfg.Client.Timeout.Duration())
	assert.NotEmpty(t, cfg.Client.CallbackPath)
	assert.Equal(t, DefaultPreviewWidth, cfg.Preview.Width)
	assert.Equal(t, 35, cfg.Preview.HostVersion)
	assert.True(t, cfg.Preview.ShowDiagnostics)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.toml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Preview.Width, cfg.Preview.Width)
}

func TestLoadConfig_ParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[client]
timeout = "2s"
callback_path = ""

[preview]
width = 60
host_version = 33
show_diagnostics = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Client.Timeout.Duration())
	assert.Empty(t, cfg.Client.CallbackPath)
	assert.Equal(t, 60, cfg.Preview.Width)
	assert.Equal(t, 33, cfg.Preview.HostVersion)
	assert.False(t, cfg.Preview.ShowDiagnostics)
	// Unset keys keep their defaults.
	assert.Equal(t, 1.0, cfg.Preview.Density)
}

func TestLoadConfig_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[client\ntimeout = "), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[preview]\nwidth = 5\n"), 0644))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "preview width")
}

func TestConfigSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := DefaultConfig()
	cfg.Preview.Width = 72
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 72, loaded.Preview.Width)
}

func TestConfigPath_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	assert.Equal(t, filepath.Join("/tmp/xdg", "livenotify", "config.toml"), ConfigPath())
}

func TestDuration_UnmarshalText(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"5s", 5 * time.Second, false},
		{"1m30s", 90 * time.Second, false},
		{"1500", 1500 * time.Millisecond, false},
		{"0", 0, false},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var d Duration
			err := d.UnmarshalText([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d.Duration())
		})
	}
}

func TestDaemonConfig_Defaults(t *testing.T) {
	cfg := DefaultDaemonConfig()

	assert.Equal(t, 1.0, cfg.Display.Density)
	assert.Equal(t, 35, cfg.Host.Version)
	assert.True(t, cfg.Host.Foreground)
	assert.Equal(t, "livenotify", cfg.Host.AppName)
	assert.Equal(t, "live_updates_channel", cfg.Channel.ID)
	assert.True(t, cfg.Templates.Watch)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.NoError(t, cfg.Validate())
}

func TestDaemonConfig_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livenotifyd.toml")
	content := `
[display]
density = 2.75

[host]
version = 33
foreground = false
call_timeout = "3s"

[templates]
dir = "~/templates"
watch = false

[icons]
truck = "vehicle-truck"

[log]
level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadDaemonConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, 2.75, cfg.Display.Density)
	assert.Equal(t, 33, cfg.Host.Version)
	assert.False(t, cfg.Host.Foreground)
	assert.Equal(t, 3*time.Second, cfg.Host.CallTimeout.Duration())
	assert.Equal(t, "livenotify", cfg.Host.AppName)
	assert.False(t, cfg.Templates.Watch)
	assert.Equal(t, map[string]string{"truck": "vehicle-truck"}, cfg.Icons)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "templates"), cfg.TemplateDir())
}

func TestDaemonConfig_LoadMissingFile(t *testing.T) {
	cfg, err := LoadDaemonConfigFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultDaemonConfig().Host, cfg.Host)
}

func TestDaemonConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*DaemonConfig)
		wantErr string
	}{
		{"zero density", func(c *DaemonConfig) { c.Display.Density = 0 }, "density"},
		{"old host", func(c *DaemonConfig) { c.Host.Version = 10 }, "host version"},
		{"negative timeout", func(c *DaemonConfig) { c.Host.CallTimeout = Duration(-time.Second) }, "call_timeout"},
		{"empty channel", func(c *DaemonConfig) { c.Channel.ID = " " }, "channel id"},
		{"bad log level", func(c *DaemonConfig) { c.Log.Level = "loud" }, "log level"},
		{"empty icon", func(c *DaemonConfig) { c.Icons["x"] = "" }, "icon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultDaemonConfig()
			tt.modify(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestDaemonConfig_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "livenotifyd.toml")

	cfg := DefaultDaemonConfig()
	cfg.Host.Version = 34
	cfg.Icons["bell"] = "bell-symbolic"
	require.NoError(t, SaveDaemonConfigFile(cfg, path))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	loaded, err := LoadDaemonConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 34, loaded.Host.Version)
	assert.Equal(t, "bell-symbolic", loaded.Icons["bell"])
	assert.Equal(t, cfg.Host.CallTimeout, loaded.Host.CallTimeout)
}
