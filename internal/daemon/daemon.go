package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	godbus "github.com/godbus/dbus/v5"

	"github.com/jmylchreest/livenotify/internal/bridge"
	"github.com/jmylchreest/livenotify/internal/compose"
	"github.com/jmylchreest/livenotify/internal/config"
	"github.com/jmylchreest/livenotify/internal/dbus"
	"github.com/jmylchreest/livenotify/internal/dispatch"
	"github.com/jmylchreest/livenotify/internal/layout"
	"github.com/jmylchreest/livenotify/internal/model"
	"github.com/jmylchreest/livenotify/internal/units"
)

// Options configures a Daemon.
type Options struct {
	Config *config.DaemonConfig
	// ConfigPath is polled for changes. Empty disables config hot reload.
	ConfigPath string
	// Level, when set, is updated from [log] level on reload.
	Level  *slog.LevelVar
	Logger *slog.Logger
}

// Daemon runs livenotifyd.
type Daemon struct {
	logger     *slog.Logger
	level      *slog.LevelVar
	configPath string

	mu  sync.Mutex
	cfg *config.DaemonConfig

	templates *layout.Registry
	composer  *compose.Composer
	presence  *compose.CompanionPresence
	loop      *bridge.Loop
	bridge    *bridge.Bridge
	handler   *dispatch.Handler
	notifier  *InternalNotifier

	templateWatcher *TemplateWatcher
	configWatcher   *ConfigWatcher
}

// New creates a Daemon. Nothing is connected until Run.
func New(opts Options) *Daemon {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultDaemonConfig()
	}
	return &Daemon{
		logger:     logger,
		level:      opts.Level,
		configPath: opts.ConfigPath,
		cfg:        cfg,
	}
}

// ComposerOptions maps the daemon config onto composer options.
func ComposerOptions(cfg *config.DaemonConfig) compose.Options {
	icons := make(map[string]string, len(cfg.Icons))
	for name, ref := range cfg.Icons {
		icons[name] = ref
	}
	return compose.Options{
		Host:      compose.HostInfo{Version: cfg.Host.Version},
		ChannelID: cfg.Channel.ID,
		Metrics:   units.DisplayMetrics{Density: cfg.Display.Density},
		Icons:     icons,
	}
}

// assemble builds the pipeline on top of poster. The tap and removal
// sources of the poster must be wired to onTap and onRemoved by the caller.
func (d *Daemon) assemble(poster compose.Poster) error {
	cfg := d.config()

	d.templates = layout.NewRegistry(d.logger)
	if _, err := d.templates.LoadDir(cfg.TemplateDir()); err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	d.composer = compose.New(poster, d.templates, ComposerOptions(cfg), d.logger)
	d.presence = compose.NewCompanionPresence(poster, cfg.Channel.ID)
	d.applyPresence(cfg)

	d.loop = bridge.NewLoop(d.logger)
	d.bridge = bridge.New(d.loop, d.logger)
	d.handler = dispatch.NewHandler(d.composer, d.logger)
	d.notifier = NewInternalNotifier(poster, cfg.Channel.ID, d.logger)
	return nil
}

// onTap routes a tapped target's payload to the embedding app.
func (d *Daemon) onTap(id int32, intent model.Intent) {
	d.logger.Debug("routing tap", "id", id, "requestCode", intent.RequestCode, "action", intent.Action)
	d.bridge.Deliver(intent.Payload)
}

// onRemoved releases what a host-side removal leaves behind. It runs on the
// loop, outside the host's signal goroutine.
func (d *Daemon) onRemoved(id int32) {
	d.loop.Post(func() {
		d.composer.Removed(context.Background(), id)
	})
}

func (d *Daemon) applyPresence(cfg *config.DaemonConfig) {
	if cfg.Host.Foreground {
		d.composer.SetPresence(d.presence)
		return
	}
	d.composer.SetPresence(nil)
}

func (d *Daemon) config() *config.DaemonConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// applyConfig switches the running pipeline to cfg.
func (d *Daemon) applyConfig(ctx context.Context, cfg *config.DaemonConfig) {
	d.mu.Lock()
	old := d.cfg
	d.cfg = cfg
	d.mu.Unlock()

	d.composer.UpdateOptions(ComposerOptions(cfg))
	d.applyPresence(cfg)
	d.notifier.SetChannel(cfg.Channel.ID)

	if d.level != nil {
		d.level.Set(cfg.SlogLevel())
	}
	if old.Host.AppName != cfg.Host.AppName {
		d.logger.Warn("app_name change takes effect after restart", "app_name", cfg.Host.AppName)
	}

	if old.TemplateDir() != cfg.TemplateDir() || old.Templates.Watch != cfg.Templates.Watch {
		if _, err := d.templates.LoadDir(cfg.TemplateDir()); err != nil {
			d.logger.Warn("failed to load templates", "dir", cfg.TemplateDir(), "error", err)
			d.notifier.NotifyTemplateError(ctx, err)
		}
		d.restartTemplateWatcher(ctx, cfg)
	}
}

func (d *Daemon) restartTemplateWatcher(ctx context.Context, cfg *config.DaemonConfig) {
	if d.templateWatcher != nil {
		if err := d.templateWatcher.Stop(); err != nil {
			d.logger.Debug("failed to close template watcher", "error", err)
		}
		d.templateWatcher = nil
	}
	if !cfg.Templates.Watch {
		return
	}

	w := NewTemplateWatcher(d.templates, cfg.TemplateDir(), d.logger)
	w.SetErrorCallback(func(err error) {
		d.notifier.NotifyTemplateError(ctx, err)
	})
	if err := w.Start(); err != nil {
		d.logger.Warn("failed to watch templates", "dir", cfg.TemplateDir(), "error", err)
		return
	}
	d.templateWatcher = w
}

// Run connects to the session bus and serves until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	cfg := d.config()

	conn, err := godbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer conn.Close()

	host := dbus.NewHost(conn, cfg.Host.AppName, d.logger)
	if err := d.assemble(host); err != nil {
		return err
	}
	host.SetTapHandler(d.onTap)
	host.SetRemovedHandler(d.onRemoved)

	if err := host.Start(); err != nil {
		return fmt.Errorf("failed to start notification host: %w", err)
	}
	defer host.Stop()

	if ok, err := host.SupportsActions(ctx); err == nil && !ok {
		d.logger.Warn("notification server does not support actions, taps will not be delivered")
	}

	service := dbus.NewService(conn, d.handler, d.bridge, d.logger)
	service.SetCallTimeout(cfg.Host.CallTimeout.Duration())
	if err := service.Start(); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer func() {
		if err := service.Stop(); err != nil {
			d.logger.Warn("failed to stop service", "error", err)
		}
	}()

	d.restartTemplateWatcher(ctx, cfg)
	defer func() {
		if d.templateWatcher != nil {
			_ = d.templateWatcher.Stop()
		}
	}()

	if d.configPath != "" {
		d.configWatcher = NewConfigWatcher(d.configPath, d.logger)
		d.configWatcher.SetReloadCallback(func(newConfig *config.DaemonConfig) {
			// Reloads run on the loop so they never race a tap delivery.
			d.loop.Post(func() {
				d.applyConfig(ctx, newConfig)
				service.SetCallTimeout(newConfig.Host.CallTimeout.Duration())
				d.notifier.NotifyConfigReloaded(ctx)
			})
		})
		d.configWatcher.SetErrorCallback(func(err error) {
			d.notifier.NotifyConfigError(ctx, err)
		})
		if err := d.configWatcher.Start(ctx, cfg); err != nil {
			d.logger.Warn("failed to watch config", "error", err)
		}
		defer d.configWatcher.Stop()
	}

	d.logger.Info("livenotifyd ready",
		"host_version", cfg.Host.Version,
		"templates", len(d.templates.Names()),
		"foreground", cfg.Host.Foreground,
	)

	err = d.loop.Run(ctx)
	d.shutdown()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (d *Daemon) shutdown() {
	d.bridge.Close()
	if d.presence.Running() {
		if err := d.presence.Stop(context.Background()); err != nil {
			d.logger.Debug("failed to withdraw companion notification", "error", err)
		}
	}
}
