package daemon

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jmylchreest/livenotify/internal/config"
	"github.com/jmylchreest/livenotify/internal/layout"
)

// ConfigWatcher polls the daemon config file for changes and validates new configs.
type ConfigWatcher struct {
	mu     sync.RWMutex
	logger *slog.Logger

	configPath  string
	lastModTime time.Time

	// Current valid config
	currentConfig *config.DaemonConfig

	pollInterval time.Duration

	onReloadCallback func(newConfig *config.DaemonConfig)
	onErrorCallback  func(err error)

	stopCh chan struct{}
	doneCh chan struct{}

	running bool
}

// NewConfigWatcher creates a ConfigWatcher for the config file at configPath.
func NewConfigWatcher(configPath string, logger *slog.Logger) *ConfigWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigWatcher{
		logger:       logger,
		configPath:   configPath,
		pollInterval: 1 * time.Second,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// SetPollInterval sets the polling interval for file changes.
func (w *ConfigWatcher) SetPollInterval(interval time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pollInterval = interval
}

// SetReloadCallback sets the callback to invoke when config is successfully reloaded.
func (w *ConfigWatcher) SetReloadCallback(callback func(newConfig *config.DaemonConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReloadCallback = callback
}

// SetErrorCallback sets the callback to invoke when config reload fails validation.
func (w *ConfigWatcher) SetErrorCallback(callback func(err error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onErrorCallback = callback
}

// Start begins watching the config file for changes.
func (w *ConfigWatcher) Start(ctx context.Context, initialConfig *config.DaemonConfig) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.currentConfig = initialConfig

	if info, err := os.Stat(w.configPath); err == nil {
		w.lastModTime = info.ModTime()
	}

	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	interval := w.pollInterval
	w.mu.Unlock()

	go w.watchLoop(ctx, interval)

	w.logger.Debug("config watcher started", "path", w.configPath, "interval", interval)
	return nil
}

// Stop stops watching the config file.
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	<-w.doneCh
	w.logger.Debug("config watcher stopped")
}

// GetCurrentConfig returns the current valid configuration.
func (w *ConfigWatcher) GetCurrentConfig() *config.DaemonConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.currentConfig
}

func (w *ConfigWatcher) watchLoop(ctx context.Context, interval time.Duration) {
	defer close(w.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.checkForChanges()
		}
	}
}

// checkForChanges reloads the config file if it has been modified.
// An invalid file leaves the current config in place.
func (w *ConfigWatcher) checkForChanges() {
	w.mu.RLock()
	reloadCallback := w.onReloadCallback
	errorCallback := w.onErrorCallback
	lastModTime := w.lastModTime
	w.mu.RUnlock()

	info, err := os.Stat(w.configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Debug("failed to stat config file", "path", w.configPath, "error", err)
		}
		return
	}

	modTime := info.ModTime()
	if !modTime.After(lastModTime) {
		return
	}

	w.mu.Lock()
	w.lastModTime = modTime
	w.mu.Unlock()

	w.logger.Debug("config file changed", "path", w.configPath, "modTime", modTime)

	newConfig, err := config.LoadDaemonConfigFile(w.configPath)
	if err != nil {
		w.logger.Warn("config file changed but validation failed", "error", err)
		if errorCallback != nil {
			errorCallback(err)
		}
		return
	}

	w.mu.Lock()
	w.currentConfig = newConfig
	w.mu.Unlock()

	w.logger.Info("config reloaded successfully")
	if reloadCallback != nil {
		reloadCallback(newConfig)
	}
}

// DefaultTemplateDebounce is how long the template watcher waits for a burst
// of file events to settle before reloading.
const DefaultTemplateDebounce = 250 * time.Millisecond

// TemplateWatcher reloads the template registry when *.xml files in its
// directory change.
type TemplateWatcher struct {
	mu       sync.Mutex
	logger   *slog.Logger
	registry *layout.Registry
	dir      string
	debounce time.Duration

	onReload func(count int)
	onError  func(err error)

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewTemplateWatcher creates a watcher reloading registry from dir.
func NewTemplateWatcher(registry *layout.Registry, dir string, logger *slog.Logger) *TemplateWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &TemplateWatcher{
		logger:   logger,
		registry: registry,
		dir:      dir,
		debounce: DefaultTemplateDebounce,
	}
}

// SetDebounce sets the settle time between the last event and the reload.
func (w *TemplateWatcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}

// SetReloadCallback sets the callback invoked after a successful reload with
// the number of user templates loaded.
func (w *TemplateWatcher) SetReloadCallback(callback func(count int)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = callback
}

// SetErrorCallback sets the callback invoked when a reload fails.
func (w *TemplateWatcher) SetErrorCallback(callback func(err error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = callback
}

// Dir returns the watched directory.
func (w *TemplateWatcher) Dir() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dir
}

// Start begins watching the template directory. A missing directory is
// not watched and is not an error.
func (w *TemplateWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	if w.dir == "" {
		return nil
	}
	if _, err := os.Stat(w.dir); err != nil {
		if os.IsNotExist(err) {
			w.logger.Debug("not watching missing template directory", "dir", w.dir)
			return nil
		}
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		_ = watcher.Close()
		return err
	}

	w.watcher = watcher
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true

	go w.watch(watcher, w.debounce, w.stopCh, w.doneCh)

	w.logger.Debug("template watcher started", "dir", w.dir)
	return nil
}

// Stop stops the watcher.
func (w *TemplateWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	watcher, done := w.watcher, w.doneCh
	w.mu.Unlock()

	<-done
	w.logger.Debug("template watcher stopped")
	return watcher.Close()
}

// IsRunning returns whether the watcher is currently running.
func (w *TemplateWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *TemplateWatcher) watch(watcher *fsnotify.Watcher, debounce time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !isTemplateEvent(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("template watcher error", "error", err)

		case <-stop:
			return
		}
	}
}

func (w *TemplateWatcher) reload() {
	w.mu.Lock()
	dir, onReload, onError := w.dir, w.onReload, w.onError
	w.mu.Unlock()

	count, err := w.registry.LoadDir(dir)
	if err != nil {
		w.logger.Warn("failed to reload templates", "dir", dir, "error", err)
		if onError != nil {
			onError(err)
		}
		return
	}
	if onReload != nil {
		onReload(count)
	}
}

func isTemplateEvent(event fsnotify.Event) bool {
	if !strings.HasSuffix(filepath.Base(event.Name), ".xml") {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}
