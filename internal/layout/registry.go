package layout

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Resolver resolves template names to parsed templates.
type Resolver interface {
	Lookup(name string) (*Template, bool)
}

// Registry maps template names to parsed templates. Templates are parsed
// once when loaded; lookups never touch the filesystem.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
	dir       string
	logger    *slog.Logger
}

// NewRegistry creates a registry preloaded with the built-in templates.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		templates: make(map[string]*Template),
		logger:    logger,
	}
	r.templates = r.builtinSet()
	return r
}

func (r *Registry) builtinSet() map[string]*Template {
	set := make(map[string]*Template)
	builtin, err := Builtin()
	if err != nil {
		r.logger.Error("failed to load built-in templates", "error", err)
		return set
	}
	for _, t := range builtin {
		set[t.Name] = t
	}
	return set
}

// Lookup returns the template registered under name.
func (r *Registry) Lookup(name string) (*Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[name]
	return t, ok
}

// Add registers a template, replacing any template with the same name.
func (r *Registry) Add(t *Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.Name] = t
}

// Names returns the registered template names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dir returns the user template directory, if one was loaded.
func (r *Registry) Dir() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dir
}

// LoadDir loads every *.xml template from dir on top of the built-ins.
// User templates override built-ins of the same name. A template that fails
// to parse is logged and skipped. A missing directory is not an error.
// Returns the number of user templates loaded.
func (r *Registry) LoadDir(dir string) (int, error) {
	set := r.builtinSet()
	count := 0

	if dir != "" {
		entries, err := os.ReadDir(dir)
		switch {
		case err == nil:
			for _, entry := range entries {
				if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".xml") {
					continue
				}
				t, err := LoadTemplate(filepath.Join(dir, entry.Name()))
				if err != nil {
					r.logger.Warn("skipping invalid template", "file", entry.Name(), "error", err)
					continue
				}
				set[t.Name] = t
				count++
			}
		case os.IsNotExist(err):
			r.logger.Debug("template directory does not exist", "dir", dir)
		default:
			return 0, fmt.Errorf("failed to read template directory: %w", err)
		}
	}

	r.mu.Lock()
	r.templates = set
	r.dir = dir
	r.mu.Unlock()

	r.logger.Info("templates loaded", "dir", dir, "user", count, "total", len(set))
	return count, nil
}

// Reload re-reads the current template directory.
func (r *Registry) Reload() error {
	_, err := r.LoadDir(r.Dir())
	return err
}
