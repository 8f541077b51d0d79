// Package host provides an in-process notification registry that behaves
// like an OS notification service: notifications are keyed by id, posting an
// existing id replaces it in place, and taps are routed to a handler.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmylchreest/livenotify/internal/model"
)

var (
	// ErrNotFound is returned when no active notification has the id.
	ErrNotFound = errors.New("notification not found")
	// ErrNoIntent is returned when a notification has no target for the action.
	ErrNoIntent = errors.New("notification has no target for action")
)

// TapHandler is called when the user taps a notification target.
type TapHandler func(id int32, intent model.Intent)

// RemovedHandler is called when the host removes a notification on its own,
// without a Cancel from the poster.
type RemovedHandler func(id int32)

// Registry is an in-memory notification registry.
type Registry struct {
	mu     sync.RWMutex
	logger *slog.Logger

	active map[int32]*model.Notification
	order  []int32 // Visual slot order, by first post.
	posts  int

	onTap     TapHandler
	onRemoved RemovedHandler
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger: logger,
		active: make(map[int32]*model.Notification),
	}
}

// SetTapHandler sets the handler called when a notification is tapped.
func (r *Registry) SetTapHandler(handler TapHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onTap = handler
}

// SetRemovedHandler sets the handler called when a tap auto-cancels a
// notification.
func (r *Registry) SetRemovedHandler(handler RemovedHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRemoved = handler
}

// Post shows n. An active notification with the same id is replaced in its
// existing slot.
func (r *Registry) Post(_ context.Context, n *model.Notification) error {
	if n == nil {
		return errors.New("nil notification")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, replaced := r.active[n.ID]
	if !replaced {
		r.order = append(r.order, n.ID)
	}
	r.active[n.ID] = n.Clone()
	r.posts++

	r.logger.Debug("notification posted", "id", n.ID, "replaced", replaced, "style", n.Style)
	return nil
}

// Cancel removes the notification with the given id. Cancelling an unknown
// id is a no-op.
func (r *Registry) Cancel(_ context.Context, id int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id)
	return nil
}

func (r *Registry) removeLocked(id int32) bool {
	if _, ok := r.active[id]; !ok {
		return false
	}
	delete(r.active, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns the active notification with the given id.
func (r *Registry) Get(id int32) (*model.Notification, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.active[id]
	return n, ok
}

// Active returns the active notifications in slot order.
func (r *Registry) Active() []*model.Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Notification, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.active[id])
	}
	return out
}

// Count returns the number of active notifications.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}

// Posts returns the total number of Post calls accepted.
func (r *Registry) Posts() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.posts
}

// Tap simulates the user tapping a target of notification id. An empty
// action taps the content target. Auto-cancel notifications are removed
// when their content target is tapped.
func (r *Registry) Tap(id int32, action string) error {
	r.mu.Lock()
	n, ok := r.active[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	intent, ok := findIntent(n, action)
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q on %d", ErrNoIntent, action, id)
	}
	removed := action == model.ActionTap && n.AutoCancel && r.removeLocked(id)
	handler, onRemoved := r.onTap, r.onRemoved
	r.mu.Unlock()

	r.logger.Debug("notification tapped", "id", id, "action", action, "removed", removed)
	if handler != nil {
		handler(id, intent)
	}
	if removed && onRemoved != nil {
		onRemoved(id)
	}
	return nil
}

func findIntent(n *model.Notification, action string) (model.Intent, bool) {
	if action == model.ActionTap {
		if n.ContentIntent == nil {
			return model.Intent{}, false
		}
		return *n.ContentIntent, true
	}
	for _, intent := range n.Intents() {
		if intent.Action == action {
			return intent, true
		}
	}
	return model.Intent{}, false
}
