package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/livenotify/internal/compose"
	"github.com/jmylchreest/livenotify/internal/model"
)

// NoticeID is the notification id used for daemon notices. Embedding apps
// cannot post with it.
const NoticeID = compose.NoticeID

// NotificationLevel indicates the severity of a daemon notice.
type NotificationLevel int

const (
	// NotificationLevelInfo is for informational messages (low priority).
	NotificationLevelInfo NotificationLevel = iota
	// NotificationLevelWarning is for warning messages (default priority).
	NotificationLevelWarning
	// NotificationLevelError is for error messages (high priority).
	NotificationLevelError
)

// InternalNotifier posts notifications about livenotifyd's own events, such
// as a rejected config reload. Identical notices are rate limited.
type InternalNotifier struct {
	mu     sync.Mutex
	logger *slog.Logger

	poster    compose.Poster
	channelID string

	lastNotifyTime map[string]time.Time // key -> last notification time
	minInterval    time.Duration
	now            func() time.Time

	enabled bool
}

// NewInternalNotifier creates an InternalNotifier posting through poster.
func NewInternalNotifier(poster compose.Poster, channelID string, logger *slog.Logger) *InternalNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &InternalNotifier{
		logger:         logger,
		poster:         poster,
		channelID:      channelID,
		lastNotifyTime: make(map[string]time.Time),
		minInterval:    5 * time.Second,
		now:            time.Now,
		enabled:        true,
	}
}

// SetEnabled enables or disables notices.
func (n *InternalNotifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// SetMinInterval sets the minimum interval between notices with the same key.
func (n *InternalNotifier) SetMinInterval(interval time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.minInterval = interval
}

// SetChannel changes the channel notices are posted on.
func (n *InternalNotifier) SetChannel(channelID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.channelID = channelID
}

// Notify posts a notice unless one with the same key was posted within the
// minimum interval. Every notice replaces the previous one.
func (n *InternalNotifier) Notify(ctx context.Context, key, title, text string, level NotificationLevel) {
	n.mu.Lock()
	if !n.enabled || n.poster == nil {
		n.mu.Unlock()
		n.logger.Debug("internal notification skipped", "title", title)
		return
	}

	now := n.now()
	if last, ok := n.lastNotifyTime[key]; ok && now.Sub(last) < n.minInterval {
		n.mu.Unlock()
		n.logger.Debug("internal notification rate-limited", "key", key, "title", title)
		return
	}
	n.lastNotifyTime[key] = now
	channelID := n.channelID
	n.mu.Unlock()

	notice, err := model.NewNotification(NoticeID, channelID)
	if err != nil {
		n.logger.Warn("failed to create internal notification", "error", err)
		return
	}
	notice.Title = title
	notice.Text = text
	notice.Style = model.StyleKindBigText
	notice.BigText = text
	notice.Category = model.CategoryService
	notice.AutoCancel = true

	switch level {
	case NotificationLevelInfo:
		notice.SmallIcon = "dialog-information"
		notice.Priority = model.PriorityLow
	case NotificationLevelWarning:
		notice.SmallIcon = "dialog-warning"
		notice.Priority = model.PriorityDefault
	case NotificationLevelError:
		notice.SmallIcon = "dialog-error"
		notice.Priority = model.PriorityHigh
	}

	n.logger.Debug("sending internal notification", "key", key, "title", title, "level", level)
	if err := n.poster.Post(ctx, notice); err != nil {
		n.logger.Warn("failed to post internal notification", "key", key, "error", err)
	}
}

// NotifyConfigReloaded posts a notice about the config being reloaded.
func (n *InternalNotifier) NotifyConfigReloaded(ctx context.Context) {
	n.Notify(ctx,
		"config-reload",
		"Configuration Reloaded",
		"livenotifyd configuration has been successfully reloaded.",
		NotificationLevelInfo,
	)
}

// NotifyConfigError posts a notice about a rejected config reload.
func (n *InternalNotifier) NotifyConfigError(ctx context.Context, err error) {
	n.Notify(ctx,
		"config-error",
		"Configuration Error",
		"Failed to reload configuration: "+err.Error(),
		NotificationLevelWarning,
	)
}

// NotifyTemplateError posts a notice about a failed template reload.
func (n *InternalNotifier) NotifyTemplateError(ctx context.Context, err error) {
	n.Notify(ctx,
		"template-error",
		"Template Error",
		"Failed to reload layout templates: "+err.Error(),
		NotificationLevelWarning,
	)
}
