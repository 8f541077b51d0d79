// Package compose turns notification requests into composed notifications,
// selecting one presentation style per request, and posts them to a host.
package compose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/jmylchreest/livenotify/internal/imaging"
	"github.com/jmylchreest/livenotify/internal/layout"
	"github.com/jmylchreest/livenotify/internal/model"
	"github.com/jmylchreest/livenotify/internal/progress"
	"github.com/jmylchreest/livenotify/internal/units"
)

// Host versions that gate style features.
const (
	// VersionCallPresence is the first host version that only grants the
	// call treatment to apps holding a foreground presence.
	VersionCallPresence = 31
	// VersionPromotedOngoing is the first host version that can promote
	// ongoing notifications.
	VersionPromotedOngoing = 34
	// VersionSegmentedProgress is the first host version with segmented
	// progress support.
	VersionSegmentedProgress = 35
)

// Request code offsets for secondary targets, added to the notification id.
const (
	declineOffset    = 2
	answerOffset     = 3
	fullScreenOffset = 300
)

// MaxNotificationID is the largest id whose request codes stay in range.
const MaxNotificationID = math.MaxInt32 - fullScreenOffset

var (
	// ErrReservedID is returned for ids used by livenotifyd's own notifications.
	ErrReservedID = errors.New("notification id is reserved")
	// ErrIDOutOfRange is returned for ids above MaxNotificationID.
	ErrIDOutOfRange = errors.New("notification id out of range")
)

// CheckID reports whether embedding apps may use id.
func CheckID(id int32) error {
	switch {
	case id == CompanionID || id == NoticeID:
		return fmt.Errorf("%w: %d", ErrReservedID, id)
	case id > MaxNotificationID:
		return fmt.Errorf("%w: %d > %d", ErrIDOutOfRange, id, MaxNotificationID)
	}
	return nil
}

const (
	// DefaultChannelID is the channel notifications are posted on.
	DefaultChannelID = "live_updates_channel"
	// DefaultSmallIcon is used when no small icon is named or the name is unknown.
	DefaultSmallIcon = "dialog-information"
)

// ErrUnknownTemplate is returned when a bound request names no known template.
var ErrUnknownTemplate = errors.New("layout template not found")

// Poster is the host notification service.
type Poster interface {
	Post(ctx context.Context, n *model.Notification) error
	Cancel(ctx context.Context, id int32) error
}

// Presence is a foreground-presence registration required by some hosts
// before they grant the call treatment.
type Presence interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// HostInfo describes the capabilities of the host.
type HostInfo struct {
	Version int
}

// Options configures a Composer.
type Options struct {
	Host      HostInfo
	ChannelID string
	Metrics   units.DisplayMetrics
	// Icons maps small icon names used by embedding apps to host icon references.
	Icons map[string]string
}

// DefaultOptions returns options for a current host with baseline density.
func DefaultOptions() Options {
	return Options{
		Host:      HostInfo{Version: VersionSegmentedProgress},
		ChannelID: DefaultChannelID,
		Metrics:   units.DefaultMetrics(),
	}
}

// Composer builds and posts notifications.
type Composer struct {
	poster    Poster
	templates layout.Resolver
	binder    *layout.Binder
	logger    *slog.Logger

	mu       sync.RWMutex
	opts     Options
	presence Presence
	calls    map[int32]bool // Call notifications holding the presence.
}

// New creates a Composer posting to poster and resolving bound templates
// through templates.
func New(poster Poster, templates layout.Resolver, opts Options, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ChannelID == "" {
		opts.ChannelID = DefaultChannelID
	}
	if opts.Metrics.Density == 0 {
		opts.Metrics = units.DefaultMetrics()
	}
	return &Composer{
		poster:    poster,
		templates: templates,
		binder:    layout.NewBinder(logger),
		logger:    logger,
		opts:      opts,
		calls:     make(map[int32]bool),
	}
}

// SetPresence sets the foreground presence used for call notifications.
// A nil presence means the host has none.
func (c *Composer) SetPresence(p Presence) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presence = p
}

// UpdateOptions replaces the composer options, e.g. after a config reload.
func (c *Composer) UpdateOptions(opts Options) {
	if opts.ChannelID == "" {
		opts.ChannelID = DefaultChannelID
	}
	if opts.Metrics.Density == 0 {
		opts.Metrics = units.DefaultMetrics()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts = opts
}

func (c *Composer) options() Options {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.opts
}

// ComposeBound builds a custom-view notification from a template.
func (c *Composer) ComposeBound(req model.BoundRequest) (*model.Notification, error) {
	opts := c.options()

	tmpl, ok := c.templates.Lookup(req.Template)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, req.Template)
	}

	n, err := model.NewNotification(req.ID, opts.ChannelID)
	if err != nil {
		return nil, err
	}

	n.Title = req.Title
	n.SmallIcon = resolveIcon(opts.Icons, req.SmallIcon)
	n.Style = model.StyleKindCustomView
	n.CustomView = c.binder.Bind(tmpl, req.Bindings, opts.Metrics)
	n.Priority = model.PriorityMax
	n.Category = model.CategoryCall
	applyTapBehavior(n, req.ID, req.Ongoing, req.Payload)

	return n, nil
}

// RenderBound composes and posts a custom-view notification. An unknown
// template is logged and nothing is posted.
func (c *Composer) RenderBound(ctx context.Context, req model.BoundRequest) error {
	n, err := c.ComposeBound(req)
	if errors.Is(err, ErrUnknownTemplate) {
		c.logger.Error("layout template not found", "template", req.Template, "id", req.ID)
		return nil
	}
	if err != nil {
		return err
	}
	if err := c.post(ctx, n); err != nil {
		return err
	}
	c.releaseCall(ctx, n.ID)
	return nil
}

// ComposeStyled builds a notification in the requested style. It has no
// side effects; the call presence is handled by RenderStyled.
func (c *Composer) ComposeStyled(req model.StyledRequest) (*model.Notification, error) {
	opts := c.options()

	n, err := model.NewNotification(req.ID, opts.ChannelID)
	if err != nil {
		return nil, err
	}

	n.Title = req.Title
	n.Text = req.Text
	n.SubText = req.SubText
	n.SmallIcon = DefaultSmallIcon
	applyTapBehavior(n, req.ID, req.Ongoing, req.Payload)

	if req.LargeIcon != nil {
		if img, _, err := imaging.Decode(req.LargeIcon); err != nil {
			c.logger.Debug("ignoring undecodable large icon", "id", req.ID, "error", err)
		} else {
			n.LargeIcon = img
		}
	}
	if req.FullScreen {
		n.FullScreenIntent = &model.Intent{RequestCode: req.ID + fullScreenOffset}
	}

	switch req.Style {
	case model.StyleProgress:
		if opts.Host.Version >= VersionSegmentedProgress && len(req.Progress.Segments) > 0 {
			c.applySegmented(n, req.Progress)
			// Segmented progress is posted as-is, without the promotion flag.
			return n, nil
		}
		if len(req.Progress.Segments) > 0 {
			c.logger.Debug("segmented progress unsupported by host, using linear progress",
				"id", req.ID, "host_version", opts.Host.Version)
		}
		applyProgress(n, req.Progress)
	case model.StyleCall:
		applyCall(n, req)
	default:
		applyPlain(n, req.Text)
	}

	if opts.Host.Version >= VersionPromotedOngoing {
		n.PromotedOngoing = true
	}
	return n, nil
}

// RenderStyled composes and posts a styled notification. Call notifications
// start the foreground presence on hosts that require it; when the presence
// is unavailable the call is still posted, marked degraded. Replacing a call
// with any other notification gives up its hold on the presence.
func (c *Composer) RenderStyled(ctx context.Context, req model.StyledRequest) error {
	n, err := c.ComposeStyled(req)
	if err != nil {
		return err
	}

	holds, heldBefore := false, c.holdsPresence(n.ID)
	if n.Style == model.StyleKindCall && c.options().Host.Version >= VersionCallPresence {
		if err := c.startPresence(ctx, n.ID); err != nil {
			c.logger.Warn("foreground presence unavailable, posting degraded call notification",
				"id", n.ID, "error", err)
			n.Degraded = true
		} else {
			holds = true
		}
	}

	if err := c.post(ctx, n); err != nil {
		// A failed replace leaves the previous notification showing.
		if holds && !heldBefore {
			c.releaseCall(ctx, n.ID)
		}
		return err
	}
	if !holds {
		c.releaseCall(ctx, n.ID)
	}
	return nil
}

// Cancel removes the notification with the given id. Cancelling the last
// call notification releases the foreground presence.
func (c *Composer) Cancel(ctx context.Context, id int32) error {
	if err := c.poster.Cancel(ctx, id); err != nil {
		return fmt.Errorf("failed to cancel notification %d: %w", id, err)
	}
	c.releaseCall(ctx, id)
	return nil
}

// Removed records that the host removed notification id without a Cancel,
// e.g. auto-cancel on tap or a user dismissal.
func (c *Composer) Removed(ctx context.Context, id int32) {
	c.logger.Debug("notification removed by host", "id", id)
	c.releaseCall(ctx, id)
}

func (c *Composer) holdsPresence(id int32) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calls[id]
}

// releaseCall drops id's hold on the presence and stops the presence when
// no call holds it anymore.
func (c *Composer) releaseCall(ctx context.Context, id int32) {
	c.mu.Lock()
	held := c.calls[id]
	delete(c.calls, id)
	release := held && len(c.calls) == 0
	presence := c.presence
	c.mu.Unlock()

	if release && presence != nil {
		if err := presence.Stop(ctx); err != nil {
			c.logger.Warn("failed to stop foreground presence", "error", err)
		}
	}
}

func (c *Composer) post(ctx context.Context, n *model.Notification) error {
	if err := c.poster.Post(ctx, n); err != nil {
		return fmt.Errorf("failed to post notification %d: %w", n.ID, err)
	}
	c.logger.Debug("notification rendered",
		"id", n.ID,
		"render_id", n.RenderID,
		"style", n.Style,
		"category", n.Category,
		"degraded", n.Degraded,
	)
	return nil
}

func (c *Composer) startPresence(ctx context.Context, id int32) error {
	c.mu.RLock()
	presence := c.presence
	c.mu.RUnlock()

	if presence == nil {
		return errors.New("host has no foreground presence")
	}
	if err := presence.Start(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.calls[id] = true
	c.mu.Unlock()
	return nil
}

func (c *Composer) applySegmented(n *model.Notification, p model.ProgressParams) {
	n.Style = model.StyleKindSegmentedProgress
	n.Category = model.CategoryProgress
	n.Priority = model.PriorityHigh
	n.Segmented = progress.Build(p.Value, p.Segments, p.Points, p.TrackerIcon, c.logger)
}

// applyTapBehavior sets the content target and the dismissal behavior.
func applyTapBehavior(n *model.Notification, id int32, ongoing bool, payload *string) {
	n.Ongoing = ongoing
	n.AutoCancel = !ongoing
	n.ContentIntent = &model.Intent{RequestCode: id, Action: model.ActionTap, Payload: payload}
}

func applyProgress(n *model.Notification, p model.ProgressParams) {
	n.Style = model.StyleKindProgress
	n.Category = model.CategoryProgress
	n.Progress = &model.LinearProgress{
		Value:         p.Value,
		Max:           p.Max,
		Indeterminate: p.Indeterminate,
	}
}

func applyCall(n *model.Notification, req model.StyledRequest) {
	n.Style = model.StyleKindCall
	n.Category = model.CategoryCall
	n.Priority = model.PriorityMax
	n.Call = &model.CallStyle{
		Caller:  model.Person{Name: req.Title},
		Decline: model.Intent{RequestCode: req.ID + declineOffset, Action: model.ActionDecline},
		Answer:  model.Intent{RequestCode: req.ID + answerOffset, Action: model.ActionAnswer},
	}
	if n.FullScreenIntent == nil {
		n.FullScreenIntent = &model.Intent{RequestCode: req.ID + fullScreenOffset}
	}
}

func applyPlain(n *model.Notification, text string) {
	n.Style = model.StyleKindBigText
	n.Category = model.CategoryService
	n.BigText = text
}

// resolveIcon maps an icon name through the configured icon table.
func resolveIcon(icons map[string]string, name string) string {
	if name == "" {
		return DefaultSmallIcon
	}
	if ref, ok := icons[name]; ok && ref != "" {
		return ref
	}
	return DefaultSmallIcon
}
