package dbus

import (
	"image"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/livenotify/internal/imaging"
	"github.com/jmylchreest/livenotify/internal/layout"
	"github.com/jmylchreest/livenotify/internal/model"
)

const (
	// FreedesktopInterface is the notification server interface name.
	FreedesktopInterface = "org.freedesktop.Notifications"
	// FreedesktopPath is the notification server object path.
	FreedesktopPath = "/org/freedesktop/Notifications"
	// FreedesktopBusName is the notification server bus name.
	FreedesktopBusName = "org.freedesktop.Notifications"
)

// CloseReason represents the reason for closing a notification.
// These values are defined by the freedesktop.org notification specification.
type CloseReason uint32

const (
	CloseReasonExpired   CloseReason = 1
	CloseReasonDismissed CloseReason = 2
	CloseReasonClosed    CloseReason = 3
	CloseReasonUndefined CloseReason = 4
)

// String returns the string representation of the close reason.
func (r CloseReason) String() string {
	switch r {
	case CloseReasonExpired:
		return "expired"
	case CloseReasonDismissed:
		return "dismissed"
	case CloseReasonClosed:
		return "closed"
	case CloseReasonUndefined:
		return "undefined"
	default:
		return "unknown"
	}
}

// Action keys sent to the notification server.
const (
	ActionKeyDefault = "default"
	ActionKeyAnswer  = "answer"
	ActionKeyDecline = "decline"
)

// Urgency levels of the urgency hint.
const (
	UrgencyLow      byte = 0
	UrgencyNormal   byte = 1
	UrgencyCritical byte = 2
)

// Expire timeouts.
const (
	ExpireDefault int32 = -1
	ExpireNever   int32 = 0
)

// NotifyCall holds the arguments of one org.freedesktop.Notifications.Notify
// call.
type NotifyCall struct {
	AppName       string
	ReplacesID    uint32
	AppIcon       string
	Summary       string
	Body          string
	Actions       []string // Alternating key, label pairs
	Hints         map[string]dbus.Variant
	ExpireTimeout int32
}

// Args returns the call arguments in wire order.
func (c *NotifyCall) Args() []any {
	return []any{
		c.AppName,
		c.ReplacesID,
		c.AppIcon,
		c.Summary,
		c.Body,
		c.Actions,
		c.Hints,
		c.ExpireTimeout,
	}
}

// ActionKeys returns the action keys of the call.
func (c *NotifyCall) ActionKeys() []string {
	keys := make([]string, 0, len(c.Actions)/2)
	for i := 0; i+1 < len(c.Actions); i += 2 {
		keys = append(keys, c.Actions[i])
	}
	return keys
}

// BuildNotify converts a composed notification into Notify arguments.
// replacesID is the server id the notification was last posted under, or 0.
func BuildNotify(n *model.Notification, appName string, replacesID uint32) *NotifyCall {
	call := &NotifyCall{
		AppName:       appName,
		ReplacesID:    replacesID,
		AppIcon:       n.SmallIcon,
		Summary:       n.Title,
		Body:          bodyFor(n),
		Hints:         make(map[string]dbus.Variant),
		ExpireTimeout: ExpireDefault,
	}

	if n.ContentIntent != nil {
		call.Actions = append(call.Actions, ActionKeyDefault, "Open")
	}
	if n.Call != nil {
		if n.Call.Caller.Name != "" {
			call.Summary = n.Call.Caller.Name
		}
		call.Actions = append(call.Actions,
			ActionKeyDecline, "Decline",
			ActionKeyAnswer, "Answer",
		)
	}

	call.Hints["urgency"] = dbus.MakeVariant(urgencyFor(n.Priority))
	if category := categoryFor(n.Category); category != "" {
		call.Hints["category"] = dbus.MakeVariant(category)
	}
	if appName != "" {
		call.Hints["desktop-entry"] = dbus.MakeVariant(appName)
	}
	if n.Ongoing {
		call.Hints["resident"] = dbus.MakeVariant(true)
		call.ExpireTimeout = ExpireNever
	}
	if value, ok := progressValue(n); ok {
		call.Hints["value"] = dbus.MakeVariant(value)
	}
	if img := imageFor(n); img != nil {
		call.Hints["image-data"] = dbus.MakeVariant(imaging.ToImageData(img))
	}
	if n.SubText != "" {
		call.Hints["x-livenotify-subtext"] = dbus.MakeVariant(n.SubText)
	}
	if n.RenderID != "" {
		call.Hints["x-livenotify-render-id"] = dbus.MakeVariant(n.RenderID)
	}
	return call
}

// ActionFor maps a server action key to the intent action it triggers.
func ActionFor(key string) (string, bool) {
	switch key {
	case ActionKeyDefault:
		return model.ActionTap, true
	case ActionKeyAnswer:
		return model.ActionAnswer, true
	case ActionKeyDecline:
		return model.ActionDecline, true
	default:
		return "", false
	}
}

func bodyFor(n *model.Notification) string {
	if n.CustomView != nil {
		return customViewText(n.CustomView)
	}
	if n.BigText != "" {
		return n.BigText
	}
	return n.Text
}

// customViewText joins the bound text slots in template order.
func customViewText(v *layout.BoundView) string {
	var lines []string
	for _, s := range v.Slots {
		if s.Text != nil && *s.Text != "" {
			lines = append(lines, *s.Text)
		}
	}
	return strings.Join(lines, "\n")
}

func urgencyFor(p model.Priority) byte {
	switch {
	case p >= model.PriorityMax:
		return UrgencyCritical
	case p <= model.PriorityLow:
		return UrgencyLow
	default:
		return UrgencyNormal
	}
}

func categoryFor(c model.Category) string {
	switch c {
	case model.CategoryCall:
		return "call"
	case model.CategoryProgress:
		return "transfer"
	default:
		return ""
	}
}

// progressValue returns the progress hint value in percent.
func progressValue(n *model.Notification) (int32, bool) {
	switch {
	case n.Segmented != nil:
		total := n.Segmented.Max()
		if total <= 0 {
			return 0, false
		}
		return percent(n.Segmented.Value, total), true
	case n.Progress != nil && !n.Progress.Indeterminate:
		return int32(n.Progress.Fraction() * 100), true
	default:
		return 0, false
	}
}

func percent(value, total int) int32 {
	p := value * 100 / total
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return int32(p)
}

// imageFor picks the image shown next to the notification: the large icon,
// else the first bound image slot.
func imageFor(n *model.Notification) image.Image {
	if n.LargeIcon != nil {
		return n.LargeIcon
	}
	if n.CustomView != nil {
		for _, s := range n.CustomView.Slots {
			if s.Image != nil {
				return s.Image
			}
		}
	}
	return nil
}

// ServerInfo contains information about the notification server.
type ServerInfo struct {
	Name        string
	Vendor      string
	Version     string
	SpecVersion string
}
