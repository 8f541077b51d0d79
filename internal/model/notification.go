// Package model defines the notification representations shared by the
// composer, the hosts and the transports.
package model

import (
	"crypto/rand"
	"fmt"
	"image"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/livenotify/internal/layout"
	"github.com/jmylchreest/livenotify/internal/progress"
)

// Category classifies a notification for the host.
type Category string

const (
	CategoryService  Category = "service"
	CategoryProgress Category = "progress"
	CategoryCall     Category = "call"
)

// Priority is the display priority of a notification.
type Priority int

const (
	PriorityMin     Priority = -2
	PriorityLow     Priority = -1
	PriorityDefault Priority = 0
	PriorityHigh    Priority = 1
	PriorityMax     Priority = 2
)

// String returns the string representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityMin:
		return "min"
	case PriorityLow:
		return "low"
	case PriorityDefault:
		return "default"
	case PriorityHigh:
		return "high"
	case PriorityMax:
		return "max"
	default:
		return "unknown"
	}
}

// StyleKind is the presentation style a composed notification carries.
type StyleKind string

const (
	StyleKindBigText           StyleKind = "big-text"
	StyleKindProgress          StyleKind = "progress"
	StyleKindSegmentedProgress StyleKind = "segmented-progress"
	StyleKindCall              StyleKind = "call"
	StyleKindCustomView        StyleKind = "custom-view"
)

// Intent actions carried by call style targets.
const (
	ActionTap     = ""
	ActionAnswer  = "ANSWER"
	ActionDecline = "DECLINE"
)

// Intent is a tap target. RequestCode keeps targets of one notification from
// colliding with each other and with other notifications.
type Intent struct {
	RequestCode int32
	Action      string
	// Payload is nil when no payload was supplied.
	Payload *string
}

// Person identifies the remote party of a call.
type Person struct {
	Name string
}

// LinearProgress is a plain progress indicator.
type LinearProgress struct {
	Value         int
	Max           int
	Indeterminate bool
}

// Fraction returns Value/Max clamped to [0,1]. Indeterminate progress and a
// non-positive Max return 0.
func (p LinearProgress) Fraction() float64 {
	if p.Indeterminate || p.Max <= 0 {
		return 0
	}
	f := float64(p.Value) / float64(p.Max)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// CallStyle is the incoming-call presentation.
type CallStyle struct {
	Caller  Person
	Answer  Intent
	Decline Intent
}

// Notification is a fully composed notification ready to be posted.
type Notification struct {
	// ID is the replace key in the host registry.
	ID int32
	// RenderID uniquely identifies one render call, for diagnostics.
	RenderID  string
	ChannelID string
	CreatedAt time.Time

	Title     string
	Text      string
	SubText   string
	SmallIcon string
	LargeIcon image.Image

	Category Category
	Priority Priority

	// Ongoing notifications cannot be swiped away.
	Ongoing bool
	// AutoCancel removes the notification when it is tapped.
	AutoCancel bool

	ContentIntent    *Intent
	FullScreenIntent *Intent

	Style      StyleKind
	BigText    string
	Progress   *LinearProgress
	Segmented  *progress.Model
	Call       *CallStyle
	CustomView *layout.BoundView

	// PromotedOngoing asks the host to promote an ongoing notification.
	PromotedOngoing bool
	// Degraded is set when a preferred treatment was unavailable and a
	// lesser one was used.
	Degraded bool
}

// NewNotification creates a Notification with a generated render ID.
func NewNotification(id int32, channelID string) (*Notification, error) {
	renderID, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ULID: %w", err)
	}

	return &Notification{
		ID:        id,
		RenderID:  renderID.String(),
		ChannelID: channelID,
		CreatedAt: time.Now(),
		Priority:  PriorityDefault,
	}, nil
}

// Intents returns every tap target on the notification.
func (n *Notification) Intents() []Intent {
	var intents []Intent
	if n.ContentIntent != nil {
		intents = append(intents, *n.ContentIntent)
	}
	if n.Call != nil {
		intents = append(intents, n.Call.Decline, n.Call.Answer)
	}
	if n.FullScreenIntent != nil {
		intents = append(intents, *n.FullScreenIntent)
	}
	return intents
}

// Clone returns a shallow copy with its own top-level struct fields.
// Composed sub-objects are shared; they are never mutated after posting.
func (n *Notification) Clone() *Notification {
	clone := *n
	return &clone
}
