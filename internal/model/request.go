package model

import (
	"github.com/jmylchreest/livenotify/internal/layout"
	"github.com/jmylchreest/livenotify/internal/progress"
)

// Style is the presentation style requested by the embedding application.
type Style string

const (
	StylePlain    Style = "plain"
	StyleProgress Style = "progress"
	StyleCall     Style = "call"
)

// ParseStyle maps a wire style name to a Style. Unknown and empty names map
// to StylePlain.
func ParseStyle(s string) Style {
	switch Style(s) {
	case StyleProgress:
		return StyleProgress
	case StyleCall:
		return StyleCall
	default:
		return StylePlain
	}
}

// Common request defaults.
const (
	DefaultOngoing     = true
	DefaultProgressMax = 100
)

// BoundRequest asks for a notification rendered from a view template.
type BoundRequest struct {
	ID        int32
	Template  string
	Bindings  []layout.Descriptor
	Ongoing   bool
	Payload   *string
	SmallIcon string
	Title     string
}

// ProgressParams are the style parameters of StyleProgress.
type ProgressParams struct {
	Value         int
	Max           int
	Indeterminate bool
	Segments      []progress.Segment
	Points        []progress.Point
	TrackerIcon   []byte
}

// StyledRequest asks for a notification in one of the built-in styles.
type StyledRequest struct {
	ID         int32
	Title      string
	Text       string
	Ongoing    bool
	Payload    *string
	Style      Style
	SubText    string
	LargeIcon  []byte
	FullScreen bool
	Progress   ProgressParams
}
