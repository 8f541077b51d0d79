// Package progress builds segmented progress models for notifications.
package progress

import (
	"image"
	"log/slog"

	"github.com/jmylchreest/livenotify/internal/imaging"
)

// Segment is a run of the progress track. Lengths accumulate along the
// track, so the track spans 0..sum(lengths).
type Segment struct {
	Length int
	// Color is nil when the host default should be used.
	Color *imaging.Color
}

// Point is a marker on the progress track.
type Point struct {
	Position int
	Color    *imaging.Color
}

// Model is a segmented progress representation. Segment and point order is
// the left-to-right visual order.
type Model struct {
	Value       int
	Segments    []Segment
	Points      []Point
	TrackerIcon image.Image
}

// Max returns the track length, the sum of all segment lengths.
func (m *Model) Max() int {
	total := 0
	for _, s := range m.Segments {
		total += s.Length
	}
	return total
}

// Build assembles a Model. Input order is preserved exactly. The tracker
// icon is decoded if present; a decode failure leaves the model without a
// tracker icon.
func Build(value int, segments []Segment, points []Point, trackerIcon []byte, logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Model{
		Value:    value,
		Segments: append([]Segment(nil), segments...),
		Points:   append([]Point(nil), points...),
	}

	if trackerIcon != nil {
		img, _, err := imaging.Decode(trackerIcon)
		if err != nil {
			logger.Debug("ignoring undecodable progress tracker icon", "error", err)
		} else {
			m.TrackerIcon = img
		}
	}

	return m
}
