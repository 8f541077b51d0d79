// Package units converts device-independent values into device pixels.
package units

import "math"

// DefaultDensity is the density of a baseline (mdpi) display: 1dp == 1px.
const DefaultDensity = 1.0

// DisplayMetrics describes the display a notification is rendered for.
type DisplayMetrics struct {
	// Density is the pixels-per-dp scale factor (e.g. 2.0 for xhdpi).
	Density float64
}

// DefaultMetrics returns metrics for a baseline display.
func DefaultMetrics() DisplayMetrics {
	return DisplayMetrics{Density: DefaultDensity}
}

// ToPixels converts a device-independent value into whole device pixels.
// The scaled value is truncated toward zero. NaN yields 0 and values outside
// the int32 range clamp to its bounds.
func ToPixels(dp float64, metrics DisplayMetrics) int {
	px := ToPixelsF(dp, metrics)
	switch {
	case math.IsNaN(px):
		return 0
	case px >= math.MaxInt32:
		return math.MaxInt32
	case px <= math.MinInt32:
		return math.MinInt32
	}
	return int(px)
}

// ToPixelsF converts a device-independent value into fractional device pixels.
func ToPixelsF(dp float64, metrics DisplayMetrics) float64 {
	return dp * metrics.Density
}
