package imaging

import (
	"fmt"
	"image/color"
)

// Color is a packed 0xAARRGGBB color as sent by embedding applications.
type Color uint32

// ColorFromInt converts a signed 32- or 64-bit wire value into a Color.
// Only the low 32 bits are significant.
func ColorFromInt(v int64) Color {
	return Color(uint32(v))
}

// A returns the alpha channel.
func (c Color) A() uint8 { return uint8(c >> 24) }

// R returns the red channel.
func (c Color) R() uint8 { return uint8(c >> 16) }

// G returns the green channel.
func (c Color) G() uint8 { return uint8(c >> 8) }

// B returns the blue channel.
func (c Color) B() uint8 { return uint8(c) }

// NRGBA converts the color to a non-premultiplied image color.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{R: c.R(), G: c.G(), B: c.B(), A: c.A()}
}

// Hex returns the color as #RRGGBB, dropping alpha.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R(), c.G(), c.B())
}

// String returns the color as #AARRGGBB.
func (c Color) String() string {
	return fmt.Sprintf("#%08X", uint32(c))
}
