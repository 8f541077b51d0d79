// Package imaging decodes raw image payloads and rescales them to exact
// pixel sizes for notification slots and icons.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	// Register the decoders accepted in notification payloads.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	// ErrDecode is returned when bytes do not parse as a supported raster format.
	ErrDecode = errors.New("unsupported or malformed image data")
	// ErrInvalidSize is returned when a scale target has a non-positive
	// dimension or exceeds MaxPixels.
	ErrInvalidSize = errors.New("invalid target size")
)

// MaxPixels bounds the pixel count of decoded and scaled images, 4096x4096.
const MaxPixels = 4096 * 4096

func withinBudget(width, height int) bool {
	return int64(width)*int64(height) <= MaxPixels
}

// Size is a target size in device pixels.
type Size struct {
	Width  int
	Height int
}

// String returns the size formatted as WxH.
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Decode parses raw image bytes. The format name is returned for diagnostics.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty payload", ErrDecode)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if !withinBudget(cfg.Width, cfg.Height) {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, MaxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, format, nil
}

// Scale resamples img to exactly the given size using bilinear filtering.
func Scale(img image.Image, target Size) (image.Image, error) {
	if target.Width <= 0 || target.Height <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSize, target)
	}
	if !withinBudget(target.Width, target.Height) {
		return nil, fmt.Errorf("%w: %s exceeds %d pixels", ErrInvalidSize, target, MaxPixels)
	}
	dst := image.NewRGBA(image.Rect(0, 0, target.Width, target.Height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst, nil
}

// DecodeAndScale decodes data and, when target is non-nil, rescales the
// result to exactly that size. A nil target returns the decoded image as-is.
func DecodeAndScale(data []byte, target *Size) (image.Image, error) {
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return img, nil
	}
	return Scale(img, *target)
}
