package imaging

import (
	"image"
	"image/draw"
)

// ImageData is the raw pixel layout of the freedesktop "image-data" hint,
// D-Bus signature (iiibiiay). Field order matters for marshaling.
type ImageData struct {
	Width         int32
	Height        int32
	RowStride     int32
	HasAlpha      bool
	BitsPerSample int32
	Channels      int32
	Data          []byte
}

// ToImageData converts img into non-premultiplied RGBA rows.
func ToImageData(img image.Image) ImageData {
	b := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Rect.Min != (image.Point{}) || nrgba.Stride != 4*b.Dx() {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}
	return ImageData{
		Width:         int32(b.Dx()),
		Height:        int32(b.Dy()),
		RowStride:     int32(nrgba.Stride),
		HasAlpha:      true,
		BitsPerSample: 8,
		Channels:      4,
		Data:          nrgba.Pix,
	}
}
