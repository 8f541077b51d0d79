// Package imaging decodes PNG, JPEG, GIF, WebP and BMP payloads, resamples
// them to exact pixel sizes with golang.org/x/image/draw, and converts images
// into the freedesktop image-data layout.
package imaging
