// Package viewport maps between canvas display coordinates and source-image
// pixel coordinates for an image fitted inside a canvas.
package viewport

import (
	"fmt"

	"layer-anything/pkg/geometry"
)

// Transform describes how a source image is fitted and centered inside a
// canvas: image coordinates scale by Scale and shift by the offsets to land
// in canvas space.
type Transform struct {
	Scale   float64 `json:"scale"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
}

// Fit computes the transform for an image displayed inside a canvas using a
// fit-inside, centered policy: the image is scaled uniformly to the largest
// size that fits without cropping, and centered on the axis with slack.
// Offsets are never negative.
func Fit(image, canvas geometry.Size) (Transform, error) {
	if !image.Positive() {
		return Transform{}, fmt.Errorf("viewport: invalid image size %gx%g", image.Width, image.Height)
	}
	if !canvas.Positive() {
		return Transform{}, fmt.Errorf("viewport: invalid canvas size %gx%g", canvas.Width, canvas.Height)
	}

	scale := canvas.Width / image.Width
	if s := canvas.Height / image.Height; s < scale {
		scale = s
	}

	offsetX := (canvas.Width - image.Width*scale) / 2
	offsetY := (canvas.Height - image.Height*scale) / 2
	if offsetX < 0 {
		offsetX = 0
	}
	if offsetY < 0 {
		offsetY = 0
	}

	return Transform{Scale: scale, OffsetX: offsetX, OffsetY: offsetY}, nil
}

// CanvasToImage converts a canvas point to image pixel coordinates. The
// result is not clamped; callers needing in-bounds points must range-check.
func (t Transform) CanvasToImage(p geometry.Point2D) geometry.Point2D {
	return geometry.Point2D{
		X: (p.X - t.OffsetX) / t.Scale,
		Y: (p.Y - t.OffsetY) / t.Scale,
	}
}

// ImageToCanvas converts an image pixel point to canvas coordinates.
func (t Transform) ImageToCanvas(p geometry.Point2D) geometry.Point2D {
	return geometry.Point2D{
		X: p.X*t.Scale + t.OffsetX,
		Y: p.Y*t.Scale + t.OffsetY,
	}
}

// CanvasRectToImage converts a canvas rectangle to image space: the origin
// goes through the point transform, width and height divide by the scale.
func (t Transform) CanvasRectToImage(r geometry.Rect) geometry.Rect {
	origin := t.CanvasToImage(geometry.Point2D{X: r.X, Y: r.Y})
	return geometry.Rect{
		X:      origin.X,
		Y:      origin.Y,
		Width:  r.Width / t.Scale,
		Height: r.Height / t.Scale,
	}
}

// ImageRectToCanvas converts an image rectangle to canvas space.
func (t Transform) ImageRectToCanvas(r geometry.Rect) geometry.Rect {
	origin := t.ImageToCanvas(geometry.Point2D{X: r.X, Y: r.Y})
	return geometry.Rect{
		X:      origin.X,
		Y:      origin.Y,
		Width:  r.Width * t.Scale,
		Height: r.Height * t.Scale,
	}
}
