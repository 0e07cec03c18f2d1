// Package preview renders flattened composites, annotation overlays, and
// thumbnails for layered documents.
package preview

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"

	"layer-anything/internal/layer"
	"layer-anything/pkg/geometry"
	"layer-anything/pkg/rle"
)

// Renderer flattens a layer stack onto a canvas the size of the source image.
type Renderer struct {
	Source    image.Image
	Width     int
	Height    int
	BackColor color.Color
}

// NewRenderer creates a Renderer for the given source image.
func NewRenderer(src image.Image) *Renderer {
	b := src.Bounds()
	return &Renderer{
		Source:    src,
		Width:     b.Dx(),
		Height:    b.Dy(),
		BackColor: color.RGBA{255, 255, 255, 255}, // White canvas
	}
}

// Render produces the flattened image. Layers must be ordered bottom to top;
// hidden and fully transparent layers are skipped.
func (r *Renderer) Render(layers []*layer.Layer) *image.RGBA {
	result := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))

	// Fill canvas
	draw.Draw(result, result.Bounds(), &image.Uniform{r.BackColor}, image.Point{}, draw.Src)

	for _, l := range layers {
		if l == nil || !l.Visible || l.Opacity <= 0 {
			continue
		}
		r.drawLayer(result, l)
	}

	return result
}

// drawLayer blends a single layer onto the result at its current transform.
func (r *Renderer) drawLayer(dst *image.RGBA, l *layer.Layer) {
	patch := r.layerPatch(l)
	if patch == nil {
		return
	}

	target := l.CurrentBBox().Round()
	if target.Width <= 0 || target.Height <= 0 {
		return
	}

	pb := patch.Bounds()
	if pb.Dx() != target.Width || pb.Dy() != target.Height {
		patch = imaging.Resize(patch, target.Width, target.Height, imaging.Lanczos)
	}

	r.blendPatch(dst, patch, target.X, target.Y, l.Opacity)
}

// layerPatch cuts the layer's pixels out of the source image. Object layers
// with a mask become transparent outside the mask.
func (r *Renderer) layerPatch(l *layer.Layer) image.Image {
	region := imageRect(l.BBox.Round()).Intersect(r.Source.Bounds())
	if region.Empty() {
		return nil
	}

	if l.Type == layer.TypeObject && l.Mask != nil {
		return cutout(r.Source, l.Mask, region)
	}
	return imaging.Crop(r.Source, region)
}

// blendPatch composites the patch onto dst at the given offset.
func (r *Renderer) blendPatch(dst *image.RGBA, patch image.Image, offsetX, offsetY int, opacity float64) {
	b := patch.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		dstY := y - b.Min.Y + offsetY
		if dstY < 0 || dstY >= r.Height {
			continue
		}

		for x := b.Min.X; x < b.Max.X; x++ {
			dstX := x - b.Min.X + offsetX
			if dstX < 0 || dstX >= r.Width {
				continue
			}

			dst.Set(dstX, dstY, blendPixel(dst.At(dstX, dstY), patch.At(x, y), opacity))
		}
	}
}

// blendPixel performs normal alpha blending of src over dst.
func blendPixel(dst, src color.Color, opacity float64) color.RGBA {
	sr, sg, sb, sa := src.RGBA()
	dr, dg, db, da := dst.RGBA()

	// Convert to 0-1 range
	sf := [4]float64{float64(sr) / 65535.0, float64(sg) / 65535.0, float64(sb) / 65535.0, float64(sa) / 65535.0}
	df := [4]float64{float64(dr) / 65535.0, float64(dg) / 65535.0, float64(db) / 65535.0, float64(da) / 65535.0}

	alpha := sf[3] * opacity
	finalR := sf[0]*alpha + df[0]*(1-alpha)
	finalG := sf[1]*alpha + df[1]*(1-alpha)
	finalB := sf[2]*alpha + df[2]*(1-alpha)
	finalA := alpha + df[3]*(1-alpha)

	return color.RGBA{
		R: uint8(clamp(finalR, 0, 1) * 255),
		G: uint8(clamp(finalG, 0, 1) * 255),
		B: uint8(clamp(finalB, 0, 1) * 255),
		A: uint8(clamp(finalA, 0, 1) * 255),
	}
}

// cutout copies the region of img covered by the mask into a zero-based NRGBA,
// leaving unmasked pixels fully transparent.
func cutout(img image.Image, mask *rle.Mask, region image.Rectangle) *image.NRGBA {
	alpha := mask.Decode()
	out := image.NewNRGBA(image.Rect(0, 0, region.Dx(), region.Dy()))

	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			if alpha.AlphaAt(x, y).A == 0 {
				continue
			}
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out.SetNRGBA(x-region.Min.X, y-region.Min.Y, c)
		}
	}

	return out
}

// imageRect converts a geometry rectangle to the stdlib representation.
func imageRect(r geometry.RectInt) image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func clamp(x, min, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
