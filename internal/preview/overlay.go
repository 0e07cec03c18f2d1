package preview

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"layer-anything/internal/layer"
	"layer-anything/pkg/colorutil"
	"layer-anything/pkg/geometry"
	"layer-anything/pkg/rle"
)

// OverlayOptions controls annotation rendering.
type OverlayOptions struct {
	Selected string  // layer id drawn highlighted
	MaskTint float64 // 0-1 tint strength for object masks, 0 disables tinting
	Stroke   int     // outline width in pixels, 0 derives one from the image size
}

// Overlay draws layer outlines, and optionally mask tints, over the source
// image. The background layer and hidden layers are skipped.
func Overlay(src image.Image, layers []*layer.Layer, opts OverlayOptions) image.Image {
	nrgba := imaging.Clone(src)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	stroke := opts.Stroke
	if stroke <= 0 {
		stroke = int(math.Max(2, 0.004*float64(min(w, h)))) // ~0.4% of min side
	}

	for _, l := range layers {
		if l == nil || l.Type == layer.TypeBackground || !l.Visible {
			continue
		}

		c := overlayColor(l, opts.Selected)
		if opts.MaskTint > 0 && l.Mask != nil {
			tintMask(nrgba, l.Mask, c, opts.MaskTint)
		}
		drawRect(nrgba, l.CurrentBBox().Round(), c, stroke)
	}

	return nrgba
}

// overlayColor picks the outline color for a layer.
func overlayColor(l *layer.Layer, selected string) color.RGBA {
	switch {
	case l.ID == selected:
		return colorutil.Yellow
	case l.Locked:
		return colorutil.Magenta
	case l.Type == layer.TypeText:
		return colorutil.Cyan
	default:
		return colorutil.Green
	}
}

// tintMask blends the color into every masked pixel at its original location.
func tintMask(img *image.NRGBA, mask *rle.Mask, c color.RGBA, strength float64) {
	strength = clamp(strength, 0, 1)
	alpha := mask.Decode()
	bounds := imageRect(mask.Bounds()).Intersect(img.Bounds())

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if alpha.AlphaAt(x, y).A == 0 {
				continue
			}
			i := img.PixOffset(x, y)
			img.Pix[i+0] = mixChannel(img.Pix[i+0], c.R, strength)
			img.Pix[i+1] = mixChannel(img.Pix[i+1], c.G, strength)
			img.Pix[i+2] = mixChannel(img.Pix[i+2], c.B, strength)
		}
	}
}

func mixChannel(base, tint uint8, strength float64) uint8 {
	return uint8(float64(base)*(1-strength) + float64(tint)*strength)
}

// drawRect draws a rectangle outline with the given stroke width.
func drawRect(img *image.NRGBA, r geometry.RectInt, c color.RGBA, stroke int) {
	x0, y0 := r.X, r.Y
	x1, y1 := r.X+r.Width, r.Y+r.Height
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.RGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.RGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	for y := y0; y < y1; y++ {
		i := y*img.Stride + x*4
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
}
