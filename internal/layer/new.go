package layer

import (
	"math"
	"strings"
	"time"

	"layer-anything/pkg/geometry"
	"layer-anything/pkg/rle"
)

const (
	// maxNameLen bounds layer names derived from OCR text. Longer text
	// is cut at this many runes and marked with an ellipsis.
	maxNameLen = 24

	// fontSizeRatio maps a text bbox height to an estimated point size.
	// Latin glyphs typically occupy about 80% of the line box.
	fontSizeRatio = 0.8

	// lineHeightRatio maps an estimated font size to a line advance.
	lineHeightRatio = 1.2

	defaultFontFamily = "sans-serif"

	// DefaultCategory is used for object layers created without one.
	DefaultCategory = "Object"
)

// TextBlock is the OCR detection input for a text layer: recognized
// text with its bbox in source-image pixels, a confidence in [0, 1],
// and the granularity level the detector segmented at.
type TextBlock struct {
	Text       string        `json:"text"`
	BBox       geometry.Rect `json:"bbox"`
	Confidence float64       `json:"confidence"`
	Type       Granularity   `json:"type"`
	Language   string        `json:"language,omitempty"`
}

// ObjectOptions carries the optional inputs for an object layer.
type ObjectOptions struct {
	Category   string  `json:"category,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// NewBackground creates the background layer for a freshly initialized
// graph. It covers the whole source image at z-index 0 and starts with
// an empty exclusion set.
func NewBackground(id string, src SourceImage) *Layer {
	l := &Layer{
		ID:               id,
		Type:             TypeBackground,
		Name:             "Background",
		BBox:             geometry.NewRect(0, 0, float64(src.Width), float64(src.Height)),
		CurrentTransform: IdentityTransform(),
		ZIndex:           0,
		Visible:          true,
		Locked:           false,
		Opacity:          1,
		AreaPct:          areaPct(geometry.NewRect(0, 0, float64(src.Width), float64(src.Height)), src),
		ExcludedLayers:   []string{},
		CreatedAt:        time.Now().UTC(),
	}
	l.AppendHistory(OpCreateBackgroundLayer, Params{})
	return l
}

// NewText creates a text layer from an OCR block. The name is the
// block text truncated to a bounded length, the font estimate is
// derived from the bbox height, and the OCR confidence is carried in
// the scores map under "ocr".
func NewText(id string, zIndex int, block TextBlock, src SourceImage) *Layer {
	size := math.Round(block.BBox.Height * fontSizeRatio)
	l := &Layer{
		ID:               id,
		Type:             TypeText,
		Name:             displayName(block.Text, "Text"),
		BBox:             block.BBox,
		CurrentTransform: IdentityTransform(),
		ZIndex:           zIndex,
		Visible:          true,
		Locked:           false,
		Opacity:          1,
		Scores:           map[string]float64{"ocr": block.Confidence},
		AreaPct:          areaPct(block.BBox, src),
		CreatedAt:        time.Now().UTC(),

		Text:        block.Text,
		Granularity: block.Type,
		Language:    block.Language,
		FontEstimate: &FontEstimate{
			Size:   size,
			Family: defaultFontFamily,
		},
		TextGeometry: &TextGeometry{
			AnchorX:    block.BBox.X,
			AnchorY:    block.BBox.Y,
			LineHeight: math.Round(size * lineHeightRatio),
		},
	}
	l.AppendHistory(OpCreateTextLayer, Params{})
	return l
}

// NewObject creates an object layer from a segmentation mask and its
// bbox. The mask is copied so the layer never shares it with the
// caller. Category defaults to "Object" when not supplied.
func NewObject(id string, zIndex int, mask *rle.Mask, bbox geometry.Rect, opts ObjectOptions, src SourceImage) *Layer {
	category := opts.Category
	if category == "" {
		category = DefaultCategory
	}

	l := &Layer{
		ID:               id,
		Type:             TypeObject,
		Name:             category,
		BBox:             bbox,
		CurrentTransform: IdentityTransform(),
		ZIndex:           zIndex,
		Visible:          true,
		Locked:           false,
		Opacity:          1,
		AreaPct:          areaPct(bbox, src),
		CreatedAt:        time.Now().UTC(),

		Category: category,
	}
	if mask != nil {
		l.Mask = mask.Clone()
	}
	if opts.Confidence > 0 {
		l.Scores = map[string]float64{"confidence": opts.Confidence}
	}
	l.AppendHistory(OpCreateObjectLayer, Params{})
	return l
}

// displayName derives a layer name from detected text, truncating at
// maxNameLen runes and appending an ellipsis when text was cut.
func displayName(text, fallback string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fallback
	}
	runes := []rune(trimmed)
	if len(runes) <= maxNameLen {
		return trimmed
	}
	return string(runes[:maxNameLen]) + "..."
}

// areaPct computes a bbox's area as a percentage of the source image
// area. Zero when image dimensions are not positive.
func areaPct(bbox geometry.Rect, src SourceImage) float64 {
	imgArea := float64(src.Width) * float64(src.Height)
	if imgArea <= 0 {
		return 0
	}
	return bbox.Area() / imgArea * 100
}
