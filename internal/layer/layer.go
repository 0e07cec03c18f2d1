// Package layer defines the layer records managed by the layer graph:
// a background layer covering the source image plus text and object
// layers derived from detections, each carrying geometry, display
// state, and an append-only edit history.
package layer

import (
	"time"

	"layer-anything/pkg/geometry"
	"layer-anything/pkg/rle"
)

// Type identifies a layer variant. The set is closed; the variant
// determines which extended fields of Layer apply.
type Type string

const (
	TypeBackground Type = "background"
	TypeText       Type = "text"
	TypeObject     Type = "object"
)

// Valid returns true for a known layer type.
func (t Type) Valid() bool {
	switch t {
	case TypeBackground, TypeText, TypeObject:
		return true
	}
	return false
}

// Granularity is the OCR segmentation level a text layer was extracted at.
type Granularity string

const (
	GranularityBlock     Granularity = "block"
	GranularityParagraph Granularity = "paragraph"
	GranularityLine      Granularity = "line"
	GranularityWord      Granularity = "word"
)

// Transform2D is a layer's accumulated edit transform relative to its
// original bbox. A freshly created layer has the identity transform.
type Transform2D struct {
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
	Scale   float64 `json:"scale"`
}

// IdentityTransform returns the no-op transform {0, 0, 1}.
func IdentityTransform() Transform2D {
	return Transform2D{OffsetX: 0, OffsetY: 0, Scale: 1}
}

// FontEstimate is a heuristic guess at the font of a text layer,
// derived from the detection bbox rather than from glyph analysis.
type FontEstimate struct {
	Size   float64 `json:"size"`   // Point size estimate
	Family string  `json:"family"` // Generic family, e.g. "sans-serif"
}

// TextGeometry carries the layout anchor used when re-rendering edited
// text in place of the original pixels.
type TextGeometry struct {
	AnchorX    float64 `json:"anchorX"`    // Left edge of the first glyph
	AnchorY    float64 `json:"anchorY"`    // Top of the text box
	LineHeight float64 `json:"lineHeight"` // Vertical advance between lines
}

// SourceImage references the image a layer graph was built from.
// The graph never decodes image bytes; it only tracks the reference
// and pixel dimensions.
type SourceImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Size returns the image dimensions as a geometry.Size.
func (s SourceImage) Size() geometry.Size {
	return geometry.NewSize(float64(s.Width), float64(s.Height))
}

// Layer is a single record in the layer graph. The Type tag selects
// which of the variant field groups below is populated; fields outside
// a layer's variant stay at their zero value and are omitted from JSON.
type Layer struct {
	ID               string             `json:"id"`
	Type             Type               `json:"type"`
	Name             string             `json:"name"`
	BBox             geometry.Rect      `json:"bbox"`             // Original detection geometry, immutable
	CurrentTransform Transform2D        `json:"currentTransform"` // Accumulated edits relative to BBox
	ZIndex           int                `json:"zIndex"`
	Visible          bool               `json:"visible"`
	Locked           bool               `json:"locked"`
	Opacity          float64            `json:"opacity"`
	Scores           map[string]float64 `json:"scores,omitempty"` // Detector confidence values
	AreaPct          float64            `json:"areaPct"`          // BBox area as percent of image area
	History          []HistoryEntry     `json:"history"`
	CreatedAt        time.Time          `json:"createdAt"`

	// Text layer fields.
	Text         string        `json:"text,omitempty"`
	Granularity  Granularity   `json:"granularity,omitempty"`
	Language     string        `json:"language,omitempty"`
	FontEstimate *FontEstimate `json:"fontEstimate,omitempty"`
	TextGeometry *TextGeometry `json:"textGeometry,omitempty"`

	// Object layer fields.
	Category string    `json:"category,omitempty"`
	Mask     *rle.Mask `json:"mask,omitempty"`

	// Background layer fields. Recomputed by the graph whenever a
	// non-background layer is created or deleted.
	ExcludedLayers []string `json:"excludedLayers,omitempty"`
}

// CurrentBBox returns the layer's bbox with its accumulated transform
// applied: translated by the offsets, dimensions scaled about the
// translated origin.
func (l *Layer) CurrentBBox() geometry.Rect {
	r := l.BBox.Translated(l.CurrentTransform.OffsetX, l.CurrentTransform.OffsetY)
	r.Width *= l.CurrentTransform.Scale
	r.Height *= l.CurrentTransform.Scale
	return r
}

// Clone returns a deep copy of the layer. Masks, scores, history, and
// exclusion lists are copied wholesale so the copy never shares mutable
// state with the original.
func (l *Layer) Clone() *Layer {
	c := *l

	if l.Scores != nil {
		c.Scores = make(map[string]float64, len(l.Scores))
		for k, v := range l.Scores {
			c.Scores[k] = v
		}
	}
	if l.History != nil {
		c.History = make([]HistoryEntry, len(l.History))
		for i, e := range l.History {
			c.History[i] = e.clone()
		}
	}
	if l.FontEstimate != nil {
		fe := *l.FontEstimate
		c.FontEstimate = &fe
	}
	if l.TextGeometry != nil {
		tg := *l.TextGeometry
		c.TextGeometry = &tg
	}
	if l.Mask != nil {
		c.Mask = l.Mask.Clone()
	}
	if l.ExcludedLayers != nil {
		c.ExcludedLayers = make([]string, len(l.ExcludedLayers))
		copy(c.ExcludedLayers, l.ExcludedLayers)
	}

	return &c
}

// AppendHistory records a mutation on the layer. History is append-only
// and never reordered or pruned.
func (l *Layer) AppendHistory(op Operation, params Params) {
	l.History = append(l.History, HistoryEntry{
		Operation: op,
		Params:    params,
		Timestamp: time.Now().UTC(),
	})
}
