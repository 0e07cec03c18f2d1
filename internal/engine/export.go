package engine

import (
	"encoding/json"
	"fmt"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"layer-anything/internal/layer"
)

// ExportVersion is the current export document format version.
const ExportVersion = 1

// exportDocument is the persisted graph format. Layers are keyed by ID
// and keep their graph insertion order, so an export/import round trip
// reproduces an equivalent graph.
type exportDocument struct {
	Version     int                                           `json:"version"`
	Layers      *orderedmap.OrderedMap[string, *layer.Layer] `json:"layers"`
	SourceImage layer.SourceImage                             `json:"sourceImage"`
	ExportedAt  time.Time                                     `json:"exportedAt"`
}

// ExportJSON serializes the full graph: every layer with its complete
// metadata and history, the source image reference, and an export
// timestamp. Fails with ErrNotInitialized before InitializeFromImage.
func (e *Engine) ExportJSON() ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.graph == nil {
		return nil, ErrNotInitialized
	}

	layers := orderedmap.New[string, *layer.Layer]()
	for _, l := range e.graph.inOrder() {
		layers.Set(l.ID, l.Clone())
	}

	doc := exportDocument{
		Version:     ExportVersion,
		Layers:      layers,
		SourceImage: e.graph.source,
		ExportedAt:  time.Now().UTC(),
	}

	return json.MarshalIndent(doc, "", "  ")
}

// ImportJSON replaces the engine's graph with one reconstructed from
// an exported document. The import is atomic: on any validation or
// decode error the current graph is left untouched.
func (e *Engine) ImportJSON(data []byte) error {
	var doc exportDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decoding export document: %w", err)
	}

	if doc.Version > ExportVersion {
		return fmt.Errorf("unsupported export version %d", doc.Version)
	}
	if doc.Layers == nil || doc.Layers.Len() == 0 {
		return fmt.Errorf("export document has no layers")
	}
	if doc.SourceImage.Width <= 0 || doc.SourceImage.Height <= 0 {
		return ErrInvalidDimensions
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	g := newGraph(e.newID(), doc.SourceImage)

	var background *layer.Layer
	maxZ := 0
	seenZ := make(map[int]string)

	for pair := doc.Layers.Oldest(); pair != nil; pair = pair.Next() {
		l := pair.Value
		if l == nil {
			return fmt.Errorf("layer %q: null record", pair.Key)
		}
		if l.ID == "" {
			l.ID = pair.Key
		}
		if l.ID != pair.Key {
			return fmt.Errorf("layer %q: id field %q does not match key", pair.Key, l.ID)
		}
		if !l.Type.Valid() {
			return fmt.Errorf("layer %q: unknown type %q", l.ID, l.Type)
		}
		if other, taken := seenZ[l.ZIndex]; taken {
			return fmt.Errorf("layer %q: z-index %d already used by %q", l.ID, l.ZIndex, other)
		}
		seenZ[l.ZIndex] = l.ID
		if l.Mask != nil {
			if err := l.Mask.Validate(); err != nil {
				return fmt.Errorf("layer %q: invalid mask: %w", l.ID, err)
			}
		}

		if l.Type == layer.TypeBackground {
			if background != nil {
				return fmt.Errorf("layer %q: second background layer (already have %q)", l.ID, background.ID)
			}
			background = l
			if l.ExcludedLayers == nil {
				l.ExcludedLayers = []string{}
			}
		}

		if l.ZIndex > maxZ {
			maxZ = l.ZIndex
		}

		// Derived field: always recomputed from bbox and image
		// dimensions, never trusted from the document.
		l.AreaPct = areaPctOf(l, doc.SourceImage)

		g.insert(l)
	}

	if background == nil {
		return fmt.Errorf("export document has no background layer")
	}
	for _, id := range g.order {
		if l := g.get(id); l.Type != layer.TypeBackground && l.ZIndex <= background.ZIndex {
			return fmt.Errorf("layer %q: z-index %d not above background", id, l.ZIndex)
		}
	}

	g.zCounter = maxZ + 1
	e.graph = g
	return nil
}

func areaPctOf(l *layer.Layer, src layer.SourceImage) float64 {
	imgArea := float64(src.Width) * float64(src.Height)
	if imgArea <= 0 {
		return 0
	}
	return l.BBox.Area() / imgArea * 100
}
