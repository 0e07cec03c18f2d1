package engine

import (
	"sort"

	"layer-anything/internal/layer"
)

// graph is the authoritative layer store for one loaded image. It has
// no locking of its own; the engine serializes all access to it.
type graph struct {
	id     string
	source layer.SourceImage

	layers map[string]*layer.Layer
	order  []string // Layer IDs in insertion order

	zCounter int // Next z-index to assign
}

func newGraph(id string, source layer.SourceImage) *graph {
	return &graph{
		id:     id,
		source: source,
		layers: make(map[string]*layer.Layer),
		order:  make([]string, 0),
	}
}

// nextZ hands out z-indexes from a single monotonic counter. Values
// are never reused, so they are sparse after bring-to-front calls and
// must not be treated as array indices.
func (g *graph) nextZ() int {
	z := g.zCounter
	g.zCounter++
	return z
}

func (g *graph) insert(l *layer.Layer) {
	g.layers[l.ID] = l
	g.order = append(g.order, l.ID)
}

func (g *graph) remove(id string) bool {
	if _, ok := g.layers[id]; !ok {
		return false
	}
	delete(g.layers, id)
	for i, lid := range g.order {
		if lid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return true
}

func (g *graph) get(id string) *layer.Layer {
	return g.layers[id]
}

// background returns the graph's background layer. A graph always has
// exactly one once initialized.
func (g *graph) background() *layer.Layer {
	for _, id := range g.order {
		if l := g.layers[id]; l != nil && l.Type == layer.TypeBackground {
			return l
		}
	}
	return nil
}

// byZIndex returns all layers sorted ascending by z-index, background
// first.
func (g *graph) byZIndex() []*layer.Layer {
	result := make([]*layer.Layer, 0, len(g.order))
	for _, id := range g.order {
		if l := g.layers[id]; l != nil {
			result = append(result, l)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ZIndex < result[j].ZIndex
	})
	return result
}

// inOrder returns all layers in insertion order.
func (g *graph) inOrder() []*layer.Layer {
	result := make([]*layer.Layer, 0, len(g.order))
	for _, id := range g.order {
		if l := g.layers[id]; l != nil {
			result = append(result, l)
		}
	}
	return result
}

// nonBackgroundIDs returns the IDs of all non-background layers in
// insertion order.
func (g *graph) nonBackgroundIDs() []string {
	ids := make([]string, 0, len(g.order))
	for _, id := range g.order {
		if l := g.layers[id]; l != nil && l.Type != layer.TypeBackground {
			ids = append(ids, id)
		}
	}
	return ids
}

// syncBackground recomputes the background layer's exclusion set to
// the current set of non-background layers. Called after every layer
// creation and deletion; does not touch history.
func (g *graph) syncBackground() {
	if bg := g.background(); bg != nil {
		bg.ExcludedLayers = g.nonBackgroundIDs()
	}
}
