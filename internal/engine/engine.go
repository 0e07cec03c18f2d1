// Package engine implements the layer graph engine: the only
// sanctioned mutation path for the layers derived from one loaded
// image. It owns layer creation from detection results, structural
// edits, background exclusion maintenance, and JSON export/import.
package engine

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"layer-anything/internal/layer"
)

var (
	// ErrNotInitialized is returned by operations that need a graph
	// before InitializeFromImage has been called.
	ErrNotInitialized = errors.New("layer graph not initialized")

	// ErrInvalidDimensions is returned when a source image is given
	// with a non-positive width or height.
	ErrInvalidDimensions = errors.New("image dimensions must be positive")
)

// Engine wraps a layer graph behind a mutex so that mutations are
// serialized: each operation runs to completion before the next
// starts, and no caller ever observes a layer without its background
// exclusion update.
//
// Reads hand out deep copies. Mutating a returned layer never touches
// graph state; all edits go through engine operations.
type Engine struct {
	mu      sync.RWMutex
	graph   *graph
	entropy *ulid.MonotonicEntropy
}

// New creates an engine with no graph. Most operations fail with
// ErrNotInitialized (or return false) until InitializeFromImage is
// called.
func New() *Engine {
	return &Engine{
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// newID generates a ULID. Callers must hold the write lock; the
// monotonic entropy source is not safe for concurrent use.
func (e *Engine) newID() string {
	return ulid.MustNew(ulid.Now(), e.entropy).String()
}

// InitializeFromImage creates a fresh graph for the given source
// image, replacing any existing one, and creates its background layer
// covering the full image at z-index 0. Returns the new graph's ID.
func (e *Engine) InitializeFromImage(imageURL string, width, height int) (string, error) {
	if width <= 0 || height <= 0 {
		return "", ErrInvalidDimensions
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	src := layer.SourceImage{URL: imageURL, Width: width, Height: height}
	g := newGraph(e.newID(), src)

	bg := layer.NewBackground(e.newID(), src)
	bg.ZIndex = g.nextZ()
	g.insert(bg)

	e.graph = g
	return g.id, nil
}

// Clear drops the current graph, returning the engine to its
// uninitialized state.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.graph = nil
}

// Initialized reports whether a graph exists.
func (e *Engine) Initialized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.graph != nil
}

// GraphID returns the current graph's ID, or "" when uninitialized.
func (e *Engine) GraphID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.graph == nil {
		return ""
	}
	return e.graph.id
}

// Source returns the current graph's source image reference.
func (e *Engine) Source() (layer.SourceImage, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.graph == nil {
		return layer.SourceImage{}, false
	}
	return e.graph.source, true
}

// GetLayers returns a snapshot of all layers sorted ascending by
// z-index, background first. The returned layers are deep copies.
func (e *Engine) GetLayers() []*layer.Layer {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.graph == nil {
		return []*layer.Layer{}
	}

	ordered := e.graph.byZIndex()
	result := make([]*layer.Layer, len(ordered))
	for i, l := range ordered {
		result[i] = l.Clone()
	}
	return result
}

// GetLayer returns a deep copy of the layer with the given ID, or nil
// when it does not exist. Unknown IDs are an expected condition, not
// an error.
func (e *Engine) GetLayer(id string) *layer.Layer {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.graph == nil {
		return nil
	}
	l := e.graph.get(id)
	if l == nil {
		return nil
	}
	return l.Clone()
}

// LayerCount returns the number of layers in the graph, including the
// background layer. Zero when uninitialized.
func (e *Engine) LayerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.graph == nil {
		return 0
	}
	return len(e.graph.layers)
}
