package engine

import (
	"fmt"

	"layer-anything/internal/layer"
	"layer-anything/pkg/geometry"
	"layer-anything/pkg/rle"
)

// CreateTextLayer inserts a text layer built from an OCR block and
// recomputes the background exclusion set. Fails with
// ErrNotInitialized when no graph exists; on failure no layer is
// added.
func (e *Engine) CreateTextLayer(block layer.TextBlock) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.graph == nil {
		return "", ErrNotInitialized
	}

	l := layer.NewText(e.newID(), e.graph.nextZ(), block, e.graph.source)
	e.graph.insert(l)
	e.graph.syncBackground()
	return l.ID, nil
}

// CreateObjectLayer inserts an object layer from a segmentation mask
// and bbox and recomputes the background exclusion set. A malformed
// mask fails the whole call; no layer is added.
func (e *Engine) CreateObjectLayer(mask *rle.Mask, bbox geometry.Rect, opts layer.ObjectOptions) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.graph == nil {
		return "", ErrNotInitialized
	}
	if mask != nil {
		if err := mask.Validate(); err != nil {
			return "", fmt.Errorf("invalid mask: %w", err)
		}
	}

	l := layer.NewObject(e.newID(), e.graph.nextZ(), mask, bbox, opts, e.graph.source)
	e.graph.insert(l)
	e.graph.syncBackground()
	return l.ID, nil
}

// UpdateBackgroundLayer replaces the background layer's exclusion set
// with the given IDs, keeping only those that name existing
// non-background layers. The engine calls the equivalent recompute
// automatically after creations and deletions; this entry point is for
// explicit overrides and records an update_background history entry.
func (e *Engine) UpdateBackgroundLayer(excludedLayerIDs []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.graph == nil {
		return ErrNotInitialized
	}

	bg := e.graph.background()
	if bg == nil {
		return ErrNotInitialized
	}

	excluded := make([]string, 0, len(excludedLayerIDs))
	for _, id := range excludedLayerIDs {
		if l := e.graph.get(id); l != nil && l.Type != layer.TypeBackground {
			excluded = append(excluded, id)
		}
	}

	bg.ExcludedLayers = excluded
	bg.AppendHistory(layer.OpUpdateBackground, layer.BackgroundParams(excluded))
	return nil
}

// MoveLayer adds the delta to the layer's accumulated offset. Returns
// false when the layer is missing or locked; the transform is left
// untouched in either case.
func (e *Engine) MoveLayer(id string, delta geometry.Point2D) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	l := e.mutableLayer(id)
	if l == nil || l.Locked {
		return false
	}

	l.CurrentTransform.OffsetX += delta.X
	l.CurrentTransform.OffsetY += delta.Y
	l.AppendHistory(layer.OpMoveLayer, layer.MoveParams(delta))
	return true
}

// ResizeLayer sets the layer's transform scale to the given absolute
// value. Returns false when the layer is missing or locked, or for a
// non-positive scale.
func (e *Engine) ResizeLayer(id string, scale float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	l := e.mutableLayer(id)
	if l == nil || l.Locked || scale <= 0 {
		return false
	}

	l.CurrentTransform.Scale = scale
	l.AppendHistory(layer.OpResizeLayer, layer.ResizeParams(scale))
	return true
}

// RenameLayer sets the layer's display name.
func (e *Engine) RenameLayer(id, name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	l := e.mutableLayer(id)
	if l == nil {
		return false
	}

	l.Name = name
	l.AppendHistory(layer.OpRenameLayer, layer.RenameParams(name))
	return true
}

// SetLayerVisibility toggles whether the layer is drawn.
func (e *Engine) SetLayerVisibility(id string, visible bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	l := e.mutableLayer(id)
	if l == nil {
		return false
	}

	l.Visible = visible
	l.AppendHistory(layer.OpSetVisibility, layer.VisibilityParams(visible))
	return true
}

// SetLayerLocked toggles the layer's lock. A locked layer rejects
// move and resize until unlocked.
func (e *Engine) SetLayerLocked(id string, locked bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	l := e.mutableLayer(id)
	if l == nil {
		return false
	}

	l.Locked = locked
	l.AppendHistory(layer.OpSetLocked, layer.LockedParams(locked))
	return true
}

// SetLayerOpacity sets the layer's opacity, clamped to [0, 1].
func (e *Engine) SetLayerOpacity(id string, opacity float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	l := e.mutableLayer(id)
	if l == nil {
		return false
	}

	if opacity < 0 {
		opacity = 0
	} else if opacity > 1 {
		opacity = 1
	}
	l.Opacity = opacity
	l.AppendHistory(layer.OpSetOpacity, layer.OpacityParams(opacity))
	return true
}

// BringToFront reassigns the layer's z-index from the monotonic
// counter, making it the topmost layer. Siblings keep their z-indexes.
// The background layer stays at the bottom and cannot be raised.
func (e *Engine) BringToFront(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	l := e.mutableLayer(id)
	if l == nil || l.Type == layer.TypeBackground {
		return false
	}

	l.ZIndex = e.graph.nextZ()
	l.AppendHistory(layer.OpBringToFront, layer.FrontParams(l.ZIndex))
	return true
}

// DuplicateLayer deep-copies the layer under a new ID and a fresh
// topmost z-index, keeping every other field including history, then
// records the source in a duplicate_layer entry. The background layer
// cannot be duplicated.
func (e *Engine) DuplicateLayer(id string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	src := e.mutableLayer(id)
	if src == nil || src.Type == layer.TypeBackground {
		return "", false
	}

	dup := src.Clone()
	dup.ID = e.newID()
	dup.ZIndex = e.graph.nextZ()
	dup.AppendHistory(layer.OpDuplicateLayer, layer.DuplicateParams(src.ID))

	e.graph.insert(dup)
	e.graph.syncBackground()
	return dup.ID, true
}

// DeleteLayer removes the layer from the graph and recomputes the
// background exclusion set. The background layer itself cannot be
// deleted.
func (e *Engine) DeleteLayer(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	l := e.mutableLayer(id)
	if l == nil || l.Type == layer.TypeBackground {
		return false
	}

	l.AppendHistory(layer.OpDeleteLayer, layer.Params{})
	e.graph.remove(id)
	e.graph.syncBackground()
	return true
}

// mutableLayer returns the live layer record for in-place mutation, or
// nil when the graph is uninitialized or the ID is unknown. Callers
// must hold the write lock.
func (e *Engine) mutableLayer(id string) *layer.Layer {
	if e.graph == nil {
		return nil
	}
	return e.graph.get(id)
}
