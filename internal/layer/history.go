package layer

import (
	"time"

	"layer-anything/pkg/geometry"
)

// Operation names a mutating engine operation in a layer's history log.
type Operation string

const (
	OpCreateBackgroundLayer Operation = "create_background_layer"
	OpCreateTextLayer       Operation = "create_text_layer"
	OpCreateObjectLayer     Operation = "create_object_layer"
	OpMoveLayer             Operation = "move_layer"
	OpResizeLayer           Operation = "resize_layer"
	OpRenameLayer           Operation = "rename_layer"
	OpSetVisibility         Operation = "set_visibility"
	OpSetLocked             Operation = "set_locked"
	OpSetOpacity            Operation = "set_opacity"
	OpBringToFront          Operation = "bring_to_front"
	OpDuplicateLayer        Operation = "duplicate_layer"
	OpDeleteLayer           Operation = "delete_layer"
	OpUpdateBackground      Operation = "update_background"
)

// Params carries the operation-specific arguments recorded with a
// history entry. Only the fields relevant to the operation are set;
// everything else is omitted from JSON.
type Params struct {
	Delta          *geometry.Point2D `json:"delta,omitempty"`          // move_layer
	Scale          *float64          `json:"scale,omitempty"`          // resize_layer
	Name           string            `json:"name,omitempty"`           // rename_layer
	Visible        *bool             `json:"visible,omitempty"`        // set_visibility
	Locked         *bool             `json:"locked,omitempty"`         // set_locked
	Opacity        *float64          `json:"opacity,omitempty"`        // set_opacity
	ZIndex         *int              `json:"zIndex,omitempty"`         // bring_to_front
	SourceID       string            `json:"sourceId,omitempty"`       // duplicate_layer
	ExcludedLayers []string          `json:"excludedLayers,omitempty"` // update_background
}

// HistoryEntry is one record in a layer's append-only edit log.
type HistoryEntry struct {
	Operation Operation `json:"operation"`
	Params    Params    `json:"params"`
	Timestamp time.Time `json:"timestamp"`
}

func (e HistoryEntry) clone() HistoryEntry {
	c := e
	if e.Params.Delta != nil {
		d := *e.Params.Delta
		c.Params.Delta = &d
	}
	if e.Params.Scale != nil {
		s := *e.Params.Scale
		c.Params.Scale = &s
	}
	if e.Params.Visible != nil {
		v := *e.Params.Visible
		c.Params.Visible = &v
	}
	if e.Params.Locked != nil {
		l := *e.Params.Locked
		c.Params.Locked = &l
	}
	if e.Params.Opacity != nil {
		o := *e.Params.Opacity
		c.Params.Opacity = &o
	}
	if e.Params.ZIndex != nil {
		z := *e.Params.ZIndex
		c.Params.ZIndex = &z
	}
	if e.Params.ExcludedLayers != nil {
		ex := make([]string, len(e.Params.ExcludedLayers))
		copy(ex, e.Params.ExcludedLayers)
		c.Params.ExcludedLayers = ex
	}
	return c
}

// MoveParams builds the params for a move_layer entry.
func MoveParams(delta geometry.Point2D) Params {
	return Params{Delta: &delta}
}

// ResizeParams builds the params for a resize_layer entry.
func ResizeParams(scale float64) Params {
	return Params{Scale: &scale}
}

// RenameParams builds the params for a rename_layer entry.
func RenameParams(name string) Params {
	return Params{Name: name}
}

// VisibilityParams builds the params for a set_visibility entry.
func VisibilityParams(visible bool) Params {
	return Params{Visible: &visible}
}

// LockedParams builds the params for a set_locked entry.
func LockedParams(locked bool) Params {
	return Params{Locked: &locked}
}

// OpacityParams builds the params for a set_opacity entry.
func OpacityParams(opacity float64) Params {
	return Params{Opacity: &opacity}
}

// FrontParams builds the params for a bring_to_front entry.
func FrontParams(zIndex int) Params {
	return Params{ZIndex: &zIndex}
}

// DuplicateParams builds the params for a duplicate_layer entry.
func DuplicateParams(sourceID string) Params {
	return Params{SourceID: sourceID}
}

// BackgroundParams builds the params for an update_background entry.
func BackgroundParams(excluded []string) Params {
	ex := make([]string, len(excluded))
	copy(ex, excluded)
	return Params{ExcludedLayers: ex}
}
