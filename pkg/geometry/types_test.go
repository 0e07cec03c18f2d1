package geometry

import (
	"math"
	"testing"
)

func TestRectContains(t *testing.T) {
	r := NewRect(10, 20, 100, 50)

	tests := []struct {
		name string
		p    Point2D
		want bool
	}{
		{"center", Point2D{X: 60, Y: 45}, true},
		{"top left corner", Point2D{X: 10, Y: 20}, true},
		{"bottom right corner", Point2D{X: 110, Y: 70}, true},
		{"left of rect", Point2D{X: 9.9, Y: 45}, false},
		{"below rect", Point2D{X: 60, Y: 70.1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Contains(tt.p); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestRectArea(t *testing.T) {
	tests := []struct {
		name string
		r    Rect
		want float64
	}{
		{"unit", NewRect(0, 0, 1, 1), 1},
		{"offset origin", NewRect(5, 5, 80, 60), 4800},
		{"zero width", NewRect(0, 0, 0, 10), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Area(); got != tt.want {
				t.Errorf("Area() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRectUnion(t *testing.T) {
	a := NewRect(0, 0, 10, 10)
	b := NewRect(5, 5, 10, 10)

	got := a.Union(b)
	want := NewRect(0, 0, 15, 15)
	if got != want {
		t.Errorf("Union = %+v, want %+v", got, want)
	}
}

func TestRectRound(t *testing.T) {
	r := Rect{X: 1.4, Y: 2.6, Width: 10.5, Height: 9.49}
	got := r.Round()
	want := RectInt{X: 1, Y: 3, Width: 11, Height: 9}
	if got != want {
		t.Errorf("Round = %+v, want %+v", got, want)
	}
}

func TestRectIntClamp(t *testing.T) {
	tests := []struct {
		name string
		r    RectInt
		want RectInt
	}{
		{"inside", RectInt{X: 10, Y: 10, Width: 20, Height: 20}, RectInt{X: 10, Y: 10, Width: 20, Height: 20}},
		{"overflows right", RectInt{X: 90, Y: 0, Width: 20, Height: 10}, RectInt{X: 90, Y: 0, Width: 10, Height: 10}},
		{"negative origin", RectInt{X: -5, Y: -5, Width: 20, Height: 20}, RectInt{X: 0, Y: 0, Width: 15, Height: 15}},
		{"fully outside", RectInt{X: 200, Y: 200, Width: 10, Height: 10}, RectInt{X: 200, Y: 200, Width: 0, Height: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Clamp(100, 100); got != tt.want {
				t.Errorf("Clamp(100,100) = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPointDistance(t *testing.T) {
	a := NewPoint2D(0, 0)
	b := NewPoint2D(3, 4)
	if got := a.Distance(b); math.Abs(got-5) > 1e-9 {
		t.Errorf("Distance = %v, want 5", got)
	}
}

func TestBoundingBox(t *testing.T) {
	points := []Point2D{{X: 3, Y: 7}, {X: -1, Y: 2}, {X: 5, Y: 4}}
	got := BoundingBox(points)
	want := Rect{X: -1, Y: 2, Width: 6, Height: 5}
	if got != want {
		t.Errorf("BoundingBox = %+v, want %+v", got, want)
	}

	if got := BoundingBox(nil); got != (Rect{}) {
		t.Errorf("BoundingBox(nil) = %+v, want zero rect", got)
	}
}
