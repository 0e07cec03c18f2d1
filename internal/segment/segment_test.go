package segment

import (
	"image"
	"testing"
	"time"

	"layer-anything/pkg/geometry"
)

func TestDefaultsApplied(t *testing.T) {
	s := NewService(Config{}, nil)
	def := DefaultConfig()

	if s.cfg.Iterations != def.Iterations {
		t.Errorf("Iterations = %d, want %d", s.cfg.Iterations, def.Iterations)
	}
	if cap(s.semaphore) != def.MaxConcurrent {
		t.Errorf("semaphore capacity = %d, want %d", cap(s.semaphore), def.MaxConcurrent)
	}
	if s.cfg.QueueTimeout != def.QueueTimeout {
		t.Errorf("QueueTimeout = %v, want %v", s.cfg.QueueTimeout, def.QueueTimeout)
	}
	if s.logger == nil {
		t.Error("nil logger not replaced")
	}
}

func TestConfigOverrides(t *testing.T) {
	s := NewService(Config{Iterations: 9, MaxConcurrent: 1, QueueTimeout: time.Second, MaxDimension: 640}, nil)
	if s.cfg.Iterations != 9 || cap(s.semaphore) != 1 || s.cfg.MaxDimension != 640 {
		t.Errorf("config not applied: %+v", s.cfg)
	}
}

func TestScaleRect(t *testing.T) {
	tests := []struct {
		name  string
		rect  geometry.RectInt
		scale float64
		want  image.Rectangle
	}{
		{"identity", geometry.RectInt{X: 10, Y: 20, Width: 30, Height: 40}, 1.0, image.Rect(10, 20, 40, 60)},
		{"half", geometry.RectInt{X: 10, Y: 20, Width: 30, Height: 40}, 0.5, image.Rect(5, 10, 20, 30)},
		{"downscale rounds toward origin", geometry.RectInt{X: 3, Y: 3, Width: 3, Height: 3}, 0.3, image.Rect(0, 0, 1, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scaleRect(tt.rect, tt.scale); got != tt.want {
				t.Errorf("scaleRect = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBorderMargin(t *testing.T) {
	if got := borderMargin(1000, 800); got != 40 {
		t.Errorf("borderMargin(1000, 800) = %d, want 40", got)
	}
	if got := borderMargin(100, 100); got != 10 {
		t.Errorf("borderMargin(100, 100) = %d, want minimum 10", got)
	}
}

func TestCoverageConfidence(t *testing.T) {
	tests := []struct {
		name   string
		area   int
		want   float64
	}{
		{"tiny mask clamped up", 1, 0.05},
		{"normal coverage", 2500, 0.25},
		{"full coverage clamped down", 10000, 0.95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := coverageConfidence(tt.area, 100, 100); got != tt.want {
				t.Errorf("coverageConfidence(%d) = %v, want %v", tt.area, got, tt.want)
			}
		})
	}
}
