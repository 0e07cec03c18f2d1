package viewport

import (
	"math"
	"testing"

	"layer-anything/pkg/geometry"
)

func TestFitCentering(t *testing.T) {
	tr, err := Fit(geometry.NewSize(1000, 1000), geometry.NewSize(800, 600))
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if math.Abs(tr.Scale-0.6) > 1e-9 {
		t.Errorf("Scale = %v, want 0.6", tr.Scale)
	}
	if math.Abs(tr.OffsetX-100) > 1e-9 {
		t.Errorf("OffsetX = %v, want 100", tr.OffsetX)
	}
	if math.Abs(tr.OffsetY) > 1e-9 {
		t.Errorf("OffsetY = %v, want 0", tr.OffsetY)
	}
}

func TestFitProperties(t *testing.T) {
	tests := []struct {
		name   string
		image  geometry.Size
		canvas geometry.Size
	}{
		{"wide image in tall canvas", geometry.NewSize(1600, 400), geometry.NewSize(600, 900)},
		{"tall image in wide canvas", geometry.NewSize(300, 1200), geometry.NewSize(1400, 700)},
		{"image smaller than canvas", geometry.NewSize(100, 80), geometry.NewSize(800, 600)},
		{"exact fit", geometry.NewSize(800, 600), geometry.NewSize(800, 600)},
		{"non-integer scale", geometry.NewSize(1000, 750), geometry.NewSize(640, 480)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := Fit(tt.image, tt.canvas)
			if err != nil {
				t.Fatalf("Fit: %v", err)
			}
			if tr.Scale <= 0 {
				t.Errorf("Scale = %v, want > 0", tr.Scale)
			}
			if tr.OffsetX < 0 || tr.OffsetY < 0 {
				t.Errorf("offsets = (%v, %v), want >= 0", tr.OffsetX, tr.OffsetY)
			}

			// Scaled image must fit inside the canvas on both axes.
			if w := tt.image.Width * tr.Scale; w > tt.canvas.Width+1e-9 {
				t.Errorf("scaled width %v exceeds canvas %v", w, tt.canvas.Width)
			}
			if h := tt.image.Height * tr.Scale; h > tt.canvas.Height+1e-9 {
				t.Errorf("scaled height %v exceeds canvas %v", h, tt.canvas.Height)
			}
		})
	}
}

func TestFitInvalidDimensions(t *testing.T) {
	if _, err := Fit(geometry.NewSize(0, 100), geometry.NewSize(800, 600)); err == nil {
		t.Error("expected error for zero image width")
	}
	if _, err := Fit(geometry.NewSize(100, 100), geometry.NewSize(800, -1)); err == nil {
		t.Error("expected error for negative canvas height")
	}
}

func TestPointRoundTrip(t *testing.T) {
	dims := []struct {
		image  geometry.Size
		canvas geometry.Size
	}{
		{geometry.NewSize(1000, 1000), geometry.NewSize(800, 600)},
		{geometry.NewSize(4032, 3024), geometry.NewSize(1280, 720)},
		{geometry.NewSize(640, 480), geometry.NewSize(640, 480)},
		{geometry.NewSize(333, 777), geometry.NewSize(1024, 768)},
		{geometry.NewSize(50, 50), geometry.NewSize(1920, 1080)},
	}

	for _, d := range dims {
		tr, err := Fit(d.image, d.canvas)
		if err != nil {
			t.Fatalf("Fit(%v, %v): %v", d.image, d.canvas, err)
		}

		points := []geometry.Point2D{
			{X: 0, Y: 0},
			{X: d.canvas.Width, Y: 0},
			{X: 0, Y: d.canvas.Height},
			{X: d.canvas.Width, Y: d.canvas.Height},
			{X: d.canvas.Width / 2, Y: d.canvas.Height / 2},
			{X: d.canvas.Width / 3, Y: d.canvas.Height * 0.7},
			{X: 17.5, Y: 42.25},
		}

		for _, p := range points {
			got := tr.ImageToCanvas(tr.CanvasToImage(p))
			if math.Abs(got.X-p.X) > 1 || math.Abs(got.Y-p.Y) > 1 {
				t.Errorf("round trip of %v under %+v = %v", p, tr, got)
			}

			imgPt := geometry.Point2D{X: p.X * d.image.Width / d.canvas.Width, Y: p.Y * d.image.Height / d.canvas.Height}
			got = tr.CanvasToImage(tr.ImageToCanvas(imgPt))
			if math.Abs(got.X-imgPt.X) > 1 || math.Abs(got.Y-imgPt.Y) > 1 {
				t.Errorf("reverse round trip of %v under %+v = %v", imgPt, tr, got)
			}
		}
	}
}

func TestRectRoundTrip(t *testing.T) {
	tr, err := Fit(geometry.NewSize(1000, 1000), geometry.NewSize(800, 600))
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	rects := []geometry.Rect{
		geometry.NewRect(0, 0, 800, 600),
		geometry.NewRect(100, 0, 600, 600),
		geometry.NewRect(250.5, 130.25, 42, 17),
	}

	for _, r := range rects {
		got := tr.ImageRectToCanvas(tr.CanvasRectToImage(r))
		if math.Abs(got.X-r.X) > 1 || math.Abs(got.Y-r.Y) > 1 ||
			math.Abs(got.Width-r.Width) > 1 || math.Abs(got.Height-r.Height) > 1 {
			t.Errorf("rect round trip of %+v = %+v", r, got)
		}
	}
}

func TestRectMappingScalesDimensions(t *testing.T) {
	tr := Transform{Scale: 0.5, OffsetX: 50, OffsetY: 25}

	img := tr.CanvasRectToImage(geometry.NewRect(50, 25, 100, 60))
	want := geometry.NewRect(0, 0, 200, 120)
	if math.Abs(img.X-want.X) > 1e-9 || math.Abs(img.Y-want.Y) > 1e-9 ||
		math.Abs(img.Width-want.Width) > 1e-9 || math.Abs(img.Height-want.Height) > 1e-9 {
		t.Errorf("CanvasRectToImage = %+v, want %+v", img, want)
	}
}

func TestEstimateRecoversFit(t *testing.T) {
	tr, err := Fit(geometry.NewSize(1000, 1000), geometry.NewSize(800, 600))
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	imagePts := []geometry.Point2D{
		{X: 0, Y: 0},
		{X: 1000, Y: 0},
		{X: 0, Y: 1000},
		{X: 500, Y: 250},
		{X: 123, Y: 987},
	}
	canvasPts := make([]geometry.Point2D, len(imagePts))
	for i, p := range imagePts {
		canvasPts[i] = tr.ImageToCanvas(p)
	}

	got, err := Estimate(imagePts, canvasPts)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if math.Abs(got.Scale-tr.Scale) > 1e-6 ||
		math.Abs(got.OffsetX-tr.OffsetX) > 1e-6 ||
		math.Abs(got.OffsetY-tr.OffsetY) > 1e-6 {
		t.Errorf("Estimate = %+v, want %+v", got, tr)
	}
}

func TestEstimateInvalidInput(t *testing.T) {
	if _, err := Estimate([]geometry.Point2D{{X: 1}}, []geometry.Point2D{{X: 1}}); err == nil {
		t.Error("expected error for single point pair")
	}
	if _, err := Estimate(make([]geometry.Point2D, 3), make([]geometry.Point2D, 2)); err == nil {
		t.Error("expected error for mismatched point counts")
	}
}
