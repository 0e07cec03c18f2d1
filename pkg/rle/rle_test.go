package rle

import (
	"testing"

	"layer-anything/pkg/geometry"
)

func TestFromBitmapRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
		set    []int // indices of set pixels
	}{
		{"empty", 4, 3, nil},
		{"leading run set", 4, 3, []int{0, 1, 2}},
		{"interior block", 5, 5, []int{6, 7, 11, 12}},
		{"full", 2, 2, []int{0, 1, 2, 3}},
		{"alternating", 4, 1, []int{1, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bits := make([]bool, tt.width*tt.height)
			for _, i := range tt.set {
				bits[i] = true
			}

			m, err := FromBitmap(bits, tt.width, tt.height)
			if err != nil {
				t.Fatalf("FromBitmap: %v", err)
			}
			if err := m.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if got := m.Area(); got != len(tt.set) {
				t.Errorf("Area = %d, want %d", got, len(tt.set))
			}

			decoded := m.Bitmap()
			if len(decoded) != len(bits) {
				t.Fatalf("Bitmap length = %d, want %d", len(decoded), len(bits))
			}
			for i := range bits {
				if decoded[i] != bits[i] {
					t.Errorf("pixel %d = %v, want %v", i, decoded[i], bits[i])
				}
			}
		})
	}
}

func TestFromBitmapInvalid(t *testing.T) {
	if _, err := FromBitmap(make([]bool, 5), 2, 2); err == nil {
		t.Error("expected error for mismatched bitmap length")
	}
	if _, err := FromBitmap(nil, 0, 3); err == nil {
		t.Error("expected error for zero width")
	}
}

func TestMaskBounds(t *testing.T) {
	// 5x4 mask with a 2x2 block at (1,2).
	bits := make([]bool, 20)
	bits[2*5+1] = true
	bits[2*5+2] = true
	bits[3*5+1] = true
	bits[3*5+2] = true

	m, err := FromBitmap(bits, 5, 4)
	if err != nil {
		t.Fatalf("FromBitmap: %v", err)
	}

	got := m.Bounds()
	want := geometry.RectInt{X: 1, Y: 2, Width: 2, Height: 2}
	if got != want {
		t.Errorf("Bounds = %+v, want %+v", got, want)
	}
}

func TestMaskBoundsEmpty(t *testing.T) {
	m := New(8, 8)
	if got := m.Bounds(); got != (geometry.RectInt{}) {
		t.Errorf("Bounds of empty mask = %+v, want zero", got)
	}
	if m.Area() != 0 {
		t.Errorf("Area of empty mask = %d, want 0", m.Area())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		m       Mask
		wantErr bool
	}{
		{"valid", Mask{Counts: []int{2, 3, 1}, Size: [2]int{2, 3}}, false},
		{"short counts", Mask{Counts: []int{2, 3}, Size: [2]int{2, 3}}, true},
		{"negative count", Mask{Counts: []int{-1, 7}, Size: [2]int{2, 3}}, true},
		{"zero mask", Mask{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFromBytes(t *testing.T) {
	data := []byte{0, 255, 255, 0, 128, 0}
	m, err := FromBytes(data, 3, 2, 128)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if got := m.Area(); got != 3 {
		t.Errorf("Area = %d, want 3", got)
	}

	if _, err := FromBytes(data, 4, 2, 128); err == nil {
		t.Error("expected error for mismatched buffer size")
	}
}

func TestDecodeAlpha(t *testing.T) {
	bits := []bool{true, false, false, true}
	m, err := FromBitmap(bits, 2, 2)
	if err != nil {
		t.Fatalf("FromBitmap: %v", err)
	}

	img := m.Decode()
	if img.Bounds().Dx() != 2 || img.Bounds().Dy() != 2 {
		t.Fatalf("Decode bounds = %v", img.Bounds())
	}
	wantPix := []uint8{0xff, 0, 0, 0xff}
	for i, want := range wantPix {
		if img.Pix[i] != want {
			t.Errorf("pix %d = %d, want %d", i, img.Pix[i], want)
		}
	}
}

func TestCloneIndependence(t *testing.T) {
	m := Mask{Counts: []int{1, 3}, Size: [2]int{2, 2}}
	c := m.Clone()
	c.Counts[0] = 9
	if m.Counts[0] != 1 {
		t.Error("Clone shares count storage with original")
	}
}
