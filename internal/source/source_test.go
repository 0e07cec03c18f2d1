package source

import (
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
)

func encodedImage(t *testing.T, format string, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, nil)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	case "bmp":
		err = bmp.Encode(&buf, img)
	default:
		t.Fatalf("unsupported test format %q", format)
	}
	if err != nil {
		t.Fatalf("encoding %s: %v", format, err)
	}
	return buf.Bytes()
}

func TestProbe(t *testing.T) {
	tests := []struct {
		format string
		width  int
		height int
	}{
		{"png", 120, 80},
		{"jpeg", 64, 64},
		{"gif", 16, 32},
		{"bmp", 10, 20},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			data := encodedImage(t, tt.format, tt.width, tt.height)

			info, err := Probe(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("Probe: %v", err)
			}
			if info.Format != tt.format {
				t.Errorf("Format = %q, want %q", info.Format, tt.format)
			}
			if info.Width != tt.width || info.Height != tt.height {
				t.Errorf("dims = %dx%d, want %dx%d", info.Width, info.Height, tt.width, tt.height)
			}
		})
	}
}

func TestProbeRejectsGarbage(t *testing.T) {
	if _, err := Probe(bytes.NewReader([]byte("not an image"))); err == nil {
		t.Error("expected error for non-image data")
	}
	if _, err := Probe(bytes.NewReader(nil)); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestProbeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.png")
	if err := os.WriteFile(path, encodedImage(t, "png", 33, 44), 0644); err != nil {
		t.Fatal(err)
	}

	info, err := ProbeFile(path)
	if err != nil {
		t.Fatalf("ProbeFile: %v", err)
	}
	if info.Width != 33 || info.Height != 44 {
		t.Errorf("dims = %dx%d, want 33x44", info.Width, info.Height)
	}

	if _, err := ProbeFile(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDecode(t *testing.T) {
	data := encodedImage(t, "png", 24, 18)

	img, format, err := Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if format != "png" {
		t.Errorf("format = %q, want png", format)
	}
	b := img.Bounds()
	if b.Dx() != 24 || b.Dy() != 18 {
		t.Errorf("bounds = %dx%d, want 24x18", b.Dx(), b.Dy())
	}
}
