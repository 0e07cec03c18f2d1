// Package rle implements run-length-encoded binary masks.
//
// A mask stores alternating run counts over row-major pixel order, starting
// with a run of zeros (which may be empty). Size is [height, width]. This
// keeps many simultaneous object masks compact; consumers needing pixels
// decode on demand.
package rle

import (
	"fmt"
	"image"
	"image/color"

	"layer-anything/pkg/geometry"
)

// Mask is a run-length-encoded binary bitmap.
type Mask struct {
	Counts []int  `json:"counts"`
	Size   [2]int `json:"size"`
}

// New creates an empty (all zero) mask of the given dimensions.
func New(width, height int) *Mask {
	if width <= 0 || height <= 0 {
		return &Mask{}
	}
	return &Mask{
		Counts: []int{width * height},
		Size:   [2]int{height, width},
	}
}

// Height returns the mask height in pixels.
func (m *Mask) Height() int {
	return m.Size[0]
}

// Width returns the mask width in pixels.
func (m *Mask) Width() int {
	return m.Size[1]
}

// IsEmpty returns true for a zero-sized mask.
func (m *Mask) IsEmpty() bool {
	return m.Size[0] == 0 || m.Size[1] == 0
}

// Area returns the number of set pixels.
func (m *Mask) Area() int {
	area := 0
	for i := 1; i < len(m.Counts); i += 2 {
		area += m.Counts[i]
	}
	return area
}

// Clone returns a deep copy of the mask.
func (m *Mask) Clone() *Mask {
	counts := make([]int, len(m.Counts))
	copy(counts, m.Counts)
	return &Mask{Counts: counts, Size: m.Size}
}

// Validate checks that the run counts are non-negative and cover the mask
// dimensions exactly.
func (m *Mask) Validate() error {
	if m.Size[0] < 0 || m.Size[1] < 0 {
		return fmt.Errorf("rle: negative mask size %v", m.Size)
	}
	total := 0
	for i, c := range m.Counts {
		if c < 0 {
			return fmt.Errorf("rle: negative run count at index %d", i)
		}
		total += c
	}
	if want := m.Size[0] * m.Size[1]; total != want {
		return fmt.Errorf("rle: run counts cover %d pixels, mask size is %d", total, want)
	}
	return nil
}

// Bounds returns the bounding box of the set pixels. An empty or all-zero
// mask yields a zero rectangle.
func (m *Mask) Bounds() geometry.RectInt {
	width := m.Width()
	if width == 0 {
		return geometry.RectInt{}
	}

	minX, minY := width, m.Height()
	maxX, maxY := -1, -1

	pos := 0
	on := false
	for _, c := range m.Counts {
		if on {
			for p := pos; p < pos+c; p++ {
				x := p % width
				y := p / width
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
		pos += c
		on = !on
	}

	if maxX < 0 {
		return geometry.RectInt{}
	}
	return geometry.RectInt{
		X:      minX,
		Y:      minY,
		Width:  maxX - minX + 1,
		Height: maxY - minY + 1,
	}
}

// FromBitmap encodes a row-major bitmap into a mask.
func FromBitmap(bits []bool, width, height int) (*Mask, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("rle: invalid dimensions %dx%d", width, height)
	}
	if len(bits) != width*height {
		return nil, fmt.Errorf("rle: bitmap has %d pixels, want %d", len(bits), width*height)
	}

	var counts []int
	run := 0
	current := false
	for _, b := range bits {
		if b == current {
			run++
			continue
		}
		counts = append(counts, run)
		current = b
		run = 1
	}
	counts = append(counts, run)

	return &Mask{Counts: counts, Size: [2]int{height, width}}, nil
}

// FromBytes encodes a row-major single-channel byte buffer, treating values
// at or above threshold as set. This is the shape OpenCV mask mats decode to.
func FromBytes(data []byte, width, height int, threshold uint8) (*Mask, error) {
	if len(data) != width*height {
		return nil, fmt.Errorf("rle: buffer has %d bytes, want %d", len(data), width*height)
	}
	bits := make([]bool, len(data))
	for i, v := range data {
		bits[i] = v >= threshold
	}
	return FromBitmap(bits, width, height)
}

// FromImage encodes an image, treating pixels with gray value >= 128 as set.
func FromImage(img image.Image) (*Mask, error) {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("rle: empty image")
	}

	bits := make([]bool, width*height)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			bits[i] = g.Y >= 128
			i++
		}
	}
	return FromBitmap(bits, width, height)
}

// Bitmap decodes the mask into a row-major bitmap.
func (m *Mask) Bitmap() []bool {
	bits := make([]bool, m.Width()*m.Height())
	pos := 0
	on := false
	for _, c := range m.Counts {
		if on {
			for p := pos; p < pos+c && p < len(bits); p++ {
				bits[p] = true
			}
		}
		pos += c
		on = !on
	}
	return bits
}

// Decode renders the mask as an alpha image: set pixels are opaque.
func (m *Mask) Decode() *image.Alpha {
	width, height := m.Width(), m.Height()
	img := image.NewAlpha(image.Rect(0, 0, width, height))
	pos := 0
	on := false
	for _, c := range m.Counts {
		if on {
			for p := pos; p < pos+c && p < width*height; p++ {
				img.Pix[p] = 0xff
			}
		}
		pos += c
		on = !on
	}
	return img
}
