package preview

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"layer-anything/internal/layer"
)

const (
	// DefaultMaxDimension bounds the longest side of generated thumbnails.
	DefaultMaxDimension = 512
	// DefaultQuality is the lossy encoder quality used when none is given.
	DefaultQuality = 85
)

// EncodeOptions controls thumbnail encoding.
type EncodeOptions struct {
	Format   string // "png", "jpeg" or "webp"
	Quality  int    // lossy quality 1-100, 0 means DefaultQuality
	Lossless bool   // webp only
}

// Thumbnail downscales an image so its longest side is at most maxDim.
// Smaller images pass through unchanged.
func Thumbnail(img image.Image, maxDim int) image.Image {
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}
	if w >= h {
		return imaging.Resize(img, maxDim, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, maxDim, imaging.Lanczos)
}

// LayerThumbnail crops the layer's bbox out of the source image and downscales
// it. When maskAlpha is set and the layer carries a mask, pixels outside the
// mask come out transparent.
func LayerThumbnail(src image.Image, l *layer.Layer, maxDim int, maskAlpha bool) (image.Image, error) {
	region := imageRect(l.BBox.Round()).Intersect(src.Bounds())
	if region.Empty() {
		return nil, fmt.Errorf("layer %s has an empty crop rectangle", l.ID)
	}

	var patch image.Image
	if maskAlpha && l.Mask != nil {
		patch = cutout(src, l.Mask, region)
	} else {
		patch = imaging.Crop(src, region)
	}
	return Thumbnail(patch, maxDim), nil
}

// FitCover crops and scales an image to exactly width x height, keeping the
// center.
func FitCover(img image.Image, width, height int) image.Image {
	return imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)
}

// Encode writes the image in the requested format. An empty format encodes
// PNG, which keeps mask transparency intact.
func Encode(w io.Writer, img image.Image, opts EncodeOptions) error {
	quality := opts.Quality
	if quality <= 0 {
		quality = DefaultQuality
	}

	switch strings.ToLower(opts.Format) {
	case "webp":
		return webp.Encode(w, img, &webp.Options{Lossless: opts.Lossless, Quality: float32(quality)})
	case "jpeg", "jpg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case "png", "":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		return enc.Encode(w, img)
	default:
		return fmt.Errorf("unsupported image format %q", opts.Format)
	}
}

// ContentType returns the MIME type for an encoding format.
func ContentType(format string) string {
	switch strings.ToLower(format) {
	case "webp":
		return "image/webp"
	case "jpeg", "jpg":
		return "image/jpeg"
	default:
		return "image/png"
	}
}

// Save writes the image to a file with the specified format and quality.
func Save(img image.Image, path string, opts EncodeOptions) error {
	switch strings.ToLower(opts.Format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return Encode(f, img, opts)
	case "jpeg", "jpg":
		quality := opts.Quality
		if quality <= 0 {
			quality = DefaultQuality
		}
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	default:
		return imaging.Save(img, path)
	}
}
