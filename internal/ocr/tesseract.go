// Package ocr extracts text blocks from photos using Tesseract, for
// conversion into text layers. Detections are returned in source-image
// pixel coordinates with confidences normalized to [0, 1].
package ocr

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"

	"layer-anything/internal/layer"
	"layer-anything/pkg/geometry"
)

// minOCRDimension is the smallest image dimension fed to Tesseract.
// Smaller inputs are upscaled first; detection boxes are mapped back
// to source coordinates afterwards.
const minOCRDimension = 150

// Config controls an OCR engine instance.
type Config struct {
	// Language is the Tesseract language code, e.g. "eng" or "eng+deu".
	Language string

	// MinConfidence filters out detections below this value (0-1).
	MinConfidence float64

	// Binarize applies CLAHE plus Otsu thresholding before
	// recognition. Helps high-contrast sign/print text; can hurt
	// low-contrast scene text.
	Binarize bool
}

// DefaultConfig returns the engine defaults used when fields are unset.
func DefaultConfig() Config {
	return Config{
		Language:      "eng",
		MinConfidence: 0.3,
		Binarize:      true,
	}
}

// Engine wraps a Tesseract client. The client holds native state that
// cannot be shared between goroutines, so all calls are serialized
// internally.
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
	cfg    Config
}

// NewEngine creates an OCR engine for the configured language.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Language == "" {
		cfg.Language = DefaultConfig().Language
	}

	client := gosseract.NewClient()
	if err := client.SetLanguage(strings.Split(cfg.Language, "+")...); err != nil {
		client.Close()
		return nil, fmt.Errorf("setting OCR language %q: %w", cfg.Language, err)
	}

	return &Engine{client: client, cfg: cfg}, nil
}

// Close releases the native Tesseract resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		err := e.client.Close()
		e.client = nil
		return err
	}
	return nil
}

// DetectBlocks runs text detection over the whole image at the given
// granularity and returns one block per detected element, filtered by
// the configured minimum confidence. An empty granularity defaults to
// line level.
func (e *Engine) DetectBlocks(img gocv.Mat, granularity layer.Granularity) ([]layer.TextBlock, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}
	if granularity == "" {
		granularity = layer.GranularityLine
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	processed, scale := preprocess(img, e.cfg.Binarize)
	defer processed.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, processed)
	if err != nil {
		return nil, fmt.Errorf("encoding image for OCR: %w", err)
	}
	defer buf.Close()

	if err := e.client.SetPageSegMode(pageSegMode(granularity)); err != nil {
		return nil, fmt.Errorf("setting page segmentation mode: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return nil, fmt.Errorf("setting OCR image: %w", err)
	}

	boxes, err := e.client.GetBoundingBoxes(iteratorLevel(granularity))
	if err != nil {
		return nil, fmt.Errorf("running text detection: %w", err)
	}

	blocks := make([]layer.TextBlock, 0, len(boxes))
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" {
			continue
		}
		confidence := normalizeConfidence(box.Confidence)
		if confidence < e.cfg.MinConfidence {
			continue
		}

		blocks = append(blocks, layer.TextBlock{
			Text: text,
			BBox: geometry.NewRect(
				float64(box.Box.Min.X)/scale,
				float64(box.Box.Min.Y)/scale,
				float64(box.Box.Dx())/scale,
				float64(box.Box.Dy())/scale,
			),
			Confidence: confidence,
			Type:       granularity,
			Language:   e.cfg.Language,
		})
	}

	return blocks, nil
}

// DetectFile runs DetectBlocks on the image at path.
func (e *Engine) DetectFile(path string, granularity layer.Granularity) ([]layer.TextBlock, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		return nil, fmt.Errorf("reading image %s", path)
	}
	defer img.Close()
	return e.DetectBlocks(img, granularity)
}

// RecognizeRegion performs plain OCR on a region of an image,
// returning the recognized text with whitespace collapsed. Used to
// re-read a layer's bbox after an edit.
func (e *Engine) RecognizeRegion(img gocv.Mat, bounds geometry.RectInt) (string, error) {
	if img.Empty() {
		return "", fmt.Errorf("empty image")
	}

	clipped := bounds.Clamp(img.Cols(), img.Rows())
	if clipped.Empty() {
		return "", fmt.Errorf("region outside image bounds")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	region := img.Region(image.Rect(clipped.X, clipped.Y, clipped.X+clipped.Width, clipped.Y+clipped.Height))
	defer region.Close()

	processed, _ := preprocess(region, e.cfg.Binarize)
	defer processed.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, processed)
	if err != nil {
		return "", fmt.Errorf("encoding region for OCR: %w", err)
	}
	defer buf.Close()

	if err := e.client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return "", fmt.Errorf("setting page segmentation mode: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return "", fmt.Errorf("setting OCR image: %w", err)
	}

	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("recognizing region: %w", err)
	}

	return strings.Join(strings.Fields(text), " "), nil
}

// preprocess prepares an image for Tesseract and returns the upscale
// factor applied, so detection boxes can be mapped back to source
// coordinates.
func preprocess(img gocv.Mat, binarize bool) (gocv.Mat, float64) {
	h, w := img.Rows(), img.Cols()

	scale := 1.0
	var scaled gocv.Mat
	if minDim := min(h, w); minDim > 0 && minDim < minOCRDimension {
		scale = float64(minOCRDimension) / float64(minDim)
		scaled = gocv.NewMat()
		gocv.Resize(img, &scaled, image.Point{}, scale, scale, gocv.InterpolationCubic)
	} else {
		scaled = img.Clone()
	}

	gray := gocv.NewMat()
	gocv.CvtColor(scaled, &gray, gocv.ColorBGRToGray)
	scaled.Close()

	if !binarize {
		return gray, scale
	}

	clahe := gocv.NewCLAHEWithParams(2.0, image.Point{X: 8, Y: 8})
	defer clahe.Close()

	enhanced := gocv.NewMat()
	clahe.Apply(gray, &enhanced)
	gray.Close()

	binary := gocv.NewMat()
	gocv.Threshold(enhanced, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	enhanced.Close()

	// Tesseract expects dark text on a light background; invert when
	// the thresholded image is mostly white (light-on-dark text).
	whiteRatio := float64(gocv.CountNonZero(binary)) / float64(binary.Rows()*binary.Cols())
	if whiteRatio > 0.5 {
		gocv.BitwiseNot(binary, &binary)
	}

	return binary, scale
}

// pageSegMode picks the Tesseract segmentation mode for a granularity.
// Word extraction uses sparse mode to catch isolated labels; coarser
// levels use full automatic page segmentation.
func pageSegMode(g layer.Granularity) gosseract.PageSegMode {
	if g == layer.GranularityWord {
		return gosseract.PSM_SPARSE_TEXT
	}
	return gosseract.PSM_AUTO
}

func iteratorLevel(g layer.Granularity) gosseract.PageIteratorLevel {
	switch g {
	case layer.GranularityBlock:
		return gosseract.RIL_BLOCK
	case layer.GranularityParagraph:
		return gosseract.RIL_PARA
	case layer.GranularityWord:
		return gosseract.RIL_WORD
	default:
		return gosseract.RIL_TEXTLINE
	}
}

// normalizeConfidence maps Tesseract's 0-100 confidence onto [0, 1].
func normalizeConfidence(v float64) float64 {
	c := v / 100
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
