// Package segment produces object masks with OpenCV's GrabCut, either
// seeded by a user-drawn rectangle ("magic grab") or automatically for
// the dominant foreground. Results carry an RLE mask, its bbox, and a
// coverage-based confidence, ready for object layer creation.
package segment

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"layer-anything/pkg/geometry"
	"layer-anything/pkg/rle"
)

// ErrBusy is returned when the segmentation queue stays full past the
// configured wait.
var ErrBusy = errors.New("segmentation queue full")

// Config controls the segmentation service.
type Config struct {
	// Iterations is the GrabCut iteration count.
	Iterations int

	// MaxConcurrent bounds the number of simultaneous GrabCut runs.
	// GrabCut is memory-hungry; unbounded concurrency can exhaust a
	// small host.
	MaxConcurrent int

	// QueueTimeout is how long a request waits for a free slot.
	QueueTimeout time.Duration

	// MaxDimension is the working-resolution cap. Larger images are
	// downscaled for segmentation and the mask is scaled back up.
	MaxDimension int
}

// DefaultConfig returns the service defaults.
func DefaultConfig() Config {
	return Config{
		Iterations:    5,
		MaxConcurrent: 2,
		QueueTimeout:  10 * time.Second,
		MaxDimension:  1200,
	}
}

// Result is one segmented object in source-image coordinates.
type Result struct {
	Mask       *rle.Mask
	BBox       geometry.Rect
	Confidence float64
}

// Service runs GrabCut segmentations with bounded concurrency.
type Service struct {
	cfg       Config
	semaphore chan struct{}
	logger    *zap.Logger
}

// NewService creates a segmentation service. Zero config fields fall
// back to defaults.
func NewService(cfg Config, logger *zap.Logger) *Service {
	def := DefaultConfig()
	if cfg.Iterations <= 0 {
		cfg.Iterations = def.Iterations
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.QueueTimeout <= 0 {
		cfg.QueueTimeout = def.QueueTimeout
	}
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = def.MaxDimension
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:       cfg,
		semaphore: make(chan struct{}, cfg.MaxConcurrent),
		logger:    logger,
	}
}

// Segment extracts the object inside the given rectangle. The rect is
// in source-image pixels and seeds GrabCut; everything outside it is
// treated as definite background.
func (s *Service) Segment(ctx context.Context, img gocv.Mat, rect geometry.RectInt) (*Result, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	clipped := rect.Clamp(img.Cols(), img.Rows())
	if clipped.Empty() {
		return nil, fmt.Errorf("selection %+v outside image bounds", rect)
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()

	scaled, scale := smartResize(img, s.cfg.MaxDimension)
	defer scaled.Close()

	initRect := scaleRect(clipped, scale)

	mask := gocv.NewMat()
	defer mask.Close()
	bgdModel := gocv.NewMat()
	defer bgdModel.Close()
	fgdModel := gocv.NewMat()
	defer fgdModel.Close()

	gocv.GrabCut(scaled, &mask, initRect, &bgdModel, &fgdModel, s.cfg.Iterations, gocv.GCInitWithRect)

	fgMask := extractForeground(mask)
	defer fgMask.Close()

	result, err := s.finish(fgMask, img.Cols(), img.Rows(), scale, false)
	if err != nil {
		return nil, err
	}

	s.logger.Info("segmented selection",
		zap.Int("width", img.Cols()),
		zap.Int("height", img.Rows()),
		zap.Float64("confidence", result.Confidence),
		zap.Duration("duration", time.Since(start)))

	return result, nil
}

// AutoSegment extracts the dominant foreground object without a user
// rectangle, seeding GrabCut with a border margin and keeping only the
// largest connected region.
func (s *Service) AutoSegment(ctx context.Context, img gocv.Mat) (*Result, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()

	scaled, scale := smartResize(img, s.cfg.MaxDimension)
	defer scaled.Close()

	w, h := scaled.Cols(), scaled.Rows()
	border := borderMargin(w, h)
	initRect := image.Rect(border, border, w-border, h-border)

	mask := gocv.NewMat()
	defer mask.Close()
	bgdModel := gocv.NewMat()
	defer bgdModel.Close()
	fgdModel := gocv.NewMat()
	defer fgdModel.Close()

	gocv.GrabCut(scaled, &mask, initRect, &bgdModel, &fgdModel, s.cfg.Iterations, gocv.GCInitWithRect)

	fgMask := extractForeground(mask)
	defer fgMask.Close()

	result, err := s.finish(fgMask, img.Cols(), img.Rows(), scale, true)
	if err != nil {
		return nil, err
	}

	s.logger.Info("segmented foreground",
		zap.Int("width", img.Cols()),
		zap.Int("height", img.Rows()),
		zap.Float64("confidence", result.Confidence),
		zap.Duration("duration", time.Since(start)))

	return result, nil
}

// SegmentFile runs Segment on the image at path.
func (s *Service) SegmentFile(ctx context.Context, path string, rect geometry.RectInt) (*Result, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		return nil, fmt.Errorf("reading image %s", path)
	}
	defer img.Close()
	return s.Segment(ctx, img, rect)
}

// AutoSegmentFile runs AutoSegment on the image at path.
func (s *Service) AutoSegmentFile(ctx context.Context, path string) (*Result, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		return nil, fmt.Errorf("reading image %s", path)
	}
	defer img.Close()
	return s.AutoSegment(ctx, img)
}

// acquire takes a concurrency slot, waiting up to the queue timeout.
func (s *Service) acquire(ctx context.Context) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueueTimeout)
	defer cancel()

	select {
	case s.semaphore <- struct{}{}:
		return func() { <-s.semaphore }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrBusy, ctx.Err())
	}
}

// finish post-processes a working-resolution foreground mask into a
// source-resolution result.
func (s *Service) finish(fgMask gocv.Mat, width, height int, scale float64, largestOnly bool) (*Result, error) {
	cleaned := morphologyOptimize(fgMask, 3)
	defer cleaned.Close()

	refined := refineEdges(cleaned)
	defer refined.Close()

	full := restoreScale(refined, width, height, scale)
	defer full.Close()

	if largestOnly {
		largest := keepLargest(full)
		full.Close()
		full = largest
	}

	bbox := maskBounds(full)
	if bbox.Empty() {
		return nil, fmt.Errorf("no foreground found")
	}

	data := full.ToBytes()
	mask, err := rle.FromBytes(data, width, height, 128)
	if err != nil {
		return nil, fmt.Errorf("encoding mask: %w", err)
	}

	return &Result{
		Mask:       mask,
		BBox:       bbox.ToFloat(),
		Confidence: coverageConfidence(mask.Area(), width, height),
	}, nil
}

// smartResize caps the working resolution, returning the scale factor
// applied (1.0 when no resize happened).
func smartResize(img gocv.Mat, maxSize int) (gocv.Mat, float64) {
	width, height := img.Cols(), img.Rows()
	if maxDim := max(width, height); maxDim > maxSize {
		scale := float64(maxSize) / float64(maxDim)
		resized := gocv.NewMat()
		gocv.Resize(img, &resized, image.Point{
			X: int(float64(width) * scale),
			Y: int(float64(height) * scale),
		}, 0, 0, gocv.InterpolationArea)
		return resized, scale
	}
	return img.Clone(), 1.0
}

// restoreScale maps a working-resolution mask back to source size.
func restoreScale(mask gocv.Mat, width, height int, scale float64) gocv.Mat {
	if scale == 1.0 {
		return mask.Clone()
	}
	resized := gocv.NewMat()
	gocv.Resize(mask, &resized, image.Point{X: width, Y: height}, 0, 0, gocv.InterpolationLinear)
	gocv.Threshold(resized, &resized, 127, 255, gocv.ThresholdBinary)
	return resized
}

// scaleRect maps a source-space selection into working-resolution
// coordinates.
func scaleRect(r geometry.RectInt, scale float64) image.Rectangle {
	return image.Rect(
		int(float64(r.X)*scale),
		int(float64(r.Y)*scale),
		int(float64(r.X+r.Width)*scale),
		int(float64(r.Y+r.Height)*scale),
	)
}

// borderMargin picks the definite-background border for automatic
// segmentation: 5% of the smaller dimension, at least 10px.
func borderMargin(width, height int) int {
	m := int(float64(min(width, height)) * 0.05)
	if m < 10 {
		m = 10
	}
	return m
}

// coverageConfidence scores a mask by its image coverage, clamped away
// from the extremes: a mask covering almost nothing or almost
// everything is rarely a clean object cut.
func coverageConfidence(area, width, height int) float64 {
	confidence := float64(area) / float64(width*height)
	if confidence < 0.05 {
		confidence = 0.05
	}
	if confidence > 0.95 {
		confidence = 0.95
	}
	return confidence
}
