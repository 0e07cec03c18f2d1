package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"layer-anything/internal/layer"
	"layer-anything/internal/logging"
	"layer-anything/internal/preview"
	"layer-anything/internal/segment"
	"layer-anything/pkg/geometry"
)

type segmentRequest struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Width    int    `json:"width" binding:"required"`
	Height   int    `json:"height" binding:"required"`
	Category string `json:"category"`
}

type autoSegmentRequest struct {
	Category string `json:"category"`
}

// detectText runs OCR over the document and creates one text layer per
// detected block. Results are cached per image hash and granularity so a
// repeated detection skips the OCR pass.
func (s *Server) detectText(c *gin.Context) {
	doc, found := s.document(c)
	if !found {
		return
	}
	if s.ocr == nil {
		fail(c, http.StatusServiceUnavailable, "text detection is not available", nil)
		return
	}

	granularity := layer.Granularity(c.DefaultQuery("granularity", string(layer.GranularityLine)))
	switch granularity {
	case layer.GranularityBlock, layer.GranularityParagraph, layer.GranularityLine, layer.GranularityWord:
	default:
		fail(c, http.StatusBadRequest, "invalid granularity "+string(granularity), nil)
		return
	}

	ctx := c.Request.Context()
	key := textKey(doc.MD5, granularity)

	var blocks []layer.TextBlock
	cached := false
	if s.cache != nil {
		hit, err := s.cache.GetJSON(ctx, key, &blocks)
		if err != nil {
			logging.Logger.Warn("text cache read failed", zap.String("key", key), zap.Error(err))
		}
		cached = hit && err == nil
	}

	if !cached {
		mat, err := gocv.IMDecode(doc.Data, gocv.IMReadColor)
		if err != nil {
			fail(c, http.StatusInternalServerError, "decoding image", err)
			return
		}
		defer mat.Close()

		blocks, err = s.ocr.DetectBlocks(mat, granularity)
		if err != nil {
			fail(c, http.StatusInternalServerError, "text detection failed", err)
			return
		}

		if s.cache != nil {
			if err := s.cache.SetJSON(ctx, key, blocks); err != nil {
				logging.Logger.Warn("text cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
	}

	created := make([]*layer.Layer, 0, len(blocks))
	for _, block := range blocks {
		id, err := doc.Engine.CreateTextLayer(block)
		if err != nil {
			fail(c, http.StatusInternalServerError, "creating text layer", err)
			return
		}
		created = append(created, doc.Engine.GetLayer(id))
	}

	logging.Logger.Info("text detected",
		zap.String("document", doc.ID),
		zap.String("granularity", string(granularity)),
		zap.Int("layers", len(created)),
		zap.Bool("cached", cached))
	ok(c, http.StatusCreated, fmt.Sprintf("created %d text layers", len(created)), created)
}

// segmentObject cuts an object out of a user-drawn rectangle and creates an
// object layer carrying the resulting mask.
func (s *Server) segmentObject(c *gin.Context) {
	doc, found := s.document(c)
	if !found {
		return
	}
	if s.segment == nil {
		fail(c, http.StatusServiceUnavailable, "object segmentation is not available", nil)
		return
	}

	var req segmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	rect := geometry.RectInt{X: req.X, Y: req.Y, Width: req.Width, Height: req.Height}
	if rect.Width <= 0 || rect.Height <= 0 {
		fail(c, http.StatusBadRequest, "selection must have positive size", nil)
		return
	}

	res, err := s.cachedSegment(c, doc, objectKey(doc.MD5, rect), func(mat gocv.Mat) (*segment.Result, error) {
		return s.segment.Segment(c.Request.Context(), mat, rect)
	})
	if err != nil {
		return
	}

	s.createObjectFromResult(c, doc, res, req.Category)
}

// segmentAuto segments the most prominent object without a user selection.
func (s *Server) segmentAuto(c *gin.Context) {
	doc, found := s.document(c)
	if !found {
		return
	}
	if s.segment == nil {
		fail(c, http.StatusServiceUnavailable, "object segmentation is not available", nil)
		return
	}

	var req autoSegmentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "invalid request body", err)
			return
		}
	}

	res, err := s.cachedSegment(c, doc, autoKey(doc.MD5), func(mat gocv.Mat) (*segment.Result, error) {
		return s.segment.AutoSegment(c.Request.Context(), mat)
	})
	if err != nil {
		return
	}

	s.createObjectFromResult(c, doc, res, req.Category)
}

// cachedSegment wraps a segmentation call with the redis cache. It writes the
// HTTP error response itself, so callers only need to bail on error.
func (s *Server) cachedSegment(c *gin.Context, doc *Document, key string, run func(gocv.Mat) (*segment.Result, error)) (*segment.Result, error) {
	ctx := c.Request.Context()

	var res segment.Result
	if s.cache != nil {
		hit, err := s.cache.GetJSON(ctx, key, &res)
		if err != nil {
			logging.Logger.Warn("segment cache read failed", zap.String("key", key), zap.Error(err))
		} else if hit {
			return &res, nil
		}
	}

	mat, err := gocv.IMDecode(doc.Data, gocv.IMReadColor)
	if err != nil {
		fail(c, http.StatusInternalServerError, "decoding image", err)
		return nil, err
	}
	defer mat.Close()

	out, err := run(mat)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, segment.ErrBusy) {
			status = http.StatusServiceUnavailable
		}
		fail(c, status, "segmentation failed", err)
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, out); err != nil {
			logging.Logger.Warn("segment cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return out, nil
}

// createObjectFromResult turns a segmentation result into an object layer.
// When no category was supplied and a caption client is configured, the
// layer patch is sent off for a category suggestion first; caption failures
// degrade to the default category.
func (s *Server) createObjectFromResult(c *gin.Context, doc *Document, res *segment.Result, category string) {
	opts := layer.ObjectOptions{Category: category, Confidence: res.Confidence}

	if opts.Category == "" && s.caption != nil {
		probe := &layer.Layer{Type: layer.TypeObject, BBox: res.BBox, Mask: res.Mask}
		patch, err := preview.LayerThumbnail(doc.Image, probe, preview.DefaultMaxDimension, true)
		if err == nil {
			suggestion, err := s.caption.SuggestCategory(c.Request.Context(), patch)
			if err != nil {
				logging.Logger.Warn("category suggestion failed",
					zap.String("document", doc.ID), zap.Error(err))
			} else {
				opts.Category = suggestion.Category
			}
		}
	}

	id, err := doc.Engine.CreateObjectLayer(res.Mask, res.BBox, opts)
	if err != nil {
		fail(c, http.StatusInternalServerError, "creating object layer", err)
		return
	}

	logging.Logger.Info("object segmented",
		zap.String("document", doc.ID),
		zap.String("layer", id),
		zap.Float64("confidence", res.Confidence))
	ok(c, http.StatusCreated, "object layer created", doc.Engine.GetLayer(id))
}
