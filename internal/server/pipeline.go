package server

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"layer-anything/internal/layer"
	"layer-anything/internal/logging"
)

type promptRequest struct {
	Prompt string `json:"prompt"`
}

type maskedPromptRequest struct {
	LayerID string `json:"layerId" binding:"required"`
	Prompt  string `json:"prompt"`
}

// pipelineBackground proxies the document to the diffusion backend and
// returns a generated replacement background as PNG bytes.
func (s *Server) pipelineBackground(c *gin.Context) {
	doc, req, found := s.promptedDocument(c)
	if !found {
		return
	}

	out, err := s.pipeline.GenerateBackground(c.Request.Context(), doc.Data, req.Prompt)
	if err != nil {
		s.pipelineError(c, "background generation", err)
		return
	}
	c.Data(http.StatusOK, "image/png", out)
}

// pipelineInpaint removes a layer's source pixels from the document by
// inpainting its mask region.
func (s *Server) pipelineInpaint(c *gin.Context) {
	doc, l, req, found := s.maskedDocument(c)
	if !found {
		return
	}

	maskBytes, err := layerMaskPNG(l, doc.Image.Bounds())
	if err != nil {
		fail(c, http.StatusInternalServerError, "rendering layer mask", err)
		return
	}

	out, err := s.pipeline.Inpaint(c.Request.Context(), doc.Data, maskBytes, req.Prompt)
	if err != nil {
		s.pipelineError(c, "inpainting", err)
		return
	}
	c.Data(http.StatusOK, "image/png", out)
}

// pipelineEdit regenerates a layer's mask region from the prompt.
func (s *Server) pipelineEdit(c *gin.Context) {
	doc, l, req, found := s.maskedDocument(c)
	if !found {
		return
	}

	maskBytes, err := layerMaskPNG(l, doc.Image.Bounds())
	if err != nil {
		fail(c, http.StatusInternalServerError, "rendering layer mask", err)
		return
	}

	out, err := s.pipeline.Edit(c.Request.Context(), doc.Data, maskBytes, req.Prompt)
	if err != nil {
		s.pipelineError(c, "edit", err)
		return
	}
	c.Data(http.StatusOK, "image/png", out)
}

// pipelineExpand outpaints the document beyond its current canvas.
func (s *Server) pipelineExpand(c *gin.Context) {
	doc, req, found := s.promptedDocument(c)
	if !found {
		return
	}

	out, err := s.pipeline.Expand(c.Request.Context(), doc.Data, req.Prompt)
	if err != nil {
		s.pipelineError(c, "expand", err)
		return
	}
	c.Data(http.StatusOK, "image/png", out)
}

// promptedDocument resolves the document and an optional prompt body for
// whole-image pipeline operations.
func (s *Server) promptedDocument(c *gin.Context) (*Document, promptRequest, bool) {
	var req promptRequest

	doc, found := s.document(c)
	if !found {
		return nil, req, false
	}
	if s.pipeline == nil {
		fail(c, http.StatusServiceUnavailable, "pipeline backend is not configured", nil)
		return nil, req, false
	}

	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "invalid request body", err)
			return nil, req, false
		}
	}
	return doc, req, true
}

// maskedDocument resolves the document and target layer for mask-driven
// pipeline operations.
func (s *Server) maskedDocument(c *gin.Context) (*Document, *layer.Layer, maskedPromptRequest, bool) {
	var req maskedPromptRequest

	doc, found := s.document(c)
	if !found {
		return nil, nil, req, false
	}
	if s.pipeline == nil {
		fail(c, http.StatusServiceUnavailable, "pipeline backend is not configured", nil)
		return nil, nil, req, false
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "layerId required", err)
		return nil, nil, req, false
	}

	l := doc.Engine.GetLayer(req.LayerID)
	if l == nil {
		fail(c, http.StatusNotFound, "layer not found", nil)
		return nil, nil, req, false
	}
	if l.Type == layer.TypeBackground {
		fail(c, http.StatusBadRequest, "background layer has no mask region", nil)
		return nil, nil, req, false
	}
	return doc, l, req, true
}

func (s *Server) pipelineError(c *gin.Context, op string, err error) {
	logging.Logger.Warn("pipeline call failed", zap.String("op", op), zap.Error(err))
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		fail(c, http.StatusServiceUnavailable, op+" unavailable", err)
		return
	}
	fail(c, http.StatusBadGateway, op+" failed", err)
}

// layerMaskPNG renders the layer's editable region as a white-on-black mask
// over the full source canvas, the shape diffusion backends expect. Layers
// without a pixel mask fall back to their source bounding box.
func layerMaskPNG(l *layer.Layer, bounds image.Rectangle) ([]byte, error) {
	out := image.NewNRGBA(bounds)
	draw.Draw(out, bounds, image.NewUniform(color.NRGBA{0, 0, 0, 255}), image.Point{}, draw.Src)

	white := color.NRGBA{255, 255, 255, 255}
	if l.Mask != nil {
		alpha := l.Mask.Decode()
		region := alpha.Bounds().Intersect(bounds)
		for y := region.Min.Y; y < region.Max.Y; y++ {
			for x := region.Min.X; x < region.Max.X; x++ {
				if alpha.AlphaAt(x, y).A != 0 {
					out.SetNRGBA(x, y, white)
				}
			}
		}
	} else {
		r := l.BBox.Round()
		region := image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height).Intersect(bounds)
		draw.Draw(out, region, image.NewUniform(white), image.Point{}, draw.Src)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
