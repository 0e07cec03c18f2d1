package server

import (
	"bytes"
	"image"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"layer-anything/internal/preview"
)

// thumbnail serves a downscaled view of the document, or of a single layer
// when ?layer= names one. Object layers keep mask transparency unless
// ?mask=false.
func (s *Server) thumbnail(c *gin.Context) {
	doc, found := s.document(c)
	if !found {
		return
	}

	size, err := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(preview.DefaultMaxDimension)))
	if err != nil || size <= 0 {
		fail(c, http.StatusBadRequest, "size must be a positive integer", err)
		return
	}
	format := c.DefaultQuery("format", "png")
	maskAlpha := c.DefaultQuery("mask", "true") != "false"

	var img image.Image
	if layerID := c.Query("layer"); layerID != "" {
		l := doc.Engine.GetLayer(layerID)
		if l == nil {
			fail(c, http.StatusNotFound, "layer not found", nil)
			return
		}
		img, err = preview.LayerThumbnail(doc.Image, l, size, maskAlpha)
		if err != nil {
			fail(c, http.StatusUnprocessableEntity, "layer has no visible area", err)
			return
		}
	} else {
		img = preview.Thumbnail(doc.Image, size)
	}

	s.writeImage(c, img, format)
}

// composite flattens all visible layers at their current transforms.
func (s *Server) composite(c *gin.Context) {
	doc, found := s.document(c)
	if !found {
		return
	}

	renderer := preview.NewRenderer(doc.Image)
	img := renderer.Render(doc.Engine.GetLayers())
	s.writeImage(c, img, c.DefaultQuery("format", "png"))
}

// overlay serves the source image with layer outlines and optional mask
// tinting for debugging and selection UIs.
func (s *Server) overlay(c *gin.Context) {
	doc, found := s.document(c)
	if !found {
		return
	}

	opts := preview.OverlayOptions{Selected: c.Query("selected")}
	if raw := c.Query("tint"); raw != "" {
		tint, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			fail(c, http.StatusBadRequest, "tint must be a number", err)
			return
		}
		opts.MaskTint = tint
	}
	if raw := c.Query("stroke"); raw != "" {
		stroke, err := strconv.Atoi(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, "stroke must be an integer", err)
			return
		}
		opts.Stroke = stroke
	}

	img := preview.Overlay(doc.Image, doc.Engine.GetLayers(), opts)
	s.writeImage(c, img, "png")
}

func (s *Server) writeImage(c *gin.Context, img image.Image, format string) {
	var buf bytes.Buffer
	if err := preview.Encode(&buf, img, preview.EncodeOptions{Format: format}); err != nil {
		fail(c, http.StatusBadRequest, "encoding image", err)
		return
	}
	c.Data(http.StatusOK, preview.ContentType(format), buf.Bytes())
}
