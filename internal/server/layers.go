package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"layer-anything/internal/layer"
	"layer-anything/internal/logging"
	"layer-anything/pkg/geometry"
)

type moveRequest struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

type resizeRequest struct {
	Scale float64 `json:"scale"`
}

type renameRequest struct {
	Name string `json:"name" binding:"required"`
}

type visibilityRequest struct {
	Visible *bool `json:"visible" binding:"required"`
}

type lockRequest struct {
	Locked *bool `json:"locked" binding:"required"`
}

type opacityRequest struct {
	Opacity *float64 `json:"opacity" binding:"required"`
}

type backgroundRequest struct {
	ExcludedLayers []string `json:"excludedLayers"`
}

// target resolves the :layerID parameter against the document's graph.
// Answers 404 and returns nil when the layer does not exist.
func (s *Server) target(c *gin.Context, doc *Document) *layer.Layer {
	l := doc.Engine.GetLayer(c.Param("layerID"))
	if l == nil {
		fail(c, http.StatusNotFound, "layer not found", nil)
		return nil
	}
	return l
}

func (s *Server) listLayers(c *gin.Context) {
	doc, found := s.document(c)
	if !found {
		return
	}
	ok(c, http.StatusOK, "layers", doc.Engine.GetLayers())
}

func (s *Server) getLayer(c *gin.Context) {
	doc, found := s.document(c)
	if !found {
		return
	}
	l := s.target(c, doc)
	if l == nil {
		return
	}
	ok(c, http.StatusOK, "layer", l)
}

func (s *Server) moveLayer(c *gin.Context) {
	doc, found := s.document(c)
	if !found {
		return
	}
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	l := s.target(c, doc)
	if l == nil {
		return
	}

	if !doc.Engine.MoveLayer(l.ID, geometry.Point2D{X: req.DX, Y: req.DY}) {
		fail(c, http.StatusLocked, "layer is locked", nil)
		return
	}
	ok(c, http.StatusOK, "layer moved", doc.Engine.GetLayer(l.ID))
}

func (s *Server) resizeLayer(c *gin.Context) {
	doc, found := s.document(c)
	if !found {
		return
	}
	var req resizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Scale <= 0 {
		fail(c, http.StatusBadRequest, "scale must be positive", nil)
		return
	}
	l := s.target(c, doc)
	if l == nil {
		return
	}

	if !doc.Engine.ResizeLayer(l.ID, req.Scale) {
		fail(c, http.StatusLocked, "layer is locked", nil)
		return
	}
	ok(c, http.StatusOK, "layer resized", doc.Engine.GetLayer(l.ID))
}

func (s *Server) renameLayer(c *gin.Context) {
	doc, found := s.document(c)
	if !found {
		return
	}
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "name required", err)
		return
	}
	l := s.target(c, doc)
	if l == nil {
		return
	}

	if !doc.Engine.RenameLayer(l.ID, req.Name) {
		fail(c, http.StatusNotFound, "layer not found", nil)
		return
	}
	ok(c, http.StatusOK, "layer renamed", doc.Engine.GetLayer(l.ID))
}

func (s *Server) setVisibility(c *gin.Context) {
	doc, found := s.document(c)
	if !found {
		return
	}
	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "visible required", err)
		return
	}
	l := s.target(c, doc)
	if l == nil {
		return
	}

	if !doc.Engine.SetLayerVisibility(l.ID, *req.Visible) {
		fail(c, http.StatusNotFound, "layer not found", nil)
		return
	}
	ok(c, http.StatusOK, "visibility updated", doc.Engine.GetLayer(l.ID))
}

func (s *Server) setLocked(c *gin.Context) {
	doc, found := s.document(c)
	if !found {
		return
	}
	var req lockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "locked required", err)
		return
	}
	l := s.target(c, doc)
	if l == nil {
		return
	}

	if !doc.Engine.SetLayerLocked(l.ID, *req.Locked) {
		fail(c, http.StatusNotFound, "layer not found", nil)
		return
	}
	ok(c, http.StatusOK, "lock updated", doc.Engine.GetLayer(l.ID))
}

func (s *Server) setOpacity(c *gin.Context) {
	doc, found := s.document(c)
	if !found {
		return
	}
	var req opacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "opacity required", err)
		return
	}
	l := s.target(c, doc)
	if l == nil {
		return
	}

	// Out-of-range values are clamped to [0, 1] rather than rejected.
	if !doc.Engine.SetLayerOpacity(l.ID, *req.Opacity) {
		fail(c, http.StatusNotFound, "layer not found", nil)
		return
	}
	ok(c, http.StatusOK, "opacity updated", doc.Engine.GetLayer(l.ID))
}

func (s *Server) bringToFront(c *gin.Context) {
	doc, found := s.document(c)
	if !found {
		return
	}
	l := s.target(c, doc)
	if l == nil {
		return
	}
	if l.Type == layer.TypeBackground {
		fail(c, http.StatusBadRequest, "background layer cannot be reordered", nil)
		return
	}

	if !doc.Engine.BringToFront(l.ID) {
		fail(c, http.StatusNotFound, "layer not found", nil)
		return
	}
	ok(c, http.StatusOK, "layer brought to front", doc.Engine.GetLayer(l.ID))
}

func (s *Server) duplicateLayer(c *gin.Context) {
	doc, found := s.document(c)
	if !found {
		return
	}
	l := s.target(c, doc)
	if l == nil {
		return
	}
	if l.Type == layer.TypeBackground {
		fail(c, http.StatusBadRequest, "background layer cannot be duplicated", nil)
		return
	}

	copyID, created := doc.Engine.DuplicateLayer(l.ID)
	if !created {
		fail(c, http.StatusNotFound, "layer not found", nil)
		return
	}
	logging.Logger.Info("layer duplicated",
		zap.String("document", doc.ID),
		zap.String("source", l.ID),
		zap.String("copy", copyID))
	ok(c, http.StatusCreated, "layer duplicated", doc.Engine.GetLayer(copyID))
}

func (s *Server) deleteLayer(c *gin.Context) {
	doc, found := s.document(c)
	if !found {
		return
	}
	l := s.target(c, doc)
	if l == nil {
		return
	}
	if l.Type == layer.TypeBackground {
		fail(c, http.StatusBadRequest, "background layer cannot be deleted", nil)
		return
	}

	if !doc.Engine.DeleteLayer(l.ID) {
		fail(c, http.StatusNotFound, "layer not found", nil)
		return
	}
	logging.Logger.Info("layer deleted",
		zap.String("document", doc.ID),
		zap.String("layer", l.ID))
	ok(c, http.StatusOK, "layer deleted", nil)
}

func (s *Server) updateBackground(c *gin.Context) {
	doc, found := s.document(c)
	if !found {
		return
	}
	var req backgroundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := doc.Engine.UpdateBackgroundLayer(req.ExcludedLayers); err != nil {
		fail(c, http.StatusInternalServerError, "updating background", err)
		return
	}

	for _, l := range doc.Engine.GetLayers() {
		if l.Type == layer.TypeBackground {
			ok(c, http.StatusOK, "background updated", l)
			return
		}
	}
	fail(c, http.StatusInternalServerError, "background layer missing", nil)
}

func (s *Server) exportDocument(c *gin.Context) {
	doc, found := s.document(c)
	if !found {
		return
	}

	data, err := doc.Engine.ExportJSON()
	if err != nil {
		fail(c, http.StatusInternalServerError, "exporting layer graph", err)
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

func (s *Server) importDocument(c *gin.Context) {
	doc, found := s.document(c)
	if !found {
		return
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, "reading request body", err)
		return
	}

	// Import is atomic. A rejected payload leaves the current graph intact.
	if err := doc.Engine.ImportJSON(data); err != nil {
		fail(c, http.StatusBadRequest, "import rejected", err)
		return
	}

	logging.Logger.Info("document imported",
		zap.String("document", doc.ID),
		zap.Int("layers", doc.Engine.LayerCount()))
	ok(c, http.StatusOK, "layer graph imported", gin.H{
		"graphId":    doc.Engine.GraphID(),
		"layerCount": doc.Engine.LayerCount(),
	})
}
