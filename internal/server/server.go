// Package server exposes the layer engine and its collaborators over HTTP.
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"layer-anything/internal/caption"
	"layer-anything/internal/config"
	"layer-anything/internal/ocr"
	"layer-anything/internal/pipeline"
	"layer-anything/internal/segment"
	"layer-anything/internal/version"
)

// Deps bundles the collaborators a Server needs. OCR, Segment, Pipeline and
// Caption may be nil; the matching endpoints then answer 503.
type Deps struct {
	Config   *config.Config
	Store    *DocumentStore
	Cache    *Cache
	OCR      *ocr.Engine
	Segment  *segment.Service
	Pipeline *pipeline.Client
	Caption  *caption.Client
}

// Server wires HTTP handlers to per-document layer engines.
type Server struct {
	cfg      *config.Config
	store    *DocumentStore
	cache    *Cache
	ocr      *ocr.Engine
	segment  *segment.Service
	pipeline *pipeline.Client
	caption  *caption.Client
}

// New creates a Server from its dependencies.
func New(deps Deps) *Server {
	return &Server{
		cfg:      deps.Config,
		store:    deps.Store,
		cache:    deps.Cache,
		ocr:      deps.OCR,
		segment:  deps.Segment,
		pipeline: deps.Pipeline,
		caption:  deps.Caption,
	}
}

// Router builds the gin engine with all routes and middleware. ctx bounds
// background goroutines started by middleware.
func (s *Server) Router(ctx context.Context) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(Logger())
	r.Use(CORS())
	if s.cfg.Limits.RequestsPerSecond > 0 {
		r.Use(RateLimit(ctx, s.cfg.Limits.RequestsPerSecond, s.cfg.Limits.Burst))
	}

	r.GET("/health", s.health)
	r.GET("/version", s.versionInfo)

	api := r.Group("/api/v1")
	{
		api.POST("/documents", s.createDocument)
		api.GET("/documents", s.listDocuments)
		api.GET("/documents/:id", s.getDocument)
		api.DELETE("/documents/:id", s.deleteDocument)

		api.POST("/documents/:id/detect/text", s.detectText)
		api.POST("/documents/:id/detect/object", s.segmentObject)
		api.POST("/documents/:id/detect/auto", s.segmentAuto)

		api.GET("/documents/:id/layers", s.listLayers)
		api.GET("/documents/:id/layers/:layerID", s.getLayer)
		api.DELETE("/documents/:id/layers/:layerID", s.deleteLayer)
		api.PATCH("/documents/:id/layers/:layerID/move", s.moveLayer)
		api.PATCH("/documents/:id/layers/:layerID/resize", s.resizeLayer)
		api.PATCH("/documents/:id/layers/:layerID/rename", s.renameLayer)
		api.PATCH("/documents/:id/layers/:layerID/visibility", s.setVisibility)
		api.PATCH("/documents/:id/layers/:layerID/lock", s.setLocked)
		api.PATCH("/documents/:id/layers/:layerID/opacity", s.setOpacity)
		api.POST("/documents/:id/layers/:layerID/front", s.bringToFront)
		api.POST("/documents/:id/layers/:layerID/duplicate", s.duplicateLayer)
		api.PUT("/documents/:id/background", s.updateBackground)

		api.GET("/documents/:id/export", s.exportDocument)
		api.POST("/documents/:id/import", s.importDocument)

		api.GET("/documents/:id/thumbnail", s.thumbnail)
		api.GET("/documents/:id/composite", s.composite)
		api.GET("/documents/:id/overlay", s.overlay)

		api.POST("/documents/:id/pipeline/background", s.pipelineBackground)
		api.POST("/documents/:id/pipeline/inpaint", s.pipelineInpaint)
		api.POST("/documents/:id/pipeline/edit", s.pipelineEdit)
		api.POST("/documents/:id/pipeline/expand", s.pipelineExpand)
	}

	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"version":   version.Version,
		"documents": s.store.Len(),
	})
}

func (s *Server) versionInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":    version.Version,
		"build_time": version.BuildTime,
		"git_commit": version.GitCommit,
	})
}

// document resolves the :id path param, answering 404 on a miss.
func (s *Server) document(c *gin.Context) (*Document, bool) {
	id := c.Param("id")
	doc, found := s.store.Get(id)
	if !found {
		fail(c, http.StatusNotFound, "document not found", nil)
		return nil, false
	}
	return doc, true
}
