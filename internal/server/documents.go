package server

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"layer-anything/internal/engine"
	"layer-anything/internal/logging"
	"layer-anything/internal/source"
)

// documentInfo is the JSON summary of a stored document.
type documentInfo struct {
	ID         string    `json:"id"`
	GraphID    string    `json:"graphId"`
	MD5        string    `json:"md5"`
	Filename   string    `json:"filename"`
	Format     string    `json:"format"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	LayerCount int       `json:"layerCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

func infoOf(doc *Document) documentInfo {
	b := doc.Image.Bounds()
	return documentInfo{
		ID:         doc.ID,
		GraphID:    doc.Engine.GraphID(),
		MD5:        doc.MD5,
		Filename:   doc.Filename,
		Format:     doc.Format,
		Width:      b.Dx(),
		Height:     b.Dy(),
		LayerCount: doc.Engine.LayerCount(),
		CreatedAt:  doc.CreatedAt,
	}
}

// createDocument ingests an uploaded image and initializes its layer graph
// with a background layer covering the full canvas.
func (s *Server) createDocument(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		fail(c, http.StatusBadRequest, "image file required", err)
		return
	}

	if file.Size > s.cfg.Upload.MaxSize {
		fail(c, http.StatusBadRequest,
			fmt.Sprintf("file exceeds %d MB limit", s.cfg.Upload.MaxSize/(1024*1024)), nil)
		return
	}

	contentType := file.Header.Get("Content-Type")
	if !s.allowedType(contentType) {
		fail(c, http.StatusBadRequest, "unsupported content type "+contentType, nil)
		return
	}

	f, err := file.Open()
	if err != nil {
		fail(c, http.StatusInternalServerError, "opening upload", err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		fail(c, http.StatusInternalServerError, "reading upload", err)
		return
	}

	img, format, err := source.Decode(bytes.NewReader(data))
	if err != nil {
		fail(c, http.StatusBadRequest, "file is not a decodable image", err)
		return
	}

	sum := BytesMD5(data)
	bounds := img.Bounds()

	eng := engine.New()
	if _, err := eng.InitializeFromImage("upload://"+sum, bounds.Dx(), bounds.Dy()); err != nil {
		fail(c, http.StatusBadRequest, "initializing layer graph", err)
		return
	}

	doc := &Document{
		MD5:      sum,
		Filename: file.Filename,
		Format:   format,
		Data:     data,
		Image:    img,
		Engine:   eng,
	}
	s.store.Put(doc)

	logging.Logger.Info("document created",
		zap.String("document", doc.ID),
		zap.String("md5", sum),
		zap.String("format", format),
		zap.Int("width", bounds.Dx()),
		zap.Int("height", bounds.Dy()))

	ok(c, http.StatusCreated, "document created", infoOf(doc))
}

func (s *Server) allowedType(contentType string) bool {
	for _, t := range s.cfg.Upload.AllowedTypes {
		if t == contentType {
			return true
		}
	}
	return false
}

func (s *Server) listDocuments(c *gin.Context) {
	docs := s.store.List()
	infos := make([]documentInfo, 0, len(docs))
	for _, doc := range docs {
		infos = append(infos, infoOf(doc))
	}
	ok(c, http.StatusOK, fmt.Sprintf("%d documents", len(infos)), infos)
}

func (s *Server) getDocument(c *gin.Context) {
	doc, found := s.document(c)
	if !found {
		return
	}
	ok(c, http.StatusOK, "document", infoOf(doc))
}

func (s *Server) deleteDocument(c *gin.Context) {
	id := c.Param("id")
	if !s.store.Delete(id) {
		fail(c, http.StatusNotFound, "document not found", nil)
		return
	}
	logging.Logger.Info("document deleted", zap.String("document", id))
	ok(c, http.StatusOK, "document deleted", nil)
}
