// Package main provides the entry point for the layer-anything server.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"layer-anything/internal/caption"
	"layer-anything/internal/config"
	"layer-anything/internal/logging"
	"layer-anything/internal/ocr"
	"layer-anything/internal/pipeline"
	"layer-anything/internal/segment"
	"layer-anything/internal/server"
	"layer-anything/internal/version"
)

func main() {
	cfg := config.New()

	if err := logging.Init(cfg.Server.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	logging.Logger.Info("starting layer-anything server",
		zap.String("version", version.Version),
		zap.String("build_time", version.BuildTime),
		zap.String("git_commit", version.GitCommit))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cache := server.NewCache(cfg.Redis)
	if err := cache.Ping(ctx); err != nil {
		logging.Logger.Warn("redis connection failed, cache disabled", zap.Error(err))
		cache = nil
	} else {
		logging.Logger.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
		defer cache.Close()
	}

	deps := server.Deps{
		Config: cfg,
		Store:  server.NewDocumentStore(),
		Cache:  cache,
	}

	ocrEngine, err := ocr.NewEngine(ocr.Config{
		Language:      cfg.OCR.Language,
		MinConfidence: cfg.OCR.MinConfidence,
		Binarize:      cfg.OCR.Binarize,
	})
	if err != nil {
		logging.Logger.Warn("tesseract unavailable, text detection disabled", zap.Error(err))
	} else {
		deps.OCR = ocrEngine
		defer ocrEngine.Close()
	}

	deps.Segment = segment.NewService(segment.Config{
		Iterations:    cfg.Segment.Iterations,
		MaxConcurrent: cfg.Segment.MaxConcurrent,
		QueueTimeout:  cfg.Segment.QueueTimeout,
		MaxDimension:  cfg.Segment.MaxDimension,
	}, logging.Logger)

	if cfg.Pipeline.Enabled {
		client, err := pipeline.NewClient(pipeline.Config{
			BaseURL:           cfg.Pipeline.URL,
			ConnTimeout:       cfg.Pipeline.ConnTimeout,
			RespTimeout:       cfg.Pipeline.RespTimeout,
			RequestsPerSecond: cfg.Pipeline.RequestsPerSecond,
			MaxFailures:       cfg.Pipeline.MaxFailures,
		}, logging.Logger)
		if err != nil {
			logging.Logger.Warn("pipeline client misconfigured, disabled", zap.Error(err))
		} else {
			deps.Pipeline = client
			if status, herr := client.Health(ctx); herr != nil {
				logging.Logger.Warn("pipeline backend unreachable", zap.Error(herr))
			} else if !status.Healthy() {
				logging.Logger.Warn("pipeline backend unhealthy", zap.String("status", status.Status))
			} else {
				logging.Logger.Info("pipeline backend ready", zap.Strings("models", status.Models))
			}
		}
	}

	if cfg.Caption.Enabled {
		client, err := caption.NewClient(caption.Config{
			URL:     cfg.Caption.URL,
			Model:   cfg.Caption.Model,
			Timeout: cfg.Caption.Timeout,
		})
		if err != nil {
			logging.Logger.Warn("caption client misconfigured, disabled", zap.Error(err))
		} else {
			deps.Caption = client
		}
	}

	gin.SetMode(cfg.Server.Mode)
	r := server.New(deps).Router(ctx)

	logging.Logger.Info("server starting", zap.String("port", cfg.Server.Port))
	if err := r.Run(cfg.Server.Port); err != nil {
		logging.Logger.Fatal("failed to start server", zap.Error(err))
	}
}
