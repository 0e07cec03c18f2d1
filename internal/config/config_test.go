package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverridesAndDefaults(t *testing.T) {
	yaml := `
server:
  port: ":9090"
  mode: release
ocr:
  language: eng+deu
  min_confidence: 0.5
pipeline:
  enabled: true
  url: http://gpu-box:8000
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, "eng+deu", cfg.OCR.Language)
	assert.Equal(t, 0.5, cfg.OCR.MinConfidence)
	assert.True(t, cfg.Pipeline.Enabled)
	assert.Equal(t, "http://gpu-box:8000", cfg.Pipeline.URL)

	// Unset keys keep their defaults.
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.True(t, cfg.OCR.Binarize)
	assert.Equal(t, 2, cfg.Segment.MaxConcurrent)
	assert.Equal(t, 1200, cfg.Segment.MaxDimension)
	assert.Equal(t, "llava", cfg.Caption.Model)
	assert.Equal(t, 10.0, cfg.Limits.RequestsPerSecond)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestNewFallsBackToDefaults(t *testing.T) {
	cfg := New()
	require.NotNil(t, cfg)
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, "eng", cfg.OCR.Language)
	assert.False(t, cfg.Pipeline.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
}
