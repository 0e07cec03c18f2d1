// Package caption suggests object categories for segmented layers using a
// vision model served by Ollama.
package caption

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/ollama/ollama/api"

	"layer-anything/internal/layer"
	"layer-anything/internal/preview"
)

const (
	// DefaultModel is the vision model used when none is configured.
	DefaultModel = "llava"
	// DefaultTimeout bounds a single suggestion round trip.
	DefaultTimeout = 120 * time.Second

	// maxPatchDimension bounds the longest side of the patch sent to the model.
	maxPatchDimension = 512
)

const categoryPrompt = `You are labeling a cut-out object from a photo.
Respond with strict JSON only, no prose and no code fences:
{"category": "<one or two word singular noun>", "confidence": <0.0-1.0>, "tags": ["<tag>", ...]}`

// Config holds the connection settings for the suggestion client.
type Config struct {
	URL     string
	Model   string
	Timeout time.Duration
}

// Suggestion is a vision-model guess at what an object layer shows.
type Suggestion struct {
	Category   string   `json:"category"`
	Confidence float64  `json:"confidence"`
	Tags       []string `json:"tags,omitempty"`
}

// Client wraps the Ollama API client.
type Client struct {
	client  *api.Client
	model   string
	timeout time.Duration
}

// NewClient creates a suggestion client for the given Ollama server.
func NewClient(cfg Config) (*Client, error) {
	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama URL: %v", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid ollama URL %q", cfg.URL)
	}

	// Base URL only; the API client appends its own paths.
	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		client:  api.NewClient(base, http.DefaultClient),
		model:   model,
		timeout: timeout,
	}, nil
}

// SuggestCategory sends the object patch to the vision model and returns its
// category guess. Unparseable model output degrades to the default category
// rather than failing.
func (c *Client) SuggestCategory(ctx context.Context, patch image.Image) (*Suggestion, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var buf bytes.Buffer
	small := preview.Thumbnail(patch, maxPatchDimension)
	if err := preview.Encode(&buf, small, preview.EncodeOptions{Format: "png"}); err != nil {
		return nil, fmt.Errorf("encoding patch: %w", err)
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: categoryPrompt,
				Images:  []api.ImageData{api.ImageData(buf.Bytes())},
			},
		},
		Stream: &streamFalse,
	}

	var responseContent string
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		responseContent += resp.Message.Content
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat error: %v", err)
	}

	return parseSuggestion(responseContent), nil
}

// parseSuggestion extracts a Suggestion from raw model output, falling back to
// the default category when the output is not usable JSON.
func parseSuggestion(raw string) *Suggestion {
	fallback := &Suggestion{Category: layer.DefaultCategory, Confidence: 0}

	raw = sanitizeJSON(raw)
	if !strings.HasPrefix(raw, "{") {
		return fallback
	}

	var s Suggestion
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return fallback
	}

	s.Category = titleCase(strings.TrimSpace(s.Category))
	if s.Category == "" {
		s.Category = layer.DefaultCategory
	}
	if s.Confidence < 0 {
		s.Confidence = 0
	}
	if s.Confidence > 1 {
		s.Confidence = 1
	}
	return &s
}

var trailingCommas = regexp.MustCompile(`,(\s*[}\]])`)

// sanitizeJSON strips code fences and trailing commas and keeps the outermost
// JSON object.
func sanitizeJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(strings.Trim(raw, "`"))

	raw = trailingCommas.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

// titleCase upper-cases the first rune for display as a layer name.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
