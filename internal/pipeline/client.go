// Package pipeline is the client for the remote diffusion backend that
// renders generated backgrounds, inpaints, edits and canvas expansions.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Default client settings. Diffusion round trips are slow, so response
// timeouts are generous and the request rate is kept low.
const (
	defaultConnTimeout       = 10 * time.Second
	defaultRespTimeout       = 300 * time.Second
	defaultRequestsPerSecond = 1.0
	defaultBurst             = 2

	defaultMaxFailures     uint32 = 3
	defaultBreakerTimeout         = 30 * time.Second
	defaultBreakerInterval        = 60 * time.Second
)

// Connection pool settings: one backend host, long-lived connections.
const (
	maxIdleConns        = 20
	maxIdleConnsPerHost = 10
	maxConnsPerHost     = 20
	idleConnTimeout     = 120 * time.Second
)

// Config configures the pipeline client.
type Config struct {
	BaseURL           string
	ConnTimeout       time.Duration
	RespTimeout       time.Duration
	RequestsPerSecond float64
	Burst             int

	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// BreakerTimeout is how long the circuit stays open before a half-open probe.
	BreakerTimeout time.Duration
	// BreakerInterval is the cyclic period of the closed state for clearing
	// failure counts.
	BreakerInterval time.Duration
}

// HealthStatus is the backend's health report.
type HealthStatus struct {
	Status string   `json:"status"`
	Models []string `json:"models,omitempty"`
}

// Healthy returns true when the backend reports its pipelines loaded.
func (h *HealthStatus) Healthy() bool {
	return h != nil && h.Status == "healthy"
}

// Client talks to the diffusion backend. Calls are rate limited and routed
// through a circuit breaker so a dead backend fails fast instead of piling up
// slow requests.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	limiter *rate.Limiter
	logger  *zap.Logger
}

// filePart is one file field of a multipart request.
type filePart struct {
	field string
	name  string
	data  []byte
}

// NewClient creates a pipeline client. Zero config fields fall back to
// defaults; a nil logger disables logging.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid pipeline URL: %v", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid pipeline URL %q", cfg.BaseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	connTimeout := cfg.ConnTimeout
	if connTimeout <= 0 {
		connTimeout = defaultConnTimeout
	}
	respTimeout := cfg.RespTimeout
	if respTimeout <= 0 {
		respTimeout = defaultRespTimeout
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultMaxFailures
	}
	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = defaultBreakerTimeout
	}
	breakerInterval := cfg.BreakerInterval
	if breakerInterval <= 0 {
		breakerInterval = defaultBreakerInterval
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "pipeline",
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    breakerInterval,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return &Client{
		baseURL: parsed.Scheme + "://" + parsed.Host,
		http: &http.Client{
			Transport: newPooledTransport(connTimeout, respTimeout),
			Timeout:   connTimeout + respTimeout,
		},
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}, nil
}

// GenerateBackground renders a replacement background for the image.
// Returns PNG bytes.
func (c *Client) GenerateBackground(ctx context.Context, image []byte, prompt string) ([]byte, error) {
	return c.post(ctx, "/generate_bg", nil,
		map[string]string{"prompt": prompt},
		[]filePart{{"image", "image.png", image}})
}

// Inpaint fills the masked region of the image guided by the prompt.
// Returns PNG bytes.
func (c *Client) Inpaint(ctx context.Context, image, mask []byte, prompt string) ([]byte, error) {
	return c.post(ctx, "/inpaint", nil,
		map[string]string{"prompt": prompt},
		[]filePart{{"image", "image.png", image}, {"mask", "mask.png", mask}})
}

// Edit rewrites the masked region per the prompt. The backend takes the
// prompt as a query parameter here, not a form field. Returns PNG bytes.
func (c *Client) Edit(ctx context.Context, image, mask []byte, prompt string) ([]byte, error) {
	return c.post(ctx, "/edit", url.Values{"prompt": {prompt}}, nil,
		[]filePart{{"image", "image.png", image}, {"mask", "mask.png", mask}})
}

// Expand outpaints the image beyond its borders per the prompt. The prompt
// rides in the query string, as with Edit. Returns PNG bytes.
func (c *Client) Expand(ctx context.Context, image []byte, prompt string) ([]byte, error) {
	return c.post(ctx, "/expand", url.Values{"prompt": {prompt}}, nil,
		[]filePart{{"image", "image.png", image}})
}

// Health queries the backend health endpoint directly, bypassing the rate
// limiter and circuit breaker.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pipeline health returned %d", resp.StatusCode)
	}

	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decoding health response: %w", err)
	}
	return &status, nil
}

// BreakerState exposes the circuit state for monitoring.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// post runs a multipart POST through the limiter and breaker.
func (c *Client) post(ctx context.Context, path string, query url.Values, form map[string]string, files []filePart) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := c.breaker.Execute(func() ([]byte, error) {
		return c.doPost(ctx, path, query, form, files)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("pipeline circuit open: %w", err)
		}
		return nil, err
	}

	c.logger.Info("pipeline call",
		zap.String("path", path),
		zap.Int("bytes", len(out)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

func (c *Client) doPost(ctx context.Context, path string, query url.Values, form map[string]string, files []filePart) ([]byte, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(f.data); err != nil {
			return nil, err
		}
	}
	for k, v := range form {
		if err := w.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pipeline %s returned %d: %s", path, resp.StatusCode, truncateBody(data))
	}
	return data, nil
}

// newPooledTransport creates an http.Transport sized for a single slow
// backend host.
func newPooledTransport(connTimeout, respTimeout time.Duration) *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   connTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: respTimeout,
		MaxIdleConns:          maxIdleConns,
		MaxIdleConnsPerHost:   maxIdleConnsPerHost,
		MaxConnsPerHost:       maxConnsPerHost,
		IdleConnTimeout:       idleConnTimeout,
		ForceAttemptHTTP2:     true,
	}
}

func truncateBody(data []byte) string {
	const limit = 200
	if len(data) > limit {
		return string(data[:limit]) + "..."
	}
	return string(data)
}
