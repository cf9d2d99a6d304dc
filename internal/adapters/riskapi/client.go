// Package riskapi is the HTTP client for the remote risk computation service.
package riskapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/georisk/georisk/internal/core/domain"
	"github.com/georisk/georisk/internal/pkg/geospatial"
	"github.com/georisk/georisk/internal/pkg/metrics"
	"github.com/georisk/georisk/internal/pkg/telemetry"
)

const (
	// DefaultEndpoint is appended to the base URL when none is configured.
	DefaultEndpoint = "/geo/risk"

	maxErrorBody    = 2 << 10
	maxResponseBody = 1 << 20
)

// Config describes where the risk backend lives.
type Config struct {
	BaseURL  string
	Endpoint string
	Timeout  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client posts area polygons to the risk backend. It never retries.
type Client struct {
	url    string
	http   *http.Client
	logger *slog.Logger
	tracer trace.Tracer
}

// New resolves the backend URL once. An empty BaseURL yields a client whose
// every Query fails with domain.ErrNotConfigured.
func New(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		url:    ResolveURL(cfg.BaseURL, cfg.Endpoint),
		http:   &http.Client{Timeout: timeout},
		logger: slog.Default(),
		tracer: otel.Tracer(telemetry.TracerRiskAPI),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveURL joins base and endpoint. A trailing "/docs" and trailing slashes
// are stripped from base; endpoint defaults to DefaultEndpoint and gains a
// leading slash if needed. It returns "" when base is empty.
func ResolveURL(base, endpoint string) string {
	base = strings.TrimSpace(base)
	base = strings.TrimSuffix(base, "/")
	base = strings.TrimSuffix(base, "/docs")
	base = strings.TrimRight(base, "/")
	if base == "" {
		return ""
	}

	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return base + endpoint
}

// Configured reports whether a backend address is known.
func (c *Client) Configured() bool { return c.url != "" }

// URL is the resolved request URL, empty when not configured.
func (c *Client) URL() string { return c.url }

// Query sends one request for the ring and decodes the assessment.
func (c *Client) Query(ctx context.Context, ring orb.Ring) (*domain.RiskResult, error) {
	if err := geospatial.ValidateRing(ring); err != nil {
		metrics.RiskRequests.WithLabelValues("invalid_geometry").Inc()
		return nil, err
	}
	if c.url == "" {
		metrics.RiskRequests.WithLabelValues("not_configured").Inc()
		return nil, domain.ErrNotConfigured
	}

	ctx, span := c.tracer.Start(ctx, "riskapi.Query", trace.WithAttributes(
		attribute.String("http.url", c.url),
		attribute.Int("ring.points", len(ring)),
	))
	defer span.End()

	start := time.Now()
	res, err := c.do(ctx, ring)
	metrics.RiskRequestDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		kind := domain.ErrorKind(err)
		metrics.RiskRequests.WithLabelValues(kind).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		return nil, err
	}
	metrics.RiskRequests.WithLabelValues("ok").Inc()
	span.SetAttributes(attribute.String("risk.level", string(res.Level)))
	return res, nil
}

func (c *Client) do(ctx context.Context, ring orb.Ring) (*domain.RiskResult, error) {
	body, err := json.Marshal(newRiskRequest(ring))
	if err != nil {
		return nil, fmt.Errorf("encode risk request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &domain.TransportError{URL: c.url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.TransportError{URL: c.url, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &domain.TransportError{StatusCode: resp.StatusCode, URL: c.url, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text := strings.TrimSpace(string(raw))
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		c.logger.Warn("risk backend error", "status", resp.StatusCode, "url", c.url, "body", text)
		return nil, &domain.TransportError{StatusCode: resp.StatusCode, URL: c.url, Body: text}
	}

	var out riskResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		c.logger.Error("risk backend decode error", "url", c.url, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	res, err := out.toDomain()
	if err != nil {
		c.logger.Error("risk backend response rejected", "url", c.url, "error", err)
		return nil, err
	}

	c.logger.Debug("risk backend response", "level", res.Level, "river", res.NearestWaterBody)
	return res, nil
}
