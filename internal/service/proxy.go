// Package service implements the stream proxy: target classification,
// manifest rewriting and binary relay.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"xtream-web-go/internal/client"
	"xtream-web-go/internal/config"
	"xtream-web-go/internal/metrics"
	"xtream-web-go/internal/model"
)

var (
	// ErrMissingURL is returned when the proxy request carries no target.
	ErrMissingURL = errors.New("missing url parameter")
	// ErrInvalidURL is returned when the target is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("url must be an absolute http or https URL")
)

// UpstreamStatusError reports a non-2xx manifest response.
type UpstreamStatusError struct {
	StatusCode int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// forwardableResponseHeaders are the only upstream headers relayed to the client.
var forwardableResponseHeaders = map[string]bool{
	"Content-Type":   true,
	"Content-Length": true,
	"Content-Range":  true,
	"Accept-Ranges":  true,
	"Cache-Control":  true,
}

// Upstream is the subset of the upstream client the stream proxy needs.
type Upstream interface {
	Fetch(ctx context.Context, kind, target string, limit int64) (*client.FetchResult, error)
	Probe(ctx context.Context, target string) (string, error)
	Stream(ctx context.Context, target, rangeHeader string) (*model.UpstreamResponse, error)
}

// StreamService handles /proxy-stream requests.
type StreamService struct {
	upstream    Upstream
	manifestMax int64
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewStreamService creates a StreamService. The metrics parameter is optional.
func NewStreamService(up Upstream, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *StreamService {
	return &StreamService{
		upstream:    up,
		manifestMax: cfg.Upstream.ManifestMaxBytes,
		logger:      logger.With("component", "stream_service"),
		metrics:     m,
	}
}

// ValidateTarget checks that raw is an absolute http(s) URL.
func ValidateTarget(raw string) error {
	if raw == "" {
		return ErrMissingURL
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidURL
	}
	return nil
}

// Manifest fetches the playlist at pr.TargetURL and returns it with every
// reference rewritten to go through the proxy.
func (s *StreamService) Manifest(pr *model.ProxyRequest) (string, error) {
	res, err := s.upstream.Fetch(pr.Ctx, client.KindManifest, pr.TargetURL, s.manifestMax)
	if err != nil {
		return "", fmt.Errorf("fetch manifest: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", &UpstreamStatusError{StatusCode: res.StatusCode}
	}

	base := res.URL
	if base == "" {
		base = pr.TargetURL
	}

	s.logger.Debug("rewriting manifest",
		"url", client.Redact(base),
		"bytes", len(res.Body),
	)
	return RewriteManifest(string(res.Body), base), nil
}

// Relay opens a streamed upstream response for pr. The caller owns the
// returned body and must close it; closing aborts the upstream read.
func (s *StreamService) Relay(pr *model.ProxyRequest) (*model.UpstreamResponse, error) {
	resp, err := s.upstream.Stream(pr.Ctx, pr.TargetURL, pr.Range)
	if err != nil {
		return nil, fmt.Errorf("relay: %w", err)
	}
	resp.Header = filterResponseHeaders(resp.Header)
	return resp, nil
}

func filterResponseHeaders(src http.Header) http.Header {
	dst := make(http.Header)
	for key, vals := range src {
		if forwardableResponseHeaders[http.CanonicalHeaderKey(key)] {
			dst[key] = vals
		}
	}
	return dst
}
