package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"xtream-web-go/internal/config"
	"xtream-web-go/internal/metrics"
	"xtream-web-go/internal/model"
)

// Call kinds used as the metrics label.
const (
	KindManifest = "manifest"
	KindProbe    = "probe"
	KindStream   = "stream"
	KindAPI      = "api"
)

var (
	// ErrTimeout is returned when a streamed upstream response does not
	// deliver headers within the stream timeout.
	ErrTimeout = errors.New("upstream did not respond in time")
	// ErrBodyTooLarge is returned when a buffered fetch exceeds its size cap.
	ErrBodyTooLarge = errors.New("upstream body exceeds size limit")
)

// FetchResult is a fully buffered upstream reply.
type FetchResult struct {
	URL        string // final URL after redirects
	StatusCode int
	Header     http.Header
	Body       []byte
}

// UpstreamClient talks to Xtream panels through the shared pools.
type UpstreamClient struct {
	short     *http.Client // manifests, probes, API calls: whole call bounded
	stream    *http.Client // segments and VOD: only time-to-first-byte bounded
	ttfb      time.Duration
	userAgent string
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewUpstreamClient creates an UpstreamClient on top of pools.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewUpstreamClient(cfg *config.Config, pools *Pools, logger *slog.Logger, m *metrics.Metrics) *UpstreamClient {
	maxRedirects := cfg.Upstream.MaxRedirects
	checkRedirect := func(_ *http.Request, via []*http.Request) error {
		if len(via) > maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}

	return &UpstreamClient{
		short: &http.Client{
			Transport:     pools,
			Timeout:       time.Duration(cfg.Upstream.ManifestTimeoutSeconds) * time.Second,
			CheckRedirect: checkRedirect,
		},
		stream: &http.Client{
			Transport:     pools,
			CheckRedirect: checkRedirect,
		},
		ttfb:      time.Duration(cfg.Upstream.StreamTimeoutSeconds) * time.Second,
		userAgent: cfg.Upstream.UserAgent,
		logger:    logger.With("component", "upstream_client"),
		metrics:   m,
	}
}

// Fetch GETs target and buffers at most limit bytes of the body. Any status
// code is returned as a result, not an error.
func (c *UpstreamClient) Fetch(ctx context.Context, kind, target string, limit int64) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.do(c.short, kind, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, ErrBodyTooLarge
	}

	return &FetchResult{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// Probe issues a HEAD request and returns the declared Content-Type.
func (c *UpstreamClient) Probe(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return "", fmt.Errorf("build probe request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.do(c.short, KindProbe, req)
	if err != nil {
		return "", err
	}
	_ = resp.Body.Close()
	return resp.Header.Get("Content-Type"), nil
}

// Stream GETs target without buffering. rangeHeader, when non-empty, is sent
// verbatim. Only the wait for response headers is bounded by the stream
// timeout; the body may be read for as long as the caller needs.
//
// Closing the returned Body aborts the upstream request.
func (c *UpstreamClient) Stream(ctx context.Context, target, rangeHeader string) (*model.UpstreamResponse, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	c.setHeaders(req)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	var timedOut atomic.Bool
	timer := time.AfterFunc(c.ttfb, func() {
		timedOut.Store(true)
		cancel()
	})

	resp, err := c.do(c.stream, KindStream, req)
	timer.Stop()
	if err != nil {
		cancel()
		if timedOut.Load() {
			return nil, fmt.Errorf("upstream request: %w", ErrTimeout)
		}
		return nil, err
	}
	if timedOut.Load() {
		_ = resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("upstream request: %w", ErrTimeout)
	}

	return &model.UpstreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       &abortBody{ReadCloser: resp.Body, cancel: cancel},
	}, nil
}

func (c *UpstreamClient) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")
}

func (c *UpstreamClient) do(hc *http.Client, kind string, req *http.Request) (*http.Response, error) {
	c.logger.Debug("upstream request",
		"kind", kind,
		"method", req.Method,
		"url", Redact(req.URL.String()),
	)

	start := time.Now()
	resp, err := hc.Do(req) //nolint:bodyclose // body ownership transfers to caller
	duration := time.Since(start)

	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues(kind).Observe(duration.Seconds())
	}

	if err != nil {
		c.logger.Warn("upstream request failed",
			"kind", kind,
			"url", Redact(req.URL.String()),
			"duration_ms", duration.Milliseconds(),
			"err", Redact(err.Error()),
		)
		return nil, fmt.Errorf("upstream request: %w", err)
	}

	if c.metrics != nil {
		c.metrics.UpstreamResponses.WithLabelValues(kind, strconv.Itoa(resp.StatusCode)).Inc()
	}
	return resp, nil
}

// abortBody cancels the upstream request context on first Close, which
// unblocks any pending read and releases the connection.
type abortBody struct {
	io.ReadCloser
	cancel context.CancelFunc
	once   sync.Once
	err    error
}

func (b *abortBody) Close() error {
	b.once.Do(func() {
		b.cancel()
		b.err = b.ReadCloser.Close()
	})
	return b.err
}
