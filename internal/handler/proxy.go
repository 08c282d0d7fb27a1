package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"xtream-web-go/internal/client"
	"xtream-web-go/internal/metrics"
	"xtream-web-go/internal/model"
	"xtream-web-go/internal/service"
)

const manifestContentType = "application/vnd.apple.mpegurl"

// StreamHandler serves /proxy-stream: manifests are rewritten, everything
// else is relayed byte-for-byte.
type StreamHandler struct {
	service *service.StreamService
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewStreamHandler creates a StreamHandler. The metrics parameter is optional.
func NewStreamHandler(svc *service.StreamService, logger *slog.Logger, m *metrics.Metrics) *StreamHandler {
	return &StreamHandler{
		service: svc,
		logger:  logger.With("component", "stream_handler"),
		metrics: m,
	}
}

// Handle classifies the target and dispatches to the manifest or relay path.
func (h *StreamHandler) Handle(c echo.Context) error {
	req := c.Request()
	target := c.QueryParam("url")

	if err := service.ValidateTarget(target); err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}

	pr := &model.ProxyRequest{
		Ctx:       req.Context(),
		TargetURL: target,
		Range:     req.Header.Get("Range"),
	}

	if h.service.Classify(pr) == model.KindManifest {
		return h.serveManifest(c, pr)
	}
	return h.serveRelay(c, pr)
}

// Preflight answers CORS preflight requests for the proxy route.
func (h *StreamHandler) Preflight(c echo.Context) error {
	setCORSHeaders(c.Response().Header())
	return c.NoContent(http.StatusNoContent)
}

func (h *StreamHandler) serveManifest(c echo.Context, pr *model.ProxyRequest) error {
	body, err := h.service.Manifest(pr)
	if err != nil {
		return h.writeError(c, pr, err)
	}

	c.Response().Header().Set("Access-Control-Allow-Origin", "*")
	return c.Blob(http.StatusOK, manifestContentType, []byte(body))
}

func (h *StreamHandler) serveRelay(c echo.Context, pr *model.ProxyRequest) error {
	resp, err := h.service.Relay(pr)
	if err != nil {
		return h.writeError(c, pr, err)
	}
	defer func() { _ = resp.Body.Close() }()

	header := c.Response().Header()
	for key, vals := range resp.Header {
		for _, v := range vals {
			header.Add(key, v)
		}
	}
	setCORSHeaders(header)
	c.Response().WriteHeader(resp.StatusCode)

	// Headers are committed from here on; a failed copy just ends the
	// response. Closing the body (deferred above) aborts the upstream read.
	n, err := io.Copy(flushWriter{c.Response()}, resp.Body)
	if h.metrics != nil {
		h.metrics.RelayBytes.Add(float64(n))
	}
	if err != nil {
		if h.metrics != nil {
			h.metrics.RelayAborted.Inc()
		}
		h.logger.Debug("relay ended early",
			"url", client.Redact(pr.TargetURL),
			"bytes", n,
			"err", client.Redact(err.Error()),
		)
	}
	return nil
}

// writeError reports a failure that happened before any response bytes
// were sent.
func (h *StreamHandler) writeError(c echo.Context, pr *model.ProxyRequest, err error) error {
	h.logger.Warn("proxy stream failed",
		"url", client.Redact(pr.TargetURL),
		"err", client.Redact(err.Error()),
	)

	if c.Response().Committed {
		return nil
	}

	status := http.StatusInternalServerError
	var statusErr *service.UpstreamStatusError
	if errors.As(err, &statusErr) {
		status = statusErr.StatusCode
	}
	return c.String(status, upstreamErrorMessage(err))
}

func upstreamErrorMessage(err error) string {
	var statusErr *service.UpstreamStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Error()
	}

	if errors.Is(err, client.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return "upstream request timed out"
	}

	if errors.Is(err, client.ErrBodyTooLarge) {
		return "upstream manifest too large"
	}

	if errors.Is(err, context.Canceled) {
		return "client disconnected"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "upstream host unreachable"
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return "upstream request timed out"
		}
		return "upstream connection failed"
	}

	return "upstream request failed"
}

func setCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "*")
	h.Set("Access-Control-Expose-Headers", "*")
}

// flushWriter pushes every chunk to the client so live streams are not
// held back by response buffering.
type flushWriter struct {
	w *echo.Response
}

func (f flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if err != nil {
		return n, err
	}
	f.w.Flush()
	return n, nil
}
