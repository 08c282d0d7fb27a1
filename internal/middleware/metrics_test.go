package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	dto "github.com/prometheus/client_model/go"

	"xtream-web-go/internal/metrics"
)

// requestCounter returns the xtream_web_http_requests_total series whose
// path_prefix label equals pathPrefix, or nil.
func requestCounter(t *testing.T, m *metrics.Metrics, pathPrefix string) *dto.Metric {
	t.Helper()

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() != "xtream_web_http_requests_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			if labelsOf(metric)["path_prefix"] == pathPrefix {
				return metric
			}
		}
	}
	return nil
}

func labelsOf(metric *dto.Metric) map[string]string {
	labels := make(map[string]string, len(metric.GetLabel()))
	for _, lp := range metric.GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	return labels
}

func TestMetricsMiddleware_Labels(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		route      string
		target     string
		handler    echo.HandlerFunc
		wantPrefix string
		wantMethod string
		wantStatus string
	}{
		{
			name:   "api route",
			method: http.MethodGet, route: "/api/servers/:id", target: "/api/servers/abc",
			handler:    func(c echo.Context) error { return c.String(http.StatusOK, "ok") },
			wantPrefix: "/api/servers", wantMethod: "GET", wantStatus: "200",
		},
		{
			name:   "stream proxy keeps query out of the label",
			method: http.MethodGet, route: "/proxy-stream", target: "/proxy-stream?url=http%3A%2F%2Fa%2Fb.m3u8",
			handler:    func(c echo.Context) error { return c.String(http.StatusOK, "#EXTM3U") },
			wantPrefix: "/proxy-stream", wantMethod: "GET", wantStatus: "200",
		},
		{
			name:   "HTTPError status",
			method: http.MethodDelete, route: "/api/sessions/:id", target: "/api/sessions/gone",
			handler:    func(c echo.Context) error { return echo.NewHTTPError(http.StatusNotFound, "not found") },
			wantPrefix: "/api/sessions", wantMethod: "DELETE", wantStatus: "404",
		},
		{
			name:   "upstream status passthrough",
			method: http.MethodGet, route: "/proxy-stream", target: "/proxy-stream?url=x",
			handler:    func(c echo.Context) error { return c.String(http.StatusForbidden, "upstream returned status 403") },
			wantPrefix: "/proxy-stream", wantMethod: "GET", wantStatus: "403",
		},
		{
			name:   "unknown method normalized",
			method: "XYZZY", route: "/api/app-config", target: "/api/app-config",
			handler:    func(c echo.Context) error { return c.String(http.StatusOK, "ok") },
			wantPrefix: "/api/app-config", wantMethod: "other", wantStatus: "200",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()
			e := echo.New()
			e.Use(MetricsMiddleware(m))
			e.Any(tt.route, tt.handler)

			req := httptest.NewRequest(tt.method, tt.target, http.NoBody)
			e.ServeHTTP(httptest.NewRecorder(), req)

			metric := requestCounter(t, m, tt.wantPrefix)
			if metric == nil {
				t.Fatalf("no request counter with path_prefix=%s", tt.wantPrefix)
			}
			labels := labelsOf(metric)
			if labels["method"] != tt.wantMethod {
				t.Errorf("method = %q, want %q", labels["method"], tt.wantMethod)
			}
			if labels["status_code"] != tt.wantStatus {
				t.Errorf("status_code = %q, want %q", labels["status_code"], tt.wantStatus)
			}
			if v := metric.GetCounter().GetValue(); v != 1 {
				t.Errorf("counter value = %v, want 1", v)
			}
		})
	}
}

func TestMetricsMiddleware_RecordsDuration(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() != "xtream_web_http_request_duration_seconds" {
			continue
		}
		for _, metric := range f.GetMetric() {
			if metric.GetHistogram().GetSampleCount() > 0 {
				return
			}
		}
	}
	t.Error("expected xtream_web_http_request_duration_seconds with at least one sample")
}

func TestMetricsMiddleware_RouterNotFound(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nonexistent", http.NoBody))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	metric := requestCounter(t, m, "other")
	if metric == nil {
		t.Fatal("no request counter with path_prefix=other")
	}
	if got := labelsOf(metric)["status_code"]; got != "404" {
		t.Errorf("status_code = %q, want %q", got, "404")
	}
}

func TestMetricsMiddleware_SkipsPaths(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m, "/metrics"))
	e.GET("/metrics", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	if metric := requestCounter(t, m, "/metrics"); metric != nil {
		t.Errorf("skipped path was recorded: %v", labelsOf(metric))
	}
}
