package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	e := echo.New()
	e.Use(RequestLogger(logger))
	e.GET("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(buf.String(), "level=INFO") {
		t.Errorf("log = %q, want INFO entry", buf.String())
	}
}

func TestRequestLogger_RedactsTarget(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	e := echo.New()
	e.Use(RequestLogger(logger))
	e.GET("/proxy-stream", func(c echo.Context) error {
		return c.String(http.StatusBadGateway, "nope")
	})

	req := httptest.NewRequest(http.MethodGet,
		"/proxy-stream?url=http%3A%2F%2Fpanel.example%2Flive%2Fbob%2Fhunter2%2F1.m3u8", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Errorf("log leaked credentials: %q", out)
	}
	if !strings.Contains(out, "level=ERROR") {
		t.Errorf("log = %q, want ERROR entry for 5xx", out)
	}
}
