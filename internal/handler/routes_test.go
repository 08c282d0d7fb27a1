package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRegisterRoutes_Wiring(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "video/mp2t")
		_, _ = w.Write([]byte("ts bytes"))
	}))
	defer upstream.Close()

	app := newTestApp(t)

	tests := []struct {
		name       string
		method     string
		path       string
		admin      bool
		wantStatus int
	}{
		{"GET /healthz", http.MethodGet, "/healthz", false, http.StatusOK},
		{"GET /api/status", http.MethodGet, "/api/status", false, http.StatusOK},
		{"GET /proxy-stream relay", http.MethodGet, proxyPath(upstream.URL + "/seg.ts"), false, http.StatusOK},
		{"GET /proxy-stream without url", http.MethodGet, "/proxy-stream", false, http.StatusBadRequest},
		{"OPTIONS /proxy-stream", http.MethodOptions, "/proxy-stream", false, http.StatusNoContent},
		{"GET /api/servers", http.MethodGet, "/api/servers", false, http.StatusOK},
		{"DELETE /api/servers/:id requires admin", http.MethodDelete, "/api/servers/x", false, http.StatusUnauthorized},
		{"DELETE /api/servers/:id unknown", http.MethodDelete, "/api/servers/x", true, http.StatusNotFound},
		{"GET /api/sessions requires admin", http.MethodGet, "/api/sessions", false, http.StatusUnauthorized},
		{"GET /api/app-config", http.MethodGet, "/api/app-config", false, http.StatusOK},
		{"GET /api/player-api without params", http.MethodGet, "/api/player-api", false, http.StatusBadRequest},
		{"GET /uploads missing file", http.MethodGet, "/uploads/none.png", false, http.StatusNotFound},
		{"GET /unknown returns 404", http.MethodGet, "/unknown", false, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(tt.method, tt.path, "", tt.admin)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
