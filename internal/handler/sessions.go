package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"xtream-web-go/internal/metrics"
	"xtream-web-go/internal/session"
	"xtream-web-go/internal/store"
)

// SessionHandler manages player sessions.
type SessionHandler struct {
	sessions session.Store
	servers  *store.ServerStore
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewSessionHandler creates a SessionHandler. The metrics parameter is optional.
func NewSessionHandler(sessions session.Store, servers *store.ServerStore, logger *slog.Logger, m *metrics.Metrics) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		servers:  servers,
		logger:   logger.With("component", "session_handler"),
		metrics:  m,
	}
}

type createSessionRequest struct {
	ServerID string `json:"server_id"`
	Username string `json:"username"`
}

// Create opens a session against a registered server.
func (h *SessionHandler) Create(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.ServerID == "" || req.Username == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "server_id and username are required"})
	}
	if _, err := h.servers.Get(req.ServerID); err != nil {
		return writeStoreError(c, h.logger, err)
	}

	sess, err := h.sessions.Create(c.Request().Context(), req.ServerID, req.Username)
	if err != nil {
		return h.sessionError(c, err)
	}
	return c.JSON(http.StatusCreated, sess)
}

// Heartbeat extends a live session.
func (h *SessionHandler) Heartbeat(c echo.Context) error {
	sess, err := h.sessions.Heartbeat(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.sessionError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// Delete ends a session. Unknown IDs are not an error.
func (h *SessionHandler) Delete(c echo.Context) error {
	if err := h.sessions.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return h.sessionError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// List returns every live session.
func (h *SessionHandler) List(c echo.Context) error {
	list, err := h.sessions.List(c.Request().Context())
	if err != nil {
		return h.sessionError(c, err)
	}
	if h.metrics != nil {
		h.metrics.ActiveSessions.Set(float64(len(list)))
	}
	return c.JSON(http.StatusOK, list)
}

func (h *SessionHandler) sessionError(c echo.Context, err error) error {
	if errors.Is(err, session.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found or expired"})
	}
	h.logger.Error("session store failed", "err", err, "path", c.Request().URL.Path)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
