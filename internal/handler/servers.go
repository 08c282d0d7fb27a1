package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"xtream-web-go/internal/store"
)

// ServerHandler exposes the server registry.
type ServerHandler struct {
	store  *store.ServerStore
	logger *slog.Logger
}

// NewServerHandler creates a ServerHandler.
func NewServerHandler(s *store.ServerStore, logger *slog.Logger) *ServerHandler {
	return &ServerHandler{store: s, logger: logger.With("component", "server_handler")}
}

type createServerRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// List returns all registered servers.
func (h *ServerHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.store.List())
}

// Create registers a new server.
func (h *ServerHandler) Create(c echo.Context) error {
	var req createServerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
	}

	srv, err := h.store.Add(req.Name, req.URL)
	if err != nil {
		return h.storeError(c, err)
	}
	h.logger.Info("server added", "id", srv.ID, "name", srv.Name)
	return c.JSON(http.StatusCreated, srv)
}

// Delete removes a server.
func (h *ServerHandler) Delete(c echo.Context) error {
	id := c.Param("id")
	if err := h.store.Delete(id); err != nil {
		return h.storeError(c, err)
	}
	h.logger.Info("server deleted", "id", id)
	return c.NoContent(http.StatusNoContent)
}

func (h *ServerHandler) storeError(c echo.Context, err error) error {
	return writeStoreError(c, h.logger, err)
}

// writeStoreError maps store errors onto JSON responses.
func writeStoreError(c echo.Context, logger *slog.Logger, err error) error {
	var vErr *store.ValidationError
	switch {
	case errors.As(err, &vErr):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": vErr.Error()})
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		logger.Error("store operation failed", "err", err, "path", c.Request().URL.Path)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
