package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"xtream-web-go/internal/client"
	"xtream-web-go/internal/store"
)

// XtreamHandler forwards player_api.php calls to a registered panel.
type XtreamHandler struct {
	client  *client.XtreamClient
	servers *store.ServerStore
	logger  *slog.Logger
}

// NewXtreamHandler creates an XtreamHandler.
func NewXtreamHandler(xc *client.XtreamClient, servers *store.ServerStore, logger *slog.Logger) *XtreamHandler {
	return &XtreamHandler{
		client:  xc,
		servers: servers,
		logger:  logger.With("component", "xtream_handler"),
	}
}

// PlayerAPI proxies GET /api/player-api to <server>/player_api.php. Every
// query parameter except server_id is forwarded.
func (h *XtreamHandler) PlayerAPI(c echo.Context) error {
	query := make(url.Values)
	for k, v := range c.QueryParams() {
		query[k] = v
	}

	serverID := query.Get("server_id")
	if serverID == "" || query.Get("username") == "" || query.Get("password") == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "server_id, username and password are required",
		})
	}
	query.Del("server_id")

	srv, err := h.servers.Get(serverID)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown server"})
	}
	if err != nil {
		return writeStoreError(c, h.logger, err)
	}

	res, err := h.client.PlayerAPI(c.Request().Context(), srv.URL, query)
	if err != nil {
		h.logger.Warn("player api failed",
			"server_id", serverID,
			"action", query.Get("action"),
			"err", client.Redact(err.Error()),
		)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": upstreamErrorMessage(err)})
	}

	contentType := res.Header.Get("Content-Type")
	if contentType == "" {
		contentType = echo.MIMEApplicationJSON
	}
	return c.Blob(res.StatusCode, contentType, res.Body)
}
