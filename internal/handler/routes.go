package handler

import (
	"github.com/labstack/echo/v4"

	"xtream-web-go/internal/config"
	"xtream-web-go/internal/middleware"
	"xtream-web-go/internal/service"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(
	e *echo.Echo,
	cfg *config.Config,
	stream *StreamHandler,
	xtream *XtreamHandler,
	servers *ServerHandler,
	sessions *SessionHandler,
	app *AppConfigHandler,
	health *HealthHandler,
) {
	admin := middleware.AdminAuth(cfg.Admin.Secret)

	e.GET("/healthz", health.Healthz)

	e.GET(service.ProxyPath, stream.Handle)
	e.OPTIONS(service.ProxyPath, stream.Preflight)

	api := e.Group("/api")
	api.GET("/status", health.Status)
	api.GET("/player-api", xtream.PlayerAPI)

	api.GET("/servers", servers.List)
	api.POST("/servers", servers.Create, admin)
	api.DELETE("/servers/:id", servers.Delete, admin)

	api.POST("/sessions", sessions.Create)
	api.POST("/sessions/:id/heartbeat", sessions.Heartbeat)
	api.DELETE("/sessions/:id", sessions.Delete)
	api.GET("/sessions", sessions.List, admin)

	api.GET("/app-config", app.Get)
	api.PUT("/app-config", app.Update, admin)
	api.POST("/app-config/logo", app.UploadLogo, admin)

	e.Static(UploadsPath, app.UploadsDir())
}
