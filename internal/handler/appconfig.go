package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"xtream-web-go/internal/config"
	"xtream-web-go/internal/model"
	"xtream-web-go/internal/store"
)

// UploadsPath is the URL prefix uploaded files are served under.
const UploadsPath = "/uploads"

var logoExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".svg":  true,
	".webp": true,
}

// AppConfigHandler serves and updates branding.
type AppConfigHandler struct {
	store      *store.AppConfigStore
	uploadsDir string
	maxBytes   int64
	logger     *slog.Logger
}

// NewAppConfigHandler creates an AppConfigHandler.
func NewAppConfigHandler(s *store.AppConfigStore, cfg *config.Config, logger *slog.Logger) *AppConfigHandler {
	return &AppConfigHandler{
		store:      s,
		uploadsDir: filepath.Join(cfg.Storage.DataDir, "uploads"),
		maxBytes:   cfg.Storage.UploadMaxBytes,
		logger:     logger.With("component", "app_config_handler"),
	}
}

// UploadsDir is the directory served under UploadsPath.
func (h *AppConfigHandler) UploadsDir() string {
	return h.uploadsDir
}

// Get returns the current branding.
func (h *AppConfigHandler) Get(c echo.Context) error {
	return c.JSON(http.StatusOK, h.store.Get())
}

// Update replaces the branding.
func (h *AppConfigHandler) Update(c echo.Context) error {
	var req model.AppConfig
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
	}

	updated, err := h.store.Update(req)
	if err != nil {
		return writeStoreError(c, h.logger, err)
	}
	h.logger.Info("app config updated", "app_name", updated.AppName)
	return c.JSON(http.StatusOK, updated)
}

// UploadLogo stores the multipart "logo" file and points LogoURL at it.
func (h *AppConfigHandler) UploadLogo(c echo.Context) error {
	fh, err := c.FormFile("logo")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "multipart field \"logo\" is required"})
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !logoExtensions[ext] {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "logo must be png, jpg, svg or webp"})
	}
	if fh.Size > h.maxBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{
			"error": fmt.Sprintf("logo exceeds %d bytes", h.maxBytes),
		})
	}

	src, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unreadable upload"})
	}
	defer func() { _ = src.Close() }()

	name := uuid.NewString() + ext
	if err := h.save(name, src); err != nil {
		h.logger.Error("saving logo", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	updated, err := h.store.SetLogo(UploadsPath + "/" + name)
	if err != nil {
		_ = os.Remove(filepath.Join(h.uploadsDir, name))
		return writeStoreError(c, h.logger, err)
	}
	h.logger.Info("logo uploaded", "file", name, "bytes", fh.Size)
	return c.JSON(http.StatusOK, updated)
}

func (h *AppConfigHandler) save(name string, src io.Reader) error {
	if err := os.MkdirAll(h.uploadsDir, 0o750); err != nil {
		return fmt.Errorf("create uploads dir: %w", err)
	}

	path := filepath.Join(h.uploadsDir, name)
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640) //nolint:gosec // name is a generated UUID
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if _, err := io.Copy(dst, io.LimitReader(src, h.maxBytes)); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return dst.Close()
}
