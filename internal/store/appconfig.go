package store

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/grafana/regexp"

	"xtream-web-go/internal/config"
	"xtream-web-go/internal/model"
)

const appConfigFile = "app_config.json"

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// AppConfigStore holds the branding shown by the web client.
type AppConfigStore struct {
	mu     sync.RWMutex
	path   string
	cfg    model.AppConfig
	logger *slog.Logger
}

// NewAppConfigStore loads app_config.json, falling back to defaults when the
// file does not exist.
func NewAppConfigStore(cfg *config.Config, logger *slog.Logger) (*AppConfigStore, error) {
	s := &AppConfigStore{
		path:   filepath.Join(cfg.Storage.DataDir, appConfigFile),
		cfg:    model.DefaultAppConfig(),
		logger: logger.With("component", "app_config_store"),
	}

	found, err := readJSON(s.path, &s.cfg)
	if err != nil {
		return nil, err
	}
	if !found {
		s.logger.Info("no app config on disk, using defaults", "path", s.path)
	}
	return s, nil
}

// Get returns the current branding.
func (s *AppConfigStore) Get() model.AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Update validates and persists a full replacement. Empty AppName and
// PrimaryColor fall back to the defaults.
func (s *AppConfigStore) Update(next model.AppConfig) (model.AppConfig, error) {
	defaults := model.DefaultAppConfig()

	next.AppName = strings.TrimSpace(next.AppName)
	if next.AppName == "" {
		next.AppName = defaults.AppName
	}
	if next.PrimaryColor == "" {
		next.PrimaryColor = defaults.PrimaryColor
	}
	if !colorPattern.MatchString(next.PrimaryColor) {
		return model.AppConfig{}, &ValidationError{Field: "primary_color", Message: "must be #rrggbb"}
	}
	if next.LogoURL != "" && !strings.HasPrefix(next.LogoURL, "/uploads/") &&
		!strings.HasPrefix(next.LogoURL, "http://") && !strings.HasPrefix(next.LogoURL, "https://") {
		return model.AppConfig{}, &ValidationError{Field: "logo_url", Message: "must be an uploaded file or an http(s) URL"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeJSON(s.path, next); err != nil {
		return model.AppConfig{}, fmt.Errorf("save app config: %w", err)
	}
	s.cfg = next
	return next, nil
}

// SetLogo points LogoURL at an uploaded file and persists the change.
func (s *AppConfigStore) SetLogo(logoURL string) (model.AppConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg
	next.LogoURL = logoURL
	if err := writeJSON(s.path, next); err != nil {
		return model.AppConfig{}, fmt.Errorf("save app config: %w", err)
	}
	s.cfg = next
	return next, nil
}
