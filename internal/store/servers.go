package store

import (
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"xtream-web-go/internal/config"
	"xtream-web-go/internal/model"
)

const serversFile = "servers.json"

// ServerStore is the registry of Xtream panels users can pick from.
type ServerStore struct {
	mu      sync.RWMutex
	path    string
	servers []model.Server
	logger  *slog.Logger
	now     func() time.Time
}

// NewServerStore loads servers.json from the data directory. A missing file
// yields an empty registry.
func NewServerStore(cfg *config.Config, logger *slog.Logger) (*ServerStore, error) {
	s := &ServerStore{
		path:   filepath.Join(cfg.Storage.DataDir, serversFile),
		logger: logger.With("component", "server_store"),
		now:    time.Now,
	}

	if _, err := readJSON(s.path, &s.servers); err != nil {
		return nil, err
	}
	s.logger.Info("server registry loaded", "path", s.path, "count", len(s.servers))
	return s, nil
}

// List returns every server in insertion order.
func (s *ServerStore) List() []model.Server {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.servers)
}

// Get returns the server with the given ID.
func (s *ServerStore) Get(id string) (model.Server, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, srv := range s.servers {
		if srv.ID == id {
			return srv, nil
		}
	}
	return model.Server{}, ErrNotFound
}

// Add validates name and URL, assigns an ID and persists the new server.
func (s *ServerStore) Add(name, rawURL string) (model.Server, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Server{}, &ValidationError{Field: "name", Message: "is required"}
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return model.Server{}, &ValidationError{Field: "url", Message: "must be an absolute http or https URL"}
	}

	srv := model.Server{
		ID:        uuid.NewString(),
		Name:      name,
		URL:       strings.TrimRight(u.String(), "/"),
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := append(slices.Clone(s.servers), srv)
	if err := writeJSON(s.path, next); err != nil {
		return model.Server{}, fmt.Errorf("save servers: %w", err)
	}
	s.servers = next
	return srv, nil
}

// Delete removes the server with the given ID.
func (s *ServerStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.servers, func(srv model.Server) bool { return srv.ID == id })
	if i < 0 {
		return ErrNotFound
	}

	next := slices.Delete(slices.Clone(s.servers), i, i+1)
	if err := writeJSON(s.path, next); err != nil {
		return fmt.Errorf("save servers: %w", err)
	}
	s.servers = next
	return nil
}
