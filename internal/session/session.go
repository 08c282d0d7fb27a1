// Package session tracks active player sessions in memory or in Redis.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"xtream-web-go/internal/config"
	"xtream-web-go/internal/metrics"
	"xtream-web-go/internal/model"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Store is a session backend. Sessions expire TTL after their last heartbeat.
type Store interface {
	Create(ctx context.Context, serverID, username string) (model.Session, error)
	Get(ctx context.Context, id string) (model.Session, error)
	Heartbeat(ctx context.Context, id string) (model.Session, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]model.Session, error)
	// Sweep drops expired sessions and returns how many remain active.
	Sweep(ctx context.Context) (int, error)
	Close() error
}

// New builds the backend selected by sessions.backend.
func New(cfg *config.Config, logger *slog.Logger) (Store, error) {
	ttl := cfg.Sessions.TTL()

	switch cfg.Sessions.Backend {
	case config.SessionBackendRedis:
		return NewRedisStore(cfg.Sessions, ttl, logger)
	case config.SessionBackendMemory, "":
		logger.Info("using in-memory session store", "ttl", ttl.String())
		return NewMemoryStore(ttl), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Sessions.Backend)
	}
}

// RunSweeper sweeps s every interval until ctx is done, publishing the
// active count to the sessions gauge.
func RunSweeper(ctx context.Context, s Store, interval time.Duration, m *metrics.Metrics, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			active, err := s.Sweep(ctx)
			if err != nil {
				logger.Warn("session sweep failed", "err", err)
				continue
			}
			if m != nil {
				m.ActiveSessions.Set(float64(active))
			}
		}
	}
}

func newSession(id, serverID, username string, now time.Time, ttl time.Duration) model.Session {
	return model.Session{
		ID:        id,
		ServerID:  serverID,
		Username:  username,
		CreatedAt: now,
		LastSeen:  now,
		ExpiresAt: now.Add(ttl),
	}
}
