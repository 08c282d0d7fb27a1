package session

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"xtream-web-go/internal/model"
)

// MemoryStore keeps sessions in process. Expired entries are invisible
// immediately and removed on the next Sweep.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]model.Session
	ttl      time.Duration
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]model.Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create starts a session that expires ttl from now.
func (s *MemoryStore) Create(_ context.Context, serverID, username string) (model.Session, error) {
	sess := newSession(uuid.NewString(), serverID, username, s.now().UTC(), s.ttl)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess, nil
}

// Get returns a live session or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, id string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(id)
}

// Heartbeat pushes the expiry of a live session ttl into the future.
func (s *MemoryStore) Heartbeat(_ context.Context, id string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.live(id)
	if err != nil {
		return model.Session{}, err
	}
	now := s.now().UTC()
	sess.LastSeen = now
	sess.ExpiresAt = now.Add(s.ttl)
	s.sessions[id] = sess
	return sess, nil
}

// Delete removes a session. Unknown ids are not an error.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// List returns live sessions oldest first.
func (s *MemoryStore) List(_ context.Context) ([]model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make([]model.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if now.Before(sess.ExpiresAt) {
			out = append(out, sess)
		}
	}
	sortSessions(out)
	return out, nil
}

// Sweep drops expired sessions and returns how many remain.
func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
	return len(s.sessions), nil
}

// Close is a no-op; there is nothing to release.
func (s *MemoryStore) Close() error { return nil }

// live returns a non-expired session. Caller holds s.mu.
func (s *MemoryStore) live(id string) (model.Session, error) {
	sess, ok := s.sessions[id]
	if !ok || !s.now().Before(sess.ExpiresAt) {
		return model.Session{}, ErrNotFound
	}
	return sess, nil
}

func sortSessions(list []model.Session) {
	slices.SortFunc(list, func(a, b model.Session) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
