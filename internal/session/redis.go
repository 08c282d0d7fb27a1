package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"xtream-web-go/internal/config"
	"xtream-web-go/internal/model"
)

const (
	keyPrefix   = "xtream-web:session:"
	pingTimeout = 5 * time.Second
	scanCount   = 100
)

// RedisStore keeps sessions as JSON values whose Redis TTL tracks the
// session expiry, so several instances can share them.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg config.SessionsConfig, ttl time.Duration, logger *slog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
	}

	logger.Info("using redis session store", "addr", cfg.RedisAddr, "db", cfg.RedisDB, "ttl", ttl.String())
	return &RedisStore{client: client, ttl: ttl, now: time.Now}, nil
}

// Create stores a new session under a key that expires after ttl.
func (s *RedisStore) Create(ctx context.Context, serverID, username string) (model.Session, error) {
	sess := newSession(uuid.NewString(), serverID, username, s.now().UTC(), s.ttl)
	if err := s.save(ctx, sess, false); err != nil {
		return model.Session{}, err
	}
	return sess, nil
}

// Get returns the session or ErrNotFound once its key has expired.
func (s *RedisStore) Get(ctx context.Context, id string) (model.Session, error) {
	val, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Session{}, ErrNotFound
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("get session: %w", err)
	}

	var sess model.Session
	if err := json.Unmarshal(val, &sess); err != nil {
		return model.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return sess, nil
}

// Heartbeat rewrites an existing session key with a fresh TTL.
func (s *RedisStore) Heartbeat(ctx context.Context, id string) (model.Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return model.Session{}, err
	}
	now := s.now().UTC()
	sess.LastSeen = now
	sess.ExpiresAt = now.Add(s.ttl)
	if err := s.save(ctx, sess, true); err != nil {
		return model.Session{}, err
	}
	return sess, nil
}

// Delete removes the session key. Missing keys are not an error.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// List scans session keys and returns the sessions oldest first.
func (s *RedisStore) List(ctx context.Context) ([]model.Session, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return []model.Session{}, nil
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	out := make([]model.Session, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue // expired between SCAN and MGET
		}
		var sess model.Session
		if err := json.Unmarshal([]byte(raw), &sess); err != nil {
			continue
		}
		out = append(out, sess)
	}
	sortSessions(out)
	return out, nil
}

// Sweep only counts: Redis expires keys on its own.
func (s *RedisStore) Sweep(ctx context.Context) (int, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) save(ctx context.Context, sess model.Session, mustExist bool) error {
	val, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	key := keyPrefix + sess.ID
	if !mustExist {
		if err := s.client.Set(ctx, key, val, s.ttl).Err(); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		return nil
	}

	// SET XX so a session that expired mid-heartbeat is not resurrected.
	ok, err := s.client.SetXX(ctx, key, val, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	return keys, nil
}
