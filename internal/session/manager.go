// Package session tracks per-episode collaborator context. Sessions live in
// a local map for speed and are persisted to Redis best-effort, so a suite
// can be inspected (or resumed) across process restarts without making Redis
// a hard dependency.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/reliancelab/mazesim/internal/circuitbreaker"
	"github.com/reliancelab/mazesim/internal/metrics"
)

// defaultMaxTurns bounds session history; older turns are dropped.
const defaultMaxTurns = 50

// Manager owns episode sessions. A manager with no Redis address keeps
// everything in memory, which is the normal mode for local experiment runs.
type Manager struct {
	store    *circuitbreaker.GuardedRedis // nil in memory-only mode
	logger   *zap.Logger
	ttl      time.Duration
	maxTurns int

	mu    sync.RWMutex
	cache map[string]*Session
}

// NewManager creates a session manager. An empty redisAddr selects
// memory-only mode. With an address, connectivity is verified up front; the
// REDIS_PASSWORD environment variable is honored.
func NewManager(redisAddr string, maxTurns int, logger *zap.Logger) (*Manager, error) {
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}

	m := &Manager{
		logger:   logger,
		ttl:      24 * time.Hour,
		maxTurns: maxTurns,
		cache:    make(map[string]*Session),
	}

	if redisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:         redisAddr,
			Password:     os.Getenv("REDIS_PASSWORD"),
			DB:           0,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		m.store = circuitbreaker.NewGuardedRedis(client, logger)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.store.Ping(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
	}

	return m, nil
}

// StartEpisode creates a fresh session for one episode.
func (m *Manager) StartEpisode(ctx context.Context, experimentID, configuration, strategy string) (*Session, error) {
	now := time.Now()
	s := &Session{
		ID:            uuid.New().String(),
		ExperimentID:  experimentID,
		Configuration: configuration,
		Strategy:      strategy,
		CreatedAt:     now,
		UpdatedAt:     now,
		ExpiresAt:     now.Add(m.ttl),
		Turns:         make([]Turn, 0, m.maxTurns),
	}

	m.mu.Lock()
	m.cache[s.ID] = s
	m.mu.Unlock()

	m.persist(ctx, s)

	metrics.SessionsCreated.Inc()
	metrics.SessionsActive.Inc()
	m.logger.Debug("Started episode session",
		zap.String("session_id", s.ID),
		zap.String("configuration", configuration),
	)
	return s, nil
}

// Get retrieves a session, preferring the local cache over Redis.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.cache[sessionID]
	m.mu.RUnlock()
	if ok {
		metrics.SessionCacheHits.Inc()
		if s.IsExpired() {
			return nil, ErrSessionExpired
		}
		return s, nil
	}
	metrics.SessionCacheMisses.Inc()

	if m.store == nil {
		return nil, ErrSessionNotFound
	}

	data, err := m.store.Get(ctx, sessionKey(sessionID))
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var loaded Session
	if err := json.Unmarshal([]byte(data), &loaded); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if loaded.IsExpired() {
		return nil, ErrSessionExpired
	}

	m.mu.Lock()
	m.cache[sessionID] = &loaded
	m.mu.Unlock()
	return &loaded, nil
}

// AppendTurn records one exchange, enforcing the history window.
func (m *Manager) AppendTurn(ctx context.Context, sessionID string, turn Turn) error {
	s, err := m.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	m.mu.Lock()
	s.Turns = append(s.Turns, turn)
	if len(s.Turns) > m.maxTurns {
		s.Turns = s.Turns[len(s.Turns)-m.maxTurns:]
	}
	s.UpdatedAt = time.Now()
	m.mu.Unlock()

	m.persist(ctx, s)
	return nil
}

// Recent returns the last count turns of a session.
func (m *Manager) Recent(ctx context.Context, sessionID string, count int) ([]Turn, error) {
	s, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	turns := s.Recent(count)
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

// EndEpisode drops the session from the local cache and from Redis.
func (m *Manager) EndEpisode(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	_, existed := m.cache[sessionID]
	delete(m.cache, sessionID)
	m.mu.Unlock()

	if existed {
		metrics.SessionsActive.Dec()
	}

	if m.store != nil {
		if err := m.store.Del(ctx, sessionKey(sessionID)); err != nil {
			m.logger.Warn("Failed to delete session from Redis",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Close releases the Redis connection if one exists.
func (m *Manager) Close() error {
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}

// persist writes the session to Redis best-effort. Episodes never fail
// because the store is unavailable; the local cache stays authoritative.
func (m *Manager) persist(ctx context.Context, s *Session) {
	if m.store == nil {
		return
	}

	m.mu.RLock()
	data, err := json.Marshal(s)
	m.mu.RUnlock()
	if err != nil {
		m.logger.Warn("Failed to marshal session", zap.String("session_id", s.ID), zap.Error(err))
		return
	}

	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		ttl = m.ttl
	}
	if err := m.store.Set(ctx, sessionKey(s.ID), data, ttl); err != nil {
		m.logger.Warn("Failed to persist session to Redis",
			zap.String("session_id", s.ID),
			zap.Error(err),
		)
	}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("episode:%s", sessionID)
}
