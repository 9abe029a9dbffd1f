// Package session keeps one graph level manager per client session.
package session

import (
	"fmt"
	"sync"
	"time"

	"ideagraph-backend/internal/graphlevel"
	appErrors "ideagraph-backend/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session pairs a manager with its owner. The manager is only touched while
// mu is held.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time

	// Loaded is false until the manager holds an idea snapshot. Guarded by mu.
	Loaded bool

	mu       sync.Mutex
	manager  *graphlevel.Manager
	lastUsed time.Time
}

// Registry is a concurrency-safe map of sessions with idle eviction.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewRegistry creates a registry. A ttl of zero disables eviction.
func NewRegistry(ttl time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

// Create registers a new session whose manager starts at the macro level
// with the given threshold.
func (r *Registry) Create(userID string, threshold float64) (*Session, error) {
	if userID == "" {
		return nil, appErrors.NewValidation("user id is required")
	}

	manager, err := graphlevel.NewManager(
		graphlevel.WithSimilarityThreshold(threshold),
		graphlevel.WithLogger(r.logger.With(zap.String("userID", userID))),
	)
	if err != nil {
		return nil, err
	}

	now := r.now()
	s := &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: now,
		manager:   manager,
		lastUsed:  now,
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	r.logger.Info("Session created",
		zap.String("sessionID", s.ID),
		zap.String("userID", userID),
	)
	return s, nil
}

// Restore registers a session from durable state. An existing session with
// the same id is returned as is. A restored session starts without ideas.
func (r *Registry) Restore(state State) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[state.SessionID]; ok {
		return s, nil
	}

	manager, err := graphlevel.NewManager(
		graphlevel.WithSimilarityThreshold(state.Threshold),
		graphlevel.WithLogger(r.logger.With(zap.String("userID", state.UserID))),
	)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:        state.SessionID,
		UserID:    state.UserID,
		CreatedAt: state.CreatedAt,
		manager:   manager,
		lastUsed:  r.now(),
	}
	r.sessions[s.ID] = s

	r.logger.Info("Session restored",
		zap.String("sessionID", s.ID),
		zap.String("userID", s.UserID),
	)
	return s, nil
}

// Has reports whether the session is live in this registry.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[id]
	return ok
}

// With runs fn against the session's manager while holding the session lock.
// A session removed while the caller waited for the lock is reported as not
// found and fn is not run.
func (r *Registry) With(id string, fn func(s *Session, m *graphlevel.Manager) error) error {
	s, ok := r.lookup(id)
	if !ok {
		return appErrors.NewNotFound(fmt.Sprintf("session %s not found", id))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := r.lookup(id); !ok || current != s {
		return appErrors.NewNotFound(fmt.Sprintf("session %s not found", id))
	}

	s.lastUsed = r.now()
	return fn(s, s.manager)
}

func (r *Registry) lookup(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Delete removes a session.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return appErrors.NewNotFound(fmt.Sprintf("session %s not found", id))
	}
	delete(r.sessions, id)

	r.logger.Info("Session closed", zap.String("sessionID", id))
	return nil
}

// Sweep evicts sessions idle for longer than the ttl and returns how many
// were removed. Sessions currently in use are skipped.
func (r *Registry) Sweep(now time.Time) int {
	if r.ttl <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, s := range r.sessions {
		if !s.mu.TryLock() {
			continue
		}
		idle := now.Sub(s.lastUsed)
		s.mu.Unlock()

		if idle > r.ttl {
			delete(r.sessions, id)
			evicted++
		}
	}

	if evicted > 0 {
		r.logger.Info("Evicted idle sessions", zap.Int("count", evicted), zap.Int("remaining", len(r.sessions)))
	}
	return evicted
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

