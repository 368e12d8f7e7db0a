package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/msto63/personachat/pkg/core/logging"
)

// Registry owns the sessions of one server, keyed by uuid
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	defaults Settings
	onEvict  func(*Session)
	logger   *logging.Logger
}

// NewRegistry creates an empty registry. New sessions start with defaults.
func NewRegistry(defaults Settings) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		defaults: defaults,
		logger:   logging.New("session-registry"),
	}
}

// OnEvict registers a callback run for every session removed by EvictIdle
func (r *Registry) OnEvict(fn func(*Session)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEvict = fn
}

// Get returns the session with id
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// GetOrCreate returns the session for id, or a new session with a fresh id
// when id is unknown. The bool reports whether a session was created.
func (r *Registry) GetOrCreate(id string) (*Session, bool) {
	if s, ok := r.Get(id); ok {
		s.Touch()
		return s, false
	}

	s := New(uuid.NewString(), r.defaults)

	r.mu.Lock()
	r.sessions[s.ID] = s
	n := len(r.sessions)
	r.mu.Unlock()

	r.logger.Debug("Session created", "session", s.ID, "sessions", n)
	return s, true
}

// Delete removes a session without running the evict callback
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Len returns the number of sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// EvictIdle removes sessions unused for longer than maxIdle. Sessions with
// a running cycle are kept. Returns the number evicted.
func (r *Registry) EvictIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	r.mu.Lock()
	var evicted []*Session
	for id, s := range r.sessions {
		if s.Phase.Busy() || s.LastActive().After(cutoff) {
			continue
		}
		delete(r.sessions, id)
		evicted = append(evicted, s)
	}
	onEvict := r.onEvict
	r.mu.Unlock()

	for _, s := range evicted {
		if onEvict != nil {
			onEvict(s)
		}
	}
	if len(evicted) > 0 {
		r.logger.Info("Evicted idle sessions", "count", len(evicted))
	}
	return len(evicted)
}

// RunEviction calls EvictIdle every interval until ctx is done
func (r *Registry) RunEviction(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.EvictIdle(maxIdle)
		}
	}
}
