package session

import (
	"sync"
	"time"
)

// Session is one independently owned conversation
type Session struct {
	ID        string
	Store     *Store
	Phase     *StateMachine
	CreatedAt time.Time

	mu         sync.Mutex
	lastActive time.Time
}

// New creates a session with the given id and initial settings
func New(id string, settings Settings) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Store:      NewStore(settings),
		Phase:      NewStateMachine(),
		CreatedAt:  now,
		lastActive: now,
	}
}

// Touch marks the session as used now
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// LastActive returns when the session was last used
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}
