// ============================================================================
// PersonaChat - Persona-Sprachchat
// ============================================================================
//
// Package:     session
// Description: Per-session conversation state, phase tracking and registry
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package session

import (
	"sync"
	"time"

	"github.com/msto63/personachat/internal/voice/audio"
)

// Role identifies the author of a turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in the conversation. Turns are never modified after
// they are appended.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Settings are the user-togglable options of a session
type Settings struct {
	Model     string `json:"model"`
	VoiceMode bool   `json:"voice_mode"`
	Autoplay  bool   `json:"autoplay"`
}

// Store holds the transcript, the pending audio slot and the settings of
// one session. All methods are safe for concurrent use.
type Store struct {
	mu         sync.Mutex
	transcript []Turn
	pending    *audio.Clip
	settings   Settings
	now        func() time.Time
}

// NewStore creates an empty store with the given initial settings
func NewStore(settings Settings) *Store {
	return &Store{settings: settings, now: time.Now}
}

// AppendTurn appends a turn. Content is stored as given, including "".
func (s *Store) AppendTurn(role Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, Turn{Role: role, Content: content, CreatedAt: s.now()})
}

// ResetTranscript clears the transcript and the pending audio
func (s *Store) ResetTranscript() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = nil
	s.pending = nil
}

// SetPendingAudio replaces the pending clip. Last write wins; nil or an
// empty clip clears the slot.
func (s *Store) SetPendingAudio(clip *audio.Clip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if clip == nil || clip.Empty() {
		s.pending = nil
		return
	}
	c := *clip
	s.pending = &c
}

// ConsumePendingAudio returns the pending clip and clears the slot, so each
// clip is handed out at most once. Returns nil when nothing is pending.
func (s *Store) ConsumePendingAudio() *audio.Clip {
	s.mu.Lock()
	defer s.mu.Unlock()
	clip := s.pending
	s.pending = nil
	return clip
}

// HasPendingAudio reports whether a clip is waiting without consuming it
func (s *Store) HasPendingAudio() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Transcript returns a copy of all turns in order
func (s *Store) Transcript() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Len returns the number of turns
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transcript)
}

// Turn returns the turn at index i
func (s *Store) Turn(i int) (Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.transcript) {
		return Turn{}, false
	}
	return s.transcript[i], true
}

// Settings returns the current settings
func (s *Store) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings applies fn to the settings under the lock and returns the
// result. Past turns are not affected.
func (s *Store) UpdateSettings(fn func(*Settings)) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.settings)
	return s.settings
}
