package session

import (
	"errors"
	"sync"
	"time"
)

// ErrBusy is returned by Begin when a cycle is already running
var ErrBusy = errors.New("a request is already in progress")

// Phase is the stage of the current orchestration cycle
type Phase int

const (
	// PhaseIdle - no cycle running, input accepted
	PhaseIdle Phase = iota

	// PhaseAwaitingCapture - recording from the microphone
	PhaseAwaitingCapture

	// PhaseAwaitingTranscription - waiting for speech-to-text
	PhaseAwaitingTranscription

	// PhaseAwaitingGeneration - waiting for the model reply
	PhaseAwaitingGeneration

	// PhaseAwaitingSynthesis - waiting for text-to-speech
	PhaseAwaitingSynthesis

	// PhaseClearing - archiving and resetting the transcript
	PhaseClearing
)

// String returns the status label shown while in this phase
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Ready"
	case PhaseAwaitingCapture:
		return "Listening..."
	case PhaseAwaitingTranscription:
		return "Transcribing..."
	case PhaseAwaitingGeneration:
		return "Thinking..."
	case PhaseAwaitingSynthesis:
		return "Generating audio..."
	case PhaseClearing:
		return "Clearing history..."
	default:
		return "Unknown"
	}
}

// Icon returns an icon for the phase
func (p Phase) Icon() string {
	switch p {
	case PhaseIdle:
		return "⏸"
	case PhaseAwaitingCapture:
		return "🎤"
	case PhaseAwaitingTranscription:
		return "📝"
	case PhaseAwaitingGeneration:
		return "⚙️"
	case PhaseAwaitingSynthesis:
		return "🔊"
	case PhaseClearing:
		return "🗑"
	default:
		return "?"
	}
}

// Key returns a stable machine-readable name, used in websocket events
func (p Phase) Key() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingCapture:
		return "capture"
	case PhaseAwaitingTranscription:
		return "transcription"
	case PhaseAwaitingGeneration:
		return "generation"
	case PhaseAwaitingSynthesis:
		return "synthesis"
	case PhaseClearing:
		return "clearing"
	default:
		return "unknown"
	}
}

var validTransitions = map[Phase][]Phase{
	PhaseIdle:                  {PhaseAwaitingCapture, PhaseAwaitingTranscription, PhaseAwaitingGeneration, PhaseClearing},
	PhaseAwaitingCapture:       {PhaseAwaitingTranscription, PhaseIdle},
	PhaseAwaitingTranscription: {PhaseAwaitingGeneration, PhaseIdle},
	PhaseAwaitingGeneration:    {PhaseAwaitingSynthesis, PhaseIdle},
	PhaseAwaitingSynthesis:     {PhaseIdle},
	PhaseClearing:              {PhaseIdle},
}

// PhaseListener is called after every transition
type PhaseListener func(from, to Phase)

// StateMachine tracks the phase of one session. Begin is the single-flight
// guard: only one cycle can leave Idle at a time.
type StateMachine struct {
	mu          sync.RWMutex
	current     Phase
	phaseTime   time.Time
	lastWarning error
	listeners   []PhaseListener
}

// NewStateMachine creates a state machine in PhaseIdle
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current:   PhaseIdle,
		phaseTime: time.Now(),
	}
}

// Current returns the current phase
func (sm *StateMachine) Current() Phase {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// Busy reports whether a cycle is running
func (sm *StateMachine) Busy() bool {
	return sm.Current() != PhaseIdle
}

// PhaseDuration returns how long the current phase has lasted
func (sm *StateMachine) PhaseDuration() time.Duration {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return time.Since(sm.phaseTime)
}

// LastWarning returns the warning left by the most recent cycle, if any
func (sm *StateMachine) LastWarning() error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.lastWarning
}

// Begin starts a cycle by moving from Idle to first. It returns ErrBusy if
// a cycle is running and clears the previous cycle's warning otherwise.
func (sm *StateMachine) Begin(first Phase) error {
	sm.mu.Lock()
	if sm.current != PhaseIdle {
		sm.mu.Unlock()
		return ErrBusy
	}
	if first == PhaseIdle || !isValidTransition(PhaseIdle, first) {
		sm.mu.Unlock()
		return errors.New("invalid first phase " + first.Key())
	}
	sm.lastWarning = nil
	listeners := sm.setLocked(first)
	sm.mu.Unlock()

	notify(listeners, PhaseIdle, first)
	return nil
}

// Advance moves to the next phase within a running cycle
func (sm *StateMachine) Advance(next Phase) bool {
	sm.mu.Lock()
	from := sm.current
	if from == PhaseIdle || next == PhaseIdle || !isValidTransition(from, next) {
		sm.mu.Unlock()
		return false
	}
	listeners := sm.setLocked(next)
	sm.mu.Unlock()

	notify(listeners, from, next)
	return true
}

// Finish ends the cycle and records warning (nil for a clean finish)
func (sm *StateMachine) Finish(warning error) {
	sm.mu.Lock()
	from := sm.current
	sm.lastWarning = warning
	if from == PhaseIdle {
		sm.mu.Unlock()
		return
	}
	listeners := sm.setLocked(PhaseIdle)
	sm.mu.Unlock()

	notify(listeners, from, PhaseIdle)
}

// AddListener adds a phase change listener
func (sm *StateMachine) AddListener(listener PhaseListener) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.listeners = append(sm.listeners, listener)
}

func (sm *StateMachine) setLocked(p Phase) []PhaseListener {
	sm.current = p
	sm.phaseTime = time.Now()
	listeners := make([]PhaseListener, len(sm.listeners))
	copy(listeners, sm.listeners)
	return listeners
}

func notify(listeners []PhaseListener, from, to Phase) {
	for _, l := range listeners {
		l(from, to)
	}
}

func isValidTransition(from, to Phase) bool {
	for _, valid := range validTransitions[from] {
		if valid == to {
			return true
		}
	}
	return false
}
