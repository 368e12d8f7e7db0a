// ============================================================================
// PersonaChat - Persona-Sprachchat
// ============================================================================
//
// Package:     vad
// Description: Voice activity detection and utterance tracking
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package vad

import (
	"time"
)

// Detector is the interface for voice activity detection
type Detector interface {
	// IsSpeech reports whether the frame contains speech
	IsSpeech(samples []float32) (bool, error)
}

// Config holds VAD configuration
type Config struct {
	// SampleRate must be 8000, 16000, 32000 or 48000 for WebRTC VAD
	SampleRate int

	// Mode is the aggressiveness (0-3, higher filters more)
	Mode int

	// EndSilence is how long silence must last to end an utterance
	EndSilence time.Duration

	// MinSpeech is the minimum speech before silence may end an utterance
	MinSpeech time.Duration
}

// DefaultConfig returns default VAD configuration
func DefaultConfig() Config {
	return Config{
		SampleRate: 16000,
		Mode:       2,
		EndSilence: 800 * time.Millisecond,
		MinSpeech:  200 * time.Millisecond,
	}
}

// SpeechState is a snapshot of the tracker
type SpeechState struct {
	Started bool
	// Speech is the time from the first speech frame to now
	Speech time.Duration
	// Silence is the trailing silence since the last speech frame
	Silence time.Duration
}

// SpeechTracker follows one utterance. It is clocked by the audio itself:
// each Update advances by the frame's playing time, so the result does not
// depend on how fast frames are delivered.
type SpeechTracker struct {
	config Config
	state  SpeechState
}

// NewSpeechTracker creates a new speech tracker
func NewSpeechTracker(cfg Config) *SpeechTracker {
	return &SpeechTracker{config: cfg}
}

// Update feeds one frame's VAD decision and its duration
func (t *SpeechTracker) Update(isSpeech bool, frame time.Duration) SpeechState {
	if t.state.Started {
		t.state.Speech += frame
	}
	if isSpeech {
		if !t.state.Started {
			t.state.Started = true
			t.state.Speech = frame
		}
		t.state.Silence = 0
	} else if t.state.Started {
		t.state.Silence += frame
	}
	return t.state
}

// Done reports whether trailing silence has ended the utterance
func (t *SpeechTracker) Done() bool {
	return t.state.Started &&
		t.state.Silence >= t.config.EndSilence &&
		t.state.Speech-t.state.Silence >= t.config.MinSpeech
}

// Reset clears the tracker state
func (t *SpeechTracker) Reset() {
	t.state = SpeechState{}
}

// State returns the current speech state
func (t *SpeechTracker) State() SpeechState {
	return t.state
}
