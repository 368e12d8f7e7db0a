// ============================================================================
// PersonaChat - Persona-Sprachchat
// ============================================================================
//
// Package:     stt
// Description: Speech-to-text via hosted Whisper
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package stt

import (
	"context"

	"github.com/msto63/personachat/internal/voice/audio"
)

// Transcriber is the interface for speech-to-text engines
type Transcriber interface {
	// Transcribe converts a recorded clip to text
	Transcribe(ctx context.Context, clip audio.Clip, language string) (Result, error)
}

// Result holds the transcription result
type Result struct {
	// Text is the transcribed text, trimmed
	Text string

	// Language is the language the engine was asked for
	Language string
}
