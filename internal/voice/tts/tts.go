// ============================================================================
// PersonaChat - Persona-Sprachchat
// ============================================================================
//
// Package:     tts
// Description: Text-to-Speech engines
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package tts

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/msto63/personachat/internal/voice/audio"
	"github.com/msto63/personachat/pkg/core/config"
)

// Synthesizer is the interface for text-to-speech engines
type Synthesizer interface {
	// Synthesize converts text to an encoded audio clip
	Synthesize(ctx context.Context, text, language string) (audio.Clip, error)
}

// Engine names accepted in the [tts] config section
const (
	EngineGTTS       = "gtts"
	EngineElevenLabs = "elevenlabs"
	EnginePiper      = "piper"
	EngineNone       = "none"
)

// New builds the synthesizer selected by cfg.Engine. EngineNone returns
// a nil Synthesizer and no error; callers treat that as "voice off".
func New(cfg config.TTSConfig) (Synthesizer, error) {
	client := &http.Client{Timeout: cfg.Timeout.Duration + 5*time.Second}

	switch cfg.Engine {
	case EngineGTTS, "":
		return NewGTTS(GTTSConfig{
			BaseURL:    cfg.GTTS.BaseURL,
			Slow:       cfg.GTTS.Slow,
			HTTPClient: client,
		}), nil
	case EngineElevenLabs:
		el, err := NewElevenLabs(ElevenLabsConfig{
			BaseURL:    cfg.ElevenLabs.BaseURL,
			APIKey:     cfg.ElevenLabs.APIKey,
			VoiceID:    cfg.ElevenLabs.VoiceID,
			ModelID:    cfg.ElevenLabs.ModelID,
			HTTPClient: client,
		})
		if err != nil {
			return nil, err
		}
		return el, nil
	case EnginePiper:
		p, err := NewPiper(PiperConfig{
			Binary:     cfg.Piper.Binary,
			Model:      cfg.Piper.Model,
			SampleRate: cfg.Piper.SampleRate,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case EngineNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown tts engine: %q", cfg.Engine)
	}
}
