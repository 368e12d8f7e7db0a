package stt

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/msto63/personachat/internal/voice/audio"
	"github.com/msto63/personachat/pkg/core/logging"
)

const (
	// DefaultModel is Groq's fast Whisper variant
	DefaultModel = "whisper-large-v3-turbo"

	// GroqBaseURL is Groq's OpenAI-compatible endpoint
	GroqBaseURL = "https://api.groq.com/openai/v1"
)

// GroqConfig holds Groq transcription settings
type GroqConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// Groq transcribes audio with Whisper on Groq's OpenAI-compatible API
type Groq struct {
	client *openai.Client
	model  string
	logger *logging.Logger
}

// NewGroq creates a new Groq transcriber
func NewGroq(cfg GroqConfig) *Groq {
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = GroqBaseURL
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Groq{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
		logger: logging.New("groq-stt"),
	}
}

// Transcribe sends the clip as a multipart upload and returns plain text
func (g *Groq) Transcribe(ctx context.Context, clip audio.Clip, language string) (Result, error) {
	if clip.Empty() {
		return Result{}, fmt.Errorf("empty audio clip")
	}
	if clip.Format == "" {
		clip.Format = audio.FormatWAV
	}

	resp, err := g.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:       g.model,
		Reader:      bytes.NewReader(clip.Data),
		FilePath:    clip.FileName("audio"),
		Language:    language,
		Temperature: 0,
		Format:      openai.AudioResponseFormatText,
	})
	if err != nil {
		return Result{}, fmt.Errorf("transcription request failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	g.logger.Debug("Transcription complete",
		"model", g.model,
		"bytes", len(clip.Data),
		"chars", len(text))

	return Result{Text: text, Language: language}, nil
}
