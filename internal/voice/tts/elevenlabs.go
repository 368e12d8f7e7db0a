package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/msto63/personachat/internal/voice/audio"
	"github.com/msto63/personachat/pkg/core/logging"
)

// ElevenLabsConfig holds ElevenLabs settings
type ElevenLabsConfig struct {
	BaseURL    string
	APIKey     string
	VoiceID    string
	ModelID    string
	HTTPClient *http.Client
}

// ElevenLabs synthesizes MP3 speech through the ElevenLabs REST API
type ElevenLabs struct {
	cfg    ElevenLabsConfig
	logger *logging.Logger
}

// NewElevenLabs creates a new ElevenLabs engine
func NewElevenLabs(cfg ElevenLabsConfig) (*ElevenLabs, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.VoiceID = strings.TrimSpace(cfg.VoiceID)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("elevenlabs api key is required")
	}
	if cfg.VoiceID == "" {
		return nil, fmt.Errorf("elevenlabs voice id is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.elevenlabs.io/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &ElevenLabs{cfg: cfg, logger: logging.New("elevenlabs")}, nil
}

type elevenLabsRequest struct {
	Text         string `json:"text"`
	ModelID      string `json:"model_id,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// Synthesize converts text to MP3
func (e *ElevenLabs) Synthesize(ctx context.Context, text, language string) (audio.Clip, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return audio.Clip{}, fmt.Errorf("no text to speak")
	}

	body, err := json.Marshal(elevenLabsRequest{Text: text, ModelID: e.cfg.ModelID, LanguageCode: language})
	if err != nil {
		return audio.Clip{}, err
	}

	url := fmt.Sprintf("%s/text-to-speech/%s?output_format=mp3_44100_128", e.cfg.BaseURL, e.cfg.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return audio.Clip{}, err
	}
	req.Header.Set("xi-api-key", e.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := e.cfg.HTTPClient.Do(req)
	if err != nil {
		return audio.Clip{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return audio.Clip{}, fmt.Errorf("elevenlabs returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return audio.Clip{}, err
	}

	e.logger.Debug("Synthesized speech", "voice", e.cfg.VoiceID, "bytes", len(data))
	return audio.Clip{Data: data, Format: audio.FormatMP3}, nil
}
