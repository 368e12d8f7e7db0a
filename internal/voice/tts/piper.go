package tts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/msto63/personachat/internal/voice/audio"
)

// PiperConfig holds settings for the local Piper binary
type PiperConfig struct {
	Binary     string
	Model      string
	SampleRate int
}

// Piper synthesizes speech with a local Piper binary. It ignores the
// language hint; the voice model decides the language.
type Piper struct {
	binary     string
	model      string
	configPath string
	espeakData string
	sampleRate int
}

// NewPiper validates the binary and model and creates the engine
func NewPiper(cfg PiperConfig) (*Piper, error) {
	if cfg.Binary == "" {
		cfg.Binary = "piper"
	}
	binary, err := exec.LookPath(cfg.Binary)
	if err != nil {
		return nil, fmt.Errorf("piper binary not found: %s", cfg.Binary)
	}

	if cfg.Model == "" {
		return nil, fmt.Errorf("piper model path is required")
	}
	if _, err := os.Stat(cfg.Model); err != nil {
		return nil, fmt.Errorf("model file not found: %s", cfg.Model)
	}
	configPath := cfg.Model + ".json"
	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("model config not found: %s", configPath)
	}

	espeakData := filepath.Join(filepath.Dir(binary), "espeak-ng-data")
	if _, err := os.Stat(espeakData); err != nil {
		espeakData = ""
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 22050
	}

	return &Piper{
		binary:     binary,
		model:      cfg.Model,
		configPath: configPath,
		espeakData: espeakData,
		sampleRate: cfg.SampleRate,
	}, nil
}

// Synthesize runs piper with raw PCM output and wraps it as WAV
func (p *Piper) Synthesize(ctx context.Context, text, language string) (audio.Clip, error) {
	if strings.TrimSpace(text) == "" {
		return audio.Clip{}, fmt.Errorf("no text to speak")
	}

	cmd := exec.CommandContext(ctx, p.binary, p.args()...)
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Dir = filepath.Dir(p.binary)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("DYLD_LIBRARY_PATH=%s", filepath.Dir(p.binary)),
	)

	if err := cmd.Run(); err != nil {
		return audio.Clip{}, fmt.Errorf("piper failed: %w, stderr: %s", err, stderr.String())
	}

	samples := audio.PCM16ToFloat32(stdout.Bytes())
	return audio.Clip{Data: audio.EncodeWAV(samples, p.sampleRate), Format: audio.FormatWAV}, nil
}

func (p *Piper) args() []string {
	args := []string{"--model", p.model, "--config", p.configPath, "--output_raw"}
	if p.espeakData != "" {
		args = append(args, "--espeak_data", p.espeakData)
	}
	return args
}
