package vad

import (
	"fmt"
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"github.com/msto63/personachat/internal/voice/audio"
)

var validRates = []int{8000, 16000, 32000, 48000}

// WebRTC implements Detector using WebRTC's VAD
type WebRTC struct {
	mu         sync.Mutex
	vad        *webrtcvad.VAD
	sampleRate int
	mode       int
}

// NewWebRTC creates a new WebRTC VAD instance
func NewWebRTC(cfg Config) (*WebRTC, error) {
	if err := ValidateSampleRate(cfg.SampleRate); err != nil {
		return nil, err
	}

	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create WebRTC VAD: %w", err)
	}

	mode := clampMode(cfg.Mode)
	if err := v.SetMode(mode); err != nil {
		return nil, fmt.Errorf("failed to set VAD mode: %w", err)
	}

	return &WebRTC{vad: v, sampleRate: cfg.SampleRate, mode: mode}, nil
}

// IsSpeech reports true if any 10ms sub-frame contains speech
func (w *WebRTC) IsSpeech(samples []float32) (bool, error) {
	frameSize := w.sampleRate / 100
	pcm := audio.Float32ToInt16(samples)
	if len(pcm) < frameSize {
		padded := make([]int16, frameSize)
		copy(padded, pcm)
		pcm = padded
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for i := 0; i+frameSize <= len(pcm); i += frameSize {
		active, err := w.vad.Process(w.sampleRate, int16ToBytes(pcm[i:i+frameSize]))
		if err != nil {
			return false, fmt.Errorf("VAD processing failed: %w", err)
		}
		if active {
			return true, nil
		}
	}
	return false, nil
}

// Mode returns the aggressiveness mode
func (w *WebRTC) Mode() int {
	return w.mode
}

// ValidateSampleRate checks that WebRTC VAD supports the rate
func ValidateSampleRate(rate int) error {
	for _, r := range validRates {
		if rate == r {
			return nil
		}
	}
	return fmt.Errorf("invalid sample rate %d, must be one of %v", rate, validRates)
}

func clampMode(mode int) int {
	if mode < 0 {
		return 0
	}
	if mode > 3 {
		return 3
	}
	return mode
}

// int16ToBytes converts samples to little-endian bytes
func int16ToBytes(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}
