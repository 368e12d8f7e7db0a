// ============================================================================
// PersonaChat - Persona-Sprachchat
// ============================================================================
//
// Package:     device
// Description: Microphone capture and speaker playback using PortAudio
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const (
	// DefaultSampleRate is 16kHz, what Whisper and WebRTC VAD expect
	DefaultSampleRate = 16000

	// DefaultFramesPerBuffer is 30ms at 16kHz, a valid WebRTC VAD frame
	DefaultFramesPerBuffer = 480
)

// CaptureConfig holds configuration for audio capture
type CaptureConfig struct {
	SampleRate      int
	FramesPerBuffer int
	DeviceName      string // empty = default input
}

// DefaultCaptureConfig returns default capture configuration
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate:      DefaultSampleRate,
		FramesPerBuffer: DefaultFramesPerBuffer,
	}
}

// Capture reads mono float32 frames from an input device. One Capture
// serves one recording: Start, read Frames until done, Stop.
type Capture struct {
	mu      sync.Mutex
	cfg     CaptureConfig
	stream  *portaudio.Stream
	frames  chan []float32
	done    chan struct{}
	running bool
}

// NewCapture creates a capture for cfg. PortAudio is initialized on Start.
func NewCapture(cfg CaptureConfig) *Capture {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.FramesPerBuffer == 0 {
		cfg.FramesPerBuffer = DefaultFramesPerBuffer
	}
	return &Capture{cfg: cfg}
}

// Start opens the stream and begins delivering frames
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("capture already running")
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	buffer := make([]float32, c.cfg.FramesPerBuffer)
	stream, err := c.openStream(buffer)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open audio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	c.stream = stream
	c.frames = make(chan []float32, 64)
	c.done = make(chan struct{})
	c.running = true

	go c.readLoop(ctx, stream, buffer, c.frames, c.done)
	return nil
}

func (c *Capture) openStream(buffer []float32) (*portaudio.Stream, error) {
	rate := float64(c.cfg.SampleRate)
	if c.cfg.DeviceName == "" || c.cfg.DeviceName == "default" {
		return portaudio.OpenDefaultStream(1, 0, rate, c.cfg.FramesPerBuffer, buffer)
	}

	dev, err := findInputDevice(c.cfg.DeviceName)
	if err != nil {
		// Unbekanntes Geraet: Standardeingang verwenden
		return portaudio.OpenDefaultStream(1, 0, rate, c.cfg.FramesPerBuffer, buffer)
	}
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      rate,
		FramesPerBuffer: c.cfg.FramesPerBuffer,
	}
	return portaudio.OpenStream(params, buffer)
}

// readLoop blocks on stream.Read and forwards copies of each buffer. The
// frames channel is closed when the loop exits.
func (c *Capture) readLoop(ctx context.Context, stream *portaudio.Stream, buffer []float32, out chan<- []float32, done <-chan struct{}) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			select {
			case <-done:
				return
			default:
				// Input overflow is recoverable
				continue
			}
		}

		frame := make([]float32, len(buffer))
		copy(frame, buffer)
		select {
		case out <- frame:
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Frames returns the channel of captured frames
func (c *Capture) Frames() <-chan []float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// SampleRate returns the capture sample rate
func (c *Capture) SampleRate() int {
	return c.cfg.SampleRate
}

// Stop closes the stream and releases PortAudio
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}
	c.running = false
	close(c.done)

	var firstErr error
	if err := c.stream.Stop(); err != nil {
		firstErr = fmt.Errorf("failed to stop audio stream: %w", err)
	}
	if err := c.stream.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close audio stream: %w", err)
	}
	c.stream = nil
	if err := portaudio.Terminate(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return firstErr
}

func findInputDevice(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, dev := range devices {
		if dev.Name == name && dev.MaxInputChannels > 0 {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", name)
}

// DeviceInfo holds information about an input device
type DeviceInfo struct {
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	IsDefault         bool
}

// ListInputDevices returns the available input devices
func ListInputDevices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}

	var defaultName string
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultName = def.Name
	}

	var out []DeviceInfo
	for _, dev := range devices {
		if dev.MaxInputChannels == 0 {
			continue
		}
		out = append(out, DeviceInfo{
			Name:              dev.Name,
			MaxInputChannels:  dev.MaxInputChannels,
			DefaultSampleRate: dev.DefaultSampleRate,
			IsDefault:         dev.Name == defaultName,
		})
	}
	return out, nil
}
