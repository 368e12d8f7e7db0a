// ============================================================================
// PersonaChat - Persona-Sprachchat
// ============================================================================
//
// Package:     recorder
// Description: Bounded single-utterance recording with voice activity detection
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/msto63/personachat/internal/voice/audio"
	"github.com/msto63/personachat/internal/voice/vad"
	"github.com/msto63/personachat/pkg/core/logging"
)

// ErrNoSpeech is returned when no speech started within the listen timeout
var ErrNoSpeech = audio.ErrNoSpeech

// Source delivers mono float32 frames, e.g. a device.Capture
type Source interface {
	Start(ctx context.Context) error
	Frames() <-chan []float32
	SampleRate() int
	Stop() error
}

// Config tunes the recording loop
type Config struct {
	// Calibration is discarded at the start so the VAD settles on room noise
	Calibration time.Duration
	// EndSilence ends the utterance after this much trailing silence
	EndSilence time.Duration
	// MinSpeech is the minimum speech before silence may end the utterance
	MinSpeech time.Duration
	// PreRoll is kept from before the first speech frame
	PreRoll time.Duration
}

// DefaultConfig returns the default recording configuration
func DefaultConfig() Config {
	return Config{
		Calibration: 500 * time.Millisecond,
		EndSilence:  800 * time.Millisecond,
		MinSpeech:   200 * time.Millisecond,
		PreRoll:     300 * time.Millisecond,
	}
}

// Recorder records one utterance per call. The microphone is a single
// device, so concurrent Record calls wait for each other.
type Recorder struct {
	sem       chan struct{}
	newSource func() Source
	detector  vad.Detector
	cfg       Config
	logger    *logging.Logger
}

// New creates a recorder. newSource is called once per recording.
func New(newSource func() Source, detector vad.Detector, cfg Config) *Recorder {
	return &Recorder{
		sem:       make(chan struct{}, 1),
		newSource: newSource,
		detector:  detector,
		cfg:       cfg,
		logger:    logging.New("recorder"),
	}
}

// Record waits up to listenTimeout for speech to start, then records until
// trailing silence or phraseLimit of speech. A zero limit disables it.
// Both limits are also enforced on the wall clock, so a device that stops
// delivering frames cannot block the call. The result is a 16-bit mono WAV clip.
func (r *Recorder) Record(ctx context.Context, listenTimeout, phraseLimit time.Duration) (audio.Clip, error) {
	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
	case <-ctx.Done():
		return audio.Clip{}, ctx.Err()
	}

	src := r.newSource()
	if err := src.Start(ctx); err != nil {
		return audio.Clip{}, fmt.Errorf("failed to start capture: %w", err)
	}
	defer func() {
		if err := src.Stop(); err != nil {
			r.logger.Warn("Failed to stop capture", "error", err)
		}
	}()

	rate := src.SampleRate()
	tracker := vad.NewSpeechTracker(vad.Config{
		SampleRate: rate,
		EndSilence: r.cfg.EndSilence,
		MinSpeech:  r.cfg.MinSpeech,
	})
	preRoll := audio.NewRingBuffer(int(float64(rate) * r.cfg.PreRoll.Seconds()))
	buf := audio.NewAudioBuffer(rate, phraseLimit+r.cfg.PreRoll)

	finish := func(reason string) (audio.Clip, error) {
		if phraseLimit > 0 {
			buf.TrimToDuration(phraseLimit + r.cfg.PreRoll)
		}
		r.logger.Debug("Recording finished",
			"reason", reason,
			"duration", buf.Duration().String())
		return buf.Clip(), nil
	}

	// Wanduhr-Limits, falls das Gerät keine Frames mehr liefert
	var listenC, capC <-chan time.Time
	if listenTimeout > 0 {
		listenTimer := time.NewTimer(r.cfg.Calibration + listenTimeout)
		defer listenTimer.Stop()
		listenC = listenTimer.C
	}
	var capTimer *time.Timer
	defer func() {
		if capTimer != nil {
			capTimer.Stop()
		}
	}()
	startCap := func() {
		listenC = nil
		if phraseLimit > 0 && capTimer == nil {
			capTimer = time.NewTimer(phraseLimit + r.cfg.PreRoll + r.cfg.EndSilence)
			capC = capTimer.C
		}
	}

	var calibrated, waited time.Duration
	frames := src.Frames()
	for {
		select {
		case <-ctx.Done():
			return audio.Clip{}, ctx.Err()

		case <-listenC:
			r.logger.Warn("No frames or speech before listen deadline", "listen_timeout", listenTimeout.String())
			return audio.Clip{}, ErrNoSpeech

		case <-capC:
			r.logger.Warn("Recording deadline reached", "phrase_limit", phraseLimit.String())
			return finish("deadline")

		case frame, ok := <-frames:
			if !ok {
				if tracker.State().Started {
					return finish("stream closed")
				}
				return audio.Clip{}, fmt.Errorf("capture stream ended before speech")
			}
			d := audio.FrameDuration(len(frame), rate)

			if calibrated < r.cfg.Calibration {
				calibrated += d
				continue
			}

			speech, err := r.detector.IsSpeech(frame)
			if err != nil {
				return audio.Clip{}, err
			}
			st := tracker.Update(speech, d)

			if !st.Started {
				waited += d
				preRoll.Write(frame)
				if listenTimeout > 0 && waited >= listenTimeout {
					r.logger.Debug("Listen timeout", "waited", waited.String())
					return audio.Clip{}, ErrNoSpeech
				}
				continue
			}

			if buf.Len() == 0 {
				startCap()
				buf.Append(preRoll.Drain())
			}
			buf.Append(frame)

			if tracker.Done() {
				return finish("silence")
			}
			if phraseLimit > 0 && st.Speech >= phraseLimit {
				return finish("phrase limit")
			}
		}
	}
}
