// ============================================================================
// PersonaChat - Persona-Sprachchat
// ============================================================================
//
// Package:     orchestrator
// Description: Turn cycle: capture, transcribe, generate, synthesize
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/msto63/personachat/internal/llm"
	"github.com/msto63/personachat/internal/persona"
	"github.com/msto63/personachat/internal/session"
	"github.com/msto63/personachat/internal/voice/audio"
	"github.com/msto63/personachat/internal/voice/stt"
	"github.com/msto63/personachat/internal/voice/tts"
	coreerrors "github.com/msto63/personachat/pkg/core/errors"
	"github.com/msto63/personachat/pkg/core/logging"
)

// Recorder captures one utterance from the microphone. It returns
// audio.ErrNoSpeech if nobody starts speaking within listenTimeout.
type Recorder interface {
	Record(ctx context.Context, listenTimeout, phraseLimit time.Duration) (audio.Clip, error)
}

// Config für den Orchestrator
type Config struct {
	GenerationTimeout    time.Duration
	TranscriptionTimeout time.Duration
	SynthesisTimeout     time.Duration

	ListenTimeout time.Duration
	PhraseLimit   time.Duration
	// CaptureSlack covers device start, calibration and trailing silence
	CaptureSlack  time.Duration

	Window      Window
	Temperature float32
	MaxTokens   int

	// Language is used when the persona does not set one
	Language string
}

// DefaultConfig gibt die Standard-Konfiguration zurück
func DefaultConfig() Config {
	return Config{
		GenerationTimeout:    60 * time.Second,
		TranscriptionTimeout: 30 * time.Second,
		SynthesisTimeout:     30 * time.Second,
		ListenTimeout:        10 * time.Second,
		PhraseLimit:          15 * time.Second,
		CaptureSlack:         5 * time.Second,
		Window:               DefaultWindow(),
		Temperature:          0.7,
		MaxTokens:            512,
		Language:             "en",
	}
}

// Outcome is the result of a completed cycle
type Outcome struct {
	Question string
	Reply    string
	// Audio is true when a clip was stored as pending audio
	Audio bool
	// Warning is set when the reply succeeded but synthesis did not
	Warning  error
	Duration time.Duration
}

// Orchestrator runs turn cycles against a session. It holds no
// per-session state.
type Orchestrator struct {
	cfg         Config
	persona     *persona.Persona
	generator   llm.Generator
	transcriber stt.Transcriber
	synthesizer tts.Synthesizer
	recorder    Recorder
	logger      *logging.Logger
}

// New erstellt einen neuen Orchestrator
func New(cfg Config, p *persona.Persona, generator llm.Generator) *Orchestrator {
	def := DefaultConfig()
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = def.GenerationTimeout
	}
	if cfg.TranscriptionTimeout <= 0 {
		cfg.TranscriptionTimeout = def.TranscriptionTimeout
	}
	if cfg.SynthesisTimeout <= 0 {
		cfg.SynthesisTimeout = def.SynthesisTimeout
	}
	if cfg.ListenTimeout <= 0 {
		cfg.ListenTimeout = def.ListenTimeout
	}
	if cfg.PhraseLimit <= 0 {
		cfg.PhraseLimit = def.PhraseLimit
	}
	if cfg.CaptureSlack <= 0 {
		cfg.CaptureSlack = def.CaptureSlack
	}
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	return &Orchestrator{
		cfg:       cfg,
		persona:   p,
		generator: generator,
		logger:    logging.New("orchestrator"),
	}
}

// SetTranscriber setzt den Transkriptions-Dienst
func (o *Orchestrator) SetTranscriber(t stt.Transcriber) {
	o.transcriber = t
}

// SetSynthesizer setzt die Sprachausgabe; nil schaltet sie ab
func (o *Orchestrator) SetSynthesizer(s tts.Synthesizer) {
	o.synthesizer = s
}

// SetRecorder setzt das Mikrofon
func (o *Orchestrator) SetRecorder(r Recorder) {
	o.recorder = r
}

// CanSpeak reports whether replies can be synthesized
func (o *Orchestrator) CanSpeak() bool { return o.synthesizer != nil }

// CanTranscribe reports whether uploaded clips can be transcribed
func (o *Orchestrator) CanTranscribe() bool { return o.transcriber != nil }

// CanListen reports whether the server microphone can be used
func (o *Orchestrator) CanListen() bool { return o.transcriber != nil && o.recorder != nil }

// Persona returns the active persona
func (o *Orchestrator) Persona() *persona.Persona { return o.persona }

// HandleTextInput runs a cycle for typed text
func (o *Orchestrator) HandleTextInput(ctx context.Context, sess *session.Session, text string) (*Outcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationError(MsgEmptyInput)
	}
	return o.cycle(ctx, sess, session.PhaseAwaitingGeneration, func(context.Context) (string, error) {
		return text, nil
	})
}

// HandleVoiceInput records from the microphone, transcribes and runs a cycle
func (o *Orchestrator) HandleVoiceInput(ctx context.Context, sess *session.Session) (*Outcome, error) {
	if err := o.checkVoice(sess); err != nil {
		return nil, err
	}
	if o.recorder == nil {
		return nil, validationError(MsgVoiceUnavailable)
	}
	return o.cycle(ctx, sess, session.PhaseAwaitingCapture, func(ctx context.Context) (string, error) {
		cctx, cancel := context.WithTimeout(ctx, o.captureTimeout())
		clip, err := o.recorder.Record(cctx, o.cfg.ListenTimeout, o.cfg.PhraseLimit)
		cancel()
		if err != nil {
			if errors.Is(err, audio.ErrNoSpeech) || (errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil) {
				return "", coreerrors.Wrap(err, CodeCaptureTimeout, MsgCaptureTimeout)
			}
			return "", captureError(err)
		}
		sess.Phase.Advance(session.PhaseAwaitingTranscription)
		return o.transcribe(ctx, sess, clip)
	})
}

// captureTimeout bounds a whole recording, including device start and calibration
func (o *Orchestrator) captureTimeout() time.Duration {
	return o.cfg.ListenTimeout + o.cfg.PhraseLimit + o.cfg.CaptureSlack
}

// HandleVoiceClip transcribes an already recorded clip and runs a cycle
func (o *Orchestrator) HandleVoiceClip(ctx context.Context, sess *session.Session, clip audio.Clip) (*Outcome, error) {
	if err := o.checkVoice(sess); err != nil {
		return nil, err
	}
	if clip.Empty() {
		return nil, validationError(MsgEmptyClip)
	}
	return o.cycle(ctx, sess, session.PhaseAwaitingTranscription, func(ctx context.Context) (string, error) {
		return o.transcribe(ctx, sess, clip)
	})
}

// ClearHistory archives and resets the transcript while holding the
// single-flight guard, so no cycle can interleave with it. save may be nil
// and is skipped for an empty transcript. A save error is logged and
// returned, the transcript is reset either way.
func (o *Orchestrator) ClearHistory(ctx context.Context, sess *session.Session, save func(context.Context) error) error {
	if err := sess.Phase.Begin(session.PhaseClearing); err != nil {
		if errors.Is(err, session.ErrBusy) {
			return busyError(sess.ID)
		}
		return coreerrors.Wrap(err, coreerrors.CodeInternal, "could not clear history")
	}
	defer sess.Phase.Finish(nil)
	sess.Touch()

	var saveErr error
	if save != nil && sess.Store.Len() > 0 {
		if saveErr = save(ctx); saveErr != nil {
			o.logger.Warn("Archive before clear failed", "session", sess.ID, "error", saveErr)
		}
	}
	sess.Store.ResetTranscript()
	o.logger.Info("Chat history cleared", "session", sess.ID)
	return saveErr
}

// Replay synthesizes a past assistant turn again. The session is not
// modified and no cycle is started.
func (o *Orchestrator) Replay(ctx context.Context, sess *session.Session, index int) (audio.Clip, error) {
	turn, ok := sess.Store.Turn(index)
	if !ok || turn.Role != session.RoleAssistant {
		return audio.Clip{}, validationError(MsgReplayInvalid).WithDetail("index", index)
	}
	if o.synthesizer == nil {
		return audio.Clip{}, validationError(MsgSpeechUnavailable)
	}
	return o.synthesize(ctx, turn.Content)
}

func (o *Orchestrator) checkVoice(sess *session.Session) error {
	if !sess.Store.Settings().VoiceMode {
		return validationError(MsgVoiceDisabled)
	}
	if o.transcriber == nil {
		return validationError(MsgVoiceUnavailable)
	}
	return nil
}

// cycle holds the single-flight guard from obtaining the question until
// the reply is stored
func (o *Orchestrator) cycle(ctx context.Context, sess *session.Session, first session.Phase,
	obtain func(context.Context) (string, error)) (*Outcome, error) {

	if err := sess.Phase.Begin(first); err != nil {
		if errors.Is(err, session.ErrBusy) {
			return nil, busyError(sess.ID)
		}
		return nil, coreerrors.Wrap(err, coreerrors.CodeInternal, "could not start request")
	}
	sess.Touch()
	start := time.Now()

	var warning error
	defer func() { sess.Phase.Finish(warning) }()

	question, err := obtain(ctx)
	if err != nil {
		o.logger.Warn("Cycle aborted before generation", "session", sess.ID, "error", err)
		return nil, err
	}

	out, err := o.converse(ctx, sess, question)
	if err != nil {
		return nil, err
	}
	warning = out.Warning
	out.Duration = time.Since(start)

	o.logger.Info("Cycle complete",
		"session", sess.ID,
		"turns", sess.Store.Len(),
		"audio", out.Audio,
		"duration", out.Duration)
	return out, nil
}

func (o *Orchestrator) transcribe(ctx context.Context, sess *session.Session, clip audio.Clip) (string, error) {
	tctx, cancel := context.WithTimeout(ctx, o.cfg.TranscriptionTimeout)
	defer cancel()

	res, err := o.transcriber.Transcribe(tctx, clip, o.language())
	if err != nil {
		o.logger.Error("Transcription failed", "session", sess.ID, "error", err)
		return "", coreerrors.Wrap(err, CodeTranscriptionFailed, MsgTranscriptionFailed)
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		return "", validationError(MsgNoTranscript)
	}
	sess.Phase.Advance(session.PhaseAwaitingGeneration)
	return text, nil
}

func (o *Orchestrator) converse(ctx context.Context, sess *session.Session, question string) (*Outcome, error) {
	settings := sess.Store.Settings()
	history := o.cfg.Window.Apply(sess.Store.Transcript())

	// Neuer Zyklus: alte Audiodaten verwerfen
	sess.Store.SetPendingAudio(nil)
	sess.Store.AppendTurn(session.RoleUser, question)

	req := llm.Request{
		Model:       settings.Model,
		History:     toMessages(history),
		Question:    question,
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
	}
	if o.persona != nil {
		req.System = o.persona.Instructions
		req.Question = o.persona.FormatQuestion(question)
	}

	gctx, cancel := context.WithTimeout(ctx, o.cfg.GenerationTimeout)
	reply, err := o.generator.Generate(gctx, req)
	cancel()
	if err != nil {
		o.logger.Error("Generation failed", "session", sess.ID, "model", settings.Model, "error", err)
		return nil, coreerrors.Wrap(err, CodeGenerationFailed, MsgGenerationFailed).WithDetail("model", settings.Model)
	}
	sess.Store.AppendTurn(session.RoleAssistant, reply)

	out := &Outcome{Question: question, Reply: reply}
	if !settings.Autoplay || o.synthesizer == nil {
		return out, nil
	}

	sess.Phase.Advance(session.PhaseAwaitingSynthesis)
	clip, err := o.synthesize(ctx, reply)
	if err != nil {
		o.logger.Warn("Synthesis failed, reply kept without audio", "session", sess.ID, "error", err)
		out.Warning = err
		return out, nil
	}
	sess.Store.SetPendingAudio(&clip)
	out.Audio = true
	return out, nil
}

func (o *Orchestrator) synthesize(ctx context.Context, text string) (audio.Clip, error) {
	sctx, cancel := context.WithTimeout(ctx, o.cfg.SynthesisTimeout)
	defer cancel()

	clip, err := o.synthesizer.Synthesize(sctx, text, o.language())
	if err != nil {
		return audio.Clip{}, coreerrors.Wrap(err, CodeSynthesisFailed, MsgSynthesisFailed)
	}
	if clip.Empty() {
		return audio.Clip{}, coreerrors.New(CodeSynthesisFailed, MsgSynthesisFailed)
	}
	return clip, nil
}

func (o *Orchestrator) language() string {
	if o.persona != nil && o.persona.Language != "" {
		return o.persona.Language
	}
	return o.cfg.Language
}

func toMessages(turns []session.Turn) []llm.Message {
	msgs := make([]llm.Message, len(turns))
	for i, t := range turns {
		msgs[i] = llm.Message{Role: string(t.Role), Content: t.Content}
	}
	return msgs
}
