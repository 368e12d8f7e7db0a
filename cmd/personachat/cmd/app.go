package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/msto63/personachat/internal/archive"
	"github.com/msto63/personachat/internal/llm"
	"github.com/msto63/personachat/internal/orchestrator"
	"github.com/msto63/personachat/internal/persona"
	"github.com/msto63/personachat/internal/session"
	"github.com/msto63/personachat/internal/voice/device"
	"github.com/msto63/personachat/internal/voice/recorder"
	"github.com/msto63/personachat/internal/voice/stt"
	"github.com/msto63/personachat/internal/voice/tts"
	"github.com/msto63/personachat/internal/voice/vad"
	"github.com/msto63/personachat/pkg/core/cache"
	"github.com/msto63/personachat/pkg/core/config"
	"github.com/msto63/personachat/pkg/core/health"
	"github.com/msto63/personachat/pkg/core/logging"
)

// appOptions override config values from command line flags
type appOptions struct {
	NoTTS bool
	Model string
}

// app bundles everything the serve and chat commands share
type app struct {
	cfg          *config.Config
	persona      *persona.Persona
	catalog      *llm.Catalog
	orchestrator *orchestrator.Orchestrator
	archive      *archive.Store // nil wenn deaktiviert
	checks       []health.Checker
	logger       *logging.Logger
}

// buildApp wires providers, voice components and the archive from cfg
func buildApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	logger := logging.New("personachat")

	p, err := persona.Load(cfg.Persona.File)
	if err != nil {
		return nil, fmt.Errorf("persona: %w", err)
	}
	logger.Info("Persona loaded", "id", p.ID, "name", p.Name, "source", p.SourceFile)

	router := llm.NewRouter()
	router.Register(llm.ProviderGroq, llm.NewGroq(llm.GroqConfig{
		BaseURL: cfg.LLM.Groq.BaseURL,
		APIKey:  cfg.LLM.Groq.APIKey,
	}))

	var geminiModels []string
	if cfg.LLM.Gemini.APIKey != "" {
		gemini, err := llm.NewGemini(ctx, llm.GeminiConfig{
			APIKey:  cfg.LLM.Gemini.APIKey,
			BaseURL: cfg.LLM.Gemini.BaseURL,
		})
		if err != nil {
			logger.Warn("Gemini disabled", "error", err)
		} else {
			router.Register(llm.ProviderGemini, gemini)
			geminiModels = cfg.LLM.Gemini.Models
			if len(geminiModels) == 0 {
				geminiModels = []string{"gemini-2.0-flash"}
			}
		}
	}

	groqModels := cfg.LLM.Groq.Models
	if len(groqModels) == 0 {
		groqModels = cfg.LLM.Models
	}
	defaultModel := cfg.LLM.DefaultModel
	if opts.Model != "" {
		defaultModel = opts.Model
	}
	catalog := llm.NewCatalog(groqModels, geminiModels, defaultModel)

	orchCfg := orchestrator.Config{
		GenerationTimeout:    cfg.LLM.Timeout.Duration,
		TranscriptionTimeout: cfg.STT.Timeout.Duration,
		SynthesisTimeout:     cfg.TTS.Timeout.Duration,
		ListenTimeout:        cfg.Audio.ListenTimeout.Duration,
		PhraseLimit:          cfg.Audio.PhraseLimit.Duration,
		Window: orchestrator.Window{
			MaxTurns:  cfg.Context.MaxTurns,
			MaxTokens: cfg.Context.MaxTokens,
		},
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Language:    cfg.STT.Language,
	}
	orch := orchestrator.New(orchCfg, p, router)

	a := &app{
		cfg:          cfg,
		persona:      p,
		catalog:      catalog,
		orchestrator: orch,
		logger:       logger,
	}
	groqURL := cfg.LLM.Groq.BaseURL
	if groqURL == "" {
		groqURL = llm.GroqBaseURL
	}
	a.checks = append(a.checks,
		health.ConfiguredCheck("generation", cfg.LLM.Groq.APIKey, "GROQ_API_KEY is not set"),
		health.HTTPCheck("groq_api", strings.TrimRight(groqURL, "/")+"/models", providerCheckTimeout),
	)

	// Transkription läuft ebenfalls über Groq
	if cfg.STT.APIKey != "" {
		orch.SetTranscriber(stt.NewGroq(stt.GroqConfig{
			BaseURL: cfg.STT.BaseURL,
			APIKey:  cfg.STT.APIKey,
			Model:   cfg.STT.Model,
		}))
	}

	if !opts.NoTTS {
		synth, err := tts.New(cfg.TTS)
		if err != nil {
			logger.Warn("Speech synthesis disabled", "engine", cfg.TTS.Engine, "error", err)
		} else if synth != nil {
			cached := tts.NewCached(synth, cache.Config{
				MaxItems: cfg.TTS.CacheSize,
				TTL:      cfg.TTS.CacheTTL.Duration,
			})
			orch.SetSynthesizer(cached)
			a.checks = append(a.checks, cached.HealthCheck("tts_cache"))
		}
		if cfg.TTS.Engine == tts.EnginePiper {
			binary := cfg.TTS.Piper.Binary
			if binary == "" {
				binary = "piper"
			}
			a.checks = append(a.checks, health.BinaryCheck("piper", binary, false))
		}
	}

	rec, err := newRecorder(cfg.Audio)
	if err != nil {
		logger.Warn("Microphone disabled", "error", err)
	} else {
		orch.SetRecorder(rec)
	}

	if cfg.Archive.Enabled {
		store, err := archive.Open(archive.Config{Path: cfg.Archive.Path})
		if err != nil {
			logger.Warn("Archive disabled", "path", cfg.Archive.Path, "error", err)
		} else {
			a.archive = store
			a.checks = append(a.checks, health.ErrorCheck("archive", store.Ping))
		}
	}

	return a, nil
}

// newRecorder builds a VAD-driven recorder on the default input device
func newRecorder(cfg config.AudioConfig) (*recorder.Recorder, error) {
	detector, err := vad.NewWebRTC(vad.Config{
		SampleRate: cfg.SampleRate,
		Mode:       cfg.VADMode,
		EndSilence: cfg.EndSilence.Duration,
		MinSpeech:  vad.DefaultConfig().MinSpeech,
	})
	if err != nil {
		return nil, err
	}

	captureCfg := device.CaptureConfig{
		SampleRate:      cfg.SampleRate,
		FramesPerBuffer: cfg.FramesPerBuffer,
		DeviceName:      cfg.InputDevice,
	}
	recCfg := recorder.DefaultConfig()
	recCfg.Calibration = cfg.Calibration.Duration
	recCfg.EndSilence = cfg.EndSilence.Duration

	return recorder.New(func() recorder.Source {
		return device.NewCapture(captureCfg)
	}, detector, recCfg), nil
}

// defaultSettings returns the initial settings of a new session
func (a *app) defaultSettings() session.Settings {
	return session.Settings{
		Model:     a.catalog.Default(),
		VoiceMode: a.cfg.Session.VoiceMode,
		Autoplay:  a.cfg.Session.Autoplay,
	}
}

// close releases the archive
func (a *app) close() {
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			a.logger.Warn("Archive close failed", "error", err)
		}
	}
}

// openArchive opens the archive for the history command
func openArchive(cfg *config.Config) (*archive.Store, error) {
	return archive.Open(archive.Config{Path: cfg.Archive.Path})
}

const (
	shutdownTimeout      = 10 * time.Second
	providerCheckTimeout = 5 * time.Second
)
