package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the complete application configuration
type Config struct {
	General GeneralConfig `toml:"general"`
	Server  ServerConfig  `toml:"server"`
	Persona PersonaConfig `toml:"persona"`
	LLM     LLMConfig     `toml:"llm"`
	Context ContextConfig `toml:"context"`
	STT     STTConfig     `toml:"stt"`
	TTS     TTSConfig     `toml:"tts"`
	Audio   AudioConfig   `toml:"audio"`
	Session SessionConfig `toml:"session"`
	Archive ArchiveConfig `toml:"archive"`
}

// GeneralConfig holds general application settings
type GeneralConfig struct {
	Name        string `toml:"name"`
	Environment string `toml:"environment"`
	DataDir     string `toml:"data_dir"`
	LogLevel    string `toml:"log_level"`
	LogFormat   string `toml:"log_format"`
}

// ServerConfig holds the web UI server settings
type ServerConfig struct {
	Host             string   `toml:"host"`
	Port             int      `toml:"port"`
	ReadTimeout      Duration `toml:"read_timeout"`
	WriteTimeout     Duration `toml:"write_timeout"`
	SessionIdleLimit Duration `toml:"session_idle_limit"`
	EvictionInterval Duration `toml:"eviction_interval"`
	SecureCookies    bool     `toml:"secure_cookies"`
}

// PersonaConfig selects the persona definition
type PersonaConfig struct {
	// File is a YAML persona definition; empty uses the built-in persona
	File string `toml:"file"`
}

// LLMConfig holds generation settings
type LLMConfig struct {
	DefaultModel string         `toml:"default_model"`
	Models       []string       `toml:"models"`
	Temperature  float32        `toml:"temperature"`
	MaxTokens    int            `toml:"max_tokens"`
	Timeout      Duration       `toml:"timeout"`
	Groq         ProviderConfig `toml:"groq"`
	Gemini       ProviderConfig `toml:"gemini"`
}

// ProviderConfig holds a single provider's configuration
type ProviderConfig struct {
	Enabled bool     `toml:"enabled"`
	BaseURL string   `toml:"base_url"`
	APIKey  string   `toml:"api_key"`
	Models  []string `toml:"models"`
}

// ContextConfig bounds the conversational context sent to the model
type ContextConfig struct {
	MaxTurns  int `toml:"max_turns"`
	MaxTokens int `toml:"max_tokens"`
}

// STTConfig holds transcription settings
type STTConfig struct {
	Model    string   `toml:"model"`
	Language string   `toml:"language"`
	BaseURL  string   `toml:"base_url"`
	APIKey   string   `toml:"api_key"`
	Timeout  Duration `toml:"timeout"`
}

// TTSConfig holds synthesis settings
type TTSConfig struct {
	Engine     string           `toml:"engine"` // gtts, elevenlabs, piper, none
	Language   string           `toml:"language"`
	Timeout    Duration         `toml:"timeout"`
	CacheSize  int              `toml:"cache_size"` // synthesized clips kept for replay
	CacheTTL   Duration         `toml:"cache_ttl"`
	GTTS       GTTSConfig       `toml:"gtts"`
	ElevenLabs ElevenLabsConfig `toml:"elevenlabs"`
	Piper      PiperConfig      `toml:"piper"`
}

// GTTSConfig holds Google Translate TTS settings
type GTTSConfig struct {
	BaseURL string `toml:"base_url"`
	Slow    bool   `toml:"slow"`
}

// ElevenLabsConfig holds ElevenLabs settings
type ElevenLabsConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	VoiceID string `toml:"voice_id"`
	ModelID string `toml:"model_id"`
}

// PiperConfig holds settings for the local Piper binary
type PiperConfig struct {
	Binary     string `toml:"binary"`
	Model      string `toml:"model"`
	SampleRate int    `toml:"sample_rate"`
}

// AudioConfig holds microphone capture settings
type AudioConfig struct {
	InputDevice     string   `toml:"input_device"`
	SampleRate      int      `toml:"sample_rate"`
	FramesPerBuffer int      `toml:"frames_per_buffer"`
	VADMode         int      `toml:"vad_mode"`
	ListenTimeout   Duration `toml:"listen_timeout"`
	PhraseLimit     Duration `toml:"phrase_limit"`
	EndSilence      Duration `toml:"end_silence"`
	Calibration     Duration `toml:"calibration"`
}

// SessionConfig holds the initial per-session toggles
type SessionConfig struct {
	VoiceMode bool `toml:"voice_mode"`
	Autoplay  bool `toml:"autoplay"`
}

// ArchiveConfig holds settings for the conversation archive
type ArchiveConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Duration wraps time.Duration for TOML parsing
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText formats the duration as a string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns a configuration with all defaults applied
func Default() *Config {
	cfg := &Config{
		Session: SessionConfig{VoiceMode: true, Autoplay: true},
	}
	cfg.applyDefaults()
	cfg.expandEnvVars()
	return cfg
}

// Load loads configuration from a TOML file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Toggles default to on unless the file says otherwise
	cfg := Config{
		Session: SessionConfig{VoiceMode: true, Autoplay: true},
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.expandEnvVars()

	return &cfg, nil
}

// LoadFromEnv loads configuration from PERSONACHAT_CONFIG or the default
// locations. Without any config file the defaults are returned.
func LoadFromEnv() (*Config, error) {
	if path := os.Getenv("PERSONACHAT_CONFIG"); path != "" {
		return Load(path)
	}

	home, _ := os.UserHomeDir()
	defaultPaths := []string{
		"./configs/config.toml",
		"./config.toml",
		filepath.Join(home, ".config", "personachat", "config.toml"),
	}
	for _, p := range defaultPaths {
		if _, err := os.Stat(p); err == nil {
			return Load(p)
		}
	}

	return Default(), nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// General
	if c.General.Name == "" {
		c.General.Name = "PersonaChat"
	}
	if c.General.Environment == "" {
		c.General.Environment = "development"
	}
	if c.General.DataDir == "" {
		c.General.DataDir = "./data"
	}
	if c.General.LogLevel == "" {
		c.General.LogLevel = "info"
	}
	if c.General.LogFormat == "" {
		c.General.LogFormat = "text"
	}

	// Server
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8501
	}
	if c.Server.ReadTimeout.Duration == 0 {
		c.Server.ReadTimeout.Duration = 30 * time.Second
	}
	if c.Server.WriteTimeout.Duration == 0 {
		c.Server.WriteTimeout.Duration = 150 * time.Second
	}
	if c.Server.SessionIdleLimit.Duration == 0 {
		c.Server.SessionIdleLimit.Duration = 2 * time.Hour
	}
	if c.Server.EvictionInterval.Duration == 0 {
		c.Server.EvictionInterval.Duration = 5 * time.Minute
	}

	// LLM
	if c.LLM.DefaultModel == "" {
		c.LLM.DefaultModel = "llama-3.1-8b-instant"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 512
	}
	if c.LLM.Timeout.Duration == 0 {
		c.LLM.Timeout.Duration = 60 * time.Second
	}
	if c.LLM.Groq.BaseURL == "" {
		c.LLM.Groq.BaseURL = "https://api.groq.com/openai/v1"
	}
	if c.LLM.Groq.APIKey == "" {
		c.LLM.Groq.APIKey = "${GROQ_API_KEY}"
	}
	if c.LLM.Gemini.APIKey == "" {
		c.LLM.Gemini.APIKey = "${GEMINI_API_KEY}"
	}

	// Context window
	if c.Context.MaxTurns == 0 {
		c.Context.MaxTurns = 40
	}
	if c.Context.MaxTokens == 0 {
		c.Context.MaxTokens = 6000
	}

	// STT
	if c.STT.Model == "" {
		c.STT.Model = "whisper-large-v3-turbo"
	}
	if c.STT.Language == "" {
		c.STT.Language = "en"
	}
	if c.STT.BaseURL == "" {
		c.STT.BaseURL = c.LLM.Groq.BaseURL
	}
	if c.STT.APIKey == "" {
		c.STT.APIKey = c.LLM.Groq.APIKey
	}
	if c.STT.Timeout.Duration == 0 {
		c.STT.Timeout.Duration = 30 * time.Second
	}

	// TTS
	if c.TTS.Engine == "" {
		c.TTS.Engine = "gtts"
	}
	if c.TTS.Language == "" {
		c.TTS.Language = "en"
	}
	if c.TTS.Timeout.Duration == 0 {
		c.TTS.Timeout.Duration = 30 * time.Second
	}
	if c.TTS.CacheSize == 0 {
		c.TTS.CacheSize = 128
	}
	if c.TTS.CacheTTL.Duration == 0 {
		c.TTS.CacheTTL.Duration = 30 * time.Minute
	}
	if c.TTS.GTTS.BaseURL == "" {
		c.TTS.GTTS.BaseURL = "https://translate.google.com"
	}
	if c.TTS.ElevenLabs.BaseURL == "" {
		c.TTS.ElevenLabs.BaseURL = "https://api.elevenlabs.io/v1"
	}
	if c.TTS.ElevenLabs.APIKey == "" {
		c.TTS.ElevenLabs.APIKey = "${ELEVENLABS_API_KEY}"
	}
	if c.TTS.ElevenLabs.ModelID == "" {
		c.TTS.ElevenLabs.ModelID = "eleven_turbo_v2_5"
	}
	if c.TTS.Piper.SampleRate == 0 {
		c.TTS.Piper.SampleRate = 22050
	}

	// Audio
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.FramesPerBuffer == 0 {
		c.Audio.FramesPerBuffer = 480
	}
	if c.Audio.VADMode == 0 {
		c.Audio.VADMode = 2
	}
	if c.Audio.ListenTimeout.Duration == 0 {
		c.Audio.ListenTimeout.Duration = 10 * time.Second
	}
	if c.Audio.PhraseLimit.Duration == 0 {
		c.Audio.PhraseLimit.Duration = 15 * time.Second
	}
	if c.Audio.EndSilence.Duration == 0 {
		c.Audio.EndSilence.Duration = 800 * time.Millisecond
	}
	if c.Audio.Calibration.Duration == 0 {
		c.Audio.Calibration.Duration = 500 * time.Millisecond
	}

	// Archive
	if c.Archive.Path == "" {
		c.Archive.Path = filepath.Join(c.General.DataDir, "archive.db")
	}
}

// expandEnvVars expands environment variables in configuration values
func (c *Config) expandEnvVars() {
	c.LLM.Groq.APIKey = os.ExpandEnv(c.LLM.Groq.APIKey)
	c.LLM.Gemini.APIKey = os.ExpandEnv(c.LLM.Gemini.APIKey)
	c.STT.APIKey = os.ExpandEnv(c.STT.APIKey)
	c.TTS.ElevenLabs.APIKey = os.ExpandEnv(c.TTS.ElevenLabs.APIKey)
	c.General.DataDir = os.ExpandEnv(c.General.DataDir)
	c.Archive.Path = os.ExpandEnv(c.Archive.Path)
	c.Persona.File = os.ExpandEnv(c.Persona.File)
	c.TTS.Piper.Binary = os.ExpandEnv(c.TTS.Piper.Binary)
	c.TTS.Piper.Model = os.ExpandEnv(c.TTS.Piper.Model)
}

// Address returns the web server listen address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
