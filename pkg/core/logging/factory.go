// ============================================================================
// PersonaChat - Persona-Sprachchat
// ============================================================================
//
// Package:     logging
// Description: Factory functions for creating loggers
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	defaultMu  sync.RWMutex
	defaultCfg = DefaultLoggerConfig("")
)

// LoggerConfig holds configuration for creating loggers
type LoggerConfig struct {
	// Service name, attached to every record as "logger"
	ServiceName string

	// Log level (debug, info, warn, error)
	Level string

	// Output format: "json" or "text" (default: text)
	Format string

	// Output writer (default: stderr)
	Output io.Writer
}

// DefaultLoggerConfig returns a default configuration
func DefaultLoggerConfig(serviceName string) LoggerConfig {
	return LoggerConfig{
		ServiceName: serviceName,
		Level:       "info",
		Format:      "text",
	}
}

// SetDefault sets level, format and output used by loggers created afterwards via New.
// ServiceName in cfg is ignored.
func SetDefault(cfg LoggerConfig) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if cfg.Level != "" {
		defaultCfg.Level = cfg.Level
	}
	if cfg.Format != "" {
		defaultCfg.Format = cfg.Format
	}
	if cfg.Output != nil {
		defaultCfg.Output = cfg.Output
	}
}

// NewLogger creates a slog logger from the configuration
func NewLogger(cfg LoggerConfig) *slog.Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level).slogLevel()}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	logger := slog.New(handler)
	if cfg.ServiceName != "" {
		logger = logger.With("logger", cfg.ServiceName)
	}
	return logger
}

// Logger is a named logger with key/value logging methods
type Logger struct {
	*slog.Logger
	name string
}

// New creates a named logger using the process defaults
func New(name string) *Logger {
	defaultMu.RLock()
	cfg := defaultCfg
	defaultMu.RUnlock()

	cfg.ServiceName = name
	return newWithConfig(cfg)
}

func newWithConfig(cfg LoggerConfig) *Logger {
	return &Logger{
		Logger: NewLogger(cfg),
		name:   cfg.ServiceName,
	}
}

// Name returns the logger name
func (l *Logger) Name() string {
	return l.name
}

// With returns a logger that adds the given key-value pairs to every record
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{
		Logger: l.Logger.With(toArgs(keysAndValues...)...),
		name:   l.name,
	}
}

// Debug logs a debug message with key-value pairs
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.Logger.Debug(msg, toArgs(keysAndValues...)...)
}

// Info logs an info message with key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.Logger.Info(msg, toArgs(keysAndValues...)...)
}

// Warn logs a warning message with key-value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.Logger.Warn(msg, toArgs(keysAndValues...)...)
}

// Error logs an error message with key-value pairs
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.Logger.Error(msg, toArgs(keysAndValues...)...)
}

// toArgs drops pairs with non-string keys and a trailing orphan value
func toArgs(keysAndValues ...interface{}) []any {
	if len(keysAndValues) == 0 {
		return nil
	}

	args := make([]any, 0, len(keysAndValues))
	for i := 0; i < len(keysAndValues)-1; i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		args = append(args, key, keysAndValues[i+1])
	}
	return args
}
