// ============================================================================
// PersonaChat - Persona-Sprachchat
// ============================================================================
//
// Package:     llm
// Description: Generation backends (Groq, Gemini) behind one interface
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package llm

import (
	"context"
	"errors"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned when the provider answered without text
var ErrEmptyResponse = errors.New("model returned an empty response")

// Message is one prior turn passed as context
type Message struct {
	Role    string
	Content string
}

// Request is a single generation call. History is sent verbatim and in
// order, followed by Question as the final user message.
type Request struct {
	Model       string
	System      string
	History     []Message
	Question    string
	Temperature float32
	MaxTokens   int
}

// Generator produces the assistant reply for a request
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ModelInfo describes a selectable model
type ModelInfo struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	OwnedBy  string `json:"owned_by,omitempty"`
}

// ModelLister queries a provider for its models
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}
