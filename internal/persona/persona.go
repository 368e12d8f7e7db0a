// ============================================================================
// PersonaChat - Persona-Sprachchat
// ============================================================================
//
// Package:     persona
// Description: YAML persona definitions with an embedded default
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package persona

import (
	"embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed personas/*.yaml
var builtin embed.FS

// DefaultFile is the built-in persona used when no file is configured
const DefaultFile = "personas/steve-jobs.yaml"

// questionPlaceholder is replaced by the user's question
const questionPlaceholder = "{question}"

// Persona describes the character the model plays and how the UI presents it
type Persona struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Initials string `yaml:"initials,omitempty"`

	// UI texts
	Title       string `yaml:"title,omitempty"`
	Placeholder string `yaml:"placeholder,omitempty"`

	// Language is the hint passed to transcription and synthesis
	Language string `yaml:"language,omitempty"`

	// Instructions is the fixed system prompt
	Instructions string `yaml:"instructions"`

	// QuestionTemplate wraps each new question, e.g. "Question:{question}"
	QuestionTemplate string `yaml:"question_template,omitempty"`

	// Internal tracking (not from YAML)
	SourceFile string    `yaml:"-"`
	LoadedAt   time.Time `yaml:"-"`
}

// Defaults fills optional fields
func (p *Persona) Defaults() {
	if p.Initials == "" {
		p.Initials = initials(p.Name)
	}
	if p.Title == "" {
		p.Title = "AI Persona Chatbot - " + p.Name
	}
	if p.Placeholder == "" {
		p.Placeholder = "Ask " + p.Name + " anything..."
	}
	if p.Language == "" {
		p.Language = "en"
	}
	if p.QuestionTemplate == "" {
		p.QuestionTemplate = "Question:" + questionPlaceholder
	}
}

// Validate checks required fields
func (p *Persona) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrMissingID
	}
	if strings.TrimSpace(p.Name) == "" {
		return ErrMissingName
	}
	if strings.TrimSpace(p.Instructions) == "" {
		return ErrMissingInstructions
	}
	return nil
}

// FormatQuestion renders the question through QuestionTemplate. A template
// without placeholder gets the question appended.
func (p *Persona) FormatQuestion(question string) string {
	tmpl := p.QuestionTemplate
	if tmpl == "" {
		return question
	}
	if !strings.Contains(tmpl, questionPlaceholder) {
		return tmpl + question
	}
	return strings.ReplaceAll(tmpl, questionPlaceholder, question)
}

// Parse decodes and validates a persona definition
func Parse(data []byte) (*Persona, error) {
	var p Persona
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.Defaults()
	p.LoadedAt = time.Now()
	return &p, nil
}

// Load reads a persona from path. An empty path loads the built-in persona.
func Load(path string) (*Persona, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read persona: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("persona %s: %w", path, err)
	}
	p.SourceFile = path
	return p, nil
}

// Default returns the built-in persona
func Default() (*Persona, error) {
	data, err := builtin.ReadFile(DefaultFile)
	if err != nil {
		return nil, err
	}
	p, err := Parse(data)
	if err != nil {
		return nil, err
	}
	p.SourceFile = "builtin:" + DefaultFile
	return p, nil
}

func initials(name string) string {
	var b strings.Builder
	for _, f := range strings.Fields(name) {
		r := []rune(f)
		b.WriteString(strings.ToUpper(string(r[0])))
		if b.Len() >= 2 {
			break
		}
	}
	return b.String()
}
