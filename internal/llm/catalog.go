package llm

import "strings"

// DefaultModel is preselected for new sessions
const DefaultModel = "llama-3.1-8b-instant"

// GroqModels are the chat models offered on Groq
var GroqModels = []string{
	"llama-3.1-8b-instant",
	"llama-3.3-70b-versatile",
	"openai/gpt-oss-safeguard-20b",
	"moonshotai/kimi-k2-instruct-0905",
	"qwen/qwen3-32b",
	"groq/compound",
	"groq/compound-mini",
	"meta-llama/llama-4-maverick-17b-128e-instruct",
	"meta-llama/llama-4-scout-17b-16e-instruct",
	"meta-llama/llama-guard-4-12b",
	"meta-llama/llama-prompt-guard-2-22m",
	"meta-llama/llama-prompt-guard-2-86m",
}

// Catalog is the ordered list of models a user may select
type Catalog struct {
	models       []ModelInfo
	defaultModel string
}

// NewCatalog builds a catalog. Empty groq uses GroqModels. Gemini models
// are listed after the Groq ones. defaultModel falls back to the first
// entry when it is not part of the catalog.
func NewCatalog(groq, gemini []string, defaultModel string) *Catalog {
	if len(groq) == 0 {
		groq = GroqModels
	}
	c := &Catalog{}
	seen := make(map[string]bool)
	add := func(id string, p ProviderType) {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		c.models = append(c.models, ModelInfo{ID: id, Provider: string(p)})
	}
	for _, id := range groq {
		add(id, ProviderGroq)
	}
	for _, id := range gemini {
		add(id, ProviderGemini)
	}

	c.defaultModel = defaultModel
	if !c.Contains(defaultModel) && len(c.models) > 0 {
		c.defaultModel = c.models[0].ID
	}
	return c
}

// Models returns the catalog entries in display order
func (c *Catalog) Models() []ModelInfo {
	out := make([]ModelInfo, len(c.models))
	copy(out, c.models)
	return out
}

// IDs returns the model identifiers in display order
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.models))
	for i, m := range c.models {
		ids[i] = m.ID
	}
	return ids
}

// Contains reports whether id is selectable
func (c *Catalog) Contains(id string) bool {
	for _, m := range c.models {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Provider returns the provider serving id
func (c *Catalog) Provider(id string) (ProviderType, bool) {
	for _, m := range c.models {
		if m.ID == id {
			return ProviderType(m.Provider), true
		}
	}
	return "", false
}

// Default returns the default model
func (c *Catalog) Default() string {
	return c.defaultModel
}
