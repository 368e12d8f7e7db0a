package llm

import (
	"context"
	"fmt"
	"strings"
)

// ProviderType represents the type of provider
type ProviderType string

const (
	ProviderGroq   ProviderType = "groq"
	ProviderGemini ProviderType = "gemini"
)

// ParseProviderModel splits "gemini:gemini-2.0-flash" into provider and
// model. Bare "gemini-*" names go to Gemini, everything else to Groq.
func ParseProviderModel(modelStr string) (ProviderType, string) {
	if i := strings.IndexByte(modelStr, ':'); i > 0 {
		switch modelStr[:i] {
		case "groq":
			return ProviderGroq, modelStr[i+1:]
		case "gemini":
			return ProviderGemini, modelStr[i+1:]
		}
	}
	if strings.HasPrefix(modelStr, "gemini-") {
		return ProviderGemini, modelStr
	}
	return ProviderGroq, modelStr
}

// Router dispatches requests to the generator serving the model
type Router struct {
	providers map[ProviderType]Generator
}

// NewRouter creates an empty router
func NewRouter() *Router {
	return &Router{providers: make(map[ProviderType]Generator)}
}

// Register adds a generator for a provider
func (r *Router) Register(p ProviderType, g Generator) {
	r.providers[p] = g
}

// Has reports whether a provider is registered
func (r *Router) Has(p ProviderType) bool {
	_, ok := r.providers[p]
	return ok
}

// Generate implements Generator
func (r *Router) Generate(ctx context.Context, req Request) (string, error) {
	p, model := ParseProviderModel(req.Model)
	g, ok := r.providers[p]
	if !ok {
		return "", fmt.Errorf("no %s provider configured for model %q", p, req.Model)
	}
	req.Model = model
	return g.Generate(ctx, req)
}
