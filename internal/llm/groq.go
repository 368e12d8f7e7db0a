package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/msto63/personachat/pkg/core/logging"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint
const GroqBaseURL = "https://api.groq.com/openai/v1"

// GroqConfig holds Groq client settings
type GroqConfig struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// Groq generates replies through Groq's OpenAI-compatible chat API
type Groq struct {
	client *openai.Client
	logger *logging.Logger
}

// NewGroq creates a new Groq generator
func NewGroq(cfg GroqConfig) *Groq {
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = GroqBaseURL
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	return &Groq{
		client: openai.NewClientWithConfig(oc),
		logger: logging.New("groq-llm"),
	}
}

// Generate implements Generator
func (g *Groq) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.History {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Question,
	})

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("groq chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}

	g.logger.Debug("Generation complete",
		"model", req.Model,
		"history", len(req.History),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	return text, nil
}

// ListModels implements ModelLister
func (g *Groq) ListModels(ctx context.Context) ([]ModelInfo, error) {
	list, err := g.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list groq models: %w", err)
	}
	out := make([]ModelInfo, 0, len(list.Models))
	for _, m := range list.Models {
		out = append(out, ModelInfo{ID: m.ID, Provider: string(ProviderGroq), OwnedBy: m.OwnedBy})
	}
	return out, nil
}
