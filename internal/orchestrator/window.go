package orchestrator

import (
	"unicode/utf8"

	"github.com/msto63/personachat/internal/session"
)

// Window bounds the prior turns sent to the model. Zero means unlimited.
type Window struct {
	MaxTurns  int
	MaxTokens int
}

// DefaultWindow returns the default context window
func DefaultWindow() Window {
	return Window{MaxTurns: 40, MaxTokens: 6000}
}

// Apply returns the newest suffix of turns that fits both limits. The
// input slice is not modified.
func (w Window) Apply(turns []session.Turn) []session.Turn {
	start := len(turns)
	tokens := 0
	for i := len(turns) - 1; i >= 0; i-- {
		if w.MaxTurns > 0 && len(turns)-i > w.MaxTurns {
			break
		}
		t := EstimateTokens(turns[i].Content)
		if w.MaxTokens > 0 && tokens+t > w.MaxTokens {
			break
		}
		tokens += t
		start = i
	}
	return turns[start:]
}

// EstimateTokens approximates the token count (~4 characters per token)
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	if n < 4 {
		return 1
	}
	return n / 4
}
