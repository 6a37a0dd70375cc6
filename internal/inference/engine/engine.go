package engine

import "context"

// Chat roles understood by OpenAI-compatible upstreams.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
}

// Engine performs exactly one upstream completion per call. Retrying is the caller's concern.
// A reachable upstream that produced no text yields ("", nil).
type Engine interface {
	GenerateText(ctx context.Context, model string, messages []Message, opts GenerateOptions) (string, error)
}
