package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/yungbote/eduai-mentor/internal/inference/engine"
)

// Step is one scripted upstream outcome.
type Step struct {
	Text string
	Err  error
}

// Engine replays scripted steps in order. Once the script is exhausted it echoes the
// last user message, which keeps local runs usable without an upstream.
type Engine struct {
	mu    sync.Mutex
	steps []Step
	calls []Call
}

// Call records what the engine was asked.
type Call struct {
	Model    string
	Messages []engine.Message
	Options  engine.GenerateOptions
}

func New(steps ...Step) *Engine {
	return &Engine{steps: append([]Step(nil), steps...)}
}

func (e *Engine) GenerateText(ctx context.Context, model string, messages []engine.Message, opts engine.GenerateOptions) (string, error) {
	e.mu.Lock()
	e.calls = append(e.calls, Call{Model: model, Messages: append([]engine.Message(nil), messages...), Options: opts})
	var step *Step
	if len(e.steps) > 0 {
		s := e.steps[0]
		e.steps = e.steps[1:]
		step = &s
	}
	e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if step != nil {
		return step.Text, step.Err
	}

	var user string
	for i := len(messages) - 1; i >= 0; i-- {
		if strings.EqualFold(messages[i].Role, engine.RoleUser) {
			user = messages[i].Content
			break
		}
	}
	if strings.TrimSpace(user) == "" {
		return "mock: ok", nil
	}
	return fmt.Sprintf("mock: %s", user), nil
}

func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

func (e *Engine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}
