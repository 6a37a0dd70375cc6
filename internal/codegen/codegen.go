package codegen

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/yungbote/eduai-mentor/internal/config"
	"github.com/yungbote/eduai-mentor/internal/platform/logger"
)

type Language string

const (
	LanguageCPP    Language = "cpp"
	LanguagePython Language = "python"
)

// ParseLanguage maps client input onto a supported language; anything unrecognized is C++.
func ParseLanguage(raw string) Language {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "python", "py":
		return LanguagePython
	default:
		return LanguageCPP
	}
}

func (l Language) DisplayName() string {
	if l == LanguagePython {
		return "Python"
	}
	return "C++"
}

var ErrMissingCredential = errors.New("code generation credential not configured")

type Generator interface {
	Generate(ctx context.Context, prompt string, lang Language) (string, error)
}

type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	log         *logger.Logger
}

// NewOpenAIGenerator returns a generator even without a credential; Generate then fails with
// ErrMissingCredential so callers can render the same advice the endpoint always gave.
func NewOpenAIGenerator(cfg config.CodeGenConfig, baseLog *logger.Logger) *OpenAIGenerator {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	g := &OpenAIGenerator{
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout.Duration,
		log:         baseLog.With("service", "CodeGenerator"),
	}
	if g.maxTokens <= 0 {
		g.maxTokens = 800
	}
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		oc := openai.DefaultConfig(key)
		if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
			oc.BaseURL = base
		}
		g.client = openai.NewClientWithConfig(oc)
	}
	return g
}

func systemPrompt(lang Language) string {
	return fmt.Sprintf("You generate clean, well-commented %s code. Keep output inside one fenced code block only. No extra text.", lang.DisplayName())
}

func userPrompt(prompt string, lang Language) string {
	name := lang.DisplayName()
	return fmt.Sprintf("Task: %s\n\nReturn ONLY %s code. If language is %s, wrap it in proper triple backticks.", prompt, name, name)
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string, lang Language) (string, error) {
	if g.client == nil {
		return "", ErrMissingCredential
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(lang)},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(prompt, lang)},
		},
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		g.log.Warn("code generation call failed", "language", string(lang), "error", err)
		return "", fmt.Errorf("code generation call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return ExtractCode(resp.Choices[0].Message.Content), nil
}

var fenceRe = regexp.MustCompile("```[a-zA-Z0-9]*\\n([\\s\\S]*?)```")

// ExtractCode returns the body of the first fenced block, or the trimmed text when there is none.
func ExtractCode(text string) string {
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// CommentForError renders a generation failure as a source comment. The code endpoint
// reports failures in-band this way.
func CommentForError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrMissingCredential) {
		return "// Missing GROQ_API_KEY. Add it to the environment or config/mentor.yaml"
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("// Upstream error %d: %s", apiErr.HTTPStatusCode, oneLine(apiErr.Message))
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Sprintf("// Upstream error %d", reqErr.HTTPStatusCode)
	}
	return "// Code gen error: " + oneLine(err.Error())
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
