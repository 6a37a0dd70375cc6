package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/yungbote/eduai-mentor/internal/codegen"
	"github.com/yungbote/eduai-mentor/internal/inference/engine/mock"
	"github.com/yungbote/eduai-mentor/internal/mentor/orchestrator"
	"github.com/yungbote/eduai-mentor/internal/mentor/session"
)

type fixedCoder struct{}

func (fixedCoder) Generate(context.Context, string, codegen.Language) (string, error) {
	return "int main() {}", nil
}

func newChatController() *session.Controller {
	orch := orchestrator.New(mock.New(), orchestrator.Options{}, nil, nil)
	return session.NewController(session.NewMemoryStore(), orch, fixedCoder{}, nil, nil, nil, session.Options{})
}

func TestRunChatWalksPhases(t *testing.T) {
	in := strings.NewReader("what is recursion\n/explain I think it calls itself\n/code cpp factorial\n/reset\n/bogus\n/quit\nignored\n")
	var out bytes.Buffer

	if err := runChat(context.Background(), newChatController(), "t1", in, &out); err != nil {
		t.Fatalf("runChat: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"[Hint 40%] 5 points (Learner)",
		"[Answer 100%] 10 points (Bronze)",
		"```cpp\nint main() {}\n```",
		"dialogue cleared. 15 points (Bronze)",
		"unknown command /bogus",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRunChatEmptyStartIsSkipped(t *testing.T) {
	var out bytes.Buffer
	if err := runChat(context.Background(), newChatController(), "t2", strings.NewReader("/hint\n"), &out); err != nil {
		t.Fatalf("runChat: %v", err)
	}
	if !strings.Contains(out.String(), "say something first.") {
		t.Fatalf("out=%s", out.String())
	}
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strings.TrimSpace(out.String()) != Version {
		t.Fatalf("out=%q", out.String())
	}
}
