package session

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/eduai-mentor/internal/codegen"
	"github.com/yungbote/eduai-mentor/internal/domain/mentor"
	"github.com/yungbote/eduai-mentor/internal/inference/engine/mock"
	"github.com/yungbote/eduai-mentor/internal/mentor/orchestrator"
	"github.com/yungbote/eduai-mentor/internal/transcript"
)

type fakeCoder struct {
	code    string
	err     error
	prompts []string
}

func (f *fakeCoder) Generate(_ context.Context, prompt string, _ codegen.Language) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.code, f.err
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []transcript.Event
	accept bool
}

func (r *recordingEmitter) Emit(events ...transcript.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return r.accept
}

type harness struct {
	ctrl  *Controller
	store *MemoryStore
	eng   *mock.Engine
	coder *fakeCoder
	sink  *recordingEmitter
}

func newHarness(t *testing.T, credential bool, steps ...mock.Step) *harness {
	t.Helper()
	eng := mock.New(steps...)
	orch := orchestrator.New(eng, orchestrator.Options{
		Model: "m",
		Retry: orchestrator.RetryPolicy{MaxAttempts: 2},
		Sleep: func(context.Context, time.Duration) error { return nil },
	}, nil, nil)
	h := &harness{
		store: NewMemoryStore(),
		eng:   eng,
		coder: &fakeCoder{code: "print(1)"},
		sink:  &recordingEmitter{accept: true},
	}
	h.ctrl = NewController(h.store, orch, h.coder, h.sink, nil, nil, Options{
		HistoryWindow:     10,
		CredentialPresent: credential,
		PromptMaxBytes:    2000,
	})
	return h
}

func TestThreeAttemptsEarnBronzeAndAdvance(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	want := []mentor.Phase{mentor.PhaseHint, mentor.PhaseExplanation, mentor.PhaseAnswer}
	var last Reply
	for i, p := range want {
		r, err := h.ctrl.Submit(ctx, "s1", Submission{Text: "attempt"})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if r.Phase != p || r.Outcome != orchestrator.OutcomeOffline {
			t.Fatalf("submit %d: %+v", i, r)
		}
		last = r
	}
	if last.Ledger.Points != 15 || last.Ledger.Attempts != 3 || last.Ledger.Tier != mentor.TierBronze {
		t.Fatalf("ledger=%+v", last.Ledger)
	}
	if last.Progress != 100 {
		t.Fatalf("progress=%d", last.Progress)
	}

	v, _ := h.ctrl.Snapshot(ctx, "s1")
	if len(v.Turns) != 6 {
		t.Fatalf("turns=%d", len(v.Turns))
	}
	if len(h.sink.events) != 6 {
		t.Fatalf("emitted=%d", len(h.sink.events))
	}
}

func TestEmptySubmissionOnFreshSessionIsSkipped(t *testing.T) {
	h := newHarness(t, true)
	r, err := h.ctrl.Submit(context.Background(), "s1", Submission{Text: "   "})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !r.Skipped || r.Phase != mentor.PhaseElicitation {
		t.Fatalf("reply=%+v", r)
	}
	if h.eng.CallCount() != 0 {
		t.Fatalf("upstream called %d times", h.eng.CallCount())
	}
	if _, err := h.store.Get(context.Background(), "s1"); !errors.Is(err, mentor.ErrSessionNotFound) {
		t.Fatalf("skipped submission persisted state: %v", err)
	}
}

func TestEmptySubmissionContinuesExistingDialogue(t *testing.T) {
	h := newHarness(t, true, mock.Step{Text: "What do you know?"}, mock.Step{Text: "Think about halves."})
	ctx := context.Background()
	if _, err := h.ctrl.Submit(ctx, "s1", Submission{Text: "binary search"}); err != nil {
		t.Fatal(err)
	}
	r, err := h.ctrl.Submit(ctx, "s1", Submission{})
	if err != nil {
		t.Fatal(err)
	}
	if r.Skipped || r.Reply != "Think about halves." {
		t.Fatalf("reply=%+v", r)
	}
	if r.Ledger.Attempts != 1 {
		t.Fatalf("empty turn must not be credited: %+v", r.Ledger)
	}
	v, _ := h.ctrl.Snapshot(ctx, "s1")
	if len(v.Turns) != 3 {
		t.Fatalf("turns=%d", len(v.Turns))
	}
}

func TestAttachmentOnlyTurnCountsAsAttempt(t *testing.T) {
	h := newHarness(t, true, mock.Step{Text: "Nice diagram. What does the arrow mean?"})
	ctx := context.Background()
	r, err := h.ctrl.Submit(ctx, "s1", Submission{AttachmentRef: "/uploads/1-abc.png"})
	if err != nil {
		t.Fatal(err)
	}
	if r.Ledger.Attempts != 1 || r.Ledger.Points != mentor.AttemptReward {
		t.Fatalf("ledger=%+v", r.Ledger)
	}
	calls := h.eng.Calls()
	lastMsg := calls[0].Messages[len(calls[0].Messages)-1]
	if lastMsg.Role != "user" || !strings.Contains(lastMsg.Content, "[attached: /uploads/1-abc.png]") {
		t.Fatalf("window did not include attachment turn: %+v", lastMsg)
	}
}

func TestInvalidPhaseLeavesStateUntouched(t *testing.T) {
	h := newHarness(t, true)
	_, err := h.ctrl.Submit(context.Background(), "s1", Submission{Text: "hi", Phase: "review"})
	if !errors.Is(err, mentor.ErrInvalidPhase) {
		t.Fatalf("err=%v", err)
	}
	if h.eng.CallCount() != 0 {
		t.Fatalf("upstream called")
	}
	v, _ := h.ctrl.Snapshot(context.Background(), "s1")
	if len(v.Turns) != 0 || v.Ledger.Points != 0 {
		t.Fatalf("state mutated: %+v", v)
	}
}

func TestTransportFailureResetsPhaseButKeepsTurn(t *testing.T) {
	netErr := &net.OpError{Op: "dial", Err: errors.New("refused")}
	h := newHarness(t, true, mock.Step{Err: netErr}, mock.Step{Err: netErr})
	r, err := h.ctrl.Submit(context.Background(), "s1", Submission{Text: "help", Phase: "explain"})
	if err != nil {
		t.Fatal(err)
	}
	if r.Phase != mentor.PhaseElicitation || r.Outcome != orchestrator.OutcomeUpstreamExhausted {
		t.Fatalf("reply=%+v", r)
	}
	if r.Ledger.Attempts != 1 {
		t.Fatalf("attempt must still be credited: %+v", r.Ledger)
	}
	v, _ := h.ctrl.Snapshot(context.Background(), "s1")
	if len(v.Turns) != 2 || v.Turns[0].Phase != mentor.PhaseExplanation {
		t.Fatalf("turns=%+v", v.Turns)
	}
}

func TestCancelledSubmitLeavesSessionUnchanged(t *testing.T) {
	h := newHarness(t, true)
	if _, err := h.ctrl.Submit(context.Background(), "s1", Submission{Text: "first", Phase: "explanation"}); err != nil {
		t.Fatal(err)
	}
	before, _ := h.ctrl.Snapshot(context.Background(), "s1")
	emitted := len(h.sink.events)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.ctrl.Submit(ctx, "s1", Submission{Text: "second"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
	after, _ := h.ctrl.Snapshot(context.Background(), "s1")
	if after.Phase != mentor.PhaseAnswer || after.Phase != before.Phase {
		t.Fatalf("phase=%s before=%s", after.Phase, before.Phase)
	}
	if after.Ledger != before.Ledger {
		t.Fatalf("ledger=%+v before=%+v", after.Ledger, before.Ledger)
	}
	if len(after.Turns) != len(before.Turns) {
		t.Fatalf("turns=%d before=%d", len(after.Turns), len(before.Turns))
	}
	if len(h.sink.events) != emitted {
		t.Fatalf("emitted %d events for a cancelled turn", len(h.sink.events)-emitted)
	}
}

func TestMentorTurnCarriesResultingPhase(t *testing.T) {
	h := newHarness(t, false)
	if _, err := h.ctrl.Submit(context.Background(), "s1", Submission{Text: "hi", Phase: "hint"}); err != nil {
		t.Fatal(err)
	}
	v, _ := h.ctrl.Snapshot(context.Background(), "s1")
	if len(v.Turns) != 2 {
		t.Fatalf("turns=%+v", v.Turns)
	}
	if v.Turns[0].Phase != mentor.PhaseHint || v.Turns[1].Phase != mentor.PhaseExplanation {
		t.Fatalf("student=%s mentor=%s", v.Turns[0].Phase, v.Turns[1].Phase)
	}
	if got := h.sink.events[1].Phase; got != string(mentor.PhaseExplanation) {
		t.Fatalf("emitted mentor phase=%s", got)
	}
}

func TestWindowIsBoundedToTenTurns(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		if _, err := h.ctrl.Submit(ctx, "s1", Submission{Text: "turn"}); err != nil {
			t.Fatal(err)
		}
	}
	calls := h.eng.Calls()
	last := calls[len(calls)-1]
	// two system messages plus the window
	if got := len(last.Messages) - 2; got != 10 {
		t.Fatalf("window=%d", got)
	}
}

func TestGenerateCodeCreditsOncePerSuccess(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	_, _ = h.ctrl.Submit(ctx, "s1", Submission{Text: "reverse a list"})

	res, err := h.ctrl.GenerateCode(ctx, "s1", CodeRequest{Language: "python"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Code != "print(1)" || res.Language != codegen.LanguagePython {
		t.Fatalf("res=%+v", res)
	}
	if res.Ledger == nil || res.Ledger.Points != mentor.AttemptReward+mentor.CodeReward {
		t.Fatalf("ledger=%+v", res.Ledger)
	}
	if !strings.Contains(h.coder.prompts[0], "reverse a list") {
		t.Fatalf("default prompt=%q", h.coder.prompts[0])
	}

	res, _ = h.ctrl.GenerateCode(ctx, "s1", CodeRequest{Prompt: "again", Language: "cpp"})
	if res.Ledger.Points != mentor.AttemptReward+2*mentor.CodeReward {
		t.Fatalf("second success not credited: %+v", res.Ledger)
	}

	v, _ := h.ctrl.Snapshot(ctx, "s1")
	lastTurn := v.Turns[len(v.Turns)-1]
	if lastTurn.Phase != mentor.PhaseAnswer || !strings.HasPrefix(lastTurn.Content, "```cpp\n") {
		t.Fatalf("code turn=%+v", lastTurn)
	}
}

func TestGenerateCodeFailureIsInBand(t *testing.T) {
	h := newHarness(t, false)
	h.coder.err = codegen.ErrMissingCredential

	res, err := h.ctrl.GenerateCode(context.Background(), "s1", CodeRequest{Prompt: "x"})
	if err != nil {
		t.Fatalf("storage-level error returned: %v", err)
	}
	if !strings.HasPrefix(res.Code, "//") || res.Err == nil {
		t.Fatalf("res=%+v", res)
	}
	if res.Ledger.Points != 0 {
		t.Fatalf("failure credited: %+v", res.Ledger)
	}
}

func TestResetKeepsLedger(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, _ = h.ctrl.Submit(ctx, "s1", Submission{Text: "x"})
	}
	v, err := h.ctrl.Reset(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if v.Phase != mentor.PhaseElicitation || len(v.Turns) != 0 {
		t.Fatalf("view=%+v", v)
	}
	if v.Ledger.Points != 10 || v.Ledger.Tier != mentor.TierBronze {
		t.Fatalf("ledger not kept: %+v", v.Ledger)
	}
}

func TestSinkRejectionDoesNotChangeReply(t *testing.T) {
	a := newHarness(t, false)
	b := newHarness(t, false)
	b.sink.accept = false

	ra, _ := a.ctrl.Submit(context.Background(), "s1", Submission{Text: "x"})
	rb, _ := b.ctrl.Submit(context.Background(), "s1", Submission{Text: "x"})
	if ra != rb {
		t.Fatalf("replies differ: %+v vs %+v", ra, rb)
	}
}

func TestConcurrentSubmitsAreSerialized(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.ctrl.Submit(ctx, "s1", Submission{Text: "x"}); err != nil {
				t.Errorf("Submit: %v", err)
			}
		}()
	}
	wg.Wait()

	v, _ := h.ctrl.Snapshot(ctx, "s1")
	if len(v.Turns) != 2*n || v.Ledger.Attempts != n {
		t.Fatalf("turns=%d attempts=%d", len(v.Turns), v.Ledger.Attempts)
	}
	if h.ctrl.locks.size() != 0 {
		t.Fatalf("lock entries leaked: %d", h.ctrl.locks.size())
	}
}

func TestConverseIsStateless(t *testing.T) {
	h := newHarness(t, false)
	now := time.Now()
	r, err := h.ctrl.Converse(context.Background(), []mentor.Turn{
		mentor.NewTurn(mentor.RoleStudent, "hi", mentor.PhaseHint, "", now),
	}, mentor.PhaseHint, "")
	if err != nil {
		t.Fatal(err)
	}
	if r.Phase != mentor.PhaseExplanation {
		t.Fatalf("reply=%+v", r)
	}
	if _, err := h.store.Get(context.Background(), "s1"); !errors.Is(err, mentor.ErrSessionNotFound) {
		t.Fatalf("converse persisted state")
	}
}

func TestTailBytes(t *testing.T) {
	if got := tailBytes("abcdef", 3); got != "def" {
		t.Fatalf("got %q", got)
	}
	if got := tailBytes("héllo", 4); got != "llo" {
		t.Fatalf("rune split: %q", got)
	}
	if got := tailBytes("ab", 10); got != "ab" {
		t.Fatalf("got %q", got)
	}
}

func TestCodeWithoutSession(t *testing.T) {
	h := newHarness(t, false)
	res := h.ctrl.Code(context.Background(), CodeRequest{Prompt: "fizzbuzz", Language: "cpp"})
	if res.Code != "print(1)" || res.Ledger != nil {
		t.Fatalf("res=%+v", res)
	}

	h.coder.err = errors.New("boom")
	res = h.ctrl.Code(context.Background(), CodeRequest{Prompt: "fizzbuzz"})
	if res.Code != "// Code gen error: boom" {
		t.Fatalf("code=%q", res.Code)
	}
}
