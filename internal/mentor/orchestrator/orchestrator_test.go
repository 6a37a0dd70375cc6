package orchestrator

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/eduai-mentor/internal/domain/mentor"
	"github.com/yungbote/eduai-mentor/internal/inference/engine/mock"
	"github.com/yungbote/eduai-mentor/internal/inference/engine/oaihttp"
	"github.com/yungbote/eduai-mentor/internal/mentor/offline"
)

var (
	errTransport = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	errStatus    = &oaihttp.HTTPError{StatusCode: 503, Body: "secret upstream body"}
	errMalformed = &oaihttp.DecodeError{Err: errors.New("invalid character '<'")}
)

type sleepRecorder struct {
	calls []time.Duration
	err   error
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return s.err
}

func newTestOrchestrator(eng *mock.Engine, strict bool) (*Orchestrator, *sleepRecorder) {
	rec := &sleepRecorder{}
	o := New(eng, Options{
		Model:               "test-model",
		Temperature:         0.3,
		MaxTokens:           500,
		StrictContentPolicy: strict,
		Retry: RetryPolicy{
			MaxAttempts: 2,
			Backoff:     func(attempt int) time.Duration { return time.Duration(attempt+1) * time.Second },
		},
		Sleep: rec.sleep,
	}, nil, nil)
	return o, rec
}

func online(phase mentor.Phase) Request {
	return Request{Phase: phase, Topic: "recursion", CredentialPresent: true}
}

func TestOfflineAdvancesWithoutCallingUpstream(t *testing.T) {
	eng := mock.New()
	o, _ := newTestOrchestrator(eng, false)

	for _, p := range mentor.Phases {
		res, err := o.ObtainReply(context.Background(), Request{Phase: p})
		if err != nil {
			t.Fatalf("%s: %v", p, err)
		}
		want, next, _ := offline.Reply(p)
		if res.Reply != want || res.Phase != next || res.Outcome != OutcomeOffline {
			t.Fatalf("%s: got %+v", p, res)
		}
	}
	if eng.CallCount() != 0 {
		t.Fatalf("offline path called upstream %d times", eng.CallCount())
	}
}

func TestSuccessAdvancesAndTrims(t *testing.T) {
	eng := mock.New(mock.Step{Text: "  What is a base case?  "})
	o, rec := newTestOrchestrator(eng, false)

	res, err := o.ObtainReply(context.Background(), online(mentor.PhaseElicitation))
	if err != nil {
		t.Fatalf("ObtainReply: %v", err)
	}
	if res.Phase != mentor.PhaseHint || res.Reply != "What is a base case?" || res.Outcome != OutcomeSuccess {
		t.Fatalf("got %+v", res)
	}
	if res.Attempts != 1 || len(rec.calls) != 0 {
		t.Fatalf("attempts=%d sleeps=%v", res.Attempts, rec.calls)
	}
}

func TestRequestCarriesParametersAndWindow(t *testing.T) {
	eng := mock.New(mock.Step{Text: "ok"})
	o, _ := newTestOrchestrator(eng, false)
	now := time.Unix(0, 0)
	window := []mentor.Turn{
		mentor.NewTurn(mentor.RoleStudent, "I know loops", mentor.PhaseElicitation, "", now),
		mentor.NewTurn(mentor.RoleMentor, "Good. What stops one?", mentor.PhaseElicitation, "", now),
	}

	_, _ = o.ObtainReply(context.Background(), Request{Phase: mentor.PhaseHint, Topic: "loops", Window: window, CredentialPresent: true})

	calls := eng.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls=%d", len(calls))
	}
	c := calls[0]
	if c.Model != "test-model" || c.Options.Temperature != 0.3 || c.Options.MaxTokens != 500 {
		t.Fatalf("unexpected call params: %+v", c)
	}
	if len(c.Messages) != 4 || c.Messages[2].Role != "user" || c.Messages[3].Role != "assistant" {
		t.Fatalf("unexpected messages: %+v", c.Messages)
	}
	if !strings.Contains(c.Messages[1].Content, "Current phase: hint. Topic: loops.") {
		t.Fatalf("phase instruction=%q", c.Messages[1].Content)
	}
}

func TestTransportThenSuccess(t *testing.T) {
	eng := mock.New(mock.Step{Err: errTransport}, mock.Step{Text: "Hint: try n=1"})
	o, rec := newTestOrchestrator(eng, false)

	res, _ := o.ObtainReply(context.Background(), online(mentor.PhaseHint))
	if res.Phase != mentor.PhaseExplanation || res.Reply != "Hint: try n=1" || res.Attempts != 2 {
		t.Fatalf("got %+v", res)
	}
	if len(rec.calls) != 1 || rec.calls[0] != time.Second {
		t.Fatalf("backoff calls=%v", rec.calls)
	}
}

func TestHardFailureResetsToElicitation(t *testing.T) {
	cases := map[string][]mock.Step{
		"transport twice":       {{Err: errTransport}, {Err: errTransport}},
		"status then malformed": {{Err: errStatus}, {Err: errMalformed}},
		"empty then transport":  {{Text: ""}, {Err: errStatus}},
		"deadline":              {{Err: context.DeadlineExceeded}, {Err: context.DeadlineExceeded}},
	}
	for name, steps := range cases {
		eng := mock.New(steps...)
		o, _ := newTestOrchestrator(eng, false)

		res, err := o.ObtainReply(context.Background(), online(mentor.PhaseExplanation))
		if err != nil {
			t.Fatalf("%s: error must be absorbed, got %v", name, err)
		}
		if res.Phase != mentor.PhaseElicitation || res.Outcome != OutcomeUpstreamExhausted {
			t.Fatalf("%s: got %+v", name, res)
		}
		if !strings.HasPrefix(res.Reply, "Mentor error:") {
			t.Fatalf("%s: reply=%q", name, res.Reply)
		}
		if strings.Contains(res.Reply, "secret upstream body") {
			t.Fatalf("%s: upstream body leaked into reply", name)
		}
		if !errors.Is(res.Err, ErrUpstreamExhausted) {
			t.Fatalf("%s: res.Err=%v", name, res.Err)
		}
		if eng.CallCount() != 2 {
			t.Fatalf("%s: calls=%d", name, eng.CallCount())
		}
	}
}

func TestSoftFailureKeepsPhase(t *testing.T) {
	cases := map[string][]mock.Step{
		"empty twice":          {{Text: ""}, {Text: "   "}},
		"transport then empty": {{Err: errTransport}, {Text: ""}},
	}
	for name, steps := range cases {
		eng := mock.New(steps...)
		o, _ := newTestOrchestrator(eng, false)

		res, err := o.ObtainReply(context.Background(), online(mentor.PhaseHint))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if res.Phase != mentor.PhaseHint || res.Reply != RepromptText || res.Outcome != OutcomeEmptySoftFailure {
			t.Fatalf("%s: got %+v", name, res)
		}
		if !errors.Is(res.Err, ErrEmptyReply) {
			t.Fatalf("%s: res.Err=%v", name, res.Err)
		}
	}
}

func TestEmptyThenSuccessRetries(t *testing.T) {
	eng := mock.New(mock.Step{Text: ""}, mock.Step{Text: "What do you know about stacks?"})
	o, _ := newTestOrchestrator(eng, false)

	res, _ := o.ObtainReply(context.Background(), online(mentor.PhaseAnswer))
	if res.Phase != mentor.PhaseElicitation || res.Outcome != OutcomeSuccess || res.Attempts != 2 {
		t.Fatalf("got %+v", res)
	}
}

func TestAttemptsNeverExceedBudget(t *testing.T) {
	eng := mock.New(mock.Step{Err: errTransport}, mock.Step{Err: errTransport}, mock.Step{Text: "late"})
	o, _ := newTestOrchestrator(eng, false)

	res, _ := o.ObtainReply(context.Background(), online(mentor.PhaseHint))
	if eng.CallCount() != 2 || res.Attempts != 2 {
		t.Fatalf("calls=%d attempts=%d", eng.CallCount(), res.Attempts)
	}
}

func TestStrictContentPolicy(t *testing.T) {
	code := "Here:\n```python\nprint(1)\n```"

	eng := mock.New(mock.Step{Text: code}, mock.Step{Text: "What should the function return?"})
	o, _ := newTestOrchestrator(eng, true)
	res, _ := o.ObtainReply(context.Background(), online(mentor.PhaseHint))
	if res.Outcome != OutcomeSuccess || strings.Contains(res.Reply, "```") || eng.CallCount() != 2 {
		t.Fatalf("strict policy did not re-ask: %+v calls=%d", res, eng.CallCount())
	}

	eng = mock.New(mock.Step{Text: code}, mock.Step{Text: code})
	o, _ = newTestOrchestrator(eng, true)
	res, _ = o.ObtainReply(context.Background(), online(mentor.PhaseHint))
	if res.Outcome != OutcomeEmptySoftFailure || res.Phase != mentor.PhaseHint || !errors.Is(res.Err, ErrPolicyViolation) {
		t.Fatalf("got %+v", res)
	}

	eng = mock.New(mock.Step{Text: code})
	o, _ = newTestOrchestrator(eng, true)
	res, _ = o.ObtainReply(context.Background(), online(mentor.PhaseAnswer))
	if res.Outcome != OutcomeSuccess || res.Reply != code {
		t.Fatalf("answer phase must allow code: %+v", res)
	}

	eng = mock.New(mock.Step{Text: code})
	o, _ = newTestOrchestrator(eng, false)
	res, _ = o.ObtainReply(context.Background(), online(mentor.PhaseHint))
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("policy off must pass replies through: %+v", res)
	}
}

func TestInvalidPhaseRejectedBeforeAnyCall(t *testing.T) {
	eng := mock.New()
	o, _ := newTestOrchestrator(eng, false)

	_, err := o.ObtainReply(context.Background(), Request{Phase: "review", CredentialPresent: true})
	if !errors.Is(err, mentor.ErrInvalidPhase) {
		t.Fatalf("err=%v", err)
	}
	if eng.CallCount() != 0 {
		t.Fatalf("calls=%d", eng.CallCount())
	}
}

func TestInterruptedBackoffIsHardFailure(t *testing.T) {
	eng := mock.New(mock.Step{Text: ""}, mock.Step{Text: "never"})
	o, rec := newTestOrchestrator(eng, false)
	rec.err = context.DeadlineExceeded

	res, _ := o.ObtainReply(context.Background(), online(mentor.PhaseHint))
	if res.Outcome != OutcomeUpstreamExhausted || res.Phase != mentor.PhaseElicitation {
		t.Fatalf("got %+v", res)
	}
	if eng.CallCount() != 1 {
		t.Fatalf("calls=%d", eng.CallCount())
	}
	if !strings.Contains(res.Reply, "took too long") {
		t.Fatalf("reply=%q", res.Reply)
	}
}
