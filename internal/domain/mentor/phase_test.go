package mentor

import (
	"errors"
	"testing"
)

func TestAdvanceCycleCloses(t *testing.T) {
	for _, p := range Phases {
		cur := p
		for i := 0; i < 4; i++ {
			next, err := Advance(cur)
			if err != nil {
				t.Fatalf("Advance(%s): %v", cur, err)
			}
			cur = next
		}
		if cur != p {
			t.Fatalf("four advances from %s ended at %s", p, cur)
		}
	}
}

func TestAdvanceSuccessors(t *testing.T) {
	want := map[Phase]Phase{
		PhaseElicitation: PhaseHint,
		PhaseHint:        PhaseExplanation,
		PhaseExplanation: PhaseAnswer,
		PhaseAnswer:      PhaseElicitation,
	}
	for in, out := range want {
		got, err := Advance(in)
		if err != nil || got != out {
			t.Fatalf("Advance(%s)=%s,%v want %s", in, got, err, out)
		}
	}
}

func TestAdvanceRejectsUnknown(t *testing.T) {
	if _, err := Advance(Phase("review")); !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("err=%v", err)
	}
	if _, err := Advance(""); !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("empty phase err=%v", err)
	}
}

func TestParsePhase(t *testing.T) {
	cases := map[string]Phase{
		"hint":        PhaseHint,
		" Answer ":    PhaseAnswer,
		"explain":     PhaseExplanation,
		"EXPLANATION": PhaseExplanation,
		"elicitation": PhaseElicitation,
	}
	for raw, want := range cases {
		got, err := ParsePhase(raw)
		if err != nil || got != want {
			t.Fatalf("ParsePhase(%q)=%s,%v want %s", raw, got, err, want)
		}
	}
	if _, err := ParsePhase("solution"); !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("expected ErrInvalidPhase, got %v", err)
	}
	if p, err := ParsePhaseOr("  ", PhaseElicitation); err != nil || p != PhaseElicitation {
		t.Fatalf("ParsePhaseOr blank = %s,%v", p, err)
	}
}

func TestProgress(t *testing.T) {
	if PhaseElicitation.Progress() != 15 || PhaseAnswer.Progress() != 100 {
		t.Fatalf("unexpected progress values")
	}
	if Phase("x").Progress() != 0 {
		t.Fatalf("unknown phase progress should be 0")
	}
}
