package mentor

import (
	"errors"
	"fmt"
	"strings"
)

// Phase is one of the four tutoring stages. Each stage reveals more than the one before it.
type Phase string

const (
	PhaseElicitation Phase = "elicitation"
	PhaseHint        Phase = "hint"
	PhaseExplanation Phase = "explanation"
	PhaseAnswer      Phase = "answer"
)

var ErrInvalidPhase = errors.New("invalid phase")

// Phases lists the cycle in order.
var Phases = []Phase{PhaseElicitation, PhaseHint, PhaseExplanation, PhaseAnswer}

func (p Phase) Valid() bool {
	switch p {
	case PhaseElicitation, PhaseHint, PhaseExplanation, PhaseAnswer:
		return true
	default:
		return false
	}
}

func (p Phase) String() string { return string(p) }

// Advance returns the successor of p in the cycle elicitation -> hint -> explanation -> answer -> elicitation.
func Advance(p Phase) (Phase, error) {
	switch p {
	case PhaseElicitation:
		return PhaseHint, nil
	case PhaseHint:
		return PhaseExplanation, nil
	case PhaseExplanation:
		return PhaseAnswer, nil
	case PhaseAnswer:
		return PhaseElicitation, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPhase, string(p))
	}
}

// ParsePhase normalizes raw input. "explain" is accepted for explanation.
func ParsePhase(raw string) (Phase, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "explain" {
		return PhaseExplanation, nil
	}
	p := Phase(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhase, raw)
	}
	return p, nil
}

// ParsePhaseOr parses raw, falling back to def when raw is blank.
func ParsePhaseOr(raw string, def Phase) (Phase, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	return ParsePhase(raw)
}

// Progress is the client-facing completion percentage for a phase.
func (p Phase) Progress() int {
	switch p {
	case PhaseElicitation:
		return 15
	case PhaseHint:
		return 40
	case PhaseExplanation:
		return 70
	case PhaseAnswer:
		return 100
	default:
		return 0
	}
}

// RevealsSolution reports whether content in this phase may contain a complete solution or code.
func (p Phase) RevealsSolution() bool { return p == PhaseAnswer }
