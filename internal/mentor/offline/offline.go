// Package offline answers without an upstream when no credential is configured.
package offline

import "github.com/yungbote/eduai-mentor/internal/domain/mentor"

var replies = map[mentor.Phase]string{
	mentor.PhaseElicitation: "Before we jump in: What do you already know about this topic?",
	mentor.PhaseHint:        "Hint: Break the problem into smaller steps and test with a tiny example.",
	mentor.PhaseExplanation: "Plan:\n1) Define inputs/outputs\n2) Identify base cases\n3) Outline algorithm\n4) Test edge cases",
	mentor.PhaseAnswer:      "Here’s how you’d finalize the solution. Want me to format the full code now?",
}

// Reply returns the canned text for phase and the phase that follows it.
func Reply(phase mentor.Phase) (string, mentor.Phase, error) {
	next, err := mentor.Advance(phase)
	if err != nil {
		return "", phase, err
	}
	return replies[phase], next, nil
}
