package prompt

import (
	"fmt"
	"strings"

	"github.com/yungbote/eduai-mentor/internal/domain/mentor"
	"github.com/yungbote/eduai-mentor/internal/inference/engine"
)

// System is the standing tutor persona sent ahead of every window.
func System() string {
	return strings.TrimSpace(strings.Join([]string{
		"You are EduAI Mentor, a patient, concept-focused teacher.",
		"",
		"GOAL: Ensure the student understands before revealing code.",
		"",
		"Phase rules (STRICT):",
		"- elicitation: Ask ONE short guiding question. Do NOT provide steps, formulas, or code.",
		"- hint: Provide ONE hint or nudge. Do NOT provide full steps or code.",
		"- explanation: Provide a step-by-step plan and conceptual logic. Do NOT include code blocks.",
		"- answer: Provide the final, clean answer (and code if relevant). Mention common mistakes and one edge case.",
		"",
		"Hard constraints:",
		"- If the student asks for code but phase != answer, politely refuse and ask a probing question instead.",
		"- Never include triple backticks or code-like formatting unless phase == \"answer\".",
		"- Be concise, friendly, and motivational.",
	}, "\n"))
}

// PhaseInstruction pins the current phase and topic for one call.
func PhaseInstruction(phase mentor.Phase, topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = mentor.DefaultTopic
	}
	return fmt.Sprintf(
		"Current phase: %s. Topic: %s. STRICTLY follow phase rules. If phase is not %q, DO NOT include any code blocks or pseudo-code; ask questions or explain concepts only.",
		phase, topic, string(mentor.PhaseAnswer),
	)
}

// Build assembles the upstream request: persona, phase instruction, then the window in order.
// Student turns become "user" messages and mentor turns become "assistant" messages.
func Build(phase mentor.Phase, topic string, window []mentor.Turn) []engine.Message {
	out := make([]engine.Message, 0, len(window)+2)
	out = append(out,
		engine.Message{Role: engine.RoleSystem, Content: System()},
		engine.Message{Role: engine.RoleSystem, Content: PhaseInstruction(phase, topic)},
	)
	for _, t := range window {
		out = append(out, engine.Message{Role: chatRole(t.Role), Content: t.Content})
	}
	return out
}

func chatRole(r mentor.Role) string {
	if r == mentor.RoleStudent {
		return engine.RoleUser
	}
	return engine.RoleAssistant
}

// ContainsCodeFormatting reports whether text carries fenced or inline code markup.
func ContainsCodeFormatting(text string) bool {
	if strings.Contains(text, "```") || strings.Contains(text, "~~~") {
		return true
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "    ") && strings.TrimSpace(line) != "" && looksLikeCode(line) {
			return true
		}
	}
	return false
}

func looksLikeCode(line string) bool {
	s := strings.TrimSpace(line)
	for _, tok := range []string{"{", "}", ";", "def ", "return ", "#include", "for (", "while (", "==", "=>"} {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}
