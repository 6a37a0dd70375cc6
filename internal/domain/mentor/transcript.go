package mentor

import "encoding/json"

// Transcript is the append-only turn history of one session.
type Transcript struct {
	turns []Turn
}

func NewTranscript(turns ...Turn) *Transcript {
	t := &Transcript{}
	t.turns = append(t.turns, turns...)
	return t
}

func (t *Transcript) Append(turn Turn) {
	t.turns = append(t.turns, turn)
}

func (t *Transcript) Len() int { return len(t.turns) }

// Turns returns a copy of the full history.
func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// RecentWindow returns the last k turns in their original order, or every turn when fewer than k exist.
// The result is a copy; callers cannot mutate the transcript through it.
func (t *Transcript) RecentWindow(k int) []Turn {
	if k <= 0 || len(t.turns) == 0 {
		return []Turn{}
	}
	start := len(t.turns) - k
	if start < 0 {
		start = 0
	}
	out := make([]Turn, len(t.turns)-start)
	copy(out, t.turns[start:])
	return out
}

func (t *Transcript) Reset() {
	t.turns = nil
}

func (t *Transcript) MarshalJSON() ([]byte, error) {
	if t == nil || t.turns == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.turns)
}

func (t *Transcript) UnmarshalJSON(b []byte) error {
	var turns []Turn
	if err := json.Unmarshal(b, &turns); err != nil {
		return err
	}
	t.turns = turns
	return nil
}
