package mentor

import (
	"errors"
	"time"
)

const DefaultTopic = "general"

// SessionState is everything the service remembers about one learner session.
type SessionState struct {
	ID           string      `json:"id"`
	CurrentPhase Phase       `json:"current_phase"`
	Topic        string      `json:"topic"`
	Transcript   *Transcript `json:"transcript"`
	Ledger       Ledger      `json:"ledger"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func NewSessionState(id string) *SessionState {
	return &SessionState{
		ID:           id,
		CurrentPhase: PhaseElicitation,
		Topic:        DefaultTopic,
		Transcript:   NewTranscript(),
	}
}

// Reset clears the dialogue and phase. The ledger is kept.
func (s *SessionState) Reset() {
	s.CurrentPhase = PhaseElicitation
	if s.Transcript == nil {
		s.Transcript = NewTranscript()
		return
	}
	s.Transcript.Reset()
}

var ErrSessionNotFound = errors.New("session not found")

// Clone returns a deep copy that shares no mutable state with s.
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	out := *s
	if s.Transcript != nil {
		out.Transcript = NewTranscript(s.Transcript.Turns()...)
	} else {
		out.Transcript = NewTranscript()
	}
	return &out
}
