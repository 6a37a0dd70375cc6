// Package transcript records dialogue events for later review. Recording is best effort:
// nothing here may change what a learner sees.
package transcript

import (
	"context"
	"errors"
	"time"

	"github.com/yungbote/eduai-mentor/internal/domain/mentor"
)

// Event is one logged dialogue line. Field names follow the client log format.
type Event struct {
	Timestamp time.Time `json:"ts"`
	SessionID string    `json:"session_id,omitempty"`
	Role      string    `json:"role" binding:"required,oneof=student mentor"`
	Content   string    `json:"content"`
	Phase     string    `json:"phase,omitempty" binding:"omitempty,phase"`
	UploadURL string    `json:"uploadUrl,omitempty"`
}

type Sink interface {
	Append(ctx context.Context, events ...Event) error
	// Recent returns up to n events, oldest first.
	Recent(ctx context.Context, n int) ([]Event, error)
	Close() error
}

var ErrClosed = errors.New("transcript sink closed")

// FromTurn converts a dialogue turn into a log event.
func FromTurn(sessionID string, t mentor.Turn) Event {
	return Event{
		Timestamp: t.Timestamp,
		SessionID: sessionID,
		Role:      string(t.Role),
		Content:   t.Content,
		Phase:     t.Phase.String(),
		UploadURL: t.AttachmentRef,
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) Append(context.Context, ...Event) error       { return nil }
func (Nop) Recent(context.Context, int) ([]Event, error) { return []Event{}, nil }
func (Nop) Close() error                                 { return nil }
