package mentor

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleMentor  Role = "mentor"
)

func (r Role) Valid() bool { return r == RoleStudent || r == RoleMentor }

// Turn is one message of the tutoring dialogue. Turns are never mutated after creation.
type Turn struct {
	ID            uuid.UUID `json:"id"`
	Role          Role      `json:"role"`
	Content       string    `json:"content"`
	Phase         Phase     `json:"phase"`
	Timestamp     time.Time `json:"timestamp"`
	AttachmentRef string    `json:"attachment_ref,omitempty"`
}

func NewTurn(role Role, content string, phase Phase, attachmentRef string, now time.Time) Turn {
	return Turn{
		ID:            uuid.New(),
		Role:          role,
		Content:       content,
		Phase:         phase,
		Timestamp:     now.UTC(),
		AttachmentRef: strings.TrimSpace(attachmentRef),
	}
}

// ComposeStudentContent joins typed text with an attachment marker the mentor can see.
func ComposeStudentContent(text string, attachmentRef string) string {
	text = strings.TrimSpace(text)
	ref := strings.TrimSpace(attachmentRef)
	if ref == "" {
		return text
	}
	return text + "\n[attached: " + ref + "]"
}
