package handlers

import (
	"context"

	"github.com/yungbote/eduai-mentor/internal/domain/mentor"
	"github.com/yungbote/eduai-mentor/internal/mentor/session"
)

// MentorService is the slice of *session.Controller the handlers use.
type MentorService interface {
	Submit(ctx context.Context, sessionID string, sub session.Submission) (session.Reply, error)
	Converse(ctx context.Context, history []mentor.Turn, phase mentor.Phase, topic string) (session.Reply, error)
	GenerateCode(ctx context.Context, sessionID string, req session.CodeRequest) (session.CodeResult, error)
	Code(ctx context.Context, req session.CodeRequest) session.CodeResult
	Reset(ctx context.Context, sessionID string) (session.View, error)
	Snapshot(ctx context.Context, sessionID string) (session.View, error)
}

var _ MentorService = (*session.Controller)(nil)
