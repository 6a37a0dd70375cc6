package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/eduai-mentor/internal/domain/mentor"
	"github.com/yungbote/eduai-mentor/internal/platform/logger"
)

type MentorHandler struct {
	log     *logger.Logger
	service MentorService
	now     func() time.Time
}

func NewMentorHandler(log *logger.Logger, service MentorService) *MentorHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &MentorHandler{
		log:     log.With("handler", "MentorHandler"),
		service: service,
		now:     time.Now,
	}
}

type mentorMessage struct {
	// user and assistant are accepted for clients that speak chat-completions roles.
	Role    string `json:"role" binding:"required,oneof=student mentor user assistant"`
	Content string `json:"content"`
}

type mentorReq struct {
	Messages []mentorMessage `json:"messages" binding:"dive"`
	Phase    string          `json:"phase"`
	Topic    string          `json:"topic"`
}

type mentorResp struct {
	Phase mentor.Phase `json:"phase"`
	Reply string       `json:"reply"`
}

// POST /api/mentor
//
// Stateless: the request's messages are the whole dialogue. Every outcome is a 200 with {phase, reply}.
func (h *MentorHandler) Reply(c *gin.Context) {
	var req mentorReq
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("mentor request rejected", "error", err)
		c.JSON(http.StatusOK, errorReply("the request could not be read"))
		return
	}
	phase, err := mentor.ParsePhaseOr(req.Phase, mentor.PhaseElicitation)
	if err != nil {
		c.JSON(http.StatusOK, errorReply(fmt.Sprintf("unknown phase %q", strings.TrimSpace(req.Phase))))
		return
	}

	now := h.now()
	history := make([]mentor.Turn, 0, len(req.Messages))
	for _, m := range req.Messages {
		history = append(history, mentor.NewTurn(normalizeRole(m.Role), m.Content, phase, "", now))
	}

	res, err := h.service.Converse(c.Request.Context(), history, phase, req.Topic)
	if err != nil {
		if !errors.Is(err, mentor.ErrInvalidPhase) {
			h.log.Error("mentor reply failed", "error", err)
		}
		c.JSON(http.StatusOK, errorReply("the mentor is unavailable"))
		return
	}
	c.JSON(http.StatusOK, mentorResp{Phase: res.Phase, Reply: res.Reply})
}

func normalizeRole(raw string) mentor.Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "student", "user":
		return mentor.RoleStudent
	default:
		return mentor.RoleMentor
	}
}

func errorReply(desc string) mentorResp {
	return mentorResp{
		Phase: mentor.PhaseElicitation,
		Reply: fmt.Sprintf("Mentor error: %s. Try again or rephrase.", desc),
	}
}
