package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/eduai-mentor/internal/domain/mentor"
	"github.com/yungbote/eduai-mentor/internal/http/response"
	"github.com/yungbote/eduai-mentor/internal/mentor/session"
	"github.com/yungbote/eduai-mentor/internal/platform/logger"
)

const maxSessionIDLen = 128

type SessionHandler struct {
	log     *logger.Logger
	service MentorService
}

func NewSessionHandler(log *logger.Logger, service MentorService) *SessionHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &SessionHandler{log: log.With("handler", "SessionHandler"), service: service}
}

var errInvalidSessionID = errors.New("session id must be 1-128 characters")

func sessionID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" || len(id) > maxSessionIDLen {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", errInvalidSessionID)
		return "", false
	}
	return id, true
}

type submitTurnReq struct {
	Content       string `json:"content" binding:"max=20000"`
	AttachmentRef string `json:"attachment_ref" binding:"max=2048"`
	Phase         string `json:"phase"`
	Topic         string `json:"topic" binding:"max=200"`
}

// statusClientClosedRequest is the nginx convention for a caller that went away.
const statusClientClosedRequest = 499

// POST /api/sessions/:id/turns
func (h *SessionHandler) SubmitTurn(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req submitTurnReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	reply, err := h.service.Submit(c.Request.Context(), id, session.Submission{
		Text:          req.Content,
		AttachmentRef: req.AttachmentRef,
		Phase:         req.Phase,
		Topic:         req.Topic,
	})
	if err != nil {
		if errors.Is(err, mentor.ErrInvalidPhase) {
			response.RespondError(c, http.StatusBadRequest, "invalid_phase", err)
			return
		}
		if errors.Is(err, context.Canceled) {
			response.RespondError(c, statusClientClosedRequest, "request_cancelled", err)
			return
		}
		h.log.Error("submit turn failed", "session_id", id, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "submit_failed", err)
		return
	}
	response.RespondOK(c, reply)
}

// GET /api/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	view, err := h.service.Snapshot(c.Request.Context(), id)
	if err != nil {
		h.log.Error("load session failed", "session_id", id, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "load_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"session": view})
}

// POST /api/sessions/:id/reset
func (h *SessionHandler) ResetSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	view, err := h.service.Reset(c.Request.Context(), id)
	if err != nil {
		h.log.Error("reset session failed", "session_id", id, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "reset_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"session": view})
}

type codeReq struct {
	Prompt   string `json:"prompt" binding:"max=20000"`
	Language string `json:"language" binding:"omitempty,oneof=cpp python c++ py"`
}

// POST /api/sessions/:id/code
//
// Generation failures are reported in-band as a source comment with status 200.
func (h *SessionHandler) GenerateCode(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req codeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"code": "// Code gen error: invalid request body"})
		return
	}
	res, err := h.service.GenerateCode(c.Request.Context(), id, session.CodeRequest{Prompt: req.Prompt, Language: req.Language})
	if err != nil {
		h.log.Error("code generation bookkeeping failed", "session_id", id, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "codegen_failed", err)
		return
	}
	response.RespondOK(c, res)
}
