package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/eduai-mentor/internal/mentor/session"
)

type CodeHandler struct {
	service MentorService
}

func NewCodeHandler(service MentorService) *CodeHandler {
	return &CodeHandler{service: service}
}

// POST /api/code
func (h *CodeHandler) Generate(c *gin.Context) {
	var req codeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"code": "// Code gen error: invalid request body"})
		return
	}
	res := h.service.Code(c.Request.Context(), session.CodeRequest{Prompt: req.Prompt, Language: req.Language})
	c.JSON(http.StatusOK, gin.H{"code": res.Code})
}
