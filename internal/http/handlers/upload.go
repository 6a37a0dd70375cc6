package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/eduai-mentor/internal/attachments"
	"github.com/yungbote/eduai-mentor/internal/http/response"
	"github.com/yungbote/eduai-mentor/internal/platform/logger"
)

type UploadHandler struct {
	log   *logger.Logger
	store attachments.Store
}

func NewUploadHandler(log *logger.Logger, store attachments.Store) *UploadHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &UploadHandler{log: log.With("handler", "UploadHandler"), store: store}
}

var errMissingFile = errors.New("no file provided (field name must be 'file')")

// POST /api/upload
func (h *UploadHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_file", errMissingFile)
		return
	}
	if fh.Size == 0 {
		response.RespondError(c, http.StatusBadRequest, "empty_file", attachments.ErrEmptyUpload)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_file", err)
		return
	}
	defer f.Close()

	att, err := h.store.Save(c.Request.Context(), fh.Filename, fh.Header.Get("Content-Type"), f)
	if err != nil {
		h.log.Error("upload failed", "name", fh.Filename, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "upload_failed", err)
		return
	}
	h.log.Info("upload stored", "url", att.URL, "size", att.Size, "type", att.Type)
	response.RespondOK(c, gin.H{
		"ok":   true,
		"url":  att.URL,
		"name": att.Name,
		"size": att.Size,
		"type": att.Type,
	})
}

// GET /api/upload
func (h *UploadHandler) List(c *gin.Context) {
	files, err := h.store.List(c.Request.Context())
	if err != nil {
		h.log.Warn("list uploads failed", "error", err)
		files = []string{}
	}
	response.RespondOK(c, gin.H{"files": files})
}
