package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/yungbote/eduai-mentor/internal/domain/mentor"
	"github.com/yungbote/eduai-mentor/internal/http/response"
	"github.com/yungbote/eduai-mentor/internal/platform/logger"
	"github.com/yungbote/eduai-mentor/internal/transcript"
)

type LogHandler struct {
	log         *logger.Logger
	sink        transcript.Sink
	recentLimit int
	now         func() time.Time
}

func NewLogHandler(log *logger.Logger, sink transcript.Sink, recentLimit int) *LogHandler {
	if log == nil {
		log = logger.Nop()
	}
	if recentLimit <= 0 {
		recentLimit = 200
	}
	return &LogHandler{
		log:         log.With("handler", "LogHandler"),
		sink:        sink,
		recentLimit: recentLimit,
		now:         time.Now,
	}
}

var errEmptyLogBody = errors.New("request body must be an event or an array of events")

// POST /api/log accepts a single event or an array of events.
func (h *LogHandler) Append(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	events, err := decodeEvents(raw)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	for i := range events {
		if err := binding.Validator.ValidateStruct(&events[i]); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_event", err)
			return
		}
		if events[i].Timestamp.IsZero() {
			events[i].Timestamp = h.now().UTC()
		}
		if events[i].Phase != "" {
			p, _ := mentor.ParsePhase(events[i].Phase)
			events[i].Phase = p.String()
		}
	}

	if err := h.sink.Append(c.Request.Context(), events...); err != nil {
		h.log.Error("transcript append failed", "count", len(events), "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "log error"})
		return
	}
	response.RespondOK(c, gin.H{"ok": true, "count": len(events)})
}

func decodeEvents(raw []byte) ([]transcript.Event, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errEmptyLogBody
	}
	if raw[0] == '[' {
		var events []transcript.Event
		if err := json.Unmarshal(raw, &events); err != nil {
			return nil, err
		}
		if len(events) == 0 {
			return nil, errEmptyLogBody
		}
		return events, nil
	}
	var ev transcript.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	return []transcript.Event{ev}, nil
}

// GET /api/log returns the most recent events, oldest first.
func (h *LogHandler) Recent(c *gin.Context) {
	events, err := h.sink.Recent(c.Request.Context(), h.recentLimit)
	if err != nil {
		h.log.Error("transcript read failed", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "read error"})
		return
	}
	response.RespondOK(c, gin.H{"ok": true, "recent": events})
}
