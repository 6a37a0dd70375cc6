package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Backends names the storage and upstream wiring reported by the health check.
type Backends struct {
	Sessions    string `json:"sessions"`
	Transcript  string `json:"transcript"`
	Attachments string `json:"attachments"`
	// Upstream is "live" with a credential and "offline" without one.
	Upstream string `json:"upstream"`
}

// HealthHandler reports the wired backends. When ping is set a failing session
// store turns the check into a 503.
type HealthHandler struct {
	backends Backends
	ping     func(ctx context.Context) error
}

func NewHealthHandler(backends Backends, ping func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{backends: backends, ping: ping}
}

// GET /healthcheck
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "degraded",
				"backends": h.backends,
				"error":    err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "backends": h.backends})
}
