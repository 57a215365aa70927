package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/english-trainer-backend/internal/http/response"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]Pinger
}

func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Ready pings every dependency; any failure returns 503.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	status := map[string]string{}
	ok := true
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			status[name] = "down"
			ok = false
			continue
		}
		status[name] = "up"
	}
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": status})
		return
	}
	response.RespondOK(c, gin.H{"status": status})
}
