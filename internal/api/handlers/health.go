package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DegradedAfter is the number of consecutive presence or light failures
// after which the service reports itself degraded
const DegradedAfter = 3

// HealthHandler reports liveness plus a summary of the poll loop
type HealthHandler struct {
	source StatusSource
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(source StatusSource) *HealthHandler {
	return &HealthHandler{source: source}
}

// GetHealth always answers 200 while the process runs; "status" turns
// DEGRADED when Graph or the light keep failing
// GET /health
func (h *HealthHandler) GetHealth(c *gin.Context) {
	state := h.source.GetState()

	status := "UP"
	if state.PresenceFailures >= DegradedAfter || state.LightFailures >= DegradedAfter {
		status = "DEGRADED"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  status,
		"service": "presencelight",
		"poll_loop": gin.H{
			"polls":                   state.Polls,
			"last_successful_poll_at": formatTime(state.LastSuccessfulPoll),
			"presence_failures":       state.PresenceFailures,
			"light_failures":          state.LightFailures,
		},
	})
}
