package handlers

import (
	"net/http"
	"time"

	"presencelight/internal/poller"

	"github.com/gin-gonic/gin"
)

// StatusSource provides the poll loop state
type StatusSource interface {
	GetState() poller.State
}

// StatusHandler handles status requests
type StatusHandler struct {
	source StatusSource
	dryRun bool
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(source StatusSource, dryRun bool) *StatusHandler {
	return &StatusHandler{
		source: source,
		dryRun: dryRun,
	}
}

// GetStatus returns the current light and presence state
// GET /v1/status
func (h *StatusHandler) GetStatus(c *gin.Context) {
	state := h.source.GetState()

	var presence gin.H
	if state.LastStatus != nil {
		presence = gin.H{
			"availability": state.LastStatus.Availability,
			"activity":     state.LastStatus.Activity,
			"in_call":      state.LastActive != nil && *state.LastActive,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"light": gin.H{
			"applied":              state.Applied,
			"consecutive_failures": state.LightFailures,
			"last_error":           state.LastTransitionError,
			"dry_run":              h.dryRun,
		},
		"presence":                      presence,
		"consecutive_presence_failures": state.PresenceFailures,
		"polls":                         state.Polls,
		"last_poll_at":                  formatTime(state.LastPollAt),
		"last_successful_poll_at":       formatTime(state.LastSuccessfulPoll),
		"token_valid_until":             formatTime(state.TokenValidUntil),
	})
}

// formatTime returns RFC3339 in UTC, or nil when unset
func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
