package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"presencelight/internal/core"

	"github.com/gin-gonic/gin"
)

const (
	DefaultTransitionLimit = 50
	MaxTransitionLimit     = 500
)

// TransitionLister reads the light transition history
type TransitionLister interface {
	ListTransitions(ctx context.Context, limit int) ([]*core.Transition, error)
}

// TransitionsHandler handles transition history requests
type TransitionsHandler struct {
	lister TransitionLister
	logger *slog.Logger
}

// NewTransitionsHandler creates a new transitions handler. A nil lister
// means history is disabled.
func NewTransitionsHandler(lister TransitionLister, logger *slog.Logger) *TransitionsHandler {
	return &TransitionsHandler{
		lister: lister,
		logger: logger,
	}
}

// ListTransitions returns the most recent light transitions, newest first
// GET /v1/transitions?limit=N
func (h *TransitionsHandler) ListTransitions(c *gin.Context) {
	if h.lister == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Transition history is disabled",
			"code":  "HISTORY_DISABLED",
		})
		return
	}

	limit := DefaultTransitionLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "limit must be a positive integer",
				"code":  "INVALID_REQUEST",
			})
			return
		}
		limit = min(n, MaxTransitionLimit)
	}

	transitions, err := h.lister.ListTransitions(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list transitions",
			"component", "api",
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve transitions",
			"code":  "INTERNAL_ERROR",
		})
		return
	}

	response := make([]gin.H, 0, len(transitions))
	for _, tr := range transitions {
		response = append(response, gin.H{
			"id":           tr.ID,
			"poll_id":      tr.PollID,
			"at":           tr.At.UTC().Format(time.RFC3339),
			"on":           tr.On,
			"availability": tr.Status.Availability,
			"activity":     tr.Status.Activity,
			"success":      tr.Success,
			"error":        tr.Error,
		})
	}

	c.JSON(http.StatusOK, response)
}
