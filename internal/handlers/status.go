package handlers

import (
	"errors"
	"net/http"

	"github.com/dionfirmansyah/yonsense/internal/repository"
	"github.com/gin-gonic/gin"
)

// StatusHandler handles status-related requests.
type StatusHandler struct {
	dispatches repository.DispatchLog
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(dispatches repository.DispatchLog) *StatusHandler {
	return &StatusHandler{dispatches: dispatches}
}

// GetStatus handles GET /v1/notifications/:request_id/status.
func (h *StatusHandler) GetStatus(c *gin.Context) {
	requestID := c.Param("request_id")
	if requestID == "" {
		respondError(c, http.StatusBadRequest, "request_id is required", nil)
		return
	}

	rec, err := h.dispatches.Get(c.Request.Context(), requestID)
	if errors.Is(err, repository.ErrDispatchNotFound) {
		respondError(c, http.StatusNotFound, "notification not found", err)
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to read notification status", err)
		return
	}

	respondSuccess(c, http.StatusOK, "notification status retrieved", rec)
}
