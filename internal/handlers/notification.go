package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dionfirmansyah/yonsense/internal/middleware"
	"github.com/dionfirmansyah/yonsense/internal/models"
	"github.com/dionfirmansyah/yonsense/internal/repository"
	"github.com/dionfirmansyah/yonsense/internal/services"
	"github.com/gin-gonic/gin"
)

// Dispatcher is the fan-out engine contract the handlers call. Validate runs
// the content checks of a send without dispatching.
type Dispatcher interface {
	Validate(n models.Notification) error
	SendToUser(ctx context.Context, userID string, n models.Notification) (models.DeliveryOutcome, error)
	SendToUsers(ctx context.Context, userIDs []string, n models.Notification) (models.BatchOutcome, error)
	SendToAllActive(ctx context.Context, n models.Notification) (models.BatchOutcome, error)
}

// IdempotencyChecker claims request ids.
type IdempotencyChecker interface {
	IsDuplicate(ctx context.Context, requestID string) (bool, error)
}

// EventPublisher announces finished dispatches.
type EventPublisher interface {
	PublishDispatch(event *models.DispatchEvent) error
}

// NotificationHandler exposes one endpoint per addressing mode. Idempotency,
// the dispatch log and the publisher are optional.
type NotificationHandler struct {
	dispatcher  Dispatcher
	idempotency IdempotencyChecker
	dispatches  repository.DispatchLog
	publisher   EventPublisher
	logger      *slog.Logger
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(
	dispatcher Dispatcher,
	idempotency IdempotencyChecker,
	dispatches repository.DispatchLog,
	publisher EventPublisher,
	logger *slog.Logger,
) *NotificationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationHandler{
		dispatcher:  dispatcher,
		idempotency: idempotency,
		dispatches:  dispatches,
		publisher:   publisher,
		logger:      logger,
	}
}

// SendToUser handles POST /v1/notifications/user.
func (h *NotificationHandler) SendToUser(c *gin.Context) {
	var req models.SendToUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	req.Normalize()
	if !h.validate(c, services.ValidateRecipient(req.UserID), req.Notification()) {
		return
	}
	if !h.begin(c, req.RequestID, models.ModeUser) {
		return
	}

	outcome, err := h.dispatcher.SendToUser(c.Request.Context(), req.UserID, req.Notification())
	if err != nil {
		h.fail(c, req.RequestID, models.ModeUser, err)
		return
	}

	stats := models.DeliveryStats{Total: outcome.Endpoints, Successful: outcome.Delivered, Failed: outcome.Failed}
	message := fmt.Sprintf("sent to %d of %d devices", outcome.Delivered, outcome.Endpoints)
	h.finish(c, req.RequestID, models.ModeUser, outcome.Success, stats, outcome.Pruned, outcome.Reason)
	respondOutcome(c, outcome.Success, message, outcome.Reason, stats, nil)
}

// SendToUsers handles POST /v1/notifications/users.
func (h *NotificationHandler) SendToUsers(c *gin.Context) {
	var req models.SendToUsersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	req.Normalize()
	if !h.validate(c, services.ValidateRecipients(req.UserIDs), req.Notification()) {
		return
	}
	if !h.begin(c, req.RequestID, models.ModeUsers) {
		return
	}

	batch, err := h.dispatcher.SendToUsers(c.Request.Context(), req.UserIDs, req.Notification())
	if err != nil {
		h.fail(c, req.RequestID, models.ModeUsers, err)
		return
	}

	success := batch.Stats.Successful > 0
	reason := ""
	if !success {
		reason = "no user received the notification"
	}
	message := fmt.Sprintf("sent to %d of %d users", batch.Stats.Successful, batch.Stats.Total)
	h.finish(c, req.RequestID, models.ModeUsers, success, batch.Stats, batch.Pruned, reason)

	var data interface{}
	if len(batch.FailedUsers) > 0 {
		data = gin.H{"failedUsers": batch.FailedUsers}
	}
	respondOutcome(c, success, message, reason, batch.Stats, data)
}

// Broadcast handles POST /v1/notifications/broadcast.
func (h *NotificationHandler) Broadcast(c *gin.Context) {
	var req models.BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	req.Normalize()
	if !h.validate(c, nil, req.Notification()) {
		return
	}
	if !h.begin(c, req.RequestID, models.ModeBroadcast) {
		return
	}

	batch, err := h.dispatcher.SendToAllActive(c.Request.Context(), req.Notification())
	if err != nil {
		h.fail(c, req.RequestID, models.ModeBroadcast, err)
		return
	}

	success := batch.Stats.Successful > 0
	reason := ""
	switch {
	case batch.Stats.Total == 0:
		reason = services.ErrNoActiveSubscriptions.Error()
	case !success:
		reason = "no device received the notification"
	}
	message := fmt.Sprintf("sent to %d of %d devices", batch.Stats.Successful, batch.Stats.Total)
	h.finish(c, req.RequestID, models.ModeBroadcast, success, batch.Stats, batch.Pruned, reason)
	respondOutcome(c, success, message, reason, batch.Stats, nil)
}

// validate rejects a malformed request before its id is claimed, so a
// corrected retry with the same id is still sent.
func (h *NotificationHandler) validate(c *gin.Context, targetErr error, n models.Notification) bool {
	err := targetErr
	if err == nil {
		err = h.dispatcher.Validate(n)
	}
	if err != nil {
		respondValidationError(c, err)
		return false
	}
	return true
}

// begin claims the request id. It returns false once the request has been
// answered as a duplicate or failed.
func (h *NotificationHandler) begin(c *gin.Context, requestID string, mode models.DispatchMode) bool {
	if requestID == "" || h.idempotency == nil {
		return true
	}
	ctx := c.Request.Context()

	dup, err := h.idempotency.IsDuplicate(ctx, requestID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to check idempotency", err)
		return false
	}
	if dup {
		h.respondDuplicate(c, requestID)
		return false
	}

	h.save(ctx, &models.DispatchRecord{RequestID: requestID, Mode: mode, Status: models.StatusProcessing})
	return true
}

// respondDuplicate reports the stored outcome of an already claimed id. A
// dispatch that failed stays unsuccessful on replay.
func (h *NotificationHandler) respondDuplicate(c *gin.Context, requestID string) {
	data := gin.H{"request_id": requestID, "status": models.StatusProcessing}
	var rec *models.DispatchRecord
	if h.dispatches != nil {
		if r, err := h.dispatches.Get(c.Request.Context(), requestID); err == nil {
			rec = r
			data = gin.H{"request_id": requestID, "status": rec.Status, "record": rec}
		}
	}
	if rec != nil && rec.Status == models.StatusFailed {
		c.JSON(http.StatusOK, models.ResponseEnvelope{
			Success: false,
			Message: "duplicate request",
			Data:    data,
			Error:   rec.Message,
		})
		return
	}
	respondSuccess(c, http.StatusOK, "duplicate request", data)
}

func (h *NotificationHandler) fail(c *gin.Context, requestID string, mode models.DispatchMode, err error) {
	if errors.Is(err, services.ErrInvalidRequest) || errors.Is(err, services.ErrOversizedPayload) {
		respondValidationError(c, err)
		return
	}
	if requestID != "" {
		h.save(c.Request.Context(), &models.DispatchRecord{
			RequestID: requestID,
			Mode:      mode,
			Status:    models.StatusFailed,
			Message:   err.Error(),
		})
	}
	h.logger.Error("push dispatch failed",
		slog.String("mode", string(mode)),
		slog.String("request_id", requestID),
		slog.String("correlation_id", c.GetString(middleware.CorrelationIDKey)),
		slog.Any("error", err),
	)
	respondError(c, http.StatusInternalServerError, "failed to dispatch notification", err)
}

func (h *NotificationHandler) finish(c *gin.Context, requestID string, mode models.DispatchMode, success bool, stats models.DeliveryStats, pruned int, reason string) {
	ctx := c.Request.Context()
	if requestID != "" {
		h.save(ctx, &models.DispatchRecord{
			RequestID:  requestID,
			Mode:       mode,
			Status:     models.StatusCompleted,
			Total:      stats.Total,
			Successful: stats.Successful,
			Failed:     stats.Failed,
			Pruned:     pruned,
			Message:    reason,
		})
	}
	if h.publisher == nil {
		return
	}
	event := &models.DispatchEvent{
		RequestID:     requestID,
		CorrelationID: c.GetString(middleware.CorrelationIDKey),
		Mode:          mode,
		Success:       success,
		Stats:         stats,
		Pruned:        pruned,
		CreatedAt:     time.Now().UTC(),
	}
	if err := h.publisher.PublishDispatch(event); err != nil {
		h.logger.Warn("failed to publish dispatch event", slog.String("request_id", requestID), slog.Any("error", err))
	}
}

func (h *NotificationHandler) save(ctx context.Context, rec *models.DispatchRecord) {
	if h.dispatches == nil {
		return
	}
	if err := h.dispatches.Save(ctx, rec); err != nil {
		h.logger.Warn("failed to record dispatch", slog.String("request_id", rec.RequestID), slog.Any("error", err))
	}
}
