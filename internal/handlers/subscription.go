package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dionfirmansyah/yonsense/internal/middleware"
	"github.com/dionfirmansyah/yonsense/internal/models"
	"github.com/dionfirmansyah/yonsense/internal/repository"
	"github.com/gin-gonic/gin"
)

// SubscriptionRegistry is the part of the store the registration endpoints write.
type SubscriptionRegistry interface {
	Upsert(ctx context.Context, sub *models.Subscription) error
	DeactivateByEndpoint(ctx context.Context, endpoint string) error
}

// SubscriptionHandler records browser push subscriptions.
type SubscriptionHandler struct {
	store          SubscriptionRegistry
	vapidPublicKey string
	logger         *slog.Logger
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(store SubscriptionRegistry, vapidPublicKey string, logger *slog.Logger) *SubscriptionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionHandler{store: store, vapidPublicKey: vapidPublicKey, logger: logger}
}

// Register handles POST /v1/subscriptions. A known endpoint is reactivated
// and moved to the registering user. With an authenticated subject the
// subscription always belongs to that subject.
func (h *SubscriptionHandler) Register(c *gin.Context) {
	var req models.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if subject := c.GetString(middleware.SubjectKey); subject != "" {
		if userID != "" && userID != subject {
			respondError(c, http.StatusForbidden, "cannot register a subscription for another user", nil)
			return
		}
		userID = subject
	}
	if userID == "" {
		respondValidationError(c, errors.New("userId is required"))
		return
	}
	if err := req.Subscription.Validate(); err != nil {
		respondValidationError(c, err)
		return
	}

	sub := req.Subscription.ToSubscription(userID)
	if err := h.store.Upsert(c.Request.Context(), &sub); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to save subscription", err)
		return
	}
	h.logger.Info("push subscription registered",
		slog.String("subscription_id", sub.ID),
		slog.String("user_id", sub.UserID),
		slog.String("endpoint", sub.EndpointOrigin()),
	)
	respondSuccess(c, http.StatusOK, "subscription saved", gin.H{
		"id":       sub.ID,
		"userId":   sub.UserID,
		"endpoint": sub.Endpoint,
		"isActive": sub.IsActive,
	})
}

// Unregister handles DELETE /v1/subscriptions.
func (h *SubscriptionHandler) Unregister(c *gin.Context) {
	var req models.UnsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	err := h.store.DeactivateByEndpoint(c.Request.Context(), strings.TrimSpace(req.Endpoint))
	if errors.Is(err, repository.ErrSubscriptionNotFound) {
		respondError(c, http.StatusNotFound, "subscription not found", err)
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to deactivate subscription", err)
		return
	}
	respondSuccess(c, http.StatusOK, "subscription deactivated", nil)
}

// VAPIDPublicKey handles GET /v1/push/vapid-public-key.
func (h *SubscriptionHandler) VAPIDPublicKey(c *gin.Context) {
	respondSuccess(c, http.StatusOK, "vapid public key", gin.H{"publicKey": h.vapidPublicKey})
}
