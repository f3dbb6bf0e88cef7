package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dionfirmansyah/yonsense/internal/models"
)

// ErrSubscriptionNotFound is returned when no subscription matches a lookup.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// SubscriptionStore is the endpoint registry. Delete and Deactivate are
// idempotent: acting on a missing id is not an error.
type SubscriptionStore interface {
	ListActiveByUser(ctx context.Context, userID string) ([]models.Subscription, error)
	ListActive(ctx context.Context) ([]models.Subscription, error)
	GetByEndpoint(ctx context.Context, endpoint string) (*models.Subscription, error)
	// Upsert creates the subscription or, when the endpoint is already known,
	// reactivates it and moves it to sub.UserID.
	Upsert(ctx context.Context, sub *models.Subscription) error
	Deactivate(ctx context.Context, id string) error
	DeactivateByEndpoint(ctx context.Context, endpoint string) error
	Delete(ctx context.Context, id string) error
	// PurgeInactive removes inactive subscriptions last updated before cutoff.
	PurgeInactive(ctx context.Context, cutoff time.Time) (int64, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// DispatchLog persists per-request dispatch summaries.
type DispatchLog interface {
	Save(ctx context.Context, rec *models.DispatchRecord) error
	Get(ctx context.Context, requestID string) (*models.DispatchRecord, error)
}

// ErrDispatchNotFound is returned when no dispatch record exists for a request id.
var ErrDispatchNotFound = errors.New("dispatch record not found")
