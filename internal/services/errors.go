package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidRequest marks a request rejected before any dispatch.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrOversizedPayload marks a payload the push transport would refuse.
	ErrOversizedPayload = errors.New("payload too large")
	// ErrNoActiveSubscriptions is the reported reason for a user without endpoints.
	ErrNoActiveSubscriptions = errors.New("no active subscriptions")
)

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// DeliveryError is a failed delivery to one endpoint. StatusCode is zero
// when the push service never answered.
type DeliveryError struct {
	StatusCode int
	Permanent  bool
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		if e.Err != nil {
			return fmt.Sprintf("push service returned %d: %v", e.StatusCode, e.Err)
		}
		return fmt.Sprintf("push service returned %d", e.StatusCode)
	}
	if e.Err != nil {
		return "push delivery failed: " + e.Err.Error()
	}
	return "push delivery failed"
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// NewStatusError classifies a non-2xx push service response. 404 and 410
// mean the subscription is gone.
func NewStatusError(status int, detail string) *DeliveryError {
	derr := &DeliveryError{
		StatusCode: status,
		Permanent:  isGoneStatus(status),
	}
	if detail != "" {
		derr.Err = errors.New(detail)
	}
	return derr
}

func isGoneStatus(status int) bool {
	return status == http.StatusNotFound || status == http.StatusGone
}

// IsPermanent reports whether err is a delivery failure that proves the
// endpoint no longer exists. Only the status code counts.
func IsPermanent(err error) bool {
	var derr *DeliveryError
	return errors.As(err, &derr) && isGoneStatus(derr.StatusCode)
}

// classifyDeliveryError normalises any error returned by a Deliverer into a
// *DeliveryError. Permanence is derived from the status code whatever the
// deliverer claimed. Unknown errors and timeouts are transient.
func classifyDeliveryError(err error) *DeliveryError {
	var derr *DeliveryError
	if errors.As(err, &derr) {
		out := *derr
		out.Permanent = isGoneStatus(out.StatusCode)
		return &out
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &DeliveryError{Err: fmt.Errorf("delivery timed out: %w", err)}
	}
	return &DeliveryError{Err: err}
}
