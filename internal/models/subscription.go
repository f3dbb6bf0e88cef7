package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Subscription is one registered browser push endpoint owned by a user.
// Endpoint is unique across the registry.
type Subscription struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id" bson:"_id"`
	UserID    string    `gorm:"type:varchar(128);not null;index" json:"userId" bson:"user_id"`
	Endpoint  string    `gorm:"type:text;not null;uniqueIndex" json:"endpoint" bson:"endpoint"`
	P256dh    string    `gorm:"column:p256dh;type:text;not null" json:"p256dh" bson:"p256dh"`
	Auth      string    `gorm:"type:text;not null" json:"auth" bson:"auth"`
	IsActive  bool      `gorm:"not null;index" json:"isActive" bson:"is_active"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

// SubscriptionKeys holds the browser-generated encryption keys.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// SubscriptionDescriptor is the PushSubscription JSON a browser reports
// after registering for push.
type SubscriptionDescriptor struct {
	Endpoint       string           `json:"endpoint"`
	ExpirationTime *int64           `json:"expirationTime,omitempty"`
	Keys           SubscriptionKeys `json:"keys"`
}

// ParseSubscriptionDescriptor decodes and validates a serialized browser
// subscription. Callers past the registry boundary only ever see the typed value.
func ParseSubscriptionDescriptor(raw []byte) (SubscriptionDescriptor, error) {
	var d SubscriptionDescriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return SubscriptionDescriptor{}, fmt.Errorf("decode subscription: %w", err)
	}
	if err := d.Validate(); err != nil {
		return SubscriptionDescriptor{}, err
	}
	return d, nil
}

// Validate checks the endpoint is an absolute http(s) URL and both keys are present.
func (d SubscriptionDescriptor) Validate() error {
	endpoint := strings.TrimSpace(d.Endpoint)
	if endpoint == "" {
		return errors.New("subscription endpoint is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return fmt.Errorf("subscription endpoint %q is not an http(s) URL", endpoint)
	}
	if strings.TrimSpace(d.Keys.P256dh) == "" || strings.TrimSpace(d.Keys.Auth) == "" {
		return errors.New("subscription keys p256dh and auth are required")
	}
	return nil
}

// ToSubscription builds an active registry record for userID.
func (d SubscriptionDescriptor) ToSubscription(userID string) Subscription {
	return Subscription{
		UserID:   userID,
		Endpoint: strings.TrimSpace(d.Endpoint),
		P256dh:   strings.TrimSpace(d.Keys.P256dh),
		Auth:     strings.TrimSpace(d.Keys.Auth),
		IsActive: true,
	}
}

// EndpointOrigin returns scheme://host of the endpoint followed by at most
// 32 characters of its path, for log output.
func (s Subscription) EndpointOrigin() string {
	u, err := url.Parse(s.Endpoint)
	if err != nil || u.Host == "" {
		if len(s.Endpoint) > 40 {
			return s.Endpoint[:40]
		}
		return s.Endpoint
	}
	path := u.Path
	if len(path) > 32 {
		path = path[:32]
	}
	return u.Scheme + "://" + u.Host + path
}
