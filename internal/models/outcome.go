package models

import "time"

// DeliveryStats is the aggregate count reported to callers.
type DeliveryStats struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// DeliveryOutcome is the result of sending to one user.
type DeliveryOutcome struct {
	UserID string
	// Success is true when at least one endpoint accepted the payload.
	Success bool
	// Reason explains a failed outcome.
	Reason    string
	Endpoints int
	Delivered int
	Failed    int
	Pruned    int
	// Err is set when the registry itself failed for this user.
	Err error
}

// UserFailure names a user whose send failed and why.
type UserFailure struct {
	UserID string `json:"userId"`
	Reason string `json:"reason"`
}

// BatchOutcome aggregates a batch or broadcast send. For batches the stats
// count users; for broadcasts they count endpoints.
type BatchOutcome struct {
	Stats       DeliveryStats
	Pruned      int
	FailedUsers []UserFailure
}

// DispatchMode names the addressing shape of a request.
type DispatchMode string

const (
	ModeUser      DispatchMode = "user"
	ModeUsers     DispatchMode = "users"
	ModeBroadcast DispatchMode = "broadcast"
)

// DispatchRecord is the persisted summary of one idempotent request.
type DispatchRecord struct {
	RequestID  string       `gorm:"type:varchar(64);primaryKey" json:"requestId" bson:"_id"`
	Mode       DispatchMode `gorm:"type:varchar(16)" json:"mode" bson:"mode"`
	Status     string       `gorm:"type:varchar(16)" json:"status" bson:"status"`
	Total      int          `json:"total" bson:"total"`
	Successful int          `json:"successful" bson:"successful"`
	Failed     int          `json:"failed" bson:"failed"`
	Pruned     int          `json:"pruned" bson:"pruned"`
	Message    string       `json:"message,omitempty" bson:"message,omitempty"`
	CreatedAt  time.Time    `json:"createdAt" bson:"created_at"`
	UpdatedAt  time.Time    `json:"updatedAt" bson:"updated_at"`
}

// Dispatch statuses.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// DispatchEvent is published after every fan-out.
type DispatchEvent struct {
	RequestID     string        `json:"request_id,omitempty"`
	CorrelationID string        `json:"correlation_id,omitempty"`
	Mode          DispatchMode  `json:"mode"`
	Success       bool          `json:"success"`
	Stats         DeliveryStats `json:"stats"`
	Pruned        int           `json:"pruned"`
	CreatedAt     time.Time     `json:"created_at"`
}
