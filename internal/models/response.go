package models

// ResponseEnvelope is the canonical response shape of the push API.
type ResponseEnvelope struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Data    interface{}    `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	Stats   *DeliveryStats `json:"stats,omitempty"`
}
