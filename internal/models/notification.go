package models

import (
	"fmt"
	"strings"
)

// Priority is the caller-facing urgency of a notification.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// ParsePriority maps an optional priority string onto a Priority. Empty means normal.
func ParsePriority(v string) (Priority, error) {
	switch Priority(strings.ToLower(strings.TrimSpace(v))) {
	case "", PriorityNormal:
		return PriorityNormal, nil
	case PriorityLow:
		return PriorityLow, nil
	case PriorityHigh:
		return PriorityHigh, nil
	default:
		return "", fmt.Errorf("priority must be one of low, normal, high; got %q", v)
	}
}

// Notification is the transient content of one logical send.
type Notification struct {
	Title     string
	Body      string
	ActionURL string
	Priority  string
	Image     string
	Icon      string
	Badge     string
	Tag       string
	Data      map[string]interface{}
}

// WirePayload is the JSON document delivered to every targeted endpoint.
type WirePayload struct {
	Title string                 `json:"title"`
	Body  string                 `json:"body"`
	Icon  string                 `json:"icon,omitempty"`
	Badge string                 `json:"badge,omitempty"`
	Image string                 `json:"image,omitempty"`
	Tag   string                 `json:"tag,omitempty"`
	Data  map[string]interface{} `json:"data"`
}
