package models

import "strings"

// NotificationFields are the content fields shared by every send request.
// Message and URL are accepted as aliases for Body and ActionURL.
type NotificationFields struct {
	RequestID string                 `json:"requestId"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Message   string                 `json:"message"`
	ActionURL string                 `json:"actionUrl"`
	URL       string                 `json:"url"`
	Priority  string                 `json:"priority"`
	Image     string                 `json:"image"`
	Icon      string                 `json:"icon"`
	Badge     string                 `json:"badge"`
	Tag       string                 `json:"tag"`
	Data      map[string]interface{} `json:"data"`
}

// Normalize harmonizes legacy aliases.
func (f *NotificationFields) Normalize() {
	f.RequestID = strings.TrimSpace(f.RequestID)
	if strings.TrimSpace(f.Body) == "" {
		f.Body = f.Message
	}
	if strings.TrimSpace(f.ActionURL) == "" {
		f.ActionURL = f.URL
	}
}

// Notification returns the content as the engine consumes it.
func (f NotificationFields) Notification() Notification {
	return Notification{
		Title:     f.Title,
		Body:      f.Body,
		ActionURL: f.ActionURL,
		Priority:  f.Priority,
		Image:     f.Image,
		Icon:      f.Icon,
		Badge:     f.Badge,
		Tag:       f.Tag,
		Data:      f.Data,
	}
}

// SendToUserRequest addresses a single user.
type SendToUserRequest struct {
	UserID string `json:"userId"`
	NotificationFields
}

// SendToUsersRequest addresses an explicit list of users.
type SendToUsersRequest struct {
	UserIDs []string `json:"userIds"`
	NotificationFields
}

// BroadcastRequest addresses every active subscription.
type BroadcastRequest struct {
	NotificationFields
}

// SubscribeRequest registers a browser subscription for a user. An empty
// UserID falls back to the authenticated subject.
type SubscribeRequest struct {
	UserID       string                 `json:"userId"`
	Subscription SubscriptionDescriptor `json:"subscription"`
}

// UnsubscribeRequest deactivates a browser subscription by endpoint.
type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}
