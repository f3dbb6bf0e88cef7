package services

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dionfirmansyah/yonsense/internal/models"
)

const defaultActionURL = "/"

// PayloadOptions control how wire payloads are built.
type PayloadOptions struct {
	MaxBytes     int
	DefaultIcon  string
	DefaultBadge string
}

// preparedPayload is the serialized notification shared by every endpoint
// of one request.
type preparedPayload struct {
	body     []byte
	priority models.Priority
}

// ValidateNotification rejects notifications that must never be dispatched.
func ValidateNotification(n models.Notification) error {
	if strings.TrimSpace(n.Title) == "" {
		return invalidf("title is required")
	}
	if strings.TrimSpace(n.Body) == "" {
		return invalidf("body is required")
	}
	if _, err := models.ParsePriority(n.Priority); err != nil {
		return invalidf("%v", err)
	}
	refs := []struct{ field, value string }{
		{"image", n.Image},
		{"icon", n.Icon},
		{"badge", n.Badge},
	}
	for _, ref := range refs {
		if err := validateReference(ref.field, ref.value); err != nil {
			return err
		}
	}
	return nil
}

// validateReference accepts absolute http(s) URLs and root-relative paths.
// Inline data URIs are refused since they blow through the transport limit.
func validateReference(field, ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	if strings.HasPrefix(strings.ToLower(ref), "data:") {
		return fmt.Errorf("%w: %s must be a URL reference, not inline data", ErrOversizedPayload, field)
	}
	if strings.HasPrefix(ref, "/") {
		return nil
	}
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return invalidf("%s must be an http(s) URL or a root-relative path", field)
	}
	return nil
}

// BuildPayload validates n and serializes the wire payload. The action URL
// and priority are folded into data and override caller-supplied keys of the
// same name.
func BuildPayload(n models.Notification, opts PayloadOptions, now time.Time) ([]byte, error) {
	p, err := buildPayload(n, opts, now)
	if err != nil {
		return nil, err
	}
	return p.body, nil
}

func buildPayload(n models.Notification, opts PayloadOptions, now time.Time) (*preparedPayload, error) {
	if err := ValidateNotification(n); err != nil {
		return nil, err
	}
	priority, _ := models.ParsePriority(n.Priority)

	actionURL := strings.TrimSpace(n.ActionURL)
	if actionURL == "" {
		actionURL = defaultActionURL
	}

	data := make(map[string]interface{}, len(n.Data)+3)
	for k, v := range n.Data {
		data[k] = v
	}
	data["url"] = actionURL
	data["priority"] = string(priority)
	data["timestamp"] = now.UnixMilli()

	wire := models.WirePayload{
		Title: strings.TrimSpace(n.Title),
		Body:  strings.TrimSpace(n.Body),
		Icon:  firstNonEmpty(n.Icon, opts.DefaultIcon),
		Badge: firstNonEmpty(n.Badge, opts.DefaultBadge),
		Image: strings.TrimSpace(n.Image),
		Tag:   strings.TrimSpace(n.Tag),
		Data:  data,
	}
	body, err := json.Marshal(wire)
	if err != nil {
		return nil, invalidf("payload is not serializable: %v", err)
	}
	if opts.MaxBytes > 0 && len(body) > opts.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrOversizedPayload, len(body), opts.MaxBytes)
	}
	return &preparedPayload{body: body, priority: priority}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
