package services

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dionfirmansyah/yonsense/internal/models"
)

var fixedNow = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

func decodeWire(t *testing.T, raw []byte) models.WirePayload {
	t.Helper()
	var wire models.WirePayload
	if err := json.Unmarshal(raw, &wire); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	return wire
}

func TestBuildPayloadFoldsActionURLAndPriority(t *testing.T) {
	raw, err := BuildPayload(models.Notification{
		Title:     "Hello",
		Body:      "World",
		ActionURL: "https://x.test",
		Priority:  "high",
	}, PayloadOptions{}, fixedNow)
	if err != nil {
		t.Fatalf("BuildPayload() error: %v", err)
	}
	wire := decodeWire(t, raw)
	if wire.Data["url"] != "https://x.test" {
		t.Errorf("data.url = %v, want https://x.test", wire.Data["url"])
	}
	if wire.Data["priority"] != "high" {
		t.Errorf("data.priority = %v, want high", wire.Data["priority"])
	}
	if ts, ok := wire.Data["timestamp"].(float64); !ok || int64(ts) != fixedNow.UnixMilli() {
		t.Errorf("data.timestamp = %v, want %d", wire.Data["timestamp"], fixedNow.UnixMilli())
	}
}

func TestBuildPayloadDefaults(t *testing.T) {
	raw, err := BuildPayload(note("t", "b"), PayloadOptions{DefaultIcon: "/icon.png", DefaultBadge: "/badge.png"}, fixedNow)
	if err != nil {
		t.Fatalf("BuildPayload() error: %v", err)
	}
	wire := decodeWire(t, raw)
	if wire.Data["url"] != "/" || wire.Data["priority"] != "normal" {
		t.Errorf("data = %v, want url=/ priority=normal", wire.Data)
	}
	if wire.Icon != "/icon.png" || wire.Badge != "/badge.png" {
		t.Errorf("icon=%q badge=%q, want defaults", wire.Icon, wire.Badge)
	}
	if strings.Contains(string(raw), `"image"`) {
		t.Errorf("payload %s carries an image although none was supplied", raw)
	}
}

func TestBuildPayloadMergesDataWithReservedKeysWinning(t *testing.T) {
	raw, err := BuildPayload(models.Notification{
		Title:     "t",
		Body:      "b",
		ActionURL: "/orders/7",
		Image:     "https://cdn.example/banner.png",
		Tag:       "order-7",
		Data: map[string]interface{}{
			"url":     "https://evil.example",
			"orderId": "7",
			"meta":    map[string]interface{}{"source": "dashboard"},
		},
	}, PayloadOptions{}, fixedNow)
	if err != nil {
		t.Fatalf("BuildPayload() error: %v", err)
	}
	wire := decodeWire(t, raw)
	if wire.Data["url"] != "/orders/7" {
		t.Errorf("data.url = %v, want /orders/7", wire.Data["url"])
	}
	if wire.Data["orderId"] != "7" {
		t.Errorf("data.orderId = %v, want 7", wire.Data["orderId"])
	}
	if meta, ok := wire.Data["meta"].(map[string]interface{}); !ok || meta["source"] != "dashboard" {
		t.Errorf("data.meta = %v, want nested source", wire.Data["meta"])
	}
	if wire.Image != "https://cdn.example/banner.png" {
		t.Errorf("image = %q, want the caller image verbatim", wire.Image)
	}
	if wire.Tag != "order-7" {
		t.Errorf("tag = %q, want order-7", wire.Tag)
	}
}

func TestBuildPayloadRejections(t *testing.T) {
	tests := []struct {
		name string
		n    models.Notification
		opts PayloadOptions
		want error
	}{
		{name: "empty title", n: note("", "b"), want: ErrInvalidRequest},
		{name: "empty body", n: note("t", " "), want: ErrInvalidRequest},
		{name: "bad priority", n: models.Notification{Title: "t", Body: "b", Priority: "urgent"}, want: ErrInvalidRequest},
		{name: "inline image", n: models.Notification{Title: "t", Body: "b", Image: "data:image/png;base64,iVBORw0KGgo="}, want: ErrOversizedPayload},
		{name: "relative image without slash", n: models.Notification{Title: "t", Body: "b", Image: "banner.png"}, want: ErrInvalidRequest},
		{name: "ftp icon", n: models.Notification{Title: "t", Body: "b", Icon: "ftp://files.example/i.png"}, want: ErrInvalidRequest},
		{name: "too large", n: note("t", strings.Repeat("x", 4000)), opts: PayloadOptions{MaxBytes: 3072}, want: ErrOversizedPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildPayload(tt.n, tt.opts, fixedNow)
			if !errors.Is(err, tt.want) {
				t.Fatalf("BuildPayload() error = %v, want %v", err, tt.want)
			}
		})
	}
}
