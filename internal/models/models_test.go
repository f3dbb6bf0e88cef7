package models

import (
	"strings"
	"testing"
)

func TestParseSubscriptionDescriptor(t *testing.T) {
	raw := []byte(`{"endpoint":"https://fcm.googleapis.com/fcm/send/abc","expirationTime":null,"keys":{"p256dh":"BNc...","auth":"tBH..."}}`)
	d, err := ParseSubscriptionDescriptor(raw)
	if err != nil {
		t.Fatalf("ParseSubscriptionDescriptor() error: %v", err)
	}
	sub := d.ToSubscription("u1")
	if sub.UserID != "u1" || !sub.IsActive {
		t.Errorf("ToSubscription() = %+v, want active record for u1", sub)
	}
	if sub.P256dh != "BNc..." || sub.Auth != "tBH..." {
		t.Errorf("keys = %q/%q, want BNc.../tBH...", sub.P256dh, sub.Auth)
	}
}

func TestParseSubscriptionDescriptorRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "not json", raw: `endpoint=x`, want: "decode subscription"},
		{name: "missing endpoint", raw: `{"keys":{"p256dh":"a","auth":"b"}}`, want: "endpoint is required"},
		{name: "relative endpoint", raw: `{"endpoint":"/push","keys":{"p256dh":"a","auth":"b"}}`, want: "not an http(s) URL"},
		{name: "missing auth", raw: `{"endpoint":"https://push.example/a","keys":{"p256dh":"a"}}`, want: "keys"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSubscriptionDescriptor([]byte(tt.raw))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestEndpointOrigin(t *testing.T) {
	sub := Subscription{Endpoint: "https://updates.push.services.mozilla.com/wpush/v2/gAAAAABkverylongtokenvalue"}
	got := sub.EndpointOrigin()
	if !strings.HasPrefix(got, "https://updates.push.services.mozilla.com/wpush/") {
		t.Errorf("EndpointOrigin() = %q", got)
	}
	if strings.Contains(got, "verylongtokenvalue") {
		t.Errorf("EndpointOrigin() = %q, want the token truncated", got)
	}
}

func TestParsePriority(t *testing.T) {
	for in, want := range map[string]Priority{"": PriorityNormal, "LOW": PriorityLow, " high ": PriorityHigh, "normal": PriorityNormal} {
		got, err := ParsePriority(in)
		if err != nil || got != want {
			t.Errorf("ParsePriority(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParsePriority("urgent"); err == nil {
		t.Error("ParsePriority(urgent) succeeded, want error")
	}
}

func TestNotificationFieldsNormalizeAliases(t *testing.T) {
	f := NotificationFields{Title: "t", Message: "from message", URL: "/inbox", RequestID: " r1 "}
	f.Normalize()
	n := f.Notification()
	if n.Body != "from message" || n.ActionURL != "/inbox" || f.RequestID != "r1" {
		t.Errorf("Normalize() = %+v, want aliases applied", f)
	}

	explicit := NotificationFields{Title: "t", Body: "body wins", Message: "ignored"}
	explicit.Normalize()
	if explicit.Body != "body wins" {
		t.Errorf("Body = %q, want body wins", explicit.Body)
	}
}
