package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/dionfirmansyah/yonsense/internal/models"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	breakerTripAfter = 5
	breakerCooldown  = 30 * time.Second
	errorBodyLimit   = 512
)

// WebPushConfig configures VAPID authentication and outbound limits.
type WebPushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	// Subscriber is the VAPID contact, a mailto: address or https URL.
	Subscriber string
	TTL        time.Duration
	// RatePerSec bounds outbound requests across all push services. Zero disables the limit.
	RatePerSec int
	HTTPClient webpush.HTTPClient
}

// WebPushClient delivers encrypted payloads over the Web Push protocol. Each
// push service host gets its own circuit breaker so one failing vendor does
// not slow deliveries to the others.
type WebPushClient struct {
	cfg     WebPushConfig
	limiter *rate.Limiter
	logger  *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewWebPushClient creates a new WebPushClient.
func NewWebPushClient(cfg WebPushConfig, logger *slog.Logger) *WebPushClient {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	// webpush-go prefixes mailto: itself.
	cfg.Subscriber = strings.TrimPrefix(cfg.Subscriber, "mailto:")
	if logger == nil {
		logger = slog.Default()
	}
	c := &WebPushClient{
		cfg:      cfg,
		logger:   logger,
		breakers: map[string]*gobreaker.CircuitBreaker{},
	}
	if cfg.RatePerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	return c
}

// PublicKey returns the VAPID public key browsers subscribe with.
func (c *WebPushClient) PublicKey() string {
	return c.cfg.VAPIDPublicKey
}

// Send encrypts payload for sub and hands it to the push service.
func (c *WebPushClient) Send(ctx context.Context, sub models.Subscription, payload []byte, priority models.Priority) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &DeliveryError{Err: err}
		}
	}

	host := endpointHost(sub.Endpoint)
	_, err := c.breaker(host).Execute(func() (interface{}, error) {
		return nil, c.send(ctx, sub, payload, priority)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &DeliveryError{Err: fmt.Errorf("push service %s unavailable: %w", host, err)}
	}
	return err
}

func (c *WebPushClient) send(ctx context.Context, sub models.Subscription, payload []byte, priority models.Priority) error {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      c.cfg.HTTPClient,
		Subscriber:      c.cfg.Subscriber,
		VAPIDPublicKey:  c.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: c.cfg.VAPIDPrivateKey,
		TTL:             int(c.cfg.TTL / time.Second),
		Urgency:         urgencyFor(priority),
	})
	if err != nil {
		return &DeliveryError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	return NewStatusError(resp.StatusCode, strings.TrimSpace(string(body)))
}

func (c *WebPushClient) breaker(host string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cb, ok := c.breakers[host]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    host,
		Timeout: breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripAfter
		},
		// An expired subscription says nothing about the push service's health.
		IsSuccessful: func(err error) bool {
			return err == nil || IsPermanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("push service breaker state changed",
				slog.String("host", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	c.breakers[host] = cb
	return cb
}

func urgencyFor(p models.Priority) webpush.Urgency {
	switch p {
	case models.PriorityLow:
		return webpush.UrgencyLow
	case models.PriorityHigh:
		return webpush.UrgencyHigh
	default:
		return webpush.UrgencyNormal
	}
}

func endpointHost(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

// GenerateVAPIDKeys returns a fresh VAPID key pair.
func GenerateVAPIDKeys() (privateKey, publicKey string, err error) {
	return webpush.GenerateVAPIDKeys()
}
