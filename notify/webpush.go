package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/sony/gobreaker"

	"github.com/artsia/hr-portal/absence"
)

// WebPushConfig holds the VAPID credentials of the application server.
type WebPushConfig struct {
	PublicKey  string
	PrivateKey string
	Subject    string // mailto: or https: contact
	TTL        int    // seconds the push service keeps an undelivered message
	Timeout    time.Duration
}

// Enabled reports whether both VAPID keys are configured.
func (c WebPushConfig) Enabled() bool {
	return c.PublicKey != "" && c.PrivateKey != ""
}

// WebPush delivers payloads through the Web Push protocol. Calls go through a
// circuit breaker so an unavailable push service is not hammered on every
// notification.
type WebPush struct {
	cfg    WebPushConfig
	client *http.Client
	cb     *gobreaker.CircuitBreaker
}

var _ PushSender = (*WebPush)(nil)

// NewWebPush creates a sender. The breaker trips when at least half of the
// last ten or more pushes failed; expired endpoints do not count as failures.
func NewWebPush(cfg WebPushConfig) *WebPush {
	if cfg.TTL == 0 {
		cfg.TTL = 24 * 60 * 60
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "web-push",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrSubscriptionGone)
		},
	}

	return &WebPush{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		cb:     gobreaker.NewCircuitBreaker(settings),
	}
}

// Push sends payload to sub. A 404 or 410 from the push service yields
// ErrSubscriptionGone; an open breaker yields gobreaker.ErrOpenState.
func (w *WebPush) Push(ctx context.Context, sub absence.PushSubscription, payload []byte) error {
	_, err := w.cb.Execute(func() (interface{}, error) {
		return nil, w.send(ctx, sub, payload)
	})
	return err
}

func (w *WebPush) send(ctx context.Context, sub absence.PushSubscription, payload []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      w.client,
		Subscriber:      w.cfg.Subject,
		VAPIDPublicKey:  w.cfg.PublicKey,
		VAPIDPrivateKey: w.cfg.PrivateKey,
		TTL:             w.cfg.TTL,
		Urgency:         webpush.UrgencyNormal,
	})
	if err != nil {
		return fmt.Errorf("web push: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return ErrSubscriptionGone
	case resp.StatusCode >= 400:
		return fmt.Errorf("web push: push service returned %d", resp.StatusCode)
	}
	return nil
}

// State exposes the breaker state for health reporting.
func (w *WebPush) State() string {
	return w.cb.State().String()
}
