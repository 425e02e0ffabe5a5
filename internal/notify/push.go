// Package notify holds the channel transports the dispatcher talks to: SMTP
// email via pkg/mail and Web Push via VAPID. Transports distinguish transient
// delivery failures from permanently dead endpoints so the caller can decide
// whether to drop a subscription.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/permtrackhq/permtrack/internal/models"
)

// ErrPushNotConfigured signals that the push client was constructed without
// VAPID credentials; sending is impossible until configuration is fixed.
var ErrPushNotConfigured = errors.New("push: VAPID credentials not configured")

// ErrSubscriptionGone reports a permanently invalid subscription (the browser
// revoked or expired it). The caller should delete the stored subscription;
// retrying is pointless.
var ErrSubscriptionGone = errors.New("push: subscription no longer valid")

// PushMessage is the payload delivered to the service worker.
type PushMessage struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	// Tag groups notifications so the browser collapses repeats.
	Tag string `json:"tag,omitempty"`
}

// PushSender delivers a message to one subscription endpoint.
type PushSender interface {
	Send(ctx context.Context, sub models.PushSubscription, msg PushMessage) error
}

// PushConfig carries the VAPID key pair and contact address.
type PushConfig struct {
	Enabled         bool
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	// Subscriber is the contact address push services may use, per RFC 8292.
	Subscriber string
	TTLSeconds int
}

type webPushClient struct {
	cfg PushConfig
}

// NewPushClient builds a Web Push sender. It returns ErrPushNotConfigured
// when push is enabled but the key pair is missing, so the misconfiguration
// surfaces at startup instead of on every send.
func NewPushClient(cfg PushConfig) (PushSender, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if strings.TrimSpace(cfg.VAPIDPublicKey) == "" || strings.TrimSpace(cfg.VAPIDPrivateKey) == "" {
		return nil, ErrPushNotConfigured
	}
	if cfg.TTLSeconds <= 0 {
		cfg.TTLSeconds = 12 * 60 * 60
	}
	return &webPushClient{cfg: cfg}, nil
}

func (c *webPushClient) Send(ctx context.Context, sub models.PushSubscription, msg PushMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("push: marshal payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		Subscriber:      c.cfg.Subscriber,
		VAPIDPublicKey:  c.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: c.cfg.VAPIDPrivateKey,
		TTL:             c.cfg.TTLSeconds,
		Topic:           msg.Tag,
	})
	if err != nil {
		return fmt.Errorf("push: send: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return ErrSubscriptionGone
	case resp.StatusCode >= 400:
		return fmt.Errorf("push: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
