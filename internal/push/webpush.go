package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cmwillett/wapiti-sub000/config"
	"github.com/cmwillett/wapiti-sub000/internal/entity"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/sirupsen/logrus"
)

// WebPushSender delivers the canonical payload over the Web Push protocol.
// VAPID authorization headers are computed per call by the webpush library
// from the operator's signing credential; the credential itself is config
// state only and is never logged.
type WebPushSender struct {
	publicKey  string
	privateKey string
	subscriber string
	ttl        int
	client     *http.Client
}

func NewWebPushSender(cfg *config.PushConfig) *WebPushSender {
	return &WebPushSender{
		publicKey:  cfg.VAPIDPublicKey,
		privateKey: cfg.VAPIDPrivateKey,
		subscriber: cfg.Subscriber,
		ttl:        cfg.TTL,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *WebPushSender) Send(ctx context.Context, reg *entity.DeviceRegistration, payload *entity.Payload) *entity.DeliveryResult {
	body, err := json.Marshal(payload)
	if err != nil {
		return &entity.DeliveryResult{Err: fmt.Errorf("failed to marshal payload: %w", err)}
	}

	sub := &webpush.Subscription{
		Endpoint: reg.Endpoint,
		Keys: webpush.Keys{
			P256dh: reg.P256dhKey,
			Auth:   reg.AuthKey,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, sub, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             s.ttl,
	})
	if err != nil {
		// Network-level failure: retryable on the next scan cycle
		return &entity.DeliveryResult{Err: fmt.Errorf("push delivery failed: %w", err)}
	}
	defer resp.Body.Close()

	return classifyResponse(resp.StatusCode, reg)
}

func classifyResponse(status int, reg *entity.DeviceRegistration) *entity.DeliveryResult {
	switch {
	case status >= 200 && status < 300:
		return &entity.DeliveryResult{Success: true}
	case status == http.StatusNotFound || status == http.StatusGone:
		// The push service reports the endpoint no longer exists; the
		// registration should be removed.
		logrus.WithFields(logrus.Fields{
			"registration_id": reg.ID,
			"status":          status,
		}).Info("Push endpoint gone")
		return &entity.DeliveryResult{Permanent: true, Err: entity.ErrEndpointGone}
	default:
		return &entity.DeliveryResult{Err: fmt.Errorf("push service returned status %d", status)}
	}
}
