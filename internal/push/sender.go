// Package push implements the delivery backend adapters. Every channel is
// driven through the same Sender contract: one attempt against one device
// registration, classified as success, transient failure, or permanent
// failure. Permanent means the endpoint will never work again and the
// dispatcher should drop its registration.
package push

import (
	"context"

	"github.com/cmwillett/wapiti-sub000/internal/entity"
)

type Sender interface {
	Send(ctx context.Context, reg *entity.DeviceRegistration, payload *entity.Payload) *entity.DeliveryResult
}

// SMSSender and EmailSender are pluggable fallback channels. Transport is not
// wired up; they satisfy the Sender contract so a channel preference pointing
// at them degrades cleanly instead of crashing the dispatcher.
type SMSSender struct{}

func (s *SMSSender) Send(ctx context.Context, reg *entity.DeviceRegistration, payload *entity.Payload) *entity.DeliveryResult {
	return &entity.DeliveryResult{Success: false, Permanent: false, Err: entity.ErrChannelNotConfigured}
}

type EmailSender struct{}

func (s *EmailSender) Send(ctx context.Context, reg *entity.DeviceRegistration, payload *entity.Payload) *entity.DeliveryResult {
	return &entity.DeliveryResult{Success: false, Permanent: false, Err: entity.ErrChannelNotConfigured}
}
