package service

import (
	"context"

	"github.com/cmwillett/wapiti-sub000/internal/entity"
)

// RegistrationService owns the store side of subscription reconciliation:
// every mutation it performs is keyed by the caller's own live endpoint,
// so one device can never destroy another device's registration.
type RegistrationService interface {
	// Register ensures exactly one current row exists for the request's
	// (owner, endpoint) pair. Reports whether a write happened; rerunning
	// with an unchanged subscription produces zero net writes.
	Register(ctx context.Context, req *entity.RegisterDeviceRequest) (*entity.DeviceRegistration, bool, error)

	List(ctx context.Context, ownerID string) ([]*entity.DeviceRegistration, error)
	RemoveEndpoint(ctx context.Context, ownerID, endpoint string) error

	// Wipe removes every registration for the owner. It is the only
	// operation allowed to touch endpoints other than the caller's.
	Wipe(ctx context.Context, ownerID string) (int64, error)
}

// DispatchService performs dispatch passes: find due reminders, fan delivery
// out to every registration of each owner, and acknowledge on the
// at-least-one-success policy.
type DispatchService interface {
	RunScanOnce(ctx context.Context) (*entity.DispatchReport, error)
	ScanOwner(ctx context.Context, ownerID string) (*entity.DispatchReport, error)
	SendTest(ctx context.Context, ownerID string) (*entity.DispatchReport, error)
}

// PreferenceService reads and writes an owner's delivery channel choice.
// Push is the default; the other channels resolve to whatever sender is
// configured for them.
type PreferenceService interface {
	Get(ctx context.Context, ownerID string) (*entity.ChannelPreference, error)
	Set(ctx context.Context, ownerID string, channel entity.DeliveryChannel) (*entity.ChannelPreference, error)
}

// ReminderService is the thin task-store surface consumed by the transport
// layer: reminder creation/listing plus the notification-click action
// callbacks (complete / snooze).
type ReminderService interface {
	Create(ctx context.Context, req *entity.CreateReminderRequest) (*entity.TaskReminder, error)
	GetByOwner(ctx context.Context, ownerID string) ([]*entity.TaskReminder, error)
	HandleAction(ctx context.Context, id int64, action *entity.ReminderAction) (*entity.TaskReminder, error)
}
