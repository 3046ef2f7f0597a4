package repository

import (
	"context"
	"time"

	"github.com/cmwillett/wapiti-sub000/internal/entity"
)

type ReminderRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, reminder *entity.TaskReminder) error
	GetByID(ctx context.Context, id int64) (*entity.TaskReminder, error)
	GetByOwner(ctx context.Context, ownerID string) ([]*entity.TaskReminder, error)
	Delete(ctx context.Context, id int64) error

	// Scan operations
	GetDue(ctx context.Context, now time.Time, futureTolerance time.Duration) ([]*entity.TaskReminder, error)
	GetDueForOwner(ctx context.Context, ownerID string, now time.Time, futureTolerance time.Duration) ([]*entity.TaskReminder, error)

	// Acknowledge flips acknowledged from false to true and reports whether
	// this caller won the flip. Racing dispatch passes rely on this being a
	// single conditional update.
	Acknowledge(ctx context.Context, id int64) (bool, error)

	// Action callbacks
	Complete(ctx context.Context, id int64) error
	Snooze(ctx context.Context, id int64, until time.Time) error
}

type RegistrationRepository interface {
	Create(ctx context.Context, reg *entity.DeviceRegistration) error
	GetByOwner(ctx context.Context, ownerID string) ([]*entity.DeviceRegistration, error)
	GetByOwnerAndEndpoint(ctx context.Context, ownerID, endpoint string) (*entity.DeviceRegistration, error)

	// Destructive operations are keyed strictly by endpoint identity, never
	// by device label or any other guess. DeleteByOwner backs the explicit
	// user wipe only.
	DeleteByEndpoint(ctx context.Context, ownerID, endpoint string) error
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)

	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}

type PreferenceRepository interface {
	// Get returns the owner's channel preference, defaulting to push when
	// the owner never set one.
	Get(ctx context.Context, ownerID string) (*entity.ChannelPreference, error)
	Set(ctx context.Context, pref *entity.ChannelPreference) error
}
