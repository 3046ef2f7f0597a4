package entity

import (
	"time"
)

// DeviceRegistration represents one device's ability to receive pushes:
// an opaque endpoint plus the two credential keys required for encrypted
// delivery. At most one row may exist per (owner, endpoint) pair; the
// schema enforces this with a unique constraint.
type DeviceRegistration struct {
	ID          string    `json:"id" db:"id"`
	OwnerID     string    `json:"owner_id" db:"owner_id"`
	Endpoint    string    `json:"endpoint" db:"endpoint"`
	P256dhKey   string    `json:"p256dh_key" db:"p256dh_key"`
	AuthKey     string    `json:"auth_key" db:"auth_key"`
	DeviceLabel string    `json:"device_label" db:"device_label"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	LastUsedAt  time.Time `json:"last_used_at" db:"last_used_at"`
}

// KeysMatch reports whether the stored credential keys equal the live
// subscription's keys. A mismatch means the platform rotated the
// subscription and the row is stale.
func (r *DeviceRegistration) KeysMatch(p256dh, auth string) bool {
	return r.P256dhKey == p256dh && r.AuthKey == auth
}

type RegisterDeviceRequest struct {
	OwnerID     string `json:"owner_id"`
	Endpoint    string `json:"endpoint" binding:"required"`
	P256dhKey   string `json:"p256dh_key" binding:"required"`
	AuthKey     string `json:"auth_key" binding:"required"`
	DeviceLabel string `json:"device_label"`
}

// DeviceLabelFor builds a best-effort display label from a user agent hint.
// Labels are a display aid only, never a key for lookups or deletes.
func DeviceLabelFor(userAgentHint string, now time.Time) string {
	kind := "Desktop"
	switch userAgentHint {
	case "mobile", "Mobile":
		kind = "Mobile"
	case "tablet", "Tablet":
		kind = "Tablet"
	}
	return kind + " " + now.Format("2006-01-02 15:04")
}
