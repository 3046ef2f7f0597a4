package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeysMatch(t *testing.T) {
	reg := DeviceRegistration{P256dhKey: "pk", AuthKey: "auth"}
	assert.True(t, reg.KeysMatch("pk", "auth"))
	assert.False(t, reg.KeysMatch("pk-rotated", "auth"))
	assert.False(t, reg.KeysMatch("pk", "auth-rotated"))
}

func TestDeviceLabelFor(t *testing.T) {
	now := time.Date(2026, 8, 31, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "Mobile 2026-08-31 09:30", DeviceLabelFor("mobile", now))
	assert.Equal(t, "Tablet 2026-08-31 09:30", DeviceLabelFor("Tablet", now))
	assert.Equal(t, "Desktop 2026-08-31 09:30", DeviceLabelFor("", now))
	assert.Equal(t, "Desktop 2026-08-31 09:30", DeviceLabelFor("smart fridge", now))
}
