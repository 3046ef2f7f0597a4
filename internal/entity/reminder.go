package entity

import (
	"time"
)

type TaskReminder struct {
	ID           int64     `json:"id" db:"id"`
	OwnerID      string    `json:"owner_id" db:"owner_id"`
	Text         string    `json:"text" db:"text"`
	RemindAt     time.Time `json:"remind_at" db:"remind_at"`
	Acknowledged bool      `json:"acknowledged" db:"acknowledged"`
	Completed    bool      `json:"completed" db:"completed"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Eligible reports whether the reminder qualifies for dispatch: not completed,
// not yet acknowledged, and its time has arrived within the forward tolerance.
func (r *TaskReminder) Eligible(now time.Time, futureTolerance time.Duration) bool {
	if r.Completed || r.Acknowledged {
		return false
	}
	return !r.RemindAt.After(now.Add(futureTolerance))
}

// Stale reports whether the reminder has been undeliverable for longer than
// the staleness ceiling and should be force-acknowledged instead of retried.
func (r *TaskReminder) Stale(now time.Time, staleCeiling time.Duration) bool {
	return now.Sub(r.RemindAt) > staleCeiling
}

type CreateReminderRequest struct {
	OwnerID  string    `json:"owner_id"`
	Text     string    `json:"text" binding:"required"`
	RemindAt time.Time `json:"remind_at" binding:"required"`
}

// ReminderAction is the payload of a notification-click callback.
type ReminderAction struct {
	Action        string `json:"action" binding:"required"` // "complete" or "snooze"
	SnoozeMinutes int    `json:"snooze_minutes"`
}

const (
	ActionComplete = "complete"
	ActionSnooze   = "snooze"

	DefaultSnoozeMinutes = 15
)
