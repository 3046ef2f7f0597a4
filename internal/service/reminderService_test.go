package service

import (
	"context"
	"testing"
	"time"

	"github.com/cmwillett/wapiti-sub000/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	calls int
}

func (f *fakeNotifier) Notify() { f.calls++ }

func TestCreateReminder_TriggersScanWhenDue(t *testing.T) {
	repo := newFakeReminderRepo()
	notifier := &fakeNotifier{}
	svc := NewReminderService(repo, notifier)
	ctx := context.Background()

	// Already due: the scan should not wait for the next tick.
	_, err := svc.Create(ctx, &entity.CreateReminderRequest{
		OwnerID:  "alice",
		Text:     "overdue already",
		RemindAt: time.Now().Add(-time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, notifier.calls)

	// Future reminder: the periodic scan will pick it up in time.
	_, err = svc.Create(ctx, &entity.CreateReminderRequest{
		OwnerID:  "alice",
		Text:     "tomorrow",
		RemindAt: time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, notifier.calls)
}

func TestCreateReminder_InvalidInput(t *testing.T) {
	svc := NewReminderService(newFakeReminderRepo(), nil)

	_, err := svc.Create(context.Background(), &entity.CreateReminderRequest{
		OwnerID: "alice",
	})
	assert.ErrorIs(t, err, entity.ErrInvalidInput)
}

func TestHandleAction_Complete(t *testing.T) {
	repo := newFakeReminderRepo()
	svc := NewReminderService(repo, nil)
	ctx := context.Background()

	reminder := repo.add("alice", "finish report", time.Now().Add(-time.Minute))

	updated, err := svc.HandleAction(ctx, reminder.ID, &entity.ReminderAction{Action: entity.ActionComplete})
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	assert.False(t, updated.Eligible(time.Now(), 5*time.Minute))
}

func TestHandleAction_SnoozeRoundTrip(t *testing.T) {
	repo := newFakeReminderRepo()
	svc := NewReminderService(repo, nil)
	ctx := context.Background()

	reminder := repo.add("alice", "take a break", time.Now().Add(-time.Minute))

	// Simulate delivery having acknowledged the reminder.
	flipped, err := repo.Acknowledge(ctx, reminder.ID)
	require.NoError(t, err)
	require.True(t, flipped)

	updated, err := svc.HandleAction(ctx, reminder.ID, &entity.ReminderAction{
		Action:        entity.ActionSnooze,
		SnoozeMinutes: 10,
	})
	require.NoError(t, err)

	// Snoozing pushes the time forward and clears acknowledged, so the
	// reminder fires again at the new time.
	assert.False(t, updated.Acknowledged)
	assert.False(t, updated.Completed)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), updated.RemindAt, 5*time.Second)
	assert.False(t, updated.Eligible(time.Now(), 5*time.Minute))
	assert.True(t, updated.Eligible(time.Now().Add(11*time.Minute), 5*time.Minute))
}

func TestHandleAction_SnoozeDefaultDuration(t *testing.T) {
	repo := newFakeReminderRepo()
	svc := NewReminderService(repo, nil)

	reminder := repo.add("alice", "default snooze", time.Now().Add(-time.Minute))

	updated, err := svc.HandleAction(context.Background(), reminder.ID, &entity.ReminderAction{
		Action: entity.ActionSnooze,
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(entity.DefaultSnoozeMinutes*time.Minute), updated.RemindAt, 5*time.Second)
}

func TestHandleAction_Invalid(t *testing.T) {
	repo := newFakeReminderRepo()
	svc := NewReminderService(repo, nil)

	reminder := repo.add("alice", "bad action", time.Now())

	_, err := svc.HandleAction(context.Background(), reminder.ID, &entity.ReminderAction{Action: "dismiss"})
	assert.ErrorIs(t, err, entity.ErrInvalidAction)
}

func TestHandleAction_NotFound(t *testing.T) {
	svc := NewReminderService(newFakeReminderRepo(), nil)

	_, err := svc.HandleAction(context.Background(), 42, &entity.ReminderAction{Action: entity.ActionComplete})
	assert.ErrorIs(t, err, entity.ErrReminderNotFound)
}
