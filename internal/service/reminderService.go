package service

import (
	"context"
	"fmt"
	"time"

	repository "github.com/cmwillett/wapiti-sub000/internal/database/postgres"
	"github.com/cmwillett/wapiti-sub000/internal/entity"
)

// ScanNotifier requests an out-of-band dispatch pass.
type ScanNotifier interface {
	Notify()
}

type reminderService struct {
	repo     repository.ReminderRepository
	notifier ScanNotifier // optional
}

func NewReminderService(repo repository.ReminderRepository, notifier ScanNotifier) ReminderService {
	return &reminderService{repo: repo, notifier: notifier}
}

func (s *reminderService) Create(ctx context.Context, req *entity.CreateReminderRequest) (*entity.TaskReminder, error) {
	if req.OwnerID == "" || req.Text == "" {
		return nil, entity.ErrInvalidInput
	}

	reminder := &entity.TaskReminder{
		OwnerID:  req.OwnerID,
		Text:     req.Text,
		RemindAt: req.RemindAt,
	}
	if err := s.repo.Create(ctx, reminder); err != nil {
		return nil, err
	}

	// A reminder created already inside the due window should not wait a
	// full tick.
	if s.notifier != nil && !reminder.RemindAt.After(time.Now()) {
		s.notifier.Notify()
	}
	return reminder, nil
}

func (s *reminderService) GetByOwner(ctx context.Context, ownerID string) ([]*entity.TaskReminder, error) {
	if ownerID == "" {
		return nil, entity.ErrInvalidInput
	}
	return s.repo.GetByOwner(ctx, ownerID)
}

// HandleAction applies a notification-click callback synchronously, so the
// very next scan pass reflects the user's choice.
func (s *reminderService) HandleAction(ctx context.Context, id int64, action *entity.ReminderAction) (*entity.TaskReminder, error) {
	switch action.Action {
	case entity.ActionComplete:
		if err := s.repo.Complete(ctx, id); err != nil {
			return nil, err
		}
	case entity.ActionSnooze:
		minutes := action.SnoozeMinutes
		if minutes <= 0 {
			minutes = entity.DefaultSnoozeMinutes
		}
		until := time.Now().Add(time.Duration(minutes) * time.Minute)
		if err := s.repo.Snooze(ctx, id, until); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", entity.ErrInvalidAction, action.Action)
	}

	return s.repo.GetByID(ctx, id)
}
