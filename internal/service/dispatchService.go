package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	repository "github.com/cmwillett/wapiti-sub000/internal/database/postgres"
	"github.com/cmwillett/wapiti-sub000/internal/entity"
	"github.com/cmwillett/wapiti-sub000/internal/push"
	"github.com/cmwillett/wapiti-sub000/pkg/queue"

	"github.com/sirupsen/logrus"
)

// DispatchConfig tunes a dispatch pass.
type DispatchConfig struct {
	FutureTolerance time.Duration // reminders this far ahead are still due
	StaleCeiling    time.Duration // force-ack reminders older than this
}

type dispatchService struct {
	reminderRepo repository.ReminderRepository
	regRepo      repository.RegistrationRepository
	prefRepo     repository.PreferenceRepository
	senders      map[entity.DeliveryChannel]push.Sender
	lock         *queue.ScanLock // optional; nil means no cross-process skip
	dlq          queue.DLQHandler
	cfg          DispatchConfig
	now          func() time.Time
}

func NewDispatchService(
	reminderRepo repository.ReminderRepository,
	regRepo repository.RegistrationRepository,
	prefRepo repository.PreferenceRepository,
	senders map[entity.DeliveryChannel]push.Sender,
	lock *queue.ScanLock,
	dlq queue.DLQHandler,
	cfg DispatchConfig,
) DispatchService {
	if cfg.FutureTolerance <= 0 {
		cfg.FutureTolerance = 5 * time.Minute
	}
	if cfg.StaleCeiling <= 0 {
		cfg.StaleCeiling = 30 * time.Minute
	}
	return &dispatchService{
		reminderRepo: reminderRepo,
		regRepo:      regRepo,
		prefRepo:     prefRepo,
		senders:      senders,
		lock:         lock,
		dlq:          dlq,
		cfg:          cfg,
		now:          time.Now,
	}
}

// RunScanOnce performs one full dispatch pass over every owner's due
// reminders. Safe to invoke concurrently with client-driven scans: the
// conditional acknowledgment makes racing passes idempotent, and the
// advisory lock merely skips redundant server-side work.
func (s *dispatchService) RunScanOnce(ctx context.Context) (*entity.DispatchReport, error) {
	if s.lock != nil {
		acquired, err := s.lock.TryAcquire(ctx)
		if err != nil {
			logrus.Warnf("Scan lock unavailable, proceeding without it: %v", err)
		} else if !acquired {
			logrus.Info("Dispatch pass already running, skipping")
			return &entity.DispatchReport{Notifications: []entity.NotificationResult{}}, nil
		} else {
			defer func() {
				if err := s.lock.Release(context.Background()); err != nil {
					logrus.Warnf("Failed to release scan lock: %v", err)
				}
			}()
		}
	}

	now := s.now()
	due, err := s.reminderRepo.GetDue(ctx, now, s.cfg.FutureTolerance)
	if err != nil {
		return nil, fmt.Errorf("failed to scan due reminders: %w", err)
	}

	return s.dispatch(ctx, now, due), nil
}

// ScanOwner is the client-heartbeat path: one owner's due reminders only.
func (s *dispatchService) ScanOwner(ctx context.Context, ownerID string) (*entity.DispatchReport, error) {
	if ownerID == "" {
		return nil, entity.ErrInvalidInput
	}

	now := s.now()
	due, err := s.reminderRepo.GetDueForOwner(ctx, ownerID, now, s.cfg.FutureTolerance)
	if err != nil {
		return nil, fmt.Errorf("failed to scan due reminders for owner: %w", err)
	}

	return s.dispatch(ctx, now, due), nil
}

// SendTest pushes a test payload to every registration of the owner without
// touching any reminder state.
func (s *dispatchService) SendTest(ctx context.Context, ownerID string) (*entity.DispatchReport, error) {
	if ownerID == "" {
		return nil, entity.ErrInvalidInput
	}

	regs, err := s.regRepo.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load registrations: %w", err)
	}

	report := &entity.DispatchReport{Notifications: []entity.NotificationResult{}}
	if len(regs) == 0 {
		report.Notifications = append(report.Notifications, entity.NotificationResult{
			Method: string(entity.ChannelPush),
			Result: entity.AttemptResult{Success: false, Error: entity.ErrNoSubscriptions.Error()},
		})
		return report, nil
	}

	payload := entity.Payload{
		Title: "Test notification",
		Body:  "Push delivery is working",
		Tag:   "test",
	}
	outcome := s.fanOut(ctx, regs, &payload)
	report.Notifications = append(report.Notifications, entity.NotificationResult{
		Method: string(entity.ChannelPush),
		Result: outcome.toAttemptResult(),
	})
	if outcome.anySuccess {
		report.ProcessedCount = 1
	}
	return report, nil
}

// dispatch runs the fan-out and acknowledgment policy over a due set.
func (s *dispatchService) dispatch(ctx context.Context, now time.Time, due []*entity.TaskReminder) *entity.DispatchReport {
	report := &entity.DispatchReport{Notifications: []entity.NotificationResult{}}

	// Group by owner so registrations and preferences load once per owner
	byOwner := make(map[string][]*entity.TaskReminder)
	var owners []string
	for _, reminder := range due {
		if _, seen := byOwner[reminder.OwnerID]; !seen {
			owners = append(owners, reminder.OwnerID)
		}
		byOwner[reminder.OwnerID] = append(byOwner[reminder.OwnerID], reminder)
	}

	for _, owner := range owners {
		channel := s.ownerChannel(ctx, owner)
		regs, err := s.regRepo.GetByOwner(ctx, owner)
		if err != nil {
			logrus.Errorf("Failed to load registrations for %s: %v", owner, err)
			continue
		}

		for _, reminder := range byOwner[owner] {
			select {
			case <-ctx.Done():
				return report
			default:
			}
			s.dispatchOne(ctx, now, reminder, channel, regs, report)
		}
	}

	return report
}

func (s *dispatchService) dispatchOne(
	ctx context.Context,
	now time.Time,
	reminder *entity.TaskReminder,
	channel entity.DeliveryChannel,
	regs []*entity.DeviceRegistration,
	report *entity.DispatchReport,
) {
	// Reminders past the staleness ceiling are force-acknowledged so an
	// undeliverable reminder cannot retry forever; the degraded delivery is
	// recorded for operators instead.
	if reminder.Stale(now, s.cfg.StaleCeiling) {
		s.forceAcknowledge(ctx, reminder, report)
		return
	}

	var outcome fanOutResult
	switch channel {
	case entity.ChannelSMS, entity.ChannelEmail:
		outcome = s.sendVia(ctx, channel, reminder)
	case entity.ChannelPushSMSFallback:
		outcome = s.pushFanOut(ctx, reminder, regs)
		if !outcome.anySuccess {
			outcome = s.sendVia(ctx, entity.ChannelSMS, reminder)
			channel = entity.ChannelSMS
		} else {
			channel = entity.ChannelPush
		}
	default:
		channel = entity.ChannelPush
		outcome = s.pushFanOut(ctx, reminder, regs)
	}

	result := entity.NotificationResult{
		TaskID: reminder.ID,
		Method: string(channel),
	}

	if !outcome.anySuccess {
		result.Result = outcome.toAttemptResult()
		report.Notifications = append(report.Notifications, result)
		return
	}

	// At-least-one-success policy: acknowledgment is a single conditional
	// flip, so of two racing passes exactly one records the success.
	flipped, err := s.reminderRepo.Acknowledge(ctx, reminder.ID)
	if err != nil {
		result.Result = entity.AttemptResult{Success: false, Error: err.Error()}
		report.Notifications = append(report.Notifications, result)
		return
	}
	if !flipped {
		result.Result = entity.AttemptResult{Success: false, Error: entity.ErrAlreadyAcknowledged.Error()}
		report.Notifications = append(report.Notifications, result)
		return
	}

	report.ProcessedCount++
	result.Result = entity.AttemptResult{Success: true}
	report.Notifications = append(report.Notifications, result)
}

func (s *dispatchService) pushFanOut(ctx context.Context, reminder *entity.TaskReminder, regs []*entity.DeviceRegistration) fanOutResult {
	if len(regs) == 0 {
		return fanOutResult{firstErr: entity.ErrNoSubscriptions}
	}

	payload := entity.Payload{
		Title: "Reminder",
		Body:  reminder.Text,
		Tag:   fmt.Sprintf("reminder-%d", reminder.ID),
		Data: entity.PayloadData{
			TaskID: reminder.ID,
			Action: "open",
		},
	}
	return s.fanOut(ctx, regs, &payload)
}

// fanOut attempts delivery to every registration concurrently; there is no
// required order between devices. Exactly one attempt is made per
// registration.
func (s *dispatchService) fanOut(ctx context.Context, regs []*entity.DeviceRegistration, payload *entity.Payload) fanOutResult {
	sender := s.senders[entity.ChannelPush]
	if sender == nil {
		return fanOutResult{firstErr: entity.ErrChannelNotConfigured}
	}

	results := make([]*entity.DeliveryResult, len(regs))
	var wg sync.WaitGroup
	for i, reg := range regs {
		wg.Add(1)
		go func(i int, reg *entity.DeviceRegistration) {
			defer wg.Done()
			results[i] = sender.Send(ctx, reg, payload)
		}(i, reg)
	}
	wg.Wait()

	now := s.now()
	var outcome fanOutResult
	for i, res := range results {
		reg := regs[i]
		switch {
		case res.Success:
			outcome.anySuccess = true
			if err := s.regRepo.TouchLastUsed(ctx, reg.ID, now); err != nil {
				logrus.Warnf("Failed to update last_used_at for %s: %v", reg.ID, err)
			}
		case res.Permanent:
			// Self-healing: dead endpoints leave the table immediately
			if err := s.regRepo.DeleteByEndpoint(ctx, reg.OwnerID, reg.Endpoint); err != nil &&
				!errors.Is(err, entity.ErrRegistrationNotFound) {
				logrus.Errorf("Failed to remove dead registration %s: %v", reg.ID, err)
			} else {
				logrus.WithFields(logrus.Fields{
					"owner_id": reg.OwnerID,
					"label":    reg.DeviceLabel,
				}).Info("Removed permanently failed registration")
			}
			if outcome.firstErr == nil {
				outcome.firstErr = res.Err
			}
		default:
			// Transient: registration preserved, retried next cycle
			if outcome.firstErr == nil {
				outcome.firstErr = res.Err
			}
		}
	}
	return outcome
}

func (s *dispatchService) sendVia(ctx context.Context, channel entity.DeliveryChannel, reminder *entity.TaskReminder) fanOutResult {
	sender := s.senders[channel]
	if sender == nil {
		return fanOutResult{firstErr: entity.ErrChannelNotConfigured}
	}

	payload := entity.Payload{
		Title: "Reminder",
		Body:  reminder.Text,
		Tag:   fmt.Sprintf("reminder-%d", reminder.ID),
		Data:  entity.PayloadData{TaskID: reminder.ID, Action: "open"},
	}
	res := sender.Send(ctx, nil, &payload)
	return fanOutResult{anySuccess: res.Success, firstErr: res.Err}
}

func (s *dispatchService) forceAcknowledge(ctx context.Context, reminder *entity.TaskReminder, report *entity.DispatchReport) {
	flipped, err := s.reminderRepo.Acknowledge(ctx, reminder.ID)
	if err != nil {
		logrus.Errorf("Failed to force-acknowledge stale reminder %d: %v", reminder.ID, err)
		return
	}
	if !flipped {
		return
	}

	logrus.WithFields(logrus.Fields{
		"task_id":   reminder.ID,
		"owner_id":  reminder.OwnerID,
		"remind_at": reminder.RemindAt,
	}).Warn("Degraded delivery: staleness ceiling exceeded, reminder force-acknowledged")

	if s.dlq != nil {
		event := &queue.DegradedEvent{
			TaskID:   reminder.ID,
			OwnerID:  reminder.OwnerID,
			Reason:   "staleness ceiling exceeded",
			RemindAt: reminder.RemindAt,
		}
		if err := s.dlq.Record(ctx, event); err != nil {
			logrus.Errorf("Failed to record degraded event for %d: %v", reminder.ID, err)
		}
	}

	report.Notifications = append(report.Notifications, entity.NotificationResult{
		TaskID: reminder.ID,
		Method: "none",
		Result: entity.AttemptResult{Success: false, Error: "staleness ceiling exceeded"},
	})
}

func (s *dispatchService) ownerChannel(ctx context.Context, ownerID string) entity.DeliveryChannel {
	pref, err := s.prefRepo.Get(ctx, ownerID)
	if err != nil {
		logrus.Warnf("Failed to load channel preference for %s, defaulting to push: %v", ownerID, err)
		return entity.ChannelPush
	}
	if pref.Channel == "" {
		return entity.ChannelPush
	}
	return pref.Channel
}

// fanOutResult summarizes one reminder's fan-out across registrations.
type fanOutResult struct {
	anySuccess bool
	firstErr   error
}

func (f fanOutResult) toAttemptResult() entity.AttemptResult {
	if f.anySuccess {
		return entity.AttemptResult{Success: true}
	}
	res := entity.AttemptResult{Success: false}
	if f.firstErr != nil {
		res.Error = f.firstErr.Error()
	}
	return res
}
