package service

import (
	"context"
	"sync"
	"time"

	"github.com/cmwillett/wapiti-sub000/internal/entity"

	"github.com/google/uuid"
)

// In-memory repository fakes. The registration fake enforces the same
// (owner, endpoint) uniqueness the real schema does, so tests exercise the
// invariant rather than assuming it.

type fakeReminderRepo struct {
	mu        sync.Mutex
	reminders map[int64]*entity.TaskReminder
	nextID    int64
}

func newFakeReminderRepo() *fakeReminderRepo {
	return &fakeReminderRepo{reminders: make(map[int64]*entity.TaskReminder)}
}

func (f *fakeReminderRepo) add(owner, text string, remindAt time.Time) *entity.TaskReminder {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	r := &entity.TaskReminder{
		ID:       f.nextID,
		OwnerID:  owner,
		Text:     text,
		RemindAt: remindAt,
	}
	f.reminders[r.ID] = r
	return r
}

func (f *fakeReminderRepo) Create(ctx context.Context, reminder *entity.TaskReminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	reminder.ID = f.nextID
	cp := *reminder
	f.reminders[reminder.ID] = &cp
	return nil
}

func (f *fakeReminderRepo) GetByID(ctx context.Context, id int64) (*entity.TaskReminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reminders[id]
	if !ok {
		return nil, entity.ErrReminderNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReminderRepo) GetByOwner(ctx context.Context, ownerID string) ([]*entity.TaskReminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.TaskReminder
	for _, r := range f.reminders {
		if r.OwnerID == ownerID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeReminderRepo) GetDue(ctx context.Context, now time.Time, futureTolerance time.Duration) ([]*entity.TaskReminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.TaskReminder
	for _, r := range f.reminders {
		if r.Eligible(now, futureTolerance) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeReminderRepo) GetDueForOwner(ctx context.Context, ownerID string, now time.Time, futureTolerance time.Duration) ([]*entity.TaskReminder, error) {
	due, _ := f.GetDue(ctx, now, futureTolerance)
	var out []*entity.TaskReminder
	for _, r := range due {
		if r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReminderRepo) Acknowledge(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reminders[id]
	if !ok || r.Acknowledged {
		return false, nil
	}
	r.Acknowledged = true
	return true, nil
}

func (f *fakeReminderRepo) Complete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reminders[id]
	if !ok {
		return entity.ErrReminderNotFound
	}
	r.Completed = true
	return nil
}

func (f *fakeReminderRepo) Snooze(ctx context.Context, id int64, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reminders[id]
	if !ok {
		return entity.ErrReminderNotFound
	}
	r.RemindAt = until
	r.Acknowledged = false
	return nil
}

func (f *fakeReminderRepo) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reminders[id]; !ok {
		return entity.ErrReminderNotFound
	}
	delete(f.reminders, id)
	return nil
}

type fakeRegistrationRepo struct {
	mu   sync.Mutex
	rows map[string]*entity.DeviceRegistration // key: owner|endpoint
}

func newFakeRegistrationRepo() *fakeRegistrationRepo {
	return &fakeRegistrationRepo{rows: make(map[string]*entity.DeviceRegistration)}
}

func regKey(owner, endpoint string) string { return owner + "|" + endpoint }

func (f *fakeRegistrationRepo) Create(ctx context.Context, reg *entity.DeviceRegistration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := regKey(reg.OwnerID, reg.Endpoint)
	if _, exists := f.rows[key]; exists {
		return entity.ErrDuplicateEndpoint
	}
	if reg.ID == "" {
		reg.ID = uuid.New().String()
	}
	now := time.Now()
	reg.CreatedAt = now
	reg.LastUsedAt = now
	cp := *reg
	f.rows[key] = &cp
	return nil
}

func (f *fakeRegistrationRepo) GetByOwner(ctx context.Context, ownerID string) ([]*entity.DeviceRegistration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.DeviceRegistration
	for _, r := range f.rows {
		if r.OwnerID == ownerID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRegistrationRepo) GetByOwnerAndEndpoint(ctx context.Context, ownerID, endpoint string) (*entity.DeviceRegistration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[regKey(ownerID, endpoint)]
	if !ok {
		return nil, entity.ErrRegistrationNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRegistrationRepo) DeleteByEndpoint(ctx context.Context, ownerID, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := regKey(ownerID, endpoint)
	if _, ok := f.rows[key]; !ok {
		return entity.ErrRegistrationNotFound
	}
	delete(f.rows, key)
	return nil
}

func (f *fakeRegistrationRepo) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	for key, r := range f.rows {
		if r.OwnerID == ownerID {
			delete(f.rows, key)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeRegistrationRepo) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			r.LastUsedAt = at
			return nil
		}
	}
	return entity.ErrRegistrationNotFound
}

func (f *fakeRegistrationRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakePreferenceRepo struct {
	mu    sync.Mutex
	prefs map[string]entity.DeliveryChannel
}

func newFakePreferenceRepo() *fakePreferenceRepo {
	return &fakePreferenceRepo{prefs: make(map[string]entity.DeliveryChannel)}
}

func (f *fakePreferenceRepo) Get(ctx context.Context, ownerID string) (*entity.ChannelPreference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	channel, ok := f.prefs[ownerID]
	if !ok {
		channel = entity.ChannelPush
	}
	return &entity.ChannelPreference{OwnerID: ownerID, Channel: channel}, nil
}

func (f *fakePreferenceRepo) Set(ctx context.Context, pref *entity.ChannelPreference) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefs[pref.OwnerID] = pref.Channel
	return nil
}

// fakeSender returns a scripted result per endpoint and counts attempts.
type fakeSender struct {
	mu       sync.Mutex
	results  map[string]*entity.DeliveryResult // by endpoint
	attempts map[string]int
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		results:  make(map[string]*entity.DeliveryResult),
		attempts: make(map[string]int),
	}
}

func (f *fakeSender) set(endpoint string, res *entity.DeliveryResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[endpoint] = res
}

func (f *fakeSender) Send(ctx context.Context, reg *entity.DeviceRegistration, payload *entity.Payload) *entity.DeliveryResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[reg.Endpoint]++
	if res, ok := f.results[reg.Endpoint]; ok {
		return res
	}
	return &entity.DeliveryResult{Success: true}
}

func (f *fakeSender) attemptCount(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[endpoint]
}
