package reconciler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cmwillett/wapiti-sub000/internal/entity"
	"github.com/cmwillett/wapiti-sub000/pkg/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlatform struct {
	mu             sync.Mutex
	current        *Subscription
	subscribeErr   error
	subscribeCalls int
	nextEndpoint   string
}

func (f *fakePlatform) Current(ctx context.Context) (*Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil, nil
	}
	cp := *f.current
	return &cp, nil
}

func (f *fakePlatform) Subscribe(ctx context.Context) (*Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribeCalls++
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	endpoint := f.nextEndpoint
	if endpoint == "" {
		endpoint = "https://push.example/fresh"
	}
	f.current = &Subscription{
		Endpoint:  endpoint,
		P256dhKey: "pk-" + endpoint,
		AuthKey:   "auth-" + endpoint,
	}
	cp := *f.current
	return &cp, nil
}

func (f *fakePlatform) Unsubscribe(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = nil
	return nil
}

// fakeRegistrar keeps rows by (owner, endpoint) with the same replace-on-
// rotated-keys semantics as the registration service.
type fakeRegistrar struct {
	mu       sync.Mutex
	rows     map[string]*entity.DeviceRegistration
	removals []string
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{rows: make(map[string]*entity.DeviceRegistration)}
}

func (f *fakeRegistrar) Register(ctx context.Context, req *entity.RegisterDeviceRequest) (*entity.DeviceRegistration, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := req.OwnerID + "|" + req.Endpoint
	if existing, ok := f.rows[key]; ok && existing.KeysMatch(req.P256dhKey, req.AuthKey) {
		return existing, false, nil
	}
	reg := &entity.DeviceRegistration{
		OwnerID:     req.OwnerID,
		Endpoint:    req.Endpoint,
		P256dhKey:   req.P256dhKey,
		AuthKey:     req.AuthKey,
		DeviceLabel: req.DeviceLabel,
	}
	f.rows[key] = reg
	return reg, true, nil
}

func (f *fakeRegistrar) RemoveEndpoint(ctx context.Context, ownerID, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := ownerID + "|" + endpoint
	f.removals = append(f.removals, endpoint)
	if _, ok := f.rows[key]; !ok {
		return entity.ErrRegistrationNotFound
	}
	delete(f.rows, key)
	return nil
}

func (f *fakeRegistrar) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func newTestReconciler(platform *fakePlatform, registrar *fakeRegistrar) *Reconciler {
	return New(platform, registrar, queue.NewRetryManager(3, time.Millisecond), Config{
		Principal:       "alice",
		DeviceLabel:     "Test device",
		HealthInterval:  time.Minute,
		FailureInterval: time.Second,
	})
}

func TestEnsureRegistered_FreshDevice(t *testing.T) {
	platform := &fakePlatform{}
	registrar := newFakeRegistrar()
	r := newTestReconciler(platform, registrar)

	require.NoError(t, r.EnsureRegistered(context.Background()))
	assert.Equal(t, StateRegistered, r.State())
	assert.Equal(t, 1, platform.subscribeCalls)
	assert.Equal(t, 1, registrar.count())
}

func TestEnsureRegistered_Idempotent(t *testing.T) {
	platform := &fakePlatform{}
	registrar := newFakeRegistrar()
	r := newTestReconciler(platform, registrar)
	ctx := context.Background()

	require.NoError(t, r.EnsureRegistered(ctx))
	require.NoError(t, r.EnsureRegistered(ctx))
	require.NoError(t, r.EnsureRegistered(ctx))

	// The subscription existed after the first run, so no resubscribe and
	// no extra rows or removals.
	assert.Equal(t, 1, platform.subscribeCalls)
	assert.Equal(t, 1, registrar.count())
	assert.Empty(t, registrar.removals)
}

func TestEnsureRegistered_ExpiredSubscriptionReplaced(t *testing.T) {
	platform := &fakePlatform{nextEndpoint: "https://push.example/new"}
	registrar := newFakeRegistrar()
	r := newTestReconciler(platform, registrar)
	ctx := context.Background()

	// Seed the store and platform with an expired subscription.
	_, _, err := registrar.Register(ctx, &entity.RegisterDeviceRequest{
		OwnerID: "alice", Endpoint: "https://push.example/old",
		P256dhKey: "pk-old", AuthKey: "auth-old",
	})
	require.NoError(t, err)
	platform.current = &Subscription{
		Endpoint: "https://push.example/old",
		Expired:  true,
	}

	require.NoError(t, r.EnsureRegistered(ctx))
	assert.Equal(t, StateRegistered, r.State())

	// The old row is gone and exactly one row represents the device.
	assert.Contains(t, registrar.removals, "https://push.example/old")
	assert.Equal(t, 1, registrar.count())
	_, ok := registrar.rows["alice|https://push.example/new"]
	assert.True(t, ok)
}

func TestEnsureRegistered_EndpointChangeCleansOldRow(t *testing.T) {
	platform := &fakePlatform{nextEndpoint: "https://push.example/first"}
	registrar := newFakeRegistrar()
	r := newTestReconciler(platform, registrar)
	ctx := context.Background()

	require.NoError(t, r.EnsureRegistered(ctx))

	// The platform silently moved the device to a new endpoint.
	platform.mu.Lock()
	platform.current = &Subscription{
		Endpoint:  "https://push.example/second",
		P256dhKey: "pk-second",
		AuthKey:   "auth-second",
	}
	platform.mu.Unlock()

	require.NoError(t, r.EnsureRegistered(ctx))
	assert.Contains(t, registrar.removals, "https://push.example/first")
	assert.Equal(t, 1, registrar.count())
}

func TestEnsureRegistered_BoundedSubscribeRetries(t *testing.T) {
	platform := &fakePlatform{subscribeErr: errors.New("permission denied")}
	registrar := newFakeRegistrar()
	r := newTestReconciler(platform, registrar)

	err := r.EnsureRegistered(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrSubscribeFailed)
	assert.Equal(t, StateUnavailable, r.State())

	// Attempts are bounded by the retry manager, never infinite.
	assert.Equal(t, 3, platform.subscribeCalls)
	assert.Equal(t, 0, registrar.count())
}

func TestEnsureRegistered_DoesNotTouchOtherDevices(t *testing.T) {
	platform := &fakePlatform{nextEndpoint: "https://push.example/mine"}
	registrar := newFakeRegistrar()
	r := newTestReconciler(platform, registrar)
	ctx := context.Background()

	// Another device of the same owner is already registered.
	_, _, err := registrar.Register(ctx, &entity.RegisterDeviceRequest{
		OwnerID: "alice", Endpoint: "https://push.example/other-device",
		P256dhKey: "pk-other", AuthKey: "auth-other",
	})
	require.NoError(t, err)

	require.NoError(t, r.EnsureRegistered(ctx))
	assert.Equal(t, 2, registrar.count())
	assert.NotContains(t, registrar.removals, "https://push.example/other-device")
}

func TestStartStop(t *testing.T) {
	platform := &fakePlatform{}
	registrar := newFakeRegistrar()
	r := newTestReconciler(platform, registrar)

	go r.Start(context.Background())

	require.Eventually(t, func() bool {
		return r.State() == StateRegistered
	}, time.Second, 10*time.Millisecond)

	r.Stop()
	assert.Equal(t, 1, registrar.count())
}
