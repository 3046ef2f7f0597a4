// Package reconciler keeps one device's push registration consistent: after
// any run, exactly one valid row represents this device, and no other
// device's row has been touched. All destructive calls are keyed by an
// endpoint this device actually held, never by a device-type guess.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cmwillett/wapiti-sub000/internal/entity"
	"github.com/cmwillett/wapiti-sub000/pkg/queue"

	"github.com/sirupsen/logrus"
)

// Subscription is the device-capability view of a push subscription.
type Subscription struct {
	Endpoint  string
	P256dhKey string
	AuthKey   string
	Expired   bool // platform reports the subscription is no longer usable
}

// Platform abstracts the device's push capability.
type Platform interface {
	// Current returns the existing subscription, or nil when none exists.
	Current(ctx context.Context) (*Subscription, error)
	// Subscribe creates a fresh subscription, replacing any current one.
	Subscribe(ctx context.Context) (*Subscription, error)
	// Unsubscribe invalidates the current subscription.
	Unsubscribe(ctx context.Context) error
}

// Registrar is the store side of reconciliation (the registration service,
// locally or over HTTP).
type Registrar interface {
	Register(ctx context.Context, req *entity.RegisterDeviceRequest) (*entity.DeviceRegistration, bool, error)
	RemoveEndpoint(ctx context.Context, ownerID, endpoint string) error
}

type State string

const (
	StatePending     State = "pending"
	StateRegistered  State = "registered"
	StateUnavailable State = "unavailable" // surfaced to the settings page
)

type Config struct {
	Principal       string
	DeviceLabel     string
	HealthInterval  time.Duration // cadence once the registration is stable
	FailureInterval time.Duration // shortened cadence right after a failure
}

type Reconciler struct {
	platform  Platform
	registrar Registrar
	retry     *queue.RetryManager
	cfg       Config

	mu           sync.RWMutex
	state        State
	lastEndpoint string

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func New(platform Platform, registrar Registrar, retry *queue.RetryManager, cfg Config) *Reconciler {
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = 5 * time.Minute
	}
	if cfg.FailureInterval <= 0 {
		cfg.FailureInterval = 30 * time.Second
	}
	return &Reconciler{
		platform:  platform,
		registrar: registrar,
		retry:     retry,
		cfg:       cfg,
		state:     StatePending,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

func (r *Reconciler) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Reconciler) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Start runs the reconcile loop until the context is cancelled or Stop is
// called. Stable registrations are re-verified on the health interval;
// failures shorten the interval until recovery.
func (r *Reconciler) Start(ctx context.Context) {
	defer close(r.doneCh)
	logrus.Infof("Reconciler started for %s", r.cfg.Principal)

	for {
		interval := r.cfg.HealthInterval
		if err := r.EnsureRegistered(ctx); err != nil {
			interval = r.cfg.FailureInterval
		}

		select {
		case <-ctx.Done():
			logrus.Infof("Reconciler stopped for %s", r.cfg.Principal)
			return
		case <-r.stopCh:
			logrus.Infof("Reconciler stopped for %s", r.cfg.Principal)
			return
		case <-time.After(interval):
		}
	}
}

// Stop cleanly halts the loop (sign-out). An EnsureRegistered already in
// flight completes; no partial write is left behind because each store
// mutation is a single call.
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	<-r.doneCh
}

// EnsureRegistered reconciles the live subscription against the store.
// Idempotent: rerunning with an unchanged subscription performs zero writes.
func (r *Reconciler) EnsureRegistered(ctx context.Context) error {
	sub, err := r.platform.Current(ctx)
	if err != nil {
		r.setState(StateUnavailable)
		return fmt.Errorf("failed to read current subscription: %w", err)
	}

	if sub != nil && sub.Expired {
		// Platform invalidated the subscription; drop it and start over.
		// The old endpoint was this device's own, so removing its row is
		// within the reconciler's authority.
		if err := r.platform.Unsubscribe(ctx); err != nil {
			logrus.Warnf("Failed to drop expired subscription: %v", err)
		}
		r.removeOwnEndpoint(ctx, sub.Endpoint)
		sub = nil
	}

	if sub == nil {
		sub, err = r.subscribeWithBackoff(ctx)
		if err != nil {
			r.setState(StateUnavailable)
			return err
		}
	}

	r.mu.RLock()
	previous := r.lastEndpoint
	r.mu.RUnlock()
	if previous != "" && previous != sub.Endpoint {
		// The device moved to a new endpoint; clean up the row for the
		// endpoint it used to hold.
		r.removeOwnEndpoint(ctx, previous)
	}

	_, created, err := r.registrar.Register(ctx, &entity.RegisterDeviceRequest{
		OwnerID:     r.cfg.Principal,
		Endpoint:    sub.Endpoint,
		P256dhKey:   sub.P256dhKey,
		AuthKey:     sub.AuthKey,
		DeviceLabel: r.cfg.DeviceLabel,
	})
	if err != nil {
		r.setState(StateUnavailable)
		return fmt.Errorf("failed to register subscription: %w", err)
	}

	r.mu.Lock()
	r.lastEndpoint = sub.Endpoint
	r.state = StateRegistered
	r.mu.Unlock()

	if created {
		logrus.WithFields(logrus.Fields{
			"principal": r.cfg.Principal,
		}).Info("Registered push subscription")
	}
	return nil
}

// subscribeWithBackoff retries subscription creation with exponential backoff
// up to the retry manager's bound, then surfaces a persistent failure.
func (r *Reconciler) subscribeWithBackoff(ctx context.Context) (*Subscription, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		sub, err := r.platform.Subscribe(ctx)
		if err == nil {
			return sub, nil
		}
		lastErr = err

		retry, delay := r.retry.ShouldRetry(attempt+1, err)
		if !retry {
			break
		}

		logrus.Warnf("Subscription attempt %d failed, retrying in %s: %v", attempt+1, delay, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("%w: %v", entity.ErrSubscribeFailed, lastErr)
}

func (r *Reconciler) removeOwnEndpoint(ctx context.Context, endpoint string) {
	if endpoint == "" {
		return
	}
	err := r.registrar.RemoveEndpoint(ctx, r.cfg.Principal, endpoint)
	if err != nil && !errors.Is(err, entity.ErrRegistrationNotFound) {
		logrus.Warnf("Failed to remove stale endpoint row: %v", err)
	}
}
