package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Scheduler drives a single job on a fixed cadence. A tick that arrives while
// the previous run is still executing is skipped rather than overlapped, and
// Notify triggers an immediate out-of-band run.
type Scheduler struct {
	name     string
	job      func(ctx context.Context)
	interval time.Duration
	notifyCh chan struct{}
	running  atomic.Bool
}

func New(name string, interval time.Duration, job func(ctx context.Context)) *Scheduler {
	return &Scheduler{
		name:     name,
		job:      job,
		interval: interval,
		notifyCh: make(chan struct{}, 1),
	}
}

// Notify triggers an immediate run. Non-blocking if a trigger is already pending.
func (s *Scheduler) Notify() {
	select {
	case s.notifyCh <- struct{}{}:
	default:
		// a trigger is already queued, skip
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	logrus.Infof("%s scheduler started (interval %s)", s.name, s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Infof("%s scheduler stopped", s.name)
			return
		case <-ticker.C:
			s.run(ctx)
		case <-s.notifyCh:
			s.run(ctx)
		}
	}
}

func (s *Scheduler) run(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		logrus.Debugf("%s scheduler: previous run still active, skipping tick", s.name)
		return
	}
	defer s.running.Store(false)

	s.job(ctx)
}
