package worker

import (
	"context"
	"time"

	"github.com/cmwillett/wapiti-sub000/internal/service"
	"github.com/cmwillett/wapiti-sub000/pkg/scheduler"

	"github.com/sirupsen/logrus"
)

// ScanWorker drives dispatch passes on a fixed in-process cadence. It runs
// concurrently with the cron-scheduled pass and with client heartbeats; the
// dispatcher's conditional acknowledgment keeps the races harmless.
type ScanWorker struct {
	dispatchService service.DispatchService
	sched           *scheduler.Scheduler
}

func NewScanWorker(dispatchService service.DispatchService, interval time.Duration) *ScanWorker {
	w := &ScanWorker{dispatchService: dispatchService}
	w.sched = scheduler.New("dispatch", interval, w.scan)
	return w
}

func (w *ScanWorker) Start(ctx context.Context) {
	w.sched.Start(ctx)
}

// Notify requests an immediate pass, e.g. right after a reminder is created
// with a remind time that is already due.
func (w *ScanWorker) Notify() {
	w.sched.Notify()
}

func (w *ScanWorker) scan(ctx context.Context) {
	report, err := w.dispatchService.RunScanOnce(ctx)
	if err != nil {
		logrus.Errorf("Dispatch pass failed: %v", err)
		return
	}

	if report.ProcessedCount > 0 || len(report.Notifications) > 0 {
		logrus.WithFields(logrus.Fields{
			"processed": report.ProcessedCount,
			"attempted": len(report.Notifications),
		}).Info("Dispatch pass completed")
	}
}
