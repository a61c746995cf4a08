package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"agrimarket/internal/service"
)

type Processor interface {
	Process(ctx context.Context, now time.Time, force bool) (*service.ProcessResult, error)
}

// ScheduleWorker fires due order schedules on a cron spec.
type ScheduleWorker struct {
	proc Processor
	spec string
	zl   *zap.Logger
	now  func() time.Time
}

func NewScheduleWorker(proc Processor, spec string, zl *zap.Logger) *ScheduleWorker {
	return &ScheduleWorker{proc: proc, spec: spec, zl: zl, now: time.Now}
}

// Start blocks until ctx is cancelled, then waits for a running pass to finish.
func (w *ScheduleWorker) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(w.spec, func() { w.runOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid schedule cron %q: %w", w.spec, err)
	}

	w.zl.Info("starting schedule worker", zap.String("cron", w.spec))
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	w.zl.Info("schedule worker stopped")
	return nil
}

func (w *ScheduleWorker) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	res, err := w.proc.Process(ctx, w.now(), false)
	if err != nil {
		w.zl.Error("schedule pass failed", zap.Error(err))
		return
	}
	if res.Total > 0 {
		w.zl.Info("schedule pass finished",
			zap.Int("processed", res.Processed),
			zap.Int("total", res.Total))
	}
}
