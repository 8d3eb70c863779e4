package usecase

import (
	"context"
	"errors"
	"time"

	"VolStack/internal/domain/repository"
	applogger "VolStack/pkg/logger"
)

// CycleLoop drives the engine: one strictly sequential sync-then-predict
// pass per tick, no overlap, no in-cycle retries. A failed cycle is
// logged and the next tick tries again from scratch.
type CycleLoop struct {
	sync     *SyncOrchestrator
	pipeline *PredictionPipeline
	metrics  repository.Metrics
	l        *applogger.Logger
	interval time.Duration
}

func NewCycleLoop(
	sync *SyncOrchestrator,
	pipeline *PredictionPipeline,
	metrics repository.Metrics,
	l *applogger.Logger,
	interval time.Duration,
) *CycleLoop {
	return &CycleLoop{
		sync:     sync,
		pipeline: pipeline,
		metrics:  metrics,
		l:        l,
		interval: interval,
	}
}

// Run blocks until the context is cancelled. Cancellation is only honored
// at the top of the loop; an in-flight cycle always finishes.
func (c *CycleLoop) Run(ctx context.Context) error {
	c.l.Info("cycle loop started", applogger.Duration("interval_ms", c.interval))

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// First cycle runs immediately, not after the first tick.
	c.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			c.l.Info("cycle loop stopped")
			return ctx.Err()
		case <-ticker.C:
			c.runCycle(ctx)
		}
	}
}

func (c *CycleLoop) runCycle(ctx context.Context) {
	start := time.Now()
	outcome := "ok"

	if err := c.sync.Sync(ctx); err != nil {
		outcome = "sync_error"
		c.metrics.RecordError("sync")
		c.l.Error("sync failed, skipping cycle", applogger.Error(err))
	} else if _, err := c.pipeline.RunOnce(ctx); err != nil {
		if errors.Is(err, ErrInsufficientHistory) {
			outcome = "skipped"
		} else {
			outcome = "error"
			c.metrics.RecordError("cycle")
			c.l.Error("prediction cycle failed", applogger.Error(err))
		}
	}

	c.metrics.RecordCycle(outcome)
	c.metrics.RecordCycleDuration(time.Since(start))
}
