package usecase

import (
	"context"
	"fmt"
	"time"

	"VolStack/internal/domain/repository"
	applogger "VolStack/pkg/logger"
	"VolStack/pkg/util"
)

// SyncOrchestrator decides, once per cycle, whether the bar store is fresh
// enough to predict from, and triggers the external backfill when it is
// not. A backfill that succeeds is always followed by a regeneration of
// the historical feature table so batch and live features stay aligned.
type SyncOrchestrator struct {
	bars       repository.BarStore
	backfiller repository.Backfiller
	regen      *Regenerator
	metrics    repository.Metrics
	l          *applogger.Logger

	indexTable  string
	staleAfter  time.Duration
	initialDays int

	now func() time.Time
}

func NewSyncOrchestrator(
	bars repository.BarStore,
	backfiller repository.Backfiller,
	regen *Regenerator,
	metrics repository.Metrics,
	l *applogger.Logger,
	indexTable string,
	staleAfter time.Duration,
	initialDays int,
) *SyncOrchestrator {
	return &SyncOrchestrator{
		bars:        bars,
		backfiller:  backfiller,
		regen:       regen,
		metrics:     metrics,
		l:           l,
		indexTable:  indexTable,
		staleAfter:  staleAfter,
		initialDays: initialDays,
		now:         time.Now,
	}
}

// Sync checks store freshness and backfills when needed. It returns nil
// when the store is ready to predict from; any error means the caller
// should skip this cycle and try again on the next tick.
func (o *SyncOrchestrator) Sync(ctx context.Context) error {
	// Bars are minute-resolution; sub-minute clock drift should not flip
	// the staleness verdict.
	now := util.TruncateMinute(o.now())

	latest, ok, err := o.bars.LatestTimestamp(ctx, o.indexTable)
	if err != nil {
		return fmt.Errorf("check store freshness: %w", err)
	}

	if !ok {
		// Empty store: pull the whole initial window before anything else.
		o.l.Info("bar store empty, running initial backfill",
			applogger.String("table", o.indexTable),
			applogger.Int("days", o.initialDays),
		)
		err := o.backfiller.Backfill(ctx, now.AddDate(0, 0, -o.initialDays), now)
		o.metrics.RecordBackfill("initial", err)
		if err != nil {
			return fmt.Errorf("initial backfill: %w", err)
		}
		return o.regenerate(ctx)
	}

	age := now.Sub(latest)
	o.metrics.RecordStoreStaleness(age)

	if age <= o.staleAfter {
		return nil
	}

	o.l.Info("bar store stale, running incremental backfill",
		applogger.String("table", o.indexTable),
		applogger.Time("latest", latest),
		applogger.Duration("age_ms", age),
	)
	err = o.backfiller.Backfill(ctx, latest, now)
	o.metrics.RecordBackfill("incremental", err)
	if err != nil {
		return fmt.Errorf("incremental backfill: %w", err)
	}
	return o.regenerate(ctx)
}

func (o *SyncOrchestrator) regenerate(ctx context.Context) error {
	if o.regen == nil {
		return nil
	}
	if err := o.regen.Regenerate(ctx); err != nil {
		return fmt.Errorf("regenerate features after backfill: %w", err)
	}
	return nil
}
