package usecase

import (
	"context"
	"fmt"
	"time"

	"VolStack/internal/domain/models"
	"VolStack/internal/domain/repository"
	"VolStack/internal/services/align"
	"VolStack/internal/services/features"
	applogger "VolStack/pkg/logger"
)

// Regenerator rebuilds the historical feature table from the full bar
// history using the same engine the live path runs, plus the training
// label the live path never computes. Batch rows therefore line up with
// what the live path would have produced at each minute.
type Regenerator struct {
	bars    repository.BarStore
	store   repository.FeatureStore
	aligner *align.Aligner
	engine  *features.Engine
	l       *applogger.Logger

	indexTable   string
	vixTable     string
	constituents []models.Instrument
}

func NewRegenerator(
	bars repository.BarStore,
	featureStore repository.FeatureStore,
	aligner *align.Aligner,
	engine *features.Engine,
	l *applogger.Logger,
	indexTable, vixTable string,
	constituents []models.Instrument,
) *Regenerator {
	return &Regenerator{
		bars:         bars,
		store:        featureStore,
		aligner:      aligner,
		engine:       engine,
		l:            l,
		indexTable:   indexTable,
		vixTable:     vixTable,
		constituents: constituents,
	}
}

// Regenerate recomputes every feature row from full history and replaces
// the stored table.
func (r *Regenerator) Regenerate(ctx context.Context) error {
	start := time.Now()

	frame, err := r.buildFrame(ctx)
	if err != nil {
		return err
	}

	if err := r.engine.Compute(frame); err != nil {
		return fmt.Errorf("compute historical features: %w", err)
	}

	if err := r.store.ReplaceAll(ctx, frame, frame.Columns()); err != nil {
		return fmt.Errorf("persist historical features: %w", err)
	}

	r.l.Info("historical feature table regenerated",
		applogger.Int("rows", frame.Len()),
		applogger.Int("columns", len(frame.Columns())),
		applogger.Strings("degraded", frame.DegradedColumns()),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (r *Regenerator) buildFrame(ctx context.Context) (*models.Frame, error) {
	var epoch time.Time // zero lower bound reads full history
	now := time.Now()

	index, err := r.bars.Range(ctx, r.indexTable, epoch, now)
	if err != nil {
		return nil, fmt.Errorf("load index history: %w", err)
	}
	if len(index) == 0 {
		return nil, fmt.Errorf("load index history: table %s is empty", r.indexTable)
	}

	var vix []models.Bar
	if r.vixTable != "" {
		vix, err = r.bars.Range(ctx, r.vixTable, epoch, now)
		if err != nil {
			return nil, fmt.Errorf("load vix history: %w", err)
		}
	}

	series := make([]align.ConstituentSeries, 0, len(r.constituents))
	for _, ins := range r.constituents {
		bars, err := r.bars.Range(ctx, ins.Table, epoch, now)
		if err != nil {
			return nil, fmt.Errorf("load %s history: %w", ins.Name, err)
		}
		series = append(series, align.ConstituentSeries{Name: ins.Name, Bars: bars})
	}

	frame, err := r.aligner.JoinLeftFill(index, vix, series)
	if err != nil {
		return nil, fmt.Errorf("align history: %w", err)
	}
	return frame, nil
}
