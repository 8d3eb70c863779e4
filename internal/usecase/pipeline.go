package usecase

import (
	"context"
	"fmt"
	"time"

	"VolStack/internal/domain/models"
	"VolStack/internal/domain/repository"
	"VolStack/internal/services/align"
	"VolStack/internal/services/features"
	"VolStack/internal/services/model"
	"VolStack/internal/services/signal"
	"VolStack/pkg/cache"
	applogger "VolStack/pkg/logger"
)

// LatestSignalKey is the cache key holding the most recent prediction.
const LatestSignalKey = "signal:latest"

// SignalNotifier receives each persisted prediction for live fan-out.
type SignalNotifier interface {
	Notify(rec *models.PredictionRecord)
}

// PredictionPipeline runs one full prediction: fetch the trailing bar
// window, align, derive features, score both models, decide the signal,
// persist and fan out. It holds no state between runs.
type PredictionPipeline struct {
	bars        repository.BarStore
	predictions repository.PredictionStore
	publisher   repository.SignalPublisher
	cache       cache.Service
	aligner     *align.Aligner
	engine      *features.Engine
	vol         *model.VolatilityPredictor
	dir         *model.DirectionPredictor
	decider     *signal.Decider
	metrics     repository.Metrics
	notifier    SignalNotifier
	l           *applogger.Logger

	indexTable   string
	vixTable     string
	constituents []models.Instrument
	windowBars   int
	minRows      int
	cacheTTL     time.Duration
}

// PipelineConfig carries the market geometry the pipeline fetches over.
type PipelineConfig struct {
	IndexTable   string
	VIXTable     string
	Constituents []models.Instrument
	WindowBars   int
	MinRows      int
	CacheTTL     time.Duration
}

func NewPredictionPipeline(
	bars repository.BarStore,
	predictions repository.PredictionStore,
	publisher repository.SignalPublisher,
	cacheSvc cache.Service,
	aligner *align.Aligner,
	engine *features.Engine,
	vol *model.VolatilityPredictor,
	dir *model.DirectionPredictor,
	decider *signal.Decider,
	metrics repository.Metrics,
	l *applogger.Logger,
	cfg PipelineConfig,
) *PredictionPipeline {
	return &PredictionPipeline{
		bars:         bars,
		predictions:  predictions,
		publisher:    publisher,
		cache:        cacheSvc,
		aligner:      aligner,
		engine:       engine,
		vol:          vol,
		dir:          dir,
		decider:      decider,
		metrics:      metrics,
		l:            l,
		indexTable:   cfg.IndexTable,
		vixTable:     cfg.VIXTable,
		constituents: cfg.Constituents,
		windowBars:   cfg.WindowBars,
		minRows:      cfg.MinRows,
		cacheTTL:     cfg.CacheTTL,
	}
}

// SetNotifier attaches a live fan-out observer (e.g. the websocket hub).
func (p *PredictionPipeline) SetNotifier(n SignalNotifier) { p.notifier = n }

// RunOnce executes one prediction and returns the persisted record.
// ErrInsufficientHistory means the cycle should be skipped quietly.
func (p *PredictionPipeline) RunOnce(ctx context.Context) (*models.PredictionRecord, error) {
	frame, err := p.fetchFrame(ctx)
	if err != nil {
		return nil, err
	}

	if frame.Len() < p.minRows {
		p.l.Warn("trailing window too short, skipping prediction",
			applogger.Int("rows", frame.Len()),
			applogger.Int("min_rows", p.minRows),
		)
		return nil, ErrInsufficientHistory
	}

	if err := p.engine.Compute(frame); err != nil {
		return nil, fmt.Errorf("compute features: %w", err)
	}

	row := frame.Len() - 1
	predVol, volReport, err := p.vol.PredictRow(frame, row)
	if err != nil {
		return nil, fmt.Errorf("volatility model: %w", err)
	}
	probDown, probUp, dirReport, err := p.dir.PredictRow(frame, row)
	if err != nil {
		return nil, fmt.Errorf("direction model: %w", err)
	}
	p.logFillReports(volReport, dirReport)

	sig := p.decider.Decide(predVol, probUp, probDown)

	rec := &models.PredictionRecord{
		Timestamp: frame.LastTimestamp(),
		Price:     frame.Last(features.ColClose),
		PredVol:   predVol,
		ProbUp:    probUp,
		ProbDown:  probDown,
		Signal:    sig,
		VolRegime: frame.Last("vol_regime"),
		RSI:       frame.Last("rsi"),
		VIX:       frame.Last("vix"),
	}

	if err := p.predictions.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist prediction: %w", err)
	}

	// Fan-out is best effort: the prediction is already durable.
	if err := p.cache.Set(ctx, LatestSignalKey, rec, p.cacheTTL); err != nil {
		p.metrics.RecordError("cache")
		p.l.Warn("cache latest signal failed", applogger.Error(err))
	}
	if err := p.publisher.Publish(ctx, rec); err != nil {
		p.metrics.RecordError("publish")
		p.l.Warn("publish signal failed", applogger.Error(err))
	}
	if p.notifier != nil {
		p.notifier.Notify(rec)
	}

	p.metrics.RecordSignal(string(rec.Signal), rec.PredVol)
	p.l.Info("prediction cycle complete",
		applogger.Time("bar", rec.Timestamp),
		applogger.String("signal", string(rec.Signal)),
		applogger.Float64("price", rec.Price),
		applogger.Float64("pred_vol", rec.PredVol),
		applogger.Float64("prob_up", rec.ProbUp),
		applogger.Float64("prob_down", rec.ProbDown),
		applogger.Float64("vol_regime", rec.VolRegime),
		applogger.Float64("rsi", rec.RSI),
	)
	return rec, nil
}

// Diagnostics inner-joins the last few days of every source and reports
// rows lost per source. Read side of the ops API only.
func (p *PredictionPipeline) Diagnostics(ctx context.Context, days int) (*models.AlignmentReport, error) {
	now := time.Now()
	from := now.AddDate(0, 0, -days)

	index, err := p.bars.Range(ctx, p.indexTable, from, now)
	if err != nil {
		return nil, fmt.Errorf("load index bars: %w", err)
	}
	var vix []models.Bar
	if p.vixTable != "" {
		if vix, err = p.bars.Range(ctx, p.vixTable, from, now); err != nil {
			return nil, fmt.Errorf("load vix bars: %w", err)
		}
	}
	series := make([]align.ConstituentSeries, 0, len(p.constituents))
	for _, ins := range p.constituents {
		bars, err := p.bars.Range(ctx, ins.Table, from, now)
		if err != nil {
			return nil, fmt.Errorf("load %s bars: %w", ins.Name, err)
		}
		series = append(series, align.ConstituentSeries{Name: ins.Name, Bars: bars})
	}

	_, report, err := p.aligner.JoinInner(index, vix, series)
	if err != nil {
		return nil, fmt.Errorf("inner join diagnostics: %w", err)
	}
	return report, nil
}

// LatestSignal serves the most recent prediction, preferring the cache.
func (p *PredictionPipeline) LatestSignal(ctx context.Context, fresh bool) (*models.PredictionRecord, error) {
	if !fresh {
		var rec models.PredictionRecord
		if err := p.cache.Get(ctx, LatestSignalKey, &rec); err == nil {
			return &rec, nil
		}
	}
	rec, err := p.predictions.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.cache.Set(ctx, LatestSignalKey, rec, p.cacheTTL); err != nil {
		p.l.Warn("cache latest signal failed", applogger.Error(err))
	}
	return rec, nil
}

func (p *PredictionPipeline) fetchFrame(ctx context.Context) (*models.Frame, error) {
	index, err := p.bars.LatestN(ctx, p.indexTable, p.windowBars)
	if err != nil {
		return nil, fmt.Errorf("load index window: %w", err)
	}
	if len(index) == 0 {
		return nil, ErrInsufficientHistory
	}

	var vix []models.Bar
	if p.vixTable != "" {
		if vix, err = p.bars.LatestN(ctx, p.vixTable, p.windowBars); err != nil {
			return nil, fmt.Errorf("load vix window: %w", err)
		}
	}
	series := make([]align.ConstituentSeries, 0, len(p.constituents))
	for _, ins := range p.constituents {
		bars, err := p.bars.LatestN(ctx, ins.Table, p.windowBars)
		if err != nil {
			return nil, fmt.Errorf("load %s window: %w", ins.Name, err)
		}
		series = append(series, align.ConstituentSeries{Name: ins.Name, Bars: bars})
	}

	frame, err := p.aligner.JoinLeftFill(index, vix, series)
	if err != nil {
		return nil, fmt.Errorf("align window: %w", err)
	}
	return frame, nil
}

func (p *PredictionPipeline) logFillReports(reports ...*model.FillReport) {
	for _, r := range reports {
		if r == nil || r.Empty() {
			continue
		}
		p.l.Warn("model inputs partially filled",
			applogger.Strings("absent", r.Absent),
			applogger.Strings("nan_filled", r.NaNFill),
			applogger.Strings("degraded", r.Degraded),
		)
	}
}
