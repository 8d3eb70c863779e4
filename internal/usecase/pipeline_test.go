package usecase

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"VolStack/internal/domain/models"
	"VolStack/internal/services/align"
	"VolStack/internal/services/features"
	"VolStack/internal/services/model"
	"VolStack/internal/services/signal"
	"VolStack/pkg/cache"
)

const (
	testIndexTable = "nifty_spot_1min"
	testVIXTable   = "india_vix_1min"
)

var testConstituents = []models.Instrument{
	{Name: "hdfc", Table: "hdfc_spot_1min"},
	{Name: "ril", Table: "ril_spot_1min"},
}

// sessionBars fabricates one full trading session (09:15 to 15:30
// exchange-local, inclusive) of random-walk bars for the given day.
func sessionBars(loc *time.Location, year int, month time.Month, day int, base float64, seed int64) []models.Bar {
	rng := rand.New(rand.NewSource(seed))
	open := time.Date(year, month, day, 9, 15, 0, 0, loc)
	bars := make([]models.Bar, 0, 376)
	price := base
	for m := 0; m <= 375; m++ {
		o := price
		c := o * (1 + rng.NormFloat64()*0.0004)
		h := math.Max(o, c) * (1 + rng.Float64()*0.0002)
		l := math.Min(o, c) * (1 - rng.Float64()*0.0002)
		bars = append(bars, models.Bar{
			Timestamp: open.Add(time.Duration(m) * time.Minute).UTC(),
			Open:      o,
			High:      h,
			Low:       l,
			Close:     c,
			Volume:    1000 + rng.Float64()*500,
		})
		price = c
	}
	return bars
}

func twoSessionStore(t *testing.T, loc *time.Location) *fakeBarStore {
	t.Helper()
	tables := map[string][]models.Bar{}
	seed := int64(1)
	for _, table := range []string{testIndexTable, testVIXTable, "hdfc_spot_1min", "ril_spot_1min"} {
		var bars []models.Bar
		bars = append(bars, sessionBars(loc, 2025, time.June, 2, 1000, seed)...)
		bars = append(bars, sessionBars(loc, 2025, time.June, 3, bars[len(bars)-1].Close, seed+1)...)
		tables[table] = bars
		seed += 2
	}
	return &fakeBarStore{tables: tables}
}

// leafArtifact builds a single-leaf ensemble whose margin is constant, so
// pipeline tests control model output exactly.
func leafArtifact(name, objective string, leaf float64) *model.Artifact {
	return &model.Artifact{
		Name:         name,
		Objective:    objective,
		BaseScore:    0,
		FeatureNames: []string{"rv_5", "rsi"},
		Trees:        []model.Tree{{Nodes: []model.Node{{Leaf: true, Value: leaf}}}},
	}
}

type recordingNotifier struct {
	records []*models.PredictionRecord
}

func (n *recordingNotifier) Notify(rec *models.PredictionRecord) {
	n.records = append(n.records, rec)
}

type pipelineFixture struct {
	pipeline    *PredictionPipeline
	bars        *fakeBarStore
	predictions *fakePredictionStore
	publisher   *fakePublisher
	metrics     *fakeMetrics
	notifier    *recordingNotifier
	cache       cache.Service
}

func newPipelineFixture(t *testing.T, volLeaf, dirLeaf float64) *pipelineFixture {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	aligner, err := align.New(align.Config{
		Location:           loc,
		SessionOpenMinute:  555,
		SessionCloseMinute: 930,
	})
	if err != nil {
		t.Fatalf("new aligner: %v", err)
	}
	engine, err := features.New(features.Config{
		Location:          loc,
		SessionOpenMinute: 555,
		SessionMinutes:    375,
		Constituents:      []string{"hdfc", "ril"},
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	bind, err := model.NewBindings(model.RVSumSquares, model.VolSpikeConstituentSum)
	if err != nil {
		t.Fatalf("new bindings: %v", err)
	}
	vol, err := model.NewVolatilityPredictor(leafArtifact("vol", model.ObjectiveLogVariance, volLeaf), bind)
	if err != nil {
		t.Fatalf("new volatility predictor: %v", err)
	}
	dir, err := model.NewDirectionPredictor(leafArtifact("dir", model.ObjectiveBinary, dirLeaf), bind)
	if err != nil {
		t.Fatalf("new direction predictor: %v", err)
	}
	decider, err := signal.New(signal.DefaultConfidence, signal.DefaultVolExpansion)
	if err != nil {
		t.Fatalf("new decider: %v", err)
	}

	fx := &pipelineFixture{
		bars:        twoSessionStore(t, loc),
		predictions: newFakePredictionStore(),
		publisher:   &fakePublisher{},
		metrics:     newFakeMetrics(),
		notifier:    &recordingNotifier{},
		cache:       cache.NewMemoryCache(),
	}
	fx.pipeline = NewPredictionPipeline(
		fx.bars, fx.predictions, fx.publisher, fx.cache,
		aligner, engine, vol, dir, decider, fx.metrics, testLogger(t),
		PipelineConfig{
			IndexTable:   testIndexTable,
			VIXTable:     testVIXTable,
			Constituents: testConstituents,
			WindowBars:   600,
			MinRows:      400,
			CacheTTL:     5 * time.Minute,
		},
	)
	fx.pipeline.SetNotifier(fx.notifier)
	return fx
}

func TestRunOncePersistsAndFansOut(t *testing.T) {
	// exp(log 0.002) = 0.002 > 0.0010 and sigmoid(1) ~ 0.73 > 0.55.
	fx := newPipelineFixture(t, math.Log(0.002), 1.0)

	rec, err := fx.pipeline.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if rec.Signal != models.SignalStrongBuy {
		t.Errorf("signal = %s, want %s", rec.Signal, models.SignalStrongBuy)
	}
	if math.Abs(rec.PredVol-0.002) > 1e-12 {
		t.Errorf("pred_vol = %v, want 0.002", rec.PredVol)
	}
	if math.Abs(rec.ProbUp+rec.ProbDown-1) > 1e-12 {
		t.Errorf("probabilities sum to %v, want 1", rec.ProbUp+rec.ProbDown)
	}

	indexBars := fx.bars.tables[testIndexTable]
	wantTS := indexBars[len(indexBars)-1].Timestamp
	if !rec.Timestamp.Equal(wantTS) {
		t.Errorf("timestamp = %v, want last bar %v", rec.Timestamp, wantTS)
	}
	if rec.Price <= 0 {
		t.Errorf("price = %v, want positive close", rec.Price)
	}

	if len(fx.predictions.byStamp) != 1 {
		t.Fatalf("store holds %d records, want 1", len(fx.predictions.byStamp))
	}
	if len(fx.publisher.published) != 1 {
		t.Errorf("published %d records, want 1", len(fx.publisher.published))
	}
	if len(fx.notifier.records) != 1 {
		t.Errorf("notified %d records, want 1", len(fx.notifier.records))
	}
	if fx.metrics.signals[string(models.SignalStrongBuy)] != 1 {
		t.Errorf("signal metric not recorded: %v", fx.metrics.signals)
	}

	var cached models.PredictionRecord
	if err := fx.cache.Get(context.Background(), LatestSignalKey, &cached); err != nil {
		t.Fatalf("cached signal missing: %v", err)
	}
	if cached.Signal != rec.Signal || !cached.Timestamp.Equal(rec.Timestamp) {
		t.Errorf("cached record %+v does not match persisted %+v", cached, rec)
	}
}

func TestRunOnceRepeatKeepsOneRecordPerBar(t *testing.T) {
	fx := newPipelineFixture(t, math.Log(0.002), 1.0)

	if _, err := fx.pipeline.RunOnce(context.Background()); err != nil {
		t.Fatalf("first RunOnce: %v", err)
	}
	if _, err := fx.pipeline.RunOnce(context.Background()); err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if fx.predictions.upserts != 2 {
		t.Errorf("upserts = %d, want 2", fx.predictions.upserts)
	}
	if len(fx.predictions.byStamp) != 1 {
		t.Errorf("store holds %d records after repeated cycle, want 1", len(fx.predictions.byStamp))
	}
}

func TestRunOnceShortWindowSkips(t *testing.T) {
	fx := newPipelineFixture(t, math.Log(0.002), 1.0)
	// One session of 376 bars is below the 400-row minimum.
	loc, _ := time.LoadLocation("Asia/Kolkata")
	for table := range fx.bars.tables {
		fx.bars.tables[table] = sessionBars(loc, 2025, time.June, 2, 1000, 7)
	}

	_, err := fx.pipeline.RunOnce(context.Background())
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("err = %v, want ErrInsufficientHistory", err)
	}
	if fx.predictions.upserts != 0 {
		t.Errorf("short window still persisted %d records", fx.predictions.upserts)
	}
	if len(fx.publisher.published) != 0 {
		t.Errorf("short window still published %d records", len(fx.publisher.published))
	}
}

func TestRunOnceEmptyIndexSkips(t *testing.T) {
	fx := newPipelineFixture(t, math.Log(0.002), 1.0)
	fx.bars.tables[testIndexTable] = nil

	_, err := fx.pipeline.RunOnce(context.Background())
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("err = %v, want ErrInsufficientHistory", err)
	}
}

func TestRunOnceUpsertFailureFailsCycle(t *testing.T) {
	fx := newPipelineFixture(t, math.Log(0.002), 1.0)
	fx.predictions.err = errors.New("postgres down")

	if _, err := fx.pipeline.RunOnce(context.Background()); err == nil {
		t.Fatal("RunOnce succeeded despite persistence failure")
	}
	if len(fx.publisher.published) != 0 {
		t.Errorf("published %d records without a durable prediction", len(fx.publisher.published))
	}
}

func TestRunOncePublishFailureIsBestEffort(t *testing.T) {
	fx := newPipelineFixture(t, math.Log(0.002), 1.0)
	fx.publisher.err = errors.New("kafka down")

	if _, err := fx.pipeline.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed on publish error: %v", err)
	}
	if len(fx.predictions.byStamp) != 1 {
		t.Errorf("prediction not persisted despite best-effort publish")
	}
	if fx.metrics.errors["publish"] != 1 {
		t.Errorf("publish error not recorded: %v", fx.metrics.errors)
	}
}

func TestRunOnceLowVolGrind(t *testing.T) {
	// exp(log 0.0002) stays below the expansion threshold; direction
	// above confidence yields GRIND_UP.
	fx := newPipelineFixture(t, math.Log(0.0002), 1.0)

	rec, err := fx.pipeline.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if rec.Signal != models.SignalGrindUp {
		t.Errorf("signal = %s, want %s", rec.Signal, models.SignalGrindUp)
	}
}

func TestLatestSignalPrefersCache(t *testing.T) {
	fx := newPipelineFixture(t, math.Log(0.002), 1.0)
	cached := &models.PredictionRecord{
		Timestamp: time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC),
		Signal:    models.SignalNeutral,
	}
	if err := fx.cache.Set(context.Background(), LatestSignalKey, cached, time.Minute); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	rec, err := fx.pipeline.LatestSignal(context.Background(), false)
	if err != nil {
		t.Fatalf("LatestSignal: %v", err)
	}
	if rec.Signal != models.SignalNeutral {
		t.Errorf("signal = %s, want cached %s", rec.Signal, models.SignalNeutral)
	}
}

func TestLatestSignalFreshBypassesCache(t *testing.T) {
	fx := newPipelineFixture(t, math.Log(0.002), 1.0)
	stale := &models.PredictionRecord{Signal: models.SignalNeutral}
	if err := fx.cache.Set(context.Background(), LatestSignalKey, stale, time.Minute); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	persisted := &models.PredictionRecord{
		Timestamp: time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC),
		Signal:    models.SignalStrongSell,
	}
	if err := fx.predictions.Upsert(context.Background(), persisted); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	rec, err := fx.pipeline.LatestSignal(context.Background(), true)
	if err != nil {
		t.Fatalf("LatestSignal: %v", err)
	}
	if rec.Signal != models.SignalStrongSell {
		t.Errorf("signal = %s, want persisted %s", rec.Signal, models.SignalStrongSell)
	}

	// The fresh read re-primes the cache.
	var cached models.PredictionRecord
	if err := fx.cache.Get(context.Background(), LatestSignalKey, &cached); err != nil {
		t.Fatalf("cache not re-primed: %v", err)
	}
	if cached.Signal != models.SignalStrongSell {
		t.Errorf("cached signal = %s, want %s", cached.Signal, models.SignalStrongSell)
	}
}

func TestDiagnosticsReportsPerSourceLoss(t *testing.T) {
	fx := newPipelineFixture(t, math.Log(0.002), 1.0)
	// Drop the last 10 vix rows so the inner join loses exactly those.
	vix := fx.bars.tables[testVIXTable]
	fx.bars.tables[testVIXTable] = vix[:len(vix)-10]

	report, err := fx.pipeline.Diagnostics(context.Background(), 3650)
	if err != nil {
		t.Fatalf("Diagnostics: %v", err)
	}
	if report.IndexRows != 752 {
		t.Errorf("index rows = %d, want 752", report.IndexRows)
	}
	if report.FinalRows != 742 {
		t.Errorf("final rows = %d, want 742", report.FinalRows)
	}
	lost := 0
	for _, src := range report.LossBySrc {
		lost += src.RowsLost
	}
	if lost != report.IndexRows-report.FinalRows {
		t.Errorf("per-source losses sum to %d, want %d", lost, report.IndexRows-report.FinalRows)
	}
}

func TestRegenerateReplacesFeatureTable(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	aligner, err := align.New(align.Config{
		Location:           loc,
		SessionOpenMinute:  555,
		SessionCloseMinute: 930,
	})
	if err != nil {
		t.Fatalf("new aligner: %v", err)
	}
	engine, err := features.New(features.Config{
		Location:          loc,
		SessionOpenMinute: 555,
		SessionMinutes:    375,
		Constituents:      []string{"hdfc", "ril"},
		IncludeTarget:     true,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	bars := twoSessionStore(t, loc)
	store := &fakeFeatureStore{}
	regen := NewRegenerator(bars, store, aligner, engine, testLogger(t),
		testIndexTable, testVIXTable, testConstituents)

	if err := regen.Regenerate(context.Background()); err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if store.replacements != 1 {
		t.Fatalf("replacements = %d, want 1", store.replacements)
	}
	if store.lastRows != 752 {
		t.Errorf("feature rows = %d, want 752", store.lastRows)
	}
	hasTarget := false
	for _, col := range store.lastColumns {
		if col == "target_vol_15" {
			hasTarget = true
		}
	}
	if !hasTarget {
		t.Error("regenerated table is missing the training label column")
	}
}
