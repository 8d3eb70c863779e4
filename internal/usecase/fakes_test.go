package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"VolStack/internal/domain/models"
)

// fakeBarStore serves canned bar series per table.
type fakeBarStore struct {
	tables map[string][]models.Bar
	latest map[string]time.Time
	err    error
}

func (f *fakeBarStore) LatestN(_ context.Context, table string, n int) ([]models.Bar, error) {
	if f.err != nil {
		return nil, f.err
	}
	bars := f.tables[table]
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	out := make([]models.Bar, len(bars))
	copy(out, bars)
	return out, nil
}

func (f *fakeBarStore) Range(_ context.Context, table string, from, to time.Time) ([]models.Bar, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Bar
	for _, b := range f.tables[table] {
		if !b.Timestamp.Before(from) && !b.Timestamp.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBarStore) LatestTimestamp(_ context.Context, table string) (time.Time, bool, error) {
	if f.err != nil {
		return time.Time{}, false, f.err
	}
	if ts, ok := f.latest[table]; ok {
		return ts, true, nil
	}
	bars := f.tables[table]
	if len(bars) == 0 {
		return time.Time{}, false, nil
	}
	return bars[len(bars)-1].Timestamp, true, nil
}

func (f *fakeBarStore) Health(context.Context) error { return f.err }

// fakeBackfiller records requested ranges.
type fakeBackfiller struct {
	calls []struct{ From, To time.Time }
	err   error
}

func (f *fakeBackfiller) Backfill(_ context.Context, from, to time.Time) error {
	f.calls = append(f.calls, struct{ From, To time.Time }{from, to})
	return f.err
}

// fakeFeatureStore records feature-table replacements.
type fakeFeatureStore struct {
	replacements int
	lastRows     int
	lastColumns  []string
	err          error
}

func (f *fakeFeatureStore) ReplaceAll(_ context.Context, frame *models.Frame, columns []string) error {
	if f.err != nil {
		return f.err
	}
	f.replacements++
	f.lastRows = frame.Len()
	f.lastColumns = columns
	return nil
}

func (f *fakeFeatureStore) LatestTimestamp(context.Context) (time.Time, bool, error) {
	return time.Time{}, f.replacements > 0, nil
}

// fakePredictionStore honors the upsert contract in memory: a timestamp
// conflict rewrites only the signal label.
type fakePredictionStore struct {
	mu      sync.Mutex
	byStamp map[int64]*models.PredictionRecord
	upserts int
	err     error
}

func newFakePredictionStore() *fakePredictionStore {
	return &fakePredictionStore{byStamp: make(map[int64]*models.PredictionRecord)}
}

func (f *fakePredictionStore) Upsert(_ context.Context, rec *models.PredictionRecord) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	key := rec.Timestamp.Unix()
	if existing, ok := f.byStamp[key]; ok {
		existing.Signal = rec.Signal
		return nil
	}
	clone := *rec
	f.byStamp[key] = &clone
	return nil
}

func (f *fakePredictionStore) Latest(context.Context) (*models.PredictionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.PredictionRecord
	for _, rec := range f.byStamp {
		if latest == nil || rec.Timestamp.After(latest.Timestamp) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, errors.New("no predictions stored")
	}
	clone := *latest
	return &clone, nil
}

func (f *fakePredictionStore) Health(context.Context) error { return nil }

// fakePublisher records published records.
type fakePublisher struct {
	published []*models.PredictionRecord
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, rec *models.PredictionRecord) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, rec)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

// fakeMetrics counts recorder calls.
type fakeMetrics struct {
	cycles    map[string]int
	signals   map[string]int
	backfills map[string]int
	errors    map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		cycles:    make(map[string]int),
		signals:   make(map[string]int),
		backfills: make(map[string]int),
		errors:    make(map[string]int),
	}
}

func (f *fakeMetrics) RecordCycle(outcome string)            { f.cycles[outcome]++ }
func (f *fakeMetrics) RecordCycleDuration(time.Duration)     {}
func (f *fakeMetrics) RecordSignal(signal string, _ float64) { f.signals[signal]++ }
func (f *fakeMetrics) RecordBackfill(kind string, err error) {
	key := kind + ":ok"
	if err != nil {
		key = kind + ":error"
	}
	f.backfills[key]++
}
func (f *fakeMetrics) RecordStoreStaleness(time.Duration) {}
func (f *fakeMetrics) RecordError(kind string)            { f.errors[kind]++ }
