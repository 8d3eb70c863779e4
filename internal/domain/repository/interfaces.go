package repository

import (
	"context"
	"time"

	"VolStack/internal/domain/models"
)

// BarStore provides read access to per-instrument 1-minute bar tables.
type BarStore interface {
	// LatestN returns the newest n bars of a table in ascending timestamp order.
	LatestN(ctx context.Context, table string, n int) ([]models.Bar, error)
	// Range returns bars within [from, to] in ascending timestamp order.
	Range(ctx context.Context, table string, from, to time.Time) ([]models.Bar, error)
	// LatestTimestamp returns the newest persisted timestamp of a table.
	// ok is false when the table is empty.
	LatestTimestamp(ctx context.Context, table string) (ts time.Time, ok bool, err error)
	Health(ctx context.Context) error
}

// FeatureStore persists the regenerated historical feature table.
type FeatureStore interface {
	// ReplaceAll swaps the historical feature table for the given frame
	// (only the named columns are persisted).
	ReplaceAll(ctx context.Context, frame *models.Frame, columns []string) error
	// LatestTimestamp returns the newest feature row timestamp; ok is false
	// when the table is empty (i.e. the baseline has never been generated).
	LatestTimestamp(ctx context.Context) (ts time.Time, ok bool, err error)
}

// PredictionStore persists prediction records with the keyed-upsert contract:
// a timestamp conflict overwrites only the signal label.
type PredictionStore interface {
	Upsert(ctx context.Context, rec *models.PredictionRecord) error
	Latest(ctx context.Context) (*models.PredictionRecord, error)
	Health(ctx context.Context) error
}

// Backfiller requests the external acquisition service to (re)load raw rows
// for a day-granularity date range. Success is a 2xx response; there is no
// partial-success protocol.
type Backfiller interface {
	Backfill(ctx context.Context, from, to time.Time) error
}

// SignalPublisher fans a persisted prediction out to downstream consumers.
type SignalPublisher interface {
	Publish(ctx context.Context, rec *models.PredictionRecord) error
	Close() error
}

// Metrics records operational measurements for the engine.
type Metrics interface {
	RecordCycle(outcome string)
	RecordCycleDuration(d time.Duration)
	RecordSignal(signal string, predVol float64)
	RecordBackfill(kind string, err error)
	RecordStoreStaleness(age time.Duration)
	RecordError(kind string)
}
