package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"VolStack/internal/domain/models"
	pkgch "VolStack/pkg/clickhouse"
	applogger "VolStack/pkg/logger"
)

// CHFeatureStore persists the regenerated historical feature table in
// ClickHouse. The table holds one row per session minute with a fixed
// timestamp column plus one Float64 column per feature.
type CHFeatureStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHFeatureStore(ch *pkgch.Client, table string) *CHFeatureStore {
	return &CHFeatureStore{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *CHFeatureStore) SetLogger(l *applogger.Logger) { s.l = l }

// ReplaceAll swaps the feature table contents for the given frame. The
// swap truncates first; regeneration always rebuilds from full history, so
// a failed run leaves a partially filled table that the next run replaces.
func (s *CHFeatureStore) ReplaceAll(ctx context.Context, frame *models.Frame, columns []string) error {
	start := time.Now()
	if frame.Len() == 0 {
		return fmt.Errorf("replace features: empty frame")
	}
	for _, name := range columns {
		if !frame.Has(name) {
			return fmt.Errorf("replace features: frame is missing column %q", name)
		}
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s", s.table)); err != nil {
		return fmt.Errorf("truncate features: %w", err)
	}

	colList := "timestamp, " + strings.Join(columns, ", ")
	placeholder := "(?" + strings.Repeat(", ?", len(columns)) + ")"

	// Chunked multi-row inserts to limit round-trips.
	const chunkSize = 2000
	index := frame.Index()
	inserted := 0
	for lo := 0; lo < frame.Len(); lo += chunkSize {
		hi := lo + chunkSize
		if hi > frame.Len() {
			hi = frame.Len()
		}

		values := make([]string, 0, hi-lo)
		args := make([]interface{}, 0, (hi-lo)*(len(columns)+1))
		for i := lo; i < hi; i++ {
			values = append(values, placeholder)
			args = append(args, index[i])
			for _, name := range columns {
				v := frame.At(name, i)
				if math.IsNaN(v) {
					// Warm-up rows carry explicit zeros rather than NULLs.
					v = 0
				}
				args = append(args, v)
			}
		}

		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, colList, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert features chunk: %w", err)
		}
		inserted += hi - lo
	}

	if s.l != nil {
		s.l.Info("clickhouse feature table replaced",
			applogger.String("table", s.table),
			applogger.Int("rows", inserted),
			applogger.Int("columns", len(columns)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

// LatestTimestamp returns the newest feature row timestamp.
func (s *CHFeatureStore) LatestTimestamp(ctx context.Context) (time.Time, bool, error) {
	q := fmt.Sprintf("SELECT max(timestamp), count() FROM %s", s.table)
	var ts time.Time
	var count uint64
	if err := s.db.QueryRowContext(ctx, q).Scan(&ts, &count); err != nil {
		return time.Time{}, false, fmt.Errorf("get latest feature timestamp: %w", err)
	}
	if count == 0 {
		return time.Time{}, false, nil
	}
	return ts, true, nil
}
