package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"VolStack/internal/domain/models"
	pkgch "VolStack/pkg/clickhouse"
	applogger "VolStack/pkg/logger"
)

// CHBarStore implements BarStore backed by per-instrument ClickHouse tables.
type CHBarStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHBarStore(ch *pkgch.Client) *CHBarStore {
	return &CHBarStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHBarStore) SetLogger(l *applogger.Logger) { s.l = l }

// LatestN returns the newest n bars of a table in ascending timestamp order.
func (s *CHBarStore) LatestN(ctx context.Context, table string, n int) ([]models.Bar, error) {
	start := time.Now()
	const qtpl = `
        SELECT timestamp, open, high, low, close, volume
        FROM %s
        ORDER BY timestamp DESC
        LIMIT ?
    `
	q := fmt.Sprintf(qtpl, table)
	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse latest_bars query error",
				applogger.String("table", table),
				applogger.Int("limit", n),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get latest bars: %w", err)
	}
	defer rows.Close()

	tmp := make([]models.Bar, 0, n)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		tmp = append(tmp, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	if s.l != nil {
		s.l.Debug("clickhouse latest_bars ok",
			applogger.String("table", table),
			applogger.Int("limit", n),
			applogger.Int("rows", len(tmp)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return tmp, nil
}

// Range returns bars within [from, to] in ascending timestamp order.
func (s *CHBarStore) Range(ctx context.Context, table string, from, to time.Time) ([]models.Bar, error) {
	const qtpl = `
        SELECT timestamp, open, high, low, close, volume
        FROM %s
        WHERE timestamp >= ? AND timestamp <= ?
        ORDER BY timestamp ASC
    `
	q := fmt.Sprintf(qtpl, table)
	rows, err := s.db.QueryContext(ctx, q, from, to)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse range_bars query error",
				applogger.String("table", table),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get bars range: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 1024)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// LatestTimestamp returns the newest persisted timestamp of a table.
func (s *CHBarStore) LatestTimestamp(ctx context.Context, table string) (time.Time, bool, error) {
	q := fmt.Sprintf("SELECT max(timestamp), count() FROM %s", table)
	var ts time.Time
	var count uint64
	if err := s.db.QueryRowContext(ctx, q).Scan(&ts, &count); err != nil {
		return time.Time{}, false, fmt.Errorf("get latest timestamp: %w", err)
	}
	if count == 0 {
		return time.Time{}, false, nil
	}
	return ts, true, nil
}

func (s *CHBarStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
