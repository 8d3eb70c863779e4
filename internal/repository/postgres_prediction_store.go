package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"VolStack/internal/domain/models"
	pkgpg "VolStack/pkg/postgres"
	applogger "VolStack/pkg/logger"
)

// ErrNoPredictions signals an empty prediction table.
var ErrNoPredictions = errors.New("repository: no predictions stored")

// PGPredictionStore implements PredictionStore backed by PostgreSQL.
type PGPredictionStore struct {
	db    *sqlx.DB
	table string
	l     *applogger.Logger
}

func NewPGPredictionStore(pg *pkgpg.Client, table string) *PGPredictionStore {
	return &PGPredictionStore{db: pg.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *PGPredictionStore) SetLogger(l *applogger.Logger) { s.l = l }

// SchemaStatements returns idempotent DDL for the prediction table.
func (s *PGPredictionStore) SchemaStatements() []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            timestamp   TIMESTAMPTZ PRIMARY KEY,
            price       DOUBLE PRECISION NOT NULL,
            pred_vol    DOUBLE PRECISION NOT NULL,
            prob_up     DOUBLE PRECISION NOT NULL,
            prob_down   DOUBLE PRECISION NOT NULL,
            signal_type TEXT NOT NULL,
            vol_regime  DOUBLE PRECISION NOT NULL DEFAULT 0,
            rsi         DOUBLE PRECISION NOT NULL DEFAULT 0,
            vix         DOUBLE PRECISION NOT NULL DEFAULT 0
        )`, s.table)}
}

// Upsert inserts one prediction row. A timestamp conflict rewrites only
// the signal label; every other column keeps its first-written value.
func (s *PGPredictionStore) Upsert(ctx context.Context, rec *models.PredictionRecord) error {
	start := time.Now()
	q := upsertQuery(s.table)

	if _, err := s.db.NamedExecContext(ctx, q, rec); err != nil {
		if s.l != nil {
			s.l.Error("postgres prediction upsert error",
				applogger.String("table", s.table),
				applogger.Time("timestamp", rec.Timestamp),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("upsert prediction: %w", err)
	}
	if s.l != nil {
		s.l.Debug("postgres prediction upsert ok",
			applogger.String("table", s.table),
			applogger.Time("timestamp", rec.Timestamp),
			applogger.String("signal", string(rec.Signal)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func upsertQuery(table string) string {
	return fmt.Sprintf(`
        INSERT INTO %s
            (timestamp, price, pred_vol, prob_up, prob_down, signal_type, vol_regime, rsi, vix)
        VALUES
            (:timestamp, :price, :pred_vol, :prob_up, :prob_down, :signal_type, :vol_regime, :rsi, :vix)
        ON CONFLICT (timestamp) DO UPDATE SET
            signal_type = EXCLUDED.signal_type
    `, table)
}

// Latest returns the most recent prediction row.
func (s *PGPredictionStore) Latest(ctx context.Context) (*models.PredictionRecord, error) {
	q := fmt.Sprintf(`
        SELECT timestamp, price, pred_vol, prob_up, prob_down, signal_type, vol_regime, rsi, vix
        FROM %s
        ORDER BY timestamp DESC
        LIMIT 1
    `, s.table)

	var rec models.PredictionRecord
	if err := s.db.GetContext(ctx, &rec, q); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoPredictions
		}
		return nil, fmt.Errorf("get latest prediction: %w", err)
	}
	return &rec, nil
}

func (s *PGPredictionStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
