package models

import "time"

// Signal is the categorical trading signal emitted once per cycle.
type Signal string

const (
	SignalStrongBuy    Signal = "STRONG_BUY"
	SignalStrongSell   Signal = "STRONG_SELL"
	SignalHighVolNoDir Signal = "HIGH_VOL_NO_DIRECTION"
	SignalGrindUp      Signal = "GRIND_UP"
	SignalGrindDown    Signal = "GRIND_DOWN"
	SignalNeutral      Signal = "NEUTRAL_LOW_VOL"
)

// PredictionRecord is one persisted prediction row, keyed by timestamp.
// On timestamp conflict only the signal label may be rewritten; price and
// probabilities from the first write are immutable.
type PredictionRecord struct {
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
	Price     float64   `db:"price" json:"price"`
	PredVol   float64   `db:"pred_vol" json:"pred_vol"`
	ProbUp    float64   `db:"prob_up" json:"prob_up"`
	ProbDown  float64   `db:"prob_down" json:"prob_down"`
	Signal    Signal    `db:"signal_type" json:"signal_type"`

	// Diagnostic features carried alongside the prediction.
	VolRegime float64 `db:"vol_regime" json:"vol_regime"`
	RSI       float64 `db:"rsi" json:"rsi"`
	VIX       float64 `db:"vix" json:"vix"`
}

// AlignmentReport quantifies, per joined source, how many rows an inner
// join against the index series discards. Operators use it to detect
// timestamp misalignment between tables.
type AlignmentReport struct {
	From        time.Time    `json:"from"`
	To          time.Time    `json:"to"`
	IndexRows   int          `json:"index_rows"`
	FinalRows   int          `json:"final_rows"`
	LossBySrc   []SourceLoss `json:"loss_by_source"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// SourceLoss is one source's contribution to inner-join row loss.
type SourceLoss struct {
	Source     string `json:"source"`
	RowsBefore int    `json:"rows_before"`
	RowsAfter  int    `json:"rows_after"`
	RowsLost   int    `json:"rows_lost"`
}
