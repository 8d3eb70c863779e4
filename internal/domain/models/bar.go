package models

import "time"

// Bar represents one instrument's OHLCV record at a 1-minute timestamp.
// Timestamps are stored timezone-naive in UTC at minute granularity.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Valid reports whether the bar satisfies the OHLC ordering invariant:
// high >= max(open, close) and low <= min(open, close), with positive prices.
func (b Bar) Valid() bool {
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return false
	}
	hi := b.Open
	if b.Close > hi {
		hi = b.Close
	}
	lo := b.Open
	if b.Close < lo {
		lo = b.Close
	}
	return b.High >= hi && b.Low <= lo && b.Volume >= 0
}

// Instrument identifies one source series and its backing table.
type Instrument struct {
	Name  string
	Table string
}
