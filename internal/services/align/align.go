package align

import (
	"fmt"
	"math"
	"sort"
	"time"

	"VolStack/internal/domain/models"
)

// Column names the aligner produces for the index instrument.
const (
	ColOpen   = "open"
	ColHigh   = "high"
	ColLow    = "low"
	ColClose  = "close"
	ColVolume = "volume"
	ColVIX    = "vix"
)

// Config fixes the trading-session geometry. Stored timestamps are UTC;
// the session window is defined in exchange-local minutes from midnight.
type Config struct {
	Location           *time.Location
	SessionOpenMinute  int
	SessionCloseMinute int
}

// Aligner filters bars to the trading session and joins multi-instrument
// series onto the index timeline.
type Aligner struct {
	cfg Config
}

func New(cfg Config) (*Aligner, error) {
	if cfg.Location == nil {
		return nil, fmt.Errorf("align: exchange location is required")
	}
	if cfg.SessionCloseMinute <= cfg.SessionOpenMinute {
		return nil, fmt.Errorf("align: session close %d must follow open %d",
			cfg.SessionCloseMinute, cfg.SessionOpenMinute)
	}
	return &Aligner{cfg: cfg}, nil
}

// LocalMinute converts a UTC timestamp to exchange-local minutes from
// midnight. Every session decision flows through this one conversion.
func (a *Aligner) LocalMinute(ts time.Time) int {
	local := ts.In(a.cfg.Location)
	return local.Hour()*60 + local.Minute()
}

// SessionMinute is minutes since session open, negative before it.
func (a *Aligner) SessionMinute(ts time.Time) int {
	return a.LocalMinute(ts) - a.cfg.SessionOpenMinute
}

// InSession reports whether a timestamp falls inside the trading session,
// both boundaries inclusive.
func (a *Aligner) InSession(ts time.Time) bool {
	m := a.LocalMinute(ts)
	return m >= a.cfg.SessionOpenMinute && m <= a.cfg.SessionCloseMinute
}

// FilterSession drops bars outside the trading session, preserving order.
func (a *Aligner) FilterSession(bars []models.Bar) []models.Bar {
	out := make([]models.Bar, 0, len(bars))
	for _, b := range bars {
		if a.InSession(b.Timestamp) {
			out = append(out, b)
		}
	}
	return out
}

// ConstituentSeries is one constituent's bar history keyed by its short name.
type ConstituentSeries struct {
	Name string
	Bars []models.Bar
}

// JoinLeftFill builds the live frame: the session-filtered index timeline
// is authoritative, and the volatility index and constituents are joined
// onto it. Missing closes are forward-filled, missing volumes become zero
// (no trade happened, nothing to fabricate), and rows before a source's
// first observation stay missing.
func (a *Aligner) JoinLeftFill(index, vix []models.Bar, constituents []ConstituentSeries) (*models.Frame, error) {
	idx := a.FilterSession(index)
	if len(idx) == 0 {
		return nil, fmt.Errorf("align: no index bars inside the trading session")
	}

	n := len(idx)
	ts := make([]time.Time, n)
	open := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	cls := make([]float64, n)
	vol := make([]float64, n)
	for i, b := range idx {
		ts[i] = b.Timestamp.UTC()
		open[i], high[i], low[i], cls[i], vol[i] = b.Open, b.High, b.Low, b.Close, b.Volume
	}

	f := models.NewFrame(ts)
	f.MustSet(ColOpen, open)
	f.MustSet(ColHigh, high)
	f.MustSet(ColLow, low)
	f.MustSet(ColClose, cls)
	f.MustSet(ColVolume, vol)

	if len(vix) > 0 {
		f.MustSet(ColVIX, joinClose(ts, vix, true))
	}
	for _, c := range constituents {
		if len(c.Bars) == 0 {
			continue
		}
		f.MustSet(c.Name+"_close", joinClose(ts, c.Bars, true))
		f.MustSet(c.Name+"_vol", joinVolume(ts, c.Bars))
	}
	return f, nil
}

// JoinInner intersects every source's timestamps with the index timeline
// and reports the rows each source costs. It exists for diagnostics, not
// the live path.
func (a *Aligner) JoinInner(index, vix []models.Bar, constituents []ConstituentSeries) (*models.Frame, *models.AlignmentReport, error) {
	idx := a.FilterSession(index)
	if len(idx) == 0 {
		return nil, nil, fmt.Errorf("align: no index bars inside the trading session")
	}

	report := &models.AlignmentReport{
		From:        idx[0].Timestamp.UTC(),
		To:          idx[len(idx)-1].Timestamp.UTC(),
		IndexRows:   len(idx),
		GeneratedAt: time.Now().UTC(),
	}

	type source struct {
		name string
		set  map[int64]struct{}
		raw  int
	}
	sources := make([]source, 0, len(constituents)+1)
	if len(vix) > 0 {
		sources = append(sources, source{name: "vix", set: stampSet(a.FilterSession(vix)), raw: len(vix)})
	}
	for _, c := range constituents {
		sources = append(sources, source{name: c.Name, set: stampSet(a.FilterSession(c.Bars)), raw: len(c.Bars)})
	}

	surviving := len(idx)
	kept := make([]models.Bar, 0, len(idx))
	for _, s := range sources {
		kept = kept[:0]
		for _, b := range idx {
			if _, ok := s.set[b.Timestamp.UTC().Unix()]; ok {
				kept = append(kept, b)
			}
		}
		after := len(kept)
		report.LossBySrc = append(report.LossBySrc, models.SourceLoss{
			Source:     s.name,
			RowsBefore: surviving,
			RowsAfter:  after,
			RowsLost:   surviving - after,
		})
		idx = append(idx[:0], kept...)
		surviving = after
	}
	sort.Slice(report.LossBySrc, func(i, j int) bool {
		return report.LossBySrc[i].Source < report.LossBySrc[j].Source
	})
	report.FinalRows = surviving

	f, err := a.JoinLeftFill(idx, vix, constituents)
	if err != nil {
		return nil, nil, err
	}
	return f, report, nil
}

func stampSet(bars []models.Bar) map[int64]struct{} {
	set := make(map[int64]struct{}, len(bars))
	for _, b := range bars {
		set[b.Timestamp.UTC().Unix()] = struct{}{}
	}
	return set
}

// joinClose maps a source's close prices onto the target timeline. With
// ffill set, gaps after the first observation carry the last known close;
// rows before it stay NaN.
func joinClose(ts []time.Time, bars []models.Bar, ffill bool) []float64 {
	byStamp := make(map[int64]float64, len(bars))
	for _, b := range bars {
		byStamp[b.Timestamp.UTC().Unix()] = b.Close
	}
	out := make([]float64, len(ts))
	last := math.NaN()
	for i, t := range ts {
		v, ok := byStamp[t.Unix()]
		switch {
		case ok:
			out[i] = v
			last = v
		case ffill:
			out[i] = last
		default:
			out[i] = math.NaN()
		}
	}
	return out
}

// joinVolume maps volumes onto the target timeline. A missing row means no
// trades in that minute, so the gap is zero, never a carried-forward value.
func joinVolume(ts []time.Time, bars []models.Bar) []float64 {
	byStamp := make(map[int64]float64, len(bars))
	for _, b := range bars {
		byStamp[b.Timestamp.UTC().Unix()] = b.Volume
	}
	out := make([]float64, len(ts))
	for i, t := range ts {
		if v, ok := byStamp[t.Unix()]; ok {
			out[i] = v
		}
	}
	return out
}
