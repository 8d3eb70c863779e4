package features

import (
	"fmt"
	"math"
	"time"

	"VolStack/internal/domain/models"
)

// epsilon stabilizes ratio denominators, matching the trained pipeline.
const epsilon = 1e-9

// Input column names the engine expects on an aligned frame.
const (
	ColOpen   = "open"
	ColHigh   = "high"
	ColLow    = "low"
	ColClose  = "close"
	ColVolume = "volume"
	ColVIX    = "vix"
)

// Config fixes the session geometry and constituent set the engine derives
// features over. The engine itself is pure: the same config over the same
// rows yields the same feature table on the batch and live paths.
type Config struct {
	// Location is the exchange's local timezone; stored timestamps are UTC.
	Location *time.Location
	// SessionOpenMinute is the session open as minutes from local midnight.
	SessionOpenMinute int
	// SessionMinutes is the session length, the period of the cyclical
	// time encoding and the stride of the same-time-yesterday lag.
	SessionMinutes int
	// Constituents are the names whose "<name>_close"/"<name>_vol" columns
	// feed the dispersion and volume-sum features.
	Constituents []string
	// IncludeTarget adds the forward-looking training label. It must never
	// be set on the live path.
	IncludeTarget bool
}

// Engine derives the full feature column set over an aligned frame.
type Engine struct {
	cfg Config
}

// New creates a feature engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Location == nil {
		return nil, fmt.Errorf("features: exchange location is required")
	}
	if cfg.SessionMinutes <= 0 {
		return nil, fmt.Errorf("features: session length must be positive, got %d", cfg.SessionMinutes)
	}
	return &Engine{cfg: cfg}, nil
}

// SeasonalLagBars returns the trailing history (in bars) the deepest
// autoregressive lag needs before it stops being missing.
func (e *Engine) SeasonalLagBars() int { return e.cfg.SessionMinutes }

// Compute derives every feature column in place on the frame. It requires
// the index instrument's OHLCV columns; the volatility-index and
// constituent columns are optional and, when absent, their features are set
// to a neutral 0.0 placeholder and marked degraded on the frame.
func (e *Engine) Compute(f *models.Frame) error {
	for _, name := range []string{ColOpen, ColHigh, ColLow, ColClose, ColVolume} {
		if !f.Has(name) {
			return fmt.Errorf("features: frame is missing required column %q", name)
		}
	}

	open, _ := f.Column(ColOpen)
	high, _ := f.Column(ColHigh)
	low, _ := f.Column(ColLow)
	cls, _ := f.Column(ColClose)
	vol, _ := f.Column(ColVolume)
	n := f.Len()

	// Index price block.
	ret := LogReturns(cls)
	f.MustSet("ret", ret)
	f.MustSet("rv_5", realizedVolSumSquares(ret, 5))
	f.MustSet("rv_15", realizedVolSumSquares(ret, 15))
	f.MustSet("rv_30", realizedVolSumSquares(ret, 30))
	f.MustSet("rv_5_std", RollingStd(ret, 5))
	f.MustSet("rv_15_std", RollingStd(ret, 15))
	f.MustSet("rv_30_std", RollingStd(ret, 30))

	f.MustSet("parkinson", RollingMean(parkinson(high, low), 15))
	gkRaw := garmanKlass(open, high, low, cls)
	f.MustSet("gk_raw", gkRaw)
	f.MustSet("gk", RollingMean(gkRaw, 15))

	f.MustSet("range", sub(high, low))
	f.MustSet("abs_return", absDiff(cls, open))
	f.MustSet("std_15", RollingStd(cls, 15))
	f.MustSet("pos_in_range", posInRange(cls, high, low))

	// Volume spikes, both variants. Callers bind the one a model expects.
	e.constituentVolume(f, n)
	f.MustSet("vol_spike_index", volumeSpike(ForwardFill(ZerosToNaN(vol))))

	// Volatility-index block.
	e.vixBlock(f, n)

	// Constituent returns, dispersion, constituent realized vol.
	e.constituentBlock(f, n)

	// Momentum and trend.
	f.MustSet("rsi", rsi(cls, 14))
	f.MustSet("trend_strength", sub(RollingMean(cls, 5), RollingMean(cls, 20)))

	// Regime, trend-of-vol, autoregressive lags.
	rv5, _ := f.Column("rv_5")
	rv15, _ := f.Column("rv_15")
	rv30, _ := f.Column("rv_30")
	f.MustSet("vol_regime", ratio(rv5, rv30))
	f.MustSet("vol_trend", sub(rv5, rv15))

	pastVol := RollingStd(ret, 15)
	f.MustSet("past_vol_15", pastVol)
	f.MustSet("vol_lag_15", Shift(pastVol, 15))
	f.MustSet("vol_lag_30", Shift(pastVol, 30))
	f.MustSet("vol_lag_60", Shift(pastVol, 60))
	f.MustSet("vol_lag_day", Shift(pastVol, e.cfg.SessionMinutes))

	f.MustSet("ret_lag_1", Shift(ret, 1))
	f.MustSet("ret_lag_5", Shift(ret, 5))

	// Cyclical time-of-day encoding over the exchange-local session minute.
	e.timeBlock(f)

	if e.cfg.IncludeTarget {
		// Forward-looking label: realized vol of the next 15 returns.
		// Offline training only.
		future := Shift(ret, -1)
		sq := make([]float64, n)
		for i, v := range future {
			sq[i] = v * v
		}
		f.MustSet("target_vol_15", sqrtAll(Shift(RollingSum(sq, 15), -15)))
	}

	return nil
}

func (e *Engine) constituentVolume(f *models.Frame, n int) {
	var cols [][]float64
	for _, name := range e.cfg.Constituents {
		if c, ok := f.Column(name + "_vol"); ok {
			cols = append(cols, FillZero(c))
		}
	}
	if len(cols) == 0 {
		f.MustSet("total_const_vol", make([]float64, n))
		f.MustSet("vol_spike_const", make([]float64, n))
		f.MarkDegraded("total_const_vol")
		f.MarkDegraded("vol_spike_const")
		return
	}
	total := make([]float64, n)
	for _, c := range cols {
		for i, v := range c {
			total[i] += v
		}
	}
	f.MustSet("total_const_vol", total)
	f.MustSet("vol_spike_const", volumeSpike(total))
}

func (e *Engine) vixBlock(f *models.Frame, n int) {
	raw, ok := f.Column(ColVIX)
	if !ok {
		for _, name := range []string{"vix", "vix_ret", "vix_mom_5", "vix_inv"} {
			f.MustSet(name, make([]float64, n))
			f.MarkDegraded(name)
		}
		return
	}
	vix := ForwardFill(raw)
	f.MustSet("vix", vix)
	f.MustSet("vix_ret", LogReturns(vix))
	mom := sub(vix, Shift(vix, 5))
	f.MustSet("vix_mom_5", mom)
	f.MustSet("vix_inv", neg(mom))
}

func (e *Engine) constituentBlock(f *models.Frame, n int) {
	var rets [][]float64
	var rvs [][]float64
	for _, name := range e.cfg.Constituents {
		c, ok := f.Column(name + "_close")
		if !ok {
			continue
		}
		r := LogReturns(c)
		f.MustSet(name+"_ret", r)
		rets = append(rets, r)
		rvs = append(rvs, realizedVolSumSquares(r, 5))
	}
	if len(rets) == 0 {
		f.MustSet("dispersion", make([]float64, n))
		f.MustSet("constituent_rv", make([]float64, n))
		f.MarkDegraded("dispersion")
		f.MarkDegraded("constituent_rv")
		return
	}
	disp := make([]float64, n)
	crv := make([]float64, n)
	row := make([]float64, len(rets))
	rvRow := make([]float64, len(rvs))
	for i := 0; i < n; i++ {
		for j := range rets {
			row[j] = rets[j][i]
			rvRow[j] = rvs[j][i]
		}
		disp[i] = crossStd(row)
		crv[i] = crossMean(rvRow)
	}
	f.MustSet("dispersion", disp)
	f.MustSet("constituent_rv", crv)
}

func (e *Engine) timeBlock(f *models.Frame) {
	n := f.Len()
	minute := make([]float64, n)
	sin := make([]float64, n)
	cos := make([]float64, n)
	period := float64(e.cfg.SessionMinutes)
	for i, ts := range f.Index() {
		local := ts.In(e.cfg.Location)
		m := float64(local.Hour()*60+local.Minute()) - float64(e.cfg.SessionOpenMinute)
		minute[i] = m
		sin[i] = math.Sin(2 * math.Pi * m / period)
		cos[i] = math.Cos(2 * math.Pi * m / period)
	}
	f.MustSet("minute_of_day", minute)
	f.MustSet("sin_time", sin)
	f.MustSet("cos_time", cos)
}

// realizedVolSumSquares is the root-sum-of-squares realized volatility over
// trailing windows of w returns. It is numerically distinct from the
// sample-std form and the two are never interchangeable.
func realizedVolSumSquares(ret []float64, w int) []float64 {
	sq := make([]float64, len(ret))
	for i, r := range ret {
		sq[i] = r * r
	}
	return sqrtAll(RollingSum(sq, w))
}

// parkinson computes the instantaneous Parkinson variance proxy
// (1/(4 ln 2)) * ln(high/low)^2. Malformed bars (inverted or non-positive
// ranges) yield NaN rather than an error.
func parkinson(high, low []float64) []float64 {
	k := 1.0 / (4.0 * math.Ln2)
	out := make([]float64, len(high))
	for i := range high {
		if math.IsNaN(high[i]) || math.IsNaN(low[i]) || high[i] <= 0 || low[i] <= 0 {
			out[i] = math.NaN()
			continue
		}
		l := math.Log(high[i] / low[i])
		out[i] = k * l * l
	}
	return out
}

// garmanKlass computes the instantaneous Garman-Klass variance proxy
// 0.5*ln(h/l)^2 - (2 ln 2 - 1)*ln(c/o)^2.
func garmanKlass(open, high, low, cls []float64) []float64 {
	k := 2.0*math.Ln2 - 1.0
	out := make([]float64, len(open))
	for i := range open {
		if math.IsNaN(open[i]) || math.IsNaN(high[i]) || math.IsNaN(low[i]) || math.IsNaN(cls[i]) ||
			open[i] <= 0 || high[i] <= 0 || low[i] <= 0 || cls[i] <= 0 {
			out[i] = math.NaN()
			continue
		}
		hl := math.Log(high[i] / low[i])
		co := math.Log(cls[i] / open[i])
		out[i] = 0.5*hl*hl - k*co*co
	}
	return out
}

// rsi is the Wilder-style oscillator over a w-bar mean of positive vs
// negative deltas, denominator stabilized with epsilon, scaled to [0,100].
func rsi(cls []float64, w int) []float64 {
	delta := Diff(cls)
	gains := make([]float64, len(delta))
	losses := make([]float64, len(delta))
	for i, d := range delta {
		if math.IsNaN(d) {
			gains[i] = math.NaN()
			losses[i] = math.NaN()
			continue
		}
		if d > 0 {
			gains[i] = d
		}
		if d < 0 {
			losses[i] = -d
		}
	}
	gain := RollingMean(gains, w)
	loss := RollingMean(losses, w)
	out := make([]float64, len(cls))
	for i := range out {
		if math.IsNaN(gain[i]) || math.IsNaN(loss[i]) {
			out[i] = math.NaN()
			continue
		}
		rs := gain[i] / (loss[i] + epsilon)
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// volumeSpike divides a volume series by its 15-bar trailing mean plus one.
func volumeSpike(v []float64) []float64 {
	mean := RollingMean(v, 15)
	out := make([]float64, len(v))
	for i := range v {
		if math.IsNaN(v[i]) || math.IsNaN(mean[i]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = v[i] / (mean[i] + 1)
	}
	return out
}

func posInRange(cls, high, low []float64) []float64 {
	out := make([]float64, len(cls))
	for i := range cls {
		out[i] = (cls[i] - low[i]) / (high[i] - low[i] + epsilon)
	}
	return out
}

func sub(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

func absDiff(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = math.Abs(a[i] - b[i])
	}
	return out
}

func neg(a []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = -a[i]
	}
	return out
}

func ratio(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] / (b[i] + epsilon)
	}
	return out
}

func sqrtAll(a []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = math.Sqrt(a[i])
	}
	return out
}
