package features

import "math"

// Series primitives with explicit missing-value semantics: a missing value
// is NaN, a rolling window of width w yields NaN until w in-window values
// exist, and any NaN inside the window poisons the result. These rules must
// match the offline training pipeline exactly; the batch/live equivalence of
// the feature engine rests on them.

// LogReturns computes r_t = ln(x_t / x_{t-1}). The first element is NaN, as
// is any element whose operands are NaN or non-positive.
func LogReturns(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		prev, cur := x[i-1], x[i]
		if math.IsNaN(prev) || math.IsNaN(cur) || prev <= 0 || cur <= 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = math.Log(cur / prev)
	}
	return out
}

// Shift moves a series forward by k positions (k > 0 pads the front with
// NaN). A negative k shifts backward, padding the tail, which is only used
// for forward-looking label computation in the offline path.
func Shift(x []float64, k int) []float64 {
	out := make([]float64, len(x))
	for i := range out {
		j := i - k
		if j < 0 || j >= len(x) {
			out[i] = math.NaN()
			continue
		}
		out[i] = x[j]
	}
	return out
}

// Diff computes x_t - x_{t-1} with a NaN first element.
func Diff(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i == 0 || math.IsNaN(x[i]) || math.IsNaN(x[i-1]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = x[i] - x[i-1]
	}
	return out
}

// RollingSum computes a trailing sum over windows of width w.
func RollingSum(x []float64, w int) []float64 {
	return rollingApply(x, w, func(win []float64) float64 {
		s := 0.0
		for _, v := range win {
			s += v
		}
		return s
	})
}

// RollingMean computes a trailing mean over windows of width w.
func RollingMean(x []float64, w int) []float64 {
	return rollingApply(x, w, func(win []float64) float64 {
		s := 0.0
		for _, v := range win {
			s += v
		}
		return s / float64(len(win))
	})
}

// RollingStd computes a trailing sample standard deviation (ddof=1) over
// windows of width w. For w < 2 every element is NaN.
func RollingStd(x []float64, w int) []float64 {
	if w < 2 {
		out := make([]float64, len(x))
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	return rollingApply(x, w, func(win []float64) float64 {
		mean := 0.0
		for _, v := range win {
			mean += v
		}
		mean /= float64(len(win))
		ss := 0.0
		for _, v := range win {
			d := v - mean
			ss += d * d
		}
		return math.Sqrt(ss / float64(len(win)-1))
	})
}

func rollingApply(x []float64, w int, agg func([]float64) float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if w <= 0 || i < w-1 {
			out[i] = math.NaN()
			continue
		}
		win := x[i-w+1 : i+1]
		bad := false
		for _, v := range win {
			if math.IsNaN(v) {
				bad = true
				break
			}
		}
		if bad {
			out[i] = math.NaN()
			continue
		}
		out[i] = agg(win)
	}
	return out
}

// ForwardFill replaces each NaN with the last preceding non-NaN value.
// Leading NaNs remain NaN: filling must never fabricate data at the start
// of a series.
func ForwardFill(x []float64) []float64 {
	out := make([]float64, len(x))
	last := math.NaN()
	for i, v := range x {
		if !math.IsNaN(v) {
			last = v
		}
		out[i] = last
	}
	return out
}

// FillZero replaces NaN with 0.
func FillZero(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		if math.IsNaN(v) {
			out[i] = 0
			continue
		}
		out[i] = v
	}
	return out
}

// ZerosToNaN replaces exact zeros with NaN, used before forward-filling a
// volume series so that "no trade printed" does not read as zero activity.
func ZerosToNaN(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		if v == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = v
	}
	return out
}

// crossStd computes the cross-sectional sample standard deviation of one
// row across series, skipping NaN. Fewer than two valid values yield NaN.
func crossStd(vals []float64) float64 {
	var valid []float64
	for _, v := range vals {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) < 2 {
		return math.NaN()
	}
	mean := 0.0
	for _, v := range valid {
		mean += v
	}
	mean /= float64(len(valid))
	ss := 0.0
	for _, v := range valid {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(valid)-1))
}

// crossMean computes the cross-sectional mean of one row across series,
// skipping NaN. No valid values yield NaN.
func crossMean(vals []float64) float64 {
	n := 0
	sum := 0.0
	for _, v := range vals {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
