package model

import (
	"fmt"
	"math"

	"VolStack/internal/domain/models"
	"VolStack/internal/domain/service"
)

var _ service.Model = (*Adapter)(nil)

// Column-binding choices for the inputs the feature table computes in more
// than one form. Trained feature lists name the generic column; the binding
// decides which concrete column feeds it.
const (
	RVSumSquares = "sum_squares"
	RVSampleStd  = "sample_std"

	VolSpikeConstituentSum = "constituent_sum"
	VolSpikeIndexOwn       = "index_own"
)

// sampleStdBindings maps generic realized-vol names to their sample-std
// counterparts.
var sampleStdBindings = map[string]string{
	"rv_5":  "rv_5_std",
	"rv_15": "rv_15_std",
	"rv_30": "rv_30_std",
}

// ColumnBindings maps a trained feature name to the frame column that
// feeds it. Unmapped names resolve to themselves.
type ColumnBindings map[string]string

// NewBindings builds the binding table for one model's configuration.
func NewBindings(rvForm, volSpike string) (ColumnBindings, error) {
	b := ColumnBindings{}
	switch rvForm {
	case RVSumSquares:
	case RVSampleStd:
		for from, to := range sampleStdBindings {
			b[from] = to
		}
	default:
		return nil, fmt.Errorf("unknown realized-vol form %q", rvForm)
	}
	switch volSpike {
	case VolSpikeConstituentSum:
		b["vol_spike"] = "vol_spike_const"
	case VolSpikeIndexOwn:
		b["vol_spike"] = "vol_spike_index"
	default:
		return nil, fmt.Errorf("unknown volume-spike variant %q", volSpike)
	}
	return b, nil
}

func (b ColumnBindings) resolve(name string) string {
	if to, ok := b[name]; ok {
		return to
	}
	return name
}

// FillReport records which trained features could not be fed from real
// data: absent columns filled with 0.0, missing (NaN) values zeroed, and
// columns the engine produced as degraded placeholders.
type FillReport struct {
	Absent   []string
	NaNFill  []string
	Degraded []string
}

// Empty reports whether every feature was fed from a real value.
func (r *FillReport) Empty() bool {
	return len(r.Absent) == 0 && len(r.NaNFill) == 0 && len(r.Degraded) == 0
}

// Adapter reindexes a feature frame to one artifact's trained column list
// and scores rows against it.
type Adapter struct {
	art  *Artifact
	bind ColumnBindings
}

func NewAdapter(art *Artifact, bind ColumnBindings) *Adapter {
	if bind == nil {
		bind = ColumnBindings{}
	}
	return &Adapter{art: art, bind: bind}
}

func (a *Adapter) Name() string { return a.art.Name }

// FeatureNames returns the trained column list, in scoring order.
func (a *Adapter) FeatureNames() []string { return a.art.FeatureNames }

// Vector reindexes one frame row to the trained feature list. Genuinely
// absent columns and missing values become 0.0 and are reported; a
// resulting length that does not match the model's expectation is a
// feature schema mismatch and fails before any scoring happens.
func (a *Adapter) Vector(f *models.Frame, row int) ([]float64, *FillReport, error) {
	if row < 0 || row >= f.Len() {
		return nil, nil, fmt.Errorf("model %s: row %d out of range (%d rows)", a.art.Name, row, f.Len())
	}
	report := &FillReport{}
	out := make([]float64, len(a.art.FeatureNames))
	for i, name := range a.art.FeatureNames {
		col := a.bind.resolve(name)
		if !f.Has(col) {
			report.Absent = append(report.Absent, col)
			continue
		}
		if f.IsDegraded(col) {
			report.Degraded = append(report.Degraded, col)
		}
		v := f.At(col, row)
		if math.IsNaN(v) {
			report.NaNFill = append(report.NaNFill, col)
			continue
		}
		out[i] = v
	}
	if len(out) != len(a.art.FeatureNames) {
		return nil, nil, fmt.Errorf("model %s: feature schema mismatch: built %d of %d columns",
			a.art.Name, len(out), len(a.art.FeatureNames))
	}
	return out, report, nil
}

// Predict satisfies the service Model contract.
func (a *Adapter) Predict(features []float64) (float64, error) {
	return a.art.Predict(features)
}

// VolatilityPredictor wraps a log-space regression artifact and inverts
// its output into an actual volatility estimate.
type VolatilityPredictor struct {
	*Adapter
}

func NewVolatilityPredictor(art *Artifact, bind ColumnBindings) (*VolatilityPredictor, error) {
	if art.Objective != ObjectiveLogVariance {
		return nil, fmt.Errorf("model %s: volatility predictor requires a %s artifact, got %s",
			art.Name, ObjectiveLogVariance, art.Objective)
	}
	return &VolatilityPredictor{Adapter: NewAdapter(art, bind)}, nil
}

// PredictRow scores one frame row and returns the exp-inverted, strictly
// non-negative volatility estimate.
func (p *VolatilityPredictor) PredictRow(f *models.Frame, row int) (float64, *FillReport, error) {
	vec, report, err := p.Vector(f, row)
	if err != nil {
		return 0, nil, err
	}
	raw, err := p.Predict(vec)
	if err != nil {
		return 0, nil, err
	}
	return math.Exp(raw), report, nil
}

// DirectionPredictor wraps a binary classification artifact into a
// (down, up) probability pair.
type DirectionPredictor struct {
	*Adapter
}

func NewDirectionPredictor(art *Artifact, bind ColumnBindings) (*DirectionPredictor, error) {
	if art.Objective != ObjectiveBinary {
		return nil, fmt.Errorf("model %s: direction predictor requires a %s artifact, got %s",
			art.Name, ObjectiveBinary, art.Objective)
	}
	return &DirectionPredictor{Adapter: NewAdapter(art, bind)}, nil
}

// PredictRow scores one frame row. The pair sums to one.
func (p *DirectionPredictor) PredictRow(f *models.Frame, row int) (down, up float64, report *FillReport, err error) {
	vec, report, err := p.Vector(f, row)
	if err != nil {
		return 0, 0, nil, err
	}
	up, err = p.Predict(vec)
	if err != nil {
		return 0, 0, nil, err
	}
	return 1 - up, up, report, nil
}
