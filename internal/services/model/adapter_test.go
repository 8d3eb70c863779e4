package model

import (
	"math"
	"testing"
	"time"

	"VolStack/internal/domain/models"
)

func singleRowFrame(t *testing.T, cols map[string]float64, degraded ...string) *models.Frame {
	t.Helper()
	f := models.NewFrame([]time.Time{time.Unix(0, 0).UTC()})
	for name, v := range cols {
		f.MustSet(name, []float64{v})
	}
	for _, name := range degraded {
		f.MarkDegraded(name)
	}
	return f
}

func TestNewBindingsRejectsUnknownChoices(t *testing.T) {
	if _, err := NewBindings("harmonic", VolSpikeIndexOwn); err == nil {
		t.Fatalf("expected error on unknown realized-vol form")
	}
	if _, err := NewBindings(RVSumSquares, "median"); err == nil {
		t.Fatalf("expected error on unknown volume-spike variant")
	}
}

func TestBindingsSelectConcreteColumns(t *testing.T) {
	art := stumpArtifact(ObjectiveLogVariance, 0)
	art.FeatureNames = []string{"rv_5", "vol_spike"}

	f := singleRowFrame(t, map[string]float64{
		"rv_5":            1.0,
		"rv_5_std":        2.0,
		"vol_spike_const": 3.0,
		"vol_spike_index": 4.0,
	})

	sumBind, err := NewBindings(RVSumSquares, VolSpikeConstituentSum)
	if err != nil {
		t.Fatalf("bindings: %v", err)
	}
	vec, _, err := NewAdapter(art, sumBind).Vector(f, 0)
	if err != nil {
		t.Fatalf("vector: %v", err)
	}
	if vec[0] != 1.0 || vec[1] != 3.0 {
		t.Fatalf("sum-squares bindings picked wrong columns: %v", vec)
	}

	stdBind, err := NewBindings(RVSampleStd, VolSpikeIndexOwn)
	if err != nil {
		t.Fatalf("bindings: %v", err)
	}
	vec, _, err = NewAdapter(art, stdBind).Vector(f, 0)
	if err != nil {
		t.Fatalf("vector: %v", err)
	}
	if vec[0] != 2.0 || vec[1] != 4.0 {
		t.Fatalf("sample-std bindings picked wrong columns: %v", vec)
	}
}

func TestVectorFillsAbsentAndMissingWithZero(t *testing.T) {
	art := stumpArtifact(ObjectiveBinary, 0)
	art.FeatureNames = []string{"f0", "f_absent"}

	f := singleRowFrame(t, map[string]float64{"f0": math.NaN()})
	vec, report, err := NewAdapter(art, nil).Vector(f, 0)
	if err != nil {
		t.Fatalf("vector: %v", err)
	}
	if vec[0] != 0 || vec[1] != 0 {
		t.Fatalf("expected zero fills, got %v", vec)
	}
	if len(report.Absent) != 1 || report.Absent[0] != "f_absent" {
		t.Fatalf("absent column not reported: %+v", report)
	}
	if len(report.NaNFill) != 1 || report.NaNFill[0] != "f0" {
		t.Fatalf("missing value not reported: %+v", report)
	}
}

func TestVectorSurfacesDegradedColumns(t *testing.T) {
	art := stumpArtifact(ObjectiveBinary, 0)
	art.FeatureNames = []string{"vix", "f0"}

	f := singleRowFrame(t, map[string]float64{"vix": 0, "f0": 1}, "vix")
	_, report, err := NewAdapter(art, nil).Vector(f, 0)
	if err != nil {
		t.Fatalf("vector: %v", err)
	}
	if len(report.Degraded) != 1 || report.Degraded[0] != "vix" {
		t.Fatalf("degraded column not surfaced: %+v", report)
	}
	if report.Empty() {
		t.Fatalf("report with degraded columns must not read as clean")
	}
}

func TestVectorRejectsRowOutOfRange(t *testing.T) {
	art := stumpArtifact(ObjectiveBinary, 0)
	f := singleRowFrame(t, map[string]float64{"f0": 1, "f1": 1})
	if _, _, err := NewAdapter(art, nil).Vector(f, 5); err == nil {
		t.Fatalf("expected error on out-of-range row")
	}
}

func TestVolatilityPredictorInvertsLogSpace(t *testing.T) {
	art := stumpArtifact(ObjectiveLogVariance, 0)
	p, err := NewVolatilityPredictor(art, nil)
	if err != nil {
		t.Fatalf("new predictor: %v", err)
	}

	// Margin for (0.5, 1.0) is -0.75; the estimate is exp of that.
	f := singleRowFrame(t, map[string]float64{"f0": 0.5, "f1": 1.0})
	v, report, err := p.PredictRow(f, 0)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if want := math.Exp(-0.75); math.Abs(v-want) > 1e-12 {
		t.Fatalf("got %v, want %v", v, want)
	}
	if v <= 0 {
		t.Fatalf("volatility estimate must be positive, got %v", v)
	}
	if !report.Empty() {
		t.Fatalf("full inputs should produce a clean report: %+v", report)
	}
}

func TestVolatilityPredictorRejectsClassifier(t *testing.T) {
	if _, err := NewVolatilityPredictor(stumpArtifact(ObjectiveBinary, 0), nil); err == nil {
		t.Fatalf("expected objective mismatch error")
	}
}

func TestDirectionPredictorPairSumsToOne(t *testing.T) {
	art := stumpArtifact(ObjectiveBinary, 0)
	p, err := NewDirectionPredictor(art, nil)
	if err != nil {
		t.Fatalf("new predictor: %v", err)
	}

	f := singleRowFrame(t, map[string]float64{"f0": 2.0, "f1": 3.0})
	down, up, _, err := p.PredictRow(f, 0)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if math.Abs(down+up-1) > 1e-12 {
		t.Fatalf("pair must sum to one: down=%v up=%v", down, up)
	}
	if up <= 0.5 {
		t.Fatalf("positive margin should favor up, got %v", up)
	}
}

func TestDirectionPredictorRejectsRegressor(t *testing.T) {
	if _, err := NewDirectionPredictor(stumpArtifact(ObjectiveLogVariance, 0), nil); err == nil {
		t.Fatalf("expected objective mismatch error")
	}
}
