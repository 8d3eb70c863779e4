package model

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

// stumpArtifact builds a two-tree ensemble over two features:
//
//	tree 0: f0 < 1.0 ? -0.5 : +0.5  (missing goes left)
//	tree 1: f1 < 2.0 ? -0.25 : +0.25 (missing goes right)
func stumpArtifact(objective string, base float64) *Artifact {
	return &Artifact{
		Name:      "stump",
		Objective: objective,
		BaseScore: base,
		FeatureNames: []string{
			"f0", "f1",
		},
		Trees: []Tree{
			{Nodes: []Node{
				{Feature: 0, Threshold: 1.0, Left: 1, Right: 2, DefaultLeft: true},
				{Leaf: true, Value: -0.5},
				{Leaf: true, Value: 0.5},
			}},
			{Nodes: []Node{
				{Feature: 1, Threshold: 2.0, Left: 1, Right: 2, DefaultLeft: false},
				{Leaf: true, Value: -0.25},
				{Leaf: true, Value: 0.25},
			}},
		},
	}
}

func TestArtifactRegressionScoring(t *testing.T) {
	a := stumpArtifact(ObjectiveLogVariance, 0.1)

	cases := []struct {
		name string
		in   []float64
		want float64
	}{
		{"both low", []float64{0.5, 1.0}, 0.1 - 0.5 - 0.25},
		{"both high", []float64{2.0, 3.0}, 0.1 + 0.5 + 0.25},
		{"split", []float64{2.0, 1.0}, 0.1 + 0.5 - 0.25},
		{"boundary goes right", []float64{1.0, 2.0}, 0.1 + 0.5 + 0.25},
	}
	for _, c := range cases {
		got, err := a.Predict(c.in)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if math.Abs(got-c.want) > 1e-12 {
			t.Errorf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestArtifactMissingValuesFollowDefaultBranch(t *testing.T) {
	a := stumpArtifact(ObjectiveLogVariance, 0)

	// f0 missing goes left (-0.5); f1 missing goes right (+0.25).
	got, err := a.Predict([]float64{math.NaN(), math.NaN()})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if want := -0.5 + 0.25; math.Abs(got-want) > 1e-12 {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestArtifactBinaryOutputIsProbability(t *testing.T) {
	a := stumpArtifact(ObjectiveBinary, 0)

	low, err := a.Predict([]float64{0.0, 0.0})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	high, err := a.Predict([]float64{5.0, 5.0})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if low <= 0 || low >= 0.5 {
		t.Fatalf("negative margin should land in (0, 0.5), got %v", low)
	}
	if high <= 0.5 || high >= 1 {
		t.Fatalf("positive margin should land in (0.5, 1), got %v", high)
	}
}

func TestArtifactRejectsWrongFeatureCount(t *testing.T) {
	a := stumpArtifact(ObjectiveBinary, 0)
	if _, err := a.Predict([]float64{1.0}); err == nil {
		t.Fatalf("expected error on short feature row")
	}
}

func TestLoadArtifactRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stump.json")
	raw := `{
		"name": "stump",
		"objective": "binary",
		"base_score": 0.0,
		"feature_names": ["f0", "f1"],
		"trees": [
			{"nodes": [
				{"feature": 0, "threshold": 1.0, "left": 1, "right": 2, "default_left": true},
				{"leaf": true, "value": -0.5},
				{"leaf": true, "value": 0.5}
			]}
		]
	}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	a, err := LoadArtifact(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if a.Name != "stump" || len(a.Trees) != 1 || len(a.FeatureNames) != 2 {
		t.Fatalf("unexpected artifact: %+v", a)
	}
}

func TestLoadArtifactRejectsMalformed(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name string
		raw  string
	}{
		{"missing file sentinel", ""},
		{"bad objective", `{"name":"x","objective":"rank","base_score":0,"feature_names":["a"],"trees":[{"nodes":[{"leaf":true,"value":1}]}]}`},
		{"no trees", `{"name":"x","objective":"binary","base_score":0,"feature_names":["a"],"trees":[]}`},
		{"feature out of range", `{"name":"x","objective":"binary","base_score":0,"feature_names":["a"],"trees":[{"nodes":[{"feature":3,"threshold":0,"left":1,"right":2},{"leaf":true,"value":0},{"leaf":true,"value":0}]}]}`},
		{"child cycle", `{"name":"x","objective":"binary","base_score":0,"feature_names":["a"],"trees":[{"nodes":[{"feature":0,"threshold":0,"left":0,"right":0}]}]}`},
	}
	for _, c := range cases {
		path := filepath.Join(dir, c.name+".json")
		if c.raw != "" {
			if err := os.WriteFile(path, []byte(c.raw), 0o644); err != nil {
				t.Fatalf("write fixture: %v", err)
			}
		}
		if _, err := LoadArtifact(path); err == nil {
			t.Errorf("%s: expected load failure", c.name)
		}
	}
}
