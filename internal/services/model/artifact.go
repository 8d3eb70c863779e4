package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Objectives an artifact may declare. The regressor predicts in log space
// and the caller inverts it; the classifier emits a probability.
const (
	ObjectiveLogVariance = "log_variance"
	ObjectiveBinary      = "binary"
)

// Node is one split or leaf of a decision tree. Leaves carry only Value;
// splits route on Feature vs Threshold, with missing values following the
// DefaultLeft branch.
type Node struct {
	Feature     int     `json:"feature"`
	Threshold   float64 `json:"threshold"`
	Left        int     `json:"left"`
	Right       int     `json:"right"`
	DefaultLeft bool    `json:"default_left"`
	Leaf        bool    `json:"leaf"`
	Value       float64 `json:"value"`
}

// Tree is a flat node array; index 0 is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// score walks the tree for one feature row.
func (t *Tree) score(features []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		v := features[n.Feature]
		switch {
		case math.IsNaN(v):
			if n.DefaultLeft {
				i = n.Left
			} else {
				i = n.Right
			}
		case v < n.Threshold:
			i = n.Left
		default:
			i = n.Right
		}
	}
}

// Artifact is a serialized gradient-boosted tree ensemble exported by the
// training pipeline. It is loaded once at startup and never mutated.
type Artifact struct {
	Name         string   `json:"name"`
	Objective    string   `json:"objective"`
	BaseScore    float64  `json:"base_score"`
	FeatureNames []string `json:"feature_names"`
	Trees        []Tree   `json:"trees"`
}

// LoadArtifact reads and validates a model artifact from disk.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact %s: %w", path, err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse model artifact %s: %w", path, err)
	}
	if err := a.validate(); err != nil {
		return nil, fmt.Errorf("invalid model artifact %s: %w", path, err)
	}
	return &a, nil
}

func (a *Artifact) validate() error {
	if a.Objective != ObjectiveLogVariance && a.Objective != ObjectiveBinary {
		return fmt.Errorf("unknown objective %q", a.Objective)
	}
	if len(a.FeatureNames) == 0 {
		return fmt.Errorf("empty feature list")
	}
	if len(a.Trees) == 0 {
		return fmt.Errorf("no trees")
	}
	for ti, t := range a.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d has no nodes", ti)
		}
		for ni, n := range t.Nodes {
			if n.Leaf {
				continue
			}
			if n.Feature < 0 || n.Feature >= len(a.FeatureNames) {
				return fmt.Errorf("tree %d node %d references feature %d of %d", ti, ni, n.Feature, len(a.FeatureNames))
			}
			if n.Left < 0 || n.Left >= len(t.Nodes) || n.Right < 0 || n.Right >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d has child out of range", ti, ni)
			}
			if n.Left <= ni || n.Right <= ni {
				return fmt.Errorf("tree %d node %d children must follow the node", ti, ni)
			}
		}
	}
	return nil
}

// margin sums tree outputs on top of the base score.
func (a *Artifact) margin(features []float64) float64 {
	out := a.BaseScore
	for i := range a.Trees {
		out += a.Trees[i].score(features)
	}
	return out
}

// Predict scores one feature row, ordered per FeatureNames. Binary models
// return the positive-class probability; regression models return the raw
// margin.
func (a *Artifact) Predict(features []float64) (float64, error) {
	if len(features) != len(a.FeatureNames) {
		return 0, fmt.Errorf("model %s expects %d features, got %d", a.Name, len(a.FeatureNames), len(features))
	}
	m := a.margin(features)
	if a.Objective == ObjectiveBinary {
		return sigmoid(m), nil
	}
	return m, nil
}

func sigmoid(z float64) float64 {
	if z > 30 {
		return 1
	}
	if z < -30 {
		return 0
	}
	return 1 / (1 + math.Exp(-z))
}
