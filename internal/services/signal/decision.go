package signal

import (
	"fmt"

	"VolStack/internal/domain/models"
)

// Default thresholds used when config leaves them unset.
const (
	DefaultConfidence   = 0.55
	DefaultVolExpansion = 0.0010
)

// Decider maps a (predicted volatility, direction probability) pair onto a
// categorical signal. It is stateless: signals near a threshold may flap
// between cycles and that is accepted, not smoothed.
type Decider struct {
	confidence   float64
	volExpansion float64
}

func New(confidence, volExpansion float64) (*Decider, error) {
	if confidence <= 0 || confidence >= 1 {
		return nil, fmt.Errorf("signal: confidence threshold must lie in (0,1), got %v", confidence)
	}
	if volExpansion <= 0 {
		return nil, fmt.Errorf("signal: volatility-expansion threshold must be positive, got %v", volExpansion)
	}
	return &Decider{confidence: confidence, volExpansion: volExpansion}, nil
}

// Decide applies the 2x3 decision table.
func (d *Decider) Decide(predVol, probUp, probDown float64) models.Signal {
	if predVol > d.volExpansion {
		switch {
		case probUp > d.confidence:
			return models.SignalStrongBuy
		case probDown > d.confidence:
			return models.SignalStrongSell
		default:
			return models.SignalHighVolNoDir
		}
	}
	switch {
	case probUp > d.confidence:
		return models.SignalGrindUp
	case probDown > d.confidence:
		return models.SignalGrindDown
	default:
		return models.SignalNeutral
	}
}
