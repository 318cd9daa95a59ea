// Package oddsmodel holds the pure decimal-odds math used by the detectors.
package oddsmodel

import (
	"fmt"
	"math"
)

// Signal grades a value edge.
type Signal string

const (
	SignalStrong Signal = "STRONG"
	SignalMedium Signal = "MEDIUM"
	SignalNone   Signal = "NONE"
)

// ImpliedProbability converts decimal odds into the probability they encode.
// Non-positive and non-finite odds map to 0.
func ImpliedProbability(odds float64) float64 {
	if odds <= 0 || math.IsNaN(odds) || math.IsInf(odds, 0) {
		return 0
	}
	return 1 / odds
}

// FairOdds converts a probability back into decimal odds. A zero probability maps to 0.
func FairOdds(probability float64) float64 {
	if probability == 0 || math.IsNaN(probability) {
		return 0
	}
	return 1 / probability
}

// EdgeThresholds are the cutoffs used to grade a value edge.
type EdgeThresholds struct {
	Strong float64
	Medium float64
}

// DefaultEdgeThresholds returns the stock STRONG/MEDIUM cutoffs.
func DefaultEdgeThresholds() EdgeThresholds {
	return EdgeThresholds{Strong: 0.20, Medium: 0.10}
}

// Validate checks that strong >= medium >= 0.
func (t EdgeThresholds) Validate() error {
	if t.Medium < 0 {
		return fmt.Errorf("medium edge threshold cannot be negative")
	}
	if t.Strong < t.Medium {
		return fmt.Errorf("strong edge threshold (%v) must be >= medium (%v)", t.Strong, t.Medium)
	}
	return nil
}

// Classify grades an edge: edge >= Strong is STRONG, edge >= Medium is MEDIUM.
func (t EdgeThresholds) Classify(edge float64) Signal {
	switch {
	case edge >= t.Strong:
		return SignalStrong
	case edge >= t.Medium:
		return SignalMedium
	default:
		return SignalNone
	}
}

// Weights blend the sharpest book's probability with the market mean.
type Weights struct {
	Sharp float64
	Move  float64
}

const weightTolerance = 1e-9

// DefaultWeights returns the 0.65/0.35 blend.
func DefaultWeights() Weights {
	return Weights{Sharp: 0.65, Move: 0.35}
}

// Validate rejects negative weights and pairs that do not sum to 1.
func (w Weights) Validate() error {
	if w.Sharp < 0 || w.Move < 0 {
		return fmt.Errorf("weights cannot be negative (sharp=%v move=%v)", w.Sharp, w.Move)
	}
	if math.Abs(w.Sharp+w.Move-1) > weightTolerance {
		return fmt.Errorf("sharp and move weights must sum to 1.0, got %v", w.Sharp+w.Move)
	}
	return nil
}

// Blend returns Sharp*sharpProb + Move*meanProb.
func (w Weights) Blend(sharpProb, meanProb float64) float64 {
	return w.Sharp*sharpProb + w.Move*meanProb
}
