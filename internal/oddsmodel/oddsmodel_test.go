package oddsmodel

import (
	"math"
	"testing"
)

func TestFairOddsInvertsImpliedProbability(t *testing.T) {
	for _, odds := range []float64{1.01, 1.5, 1.85, 2.0, 3.75, 11.0, 101.0} {
		got := FairOdds(ImpliedProbability(odds))
		if math.Abs(got-odds) > 1e-9 {
			t.Fatalf("round trip of %v gave %v", odds, got)
		}
	}
}

func TestImpliedProbabilityGuards(t *testing.T) {
	cases := []float64{0, -1.5, math.NaN(), math.Inf(1)}
	for _, odds := range cases {
		if got := ImpliedProbability(odds); got != 0 {
			t.Fatalf("ImpliedProbability(%v) = %v, want 0", odds, got)
		}
	}
	if got := FairOdds(0); got != 0 {
		t.Fatalf("FairOdds(0) = %v, want 0", got)
	}
}

func TestClassify(t *testing.T) {
	th := DefaultEdgeThresholds()
	cases := []struct {
		edge float64
		want Signal
	}{
		{0.25, SignalStrong},
		{0.20, SignalStrong},
		{0.15, SignalMedium},
		{0.10, SignalMedium},
		{0.0999, SignalNone},
		{-0.3, SignalNone},
	}
	for _, tc := range cases {
		if got := th.Classify(tc.edge); got != tc.want {
			t.Errorf("Classify(%v) = %s, want %s", tc.edge, got, tc.want)
		}
	}
}

func TestWeightsValidate(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Fatalf("default weights should be valid: %v", err)
	}
	if err := (Weights{Sharp: 0.7, Move: 0.7}).Validate(); err == nil {
		t.Fatal("weights summing to 1.4 should be rejected")
	}
	if err := (Weights{Sharp: 1.2, Move: -0.2}).Validate(); err == nil {
		t.Fatal("negative weight should be rejected")
	}
}

func TestThresholdsValidate(t *testing.T) {
	if err := (EdgeThresholds{Strong: 0.1, Medium: 0.2}).Validate(); err == nil {
		t.Fatal("strong below medium should be rejected")
	}
}
