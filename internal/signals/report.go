package signals

import (
	"fmt"
	"sort"
	"time"

	"odds-value-alerts/internal/odds"
	"odds-value-alerts/internal/oddsmodel"
)

// Config carries the model's tuning parameters.
type Config struct {
	Weights            oddsmodel.Weights
	Thresholds         oddsmodel.EdgeThresholds
	SharpThreshold     float64
	DeviationThreshold float64
	OutcomeMatching    OutcomeMatching
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		Weights:            oddsmodel.DefaultWeights(),
		Thresholds:         oddsmodel.DefaultEdgeThresholds(),
		SharpThreshold:     0.20,
		DeviationThreshold: 0.25,
		OutcomeMatching:    MatchByName,
	}
}

// CycleReport is everything one poll cycle derived from its snapshot(s).
// It is rebuilt from scratch every cycle.
type CycleReport struct {
	CycleID          string         `json:"cycle_id"`
	GeneratedAt      time.Time      `json:"generated_at"`
	SnapshotAt       time.Time      `json:"snapshot_at"`
	PreviousAt       *time.Time     `json:"previous_at,omitempty"`
	Matches          int            `json:"matches"`
	MovementCompared bool           `json:"movement_compared"`
	Value            []FairValue    `json:"value"`
	Movements        []LineMovement `json:"movements"`
	SharpMoves       []LineMovement `json:"sharp_moves"`
	Disagreements    []Disagreement `json:"disagreements"`
}

// ValueSignals returns fair values whose best edge is graded above NONE,
// ordered by descending best edge.
func (r CycleReport) ValueSignals() []FairValue {
	var out []FairValue
	for _, fv := range r.Value {
		if best, ok := fv.Best(); ok && best.Signal != oddsmodel.SignalNone {
			out = append(out, fv)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Edges[0].Edge > out[j].Edges[0].Edge
	})
	return out
}

// HasAlerts reports whether the report carries anything worth notifying.
func (r CycleReport) HasAlerts() bool {
	return len(r.SharpMoves) > 0 || len(r.Disagreements) > 0
}

// Analyzer runs the three detectors over a cycle's snapshots.
type Analyzer struct {
	value        *ValueDetector
	movement     *MovementAnalyzer
	disagreement *DisagreementDetector
}

// NewAnalyzer validates cfg and builds every detector.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	value, err := NewValueDetector(cfg.Weights, cfg.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("value detector: %w", err)
	}
	movement, err := NewMovementAnalyzer(cfg.SharpThreshold, cfg.OutcomeMatching)
	if err != nil {
		return nil, fmt.Errorf("movement analyzer: %w", err)
	}
	disagreement, err := NewDisagreementDetector(cfg.DeviationThreshold)
	if err != nil {
		return nil, fmt.Errorf("disagreement detector: %w", err)
	}
	return &Analyzer{value: value, movement: movement, disagreement: disagreement}, nil
}

// Value exposes the value detector.
func (a *Analyzer) Value() *ValueDetector { return a.value }

// Movement exposes the movement analyzer.
func (a *Analyzer) Movement() *MovementAnalyzer { return a.movement }

// Disagreement exposes the disagreement detector.
func (a *Analyzer) Disagreement() *DisagreementDetector { return a.disagreement }

// Analyze builds a report for latest. prev may be nil when no earlier snapshot exists.
func (a *Analyzer) Analyze(prev *odds.Snapshot, latest odds.Snapshot) CycleReport {
	report := CycleReport{
		GeneratedAt: time.Now().UTC(),
		SnapshotAt:  latest.Timestamp,
		Matches:     len(latest.Matches),
	}

	for _, m := range latest.Matches {
		report.Value = append(report.Value, a.value.DetectMatch(m, odds.MarketH2H)...)
	}

	if prev != nil {
		prevAt := prev.Timestamp
		report.PreviousAt = &prevAt
		report.MovementCompared = true
		report.Movements = a.movement.Compare(*prev, latest)
		report.SharpMoves = a.movement.Sharp(report.Movements)
	}

	report.Disagreements = a.disagreement.Detect(latest)
	return report
}
