package signals

import (
	"testing"

	"odds-value-alerts/internal/oddsmodel"
)

func TestAnalyze(t *testing.T) {
	a, err := NewAnalyzer(DefaultConfig())
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}

	prev := snapshotAt(t0, match("m1",
		book("B1", out("Arsenal", 1.90), out("Chelsea", 3.0)),
		book("B2", out("Arsenal", 1.92), out("Chelsea", 3.0)),
		book("B3", out("Arsenal", 2.00), out("Chelsea", 3.0)),
	))
	latest := snapshotAt(t1, match("m1",
		book("B1", out("Arsenal", 1.90), out("Chelsea", 3.0)),
		book("B2", out("Arsenal", 1.92), out("Chelsea", 3.0)),
		book("B3", out("Arsenal", 2.30), out("Chelsea", 3.0)),
	))

	first := a.Analyze(nil, prev)
	if first.MovementCompared || len(first.Movements) != 0 {
		t.Fatalf("no previous snapshot should mean no movement, got %+v", first)
	}
	if first.Matches != 1 || len(first.Value) != 2 {
		t.Fatalf("expected one match and two fair values, got %d/%d", first.Matches, len(first.Value))
	}

	report := a.Analyze(&prev, latest)
	if !report.MovementCompared || report.PreviousAt == nil || !report.PreviousAt.Equal(t0) {
		t.Fatalf("movement comparison not recorded: %+v", report)
	}
	if len(report.SharpMoves) != 1 || report.SharpMoves[0].Bookmaker != "B3" {
		t.Fatalf("expected B3 sharp move, got %+v", report.SharpMoves)
	}
	if len(report.Disagreements) != 1 {
		t.Fatalf("expected one disagreement, got %+v", report.Disagreements)
	}
	if !report.HasAlerts() {
		t.Fatal("report should carry alerts")
	}

	signals := report.ValueSignals()
	if len(signals) != 1 || signals[0].Outcome != "Arsenal" {
		t.Fatalf("expected an Arsenal value signal, got %+v", signals)
	}
	if best, _ := signals[0].Best(); best.Bookmaker != "B3" || best.Signal == oddsmodel.SignalNone {
		t.Fatalf("unexpected best edge %+v", best)
	}
}

func TestNewAnalyzerValidates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SharpThreshold = -1
	if _, err := NewAnalyzer(cfg); err == nil {
		t.Fatal("negative sharp threshold should fail")
	}
	cfg = DefaultConfig()
	cfg.Weights = oddsmodel.Weights{Sharp: 1, Move: 1}
	if _, err := NewAnalyzer(cfg); err == nil {
		t.Fatal("bad weights should fail")
	}
}
