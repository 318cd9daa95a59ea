package signals

import (
	"math"
	"testing"
)

func TestDisagreementBelowThreshold(t *testing.T) {
	d, err := NewDisagreementDetector(0.25)
	if err != nil {
		t.Fatalf("NewDisagreementDetector: %v", err)
	}
	s := snapshotAt(t0, match("m1",
		book("B1", out("Arsenal", 1.90), out("Chelsea", 3.0)),
		book("B2", out("Arsenal", 1.92), out("Chelsea", 3.0)),
		book("B3", out("Arsenal", 2.20), out("Chelsea", 3.0)),
	))
	if got := d.Detect(s); len(got) != 0 {
		t.Fatalf("deviation ~0.193 should not be flagged, got %+v", got)
	}
}

func TestDisagreementAboveThreshold(t *testing.T) {
	d, _ := NewDisagreementDetector(0.25)
	s := snapshotAt(t0, match("m1",
		book("B1", out("Arsenal", 1.90), out("Chelsea", 3.0)),
		book("B2", out("Arsenal", 1.92), out("Chelsea", 3.0)),
		book("B3", out("Arsenal", 2.30), out("Chelsea", 3.0)),
	))
	got := d.Detect(s)
	if len(got) != 1 {
		t.Fatalf("expected exactly one disagreement, got %+v", got)
	}
	rec := got[0]
	if rec.Bookmaker != "B3" || rec.Outcome != "Arsenal" || rec.Match != "Arsenal vs Chelsea" {
		t.Fatalf("unexpected record %+v", rec)
	}
	wantAvg := (1.90 + 1.92 + 2.30) / 3
	if math.Abs(rec.Average-wantAvg) > 1e-9 {
		t.Fatalf("average = %v, want %v", rec.Average, wantAvg)
	}
	if math.Abs(rec.Deviation-(2.30-wantAvg)) > 1e-9 || rec.Deviation <= 0.25 {
		t.Fatalf("deviation = %v", rec.Deviation)
	}
}

func TestDisagreementIgnoresInvalidPrices(t *testing.T) {
	d, _ := NewDisagreementDetector(0.25)
	s := snapshotAt(t0, match("m1",
		book("B1", out("Arsenal", 1.90)),
		book("B2", out("Arsenal", 0)),
	))
	if got := d.Detect(s); len(got) != 0 {
		t.Fatalf("zero price should be ignored, got %+v", got)
	}
}
