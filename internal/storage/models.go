package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"odds-value-alerts/internal/signals"
)

// CycleRecord is the audit row set of one poll cycle.
type CycleRecord struct {
	CycleID       string
	SnapshotAt    time.Time
	Matches       int
	Movements     []MovementRecord
	Disagreements []DisagreementRecord
	ValueSignals  []ValueSignalRecord
}

// MovementRecord is a persisted line movement.
type MovementRecord struct {
	ID         int64
	CycleID    string
	MatchID    string
	Match      string
	League     string
	Outcome    string
	Bookmaker  string
	OldPrice   decimal.Decimal
	NewPrice   decimal.Decimal
	Delta      decimal.Decimal
	Sharp      bool
	ObservedAt time.Time
}

// DisagreementRecord is a persisted outlier quote.
type DisagreementRecord struct {
	ID         int64
	CycleID    string
	MatchID    string
	Match      string
	League     string
	Outcome    string
	Bookmaker  string
	Price      decimal.Decimal
	Average    decimal.Decimal
	Deviation  decimal.Decimal
	ObservedAt time.Time
}

// ValueSignalRecord is the best graded edge of one match outcome.
type ValueSignalRecord struct {
	ID              int64
	CycleID         string
	MatchID         string
	Match           string
	League          string
	Outcome         string
	Bookmaker       string
	Odds            decimal.Decimal
	TrueOdds        decimal.Decimal
	TrueProbability decimal.Decimal
	Edge            decimal.Decimal
	Signal          string
	ObservedAt      time.Time
}

// AlertRecord captures an emitted alert for auditing.
type AlertRecord struct {
	ID            int64
	CycleID       string
	Message       string
	SharpMoves    int
	Disagreements int
	ValueSignals  int
	Status        string
	Error         *string
	CreatedAt     time.Time
}

// NewCycleRecord flattens a report into audit rows. Only sharp moves and graded value
// signals are kept; the full movement list is too noisy to store every cycle.
func NewCycleRecord(report signals.CycleReport) CycleRecord {
	rec := CycleRecord{
		CycleID:    report.CycleID,
		SnapshotAt: report.SnapshotAt,
		Matches:    report.Matches,
	}
	for _, mv := range report.SharpMoves {
		rec.Movements = append(rec.Movements, MovementRecord{
			CycleID:    report.CycleID,
			MatchID:    mv.MatchID,
			Match:      mv.Match,
			League:     mv.League,
			Outcome:    mv.Outcome,
			Bookmaker:  mv.Bookmaker,
			OldPrice:   decimal.NewFromFloat(mv.Old),
			NewPrice:   decimal.NewFromFloat(mv.New),
			Delta:      decimal.NewFromFloat(mv.Delta).Round(6),
			Sharp:      true,
			ObservedAt: mv.LatestAt,
		})
	}
	for _, d := range report.Disagreements {
		rec.Disagreements = append(rec.Disagreements, DisagreementRecord{
			CycleID:    report.CycleID,
			MatchID:    d.MatchID,
			Match:      d.Match,
			League:     d.League,
			Outcome:    d.Outcome,
			Bookmaker:  d.Bookmaker,
			Price:      decimal.NewFromFloat(d.Price),
			Average:    decimal.NewFromFloat(d.Average).Round(6),
			Deviation:  decimal.NewFromFloat(d.Deviation).Round(6),
			ObservedAt: report.SnapshotAt,
		})
	}
	for _, fv := range report.ValueSignals() {
		best, _ := fv.Best()
		rec.ValueSignals = append(rec.ValueSignals, ValueSignalRecord{
			CycleID:         report.CycleID,
			MatchID:         fv.MatchID,
			Match:           fv.Match,
			League:          fv.League,
			Outcome:         fv.Outcome,
			Bookmaker:       best.Bookmaker,
			Odds:            decimal.NewFromFloat(best.Odds),
			TrueOdds:        decimal.NewFromFloat(fv.TrueOdds).Round(6),
			TrueProbability: decimal.NewFromFloat(fv.TrueProbability).Round(6),
			Edge:            decimal.NewFromFloat(best.Edge).Round(6),
			Signal:          string(best.Signal),
			ObservedAt:      report.SnapshotAt,
		})
	}
	return rec
}

// Empty reports whether the cycle produced nothing worth storing.
func (c CycleRecord) Empty() bool {
	return len(c.Movements) == 0 && len(c.Disagreements) == 0 && len(c.ValueSignals) == 0
}
