package alerting

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"odds-value-alerts/internal/signals"
)

const signalsHeader = "📡 Odds Signals"

// RenderOptions control the combined cycle message.
type RenderOptions struct {
	IncludeValue bool
	Location     *time.Location
}

// Digest is the alertable subset of one cycle.
type Digest struct {
	At            time.Time
	SharpMoves    []signals.LineMovement
	Disagreements []signals.Disagreement
	Value         []signals.FairValue
}

// Empty reports whether nothing would be rendered.
func (d Digest) Empty(includeValue bool) bool {
	return len(d.SharpMoves) == 0 && len(d.Disagreements) == 0 && (!includeValue || len(d.Value) == 0)
}

// DigestFromReport extracts the alertable records of a report.
func DigestFromReport(report signals.CycleReport) Digest {
	return Digest{
		At:            report.SnapshotAt,
		SharpMoves:    report.SharpMoves,
		Disagreements: report.Disagreements,
		Value:         report.ValueSignals(),
	}
}

// RenderDigest builds one combined message for a cycle. It returns "" when there is
// nothing to report.
func RenderDigest(d Digest, opts RenderOptions) string {
	if d.Empty(opts.IncludeValue) {
		return ""
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n🕒 %s\n", signalsHeader, d.At.In(loc).Format("2006-01-02 15:04:05 MST"))

	if len(d.SharpMoves) > 0 {
		fmt.Fprintf(&b, "\nSharp Line Movement (%d)\n", len(d.SharpMoves))
		for _, mv := range d.SharpMoves {
			b.WriteString(RenderMovement(mv))
			b.WriteString("\n")
		}
	}
	if len(d.Disagreements) > 0 {
		fmt.Fprintf(&b, "\nBookmaker Disagreement (%d)\n", len(d.Disagreements))
		for _, rec := range d.Disagreements {
			b.WriteString(RenderDisagreement(rec))
			b.WriteString("\n")
		}
	}
	if opts.IncludeValue && len(d.Value) > 0 {
		fmt.Fprintf(&b, "\nValue (%d)\n", len(d.Value))
		for _, fv := range d.Value {
			b.WriteString(RenderValue(fv))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderMovement formats one sharp move.
func RenderMovement(mv signals.LineMovement) string {
	return fmt.Sprintf("📌 %s | 🏷 %s | 🏦 %s\n   %s → %s (⚡%s)",
		mv.Match, mv.Outcome, mv.Bookmaker,
		price(mv.Old), price(mv.New), signed(mv.Delta))
}

// RenderDisagreement formats one outlier quote.
func RenderDisagreement(rec signals.Disagreement) string {
	return fmt.Sprintf("📌 %s | 🏷 %s | 🏦 %s\n   💰 %s vs avg %s (⚠️%s)",
		rec.Match, rec.Outcome, rec.Bookmaker,
		price(rec.Price), price(rec.Average), signed(rec.Deviation))
}

// RenderValue formats the best edge of one fair value.
func RenderValue(fv signals.FairValue) string {
	best, ok := fv.Best()
	if !ok {
		return ""
	}
	return fmt.Sprintf("📌 %s | 🏷 %s\n   fair %s (p=%s) | 🏦 %s %s edge %s %s",
		fv.Match, fv.Outcome,
		price(fv.TrueOdds), decimal.NewFromFloat(fv.TrueProbability).StringFixed(4),
		best.Bookmaker, price(best.Odds), signed(best.Edge), best.Signal)
}

func price(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func signed(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsPositive() {
		return "+" + d.StringFixed(2)
	}
	return d.StringFixed(2)
}
