package app

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"odds-value-alerts/internal/signals"
)

func printMovements(out io.Writer, moves []signals.LineMovement) {
	if len(moves) == 0 {
		fmt.Fprintln(out, "no line movements")
		return
	}
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Match\tLeague\tOutcome\tBookmaker\tOld\tNew\tDelta")
	for _, mv := range moves {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			mv.Match, mv.League, mv.Outcome, mv.Bookmaker,
			fixed(mv.Old, 2), fixed(mv.New, 2), signedFixed(mv.Delta, 2))
	}
	writer.Flush()
}

func printDisagreements(out io.Writer, recs []signals.Disagreement) {
	if len(recs) == 0 {
		fmt.Fprintln(out, "no bookmaker disagreements")
		return
	}
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Match\tLeague\tOutcome\tBookmaker\tPrice\tAverage\tDeviation")
	for _, rec := range recs {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.Match, rec.League, rec.Outcome, rec.Bookmaker,
			fixed(rec.Price, 2), fixed(rec.Average, 3), signedFixed(rec.Deviation, 3))
	}
	writer.Flush()
}

// printValue prints one row per outcome with its best-ranked bookmaker.
func printValue(out io.Writer, values []signals.FairValue) {
	if len(values) == 0 {
		fmt.Fprintln(out, "no value signals")
		return
	}
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Match\tOutcome\tBest book\tOdds\tTrue odds\tTrue prob\tEdge\tSignal")
	for _, fv := range values {
		best, ok := fv.Best()
		if !ok {
			continue
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			fv.Match, fv.Outcome, best.Bookmaker,
			fixed(best.Odds, 2), fixed(fv.TrueOdds, 2), fixed(fv.TrueProbability, 4),
			signedFixed(best.Edge, 3), best.Signal)
	}
	writer.Flush()
}

func printEdges(out io.Writer, fv signals.FairValue) {
	fmt.Fprintf(out, "sharp book: %s  market prob: %s  true prob: %s  true odds: %s\n",
		fv.SharpBook, fixed(fv.MarketProbability, 4), fixed(fv.TrueProbability, 4), fixed(fv.TrueOdds, 2))
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Bookmaker\tOdds\tImplied prob\tEdge\tSignal")
	for _, e := range fv.Edges {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			e.Bookmaker, fixed(e.Odds, 2), fixed(e.Probability, 4), signedFixed(e.Edge, 3), e.Signal)
	}
	writer.Flush()
}

func printReport(out io.Writer, report signals.CycleReport) {
	fmt.Fprintf(out, "cycle %s at %s: %d matches\n", report.CycleID, report.SnapshotAt.UTC().Format(time.RFC3339), report.Matches)

	fmt.Fprintln(out, "\n== Value ==")
	printValue(out, report.ValueSignals())

	fmt.Fprintln(out, "\n== Sharp line movement ==")
	if !report.MovementCompared {
		fmt.Fprintln(out, "insufficient data: need two snapshots")
	} else {
		printMovements(out, report.SharpMoves)
	}

	fmt.Fprintln(out, "\n== Bookmaker disagreement ==")
	printDisagreements(out, report.Disagreements)
}
