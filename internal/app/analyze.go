package app

import (
	"context"
	"errors"
	"fmt"

	"odds-value-alerts/internal/odds"
	"odds-value-alerts/internal/snapshot"
)

// ErrNoSnapshots is returned by read-only commands when the live log is empty.
var ErrNoSnapshots = errors.New("no snapshots logged yet; run poll first")

func (a *App) latestSnapshot() (*snapshot.Store, odds.Snapshot, error) {
	store, err := a.newSnapshotStore(nil)
	if err != nil {
		return nil, odds.Snapshot{}, err
	}
	latest, ok, err := store.Latest()
	if err != nil {
		return nil, odds.Snapshot{}, err
	}
	if !ok {
		return nil, odds.Snapshot{}, ErrNoSnapshots
	}
	return store, latest, nil
}

// Value prints fair value signals of the newest snapshot, or of an ad-hoc quote set.
func (a *App) Value(_ context.Context, opts ValueOptions) error {
	analyzer, err := a.newAnalyzer()
	if err != nil {
		return err
	}

	if len(opts.Odds) > 0 {
		set := odds.NewMatchOddsSet("adhoc", "ad-hoc", "", odds.MarketH2H, "selection", opts.Odds)
		fv, ok := analyzer.Value().Detect(set)
		if !ok {
			return errors.New("no valid prices supplied")
		}
		printEdges(a.out, fv)
		return nil
	}

	_, latest, err := a.latestSnapshot()
	if err != nil {
		return err
	}
	report := analyzer.Analyze(nil, latest)
	values := report.ValueSignals()
	if opts.All {
		values = report.Value
	}
	fmt.Fprintf(a.out, "snapshot %s, %d matches\n", latest.Timestamp.Format("2006-01-02 15:04:05"), len(latest.Matches))
	printValue(a.out, values)
	return nil
}

// Movements compares the two newest logged snapshots.
func (a *App) Movements(_ context.Context, opts MovementsOptions) error {
	analyzer, err := a.newAnalyzer()
	if err != nil {
		return err
	}
	store, err := a.newSnapshotStore(nil)
	if err != nil {
		return err
	}
	history, err := store.Load()
	if err != nil {
		return err
	}

	moves, ok := analyzer.Movement().CompareLog(history)
	if !ok {
		fmt.Fprintf(a.out, "insufficient data: %d snapshot(s) logged, need 2\n", len(history))
		return nil
	}
	if opts.SharpOnly {
		moves = analyzer.Movement().Sharp(moves)
	}
	printMovements(a.out, moves)
	return nil
}

// Disagreements prints outlier quotes of the newest snapshot.
func (a *App) Disagreements(_ context.Context) error {
	analyzer, err := a.newAnalyzer()
	if err != nil {
		return err
	}
	_, latest, err := a.latestSnapshot()
	if err != nil {
		return err
	}
	printDisagreements(a.out, analyzer.Disagreement().Detect(latest))
	return nil
}
