package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"odds-value-alerts/internal/storage"
)

type alertLister func(ctx context.Context, limit int) ([]storage.AlertRecord, error)

// Show prints recent audited line movements, or recent alerts with opts.Alerts.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show audit records")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Alerts {
		return a.showAlerts(ctx, store.ListRecentAlerts, opts.Limit)
	}

	moves, err := store.ListRecentMovements(ctx, opts.Limit, opts.SharpOnly)
	if err != nil {
		return err
	}
	if len(moves) == 0 {
		fmt.Fprintln(a.out, "no movements found")
		return nil
	}

	writer := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tMatch\tOutcome\tBookmaker\tOld\tNew\tDelta\tSharp")
	for _, mv := range moves {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
			mv.ObservedAt.UTC().Format(time.RFC3339),
			mv.Match,
			mv.Outcome,
			mv.Bookmaker,
			formatDecimal(mv.OldPrice, 2),
			formatDecimal(mv.NewPrice, 2),
			formatDecimal(mv.Delta, 2),
			mv.Sharp,
		)
	}

	writer.Flush()
	return nil
}

func (a *App) showAlerts(ctx context.Context, list alertLister, limit int) error {
	alerts, err := list(ctx, limit)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(a.out, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tCycle\tSharp\tDisagree\tValue\tStatus\tError")
	for _, alert := range alerts {
		errMsg := ""
		if alert.Error != nil {
			errMsg = sanitizeInline(*alert.Error)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			alert.CreatedAt.UTC().Format(time.RFC3339),
			alert.CycleID,
			alert.SharpMoves,
			alert.Disagreements,
			alert.ValueSignals,
			alert.Status,
			errMsg,
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}

func fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

func signedFixed(v float64, places int32) string {
	s := fixed(v, places)
	if v > 0 {
		return "+" + s
	}
	return s
}
