package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/afero"
	chart "github.com/wcharczuk/go-chart/v2"

	"odds-value-alerts/internal/odds"
	"odds-value-alerts/internal/snapshot"
)

// pricePoint is one bookmaker quote of the exported outcome.
type pricePoint struct {
	At        time.Time
	Bookmaker string
	Price     float64
}

// Export renders the per-bookmaker price history of one match outcome as CSV and/or PNG.
// History is read from the daily archives plus the live log.
func (a *App) Export(_ context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.MatchID == "" || opts.Outcome == "" {
		return errors.New("--match and --outcome are required")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	store, err := a.newSnapshotStore(nil)
	if err != nil {
		return err
	}
	history, err := loadHistory(store, from, to)
	if err != nil {
		return err
	}

	history = downsample(history, opts.MaxPoints)
	points, title := extractPrices(history, opts.MatchID, opts.Outcome)
	if len(points) == 0 {
		a.Logger.Info().Str("match_id", opts.MatchID).Str("outcome", opts.Outcome).Msg("no prices found for export window")
		return nil
	}
	a.Logger.Info().Int("snapshots", len(history)).Int("points", len(points)).Msg("exporting price history")

	if opts.CSVPath != "" {
		if err := writePricesCSV(a.fs, opts.CSVPath, opts.MatchID, title, opts.Outcome, points); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writePricesPNG(a.fs, opts.PNGPath, fmt.Sprintf("%s: %s", title, opts.Outcome), points); err != nil {
			return err
		}
	}

	return nil
}

// loadHistory returns snapshots with from <= ts < to in chronological order.
func loadHistory(store *snapshot.Store, from, to time.Time) ([]odds.Snapshot, error) {
	days, err := store.ListArchives()
	if err != nil {
		return nil, err
	}

	var all []odds.Snapshot
	for _, day := range days {
		if !day.AddDate(0, 0, 1).After(from) || !day.Before(to) {
			continue
		}
		snaps, err := store.LoadArchive(day)
		if err != nil {
			return nil, fmt.Errorf("load archive %s: %w", day.Format("2006-01-02"), err)
		}
		all = append(all, snaps...)
	}
	live, err := store.Load()
	if err != nil {
		return nil, err
	}
	all = append(all, live...)

	out := all[:0]
	for _, snap := range all {
		if !snap.Timestamp.Before(from) && snap.Timestamp.Before(to) {
			out = append(out, snap)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func extractPrices(history []odds.Snapshot, matchID, outcome string) ([]pricePoint, string) {
	var (
		points []pricePoint
		title  string
	)
	for _, snap := range history {
		m, ok := snap.Match(matchID)
		if !ok {
			continue
		}
		title = m.Title()
		for _, bm := range m.Bookmakers {
			market, ok := bm.Market(odds.MarketH2H)
			if !ok {
				continue
			}
			if out, ok := market.Outcome(outcome); ok {
				points = append(points, pricePoint{At: snap.Timestamp, Bookmaker: bm.Key, Price: out.Price})
			}
		}
	}
	return points, title
}

func downsample[T any](items []T, max int) []T {
	if max <= 1 || len(items) <= max {
		return items
	}

	result := make([]T, 0, max)
	step := float64(len(items)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(items) {
			idx = len(items) - 1
		}
		result = append(result, items[idx])
	}
	return result
}

func writePricesCSV(fs afero.Fs, path, matchID, title, outcome string, points []pricePoint) error {
	if err := ensureDir(fs, path); err != nil {
		return err
	}

	file, err := fs.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"timestamp", "match_id", "match", "outcome", "bookmaker", "price"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range points {
		record := []string{
			p.At.UTC().Format(time.RFC3339),
			matchID,
			title,
			outcome,
			p.Bookmaker,
			strconv.FormatFloat(p.Price, 'f', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writePricesPNG(fs afero.Fs, path, title string, points []pricePoint) error {
	if err := ensureDir(fs, path); err != nil {
		return err
	}

	byBook := make(map[string][]pricePoint)
	for _, p := range points {
		byBook[p.Bookmaker] = append(byBook[p.Bookmaker], p)
	}
	books := make([]string, 0, len(byBook))
	for book := range byBook {
		books = append(books, book)
	}
	sort.Strings(books)

	series := make([]chart.Series, 0, len(books))
	for _, book := range books {
		pts := byBook[book]
		// go-chart needs two points to draw a line
		if len(pts) < 2 {
			continue
		}
		x := make([]time.Time, len(pts))
		y := make([]float64, len(pts))
		for i, p := range pts {
			x[i] = p.At
			y[i] = p.Price
		}
		series = append(series, chart.TimeSeries{Name: book, XValues: x, YValues: y})
	}
	if len(series) == 0 {
		return errors.New("not enough points to draw a chart")
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Title:  title,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Decimal odds",
			ValueFormatter: priceFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := fs.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(fs afero.Fs, path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return fs.MkdirAll(dir, 0o755)
}
