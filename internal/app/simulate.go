package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"

	"odds-value-alerts/internal/fetcher"
	"odds-value-alerts/internal/odds"
)

// SimulateAlert 用两次合成快照模拟一次盘口变动, 并走完整的告警流程。
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	source := &staticSource{
		bookmaker: opts.Bookmaker,
		outcome:   opts.Outcome,
		prices:    []float64{opts.Old, opts.New},
	}
	rt, err := a.buildRuntime(ctx, runtimeOptions{source: source, fs: afero.NewMemMapFs(), offline: true})
	if err != nil {
		return err
	}
	defer rt.close()

	if _, err := rt.service.Poll(ctx); err != nil {
		return err
	}
	report, err := rt.service.Poll(ctx)
	if err != nil {
		return err
	}
	if len(report.SharpMoves) == 0 {
		fmt.Fprintf(a.out, "price change %.2f -> %.2f is below the sharp threshold %.2f; no alert sent\n",
			opts.Old, opts.New, a.Config.Movement.SharpThreshold)
		return nil
	}
	fmt.Fprintf(a.out, "simulated alert dispatched for %d sharp move(s)\n", len(report.SharpMoves))
	return nil
}

// staticSource returns one synthetic match per call, stepping through prices.
type staticSource struct {
	bookmaker string
	outcome   string
	prices    []float64
	calls     int
}

func (s *staticSource) FetchLeague(ctx context.Context, league string) ([]odds.Match, error) {
	idx := s.calls
	if idx >= len(s.prices) {
		idx = len(s.prices) - 1
	}
	s.calls++
	return []odds.Match{{
		ID:           "simulated",
		League:       league,
		SportTitle:   "Simulation",
		CommenceTime: time.Now().UTC().Add(24 * time.Hour),
		HomeTeam:     "Home",
		AwayTeam:     "Away",
		Bookmakers: []odds.Bookmaker{{
			Key:        s.bookmaker,
			Title:      s.bookmaker,
			LastUpdate: time.Now().UTC(),
			Markets: []odds.Market{{
				Key:      odds.MarketH2H,
				Outcomes: []odds.Outcome{{Name: s.outcome, Price: s.prices[idx]}},
			}},
		}},
	}}, nil
}

func (s *staticSource) FetchAll(ctx context.Context) (odds.Snapshot, []fetcher.LeagueResult) {
	matches, _ := s.FetchLeague(ctx, "simulation")
	snap := odds.Snapshot{Timestamp: time.Now().UTC(), Matches: matches}
	return snap, []fetcher.LeagueResult{{League: "simulation", Matches: len(matches)}}
}

var _ fetcher.OddsSource = (*staticSource)(nil)
