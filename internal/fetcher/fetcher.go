package fetcher

import (
	"context"

	"odds-value-alerts/internal/odds"
)

// OddsSource retrieves head-to-head odds for configured leagues.
type OddsSource interface {
	FetchLeague(ctx context.Context, league string) ([]odds.Match, error)
	FetchAll(ctx context.Context) (odds.Snapshot, []LeagueResult)
}

// LeagueResult is the outcome of fetching one league within a poll.
type LeagueResult struct {
	League  string
	Matches int
	Err     error
}

// OK reports whether the league contributed to the snapshot.
func (r LeagueResult) OK() bool {
	return r.Err == nil
}
