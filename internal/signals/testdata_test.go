package signals

import (
	"time"

	"odds-value-alerts/internal/odds"
)

func h2h(outcomes ...odds.Outcome) []odds.Market {
	return []odds.Market{{Key: odds.MarketH2H, Outcomes: outcomes}}
}

func out(name string, price float64) odds.Outcome {
	return odds.Outcome{Name: name, Price: price}
}

func match(id string, books ...odds.Bookmaker) odds.Match {
	return odds.Match{
		ID:         id,
		League:     "soccer_epl",
		HomeTeam:   "Arsenal",
		AwayTeam:   "Chelsea",
		Bookmakers: books,
	}
}

func book(key string, outcomes ...odds.Outcome) odds.Bookmaker {
	return odds.Bookmaker{Key: key, Markets: h2h(outcomes...)}
}

func snapshotAt(ts time.Time, matches ...odds.Match) odds.Snapshot {
	return odds.Snapshot{Timestamp: ts, Matches: matches}
}

var (
	t0 = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	t1 = t0.Add(3 * time.Minute)
)
