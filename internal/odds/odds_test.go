package odds

import (
	"math"
	"testing"
)

func TestNewMatchOddsSetDropsInvalidQuotes(t *testing.T) {
	set := NewMatchOddsSet("m1", "A vs B", "soccer_epl", MarketH2H, "A", map[string]float64{
		"pinnacle": 1.85,
		"zero":     0,
		"negative": -2,
		"nan":      math.NaN(),
		"":         1.9,
	})
	if len(set.Quotes) != 1 {
		t.Fatalf("expected only pinnacle to survive, got %v", set.Quotes)
	}
	if set.Quotes["pinnacle"] != 1.85 {
		t.Fatalf("unexpected pinnacle price %v", set.Quotes["pinnacle"])
	}
}

func TestOutcomeSets(t *testing.T) {
	m := Match{
		ID:       "m1",
		League:   "soccer_epl",
		HomeTeam: "Arsenal",
		AwayTeam: "Chelsea",
		Bookmakers: []Bookmaker{
			{Key: "b1", Markets: []Market{{Key: MarketH2H, Outcomes: []Outcome{
				{Name: "Arsenal", Price: 2.1}, {Name: "Chelsea", Price: 3.4}, {Name: "Draw", Price: 3.3},
			}}}},
			{Key: "b2", Markets: []Market{{Key: MarketH2H, Outcomes: []Outcome{
				{Name: "Chelsea", Price: 3.5}, {Name: "Arsenal", Price: 2.05}, {Name: "Draw", Price: 0},
			}}}},
			{Key: "b3", Markets: []Market{{Key: "totals"}}},
		},
	}

	sets := OutcomeSets(m, MarketH2H)
	if len(sets) != 3 {
		t.Fatalf("expected 3 outcome sets, got %d", len(sets))
	}
	if sets[0].Outcome != "Arsenal" || sets[0].Match != "Arsenal vs Chelsea" {
		t.Fatalf("unexpected first set %+v", sets[0])
	}
	if got := sets[0].Quotes["b2"]; got != 2.05 {
		t.Fatalf("b2 Arsenal price = %v, want 2.05", got)
	}
	if _, ok := sets[2].Quotes["b2"]; ok {
		t.Fatal("zero draw price should be filtered")
	}
	if books := sets[1].Books(); len(books) != 2 || books[0] != "b1" {
		t.Fatalf("unexpected books %v", books)
	}
}
