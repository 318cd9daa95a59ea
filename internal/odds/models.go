package odds

import (
	"math"
	"strings"
	"time"
)

// MarketH2H is the head-to-head (match winner) market key.
const MarketH2H = "h2h"

// Outcome is a single priced selection in a market.
type Outcome struct {
	Name  string   `json:"name"`
	Price float64  `json:"price"`
	Point *float64 `json:"point,omitempty"`
}

// Market groups the outcomes a bookmaker offers for one market type.
type Market struct {
	Key      string    `json:"key"`
	Outcomes []Outcome `json:"outcomes"`
}

// Bookmaker carries one bookmaker's markets for a match.
type Bookmaker struct {
	Key        string    `json:"key"`
	Title      string    `json:"title"`
	LastUpdate time.Time `json:"last_update"`
	Markets    []Market  `json:"markets"`
}

// Match is a fixture together with every bookmaker quoting it.
type Match struct {
	ID           string      `json:"id"`
	League       string      `json:"league"`
	SportTitle   string      `json:"sport_title,omitempty"`
	CommenceTime time.Time   `json:"commence_time"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Bookmakers   []Bookmaker `json:"bookmakers"`
}

// Snapshot is the full set of matches fetched at one instant.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Matches   []Match   `json:"matches"`
}

// Title renders "Home vs Away".
func (m Match) Title() string {
	return strings.TrimSpace(m.HomeTeam) + " vs " + strings.TrimSpace(m.AwayTeam)
}

// Bookmaker returns the bookmaker with the given key.
func (m Match) Bookmaker(key string) (Bookmaker, bool) {
	for _, bm := range m.Bookmakers {
		if bm.Key == key {
			return bm, true
		}
	}
	return Bookmaker{}, false
}

// Market returns the market with the given key.
func (b Bookmaker) Market(key string) (Market, bool) {
	for _, mk := range b.Markets {
		if mk.Key == key {
			return mk, true
		}
	}
	return Market{}, false
}

// Outcome returns the outcome with the given name.
func (m Market) Outcome(name string) (Outcome, bool) {
	for _, out := range m.Outcomes {
		if out.Name == name {
			return out, true
		}
	}
	return Outcome{}, false
}

// Match returns the match with the given id.
func (s Snapshot) Match(id string) (Match, bool) {
	for _, m := range s.Matches {
		if m.ID == id {
			return m, true
		}
	}
	return Match{}, false
}

// ValidPrice reports whether a decimal price can be analysed.
func ValidPrice(price float64) bool {
	return price > 0 && !math.IsNaN(price) && !math.IsInf(price, 0)
}
