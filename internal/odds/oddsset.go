package odds

import "sort"

// MatchOddsSet is the per-bookmaker price of one outcome of one match market.
// Quotes only ever holds valid prices.
type MatchOddsSet struct {
	MatchID string
	Match   string
	League  string
	Market  string
	Outcome string
	Quotes  map[string]float64
}

// NewMatchOddsSet builds a set, dropping invalid quotes.
func NewMatchOddsSet(matchID, title, league, market, outcome string, quotes map[string]float64) MatchOddsSet {
	clean := make(map[string]float64, len(quotes))
	for book, price := range quotes {
		if book == "" || !ValidPrice(price) {
			continue
		}
		clean[book] = price
	}
	return MatchOddsSet{
		MatchID: matchID,
		Match:   title,
		League:  league,
		Market:  market,
		Outcome: outcome,
		Quotes:  clean,
	}
}

// Empty reports whether no usable quote remains.
func (s MatchOddsSet) Empty() bool {
	return len(s.Quotes) == 0
}

// Books returns the quoting bookmakers sorted by key.
func (s MatchOddsSet) Books() []string {
	books := make([]string, 0, len(s.Quotes))
	for book := range s.Quotes {
		books = append(books, book)
	}
	sort.Strings(books)
	return books
}

// OutcomeSets splits a match's market into one MatchOddsSet per outcome name.
// Outcome order follows first appearance across bookmakers.
func OutcomeSets(m Match, market string) []MatchOddsSet {
	var order []string
	prices := make(map[string]map[string]float64)
	for _, bm := range m.Bookmakers {
		mk, ok := bm.Market(market)
		if !ok {
			continue
		}
		for _, out := range mk.Outcomes {
			byBook, seen := prices[out.Name]
			if !seen {
				byBook = make(map[string]float64)
				prices[out.Name] = byBook
				order = append(order, out.Name)
			}
			byBook[bm.Key] = out.Price
		}
	}

	sets := make([]MatchOddsSet, 0, len(order))
	for _, name := range order {
		set := NewMatchOddsSet(m.ID, m.Title(), m.League, market, name, prices[name])
		if set.Empty() {
			continue
		}
		sets = append(sets, set)
	}
	return sets
}
