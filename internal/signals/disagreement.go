package signals

import (
	"fmt"
	"math"

	"odds-value-alerts/internal/odds"
)

// Disagreement is a bookmaker price sitting too far from the cross-book average.
type Disagreement struct {
	MatchID   string  `json:"match_id"`
	Match     string  `json:"match"`
	League    string  `json:"league"`
	Outcome   string  `json:"outcome"`
	Bookmaker string  `json:"bookmaker"`
	Price     float64 `json:"price"`
	Average   float64 `json:"average"`
	Deviation float64 `json:"deviation"`
}

// DisagreementDetector flags outliers within a single snapshot.
type DisagreementDetector struct {
	threshold float64
	market    string
}

// NewDisagreementDetector flags |price - mean| >= threshold.
func NewDisagreementDetector(threshold float64) (*DisagreementDetector, error) {
	if threshold < 0 {
		return nil, fmt.Errorf("deviation threshold cannot be negative")
	}
	return &DisagreementDetector{threshold: threshold, market: odds.MarketH2H}, nil
}

// Threshold returns the deviation cutoff.
func (d *DisagreementDetector) Threshold() float64 {
	return d.threshold
}

// Detect scans every match in the snapshot.
func (d *DisagreementDetector) Detect(s odds.Snapshot) []Disagreement {
	var out []Disagreement
	for _, m := range s.Matches {
		out = append(out, d.DetectMatch(m)...)
	}
	return out
}

type bookPrice struct {
	book  string
	price float64
}

// DetectMatch groups prices by outcome in one pass, then measures deviation in a second.
func (d *DisagreementDetector) DetectMatch(m odds.Match) []Disagreement {
	var order []string
	groups := make(map[string][]bookPrice)
	for _, bm := range m.Bookmakers {
		market, ok := bm.Market(d.market)
		if !ok {
			continue
		}
		for _, out := range market.Outcomes {
			if !odds.ValidPrice(out.Price) {
				continue
			}
			if _, seen := groups[out.Name]; !seen {
				order = append(order, out.Name)
			}
			groups[out.Name] = append(groups[out.Name], bookPrice{book: bm.Key, price: out.Price})
		}
	}

	var out []Disagreement
	title := m.Title()
	for _, team := range order {
		prices := groups[team]
		var sum float64
		for _, p := range prices {
			sum += p.price
		}
		avg := sum / float64(len(prices))

		for _, p := range prices {
			deviation := p.price - avg
			if math.Abs(deviation) < d.threshold {
				continue
			}
			out = append(out, Disagreement{
				MatchID:   m.ID,
				Match:     title,
				League:    m.League,
				Outcome:   team,
				Bookmaker: p.book,
				Price:     p.price,
				Average:   avg,
				Deviation: deviation,
			})
		}
	}
	return out
}
