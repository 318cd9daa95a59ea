package signals

import (
	"sort"

	"odds-value-alerts/internal/odds"
	"odds-value-alerts/internal/oddsmodel"
)

// BookEdge is one bookmaker's price measured against the fair odds.
type BookEdge struct {
	Bookmaker   string           `json:"bookmaker"`
	Odds        float64          `json:"odds"`
	Probability float64          `json:"probability"`
	Edge        float64          `json:"edge"`
	Signal      oddsmodel.Signal `json:"signal"`
}

// FairValue is the de-vigged estimate for one outcome plus every book's edge,
// ranked by descending edge.
type FairValue struct {
	MatchID           string     `json:"match_id"`
	Match             string     `json:"match"`
	League            string     `json:"league"`
	Market            string     `json:"market"`
	Outcome           string     `json:"outcome"`
	SharpBook         string     `json:"sharp_book"`
	MarketProbability float64    `json:"market_probability"`
	TrueProbability   float64    `json:"true_probability"`
	TrueOdds          float64    `json:"true_odds"`
	Edges             []BookEdge `json:"edges"`
}

// Best returns the highest-edge record.
func (f FairValue) Best() (BookEdge, bool) {
	if len(f.Edges) == 0 {
		return BookEdge{}, false
	}
	return f.Edges[0], true
}

// ValueDetector blends the sharpest price with the market mean into a fair probability.
type ValueDetector struct {
	weights    oddsmodel.Weights
	thresholds oddsmodel.EdgeThresholds
}

// NewValueDetector validates the weights and cutoffs.
func NewValueDetector(weights oddsmodel.Weights, thresholds oddsmodel.EdgeThresholds) (*ValueDetector, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return &ValueDetector{weights: weights, thresholds: thresholds}, nil
}

// Detect computes the fair value for a set. ok is false when no usable quote exists.
func (d *ValueDetector) Detect(set odds.MatchOddsSet) (FairValue, bool) {
	books := set.Books()
	if len(books) == 0 {
		return FairValue{}, false
	}

	edges := make([]BookEdge, 0, len(books))
	var (
		sumProb  float64
		sharpIdx = -1
	)
	for _, book := range books {
		price := set.Quotes[book]
		prob := oddsmodel.ImpliedProbability(price)
		if prob == 0 {
			continue
		}
		edges = append(edges, BookEdge{Bookmaker: book, Odds: price, Probability: prob})
		sumProb += prob
		if sharpIdx < 0 || prob < edges[sharpIdx].Probability {
			sharpIdx = len(edges) - 1
		}
	}
	if len(edges) == 0 {
		return FairValue{}, false
	}

	meanProb := sumProb / float64(len(edges))
	trueProb := d.weights.Blend(edges[sharpIdx].Probability, meanProb)
	trueOdds := oddsmodel.FairOdds(trueProb)
	sharpBook := edges[sharpIdx].Bookmaker

	for i := range edges {
		edges[i].Edge = edges[i].Odds - trueOdds
		edges[i].Signal = d.thresholds.Classify(edges[i].Edge)
	}
	sort.SliceStable(edges, func(i, j int) bool {
		return edges[i].Edge > edges[j].Edge
	})

	return FairValue{
		MatchID:           set.MatchID,
		Match:             set.Match,
		League:            set.League,
		Market:            set.Market,
		Outcome:           set.Outcome,
		SharpBook:         sharpBook,
		MarketProbability: meanProb,
		TrueProbability:   trueProb,
		TrueOdds:          trueOdds,
		Edges:             edges,
	}, true
}

// DetectQuotes runs Detect over a bare bookmaker -> price map.
func (d *ValueDetector) DetectQuotes(quotes map[string]float64) (FairValue, bool) {
	return d.Detect(odds.NewMatchOddsSet("", "", "", "", "", quotes))
}

// DetectMatch evaluates every outcome of the given market.
func (d *ValueDetector) DetectMatch(m odds.Match, market string) []FairValue {
	sets := odds.OutcomeSets(m, market)
	out := make([]FairValue, 0, len(sets))
	for _, set := range sets {
		if fv, ok := d.Detect(set); ok {
			out = append(out, fv)
		}
	}
	return out
}
