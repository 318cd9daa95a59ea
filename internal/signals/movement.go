package signals

import (
	"fmt"
	"math"
	"time"

	"odds-value-alerts/internal/odds"
)

// OutcomeMatching selects how outcomes are paired across snapshots.
type OutcomeMatching string

const (
	// MatchByName pairs outcomes by their name.
	MatchByName OutcomeMatching = "name"
	// MatchByPosition pairs outcomes by list index. Provider reordering yields false moves.
	MatchByPosition OutcomeMatching = "position"
)

// ParseOutcomeMatching accepts "name" or "position"; empty means name.
func ParseOutcomeMatching(v string) (OutcomeMatching, error) {
	switch OutcomeMatching(v) {
	case "", MatchByName:
		return MatchByName, nil
	case MatchByPosition:
		return MatchByPosition, nil
	default:
		return "", fmt.Errorf("unknown outcome matching %q", v)
	}
}

// LineMovement is a price change of one outcome at one bookmaker between two snapshots.
type LineMovement struct {
	MatchID    string    `json:"match_id"`
	Match      string    `json:"match"`
	League     string    `json:"league"`
	Outcome    string    `json:"outcome"`
	Bookmaker  string    `json:"bookmaker"`
	Old        float64   `json:"old"`
	New        float64   `json:"new"`
	Delta      float64   `json:"delta"`
	PreviousAt time.Time `json:"previous_at"`
	LatestAt   time.Time `json:"latest_at"`
}

// MovementAnalyzer diffs consecutive snapshots.
type MovementAnalyzer struct {
	threshold float64
	matching  OutcomeMatching
	market    string
}

// NewMovementAnalyzer builds an analyzer flagging |delta| >= threshold as sharp.
func NewMovementAnalyzer(threshold float64, matching OutcomeMatching) (*MovementAnalyzer, error) {
	if threshold < 0 {
		return nil, fmt.Errorf("sharp threshold cannot be negative")
	}
	if matching == "" {
		matching = MatchByName
	}
	return &MovementAnalyzer{threshold: threshold, matching: matching, market: odds.MarketH2H}, nil
}

// Threshold returns the sharp-move cutoff.
func (a *MovementAnalyzer) Threshold() float64 {
	return a.threshold
}

// CompareLog compares the two newest snapshots of an ordered log.
// ok is false when fewer than two snapshots exist.
func (a *MovementAnalyzer) CompareLog(history []odds.Snapshot) ([]LineMovement, bool) {
	if len(history) < 2 {
		return nil, false
	}
	return a.Compare(history[len(history)-2], history[len(history)-1]), true
}

// Compare lists every price change between prev and latest. Matches, bookmakers and
// markets missing from either side are skipped.
func (a *MovementAnalyzer) Compare(prev, latest odds.Snapshot) []LineMovement {
	var changes []LineMovement
	for _, game := range latest.Matches {
		prevGame, ok := prev.Match(game.ID)
		if !ok {
			continue
		}
		for _, bm := range game.Bookmakers {
			prevBm, ok := prevGame.Bookmaker(bm.Key)
			if !ok {
				continue
			}
			market, ok := bm.Market(a.market)
			if !ok {
				continue
			}
			prevMarket, ok := prevBm.Market(a.market)
			if !ok {
				continue
			}
			for _, pair := range a.pairOutcomes(prevMarket, market) {
				if !odds.ValidPrice(pair.old.Price) || !odds.ValidPrice(pair.new.Price) {
					continue
				}
				if pair.new.Price == pair.old.Price {
					continue
				}
				changes = append(changes, LineMovement{
					MatchID:    game.ID,
					Match:      game.Title(),
					League:     game.League,
					Outcome:    pair.new.Name,
					Bookmaker:  bm.Key,
					Old:        pair.old.Price,
					New:        pair.new.Price,
					Delta:      pair.new.Price - pair.old.Price,
					PreviousAt: prev.Timestamp,
					LatestAt:   latest.Timestamp,
				})
			}
		}
	}
	return changes
}

// IsSharp reports whether |delta| reaches the threshold.
func (a *MovementAnalyzer) IsSharp(m LineMovement) bool {
	return math.Abs(m.Delta) >= a.threshold
}

// Sharp filters changes down to sharp moves.
func (a *MovementAnalyzer) Sharp(changes []LineMovement) []LineMovement {
	sharp := make([]LineMovement, 0, len(changes))
	for _, c := range changes {
		if a.IsSharp(c) {
			sharp = append(sharp, c)
		}
	}
	return sharp
}

type outcomePair struct {
	old odds.Outcome
	new odds.Outcome
}

func (a *MovementAnalyzer) pairOutcomes(prev, latest odds.Market) []outcomePair {
	pairs := make([]outcomePair, 0, len(latest.Outcomes))
	if a.matching == MatchByPosition {
		n := min(len(prev.Outcomes), len(latest.Outcomes))
		for i := 0; i < n; i++ {
			pairs = append(pairs, outcomePair{old: prev.Outcomes[i], new: latest.Outcomes[i]})
		}
		return pairs
	}
	for _, out := range latest.Outcomes {
		if old, ok := prev.Outcome(out.Name); ok {
			pairs = append(pairs, outcomePair{old: old, new: out})
		}
	}
	return pairs
}
