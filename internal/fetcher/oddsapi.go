package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"odds-value-alerts/internal/odds"
)

const (
	defaultBaseURL   = "https://api.the-odds-api.com/v4"
	defaultUserAgent = "oddswatcher/1.0"
)

// DefaultLeagues are the soccer competitions polled when none are configured.
var DefaultLeagues = []string{
	"soccer_epl",
	"soccer_uefa_champs_league",
	"soccer_france_ligue_one",
	"soccer_spain_la_liga",
	"soccer_italy_serie_a",
	"soccer_germany_bundesliga",
}

// OddsAPIOptions parameterise the-odds-api client.
type OddsAPIOptions struct {
	BaseURL    string
	APIKey     string
	Regions    string
	Markets    string
	OddsFormat string
	Leagues    []string
	Timeout    time.Duration
	UserAgent  string
}

// OddsAPI fetches bookmaker odds from the-odds-api v4.
type OddsAPI struct {
	opts    OddsAPIOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	now     func() time.Time
}

// NewOddsAPI constructs an odds fetcher.
func NewOddsAPI(opts OddsAPIOptions, logger zerolog.Logger) *OddsAPI {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if opts.Regions == "" {
		opts.Regions = "eu"
	}
	if opts.Markets == "" {
		opts.Markets = odds.MarketH2H
	}
	if opts.OddsFormat == "" {
		opts.OddsFormat = "decimal"
	}
	if len(opts.Leagues) == 0 {
		opts.Leagues = append([]string(nil), DefaultLeagues...)
	}

	return &OddsAPI{
		opts:    opts,
		logger:  logger.With().Str("component", "odds_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		now:     time.Now,
	}
}

// Leagues returns the configured league keys.
func (o *OddsAPI) Leagues() []string {
	return append([]string(nil), o.opts.Leagues...)
}

// FetchLeague retrieves upcoming matches of one league. Quotes with a null or
// non-positive price are dropped here, so downstream analysis only sees usable prices.
func (o *OddsAPI) FetchLeague(ctx context.Context, league string) ([]odds.Match, error) {
	if strings.TrimSpace(o.opts.APIKey) == "" {
		return nil, errors.New("odds api key is required")
	}
	if strings.TrimSpace(league) == "" {
		return nil, errors.New("league is required")
	}

	q := url.Values{}
	q.Set("apiKey", o.opts.APIKey)
	q.Set("regions", o.opts.Regions)
	q.Set("markets", o.opts.Markets)
	q.Set("oddsFormat", o.opts.OddsFormat)
	endpoint := fmt.Sprintf("%s/sports/%s/odds?%s", o.baseURL, url.PathEscape(league), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(o.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", defaultUserAgent)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	if remaining := resp.Header.Get("x-requests-remaining"); remaining != "" {
		o.logger.Debug().Str("league", league).Str("requests_remaining", remaining).Msg("odds api quota")
	}

	var events []eventResponse
	if err := json.Unmarshal(payload, &events); err != nil {
		return nil, fmt.Errorf("decode %s odds: %w", league, err)
	}

	matches := make([]odds.Match, 0, len(events))
	for _, ev := range events {
		matches = append(matches, ev.toMatch(league))
	}
	return matches, nil
}

// FetchAll polls every configured league in order. A failing league is logged and
// reported in its LeagueResult; it contributes no matches but never aborts the poll.
func (o *OddsAPI) FetchAll(ctx context.Context) (odds.Snapshot, []LeagueResult) {
	snap := odds.Snapshot{Timestamp: o.now().UTC()}
	results := make([]LeagueResult, 0, len(o.opts.Leagues))

	for _, league := range o.opts.Leagues {
		if ctx.Err() != nil {
			results = append(results, LeagueResult{League: league, Err: ctx.Err()})
			continue
		}
		matches, err := o.FetchLeague(ctx, league)
		if err != nil {
			o.logger.Warn().Err(err).Str("league", league).Msg("league fetch failed, skipping")
			results = append(results, LeagueResult{League: league, Err: err})
			continue
		}
		snap.Matches = append(snap.Matches, matches...)
		results = append(results, LeagueResult{League: league, Matches: len(matches)})
	}

	return snap, results
}

type eventResponse struct {
	ID           string             `json:"id"`
	SportKey     string             `json:"sport_key"`
	SportTitle   string             `json:"sport_title"`
	CommenceTime time.Time          `json:"commence_time"`
	HomeTeam     string             `json:"home_team"`
	AwayTeam     string             `json:"away_team"`
	Bookmakers   []bookmakerPayload `json:"bookmakers"`
}

type bookmakerPayload struct {
	Key        string          `json:"key"`
	Title      string          `json:"title"`
	LastUpdate time.Time       `json:"last_update"`
	Markets    []marketPayload `json:"markets"`
}

type marketPayload struct {
	Key      string           `json:"key"`
	Outcomes []outcomePayload `json:"outcomes"`
}

type outcomePayload struct {
	Name  string   `json:"name"`
	Price *float64 `json:"price"`
	Point *float64 `json:"point,omitempty"`
}

func (ev eventResponse) toMatch(league string) odds.Match {
	m := odds.Match{
		ID:           ev.ID,
		League:       league,
		SportTitle:   ev.SportTitle,
		CommenceTime: ev.CommenceTime,
		HomeTeam:     ev.HomeTeam,
		AwayTeam:     ev.AwayTeam,
	}
	for _, bk := range ev.Bookmakers {
		book := odds.Bookmaker{Key: bk.Key, Title: bk.Title, LastUpdate: bk.LastUpdate}
		for _, mk := range bk.Markets {
			market := odds.Market{Key: mk.Key}
			for _, oc := range mk.Outcomes {
				if oc.Price == nil || !odds.ValidPrice(*oc.Price) {
					continue
				}
				market.Outcomes = append(market.Outcomes, odds.Outcome{Name: oc.Name, Price: *oc.Price, Point: oc.Point})
			}
			book.Markets = append(book.Markets, market)
		}
		m.Bookmakers = append(m.Bookmakers, book)
	}
	return m
}

type errorResponse struct {
	Message   string `json:"message"`
	ErrorCode string `json:"error_code"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" && apiErr.ErrorCode != "" {
			return fmt.Errorf("odds api error (%d, %s): %s", status, apiErr.ErrorCode, apiErr.Message)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("odds api error (%d): %s", status, apiErr.Message)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("odds api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("odds api error (%d)", status)
}

var _ OddsSource = (*OddsAPI)(nil)
