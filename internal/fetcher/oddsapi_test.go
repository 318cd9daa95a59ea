package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

const eplPayload = `[
  {
    "id": "e1",
    "sport_key": "soccer_epl",
    "sport_title": "EPL",
    "commence_time": "2026-10-17T14:00:00Z",
    "home_team": "Arsenal",
    "away_team": "Chelsea",
    "bookmakers": [
      {
        "key": "pinnacle",
        "title": "Pinnacle",
        "last_update": "2026-10-16T09:58:00Z",
        "markets": [
          {"key": "h2h", "outcomes": [
            {"name": "Arsenal", "price": 1.85},
            {"name": "Chelsea", "price": 4.2},
            {"name": "Draw", "price": null}
          ]}
        ]
      }
    ]
  }
]`

func TestFetchLeagueMissingKey(t *testing.T) {
	o := NewOddsAPI(OddsAPIOptions{}, noopLogger())
	if _, err := o.FetchLeague(context.Background(), "soccer_epl"); err == nil {
		t.Fatal("缺少 api key 时应返回错误")
	}
}

func TestFetchLeagueHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "invalid key", "error_code": "INVALID_KEY"})
	}))
	defer srv.Close()

	o := NewOddsAPI(OddsAPIOptions{BaseURL: srv.URL, APIKey: "k", Timeout: time.Second}, noopLogger())
	_, err := o.FetchLeague(context.Background(), "soccer_epl")
	if err == nil {
		t.Fatal("HTTP 401 应返回错误")
	}
	if !strings.Contains(err.Error(), "INVALID_KEY") {
		t.Fatalf("error should carry the api error code: %v", err)
	}
}

func TestFetchLeagueSuccess(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(eplPayload))
	}))
	defer srv.Close()

	o := NewOddsAPI(OddsAPIOptions{BaseURL: srv.URL, APIKey: "k", Timeout: time.Second, UserAgent: "test"}, noopLogger())
	matches, err := o.FetchLeague(context.Background(), "soccer_epl")
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if gotPath != "/sports/soccer_epl/odds" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	for _, want := range []string{"regions=eu", "markets=h2h", "oddsFormat=decimal", "apiKey=k"} {
		if !strings.Contains(gotQuery, want) {
			t.Fatalf("query %q missing %s", gotQuery, want)
		}
	}
	if len(matches) != 1 {
		t.Fatalf("期望 1 场比赛, 实际 %d", len(matches))
	}
	m := matches[0]
	if m.League != "soccer_epl" || m.Title() != "Arsenal vs Chelsea" {
		t.Fatalf("unexpected match %+v", m)
	}
	outcomes := m.Bookmakers[0].Markets[0].Outcomes
	if len(outcomes) != 2 {
		t.Fatalf("null price should be dropped, got %+v", outcomes)
	}
}

func TestFetchAllSkipsFailingLeague(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "soccer_italy_serie_a") {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(eplPayload))
	}))
	defer srv.Close()

	o := NewOddsAPI(OddsAPIOptions{
		BaseURL: srv.URL,
		APIKey:  "k",
		Leagues: []string{"soccer_epl", "soccer_italy_serie_a"},
	}, noopLogger())
	fixed := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return fixed }

	snap, results := o.FetchAll(context.Background())
	if !snap.Timestamp.Equal(fixed) {
		t.Fatalf("snapshot timestamp %s", snap.Timestamp)
	}
	if len(snap.Matches) != 1 {
		t.Fatalf("expected matches from the healthy league only, got %d", len(snap.Matches))
	}
	if len(results) != 2 || !results[0].OK() || results[1].OK() {
		t.Fatalf("unexpected league results %+v", results)
	}
	if results[0].Matches != 1 || results[1].Matches != 0 {
		t.Fatalf("unexpected counts %+v", results)
	}
}

func TestDefaultLeagues(t *testing.T) {
	o := NewOddsAPI(OddsAPIOptions{APIKey: "k"}, noopLogger())
	if got := o.Leagues(); len(got) != 6 || got[0] != "soccer_epl" {
		t.Fatalf("unexpected default leagues %v", got)
	}
}
