package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"odds-value-alerts/internal/oddsmodel"
	"odds-value-alerts/internal/signals"
)

func testReport() signals.CycleReport {
	return signals.CycleReport{
		CycleID:    "c1",
		SnapshotAt: time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC),
		Value: []signals.FairValue{
			{MatchID: "m1", Outcome: "Arsenal", Edges: []signals.BookEdge{{Bookmaker: "B3", Edge: 0.3, Signal: oddsmodel.SignalStrong}}},
			{MatchID: "m1", Outcome: "Chelsea", Edges: []signals.BookEdge{{Bookmaker: "B1", Edge: 0.12, Signal: oddsmodel.SignalMedium}}},
			{MatchID: "m2", Outcome: "Lyon", Edges: []signals.BookEdge{{Bookmaker: "B1", Edge: 0.01, Signal: oddsmodel.SignalNone}}},
		},
		Movements: []signals.LineMovement{
			{MatchID: "m1", Bookmaker: "B3", Delta: 0.25},
			{MatchID: "m2", Bookmaker: "B1", Delta: 0.05},
		},
		SharpMoves: []signals.LineMovement{{MatchID: "m1", Bookmaker: "B3", Delta: 0.25}},
	}
}

func get(t *testing.T, h http.Handler, path string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return rec.Code
}

func TestEndpointsBeforeFirstCycle(t *testing.T) {
	h := New(Options{}, NewReportCache(), nil, zerolog.Nop()).Handler()
	if code := get(t, h, "/healthz", nil); code != http.StatusOK {
		t.Fatalf("healthz status %d", code)
	}
	if code := get(t, h, "/api/v1/report", nil); code != http.StatusNotFound {
		t.Fatalf("report before first cycle should 404, got %d", code)
	}
}

func TestReportEndpoints(t *testing.T) {
	cache := NewReportCache()
	cache.Set(testReport())
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# ok")) })
	h := New(Options{}, cache, metrics, zerolog.Nop()).Handler()

	var report signals.CycleReport
	if code := get(t, h, "/api/v1/report", &report); code != http.StatusOK || report.CycleID != "c1" {
		t.Fatalf("report: %d %+v", code, report)
	}

	var value []signals.FairValue
	get(t, h, "/api/v1/value", &value)
	if len(value) != 2 || value[0].Outcome != "Arsenal" {
		t.Fatalf("graded value rows: %+v", value)
	}
	get(t, h, "/api/v1/value?all=true", &value)
	if len(value) != 3 {
		t.Fatalf("all value rows: %d", len(value))
	}
	get(t, h, "/api/v1/value?signal=medium", &value)
	if len(value) != 1 || value[0].Outcome != "Chelsea" {
		t.Fatalf("medium rows: %+v", value)
	}

	var moves []signals.LineMovement
	get(t, h, "/api/v1/movements?sharp=true", &moves)
	if len(moves) != 1 {
		t.Fatalf("sharp moves: %+v", moves)
	}

	var disagreements []signals.Disagreement
	if code := get(t, h, "/api/v1/disagreements", &disagreements); code != http.StatusOK || disagreements == nil {
		t.Fatalf("disagreements should be an empty list, got %v (%d)", disagreements, code)
	}

	var match matchResponse
	if code := get(t, h, "/api/v1/matches/m1", &match); code != http.StatusOK {
		t.Fatalf("match status %d", code)
	}
	if len(match.Value) != 2 || len(match.Movements) != 1 {
		t.Fatalf("match view: %+v", match)
	}
	if code := get(t, h, "/api/v1/matches/missing", nil); code != http.StatusNotFound {
		t.Fatalf("unknown match should 404, got %d", code)
	}

	if code := get(t, h, "/metrics", nil); code != http.StatusOK {
		t.Fatalf("metrics status %d", code)
	}
}
