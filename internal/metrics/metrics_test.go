package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounters(t *testing.T) {
	r := New()
	r.ObserveCycle("ok", 2*time.Second)
	r.ObserveCycle("error", time.Second)
	r.ObserveCycle("ok", time.Second)
	r.ObserveLeague("soccer_epl", nil)
	r.ObserveLeague("soccer_epl", errors.New("timeout"))
	r.AddSignals("sharp_move", 3)
	r.AddSignals("sharp_move", 0)
	r.ObserveAlert(nil)
	r.PersistenceFailure("append")
	r.Rotated()
	r.ObserveSnapshot(42, time.Unix(1_700_000_000, 0))

	if got := testutil.ToFloat64(r.cycles.WithLabelValues("ok")); got != 2 {
		t.Fatalf("ok cycles = %v", got)
	}
	if got := testutil.ToFloat64(r.leagueFetches.WithLabelValues("soccer_epl", "error")); got != 1 {
		t.Fatalf("league errors = %v", got)
	}
	if got := testutil.ToFloat64(r.signals.WithLabelValues("sharp_move")); got != 3 {
		t.Fatalf("sharp signals = %v", got)
	}
	if got := testutil.ToFloat64(r.persistFailures.WithLabelValues("append")); got != 1 {
		t.Fatalf("persistence failures = %v", got)
	}
	if got := testutil.ToFloat64(r.matches); got != 42 {
		t.Fatalf("matches gauge = %v", got)
	}
	if got := testutil.ToFloat64(r.rotations); got != 1 {
		t.Fatalf("rotations = %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.ObserveAlert(errors.New("429"))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `oddswatcher_alerts_total{result="failed"} 1`) {
		t.Fatalf("alerts counter missing:\n%s", rec.Body.String())
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.ObserveCycle("ok", time.Second)
	r.ObserveAlert(nil)
	r.Rotated()
}
