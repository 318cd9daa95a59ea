package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "oddswatcher"

// Recorder holds the collectors of one process on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	cycles          *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	leagueFetches   *prometheus.CounterVec
	matches         prometheus.Gauge
	signals         *prometheus.CounterVec
	alerts          *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
	rotations       prometheus.Counter
	lastSnapshot    prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "poll_cycles_total",
			Help: "Poll cycles by result.",
		}, []string{"result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "poll_cycle_duration_seconds",
			Help:    "Wall time of one poll cycle.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		leagueFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "league_fetches_total",
			Help: "League fetches by league and result.",
		}, []string{"league", "result"}),
		matches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "snapshot_matches",
			Help: "Matches in the latest snapshot.",
		}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "signals_total",
			Help: "Detected signals by kind.",
		}, []string{"kind"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "alerts_total",
			Help: "Alert deliveries by result.",
		}, []string{"result"}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "persistence_failures_total",
			Help: "Snapshot persistence failures by stage.",
		}, []string{"stage"}),
		rotations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "archive_rotations_total",
			Help: "Daily archive rotations.",
		}),
		lastSnapshot: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_snapshot_timestamp_seconds",
			Help: "Unix time of the latest persisted snapshot.",
		}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.cycles, r.cycleDuration, r.leagueFetches, r.matches, r.signals,
		r.alerts, r.persistFailures, r.rotations, r.lastSnapshot,
	)
	return r
}

// Handler exposes the registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry is exposed for tests and extra collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveCycle records one finished cycle.
func (r *Recorder) ObserveCycle(result string, took time.Duration) {
	if r == nil {
		return
	}
	r.cycles.WithLabelValues(result).Inc()
	r.cycleDuration.Observe(took.Seconds())
}

// ObserveLeague records one league fetch.
func (r *Recorder) ObserveLeague(league string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.leagueFetches.WithLabelValues(league, result).Inc()
}

// ObserveSnapshot records the persisted snapshot size and time.
func (r *Recorder) ObserveSnapshot(matches int, at time.Time) {
	if r == nil {
		return
	}
	r.matches.Set(float64(matches))
	r.lastSnapshot.Set(float64(at.Unix()))
}

// AddSignals counts n signals of kind.
func (r *Recorder) AddSignals(kind string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.signals.WithLabelValues(kind).Add(float64(n))
}

// ObserveAlert counts one delivery attempt.
func (r *Recorder) ObserveAlert(err error) {
	if r == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	r.alerts.WithLabelValues(result).Inc()
}

// PersistenceFailure counts a snapshot I/O failure at stage.
func (r *Recorder) PersistenceFailure(stage string) {
	if r == nil {
		return
	}
	r.persistFailures.WithLabelValues(stage).Inc()
}

// Rotated counts one archive rotation.
func (r *Recorder) Rotated() {
	if r == nil {
		return
	}
	r.rotations.Inc()
}
