package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"odds-value-alerts/internal/oddsmodel"
	"odds-value-alerts/internal/signals"
)

// Options configure the status server.
type Options struct {
	Addr string
}

// Server exposes health, metrics and the latest cycle report over HTTP.
type Server struct {
	opts    Options
	cache   *ReportCache
	metrics http.Handler
	logger  zerolog.Logger
}

// New constructs a status server. metrics may be nil.
func New(opts Options, cache *ReportCache, metrics http.Handler, logger zerolog.Logger) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	return &Server{
		opts:    opts,
		cache:   cache,
		metrics: metrics,
		logger:  logger.With().Str("component", "status_server").Logger(),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(10 * time.Second))

	r.Get("/healthz", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/report", s.report)
		r.Get("/value", s.value)
		r.Get("/movements", s.movements)
		r.Get("/disagreements", s.disagreements)
		r.Get("/matches/{matchID}", s.match)
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("status server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

type healthResponse struct {
	Status     string     `json:"status"`
	LastCycle  string     `json:"last_cycle,omitempty"`
	SnapshotAt *time.Time `json:"snapshot_at,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if report, ok := s.cache.Latest(); ok {
		resp.LastCycle = report.CycleID
		at := report.SnapshotAt
		resp.SnapshotAt = &at
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) latest(w http.ResponseWriter) (signals.CycleReport, bool) {
	report, ok := s.cache.Latest()
	if !ok {
		respondError(w, http.StatusNotFound, "no cycle has completed yet")
	}
	return report, ok
}

func (s *Server) report(w http.ResponseWriter, _ *http.Request) {
	if report, ok := s.latest(w); ok {
		respondJSON(w, http.StatusOK, report)
	}
}

// value returns graded value signals; ?all=true includes NONE rows and ?signal=STRONG
// narrows to one grade.
func (s *Server) value(w http.ResponseWriter, r *http.Request) {
	report, ok := s.latest(w)
	if !ok {
		return
	}
	rows := report.ValueSignals()
	if r.URL.Query().Get("all") == "true" {
		rows = report.Value
	}
	if grade := strings.ToUpper(r.URL.Query().Get("signal")); grade != "" {
		filtered := make([]signals.FairValue, 0, len(rows))
		for _, fv := range rows {
			if best, ok := fv.Best(); ok && best.Signal == oddsmodel.Signal(grade) {
				filtered = append(filtered, fv)
			}
		}
		rows = filtered
	}
	respondJSON(w, http.StatusOK, rows)
}

// movements returns every change of the last comparison; ?sharp=true keeps sharp ones.
func (s *Server) movements(w http.ResponseWriter, r *http.Request) {
	report, ok := s.latest(w)
	if !ok {
		return
	}
	if r.URL.Query().Get("sharp") == "true" {
		respondJSON(w, http.StatusOK, nonNil(report.SharpMoves))
		return
	}
	respondJSON(w, http.StatusOK, nonNil(report.Movements))
}

func (s *Server) disagreements(w http.ResponseWriter, _ *http.Request) {
	if report, ok := s.latest(w); ok {
		respondJSON(w, http.StatusOK, nonNil(report.Disagreements))
	}
}

type matchResponse struct {
	MatchID       string                 `json:"match_id"`
	Value         []signals.FairValue    `json:"value"`
	Movements     []signals.LineMovement `json:"movements"`
	Disagreements []signals.Disagreement `json:"disagreements"`
}

func (s *Server) match(w http.ResponseWriter, r *http.Request) {
	report, ok := s.latest(w)
	if !ok {
		return
	}
	id := chi.URLParam(r, "matchID")
	resp := matchResponse{
		MatchID:       id,
		Value:         []signals.FairValue{},
		Movements:     []signals.LineMovement{},
		Disagreements: []signals.Disagreement{},
	}
	found := false
	for _, fv := range report.Value {
		if fv.MatchID == id {
			resp.Value = append(resp.Value, fv)
			found = true
		}
	}
	for _, mv := range report.Movements {
		if mv.MatchID == id {
			resp.Movements = append(resp.Movements, mv)
		}
	}
	for _, rec := range report.Disagreements {
		if rec.MatchID == id {
			resp.Disagreements = append(resp.Disagreements, rec)
		}
	}
	if !found {
		respondError(w, http.StatusNotFound, "match not in latest snapshot")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: http.StatusText(status), Message: message, Code: status})
}
