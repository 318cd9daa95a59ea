package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"odds-value-alerts/internal/alerting"
	"odds-value-alerts/internal/config"
	"odds-value-alerts/internal/fetcher"
	"odds-value-alerts/internal/metrics"
	"odds-value-alerts/internal/odds"
	"odds-value-alerts/internal/publisher"
	"odds-value-alerts/internal/scheduler"
	"odds-value-alerts/internal/signals"
	"odds-value-alerts/internal/snapshot"
	"odds-value-alerts/internal/storage"
)

// ErrPersistence marks snapshot log or archive I/O failures. They are reported
// separately from fetch failures so a broken disk is never mistaken for a flaky API.
var ErrPersistence = errors.New("snapshot persistence failed")

// ErrNoOdds means every league came back empty or failed.
var ErrNoOdds = errors.New("no odds fetched from any league")

// SnapshotLog is the append-only snapshot history.
type SnapshotLog interface {
	Append(snap odds.Snapshot) error
	Latest() (odds.Snapshot, bool, error)
	Backup(snap odds.Snapshot) (string, error)
}

// Rotator archives the log when the day changes.
type Rotator interface {
	Check(now time.Time) (snapshot.ArchiveResult, bool, error)
}

// Dispatcher delivers rendered alert text.
type Dispatcher interface {
	Dispatch(ctx context.Context, text string) error
}

// ReportSink receives every finished cycle report.
type ReportSink interface {
	Set(report signals.CycleReport)
}

// Deps are the collaborators of one Service. Only Source, Log and Analyzer are required.
type Deps struct {
	Source     fetcher.OddsSource
	Log        SnapshotLog
	Rotator    Rotator
	Analyzer   *signals.Analyzer
	Signals    storage.SignalStore
	Alerts     storage.AlertStore
	Locker     storage.AdvisoryLocker
	Publisher  publisher.Publisher
	Dispatcher Dispatcher
	Dedup      alerting.Deduplicator
	Reports    ReportSink
	Metrics    *metrics.Recorder
}

// Service orchestrates fetching, persistence, analysis and alerting.
type Service struct {
	scheduler *scheduler.Scheduler
	deps      Deps
	logger    zerolog.Logger

	alertsOn    bool
	valueAlerts bool
	render      alerting.RenderOptions
	lockKey     int64
	retention   time.Duration
	now         func() time.Time
	newCycleID  func() string
}

// New constructs the polling service.
func New(cfg *config.Config, sched *scheduler.Scheduler, deps Deps, logger zerolog.Logger) (*Service, error) {
	if deps.Source == nil || deps.Log == nil || deps.Analyzer == nil {
		return nil, fmt.Errorf("service requires an odds source, a snapshot log and an analyzer")
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	return &Service{
		scheduler:   sched,
		deps:        deps,
		logger:      logger.With().Str("component", "service").Logger(),
		alertsOn:    cfg.Alerting.Enabled && deps.Dispatcher != nil,
		valueAlerts: cfg.Alerting.ValueAlerts,
		render:      alerting.RenderOptions{IncludeValue: cfg.Alerting.ValueAlerts, Location: loc},
		lockKey:     cfg.Scheduler.AdvisoryLockKey,
		retention:   cfg.Database.Retention,
		now:         time.Now,
		newCycleID:  uuid.NewString,
	}, nil
}

// Run begins the poll loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessTick)
}

// ProcessTick 执行单次轮询, 多实例部署时由 advisory lock 保证单写者。
func (s *Service) ProcessTick(ctx context.Context, at time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("at", at).Msg("skip poll because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	_, err = s.Poll(ctx)
	return err
}

// Poll runs one full cycle: rotate, fetch, persist, analyze, record, alert. The
// report is returned even when persistence failed; err then wraps ErrPersistence.
func (s *Service) Poll(ctx context.Context) (signals.CycleReport, error) {
	start := s.now()
	cycleID := s.newCycleID()
	log := s.logger.With().Str("cycle_id", cycleID).Logger()

	var persistErrs []error
	persistFailed := func(stage string, err error) {
		s.deps.Metrics.PersistenceFailure(stage)
		log.Error().Err(err).Str("stage", stage).Msg("snapshot persistence failed")
		persistErrs = append(persistErrs, fmt.Errorf("%s: %w", stage, err))
	}

	// The newest logged snapshot is read before rotation so the first poll of a new
	// day still has something to compare against.
	prev, hasPrev, err := s.deps.Log.Latest()
	if err != nil {
		persistFailed("load", err)
		hasPrev = false
	}

	s.rotate(start, log, persistFailed)

	snap, results := s.deps.Source.FetchAll(ctx)
	for _, res := range results {
		s.deps.Metrics.ObserveLeague(res.League, res.Err)
		if res.Err == nil {
			log.Debug().Str("league", res.League).Int("matches", res.Matches).Msg("league fetched")
		}
	}
	if len(snap.Matches) == 0 {
		s.deps.Metrics.ObserveCycle("empty", s.now().Sub(start))
		log.Warn().Int("leagues", len(results)).Msg("no odds returned from any league")
		return signals.CycleReport{}, ErrNoOdds
	}

	appended := true
	if err := s.deps.Log.Append(snap); err != nil {
		appended = false
		persistFailed("append", err)
	} else {
		s.deps.Metrics.ObserveSnapshot(len(snap.Matches), snap.Timestamp)
	}
	if path, err := s.deps.Log.Backup(snap); err != nil {
		s.deps.Metrics.PersistenceFailure("backup")
		log.Warn().Err(err).Msg("snapshot backup failed")
	} else if path != "" {
		log.Debug().Str("path", path).Msg("snapshot backed up")
	}

	var prevPtr *odds.Snapshot
	if hasPrev && appended {
		prevPtr = &prev
	}
	report := s.deps.Analyzer.Analyze(prevPtr, snap)
	report.CycleID = cycleID
	report.GeneratedAt = s.now().UTC()

	s.record(ctx, report, log)
	s.alert(ctx, report, log)

	log.Info().
		Int("matches", report.Matches).
		Bool("movement_compared", report.MovementCompared).
		Int("movements", len(report.Movements)).
		Int("sharp_moves", len(report.SharpMoves)).
		Int("disagreements", len(report.Disagreements)).
		Int("value_signals", len(report.ValueSignals())).
		Msg("cycle complete")

	if len(persistErrs) > 0 {
		s.deps.Metrics.ObserveCycle("persistence_error", s.now().Sub(start))
		return report, fmt.Errorf("%w: %w", ErrPersistence, errors.Join(persistErrs...))
	}
	s.deps.Metrics.ObserveCycle("ok", s.now().Sub(start))
	return report, nil
}

func (s *Service) rotate(now time.Time, log zerolog.Logger, persistFailed func(string, error)) {
	if s.deps.Rotator == nil {
		return
	}
	res, rotated, err := s.deps.Rotator.Check(now)
	if err != nil {
		persistFailed("rotate", err)
		return
	}
	if !rotated {
		return
	}
	s.deps.Metrics.Rotated()
	log.Info().
		Str("archive", res.Path).
		Int("snapshots", res.Snapshots).
		Bool("merged", res.Merged).
		Msg("daily archive created")
	s.prune(now, log)
}

func (s *Service) prune(now time.Time, log zerolog.Logger) {
	if s.retention <= 0 {
		return
	}
	cutoff := now.Add(-s.retention)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if s.deps.Signals != nil {
		if err := s.deps.Signals.DeleteCyclesBefore(ctx, cutoff); err != nil {
			log.Warn().Err(err).Msg("prune audit cycles failed")
		}
	}
	if s.deps.Alerts != nil {
		if err := s.deps.Alerts.DeleteAlertsBefore(ctx, cutoff); err != nil {
			log.Warn().Err(err).Msg("prune alerts failed")
		}
	}
}

func (s *Service) record(ctx context.Context, report signals.CycleReport, log zerolog.Logger) {
	s.deps.Metrics.AddSignals("movement", len(report.Movements))
	s.deps.Metrics.AddSignals("sharp_move", len(report.SharpMoves))
	s.deps.Metrics.AddSignals("disagreement", len(report.Disagreements))
	s.deps.Metrics.AddSignals("value", len(report.ValueSignals()))

	if s.deps.Reports != nil {
		s.deps.Reports.Set(report)
	}
	if s.deps.Signals != nil {
		if err := s.deps.Signals.SaveCycle(ctx, storage.NewCycleRecord(report)); err != nil {
			log.Error().Err(err).Msg("failed to store cycle audit")
		}
	}
	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.PublishReport(ctx, report); err != nil {
			log.Error().Err(err).Msg("failed to publish cycle report")
		}
	}
}

func (s *Service) alert(ctx context.Context, report signals.CycleReport, log zerolog.Logger) {
	if !s.alertsOn {
		return
	}

	digest := alerting.DigestFromReport(report)
	if !s.valueAlerts {
		digest.Value = nil
	}
	digest, err := alerting.FilterDigest(ctx, s.deps.Dedup, digest)
	if err != nil {
		log.Warn().Err(err).Msg("alert dedup unavailable, sending without cooldown")
	}

	text := alerting.RenderDigest(digest, s.render)
	if text == "" {
		return
	}

	sendErr := s.deps.Dispatcher.Dispatch(ctx, text)
	s.deps.Metrics.ObserveAlert(sendErr)
	if sendErr != nil {
		log.Error().Err(sendErr).Msg("failed to dispatch alert")
	}

	if s.deps.Alerts != nil {
		rec := storage.AlertRecord{
			CycleID:       report.CycleID,
			Message:       text,
			SharpMoves:    len(digest.SharpMoves),
			Disagreements: len(digest.Disagreements),
			ValueSignals:  len(digest.Value),
			Status:        "sent",
		}
		if sendErr != nil {
			msg := sendErr.Error()
			rec.Status = "failed"
			rec.Error = &msg
		}
		if _, err := s.deps.Alerts.InsertAlert(ctx, rec); err != nil {
			log.Error().Err(err).Msg("failed to persist alert record")
		}
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.deps.Locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.deps.Locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
