package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"odds-value-alerts/internal/alerting"
	"odds-value-alerts/internal/config"
	"odds-value-alerts/internal/fetcher"
	"odds-value-alerts/internal/metrics"
	"odds-value-alerts/internal/publisher"
	"odds-value-alerts/internal/scheduler"
	"odds-value-alerts/internal/server"
	"odds-value-alerts/internal/service"
	"odds-value-alerts/internal/signals"
	"odds-value-alerts/internal/snapshot"
	"odds-value-alerts/internal/storage"
	"odds-value-alerts/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	fs  afero.Fs
	out io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config: cfg,
		Logger: logger.With().Str("component", "app").Logger(),
		fs:     afero.NewOsFs(),
		out:    os.Stdout,
	}
}

func (a *App) newOddsSource() *fetcher.OddsAPI {
	cfg := a.Config.OddsAPI
	if cfg.UserAgent == "" {
		cfg.UserAgent = version.UserAgent()
	}
	return fetcher.NewOddsAPI(fetcher.OddsAPIOptions{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Regions:    cfg.Regions,
		Markets:    cfg.Markets,
		OddsFormat: cfg.OddsFormat,
		Leagues:    cfg.Leagues,
		Timeout:    cfg.RequestTimeout,
		UserAgent:  cfg.UserAgent,
	}, a.Logger)
}

func (a *App) newSnapshotStore(fs afero.Fs) (*snapshot.Store, error) {
	loc, err := a.Config.Location()
	if err != nil {
		return nil, err
	}
	if fs == nil {
		fs = a.fs
	}
	return snapshot.NewStore(fs, snapshot.Options{
		HistoryPath: a.Config.Snapshots.HistoryPath,
		ArchiveDir:  a.Config.Snapshots.ArchiveDir,
		BackupDir:   a.Config.Snapshots.BackupDir,
		Location:    loc,
	})
}

func (a *App) newAnalyzer() (*signals.Analyzer, error) {
	return signals.NewAnalyzer(a.Config.SignalsConfig())
}

func (a *App) newSender() (alerting.Sender, error) {
	cfg := a.Config.Alerting.Telegram
	if !cfg.Enabled {
		a.Logger.Warn().Msg("telegram disabled; alerts are written to the log")
		return alerting.NewLogSender(a.Logger), nil
	}
	return alerting.NewTelegramSender(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.RequestTimeout, a.Logger)
}

func (a *App) newDispatcher() (*alerting.Dispatcher, error) {
	sender, err := a.newSender()
	if err != nil {
		return nil, err
	}
	return alerting.NewDispatcher(sender, alerting.DispatcherOptions{
		MinInterval:   a.Config.Alerting.MinInterval,
		RetryPadding:  a.Config.Alerting.RetryPadding,
		MaxMessageLen: a.Config.Alerting.MaxMessageLen,
	}, a.Logger), nil
}

// newDedup returns nil when no cooldown is configured.
func (a *App) newDedup(ctx context.Context) (alerting.Deduplicator, func()) {
	cfg := a.Config.Alerting
	if cfg.Cooldown <= 0 {
		return nil, nil
	}
	if cfg.Redis.Addr == "" {
		return alerting.NewMemoryDeduplicator(cfg.Cooldown), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		a.Logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable; falling back to in-memory cooldown")
		_ = client.Close()
		return alerting.NewMemoryDeduplicator(cfg.Cooldown), nil
	}
	return alerting.NewRedisDeduplicator(client, cfg.Redis.Prefix, cfg.Cooldown), func() { _ = client.Close() }
}

func (a *App) newPublisher() (publisher.Publisher, error) {
	if !a.Config.Kafka.Enabled {
		return nil, nil
	}
	return publisher.NewKafkaPublisher(a.Config.Kafka.Brokers, a.Config.Kafka.Topic, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	if a.Config.Database.AutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// runtime is the fully wired poll service and everything that must be released.
type runtime struct {
	service *service.Service
	store   *snapshot.Store
	cache   *server.ReportCache
	metrics *metrics.Recorder
	closers []func()
}

func (r *runtime) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

type runtimeOptions struct {
	scheduler *scheduler.Scheduler
	source    fetcher.OddsSource
	fs        afero.Fs
	// offline skips the audit database, alert cooldown and kafka.
	offline bool
}

func (a *App) buildRuntime(ctx context.Context, opts runtimeOptions) (*runtime, error) {
	rt := &runtime{
		cache:   server.NewReportCache(),
		metrics: metrics.New(),
	}
	ok := false
	defer func() {
		if !ok {
			rt.close()
		}
	}()

	store, err := a.newSnapshotStore(opts.fs)
	if err != nil {
		return nil, err
	}
	rt.store = store

	analyzer, err := a.newAnalyzer()
	if err != nil {
		return nil, err
	}

	deps := service.Deps{
		Source:   opts.source,
		Log:      store,
		Rotator:  snapshot.NewRotator(store),
		Analyzer: analyzer,
		Reports:  rt.cache,
		Metrics:  rt.metrics,
	}
	if deps.Source == nil {
		deps.Source = a.newOddsSource()
	}

	var db *storage.Store
	if !opts.offline {
		var closeDB func()
		db, closeDB, err = a.openStore(ctx)
		if err != nil {
			return nil, err
		}
		if closeDB != nil {
			rt.closers = append(rt.closers, closeDB)
		}
	}
	switch {
	case db != nil:
		deps.Signals = db
		deps.Alerts = db
		deps.Locker = db
	case !opts.offline:
		a.Logger.Warn().Msg("database.dsn not configured; audit trail disabled")
	}

	if a.Config.Alerting.Enabled {
		dispatcher, err := a.newDispatcher()
		if err != nil {
			return nil, err
		}
		deps.Dispatcher = dispatcher
		if !opts.offline {
			dedup, closeDedup := a.newDedup(ctx)
			if closeDedup != nil {
				rt.closers = append(rt.closers, closeDedup)
			}
			deps.Dedup = dedup
		}
	}

	var pub publisher.Publisher
	if !opts.offline {
		pub, err = a.newPublisher()
		if err != nil {
			return nil, err
		}
	}
	if pub != nil {
		rt.closers = append(rt.closers, func() {
			if err := pub.Close(); err != nil {
				a.Logger.Warn().Err(err).Msg("close kafka publisher")
			}
		})
		deps.Publisher = pub
	}

	svc, err := service.New(a.Config, opts.scheduler, deps, a.Logger)
	if err != nil {
		return nil, err
	}
	rt.service = svc
	ok = true
	return rt, nil
}

// Run executes the long-running poll loop and, when enabled, the status server.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(scheduler.Options{
		Interval:       a.Config.Scheduler.Interval,
		AlignToBucket:  a.Config.Scheduler.AlignToBucket,
		RunImmediately: a.Config.Scheduler.RunImmediately,
		StartupDelay:   a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	rt, err := a.buildRuntime(ctx, runtimeOptions{scheduler: sched})
	if err != nil {
		return err
	}
	defer rt.close()

	serverDone := make(chan struct{})
	if a.Config.Server.Enabled {
		srv := server.New(server.Options{Addr: a.Config.Server.Addr}, rt.cache, rt.metrics.Handler(), a.Logger)
		go func() {
			defer close(serverDone)
			if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.Logger.Error().Err(err).Msg("status server terminated with error")
			}
		}()
	} else {
		close(serverDone)
	}

	a.Logger.Info().
		Dur("interval", a.Config.Scheduler.Interval).
		Bool("alerts", a.Config.Alerting.Enabled).
		Msg("starting odds watcher")
	err = rt.service.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	<-serverDone
	a.Logger.Info().Msg("odds watcher stopped")
	return nil
}

// ExportOptions hold parameters for exporting price history.
type ExportOptions struct {
	MatchID   string
	Outcome   string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit     int
	SharpOnly bool
	Alerts    bool
}

// MovementsOptions configure the movements command.
type MovementsOptions struct {
	SharpOnly bool
}

// ArchiveOptions configure the archive command.
type ArchiveOptions struct {
	List bool
}

// ValueOptions configure the value command. Odds, when set, is an ad-hoc
// bookmaker -> price map evaluated instead of the logged snapshot.
type ValueOptions struct {
	All  bool
	Odds map[string]float64
}

// SimulateOptions describe one synthetic price change.
type SimulateOptions struct {
	Bookmaker string
	Outcome   string
	Old       float64
	New       float64
}
