package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/sableword/presswork/internal/config"
	"github.com/sableword/presswork/internal/domain"
	"github.com/sableword/presswork/internal/health"
	"github.com/sableword/presswork/internal/jobs"
	"github.com/sableword/presswork/internal/notify"
	"github.com/sableword/presswork/internal/platform/gemini"
	"github.com/sableword/presswork/internal/platform/logger"
	"github.com/sableword/presswork/internal/platform/postgres"
	"github.com/sableword/presswork/internal/queue"
	"github.com/sableword/presswork/internal/redact"
	"github.com/sableword/presswork/internal/schedule"
	"github.com/sableword/presswork/internal/store"
	"github.com/sableword/presswork/migrations"
)

const (
	// driverInterval is how often the schedule driver polls for due
	// triggers. Finer than the shortest recurrence so minute schedules
	// fire close to on time.
	driverInterval = 15 * time.Second

	// sourceFetchTimeout bounds each source document download.
	sourceFetchTimeout = 30 * time.Second
)

// application holds the wired daemon components.
type application struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB
	driver *schedule.Driver
}

// newApplication loads configuration and wires the queue, schedules, and
// health checking into a runnable daemon.
func newApplication(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	ctx = logger.WithLogger(ctx, appLogger)

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	appLogger.Info("database ready", "max_open_conns", cfg.Database.MaxOpenConns)

	jobStore := postgres.NewJobStore(db)
	scheduleStore := postgres.NewScheduleStore(db)

	handlers, err := buildHandlers(ctx, cfg, jobStore, appLogger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	dispatcher := queue.NewDispatcher(jobStore, handlers, queue.DispatcherConfig{
		BatchSize:   cfg.Queue.BatchSize,
		MaxAttempts: cfg.Queue.MaxAttempts,
		RetryDelay:  cfg.Queue.RetryDelay,
		JobTimeout:  cfg.Queue.JobTimeout,
		Workers:     cfg.Queue.Workers,
	}, appLogger)

	notifier := notify.NewLogNotifier(appLogger)
	prober := health.NewHTTPProber(cfg.Health.ProbeTimeout)
	aggregator := health.NewAggregator(jobStore, prober, notifier,
		cfg.Health, cfg.Queue.StuckThreshold, appLogger)

	registry := schedule.NewRegistry(scheduleStore, appLogger)
	if err := registerSchedules(ctx, registry, dispatcher, aggregator, jobStore); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &application{
		cfg:    cfg,
		logger: appLogger,
		db:     db,
		driver: schedule.NewDriver(registry, driverInterval, appLogger),
	}, nil
}

// Run starts the schedule driver and blocks until the context is cancelled,
// then shuts the daemon down.
func (a *application) Run(ctx context.Context) error {
	a.logger.Info("presswork daemon starting",
		"queue_workers", a.cfg.Queue.Workers,
		"queue_batch_size", a.cfg.Queue.BatchSize)

	ctx = logger.WithLogger(ctx, a.logger)
	a.driver.Start(ctx)

	<-ctx.Done()

	a.logger.Info("shutdown signal received")
	a.driver.Stop()
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", "error", err)
	}
	a.logger.Info("presswork daemon stopped")
	return nil
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	// Driver errors can echo the DSN back; scrub before the message reaches
	// the fatal log.
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %s", redact.Error(err))
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %s", redact.Error(err))
	}

	return db, nil
}

func runMigrations(db *sql.DB) error {
	goose.SetTableName("schema_migrations")
	goose.SetBaseFS(migrations.FS)

	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// buildHandlers registers a handler for every job type the daemon services.
// Content generation is only wired when a Gemini API key is configured; its
// jobs otherwise archive immediately instead of burning retries.
func buildHandlers(
	ctx context.Context,
	cfg *config.Config,
	jobStore store.JobStore,
	appLogger *slog.Logger,
) (*queue.HandlerRegistry, error) {
	handlers := queue.NewHandlerRegistry()

	if cfg.LLM.GeminiAPIKey != "" {
		generator, err := gemini.NewGenerator(ctx, appLogger, cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("failed to create article generator: %w", err)
		}
		sink := &jobs.LogSink{Logger: appLogger}
		if err := handlers.Register(jobs.NewContentGenerationHandler(generator, sink, appLogger)); err != nil {
			return nil, err
		}
		if err := handlers.Register(jobs.NewSourceFetchHandler(jobStore, sourceFetchTimeout, appLogger)); err != nil {
			return nil, err
		}
	} else {
		appLogger.Warn("no Gemini API key configured, content generation jobs will not be handled")
	}

	optimizer := &jobs.NoopOptimizer{Logger: appLogger}
	if err := handlers.Register(jobs.NewImageOptimizationHandler(optimizer, appLogger)); err != nil {
		return nil, err
	}
	if err := handlers.Register(jobs.NewAnalyticsUpdateHandler(jobStore, appLogger)); err != nil {
		return nil, err
	}

	appLogger.Info("job handlers registered", "job_types", handlers.JobTypes())
	return handlers, nil
}

// registerSchedules arms the daemon's recurring triggers: queue dispatch,
// health checks, and the nightly analytics rollup.
func registerSchedules(
	ctx context.Context,
	registry *schedule.Registry,
	dispatcher *queue.Dispatcher,
	aggregator *health.Aggregator,
	jobStore store.JobStore,
) error {
	if err := registry.Register(ctx, "queue.dispatch",
		schedule.EveryMinute(), dispatcher.Runner()); err != nil {
		return fmt.Errorf("failed to register dispatch schedule: %w", err)
	}

	if err := registry.Register(ctx, "health.check",
		schedule.EveryFifteenMinutes(), aggregator.Runner()); err != nil {
		return fmt.Errorf("failed to register health schedule: %w", err)
	}

	nightly, err := schedule.DailyAt("00:10")
	if err != nil {
		return err
	}
	rollup := func(ctx context.Context) error {
		payload, err := json.Marshal(jobs.AnalyticsUpdatePayload{PeriodDays: 1})
		if err != nil {
			return err
		}
		_, err = jobStore.Push(ctx, domain.JobTypeAnalyticsUpdate,
			payload, store.PushOptions{Unique: true})
		return err
	}
	if err := registry.Register(ctx, "analytics.rollup", nightly, rollup); err != nil {
		return fmt.Errorf("failed to register analytics schedule: %w", err)
	}

	return nil
}
