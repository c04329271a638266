package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/datakiln/retaildw/internal/alerts"
	"github.com/datakiln/retaildw/internal/data/db"
	"github.com/datakiln/retaildw/internal/etl/load"
	"github.com/datakiln/retaildw/internal/etl/pipeline"
	"github.com/datakiln/retaildw/internal/etl/quality"
	"github.com/datakiln/retaildw/internal/jobs"
	"github.com/datakiln/retaildw/internal/platform/envutil"
	"github.com/datakiln/retaildw/internal/platform/logger"
)

// App wires the warehouse connection, repositories, the pipeline runner and
// the background worker into one process.
type App struct {
	Log    *logger.Logger
	DB     *gorm.DB
	Cfg    Config
	Repos  Repos
	Runner *pipeline.Runner
	Worker *jobs.Worker
	Notify alerts.Notifier

	cancel context.CancelFunc
}

func New() (*App, error) {
	logMode := envutil.String("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg := LoadConfig(log)

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, err
	}
	theDB := pg.DB()

	reposet := wireRepos(theDB, log)

	notify := wireNotifier(cfg, log)

	qualityEngine := quality.NewEngine(reposet.Metrics, log)
	loader := load.NewManager(load.Config{
		MaxRetries:      cfg.CommitMaxRetries,
		InitialInterval: cfg.CommitInitialInterval,
		MaxInterval:     cfg.CommitMaxInterval,
	}, theDB, reposet.Facts, reposet.Checkpoints, reposet.Rejects, log)

	runner := pipeline.NewRunner(
		theDB,
		reposet.Versions,
		reposet.Checkpoints,
		reposet.Facts,
		reposet.Dates,
		reposet.Products,
		reposet.Customers,
		qualityEngine,
		loader,
		notify,
		log,
	)

	registry := jobs.NewRegistry()
	if err := registry.Register(jobs.NewPipelineRunHandler(runner, log)); err != nil {
		log.Sync()
		return nil, err
	}
	worker := jobs.NewWorker(reposet.Jobs, registry, jobs.WorkerConfig{
		Concurrency:       cfg.WorkerConcurrency,
		PollInterval:      cfg.WorkerPollInterval,
		HeartbeatInterval: cfg.WorkerHeartbeatInterval,
		MaxAttempts:       cfg.WorkerMaxAttempts,
		RetryDelay:        cfg.WorkerRetryDelay,
		StaleRunning:      cfg.WorkerStaleRunning,
	}, log)

	return &App{
		Log:    log,
		DB:     theDB,
		Cfg:    cfg,
		Repos:  reposet,
		Runner: runner,
		Worker: worker,
		Notify: notify,
	}, nil
}

func wireNotifier(cfg Config, log *logger.Logger) alerts.Notifier {
	logSink := alerts.NewLogNotifier(log)
	if cfg.RedisAddr == "" {
		return logSink
	}
	bus, err := alerts.NewRedisBus(cfg.RedisAddr, cfg.AlertChannel, log)
	if err != nil {
		log.Warn("redis alert bus unavailable, falling back to log sink", "error", err)
		return logSink
	}
	return alerts.NewMulti(logSink, bus)
}

// StartWorker runs the background worker pool until Close is called.
func (a *App) StartWorker() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	go func() {
		if err := a.Worker.Start(ctx); err != nil {
			a.Log.Error("worker pool exited", "error", err)
		}
	}()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
