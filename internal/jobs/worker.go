package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/datakiln/retaildw/internal/data/repos"
	types "github.com/datakiln/retaildw/internal/domain"
	"github.com/datakiln/retaildw/internal/pkg/dbctx"
	"github.com/datakiln/retaildw/internal/platform/logger"
)

type WorkerConfig struct {
	Concurrency       int
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	MaxAttempts       int
	RetryDelay        time.Duration
	// StaleRunning is how long a running job may go without a heartbeat
	// before another worker may reclaim it.
	StaleRunning time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.Concurrency < 1 {
		c.Concurrency = 2
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 15 * time.Second
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 30 * time.Second
	}
	if c.StaleRunning <= 0 {
		c.StaleRunning = 10 * time.Minute
	}
	return c
}

// Worker claims queued pipeline jobs and dispatches them to registered
// handlers. Claiming uses SKIP LOCKED so several workers can poll the same
// table without double-running a job.
type Worker struct {
	cfg      WorkerConfig
	log      *logger.Logger
	repo     repos.PipelineJobRepo
	registry *Registry
}

func NewWorker(repo repos.PipelineJobRepo, registry *Registry, cfg WorkerConfig, baseLog *logger.Logger) *Worker {
	if baseLog == nil {
		baseLog = logger.NewNop()
	}
	return &Worker{
		cfg:      cfg.withDefaults(),
		log:      baseLog.With("component", "worker"),
		repo:     repo,
		registry: registry,
	}
}

// Start runs the worker pool until ctx is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.log.Info("starting worker pool", "concurrency", w.cfg.Concurrency)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		g.Go(func() error {
			w.runLoop(ctx, workerID)
			return nil
		})
	}
	return g.Wait()
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	log := w.log.With("worker_id", workerID)
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("worker loop stopped")
			return
		case <-ticker.C:
			job, err := w.repo.ClaimNextRunnable(dbctx.New(ctx), w.cfg.MaxAttempts, w.cfg.RetryDelay, w.cfg.StaleRunning)
			if err != nil {
				log.Warn("claim failed", "error", err)
				continue
			}
			if job == nil {
				continue
			}
			w.execute(ctx, log, job)
		}
	}
}

func (w *Worker) execute(ctx context.Context, log *logger.Logger, job *types.PipelineJob) {
	log = log.With("job_type", job.JobType, "job_run_id", job.ID)

	h, ok := w.registry.Get(job.JobType)
	if !ok {
		log.Warn("no handler registered for job_type")
		w.fail(ctx, job, fmt.Errorf("no handler registered for job_type=%s", job.JobType))
		return
	}

	hbCtx, stopHB := context.WithCancel(ctx)
	go w.heartbeatLoop(hbCtx, job.ID)
	defer stopHB()

	var result map[string]any
	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("job handler panic", "panic", r)
				runErr = fmt.Errorf("panic: %v", r)
			}
		}()
		result, runErr = h.Run(ctx, job)
	}()

	if runErr != nil {
		log.Warn("job failed", "error", runErr)
		w.fail(ctx, job, runErr)
		return
	}

	updates := map[string]interface{}{
		"status": types.JobStatusSucceeded,
		"error":  "",
	}
	if result != nil {
		if raw, err := json.Marshal(result); err == nil {
			updates["result"] = raw
		}
	}
	if err := w.repo.UpdateFields(dbctx.New(ctx), job.ID, updates); err != nil {
		log.Error("failed to mark job succeeded", "error", err)
		return
	}
	log.Info("job succeeded")
}

func (w *Worker) fail(ctx context.Context, job *types.PipelineJob, cause error) {
	now := time.Now().UTC()
	err := w.repo.UpdateFields(dbctx.New(ctx), job.ID, map[string]interface{}{
		"status":        types.JobStatusFailed,
		"error":         cause.Error(),
		"last_error_at": now,
	})
	if err != nil {
		w.log.Error("failed to mark job failed", "job_run_id", job.ID, "error", err)
	}
}

func (w *Worker) heartbeatLoop(ctx context.Context, id uuid.UUID) {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.repo.Heartbeat(dbctx.New(ctx), id); err != nil {
				w.log.Warn("heartbeat failed", "job_run_id", id, "error", err)
			}
		}
	}
}
