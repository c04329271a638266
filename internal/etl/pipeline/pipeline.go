package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/datakiln/retaildw/internal/alerts"
	"github.com/datakiln/retaildw/internal/data/repos"
	types "github.com/datakiln/retaildw/internal/domain"
	"github.com/datakiln/retaildw/internal/etl/cleaning"
	"github.com/datakiln/retaildw/internal/etl/etlerr"
	"github.com/datakiln/retaildw/internal/etl/load"
	"github.com/datakiln/retaildw/internal/etl/quality"
	"github.com/datakiln/retaildw/internal/etl/resolve"
	"github.com/datakiln/retaildw/internal/etl/source"
	"github.com/datakiln/retaildw/internal/etl/transform"
	"github.com/datakiln/retaildw/internal/pkg/dbctx"
	"github.com/datakiln/retaildw/internal/platform/logger"
)

// Pipeline states. RESUMING is the alternate entry into BATCH_PROCESSING when
// a prior checkpoint exists.
type State string

const (
	StateInit            State = "INIT"
	StateExtracting      State = "EXTRACTING"
	StateBatchProcessing State = "BATCH_PROCESSING"
	StateResuming        State = "RESUMING"
	StateFinalizing      State = "FINALIZING"
	StateSuccess         State = "SUCCESS"
	StateFailed          State = "FAILED"
)

const factTable = "fact_sales"

// Runner drives chunk iteration: extract, clean, transform, quality-gate,
// commit, advance checkpoint, repeat. It exclusively owns the Version
// lifecycle. Batches run strictly sequentially within one job.
type Runner struct {
	log *logger.Logger
	db  *gorm.DB

	versions    repos.VersionRepo
	checkpoints repos.CheckpointRepo
	facts       repos.FactSaleRepo
	dates       repos.DimDateRepo
	products    repos.DimProductRepo
	customers   repos.DimCustomerRepo

	qual   *quality.Engine
	loader *load.Manager
	notify alerts.Notifier
}

func NewRunner(
	db *gorm.DB,
	versions repos.VersionRepo,
	checkpoints repos.CheckpointRepo,
	facts repos.FactSaleRepo,
	dates repos.DimDateRepo,
	products repos.DimProductRepo,
	customers repos.DimCustomerRepo,
	qual *quality.Engine,
	loader *load.Manager,
	notify alerts.Notifier,
	baseLog *logger.Logger,
) *Runner {
	if baseLog == nil {
		baseLog = logger.NewNop()
	}
	if notify == nil {
		notify = alerts.NewLogNotifier(baseLog)
	}
	return &Runner{
		log:         baseLog.With("component", "pipeline"),
		db:          db,
		versions:    versions,
		checkpoints: checkpoints,
		facts:       facts,
		dates:       dates,
		products:    products,
		customers:   customers,
		qual:        qual,
		loader:      loader,
		notify:      notify,
	}
}

type runState struct {
	cfg     JobConfig
	rules   []quality.Rule
	version *types.PipelineVersion

	cleaner     *cleaning.Engine
	transformer *transform.Engine
	resolver    resolve.Resolver

	state State

	batchSeq    int64
	batchIDs    []uuid.UUID
	batchScores []float64

	processed int64
	inserted  int64
	rejected  int64

	gateFailures int
}

// Run executes one pipeline run end to end and always finalizes the version
// with a terminal status. The returned version carries the itemized counts
// and the aggregated quality score.
func (r *Runner) Run(ctx context.Context, cfg JobConfig) (*types.PipelineVersion, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	rules, err := quality.LoadRules(cfg.QualityRulesPath)
	if err != nil {
		return nil, err
	}

	rs := &runState{cfg: cfg, rules: rules, state: StateInit}
	log := r.log.With("job_id", cfg.JobID)

	cacheTTL := 30 * time.Minute
	if cfg.CacheTTL != "" {
		if d, perr := time.ParseDuration(cfg.CacheTTL); perr == nil {
			cacheTTL = d
		}
	}
	cache := resolve.NewLookupCache(cfg.CacheCapacity, cacheTTL)
	rs.resolver = resolve.NewResolver(cache, r.dates, r.products, r.customers, log)
	rs.cleaner = cleaning.NewEngine(cleaning.Config{
		DedupStrategy: cfg.DedupStrategy,
		CancelMarker:  cfg.CancelMarker,
	}, log)
	rs.transformer = transform.NewEngine(transform.Config{
		CancelMarker: cfg.CancelMarker,
		DataSource:   cfg.DataSource,
	}, rs.resolver, log)

	version, err := r.versions.Create(dbctx.New(ctx), &types.PipelineVersion{
		JobID:      cfg.JobID,
		JobName:    cfg.JobName,
		SourceFile: cfg.SourcePath,
		FileHash:   fileHash(cfg.SourcePath),
		Status:     types.VersionStatusRunning,
		StartedAt:  time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: create version: %w", err)
	}
	rs.version = version
	log = log.With("version_id", version.ID)

	runErr := r.runBatches(ctx, rs, log)

	final := r.finalize(ctx, rs, runErr, log)
	if runErr != nil {
		return final, runErr
	}
	if final.Status != types.VersionStatusSuccess {
		return final, fmt.Errorf("pipeline: version %s finalized %s", final.ID, final.Status)
	}
	return final, nil
}

func (r *Runner) runBatches(ctx context.Context, rs *runState, log *logger.Logger) error {
	cfg := rs.cfg

	rs.state = StateExtracting
	var startOffset int64
	cp, err := r.checkpoints.Get(dbctx.New(ctx), cfg.JobID)
	if err != nil {
		return &etlerr.FatalError{Op: "load checkpoint", Err: err}
	}
	if cp != nil {
		rs.state = StateResuming
		rs.batchSeq = cp.LastBatchSeq
		startOffset = cp.SourceOffset
		log.Info("resuming from checkpoint",
			"last_batch_seq", cp.LastBatchSeq, "source_offset", cp.SourceOffset)
	}

	src, err := source.Open(cfg.SourcePath, cfg.ChunkSize, startOffset, log)
	if err != nil {
		return &etlerr.FatalError{Op: "open source", Err: err}
	}
	defer func() { _ = src.Close() }()

	for {
		// Cancellation is honored between batches only; a batch in flight
		// either commits or rolls back whole.
		if err := ctx.Err(); err != nil {
			return &etlerr.FatalError{Op: "run canceled", Err: err}
		}

		chunk, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &etlerr.FatalError{Op: "read chunk", Err: err}
		}

		rs.state = StateBatchProcessing
		rs.batchSeq++
		if err := r.processBatch(ctx, rs, chunk, src.Offset(), log); err != nil {
			var gateErr *etlerr.GateError
			if errors.As(err, &gateErr) && cfg.ContinueOnWarn {
				log.Warn("continuing past failed gate", "batch_seq", gateErr.BatchSeq)
				continue
			}
			return err
		}
	}
}

func (r *Runner) processBatch(ctx context.Context, rs *runState, chunk []source.Record, sourceOffset int64, log *logger.Logger) error {
	cfg := rs.cfg
	batchID := uuid.New()
	rs.processed += int64(len(chunk))

	var eval quality.Evaluation
	var facts []*types.FactSale
	var rejects []*types.RejectedRecord

	attempt := func() error {
		cleaned := rs.cleaner.Clean(chunk)
		tr, err := rs.transformer.Transform(ctx, cleaned.Rows)
		if err != nil {
			if etlerr.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		rejects = rejectRows(cfg.JobID, rs.batchSeq, cleaned.Rejects, tr.Rejects)
		facts = make([]*types.FactSale, 0, len(tr.Candidates))
		records := make([]quality.Record, 0, len(tr.Candidates))
		for _, cand := range tr.Candidates {
			facts = append(facts, factRow(cand, batchID, rs.version.ID, cfg.DataSource))
			records = append(records, cand.QualityRecord())
		}

		eval, err = r.qual.Evaluate(dbctx.New(ctx), factTable, batchID, records, rs.rules)
		if err != nil {
			err = etlerr.ClassifyStorage("evaluate quality", err)
			if etlerr.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}

	// A transient failure anywhere in the batch re-attempts the batch from
	// its start. Safe: dimension upserts are idempotent and facts only land
	// when the commit transaction succeeds.
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(attempt, policy); err != nil {
		if etlerr.IsTransient(err) {
			return &etlerr.FatalError{Op: "process batch", Err: err}
		}
		return err
	}

	res, commitErr := r.loader.CommitBatch(ctx, load.Batch{
		JobID:        cfg.JobID,
		Seq:          rs.batchSeq,
		BatchID:      batchID,
		VersionID:    rs.version.ID,
		SourceOffset: sourceOffset,
		Facts:        facts,
	}, eval)

	// The rejects sink lives outside the batch transaction: rejected rows are
	// audited whether or not the valid rows commit.
	_ = r.loader.RecordRejects(ctx, rejects)
	rs.rejected += int64(len(rejects))

	if commitErr != nil {
		if etlerr.IsGateFailure(commitErr) {
			rs.gateFailures++
			r.emit(ctx, alerts.Event{
				Kind:     alerts.KindGateFailure,
				JobID:    cfg.JobID,
				Table:    factTable,
				Severity: quality.SeverityHigh,
				Message:  commitErr.Error(),
				Data:     map[string]any{"batch_seq": rs.batchSeq, "failed_rules": eval.FailedRules},
			})
		}
		return commitErr
	}

	rs.inserted += res.Inserted
	rs.batchIDs = append(rs.batchIDs, batchID)
	rs.batchScores = append(rs.batchScores, eval.Score)

	r.compareHistory(ctx, rs, eval.Metrics, log)
	return nil
}

func (r *Runner) compareHistory(ctx context.Context, rs *runState, metrics []*types.QualityMetric, log *logger.Logger) {
	for _, m := range metrics {
		ev, err := r.qual.CompareToHistory(dbctx.New(ctx), m, rs.cfg.Anomaly)
		if err != nil {
			log.Warn("anomaly comparison failed", "metric", m.MetricName, "error", err)
			continue
		}
		if ev == nil {
			continue
		}
		r.emit(ctx, alerts.Event{
			Kind:     alerts.KindAnomaly,
			JobID:    rs.cfg.JobID,
			Table:    ev.Table,
			Metric:   ev.MetricName,
			Severity: ev.Severity,
			Message:  fmt.Sprintf("quality metric dropped %.2f%%", ev.DropPct*100),
			Data: map[string]any{
				"current":  ev.Current,
				"previous": ev.Previous,
				"drop_pct": ev.DropPct,
			},
		})
	}
}

func (r *Runner) finalize(ctx context.Context, rs *runState, runErr error, log *logger.Logger) *types.PipelineVersion {
	rs.state = StateFinalizing

	// A run with no batches (empty source, or resume past the end) has no
	// violations to report.
	score := 1.0
	if len(rs.batchScores) > 0 {
		score = 0.0
		for _, s := range rs.batchScores {
			score += s
		}
		score /= float64(len(rs.batchScores))
	}

	status := types.VersionStatusSuccess
	if runErr != nil || rs.gateFailures > 0 || score < rs.cfg.QualityThreshold {
		status = types.VersionStatusFailed
	}

	updates := map[string]interface{}{
		"status":            status,
		"records_processed": rs.processed,
		"records_inserted":  rs.inserted,
		"records_rejected":  rs.rejected,
		"quality_score":     score,
	}
	if raw, err := json.Marshal(rs.batchIDs); err == nil {
		updates["batch_ids"] = raw
	}
	if runErr != nil {
		updates["error"] = runErr.Error()
	}
	if err := r.versions.UpdateFields(dbctx.New(ctx), rs.version.ID, updates); err != nil {
		log.Error("failed to finalize version", "error", err)
	}

	if status == types.VersionStatusSuccess {
		rs.state = StateSuccess
	} else {
		rs.state = StateFailed
	}

	stats := rs.resolver.CacheStats()
	log.Info("run finalized",
		"status", status,
		"batches", len(rs.batchIDs),
		"processed", rs.processed,
		"inserted", rs.inserted,
		"rejected", rs.rejected,
		"quality_score", score,
		"cache_hits", stats.Hits,
		"cache_misses", stats.Misses,
		"cache_evictions", stats.Evictions,
	)

	r.emit(ctx, alerts.Event{
		Kind:    alerts.KindRunFinished,
		JobID:   rs.cfg.JobID,
		Message: fmt.Sprintf("version %s finalized %s", rs.version.ID, status),
		Data: map[string]any{
			"status":        status,
			"quality_score": score,
			"inserted":      rs.inserted,
			"rejected":      rs.rejected,
		},
	})

	final, err := r.versions.GetByID(dbctx.New(ctx), rs.version.ID)
	if err != nil || final == nil {
		rs.version.Status = status
		rs.version.QualityScore = score
		return rs.version
	}
	return final
}

func (r *Runner) emit(ctx context.Context, ev alerts.Event) {
	if err := r.notify.Notify(ctx, ev); err != nil {
		r.log.Warn("alert emission failed", "kind", ev.Kind, "error", err)
	}
}

func factRow(cand transform.FactCandidate, batchID, versionID uuid.UUID, dataSource string) *types.FactSale {
	return &types.FactSale{
		DateKey:         cand.DateKey,
		CustomerKey:     cand.CustomerKey,
		ProductKey:      cand.ProductKey,
		InvoiceNo:       cand.InvoiceNo,
		TransactionType: cand.TransactionType,
		Quantity:        cand.Source.Quantity,
		UnitPrice:       cand.Source.UnitPrice,
		LineTotal:       cand.LineTotal,
		TransactionAt:   cand.Source.Timestamp,
		BatchID:         batchID,
		VersionID:       versionID,
		DataSource:      dataSource,
	}
}

func rejectRows(jobID string, batchSeq int64, cleanRejects []cleaning.Reject, transformRejects []transform.Reject) []*types.RejectedRecord {
	out := make([]*types.RejectedRecord, 0, len(cleanRejects)+len(transformRejects))
	for _, rej := range cleanRejects {
		out = append(out, &types.RejectedRecord{
			JobID:    jobID,
			BatchSeq: batchSeq,
			Stage:    "cleaning",
			Reason:   rej.Reason,
			Payload:  rej.RawJSON(),
		})
	}
	for _, rej := range transformRejects {
		raw, _ := json.Marshal(rej.Row)
		out = append(out, &types.RejectedRecord{
			JobID:    jobID,
			BatchSeq: batchSeq,
			Stage:    "transform",
			Reason:   rej.Reason,
			Payload:  raw,
		})
	}
	return out
}

func fileHash(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
