package load

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/datakiln/retaildw/internal/data/repos"
	types "github.com/datakiln/retaildw/internal/domain"
	"github.com/datakiln/retaildw/internal/etl/etlerr"
	"github.com/datakiln/retaildw/internal/etl/quality"
	"github.com/datakiln/retaildw/internal/pkg/dbctx"
	"github.com/datakiln/retaildw/internal/platform/logger"
)

// Batch is the unit of transactional commit.
type Batch struct {
	JobID        string
	Seq          int64
	BatchID      uuid.UUID
	VersionID    uuid.UUID
	SourceOffset int64
	Facts        []*types.FactSale
}

type Result struct {
	BatchID   uuid.UUID
	Seq       int64
	Inserted  int64
	Attempts  int
	Committed bool
}

type Config struct {
	// MaxRetries bounds re-attempts of a batch commit on transient storage
	// errors. The whole batch is retried from its start; safe because the
	// commit is all-or-nothing.
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.InitialInterval == 0 {
		c.InitialInterval = 500 * time.Millisecond
	}
	if c.MaxInterval == 0 {
		c.MaxInterval = 10 * time.Second
	}
	return c
}

// Manager exclusively owns FactRow and Checkpoint writes.
type Manager struct {
	cfg         Config
	log         *logger.Logger
	db          *gorm.DB
	facts       repos.FactSaleRepo
	checkpoints repos.CheckpointRepo
	rejects     repos.RejectedRecordRepo
}

func NewManager(
	cfg Config,
	db *gorm.DB,
	facts repos.FactSaleRepo,
	checkpoints repos.CheckpointRepo,
	rejects repos.RejectedRecordRepo,
	baseLog *logger.Logger,
) *Manager {
	if baseLog == nil {
		baseLog = logger.NewNop()
	}
	return &Manager{
		cfg:         cfg.withDefaults(),
		log:         baseLog.With("component", "load"),
		db:          db,
		facts:       facts,
		checkpoints: checkpoints,
		rejects:     rejects,
	}
}

// CommitBatch writes the batch's fact rows and advances the checkpoint inside
// one transaction. A FAIL gate writes nothing and surfaces a GateError; a
// transient storage failure rolls the transaction back and re-attempts the
// batch under bounded exponential backoff.
func (m *Manager) CommitBatch(ctx context.Context, batch Batch, gate quality.Evaluation) (Result, error) {
	res := Result{BatchID: batch.BatchID, Seq: batch.Seq}

	if gate.Decision == quality.Fail {
		m.log.Warn("gate failed, rolling batch back",
			"job_id", batch.JobID, "batch_seq", batch.Seq, "failed_rules", gate.FailedRules)
		return res, &etlerr.GateError{BatchSeq: batch.Seq, FailedRules: gate.FailedRules}
	}

	attempt := func() error {
		res.Attempts++
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			dbc := dbctx.WithTx(ctx, tx)
			if err := m.facts.InsertBatch(dbc, batch.Facts); err != nil {
				return err
			}
			return m.checkpoints.Advance(dbc, batch.JobID, batch.Seq, batch.SourceOffset)
		})
		if err == nil {
			return nil
		}
		err = etlerr.ClassifyStorage("commit batch", err)
		if etlerr.IsTransient(err) {
			m.log.Warn("transient commit failure, will retry",
				"job_id", batch.JobID, "batch_seq", batch.Seq, "attempt", res.Attempts, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = m.cfg.InitialInterval
	policy.MaxInterval = m.cfg.MaxInterval
	err := backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(policy, m.cfg.MaxRetries), ctx))
	if err != nil {
		if etlerr.IsTransient(err) {
			// Retry budget exhausted; the checkpoint still points at the last
			// good batch for manual resume.
			return res, &etlerr.FatalError{Op: "commit batch", Err: err}
		}
		return res, err
	}

	res.Inserted = int64(len(batch.Facts))
	res.Committed = true
	m.log.Info("batch committed",
		"job_id", batch.JobID, "batch_seq", batch.Seq,
		"rows", res.Inserted, "attempts", res.Attempts)
	return res, nil
}

// RecordRejects writes rejected rows to the rejects sink outside the batch
// transaction, so an eventual batch rollback does not erase the audit trail.
func (m *Manager) RecordRejects(ctx context.Context, rows []*types.RejectedRecord) error {
	if len(rows) == 0 {
		return nil
	}
	if err := m.rejects.CreateMany(dbctx.New(ctx), rows); err != nil {
		// Reject bookkeeping must not block the valid rows.
		m.log.Error("failed to record rejects", "count", len(rows), "error", err)
		return err
	}
	return nil
}
