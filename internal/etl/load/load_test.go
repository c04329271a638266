package load

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/datakiln/retaildw/internal/data/repos"
	"github.com/datakiln/retaildw/internal/data/repos/testutil"
	types "github.com/datakiln/retaildw/internal/domain"
	"github.com/datakiln/retaildw/internal/etl/etlerr"
	"github.com/datakiln/retaildw/internal/etl/quality"
	"github.com/datakiln/retaildw/internal/pkg/dbctx"
)

func newTestManager(t *testing.T) (*Manager, *gorm.DB, repos.FactSaleRepo, repos.CheckpointRepo) {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)

	facts := repos.NewFactSaleRepo(tx, log)
	checkpoints := repos.NewCheckpointRepo(tx, log)
	rejects := repos.NewRejectedRecordRepo(tx, log)
	m := NewManager(Config{MaxRetries: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
		tx, facts, checkpoints, rejects, log)
	return m, tx, facts, checkpoints
}

func testBatch(n int) Batch {
	facts := make([]*types.FactSale, 0, n)
	for i := 0; i < n; i++ {
		facts = append(facts, &types.FactSale{
			DateKey:         20101201,
			CustomerKey:     1,
			ProductKey:      1,
			InvoiceNo:       int64(536365 + i),
			TransactionType: "SALE",
			Quantity:        6,
			UnitPrice:       decimal.RequireFromString("2.55"),
			LineTotal:       decimal.RequireFromString("15.30"),
			TransactionAt:   time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC),
			DataSource:      "CSV",
		})
	}
	b := Batch{
		JobID:        "load_test_job",
		Seq:          1,
		BatchID:      uuid.New(),
		VersionID:    uuid.New(),
		SourceOffset: int64(n),
		Facts:        facts,
	}
	for _, f := range facts {
		f.BatchID = b.BatchID
		f.VersionID = b.VersionID
	}
	return b
}

func TestCommitBatchWritesFactsAndCheckpoint(t *testing.T) {
	m, _, facts, checkpoints := newTestManager(t)
	ctx := context.Background()
	batch := testBatch(5)

	res, err := m.CommitBatch(ctx, batch, quality.Evaluation{Decision: quality.Pass})
	if err != nil {
		t.Fatalf("CommitBatch: %v", err)
	}
	if !res.Committed || res.Inserted != 5 {
		t.Fatalf("result: %+v", res)
	}

	count, err := facts.CountByBatch(dbctx.New(ctx), batch.BatchID)
	if err != nil {
		t.Fatalf("CountByBatch: %v", err)
	}
	if count != 5 {
		t.Fatalf("facts written: want=5 got=%d", count)
	}

	cp, err := checkpoints.Get(dbctx.New(ctx), batch.JobID)
	if err != nil {
		t.Fatalf("checkpoint Get: %v", err)
	}
	if cp == nil || cp.LastBatchSeq != 1 || cp.SourceOffset != 5 {
		t.Fatalf("checkpoint should advance with the commit, got %+v", cp)
	}
}

func TestCommitBatchWarnStillCommits(t *testing.T) {
	m, _, facts, _ := newTestManager(t)
	ctx := context.Background()
	batch := testBatch(2)

	res, err := m.CommitBatch(ctx, batch, quality.Evaluation{Decision: quality.Warn, FailedRules: []string{"customer_id_completeness"}})
	if err != nil {
		t.Fatalf("WARN gate should commit: %v", err)
	}
	if !res.Committed {
		t.Fatalf("result: %+v", res)
	}

	count, err := facts.CountByBatch(dbctx.New(ctx), batch.BatchID)
	if err != nil || count != 2 {
		t.Fatalf("facts after WARN: count=%d err=%v", count, err)
	}
}

func TestCommitBatchGateFailureWritesNothing(t *testing.T) {
	m, _, facts, checkpoints := newTestManager(t)
	ctx := context.Background()
	batch := testBatch(3)

	_, err := m.CommitBatch(ctx, batch, quality.Evaluation{
		Decision:    quality.Fail,
		FailedRules: []string{"stock_code_completeness"},
	})
	if !etlerr.IsGateFailure(err) {
		t.Fatalf("expected gate error, got %v", err)
	}

	count, cerr := facts.CountByBatch(dbctx.New(ctx), batch.BatchID)
	if cerr != nil {
		t.Fatalf("CountByBatch: %v", cerr)
	}
	if count != 0 {
		t.Fatalf("failed gate must write no facts, got %d", count)
	}

	cp, cerr := checkpoints.Get(dbctx.New(ctx), batch.JobID)
	if cerr != nil {
		t.Fatalf("checkpoint Get: %v", cerr)
	}
	if cp != nil {
		t.Fatalf("failed gate must not advance the checkpoint, got %+v", cp)
	}
}

func TestRecordRejects(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	rejects := repos.NewRejectedRecordRepo(tx, log)
	m := NewManager(Config{}, tx, repos.NewFactSaleRepo(tx, log), repos.NewCheckpointRepo(tx, log), rejects, log)
	ctx := context.Background()

	rows := []*types.RejectedRecord{
		{JobID: "reject_job", BatchSeq: 1, Stage: "cleaning", Reason: "invalid_invoice_format"},
		{JobID: "reject_job", BatchSeq: 1, Stage: "transform", Reason: "dimension_resolve_failed"},
	}
	if err := m.RecordRejects(ctx, rows); err != nil {
		t.Fatalf("RecordRejects: %v", err)
	}

	count, err := rejects.CountByJob(dbctx.New(ctx), "reject_job")
	if err != nil {
		t.Fatalf("CountByJob: %v", err)
	}
	if count != 2 {
		t.Fatalf("rejects recorded: want=2 got=%d", count)
	}
}
