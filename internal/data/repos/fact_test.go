package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/datakiln/retaildw/internal/data/repos/testutil"
	types "github.com/datakiln/retaildw/internal/domain"
	"github.com/datakiln/retaildw/internal/pkg/dbctx"
)

func factRows(batchID, versionID uuid.UUID, n int) []*types.FactSale {
	out := make([]*types.FactSale, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &types.FactSale{
			DateKey:         20101201,
			CustomerKey:     1,
			ProductKey:      1,
			InvoiceNo:       int64(536365 + i),
			TransactionType: "SALE",
			Quantity:        6,
			UnitPrice:       decimal.RequireFromString("2.55"),
			LineTotal:       decimal.RequireFromString("15.30"),
			TransactionAt:   time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC),
			BatchID:         batchID,
			VersionID:       versionID,
			DataSource:      "CSV",
		})
	}
	return out
}

func TestFactInsertAndCount(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewFactSaleRepo(db, testutil.Logger(t))
	dbc := dbctx.WithTx(context.Background(), tx)

	batchID := uuid.New()
	versionID := uuid.New()
	if err := repo.InsertBatch(dbc, factRows(batchID, versionID, 10)); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}

	byBatch, err := repo.CountByBatch(dbc, batchID)
	if err != nil {
		t.Fatalf("CountByBatch: %v", err)
	}
	if byBatch != 10 {
		t.Fatalf("count by batch: want=10 got=%d", byBatch)
	}

	byVersion, err := repo.CountByVersion(dbc, versionID)
	if err != nil {
		t.Fatalf("CountByVersion: %v", err)
	}
	if byVersion != 10 {
		t.Fatalf("count by version: want=10 got=%d", byVersion)
	}
}

func TestFactDeleteByBatchIDs(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewFactSaleRepo(db, testutil.Logger(t))
	dbc := dbctx.WithTx(context.Background(), tx)

	versionID := uuid.New()
	batchA := uuid.New()
	batchB := uuid.New()
	keep := uuid.New()

	if err := repo.InsertBatch(dbc, factRows(batchA, versionID, 3)); err != nil {
		t.Fatalf("InsertBatch A: %v", err)
	}
	if err := repo.InsertBatch(dbc, factRows(batchB, versionID, 4)); err != nil {
		t.Fatalf("InsertBatch B: %v", err)
	}
	if err := repo.InsertBatch(dbc, factRows(keep, uuid.New(), 2)); err != nil {
		t.Fatalf("InsertBatch keep: %v", err)
	}

	removed, err := repo.DeleteByBatchIDs(dbc, []uuid.UUID{batchA, batchB})
	if err != nil {
		t.Fatalf("DeleteByBatchIDs: %v", err)
	}
	if removed != 7 {
		t.Fatalf("removed: want=7 got=%d", removed)
	}

	left, err := repo.CountByBatch(dbc, keep)
	if err != nil {
		t.Fatalf("CountByBatch: %v", err)
	}
	if left != 2 {
		t.Fatalf("unrelated batch must survive, got %d", left)
	}
}

func TestFactInsertEmptyBatch(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewFactSaleRepo(db, testutil.Logger(t))
	dbc := dbctx.WithTx(context.Background(), tx)

	if err := repo.InsertBatch(dbc, nil); err != nil {
		t.Fatalf("empty batch should be a no-op: %v", err)
	}
}
