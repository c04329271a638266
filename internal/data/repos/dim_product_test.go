package repos

import (
	"context"
	"testing"
	"time"

	"github.com/datakiln/retaildw/internal/data/repos/testutil"
	types "github.com/datakiln/retaildw/internal/domain"
	"github.com/datakiln/retaildw/internal/pkg/dbctx"
)

func TestDimProductUpsertOverwritesInPlace(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewDimProductRepo(db, testutil.Logger(t))
	dbc := dbctx.WithTx(context.Background(), tx)

	now := time.Now().UTC()
	key1, err := repo.Upsert(dbc, &types.DimProduct{
		StockCode:        "85123A",
		Description:      "White Hanging Heart",
		Category:         "Uncategorized",
		Subcategory:      "General",
		IsActive:         true,
		VersionCreatedAt: &now,
		DataSource:       "CSV",
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if key1 == 0 {
		t.Fatalf("surrogate key should be assigned")
	}

	later := now.Add(time.Hour)
	key2, err := repo.Upsert(dbc, &types.DimProduct{
		StockCode:        "85123A",
		Description:      "White Hanging Heart T-Light Holder",
		Category:         "Decor",
		Subcategory:      "Hanging",
		IsActive:         true,
		VersionCreatedAt: &later,
		DataSource:       "CSV",
	})
	if err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	if key2 != key1 {
		t.Fatalf("SCD1 upsert must keep the surrogate key: first=%d second=%d", key1, key2)
	}

	got, err := repo.GetByStockCode(dbc, "85123A")
	if err != nil {
		t.Fatalf("GetByStockCode: %v", err)
	}
	if got.Description != "White Hanging Heart T-Light Holder" || got.Category != "Decor" {
		t.Fatalf("attributes should be overwritten, got %+v", got)
	}
}

func TestDimProductGetMissing(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewDimProductRepo(db, testutil.Logger(t))
	dbc := dbctx.WithTx(context.Background(), tx)

	got, err := repo.GetByStockCode(dbc, "NO_SUCH_CODE")
	if err != nil {
		t.Fatalf("GetByStockCode: %v", err)
	}
	if got != nil {
		t.Fatalf("missing product should yield nil, got %+v", got)
	}
}
