package repos

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/datakiln/retaildw/internal/domain"
	"github.com/datakiln/retaildw/internal/pkg/dbctx"
	"github.com/datakiln/retaildw/internal/platform/logger"
)

type DimProductRepo interface {
	// Upsert is the SCD1 write path: insert if the stock code is new, otherwise
	// overwrite the mutable attributes in place and bump version_created_at.
	// Returns the surrogate key either way.
	Upsert(dbc dbctx.Context, row *types.DimProduct) (int64, error)
	GetByStockCode(dbc dbctx.Context, stockCode string) (*types.DimProduct, error)
}

type dimProductRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDimProductRepo(db *gorm.DB, baseLog *logger.Logger) DimProductRepo {
	return &dimProductRepo{db: db, log: baseLog.With("repo", "DimProductRepo")}
}

func (r *dimProductRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *dimProductRepo) Upsert(dbc dbctx.Context, row *types.DimProduct) (int64, error) {
	now := time.Now().UTC()
	row.UpdatedAt = now
	if row.VersionCreatedAt == nil {
		row.VersionCreatedAt = &now
	}
	tx := r.handle(dbc).WithContext(dbc.Ctx)
	err := tx.Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "stock_code"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"description",
				"category",
				"subcategory",
				"is_gift",
				"is_active",
				"version_created_at",
				"updated_at",
				"data_source",
			}),
		},
		clause.Returning{Columns: []clause.Column{{Name: "product_key"}}},
	).Create(row).Error
	if err != nil {
		return 0, err
	}
	return row.ProductKey, nil
}

func (r *dimProductRepo) GetByStockCode(dbc dbctx.Context, stockCode string) (*types.DimProduct, error) {
	if stockCode == "" {
		return nil, nil
	}
	var row types.DimProduct
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("stock_code = ?", stockCode).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
