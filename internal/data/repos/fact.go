package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/datakiln/retaildw/internal/domain"
	"github.com/datakiln/retaildw/internal/pkg/dbctx"
	"github.com/datakiln/retaildw/internal/platform/logger"
)

type FactSaleRepo interface {
	InsertBatch(dbc dbctx.Context, rows []*types.FactSale) error
	CountByVersion(dbc dbctx.Context, versionID uuid.UUID) (int64, error)
	CountByBatch(dbc dbctx.Context, batchID uuid.UUID) (int64, error)
	// DeleteByBatchIDs removes exactly the fact rows tagged with the given
	// batch ids. Used by version rollback.
	DeleteByBatchIDs(dbc dbctx.Context, batchIDs []uuid.UUID) (int64, error)
}

type factSaleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFactSaleRepo(db *gorm.DB, baseLog *logger.Logger) FactSaleRepo {
	return &factSaleRepo{db: db, log: baseLog.With("repo", "FactSaleRepo")}
}

func (r *factSaleRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *factSaleRepo) InsertBatch(dbc dbctx.Context, rows []*types.FactSale) error {
	if len(rows) == 0 {
		return nil
	}
	return r.handle(dbc).WithContext(dbc.Ctx).CreateInBatches(&rows, 500).Error
}

func (r *factSaleRepo) CountByVersion(dbc dbctx.Context, versionID uuid.UUID) (int64, error) {
	var count int64
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&types.FactSale{}).
		Where("version_id = ?", versionID).
		Count(&count).Error
	return count, err
}

func (r *factSaleRepo) CountByBatch(dbc dbctx.Context, batchID uuid.UUID) (int64, error) {
	var count int64
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&types.FactSale{}).
		Where("batch_id = ?", batchID).
		Count(&count).Error
	return count, err
}

func (r *factSaleRepo) DeleteByBatchIDs(dbc dbctx.Context, batchIDs []uuid.UUID) (int64, error) {
	if len(batchIDs) == 0 {
		return 0, nil
	}
	res := r.handle(dbc).WithContext(dbc.Ctx).
		Where("batch_id IN ?", batchIDs).
		Delete(&types.FactSale{})
	return res.RowsAffected, res.Error
}
