package repos

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/datakiln/retaildw/internal/domain"
	"github.com/datakiln/retaildw/internal/pkg/dbctx"
	"github.com/datakiln/retaildw/internal/platform/logger"
)

type DimDateRepo interface {
	// Ensure inserts the date row if absent. Date keys are deterministic, so a
	// lost race is indistinguishable from a pre-existing row.
	Ensure(dbc dbctx.Context, row *types.DimDate) error
}

type dimDateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDimDateRepo(db *gorm.DB, baseLog *logger.Logger) DimDateRepo {
	return &dimDateRepo{db: db, log: baseLog.With("repo", "DimDateRepo")}
}

func (r *dimDateRepo) Ensure(dbc dbctx.Context, row *types.DimDate) error {
	tx := r.db
	if dbc.Tx != nil {
		tx = dbc.Tx
	}
	return tx.WithContext(dbc.Ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date_key"}},
		DoNothing: true,
	}).Create(row).Error
}
