package repos

import (
	"gorm.io/gorm"

	types "github.com/datakiln/retaildw/internal/domain"
	"github.com/datakiln/retaildw/internal/pkg/dbctx"
	"github.com/datakiln/retaildw/internal/platform/logger"
)

type RejectedRecordRepo interface {
	CreateMany(dbc dbctx.Context, rows []*types.RejectedRecord) error
	CountByJob(dbc dbctx.Context, jobID string) (int64, error)
}

type rejectedRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRejectedRecordRepo(db *gorm.DB, baseLog *logger.Logger) RejectedRecordRepo {
	return &rejectedRecordRepo{db: db, log: baseLog.With("repo", "RejectedRecordRepo")}
}

func (r *rejectedRecordRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *rejectedRecordRepo) CreateMany(dbc dbctx.Context, rows []*types.RejectedRecord) error {
	if len(rows) == 0 {
		return nil
	}
	return r.handle(dbc).WithContext(dbc.Ctx).CreateInBatches(&rows, 500).Error
}

func (r *rejectedRecordRepo) CountByJob(dbc dbctx.Context, jobID string) (int64, error) {
	var count int64
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&types.RejectedRecord{}).
		Where("job_id = ?", jobID).
		Count(&count).Error
	return count, err
}
