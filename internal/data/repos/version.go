package repos

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/datakiln/retaildw/internal/domain"
	"github.com/datakiln/retaildw/internal/pkg/dbctx"
	"github.com/datakiln/retaildw/internal/platform/logger"
)

type VersionRepo interface {
	Create(dbc dbctx.Context, row *types.PipelineVersion) (*types.PipelineVersion, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.PipelineVersion, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	History(dbc dbctx.Context, jobID string, limit int) ([]*types.PipelineVersion, error)
}

type versionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVersionRepo(db *gorm.DB, baseLog *logger.Logger) VersionRepo {
	return &versionRepo{db: db, log: baseLog.With("repo", "VersionRepo")}
}

func (r *versionRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *versionRepo) Create(dbc dbctx.Context, row *types.PipelineVersion) (*types.PipelineVersion, error) {
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *versionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.PipelineVersion, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.PipelineVersion
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("id = ?", id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *versionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["finalized_at"]; !ok {
		switch updates["status"] {
		case types.VersionStatusSuccess, types.VersionStatusFailed, types.VersionStatusRolledBack:
			updates["finalized_at"] = time.Now().UTC()
		}
	}
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&types.PipelineVersion{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *versionRepo) History(dbc dbctx.Context, jobID string, limit int) ([]*types.PipelineVersion, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.handle(dbc).WithContext(dbc.Ctx).Model(&types.PipelineVersion{})
	if jobID != "" {
		q = q.Where("job_id = ?", jobID)
	}
	var out []*types.PipelineVersion
	err := q.Order("started_at DESC").Limit(limit).Find(&out).Error
	return out, err
}
