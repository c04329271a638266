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

type CheckpointRepo interface {
	Get(dbc dbctx.Context, jobID string) (*types.PipelineCheckpoint, error)
	// Advance upserts the checkpoint for a job. Called inside the same
	// transaction that commits the batch, so the checkpoint never points past
	// uncommitted work.
	Advance(dbc dbctx.Context, jobID string, batchSeq int64, sourceOffset int64) error
	Clear(dbc dbctx.Context, jobID string) error
}

type checkpointRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCheckpointRepo(db *gorm.DB, baseLog *logger.Logger) CheckpointRepo {
	return &checkpointRepo{db: db, log: baseLog.With("repo", "CheckpointRepo")}
}

func (r *checkpointRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *checkpointRepo) Get(dbc dbctx.Context, jobID string) (*types.PipelineCheckpoint, error) {
	if jobID == "" {
		return nil, nil
	}
	var row types.PipelineCheckpoint
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("job_id = ?", jobID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *checkpointRepo) Advance(dbc dbctx.Context, jobID string, batchSeq int64, sourceOffset int64) error {
	row := &types.PipelineCheckpoint{
		JobID:        jobID,
		LastBatchSeq: batchSeq,
		SourceOffset: sourceOffset,
		UpdatedAt:    time.Now().UTC(),
	}
	return r.handle(dbc).WithContext(dbc.Ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_batch_seq", "source_offset", "updated_at"}),
	}).Create(row).Error
}

func (r *checkpointRepo) Clear(dbc dbctx.Context, jobID string) error {
	if jobID == "" {
		return nil
	}
	return r.handle(dbc).WithContext(dbc.Ctx).
		Where("job_id = ?", jobID).
		Delete(&types.PipelineCheckpoint{}).Error
}
