package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	VersionStatusRunning    = "RUNNING"
	VersionStatusSuccess    = "SUCCESS"
	VersionStatusFailed     = "FAILED"
	VersionStatusRolledBack = "ROLLED_BACK"
)

// PipelineVersion is created once per run (status RUNNING) and finalized at
// job end. Immutable after finalization except for explicit rollback.
type PipelineVersion struct {
	ID      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	JobID   string    `gorm:"column:job_id;size:100;not null;index" json:"job_id"`
	JobName string    `gorm:"column:job_name;size:100;not null" json:"job_name"`

	SourceFile string `gorm:"column:source_file;size:500" json:"source_file,omitempty"`
	FileHash   string `gorm:"column:file_hash;size:64" json:"file_hash,omitempty"`

	Status string `gorm:"column:status;size:20;not null;index" json:"status"`

	RecordsProcessed int64   `gorm:"column:records_processed;not null;default:0" json:"records_processed"`
	RecordsInserted  int64   `gorm:"column:records_inserted;not null;default:0" json:"records_inserted"`
	RecordsRejected  int64   `gorm:"column:records_rejected;not null;default:0" json:"records_rejected"`
	QualityScore     float64 `gorm:"column:quality_score;not null;default:0" json:"quality_score"`

	// Batch ids owned by this version, as a JSON array of uuids.
	BatchIDs datatypes.JSON `gorm:"column:batch_ids;type:jsonb" json:"batch_ids,omitempty"`

	Error string `gorm:"column:error;type:text" json:"error,omitempty"`

	StartedAt   time.Time  `gorm:"column:started_at;not null;default:now();index" json:"started_at"`
	FinalizedAt *time.Time `gorm:"column:finalized_at" json:"finalized_at,omitempty"`
}

func (PipelineVersion) TableName() string { return "pipeline_version" }

// PipelineCheckpoint records the last fully committed batch for a job.
// Advanced only after a batch commit succeeds; never reflects a partial batch.
type PipelineCheckpoint struct {
	JobID        string `gorm:"column:job_id;size:100;primaryKey" json:"job_id"`
	LastBatchSeq int64  `gorm:"column:last_batch_seq;not null;default:0" json:"last_batch_seq"`
	SourceOffset int64  `gorm:"column:source_offset;not null;default:0" json:"source_offset"`

	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now()" json:"updated_at"`
}

func (PipelineCheckpoint) TableName() string { return "pipeline_checkpoint" }

const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

// PipelineJob is the durable bookkeeping row for one submitted job. Claiming,
// heartbeats, and stale-running recovery operate on these rows.
type PipelineJob struct {
	ID      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	JobID   string    `gorm:"column:job_id;size:100;not null;index" json:"job_id"`
	JobType string    `gorm:"column:job_type;size:50;not null;index" json:"job_type"`

	Status   string `gorm:"column:status;size:20;not null;index" json:"status"`
	Attempts int    `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Error    string `gorm:"column:error;type:text" json:"error,omitempty"`

	LockedAt    *time.Time `gorm:"column:locked_at" json:"locked_at,omitempty"`
	HeartbeatAt *time.Time `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	LastErrorAt *time.Time `gorm:"column:last_error_at" json:"last_error_at,omitempty"`

	Payload datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload,omitempty"`
	Result  datatypes.JSON `gorm:"column:result;type:jsonb" json:"result,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now()" json:"updated_at"`
}

func (PipelineJob) TableName() string { return "pipeline_job" }
