package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// QualityMetric is append-only; rows are never mutated after creation.
type QualityMetric struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	Table  string `gorm:"column:table_name;size:100;not null;index:idx_quality_table_metric,priority:1" json:"table_name"`
	Column string `gorm:"column:column_name;size:100" json:"column_name,omitempty"`

	MetricName     string  `gorm:"column:metric_name;size:100;not null;index:idx_quality_table_metric,priority:2" json:"metric_name"`
	MetricValue    float64 `gorm:"column:metric_value;type:numeric(15,4);not null" json:"metric_value"`
	ThresholdValue float64 `gorm:"column:threshold_value;type:numeric(15,4)" json:"threshold_value"`
	Passed         bool    `gorm:"column:passed;not null" json:"passed"`

	BatchID    uuid.UUID `gorm:"type:uuid;column:batch_id;not null;index" json:"batch_id"`
	MeasuredAt time.Time `gorm:"column:measured_at;not null;default:now();index" json:"measured_at"`

	Details datatypes.JSON `gorm:"column:details;type:jsonb" json:"details,omitempty"`
}

func (QualityMetric) TableName() string { return "data_quality_metric" }

// RejectedRecord is a row diverted out of the pipeline, written to the rejects
// sink outside the batch transaction so it survives a batch rollback.
type RejectedRecord struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	JobID    string `gorm:"column:job_id;size:100;not null;index" json:"job_id"`
	BatchSeq int64  `gorm:"column:batch_seq;not null" json:"batch_seq"`
	Stage    string `gorm:"column:stage;size:30;not null" json:"stage"`
	Reason   string `gorm:"column:reason;size:100;not null;index" json:"reason"`

	Payload datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()" json:"created_at"`
}

func (RejectedRecord) TableName() string { return "rejected_record" }
