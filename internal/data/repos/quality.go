package repos

import (
	"errors"
	"time"

	"gorm.io/gorm"

	types "github.com/datakiln/retaildw/internal/domain"
	"github.com/datakiln/retaildw/internal/pkg/dbctx"
	"github.com/datakiln/retaildw/internal/platform/logger"
)

type QualityMetricRepo interface {
	CreateMany(dbc dbctx.Context, rows []*types.QualityMetric) ([]*types.QualityMetric, error)
	// LatestPrior returns the most recent metric for (table, metric) measured
	// strictly before the given time, or nil when no history exists.
	LatestPrior(dbc dbctx.Context, table, metricName string, before time.Time) (*types.QualityMetric, error)
	History(dbc dbctx.Context, table, metricName string, since time.Time) ([]*types.QualityMetric, error)
}

type qualityMetricRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQualityMetricRepo(db *gorm.DB, baseLog *logger.Logger) QualityMetricRepo {
	return &qualityMetricRepo{db: db, log: baseLog.With("repo", "QualityMetricRepo")}
}

func (r *qualityMetricRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *qualityMetricRepo) CreateMany(dbc dbctx.Context, rows []*types.QualityMetric) ([]*types.QualityMetric, error) {
	if len(rows) == 0 {
		return rows, nil
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *qualityMetricRepo) LatestPrior(dbc dbctx.Context, table, metricName string, before time.Time) (*types.QualityMetric, error) {
	if table == "" || metricName == "" {
		return nil, nil
	}
	var row types.QualityMetric
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("table_name = ? AND metric_name = ? AND measured_at < ?", table, metricName, before).
		Order("measured_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *qualityMetricRepo) History(dbc dbctx.Context, table, metricName string, since time.Time) ([]*types.QualityMetric, error) {
	var out []*types.QualityMetric
	q := r.handle(dbc).WithContext(dbc.Ctx).Model(&types.QualityMetric{}).
		Where("measured_at >= ?", since)
	if table != "" {
		q = q.Where("table_name = ?", table)
	}
	if metricName != "" {
		q = q.Where("metric_name = ?", metricName)
	}
	err := q.Order("measured_at ASC").Find(&out).Error
	return out, err
}
