package quality

import (
	"fmt"

	types "github.com/datakiln/retaildw/internal/domain"
	"github.com/datakiln/retaildw/internal/pkg/dbctx"
)

const (
	SeverityHigh   = "HIGH"
	SeverityMedium = "MEDIUM"
)

// AnomalyEvent flags a significant relative drop in a quality metric against
// its most recent prior value. Derived data; never persisted as input.
type AnomalyEvent struct {
	Table      string
	MetricName string
	Current    float64
	Previous   float64
	DropPct    float64
	Severity   string
}

// AnomalyConfig holds the severity cutoffs for the relative drop. Tunable
// configuration, not load-bearing constants.
type AnomalyConfig struct {
	HighCutoff   float64 `yaml:"high_cutoff" json:"high_cutoff"`
	MediumCutoff float64 `yaml:"medium_cutoff" json:"medium_cutoff"`
}

func (c AnomalyConfig) withDefaults() AnomalyConfig {
	if c.HighCutoff == 0 {
		c.HighCutoff = 0.20
	}
	if c.MediumCutoff == 0 {
		c.MediumCutoff = 0.10
	}
	return c
}

// CompareToHistory compares a freshly written metric to the most recent prior
// metric for the same (table, metric). Returns nil when there is no prior
// metric or the drop stays under the medium cutoff.
func (e *Engine) CompareToHistory(dbc dbctx.Context, metric *types.QualityMetric, cfg AnomalyConfig) (*AnomalyEvent, error) {
	cfg = cfg.withDefaults()
	prior, err := e.metrics.LatestPrior(dbc, metric.Table, metric.MetricName, metric.MeasuredAt)
	if err != nil {
		return nil, fmt.Errorf("quality: load prior metric: %w", err)
	}
	if prior == nil || prior.MetricValue <= 0 {
		return nil, nil
	}

	drop := (prior.MetricValue - metric.MetricValue) / prior.MetricValue
	if drop < cfg.MediumCutoff {
		return nil, nil
	}
	severity := SeverityMedium
	if drop >= cfg.HighCutoff {
		severity = SeverityHigh
	}
	return &AnomalyEvent{
		Table:      metric.Table,
		MetricName: metric.MetricName,
		Current:    metric.MetricValue,
		Previous:   prior.MetricValue,
		DropPct:    drop,
		Severity:   severity,
	}, nil
}
