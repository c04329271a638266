package quality

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/datakiln/retaildw/internal/data/repos"
	types "github.com/datakiln/retaildw/internal/domain"
	"github.com/datakiln/retaildw/internal/etl/transform"
	"github.com/datakiln/retaildw/internal/pkg/dbctx"
	"github.com/datakiln/retaildw/internal/platform/logger"
)

// Decision is the gate outcome for a batch.
type Decision int

const (
	Pass Decision = iota
	Warn
	Fail
)

func (d Decision) String() string {
	switch d {
	case Pass:
		return "PASS"
	case Warn:
		return "WARN"
	default:
		return "FAIL"
	}
}

// Named record checks usable from rule config.
const (
	CheckPositiveInt        = "positive_int"
	CheckNonNegativeDecimal = "non_negative_decimal"
	CheckDateKey            = "date_key"
	CheckLineTotal          = "line_total"
	CheckKnownClass         = "known_transaction_type"
)

// Record is one evaluated row as a generic column map.
type Record = map[string]any

type Evaluation struct {
	Metrics  []*types.QualityMetric
	Decision Decision
	// FailedRules lists rule names that missed their thresholds.
	FailedRules []string
	// Score is the mean metric value, used for the job-level aggregate.
	Score float64
}

// Engine computes quality metrics and gate decisions. It exclusively owns
// QualityMetric creation; metrics are append-only once written.
type Engine struct {
	log     *logger.Logger
	metrics repos.QualityMetricRepo
}

func NewEngine(metrics repos.QualityMetricRepo, baseLog *logger.Logger) *Engine {
	if baseLog == nil {
		baseLog = logger.NewNop()
	}
	return &Engine{log: baseLog.With("component", "quality"), metrics: metrics}
}

// Evaluate scores one batch against the configured rules, persists the
// metrics, and returns the gate decision: any critical rule failing is FAIL,
// any other failure WARN, otherwise PASS.
func (e *Engine) Evaluate(dbc dbctx.Context, table string, batchID uuid.UUID, records []Record, rules []Rule) (Evaluation, error) {
	out := Evaluation{Decision: Pass}
	now := time.Now().UTC()

	var sum float64
	var scored int
	for _, rule := range rules {
		if !rule.enabled() || rule.Table != table {
			continue
		}
		value, err := e.ratio(rule, records)
		if err != nil {
			return out, err
		}
		passed := value >= rule.Threshold
		out.Metrics = append(out.Metrics, &types.QualityMetric{
			Table:          table,
			Column:         rule.Column,
			MetricName:     rule.Name,
			MetricValue:    value,
			ThresholdValue: rule.Threshold,
			Passed:         passed,
			BatchID:        batchID,
			MeasuredAt:     now,
		})
		sum += value
		scored++
		if !passed {
			out.FailedRules = append(out.FailedRules, rule.Name)
			if rule.Critical {
				out.Decision = Fail
			} else if out.Decision == Pass {
				out.Decision = Warn
			}
		}
	}
	if scored > 0 {
		out.Score = sum / float64(scored)
	}

	if _, err := e.metrics.CreateMany(dbc, out.Metrics); err != nil {
		return out, fmt.Errorf("quality: persist metrics: %w", err)
	}
	if out.Decision != Pass {
		e.log.Warn("quality gate not clean",
			"table", table, "batch_id", batchID,
			"decision", out.Decision.String(),
			"failed_rules", strings.Join(out.FailedRules, ","),
		)
	}
	return out, nil
}

func (e *Engine) ratio(rule Rule, records []Record) (float64, error) {
	if len(records) == 0 {
		return 1.0, nil
	}
	switch rule.Kind {
	case Completeness:
		return ratioOf(records, func(r Record) bool { return present(r[rule.Column]) }), nil
	case Validity, Accuracy, Consistency:
		check, ok := checks[rule.Check]
		if !ok {
			return 0, fmt.Errorf("quality: rule %s references unknown check %q", rule.Name, rule.Check)
		}
		return ratioOf(records, func(r Record) bool { return check(r, rule.Column) }), nil
	case Uniqueness:
		cols := rule.Columns
		if len(cols) == 0 && rule.Column != "" {
			cols = []string{rule.Column}
		}
		return uniquenessRatio(records, cols), nil
	default:
		return 0, fmt.Errorf("quality: rule %s has unknown kind %q", rule.Name, rule.Kind)
	}
}

func ratioOf(records []Record, ok func(Record) bool) float64 {
	good := 0
	for _, r := range records {
		if ok(r) {
			good++
		}
	}
	return float64(good) / float64(len(records))
}

func uniquenessRatio(records []Record, cols []string) float64 {
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		parts := make([]string, len(cols))
		for i, c := range cols {
			parts[i] = fmt.Sprint(r[c])
		}
		seen[strings.Join(parts, "|")] = true
	}
	return float64(len(seen)) / float64(len(records))
}

func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	default:
		return true
	}
}

var checks = map[string]func(Record, string) bool{
	CheckPositiveInt: func(r Record, col string) bool {
		n, ok := r[col].(int)
		return ok && n > 0
	},
	CheckNonNegativeDecimal: func(r Record, col string) bool {
		d, ok := r[col].(decimal.Decimal)
		return ok && !d.IsNegative()
	},
	CheckDateKey: func(r Record, col string) bool {
		n, ok := r[col].(int)
		return ok && n >= 19000101 && n <= 29991231
	},
	CheckLineTotal: func(r Record, _ string) bool {
		qty, okQ := r["quantity"].(int)
		price, okP := r["unit_price"].(decimal.Decimal)
		total, okT := r["line_total"].(decimal.Decimal)
		if !okQ || !okP || !okT {
			return false
		}
		return price.Mul(decimal.NewFromInt(int64(qty))).Round(2).Equal(total)
	},
	CheckKnownClass: func(r Record, col string) bool {
		class, ok := r[col].(string)
		return ok && transform.KnownClass(class)
	},
}
