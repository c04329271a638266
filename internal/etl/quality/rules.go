package quality

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type MetricKind string

const (
	Completeness MetricKind = "completeness"
	Validity     MetricKind = "validity"
	Uniqueness   MetricKind = "uniqueness"
	Accuracy     MetricKind = "accuracy"
	Consistency  MetricKind = "consistency"
)

// Rule is one configured quality rule evaluated against a scope. The ratio it
// produces lives in [0,1] and passes when value >= threshold.
type Rule struct {
	Name      string     `yaml:"name"`
	Kind      MetricKind `yaml:"kind"`
	Table     string     `yaml:"table"`
	Column    string     `yaml:"column,omitempty"`
	Columns   []string   `yaml:"columns,omitempty"`
	Check     string     `yaml:"check,omitempty"`
	Threshold float64    `yaml:"threshold"`
	Critical  bool       `yaml:"critical,omitempty"`
	Enabled   *bool      `yaml:"enabled,omitempty"`
}

func (r Rule) enabled() bool { return r.Enabled == nil || *r.Enabled }

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads a YAML rule set. Path "" yields the defaults.
func LoadRules(path string) ([]Rule, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("quality: read rules %s: %w", path, err)
	}
	var f rulesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("quality: parse rules %s: %w", path, err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("quality: rules file %s defines no rules", path)
	}
	for i, r := range f.Rules {
		if r.Name == "" || r.Kind == "" || r.Table == "" {
			return nil, fmt.Errorf("quality: rule %d needs name, kind and table", i)
		}
	}
	return f.Rules, nil
}

// DefaultRules carries the stock thresholds for the retail fact batch. These
// are tunable configuration, not load-bearing constants.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "customer_id_completeness", Kind: Completeness, Table: "fact_sales", Column: "customer_id", Threshold: 0.80},
		{Name: "description_completeness", Kind: Completeness, Table: "fact_sales", Column: "description", Threshold: 0.90},
		{Name: "stock_code_completeness", Kind: Completeness, Table: "fact_sales", Column: "stock_code", Threshold: 1.00, Critical: true},
		{Name: "quantity_validity", Kind: Validity, Table: "fact_sales", Column: "quantity", Check: CheckPositiveInt, Threshold: 0.95},
		{Name: "price_validity", Kind: Validity, Table: "fact_sales", Column: "unit_price", Check: CheckNonNegativeDecimal, Threshold: 0.98},
		{Name: "date_validity", Kind: Validity, Table: "fact_sales", Column: "date_key", Check: CheckDateKey, Threshold: 1.00, Critical: true},
		{Name: "transaction_uniqueness", Kind: Uniqueness, Table: "fact_sales", Columns: []string{"invoice_no", "stock_code"}, Threshold: 0.99},
		{Name: "line_total_accuracy", Kind: Accuracy, Table: "fact_sales", Check: CheckLineTotal, Threshold: 1.00, Critical: true},
		{Name: "transaction_type_consistency", Kind: Consistency, Table: "fact_sales", Column: "transaction_type", Check: CheckKnownClass, Threshold: 0.99},
	}
}
