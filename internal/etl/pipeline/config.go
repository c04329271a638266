package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/datakiln/retaildw/internal/etl/quality"
)

// JobConfig describes one pipeline run. Loaded from YAML; zero values fall
// back to workable defaults.
type JobConfig struct {
	JobID   string `yaml:"job_id" json:"job_id"`
	JobName string `yaml:"job_name" json:"job_name"`

	SourcePath string `yaml:"source_path" json:"source_path"`
	ChunkSize  int    `yaml:"chunk_size" json:"chunk_size"`

	DedupStrategy string `yaml:"dedup_strategy" json:"dedup_strategy"`
	CancelMarker  string `yaml:"cancel_marker" json:"cancel_marker"`

	// QualityRulesPath points at a YAML rule set; empty means defaults.
	QualityRulesPath string `yaml:"quality_rules" json:"quality_rules"`
	// QualityThreshold is the job-level bar the aggregated score must reach
	// for the version to finalize as SUCCESS.
	QualityThreshold float64 `yaml:"quality_threshold" json:"quality_threshold"`
	// ContinueOnWarn keeps the run going after a quality-gate failure instead
	// of stopping fail-fast. The failed batch stays rolled back either way and
	// the version still finalizes as FAILED.
	ContinueOnWarn bool `yaml:"continue_on_warn" json:"continue_on_warn"`

	Anomaly quality.AnomalyConfig `yaml:"anomaly" json:"anomaly"`

	CacheCapacity int    `yaml:"cache_capacity" json:"cache_capacity"`
	CacheTTL      string `yaml:"cache_ttl" json:"cache_ttl"`

	DataSource string `yaml:"data_source" json:"data_source"`
}

func (c JobConfig) withDefaults() JobConfig {
	if c.JobID == "" && c.SourcePath != "" {
		base := filepath.Base(c.SourcePath)
		c.JobID = "retail_csv_" + strings.TrimSuffix(base, filepath.Ext(base))
	}
	if c.JobName == "" {
		c.JobName = c.JobID
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1000
	}
	if c.QualityThreshold == 0 {
		c.QualityThreshold = 0.85
	}
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = 10000
	}
	if c.DataSource == "" {
		c.DataSource = "CSV"
	}
	return c
}

func (c JobConfig) validate() error {
	if c.SourcePath == "" {
		return fmt.Errorf("pipeline: job config needs source_path")
	}
	return nil
}

// LoadJobConfig reads a job config YAML file.
func LoadJobConfig(path string) (JobConfig, error) {
	var cfg JobConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("pipeline: read job config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("pipeline: parse job config %s: %w", path, err)
	}
	return cfg, nil
}
