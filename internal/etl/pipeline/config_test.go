package pipeline

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadJobConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	raw := []byte(`job_id: retail_2011
job_name: Retail 2011 load
source_path: /data/retail_2011.csv
chunk_size: 500
dedup_strategy: keep_first
quality_threshold: 0.9
continue_on_warn: true
anomaly:
  high_cutoff: 0.25
cache_capacity: 500
cache_ttl: 10m
`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadJobConfig(path)
	if err != nil {
		t.Fatalf("LoadJobConfig: %v", err)
	}
	if cfg.JobID != "retail_2011" || cfg.ChunkSize != 500 || !cfg.ContinueOnWarn {
		t.Fatalf("parsed config wrong: %+v", cfg)
	}
	if cfg.Anomaly.HighCutoff != 0.25 {
		t.Fatalf("anomaly cutoff: want=0.25 got=%f", cfg.Anomaly.HighCutoff)
	}
}

func TestJobConfigDefaults(t *testing.T) {
	cfg := JobConfig{SourcePath: "/data/retail_2011.csv"}.withDefaults()

	if cfg.JobID != "retail_csv_retail_2011" {
		t.Fatalf("derived job id: got=%s", cfg.JobID)
	}
	if cfg.JobName != cfg.JobID {
		t.Fatalf("job name should default to the job id")
	}
	if cfg.ChunkSize != 1000 {
		t.Fatalf("chunk size default: want=1000 got=%d", cfg.ChunkSize)
	}
	if cfg.QualityThreshold != 0.85 {
		t.Fatalf("quality threshold default: want=0.85 got=%f", cfg.QualityThreshold)
	}
	if cfg.CacheCapacity != 10000 {
		t.Fatalf("cache capacity default: want=10000 got=%d", cfg.CacheCapacity)
	}
	if cfg.DataSource != "CSV" {
		t.Fatalf("data source default: want=CSV got=%s", cfg.DataSource)
	}
}

func TestJobConfigValidate(t *testing.T) {
	if err := (JobConfig{}).validate(); err == nil {
		t.Fatalf("missing source_path should fail validation")
	}
	if err := (JobConfig{SourcePath: "x.csv"}).validate(); err != nil {
		t.Fatalf("valid config should pass: %v", err)
	}
}
