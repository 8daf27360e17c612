package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var allKeys = []string{
	"SYMPCHECK_DATASET_URL", "SYMPCHECK_DATASET_PATH",
	"SYMPCHECK_KAGGLE_USERNAME", "SYMPCHECK_KAGGLE_KEY", "SYMPCHECK_KAGGLE_TOKEN",
	"SYMPCHECK_CACHE_DIR", "SYMPCHECK_LABEL_COLUMNS",
	"SYMPCHECK_SYNTHETIC_ROWS", "SYMPCHECK_HTTP_TIMEOUT",
	"SYMPCHECK_ARTIFACT_PATH", "SYMPCHECK_RUNLOG_PATH",
	"SYMPCHECK_TREES", "SYMPCHECK_SEED", "SYMPCHECK_TEST_FRACTION",
	"SYMPCHECK_TOP_K", "SYMPCHECK_MIN_PROBABILITY", "SYMPCHECK_KNOWLEDGE_PATH",
	"SYMPCHECK_LOG_LEVEL", "SYMPCHECK_LOG_JSON",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.Dataset.URL != DefaultDatasetURL {
		t.Fatalf("expected default dataset URL, got %q", cfg.Dataset.URL)
	}
	if !cfg.Dataset.RemoteEnabled() {
		t.Fatal("expected remote source enabled by default")
	}
	if diff := cmp.Diff([]string{"disease", "prognosis"}, cfg.Dataset.LabelColumns); diff != "" {
		t.Fatalf("LabelColumns mismatch (-want +got):\n%s", diff)
	}
	if cfg.Dataset.SyntheticRows != 100 {
		t.Fatalf("expected 100 synthetic rows, got %d", cfg.Dataset.SyntheticRows)
	}
	if cfg.Dataset.HTTPTimeout != 60*time.Second {
		t.Fatalf("expected 60s timeout, got %v", cfg.Dataset.HTTPTimeout)
	}
	if cfg.Model.Trees != 100 || cfg.Model.Seed != 42 || cfg.Model.TestFraction != 0.2 {
		t.Fatalf("unexpected model defaults: %+v", cfg.Model)
	}
	if cfg.Predict.TopK != 3 || cfg.Predict.MinProbability != 0.05 {
		t.Fatalf("unexpected predict defaults: %+v", cfg.Predict)
	}
	if cfg.Log.Level != "info" || cfg.Log.JSON {
		t.Fatalf("unexpected log defaults: %+v", cfg.Log)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate, got: %v", err)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SYMPCHECK_DATASET_URL", "off")
	t.Setenv("SYMPCHECK_LABEL_COLUMNS", " label , ,condition")
	t.Setenv("SYMPCHECK_TREES", "25")
	t.Setenv("SYMPCHECK_SEED", "7")
	t.Setenv("SYMPCHECK_MIN_PROBABILITY", "0.1")
	t.Setenv("SYMPCHECK_HTTP_TIMEOUT", "5s")
	t.Setenv("SYMPCHECK_LOG_JSON", "true")
	t.Setenv("SYMPCHECK_RUNLOG_PATH", "off")
	t.Setenv("SYMPCHECK_KAGGLE_TOKEN", "tok-123")

	cfg := Load()

	if cfg.Dataset.KaggleToken != "tok-123" {
		t.Fatalf("expected kaggle token, got %q", cfg.Dataset.KaggleToken)
	}

	if cfg.Model.RunLogPath != "" {
		t.Fatalf("expected run log disabled, got %q", cfg.Model.RunLogPath)
	}

	if cfg.Dataset.RemoteEnabled() {
		t.Fatal("expected remote source disabled")
	}
	if diff := cmp.Diff([]string{"label", "condition"}, cfg.Dataset.LabelColumns); diff != "" {
		t.Fatalf("LabelColumns mismatch (-want +got):\n%s", diff)
	}
	if cfg.Model.Trees != 25 || cfg.Model.Seed != 7 {
		t.Fatalf("unexpected model config: %+v", cfg.Model)
	}
	if cfg.Predict.MinProbability != 0.1 {
		t.Fatalf("expected 0.1, got %g", cfg.Predict.MinProbability)
	}
	if cfg.Dataset.HTTPTimeout != 5*time.Second {
		t.Fatalf("expected 5s, got %v", cfg.Dataset.HTTPTimeout)
	}
	if !cfg.Log.JSON {
		t.Fatal("expected JSON logging")
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("SYMPCHECK_TREES", "many")
	t.Setenv("SYMPCHECK_TEST_FRACTION", "a fifth")
	t.Setenv("SYMPCHECK_HTTP_TIMEOUT", "soon")
	t.Setenv("SYMPCHECK_LOG_JSON", "maybe")

	cfg := Load()

	if cfg.Model.Trees != 100 {
		t.Fatalf("expected fallback 100, got %d", cfg.Model.Trees)
	}
	if cfg.Model.TestFraction != 0.2 {
		t.Fatalf("expected fallback 0.2, got %g", cfg.Model.TestFraction)
	}
	if cfg.Dataset.HTTPTimeout != 60*time.Second {
		t.Fatalf("expected fallback 60s, got %v", cfg.Dataset.HTTPTimeout)
	}
	if cfg.Log.JSON {
		t.Fatal("expected fallback false")
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty artifact path", func(c *Config) { c.Model.ArtifactPath = "" }, "artifact"},
		{"zero trees", func(c *Config) { c.Model.Trees = 0 }, "trees"},
		{"test fraction one", func(c *Config) { c.Model.TestFraction = 1 }, "test fraction"},
		{"no synthetic rows", func(c *Config) { c.Dataset.SyntheticRows = 0 }, "synthetic"},
		{"no label columns", func(c *Config) { c.Dataset.LabelColumns = nil }, "label column"},
		{"zero top-k", func(c *Config) { c.Predict.TopK = 0 }, "top-k"},
		{"negative threshold", func(c *Config) { c.Predict.MinProbability = -0.1 }, "min probability"},
		{"zero timeout", func(c *Config) { c.Dataset.HTTPTimeout = 0 }, "timeout"},
		{"missing knowledge file", func(c *Config) {
			c.Predict.KnowledgePath = filepath.Join(t.TempDir(), "nope.yaml")
		}, "knowledge"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error mentioning %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error to mention %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	clearEnv(t)
	cfg := Load()
	cfg.Model.Trees = 0
	cfg.Predict.TopK = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "trees") || !strings.Contains(msg, "top-k") {
		t.Fatalf("expected both problems reported, got: %v", err)
	}
}

func TestValidate_ExistingKnowledgeFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "kb.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := Load()
	cfg.Predict.KnowledgePath = path
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
