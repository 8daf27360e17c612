package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crimson-sun/sympcheck/internal/engine/predictor"
	"github.com/crimson-sun/sympcheck/internal/output"
)

// setupEnv points every path at a temp dir and disables the download.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SYMPCHECK_DATASET_URL", "off")
	t.Setenv("SYMPCHECK_DATASET_PATH", "")
	t.Setenv("SYMPCHECK_KNOWLEDGE_PATH", "")
	t.Setenv("SYMPCHECK_CACHE_DIR", filepath.Join(dir, "cache"))
	t.Setenv("SYMPCHECK_ARTIFACT_PATH", filepath.Join(dir, "models", "disease.model"))
	t.Setenv("SYMPCHECK_RUNLOG_PATH", filepath.Join(dir, "models", "runs.db"))
	t.Setenv("SYMPCHECK_TREES", "20")
	t.Setenv("SYMPCHECK_LOG_LEVEL", "error")
	return dir
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStatusBeforeTraining(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "", "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var st predictor.Status
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if st.Ready {
		t.Fatal("expected not ready before training")
	}
	if strings.Contains(out, "last_run") {
		t.Fatalf("no run recorded yet, got %s", out)
	}
}

func TestTrainPredictStatusRuns(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "", "train")
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	var summary trainSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if !summary.Synthetic || summary.Symptoms != 15 || summary.TrainRows != 80 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	out, err = run(t, "", "predict", "fever", "cough")
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	var res output.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(res.Symptoms) != 2 || len(res.Predictions) > 3 {
		t.Fatalf("unexpected result: %+v", res)
	}

	out, err = run(t, "", "status")
	if err != nil {
		t.Fatal(err)
	}
	var st statusReport
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatal(err)
	}
	if !st.Ready || st.ArtifactID != summary.ID {
		t.Fatalf("status should report the trained model, got %+v", st)
	}
	if st.Described != st.Conditions {
		t.Errorf("every synthetic condition has a description, got %d of %d", st.Described, st.Conditions)
	}
	if st.LastRun == nil || st.LastRun.ArtifactID != summary.ID || st.LastRun.Rows != 100 {
		t.Fatalf("status should report the last run, got %+v", st.LastRun)
	}

	if _, err := run(t, "", "train", "--force"); err != nil {
		t.Fatalf("train --force: %v", err)
	}
	out, err = run(t, "", "runs")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if got := strings.Count(out, "succeeded"); got != 2 {
		t.Fatalf("expected 2 recorded runs, got %d in:\n%s", got, out)
	}
}

func TestPredictStdin(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "fever,cough\n\nheadache\n", "predict", "--stdin", "--verbosity", "minimal")
	if err != nil {
		t.Fatalf("predict --stdin: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 results, got %d:\n%s", len(lines), out)
	}
	if strings.Contains(out, "recommendation") {
		t.Fatal("minimal verbosity should omit recommendation")
	}
}

func TestPredictRejectsArgsWithStdin(t *testing.T) {
	setupEnv(t)
	if _, err := run(t, "", "predict", "--stdin", "fever"); err == nil {
		t.Fatal("expected error")
	}
}

func TestSymptoms(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "", "symptoms")
	if err != nil {
		t.Fatalf("symptoms: %v", err)
	}
	if !strings.Contains(out, "loss_of_taste_or_smell") || !strings.Contains(out, "Loss Of Taste Or Smell") {
		t.Fatalf("unexpected symptoms output:\n%s", out)
	}
}

func TestInvalidConfig(t *testing.T) {
	setupEnv(t)
	t.Setenv("SYMPCHECK_TOP_K", "0")
	if _, err := run(t, "", "status"); err == nil || !strings.Contains(err.Error(), "top-k") {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
