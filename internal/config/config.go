package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DisabledURL turns off remote dataset fetching when used as the dataset URL.
const DisabledURL = "off"

// DefaultDatasetURL is the Kaggle download endpoint for the symptom/disease dataset.
const DefaultDatasetURL = "https://www.kaggle.com/api/v1/datasets/download/kaushil268/disease-prediction-using-machine-learning"

// Config holds all sympcheck configuration.
type Config struct {
	Dataset DatasetConfig
	Model   ModelConfig
	Predict PredictConfig
	Log     LogConfig
}

// DatasetConfig holds training-data acquisition settings.
type DatasetConfig struct {
	URL            string // remote bundle; DisabledURL skips the fetch
	Path           string // local CSV file or directory, tried before the remote source
	KaggleUsername string
	KaggleKey      string
	KaggleToken    string // Bearer token; used only when no username is set
	CacheDir       string
	LabelColumns   []string
	SyntheticRows  int
	HTTPTimeout    time.Duration
}

// ModelConfig holds training and persistence settings.
type ModelConfig struct {
	ArtifactPath string
	RunLogPath   string // empty disables the training run ledger; set "off" in the environment
	Trees        int
	Seed         uint64
	TestFraction float64
}

// PredictConfig holds prediction selection settings.
type PredictConfig struct {
	TopK           int
	MinProbability float64
	KnowledgePath  string // optional YAML merged over the built-in table
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
	JSON  bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		Dataset: DatasetConfig{
			URL:            getenv("SYMPCHECK_DATASET_URL", DefaultDatasetURL),
			Path:           os.Getenv("SYMPCHECK_DATASET_PATH"),
			KaggleUsername: os.Getenv("SYMPCHECK_KAGGLE_USERNAME"),
			KaggleKey:      os.Getenv("SYMPCHECK_KAGGLE_KEY"),
			KaggleToken:    os.Getenv("SYMPCHECK_KAGGLE_TOKEN"),
			CacheDir:       getenv("SYMPCHECK_CACHE_DIR", "data/cache"),
			LabelColumns:   getenvList("SYMPCHECK_LABEL_COLUMNS", []string{"disease", "prognosis"}),
			SyntheticRows:  getenvInt("SYMPCHECK_SYNTHETIC_ROWS", 100),
			HTTPTimeout:    getenvDuration("SYMPCHECK_HTTP_TIMEOUT", 60*time.Second),
		},
		Model: ModelConfig{
			ArtifactPath: getenv("SYMPCHECK_ARTIFACT_PATH", "models/disease_prediction.model"),
			RunLogPath:   getenvOptional("SYMPCHECK_RUNLOG_PATH", "models/runs.db"),
			Trees:        getenvInt("SYMPCHECK_TREES", 100),
			Seed:         uint64(getenvInt("SYMPCHECK_SEED", 42)),
			TestFraction: getenvFloat("SYMPCHECK_TEST_FRACTION", 0.2),
		},
		Predict: PredictConfig{
			TopK:           getenvInt("SYMPCHECK_TOP_K", 3),
			MinProbability: getenvFloat("SYMPCHECK_MIN_PROBABILITY", 0.05),
			KnowledgePath:  os.Getenv("SYMPCHECK_KNOWLEDGE_PATH"),
		},
		Log: LogConfig{
			Level: getenv("SYMPCHECK_LOG_LEVEL", "info"),
			JSON:  getenvBool("SYMPCHECK_LOG_JSON", false),
		},
	}
}

// Validate checks the configuration for values the engine cannot work with.
// All problems are reported together.
func (c Config) Validate() error {
	var errs []error
	if c.Model.ArtifactPath == "" {
		errs = append(errs, errors.New("artifact path must not be empty"))
	}
	if c.Model.Trees < 1 {
		errs = append(errs, fmt.Errorf("trees must be >= 1, got %d", c.Model.Trees))
	}
	if c.Model.TestFraction < 0 || c.Model.TestFraction >= 1 {
		errs = append(errs, fmt.Errorf("test fraction must be in [0, 1), got %g", c.Model.TestFraction))
	}
	if c.Dataset.SyntheticRows < 1 {
		errs = append(errs, fmt.Errorf("synthetic rows must be >= 1, got %d", c.Dataset.SyntheticRows))
	}
	if len(c.Dataset.LabelColumns) == 0 {
		errs = append(errs, errors.New("at least one label column is required"))
	}
	if c.Predict.TopK < 1 {
		errs = append(errs, fmt.Errorf("top-k must be >= 1, got %d", c.Predict.TopK))
	}
	if c.Predict.MinProbability < 0 || c.Predict.MinProbability >= 1 {
		errs = append(errs, fmt.Errorf("min probability must be in [0, 1), got %g", c.Predict.MinProbability))
	}
	if c.Dataset.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http timeout must be positive, got %v", c.Dataset.HTTPTimeout))
	}
	if c.Predict.KnowledgePath != "" {
		if _, err := os.Stat(c.Predict.KnowledgePath); err != nil {
			errs = append(errs, fmt.Errorf("knowledge file: %w", err))
		}
	}
	return errors.Join(errs...)
}

// RemoteEnabled reports whether the remote dataset source should be tried.
func (d DatasetConfig) RemoteEnabled() bool {
	return d.URL != "" && d.URL != DisabledURL
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getenvOptional is getenv where DisabledURL ("off") yields an empty value.
func getenvOptional(key, fallback string) string {
	v := getenv(key, fallback)
	if v == DisabledURL {
		return ""
	}
	return v
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// getenvList splits a comma-separated value, dropping blank items.
func getenvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
