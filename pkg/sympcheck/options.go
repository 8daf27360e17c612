package sympcheck

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/crimson-sun/sympcheck/internal/config"
)

type options struct {
	artifactPath   string
	datasetURL     string
	datasetPath    string
	cacheDir       string
	kaggleUser     string
	kaggleKey      string
	kaggleToken    string
	httpTimeout    time.Duration
	transport      http.RoundTripper
	labelColumns   []string
	syntheticRows  int
	trees          int
	seed           uint64
	testFraction   float64
	topK           int
	minProbability float64
	knowledgePath  string
	runLogPath     string
	logger         *slog.Logger
}

// Option configures a Checker.
type Option func(*options)

// WithArtifactPath sets where the trained model is stored.
// Default: "models/disease_prediction.model".
func WithArtifactPath(path string) Option {
	return func(o *options) { o.artifactPath = path }
}

// WithDatasetURL sets the remote dataset bundle (a zip or a CSV). An empty
// URL disables the download. Default: the Kaggle symptom/disease dataset.
func WithDatasetURL(url string) Option {
	return func(o *options) { o.datasetURL = url }
}

// WithDatasetPath sets a local CSV file, or a directory containing one,
// that is tried before the remote dataset.
func WithDatasetPath(path string) Option {
	return func(o *options) { o.datasetPath = path }
}

// WithCacheDir sets where downloaded bundles are unpacked. Default: "data/cache".
func WithCacheDir(dir string) Option {
	return func(o *options) { o.cacheDir = dir }
}

// WithKaggleCredentials sets the basic-auth credentials for the download.
func WithKaggleCredentials(username, key string) Option {
	return func(o *options) {
		o.kaggleUser = username
		o.kaggleKey = key
	}
}

// WithKaggleToken sends an API token as a Bearer header instead of basic
// auth. Credentials set with WithKaggleCredentials take precedence.
func WithKaggleToken(token string) Option {
	return func(o *options) { o.kaggleToken = token }
}

// WithHTTPTimeout sets the per-attempt download timeout. Default: 60s.
func WithHTTPTimeout(d time.Duration) Option {
	return func(o *options) { o.httpTimeout = d }
}

// WithTransport sets the HTTP transport used for the download.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithLabelColumns sets the candidate names of the condition column,
// matched case-insensitively. Default: "disease", "prognosis".
func WithLabelColumns(names ...string) Option {
	return func(o *options) { o.labelColumns = names }
}

// WithTrees sets the forest size. Default: 100.
func WithTrees(n int) Option {
	return func(o *options) { o.trees = n }
}

// WithSeed sets the seed for the holdout split, the forest, and the
// synthetic dataset. Default: 42.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}

// WithTestFraction sets the share of rows held out to measure accuracy,
// in [0, 1). Default: 0.2.
func WithTestFraction(f float64) Option {
	return func(o *options) { o.testFraction = f }
}

// WithTopK sets the maximum number of conditions returned. Default: 3.
func WithTopK(k int) Option {
	return func(o *options) { o.topK = k }
}

// WithMinProbability sets the probability a condition must exceed to be
// returned. Default: 0.05.
func WithMinProbability(p float64) Option {
	return func(o *options) { o.minProbability = p }
}

// WithKnowledgeFile merges condition descriptions from a YAML file over
// the built-in table.
func WithKnowledgeFile(path string) Option {
	return func(o *options) { o.knowledgePath = path }
}

// WithRunLog records every training run in a SQLite database at path.
func WithRunLog(path string) Option {
	return func(o *options) { o.runLogPath = path }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func defaultOptions() options {
	return options{
		artifactPath:   "models/disease_prediction.model",
		datasetURL:     config.DefaultDatasetURL,
		cacheDir:       "data/cache",
		httpTimeout:    60 * time.Second,
		labelColumns:   []string{"disease", "prognosis"},
		syntheticRows:  100,
		trees:          100,
		seed:           42,
		testFraction:   0.2,
		topK:           3,
		minProbability: 0.05,
		logger:         slog.Default(),
	}
}

// validate applies the same bounds as config.Validate to facade options.
func (o options) validate() error {
	var errs []error
	if o.artifactPath == "" {
		errs = append(errs, errors.New("artifact path must not be empty"))
	}
	if o.trees < 1 {
		errs = append(errs, fmt.Errorf("trees must be >= 1, got %d", o.trees))
	}
	if o.testFraction < 0 || o.testFraction >= 1 {
		errs = append(errs, fmt.Errorf("test fraction must be in [0, 1), got %g", o.testFraction))
	}
	if len(o.labelColumns) == 0 {
		errs = append(errs, errors.New("at least one label column is required"))
	}
	if o.topK < 1 {
		errs = append(errs, fmt.Errorf("top-k must be >= 1, got %d", o.topK))
	}
	if o.minProbability < 0 || o.minProbability >= 1 {
		errs = append(errs, fmt.Errorf("min probability must be in [0, 1), got %g", o.minProbability))
	}
	if o.httpTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http timeout must be positive, got %v", o.httpTimeout))
	}
	if o.logger == nil {
		errs = append(errs, errors.New("logger must not be nil"))
	}
	return errors.Join(errs...)
}
