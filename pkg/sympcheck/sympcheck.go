package sympcheck

import (
	"context"
	"fmt"
	"time"

	"github.com/crimson-sun/sympcheck/internal/artifact"
	"github.com/crimson-sun/sympcheck/internal/dataset"
	"github.com/crimson-sun/sympcheck/internal/engine/forest"
	"github.com/crimson-sun/sympcheck/internal/engine/knowledge"
	"github.com/crimson-sun/sympcheck/internal/engine/predictor"
	"github.com/crimson-sun/sympcheck/internal/engine/schema"
	"github.com/crimson-sun/sympcheck/internal/engine/trainer"
	"github.com/crimson-sun/sympcheck/internal/httpclient"
	"github.com/crimson-sun/sympcheck/internal/model"
	"github.com/crimson-sun/sympcheck/internal/runlog"
)

// Checker ranks probable conditions for symptom sets.
// Safe for concurrent use.
type Checker struct {
	predictor *predictor.Predictor
	runs      *runlog.Store
}

// New creates a Checker. It does not load or train the model; that
// happens on Warmup or the first Predict.
func New(opts ...Option) (*Checker, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, fmt.Errorf("sympcheck: invalid options: %w", err)
	}

	kb, err := knowledge.Load(o.knowledgePath)
	if err != nil {
		return nil, fmt.Errorf("sympcheck: %w", err)
	}

	var fetcher dataset.Fetcher
	if o.datasetURL != "" {
		hopts := []httpclient.Option{
			httpclient.WithTimeout(o.httpTimeout),
			httpclient.WithBasicAuth(o.kaggleUser, o.kaggleKey),
			httpclient.WithBearer(o.kaggleToken),
		}
		if o.transport != nil {
			hopts = append(hopts, httpclient.WithTransport(o.transport))
		}
		fetcher = httpclient.New(hopts...)
	}
	provider := dataset.NewProvider(dataset.Config{
		URL:           o.datasetURL,
		Path:          o.datasetPath,
		CacheDir:      o.cacheDir,
		LabelColumns:  o.labelColumns,
		SyntheticRows: o.syntheticRows,
		Seed:          o.seed,
	}, fetcher, o.logger)

	topts := []trainer.Option{
		trainer.WithParams(forest.Params{Trees: o.trees, Seed: o.seed}),
		trainer.WithTestFraction(o.testFraction),
		trainer.WithLogger(o.logger),
	}
	c := &Checker{}
	if o.runLogPath != "" {
		c.runs, err = runlog.Open(o.runLogPath)
		if err != nil {
			return nil, fmt.Errorf("sympcheck: %w", err)
		}
		topts = append(topts, trainer.WithRecorder(c.runs))
	}
	tr := trainer.New(artifact.NewStore(o.artifactPath), provider, topts...)

	c.predictor = predictor.New(tr, kb,
		predictor.WithTopK(o.topK),
		predictor.WithMinProbability(o.minProbability),
		predictor.WithLogger(o.logger),
	)
	return c, nil
}

// Predict returns up to three conditions for the given symptom codes, most
// probable first. Codes are matched case-insensitively with spaces and
// underscores treated alike; unknown codes are ignored. The result is
// empty, never nil, when the model is unavailable or nothing clears the
// probability threshold.
func (c *Checker) Predict(ctx context.Context, symptoms ...string) []Prediction {
	preds := c.predictor.Predict(ctx, symptoms)
	out := make([]Prediction, len(preds))
	for i, p := range preds {
		out[i] = predictionFromModel(p)
	}
	return out
}

// Warmup loads or trains the model now instead of on the first Predict.
func (c *Checker) Warmup(ctx context.Context) error {
	if err := c.predictor.Warmup(ctx); err != nil {
		return fmt.Errorf("sympcheck: %w", err)
	}
	return nil
}

// Ready reports whether a model is loaded.
func (c *Checker) Ready() bool {
	return c.predictor.Ready()
}

// Status reports readiness and the provenance of the loaded model.
func (c *Checker) Status() Status {
	s := c.predictor.Status()
	return Status{
		Ready:      s.Ready,
		ModelID:    s.ArtifactID,
		Source:     s.Source,
		Synthetic:  s.Synthetic,
		Accuracy:   s.Accuracy,
		Symptoms:   s.Symptoms,
		Conditions: s.Conditions,
		Described:  s.Described,
		TrainedAt:  s.CreatedAt,
	}
}

// Symptoms lists the symptoms the loaded model recognizes, in feature
// order. It is empty until the model is loaded.
func (c *Checker) Symptoms() []Symptom {
	codes := c.predictor.Symptoms()
	out := make([]Symptom, len(codes))
	for i, code := range codes {
		out[i] = Symptom{Code: code, Name: schema.DisplayName(code)}
	}
	return out
}

// Close releases the run log, if one was opened.
func (c *Checker) Close() error {
	if c.runs != nil {
		return c.runs.Close()
	}
	return nil
}

func predictionFromModel(p model.Prediction) Prediction {
	return Prediction{
		Condition:      p.Condition,
		Probability:    p.Probability,
		Description:    p.Description,
		Recommendation: p.Recommendation,
	}
}

// Status describes the loaded model.
type Status struct {
	Ready      bool      `json:"ready"`
	ModelID    string    `json:"model_id,omitempty"`
	Source     string    `json:"source,omitempty"`
	Synthetic  bool      `json:"synthetic"` // trained on random data; not for production use
	Accuracy   float64   `json:"accuracy"`  // holdout accuracy at training time
	Symptoms   int       `json:"symptoms"`
	Conditions int       `json:"conditions"`
	Described  int       `json:"described"` // conditions with a description; the rest use generic text
	TrainedAt  time.Time `json:"trained_at,omitzero"`
}
