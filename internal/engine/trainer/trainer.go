package trainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/crimson-sun/sympcheck/internal/artifact"
	"github.com/crimson-sun/sympcheck/internal/engine/forest"
	"github.com/crimson-sun/sympcheck/internal/engine/schema"
	"github.com/crimson-sun/sympcheck/internal/model"
	"github.com/crimson-sun/sympcheck/internal/runlog"
)

// ErrTraining reports that no artifact could be produced: the dataset was
// unavailable or unusable, or fitting failed. Persistence problems are
// reported separately as artifact.ErrPersistence.
var ErrTraining = errors.New("trainer: training failed")

// DefaultTestFraction is the share of rows held out for accuracy.
const DefaultTestFraction = 0.2

// splitStream separates the holdout shuffle from the per-tree streams,
// which use the tree index.
const splitStream = math.MaxUint64

// Source yields a labeled dataset.
type Source interface {
	Acquire(ctx context.Context) (model.Dataset, error)
}

// Recorder keeps a ledger of training runs.
type Recorder interface {
	Record(ctx context.Context, r runlog.Run) error
}

// Trainer produces the artifact the predictor serves, loading it from the
// store when present and training it otherwise.
type Trainer struct {
	store        *artifact.Store
	source       Source
	params       forest.Params
	testFraction float64
	recorder     Recorder
	logger       *slog.Logger
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithParams sets the forest hyperparameters. Params.Seed also seeds the
// holdout split.
func WithParams(p forest.Params) Option {
	return func(t *Trainer) { t.params = p }
}

// WithTestFraction sets the share of rows held out for evaluation.
func WithTestFraction(f float64) Option {
	return func(t *Trainer) { t.testFraction = f }
}

// WithRecorder records every training attempt.
func WithRecorder(r Recorder) Option {
	return func(t *Trainer) { t.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Trainer) { t.logger = l }
}

// New creates a Trainer that persists to store and trains on data from source.
func New(store *artifact.Store, source Source, opts ...Option) *Trainer {
	t := &Trainer{
		store:        store,
		source:       source,
		params:       forest.Params{Trees: 100, Seed: 42},
		testFraction: DefaultTestFraction,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TrainOrLoad returns the stored artifact when one exists, without
// comparing it to the current dataset. Otherwise it trains and persists a
// new one. A stored artifact that fails verification is returned as
// artifact.ErrIncompatible rather than silently replaced.
func (t *Trainer) TrainOrLoad(ctx context.Context) (*artifact.Artifact, error) {
	ok, err := t.store.Exists()
	if err != nil {
		return nil, err
	}
	if ok {
		a, err := t.store.Load()
		if err != nil {
			return nil, err
		}
		t.logger.Info("artifact loaded", "path", t.store.Path(), "id", a.Meta.ID,
			"symptoms", len(a.Schema.Symptoms), "conditions", len(a.Schema.Conditions),
			"synthetic", a.Meta.Synthetic)
		return a, nil
	}
	return t.Train(ctx)
}

// Train always fits a new artifact and overwrites the stored one.
func (t *Trainer) Train(ctx context.Context) (*artifact.Artifact, error) {
	run := runlog.Run{StartedAt: time.Now().UTC(), ArtifactPath: t.store.Path()}
	a, err := t.train(ctx, &run)
	if err == nil {
		err = t.store.Save(a)
	}

	run.FinishedAt = time.Now().UTC()
	if err != nil {
		run.Status = runlog.StatusFailed
		run.Error = err.Error()
		t.logger.Error("training failed", "error", err)
	} else {
		run.Status = runlog.StatusSucceeded
		run.ArtifactID = a.Meta.ID
		t.logger.Info("artifact saved", "path", t.store.Path(), "id", a.Meta.ID,
			"elapsed", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	t.record(ctx, run)

	if err != nil {
		return nil, err
	}
	return a, nil
}

func (t *Trainer) train(ctx context.Context, run *runlog.Run) (*artifact.Artifact, error) {
	ds, err := t.source.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire dataset: %w", ErrTraining, err)
	}
	run.Source = ds.Source
	run.Synthetic = ds.Synthetic
	run.Rows = len(ds.Rows)

	sch, X, y, err := schema.Build(ds)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTraining, err)
	}
	run.Symptoms = len(sch.Symptoms)
	run.Conditions = len(sch.Conditions)
	run.SchemaHash = schema.Hash(sch)

	trainIdx, testIdx := splitIndices(len(y), t.testFraction, t.params.Seed)
	run.TrainRows = len(trainIdx)
	run.TestRows = len(testIdx)
	Xtr, ytr := gather(X, y, trainIdx)
	Xte, yte := gather(X, y, testIdx)

	t.logger.Info("training forest", "source", ds.Source, "train_rows", len(ytr), "test_rows", len(yte),
		"symptoms", len(sch.Symptoms), "conditions", len(sch.Conditions), "trees", t.params.Trees)
	f, err := forest.Fit(ctx, Xtr, ytr, len(sch.Conditions), t.params)
	if err != nil {
		return nil, fmt.Errorf("%w: fit: %w", ErrTraining, err)
	}

	acc, err := f.Score(Xte, yte)
	if err != nil {
		return nil, fmt.Errorf("%w: score: %w", ErrTraining, err)
	}
	run.Accuracy = acc
	t.logger.Info("holdout accuracy", "accuracy", acc, "test_rows", len(yte))
	if ds.Synthetic {
		t.logger.Warn("model trained on synthetic data; not for production use")
	}

	return artifact.New(sch, f, artifact.Meta{
		Source:    ds.Source,
		Synthetic: ds.Synthetic,
		Accuracy:  acc,
		TrainRows: len(ytr),
		TestRows:  len(yte),
		Seed:      t.params.Seed,
	}), nil
}

func (t *Trainer) record(ctx context.Context, run runlog.Run) {
	if t.recorder == nil {
		return
	}
	if err := t.recorder.Record(context.WithoutCancel(ctx), run); err != nil {
		t.logger.Warn("failed to record training run", "error", err)
	}
}

// splitIndices shuffles 0..n-1 with a seeded PRNG and holds out the first
// ceil(fraction*n) of them. At least one row always remains for training.
func splitIndices(n int, fraction float64, seed uint64) (train, test []int) {
	nTest := int(math.Ceil(fraction * float64(n)))
	nTest = max(0, min(nTest, n-1))
	perm := rand.New(rand.NewPCG(seed, splitStream)).Perm(n)
	return perm[nTest:], perm[:nTest]
}

func gather(X [][]float64, y []int, idx []int) ([][]float64, []int) {
	xs := make([][]float64, len(idx))
	ys := make([]int, len(idx))
	for i, j := range idx {
		xs[i] = X[j]
		ys[i] = y[j]
	}
	return xs, ys
}
