package main

import (
	"log/slog"

	"github.com/crimson-sun/sympcheck/internal/artifact"
	"github.com/crimson-sun/sympcheck/internal/config"
	"github.com/crimson-sun/sympcheck/internal/dataset"
	"github.com/crimson-sun/sympcheck/internal/engine/forest"
	"github.com/crimson-sun/sympcheck/internal/engine/knowledge"
	"github.com/crimson-sun/sympcheck/internal/engine/predictor"
	"github.com/crimson-sun/sympcheck/internal/engine/trainer"
	"github.com/crimson-sun/sympcheck/internal/httpclient"
	"github.com/crimson-sun/sympcheck/internal/runlog"
)

// newTrainer wires the dataset provider, artifact store, and run log from
// cfg. The returned close function releases the run log.
func newTrainer(cfg config.Config) (*trainer.Trainer, func() error, error) {
	logger := slog.Default()

	var fetcher dataset.Fetcher
	url := ""
	if cfg.Dataset.RemoteEnabled() {
		url = cfg.Dataset.URL
		fetcher = httpclient.New(
			httpclient.WithTimeout(cfg.Dataset.HTTPTimeout),
			httpclient.WithBasicAuth(cfg.Dataset.KaggleUsername, cfg.Dataset.KaggleKey),
			httpclient.WithBearer(cfg.Dataset.KaggleToken),
		)
	}
	provider := dataset.NewProvider(dataset.Config{
		URL:           url,
		Path:          cfg.Dataset.Path,
		CacheDir:      cfg.Dataset.CacheDir,
		LabelColumns:  cfg.Dataset.LabelColumns,
		SyntheticRows: cfg.Dataset.SyntheticRows,
		Seed:          cfg.Model.Seed,
	}, fetcher, logger)

	opts := []trainer.Option{
		trainer.WithParams(forest.Params{Trees: cfg.Model.Trees, Seed: cfg.Model.Seed}),
		trainer.WithTestFraction(cfg.Model.TestFraction),
		trainer.WithLogger(logger),
	}
	closeFn := func() error { return nil }
	if cfg.Model.RunLogPath != "" {
		runs, err := runlog.Open(cfg.Model.RunLogPath)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, trainer.WithRecorder(runs))
		closeFn = runs.Close
	}
	return trainer.New(artifact.NewStore(cfg.Model.ArtifactPath), provider, opts...), closeFn, nil
}

func newPredictor(cfg config.Config, loader predictor.Loader, opts ...predictor.Option) (*predictor.Predictor, error) {
	kb, err := knowledge.Load(cfg.Predict.KnowledgePath)
	if err != nil {
		return nil, err
	}
	base := []predictor.Option{
		predictor.WithTopK(cfg.Predict.TopK),
		predictor.WithMinProbability(cfg.Predict.MinProbability),
		predictor.WithLogger(slog.Default()),
	}
	return predictor.New(loader, kb, append(base, opts...)...), nil
}
