package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/crimson-sun/sympcheck/internal/model"
)

// Fetcher downloads a remote resource into a local file.
type Fetcher interface {
	Download(ctx context.Context, url, dst string) (int64, error)
}

// Config controls where the provider looks for training data.
type Config struct {
	URL            string   // remote bundle; empty skips the fetch
	Path           string   // local CSV file or directory, tried first
	CacheDir       string   // downloaded bundles are kept here
	PreferredFiles []string // file names tried before scanning a directory
	LabelColumns   []string
	SyntheticRows  int
	Seed           uint64
}

// DefaultPreferredFiles are the names checked first inside a bundle.
var DefaultPreferredFiles = []string{"dataset.csv", "Training.csv"}

// Provider obtains a labeled dataset. Sources are tried in order: local
// path, remote bundle, synthetic generator.
type Provider struct {
	cfg     Config
	fetcher Fetcher
	logger  *slog.Logger
}

// NewProvider creates a Provider. fetcher may be nil when no remote
// source is configured.
func NewProvider(cfg Config, fetcher Fetcher, logger *slog.Logger) *Provider {
	if len(cfg.PreferredFiles) == 0 {
		cfg.PreferredFiles = DefaultPreferredFiles
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(os.TempDir(), "sympcheck")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{cfg: cfg, fetcher: fetcher, logger: logger}
}

// Acquire returns the first dataset a source yields. Failures of the local
// and remote sources are logged and recovered by falling through to the
// synthetic generator. Only a failure of the generator itself is returned,
// as ErrNoData.
func (p *Provider) Acquire(ctx context.Context) (model.Dataset, error) {
	if p.cfg.Path != "" {
		ds, err := p.LoadPath(p.cfg.Path)
		if err == nil {
			p.logger.Info("dataset loaded", "source", ds.Source, "rows", len(ds.Rows), "columns", len(ds.Columns))
			return ds, nil
		}
		p.logger.Warn("local dataset unavailable", "path", p.cfg.Path, "kind", kind(err), "error", err)
	}

	if p.cfg.URL != "" && p.fetcher != nil {
		ds, err := p.fetchRemote(ctx)
		if err == nil {
			p.logger.Info("dataset fetched", "source", ds.Source, "rows", len(ds.Rows), "columns", len(ds.Columns))
			return ds, nil
		}
		p.logger.Warn("remote dataset unavailable", "url", p.cfg.URL, "kind", kind(err), "error", err)
	}

	if p.cfg.SyntheticRows < 1 {
		return model.Dataset{}, fmt.Errorf("%w: synthetic fallback needs at least one row, got %d", ErrNoData, p.cfg.SyntheticRows)
	}
	ds := Synthetic(p.cfg.SyntheticRows, p.cfg.Seed)
	p.logger.Warn("using synthetic dataset: labels are random and predictions carry no medical signal",
		"rows", len(ds.Rows), "symptoms", len(SyntheticSymptoms), "conditions", len(SyntheticConditions))
	return ds, nil
}

// LoadPath parses the CSV at path, or the best CSV inside it when path is
// a directory.
func (p *Provider) LoadPath(path string) (model.Dataset, error) {
	file, err := Locate(path, p.cfg.PreferredFiles)
	if err != nil {
		return model.Dataset{}, err
	}
	return ParseFile(file, p.cfg.LabelColumns)
}

// fetchRemote downloads and unpacks the bundle unless a previous run left
// a loadable one in the cache, then loads it. A bundle that fails to load
// is removed so the next run downloads it again.
func (p *Provider) fetchRemote(ctx context.Context) (model.Dataset, error) {
	dir := bundleDir(p.cfg.CacheDir, p.cfg.URL)
	if st, err := os.Stat(dir); err == nil && st.IsDir() {
		ds, err := p.LoadPath(dir)
		if err == nil {
			p.logger.Debug("using cached dataset bundle", "dir", dir)
			return ds, nil
		}
		p.logger.Warn("discarding unusable cached bundle", "dir", dir, "kind", kind(err), "error", err)
		if err := os.RemoveAll(dir); err != nil {
			return model.Dataset{}, fmt.Errorf("%w: %v", ErrAcquisition, err)
		}
	}

	if err := os.MkdirAll(p.cfg.CacheDir, 0o755); err != nil {
		return model.Dataset{}, fmt.Errorf("%w: %v", ErrAcquisition, err)
	}
	payload := dir + ".download"
	defer os.Remove(payload)

	n, err := p.fetcher.Download(ctx, p.cfg.URL, payload)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("%w: %v", ErrAcquisition, err)
	}
	p.logger.Debug("dataset bundle downloaded", "bytes", n)

	if err := unpack(payload, dir); err != nil {
		return model.Dataset{}, err
	}
	ds, err := p.LoadPath(dir)
	if err != nil {
		os.RemoveAll(dir)
		return model.Dataset{}, err
	}
	return ds, nil
}
