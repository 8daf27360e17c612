package predictor

import (
	"cmp"
	"context"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/crimson-sun/sympcheck/internal/artifact"
	"github.com/crimson-sun/sympcheck/internal/engine/knowledge"
	"github.com/crimson-sun/sympcheck/internal/engine/schema"
	"github.com/crimson-sun/sympcheck/internal/model"
)

const (
	// DefaultTopK is the maximum number of conditions returned.
	DefaultTopK = 3
	// DefaultMinProbability is the exclusive lower bound for a returned
	// condition's probability.
	DefaultMinProbability = 0.05
)

// Loader supplies the trained artifact. trainer.Trainer satisfies it.
type Loader interface {
	TrainOrLoad(ctx context.Context) (*artifact.Artifact, error)
}

// Status describes the predictor's readiness and the artifact it serves.
type Status struct {
	Ready      bool      `json:"ready"`
	ArtifactID string    `json:"artifact_id,omitempty"`
	Source     string    `json:"source,omitempty"`
	Synthetic  bool      `json:"synthetic"`
	Accuracy   float64   `json:"accuracy"`
	Symptoms   int       `json:"symptoms"`
	Conditions int       `json:"conditions"`
	Described  int       `json:"described"` // conditions with an entry in the knowledge table
	CreatedAt  time.Time `json:"created_at,omitzero"`
}

// Predictor ranks conditions for a set of symptom codes.
//
// It starts Uninitialized and obtains its artifact from the Loader on first
// use. Concurrent first callers share a single load; all of them wait for
// it. A failed load leaves the predictor Uninitialized so that a later call
// retries. Once Ready, the artifact is kept for the life of the predictor.
type Predictor struct {
	loader  Loader
	kb      *knowledge.Base
	topK    int
	minProb float64
	logger  *slog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	art   *artifact.Artifact
	index map[string]int
}

// Option configures a Predictor.
type Option func(*Predictor)

// WithArtifact starts the predictor Ready with a.
func WithArtifact(a *artifact.Artifact) Option {
	return func(p *Predictor) { p.setArtifact(a) }
}

// WithTopK sets how many conditions are considered.
func WithTopK(k int) Option {
	return func(p *Predictor) { p.topK = k }
}

// WithMinProbability sets the probability a condition must exceed.
func WithMinProbability(v float64) Option {
	return func(p *Predictor) { p.minProb = v }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Predictor) { p.logger = l }
}

// New creates a Predictor. kb may be nil, in which case the built-in
// knowledge table is used.
func New(loader Loader, kb *knowledge.Base, opts ...Option) *Predictor {
	if kb == nil {
		kb = knowledge.Default()
	}
	p := &Predictor{
		loader:  loader,
		kb:      kb,
		topK:    DefaultTopK,
		minProb: DefaultMinProbability,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Predict returns up to topK conditions for codes, most probable first.
// Codes outside the vocabulary are ignored. When no artifact can be
// obtained the failure is logged and the result is empty; Predict never
// returns nil.
func (p *Predictor) Predict(ctx context.Context, codes []string) []model.Prediction {
	out := []model.Prediction{}
	a, index, err := p.ensure(ctx)
	if err != nil {
		p.logger.Error("prediction unavailable", "error", err)
		return out
	}

	vec := schema.Encode(a.Schema, index, codes)
	probs, err := a.Forest.PredictProba(vec)
	if err != nil {
		p.logger.Error("scoring failed", "error", err, "vector_len", len(vec))
		return out
	}

	for _, c := range rank(probs, p.topK, p.minProb) {
		name := a.Schema.Conditions[c.class]
		info := p.kb.Lookup(name)
		out = append(out, model.Prediction{
			Condition:      name,
			Probability:    c.percent,
			Description:    info.Description,
			Recommendation: info.Recommendation,
		})
	}
	return out
}

// Ready reports whether an artifact is loaded.
func (p *Predictor) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.art != nil
}

// Warmup loads the artifact ahead of the first prediction.
func (p *Predictor) Warmup(ctx context.Context) error {
	_, _, err := p.ensure(ctx)
	return err
}

// Status reports readiness and provenance of the active artifact.
func (p *Predictor) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.art == nil {
		return Status{}
	}
	m := p.art.Meta
	return Status{
		Ready:      true,
		ArtifactID: m.ID,
		Source:     m.Source,
		Synthetic:  m.Synthetic,
		Accuracy:   m.Accuracy,
		Symptoms:   len(p.art.Schema.Symptoms),
		Conditions: len(p.art.Schema.Conditions),
		Described:  p.described(p.art.Schema.Conditions),
		CreatedAt:  m.CreatedAt,
	}
}

func (p *Predictor) described(conditions []string) int {
	n := 0
	for _, c := range conditions {
		if p.kb.Has(c) {
			n++
		}
	}
	return n
}

// Symptoms returns the vocabulary of the active artifact, or nil before
// it is loaded.
func (p *Predictor) Symptoms() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.art == nil {
		return nil
	}
	return slices.Clone(p.art.Schema.Symptoms)
}

func (p *Predictor) cached() (*artifact.Artifact, map[string]int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.art, p.index
}

func (p *Predictor) setArtifact(a *artifact.Artifact) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.art = a
	p.index = a.Schema.SymptomIndex()
}

// ensure returns the cached artifact or loads it. The load runs detached
// from any single caller's context so that one caller giving up does not
// fail the others; each caller still stops waiting when its own context
// ends.
func (p *Predictor) ensure(ctx context.Context) (*artifact.Artifact, map[string]int, error) {
	if a, idx := p.cached(); a != nil {
		return a, idx, nil
	}

	ch := p.group.DoChan("artifact", func() (any, error) {
		if a, _ := p.cached(); a != nil {
			return a, nil
		}
		a, err := p.loader.TrainOrLoad(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		p.setArtifact(a)
		p.logger.Info("predictor ready", "artifact_id", a.Meta.ID, "symptoms", len(a.Schema.Symptoms),
			"conditions", len(a.Schema.Conditions), "synthetic", a.Meta.Synthetic)
		if n := len(a.Schema.Conditions) - p.described(a.Schema.Conditions); n > 0 {
			p.logger.Warn("conditions without a description will use generic text", "count", n)
		}
		return a, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, nil, res.Err
		}
		a, idx := p.cached()
		return a, idx, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

type candidate struct {
	class   int
	prob    float64
	percent int
}

// rank picks the k most probable classes, ties going to the lower class
// index, and keeps those whose probability exceeds minProb both before and
// after rounding to a whole percent. Rounding is half to even. The result
// is non-increasing in percent.
func rank(probs []float64, k int, minProb float64) []candidate {
	if k <= 0 {
		return []candidate{}
	}
	minProb = max(minProb, 0)
	all := make([]candidate, len(probs))
	for i, pr := range probs {
		all[i] = candidate{class: i, prob: pr}
	}
	slices.SortStableFunc(all, func(a, b candidate) int {
		return cmp.Compare(b.prob, a.prob)
	})
	if len(all) > k {
		all = all[:k]
	}

	floor := minProb * 100
	out := all[:0]
	for _, c := range all {
		c.percent = int(math.RoundToEven(c.prob * 100))
		if c.prob > minProb && float64(c.percent) > floor {
			out = append(out, c)
		}
	}
	return out
}
