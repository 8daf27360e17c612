package forest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ErrShape reports inputs whose dimensions do not agree with the forest.
var ErrShape = errors.New("forest: shape mismatch")

// Params controls forest fitting. Zero values select the defaults noted on
// each field.
type Params struct {
	Trees           int    // number of trees; default 100
	Seed            uint64 // base seed; tree i draws from PCG(Seed, i)
	MaxFeatures     int    // features tried per split; default floor(sqrt(n))
	MinSamplesSplit int    // smallest node that may be split; default 2
	MaxDepth        int    // 0 means unlimited
	Workers         int    // concurrent tree builders; default GOMAXPROCS
}

func (p Params) withDefaults(numFeatures int) Params {
	if p.Trees <= 0 {
		p.Trees = 100
	}
	if p.MaxFeatures <= 0 {
		p.MaxFeatures = max(1, int(math.Sqrt(float64(numFeatures))))
	}
	p.MaxFeatures = min(p.MaxFeatures, numFeatures)
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}
	if p.Workers <= 0 {
		p.Workers = runtime.GOMAXPROCS(0)
	}
	return p
}

// Forest is an ensemble of CART classification trees fitted on bootstrap
// samples. Class probabilities are the mean of the per-tree leaf
// distributions.
type Forest struct {
	NumFeatures int    `json:"num_features"`
	NumClasses  int    `json:"num_classes"`
	Trees       []Tree `json:"trees"`
}

// Tree is a flattened binary tree. Nodes[0] is the root; children always
// come after their parent.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Node is either a split (Feature >= 0) or a leaf (Feature == -1) holding
// the class distribution of the training samples that reached it.
type Node struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t,omitempty"`
	Left      int       `json:"l,omitempty"`
	Right     int       `json:"r,omitempty"`
	Dist      []float64 `json:"d,omitempty"`
}

func (n Node) isLeaf() bool { return n.Feature < 0 }

// Fit trains a forest on X (rows of equal length) with integer labels in
// [0, numClasses). The result depends only on the data and p.Seed, never on
// goroutine scheduling.
func Fit(ctx context.Context, X [][]float64, y []int, numClasses int, p Params) (*Forest, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrShape)
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("%w: %d samples, %d labels", ErrShape, len(X), len(y))
	}
	numFeatures := len(X[0])
	if numFeatures == 0 {
		return nil, fmt.Errorf("%w: no features", ErrShape)
	}
	for i, row := range X {
		if len(row) != numFeatures {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrShape, i, len(row), numFeatures)
		}
		if y[i] < 0 || y[i] >= numClasses {
			return nil, fmt.Errorf("%w: label %d out of range [0,%d)", ErrShape, y[i], numClasses)
		}
	}
	p = p.withDefaults(numFeatures)

	f := &Forest{
		NumFeatures: numFeatures,
		NumClasses:  numClasses,
		Trees:       make([]Tree, p.Trees),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Workers)
	for i := range f.Trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b := &builder{
				X:          X,
				y:          y,
				numClasses: numClasses,
				params:     p,
				rng:        rand.New(rand.NewPCG(p.Seed, uint64(i))),
			}
			f.Trees[i] = b.build()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("forest: fit: %w", err)
	}
	return f, nil
}

// PredictProba returns one probability per class for the feature vector x.
func (f *Forest) PredictProba(x []float64) ([]float64, error) {
	if len(x) != f.NumFeatures {
		return nil, fmt.Errorf("%w: vector has %d features, want %d", ErrShape, len(x), f.NumFeatures)
	}
	out := make([]float64, f.NumClasses)
	for _, t := range f.Trees {
		for c, v := range t.leaf(x).Dist {
			out[c] += v
		}
	}
	n := float64(len(f.Trees))
	for c := range out {
		out[c] /= n
	}
	return out, nil
}

// Predict returns the most probable class; ties go to the lower index.
func (f *Forest) Predict(x []float64) (int, error) {
	proba, err := f.PredictProba(x)
	if err != nil {
		return 0, err
	}
	best := 0
	for c, v := range proba {
		if v > proba[best] {
			best = c
		}
	}
	return best, nil
}

// Score returns the fraction of rows in X whose predicted class equals y.
// An empty set scores 0.
func (f *Forest) Score(X [][]float64, y []int) (float64, error) {
	if len(X) != len(y) {
		return 0, fmt.Errorf("%w: %d samples, %d labels", ErrShape, len(X), len(y))
	}
	if len(X) == 0 {
		return 0, nil
	}
	correct := 0
	for i, x := range X {
		c, err := f.Predict(x)
		if err != nil {
			return 0, err
		}
		if c == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(X)), nil
}

// Validate checks the structural integrity of a forest, typically one that
// was decoded from storage.
func (f *Forest) Validate() error {
	if f.NumFeatures <= 0 || f.NumClasses <= 0 {
		return fmt.Errorf("%w: %d features, %d classes", ErrShape, f.NumFeatures, f.NumClasses)
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("%w: no trees", ErrShape)
	}
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("%w: tree %d is empty", ErrShape, ti)
		}
		for ni, n := range t.Nodes {
			if n.isLeaf() {
				if len(n.Dist) != f.NumClasses {
					return fmt.Errorf("%w: tree %d leaf %d has %d classes, want %d", ErrShape, ti, ni, len(n.Dist), f.NumClasses)
				}
				continue
			}
			if n.Feature >= f.NumFeatures {
				return fmt.Errorf("%w: tree %d node %d splits on feature %d", ErrShape, ti, ni, n.Feature)
			}
			if n.Left <= ni || n.Right <= ni || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
				return fmt.Errorf("%w: tree %d node %d has invalid children", ErrShape, ti, ni)
			}
		}
	}
	return nil
}

func (t Tree) leaf(x []float64) Node {
	n := t.Nodes[0]
	for !n.isLeaf() {
		if x[n.Feature] <= n.Threshold {
			n = t.Nodes[n.Left]
		} else {
			n = t.Nodes[n.Right]
		}
	}
	return n
}
