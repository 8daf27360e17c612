package forest

import (
	"math/rand/v2"
	"slices"
)

// builder grows one tree. It is not shared between goroutines.
type builder struct {
	X          [][]float64
	y          []int
	numClasses int
	params     Params
	rng        *rand.Rand
	nodes      []Node
}

type split struct {
	feature   int
	threshold float64
	impurity  float64 // weighted Gini of the two children
}

func (b *builder) build() Tree {
	n := len(b.X)
	sample := make([]int, n)
	for i := range sample {
		sample[i] = b.rng.IntN(n)
	}
	b.grow(sample, 0)
	return Tree{Nodes: b.nodes}
}

// grow appends the subtree for idx and returns its node index.
func (b *builder) grow(idx []int, depth int) int {
	counts := b.classCounts(idx)
	at := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1})

	if isPure(counts) || len(idx) < b.params.MinSamplesSplit ||
		(b.params.MaxDepth > 0 && depth >= b.params.MaxDepth) {
		b.nodes[at].Dist = distribution(counts, len(idx))
		return at
	}

	best, ok := b.bestSplit(idx)
	if !ok {
		b.nodes[at].Dist = distribution(counts, len(idx))
		return at
	}

	var left, right []int
	for _, i := range idx {
		if b.X[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[at] = Node{Feature: best.feature, Threshold: best.threshold, Left: l, Right: r}
	return at
}

// bestSplit visits features in random order until MaxFeatures non-constant
// ones have been evaluated, keeping the split with the lowest impurity.
func (b *builder) bestSplit(idx []int) (split, bool) {
	best := split{impurity: 2}
	found := false
	tried := 0
	for _, f := range b.rng.Perm(len(b.X[0])) {
		if tried >= b.params.MaxFeatures {
			break
		}
		s, ok := b.splitOn(idx, f)
		if !ok {
			continue
		}
		tried++
		if s.impurity < best.impurity {
			best = s
			found = true
		}
	}
	return best, found
}

// splitOn finds the best threshold for feature f. It reports false when
// the feature is constant over idx.
func (b *builder) splitOn(idx []int, f int) (split, bool) {
	order := slices.Clone(idx)
	slices.SortStableFunc(order, func(a, c int) int {
		va, vc := b.X[a][f], b.X[c][f]
		switch {
		case va < vc:
			return -1
		case va > vc:
			return 1
		}
		return 0
	})
	if b.X[order[0]][f] == b.X[order[len(order)-1]][f] {
		return split{}, false
	}

	total := len(order)
	right := b.classCounts(order)
	left := make([]int, b.numClasses)
	best := split{feature: f, impurity: 2}
	for k := 0; k < total-1; k++ {
		c := b.y[order[k]]
		left[c]++
		right[c]--
		cur, next := b.X[order[k]][f], b.X[order[k+1]][f]
		if cur == next {
			continue
		}
		nl, nr := k+1, total-k-1
		imp := (float64(nl)*gini(left, nl) + float64(nr)*gini(right, nr)) / float64(total)
		if imp < best.impurity {
			best.impurity = imp
			best.threshold = cur + (next-cur)/2
		}
	}
	return best, true
}

func (b *builder) classCounts(idx []int) []int {
	counts := make([]int, b.numClasses)
	for _, i := range idx {
		counts[b.y[i]]++
	}
	return counts
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		sum += p * p
	}
	return 1 - sum
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func distribution(counts []int, n int) []float64 {
	d := make([]float64, len(counts))
	if n == 0 {
		return d
	}
	for i, c := range counts {
		d[i] = float64(c) / float64(n)
	}
	return d
}
