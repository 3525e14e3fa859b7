package predictor

import (
	"math"
	"math/rand"
	"sort"
)

// Node is a regression tree node. Leaves carry Value; splits send
// x[Feature] <= Threshold to Left.
type Node struct {
	Leaf      bool
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
}

type Tree struct {
	Nodes []Node
}

func (t Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Forest is a bagged ensemble of regression trees.
type Forest struct {
	Trees []Tree
}

func (f Forest) Predict(x []float64) float64 {
	var sum float64
	for _, t := range f.Trees {
		sum += t.Predict(x)
	}
	return sum / float64(len(f.Trees))
}

type forestParams struct {
	trees    int
	maxDepth int
	minLeaf  int
	mtry     int
	seed     int64
}

// fitForest trains on X/y and returns per-feature importance (total SSE
// reduction, normalised to sum to 1).
func fitForest(X [][]float64, y []float64, p forestParams) (Forest, []float64) {
	nFeatures := len(X[0])
	importance := make([]float64, nFeatures)
	f := Forest{Trees: make([]Tree, 0, p.trees)}

	for t := 0; t < p.trees; t++ {
		rng := rand.New(rand.NewSource(p.seed + int64(t)))
		idx := make([]int, len(y))
		for i := range idx {
			idx[i] = rng.Intn(len(y))
		}
		b := &treeBuilder{X: X, y: y, p: p, rng: rng, importance: importance}
		b.build(idx, 0)
		f.Trees = append(f.Trees, Tree{Nodes: b.nodes})
	}

	var total float64
	for _, v := range importance {
		total += v
	}
	if total > 0 {
		for i := range importance {
			importance[i] /= total
		}
	}
	return f, importance
}

type treeBuilder struct {
	X          [][]float64
	y          []float64
	p          forestParams
	rng        *rand.Rand
	nodes      []Node
	importance []float64
}

func (b *treeBuilder) build(idx []int, depth int) int {
	sum, sumSq := b.sums(idx)
	n := float64(len(idx))
	at := len(b.nodes)
	b.nodes = append(b.nodes, Node{Leaf: true, Value: sum / n})

	parentSSE := sumSq - sum*sum/n
	if depth >= b.p.maxDepth || len(idx) < 2*b.p.minLeaf || parentSSE <= 1e-12 {
		return at
	}

	feature, threshold, gain, ok := b.bestSplit(idx, parentSSE)
	if !ok {
		return at
	}
	var left, right []int
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	b.importance[feature] += gain

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[at] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r, Value: sum / n}
	return at
}

func (b *treeBuilder) sums(idx []int) (float64, float64) {
	var s, sq float64
	for _, i := range idx {
		s += b.y[i]
		sq += b.y[i] * b.y[i]
	}
	return s, sq
}

func (b *treeBuilder) bestSplit(idx []int, parentSSE float64) (int, float64, float64, bool) {
	nFeatures := len(b.X[0])
	candidates := b.rng.Perm(nFeatures)[:b.p.mtry]
	sort.Ints(candidates)

	bestGain := 1e-12
	bestFeature, bestThreshold := -1, 0.0
	sorted := make([]int, len(idx))

	for _, f := range candidates {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(i, j int) bool { return b.X[sorted[i]][f] < b.X[sorted[j]][f] })

		totalSum, totalSq := b.sums(sorted)
		var leftSum, leftSq float64
		n := len(sorted)
		for k := 1; k < n; k++ {
			yv := b.y[sorted[k-1]]
			leftSum += yv
			leftSq += yv * yv
			if k < b.p.minLeaf || n-k < b.p.minLeaf {
				continue
			}
			lo, hi := b.X[sorted[k-1]][f], b.X[sorted[k]][f]
			if lo == hi {
				continue
			}
			nl, nr := float64(k), float64(n-k)
			rightSum, rightSq := totalSum-leftSum, totalSq-leftSq
			sse := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			if gain := parentSSE - sse; gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
			}
		}
	}
	if bestFeature < 0 {
		return 0, 0, 0, false
	}
	return bestFeature, bestThreshold, bestGain, true
}

func featureCount(fraction float64, p int) int {
	m := int(math.Round(fraction * float64(p)))
	if m < 1 {
		m = 1
	}
	if m > p {
		m = p
	}
	return m
}
