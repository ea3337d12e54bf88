package classifier

import (
	"cmp"
	"math"
	"math/rand"
	"slices"
)

// Criterion is the impurity measure used to choose splits.
type Criterion string

const (
	Entropy Criterion = "entropy"
	Gini    Criterion = "gini"
)

func (c Criterion) impurity(w []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}

	res := 0.0
	switch c {
	case Gini:
		res = 1
		for _, v := range w {
			p := v / total
			res -= p * p
		}
	default:
		for _, v := range w {
			if v > 0 {
				p := v / total
				res -= p * math.Log2(p)
			}
		}
	}

	return res
}

type treeNode struct {
	feature   int // -1 for leaves
	threshold float64
	left      int
	right     int
	proba     []float64 // leaves only
}

// tree is a fitted decision tree. Samples with x[feature] <= threshold go left.
type tree struct {
	nodes []treeNode
}

func (t *tree) leaf(r sparseRow) []float64 {
	n := &t.nodes[0]
	for n.feature >= 0 {
		if r.at(n.feature) <= n.threshold {
			n = &t.nodes[n.left]
		} else {
			n = &t.nodes[n.right]
		}
	}

	return n.proba
}

type treeParams struct {
	criterion       Criterion
	maxFeatures     int
	maxDepth        int // 0 for unlimited
	minSamplesSplit int
	minSamplesLeaf  int
}

type entry struct {
	feature int
	val     float64
	sample  int
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

// treeBuilder grows one tree. weights holds the multiplicity of each sample in
// the bootstrap draw; samples with weight 0 are left out.
type treeBuilder struct {
	params  treeParams
	rows    []sparseRow
	y       []int
	weights []float64
	classes int
	rng     *rand.Rand

	t      tree
	left   []bool
	leftW  []float64
	rightW []float64
}

type pending struct {
	node    int
	samples []int
	depth   int
}

func growTree(params treeParams, rows []sparseRow, y []int, weights []float64, classes int, rng *rand.Rand) *tree {
	b := &treeBuilder{
		params:  params,
		rows:    rows,
		y:       y,
		weights: weights,
		classes: classes,
		rng:     rng,
		left:    make([]bool, len(rows)),
		leftW:   make([]float64, classes),
		rightW:  make([]float64, classes),
	}

	var root []int
	for i, w := range weights {
		if w > 0 {
			root = append(root, i)
		}
	}

	b.t.nodes = append(b.t.nodes, treeNode{feature: -1})
	stack := []pending{{node: 0, samples: root}}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		l, r, ok := b.expand(cur)
		if ok {
			stack = append(stack, r, l)
		}
	}

	return &b.t
}

func (b *treeBuilder) classWeights(samples []int) ([]float64, float64) {
	w := make([]float64, b.classes)
	total := 0.0
	for _, s := range samples {
		w[b.y[s]] += b.weights[s]
		total += b.weights[s]
	}

	return w, total
}

func (b *treeBuilder) makeLeaf(node int, w []float64, total float64) {
	proba := make([]float64, b.classes)
	for c := range proba {
		proba[c] = w[c] / total
	}

	b.t.nodes[node] = treeNode{feature: -1, proba: proba}
}

// expand either splits cur into two children or turns it into a leaf.
func (b *treeBuilder) expand(cur pending) (pending, pending, bool) {
	w, total := b.classWeights(cur.samples)
	impurity := b.params.criterion.impurity(w, total)

	if impurity <= 0 ||
		len(cur.samples) < b.params.minSamplesSplit ||
		len(cur.samples) < 2*b.params.minSamplesLeaf ||
		(b.params.maxDepth > 0 && cur.depth >= b.params.maxDepth) {
		b.makeLeaf(cur.node, w, total)
		return pending{}, pending{}, false
	}

	segments := b.candidates(cur.samples)

	best := split{feature: -1, gain: math.Inf(-1)}
	for _, seg := range segments {
		s, ok := b.bestSplit(seg, cur.samples, w, total, impurity)
		if ok && s.gain > best.gain {
			best = s
		}
	}

	if best.feature < 0 {
		b.makeLeaf(cur.node, w, total)
		return pending{}, pending{}, false
	}

	zeroLeft := 0 <= best.threshold
	for _, s := range cur.samples {
		b.left[s] = zeroLeft
	}

	for _, s := range cur.samples {
		if v := b.rows[s].at(best.feature); v != 0 {
			b.left[s] = v <= best.threshold
		}
	}

	var ls, rs []int
	for _, s := range cur.samples {
		if b.left[s] {
			ls = append(ls, s)
		} else {
			rs = append(rs, s)
		}
	}

	li := len(b.t.nodes)
	b.t.nodes = append(b.t.nodes, treeNode{feature: -1}, treeNode{feature: -1})

	b.t.nodes[cur.node] = treeNode{
		feature:   best.feature,
		threshold: best.threshold,
		left:      li,
		right:     li + 1,
	}

	return pending{node: li, samples: ls, depth: cur.depth + 1},
		pending{node: li + 1, samples: rs, depth: cur.depth + 1},
		true
}

// candidates returns the non-zero entries of up to maxFeatures randomly drawn
// features that are not constant within samples, one segment per feature
// sorted by value. Features absent from every sample are constant zero and
// never drawn.
func (b *treeBuilder) candidates(samples []int) [][]entry {
	var entries []entry
	for _, s := range samples {
		r := b.rows[s]
		for k, j := range r.idx {
			entries = append(entries, entry{feature: j, val: r.vals[k], sample: s})
		}
	}

	slices.SortFunc(entries, func(a, c entry) int {
		if n := cmp.Compare(a.feature, c.feature); n != 0 {
			return n
		}

		if n := cmp.Compare(a.val, c.val); n != 0 {
			return n
		}

		return cmp.Compare(a.sample, c.sample)
	})

	var segments [][]entry
	for start := 0; start < len(entries); {
		end := start + 1
		for end < len(entries) && entries[end].feature == entries[start].feature {
			end++
		}

		seg := entries[start:end]
		if len(seg) < len(samples) || seg[0].val != seg[len(seg)-1].val {
			segments = append(segments, seg)
		}

		start = end
	}

	m := b.params.maxFeatures
	if m > len(segments) {
		m = len(segments)
	}

	// Partial Fisher-Yates, the first m segments are the draw
	for i := 0; i < m; i++ {
		j := i + b.rng.Intn(len(segments)-i)
		segments[i], segments[j] = segments[j], segments[i]
	}

	return segments[:m]
}

// bestSplit sweeps the distinct values of one feature in ascending order. The
// samples missing from seg all hold zero and form one group of their own.
func (b *treeBuilder) bestSplit(seg []entry, samples []int, w []float64, total, impurity float64) (split, bool) {
	zeroN := len(samples) - len(seg)
	zeroW := make([]float64, b.classes)
	copy(zeroW, w)
	for _, e := range seg {
		zeroW[b.y[e.sample]] -= b.weights[e.sample]
	}

	clear(b.leftW)
	leftN, leftTotal := 0, 0.0

	best := split{feature: -1, gain: math.Inf(-1)}
	prev := 0.0

	consider := func(next float64) {
		if leftN < b.params.minSamplesLeaf || len(samples)-leftN < b.params.minSamplesLeaf {
			return
		}

		for c := range b.rightW {
			b.rightW[c] = w[c] - b.leftW[c]
		}

		rightTotal := total - leftTotal
		gain := impurity -
			leftTotal/total*b.params.criterion.impurity(b.leftW, leftTotal) -
			rightTotal/total*b.params.criterion.impurity(b.rightW, rightTotal)

		if gain > best.gain {
			threshold := prev/2 + next/2
			if threshold >= next {
				threshold = prev
			}

			best = split{feature: seg[0].feature, threshold: threshold, gain: gain}
		}
	}

	zeroDone := zeroN == 0
	for i := 0; i < len(seg) || !zeroDone; {
		if !zeroDone && (i == len(seg) || seg[i].val > 0) {
			if leftN > 0 {
				consider(0)
			}

			for c, v := range zeroW {
				b.leftW[c] += v
				leftTotal += v
			}

			leftN += zeroN
			prev = 0
			zeroDone = true

			continue
		}

		v := seg[i].val
		if leftN > 0 {
			consider(v)
		}

		for i < len(seg) && seg[i].val == v {
			s := seg[i].sample
			b.leftW[b.y[s]] += b.weights[s]
			leftTotal += b.weights[s]
			leftN++
			i++
		}

		prev = v
	}

	return best, best.feature >= 0
}
