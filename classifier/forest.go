package classifier

import (
	"log/slog"
	"math"
	"math/rand"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

type ForestOptions struct {
	NumTrees        int
	Criterion       Criterion
	MaxFeatures     int // 0 means sqrt of the number of features
	MaxDepth        int // 0 means unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	Bootstrap       bool
	OOBScore        bool
	Seed            int64
	Workers         int // 0 means GOMAXPROCS
}

func DefaultForestOptions() ForestOptions {
	return ForestOptions{
		NumTrees:        50,
		Criterion:       Entropy,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		Seed:            42,
	}
}

// Forest averages the class distributions of bootstrap-aggregated decision
// trees.
type Forest struct {
	opts   ForestOptions
	logger *slog.Logger

	trees    []*tree
	classes  int
	features int

	oob    float64
	hasOOB bool
}

func NewForest(opts ForestOptions, logger *slog.Logger) *Forest {
	if logger == nil {
		logger = slog.Default()
	}

	return &Forest{
		opts:   opts,
		logger: logger,
	}
}

func (f *Forest) Name() string {
	return "random forest"
}

func (f *Forest) params(p int) (treeParams, error) {
	o := f.opts

	if o.NumTrees < 1 {
		return treeParams{}, errors.Errorf("invalid number of trees %d", o.NumTrees)
	}

	if o.Criterion != Entropy && o.Criterion != Gini {
		return treeParams{}, errors.Errorf("unknown criterion %q", o.Criterion)
	}

	if o.OOBScore && !o.Bootstrap {
		return treeParams{}, errors.New("out-of-bag score requires bootstrap")
	}

	params := treeParams{
		criterion:       o.Criterion,
		maxFeatures:     o.MaxFeatures,
		maxDepth:        o.MaxDepth,
		minSamplesSplit: max(o.MinSamplesSplit, 2),
		minSamplesLeaf:  max(o.MinSamplesLeaf, 1),
	}

	if params.maxFeatures <= 0 {
		params.maxFeatures = max(int(math.Sqrt(float64(p))), 1)
	}

	return params, nil
}

// Fit grows the trees concurrently. Tree i draws from its own source seeded
// with Seed+i, so the result does not depend on scheduling.
func (f *Forest) Fit(x mat.Matrix, y []int) error {
	n, p, k, err := checkFit(x, y)
	if err != nil {
		return err
	}

	params, err := f.params(p)
	if err != nil {
		return err
	}

	rows := sparseRows(x)

	trees := make([]*tree, f.opts.NumTrees)
	weights := make([][]float64, f.opts.NumTrees)

	workers := f.opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var g errgroup.Group
	g.SetLimit(workers)

	for i := range trees {
		g.Go(func() error {
			rng := rand.New(rand.NewSource(f.opts.Seed + int64(i)))

			w := make([]float64, n)
			if f.opts.Bootstrap {
				for range n {
					w[rng.Intn(n)]++
				}
			} else {
				for s := range w {
					w[s] = 1
				}
			}

			weights[i] = w
			trees[i] = growTree(params, rows, y, w, k, rng)

			return nil
		})
	}

	err = g.Wait()
	if err != nil {
		return errors.Wrap(err, "growing trees")
	}

	f.trees = trees
	f.classes = k
	f.features = p
	f.hasOOB = false

	if f.opts.OOBScore {
		f.oob, f.hasOOB = oobAccuracy(trees, weights, rows, y, k)
		if !f.hasOOB {
			f.logger.Warn("no out-of-bag samples, score unavailable", "trees", len(trees))
		}
	}

	f.logger.Debug("forest fitted", "trees", len(trees), "rows", n, "features", p, "max_features", params.maxFeatures)

	return nil
}

// oobAccuracy scores each sample with the trees that did not see it. Samples
// that were in every bootstrap draw are skipped.
func oobAccuracy(trees []*tree, weights [][]float64, rows []sparseRow, y []int, k int) (float64, bool) {
	sums := make([]float64, k)

	correct, scored := 0, 0
	for s, r := range rows {
		clear(sums)
		votes := 0

		for i, t := range trees {
			if weights[i][s] > 0 {
				continue
			}

			for c, v := range t.leaf(r) {
				sums[c] += v
			}
			votes++
		}

		if votes == 0 {
			continue
		}

		best := 0
		for c := 1; c < k; c++ {
			if sums[c] > sums[best] {
				best = c
			}
		}

		if best == y[s] {
			correct++
		}
		scored++
	}

	if scored == 0 {
		return 0, false
	}

	return float64(correct) / float64(scored), true
}

// OOBScore returns the out-of-bag accuracy of the last fit, if it was
// requested and at least one sample was out of bag.
func (f *Forest) OOBScore() (float64, bool) {
	return f.oob, f.hasOOB
}

func (f *Forest) PredictProba(x mat.Matrix) (*mat.Dense, error) {
	err := checkPredict(x, f.trees != nil, f.features)
	if err != nil {
		return nil, err
	}

	rows := sparseRows(x)
	if len(rows) == 0 {
		return &mat.Dense{}, nil
	}

	proba := mat.NewDense(len(rows), f.classes, nil)

	scale := 1 / float64(len(f.trees))
	for i, r := range rows {
		out := proba.RawRowView(i)
		for _, t := range f.trees {
			for c, v := range t.leaf(r) {
				out[c] += v
			}
		}

		for c := range out {
			out[c] *= scale
		}
	}

	return proba, nil
}

func (f *Forest) Predict(x mat.Matrix) ([]int, error) {
	proba, err := f.PredictProba(x)
	if err != nil {
		return nil, err
	}

	return argmax(proba), nil
}
