// Package classifier provides the estimators compared by the study. Every
// model is fitted on a feature matrix with integer class labels 0..k-1 and
// reports probabilities with one column per class.
package classifier

import (
	"fmt"
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Model is the capability set the evaluation harness relies on.
type Model interface {
	Name() string
	Fit(x mat.Matrix, y []int) error
	Predict(x mat.Matrix) ([]int, error)
	PredictProba(x mat.Matrix) (*mat.Dense, error)
}

var (
	ErrNotFitted       = errors.New("model is not fitted")
	ErrNoSamples       = errors.New("no samples to fit")
	ErrLabelMismatch   = errors.New("number of labels does not match number of rows")
	ErrNegativeLabel   = errors.New("labels must be non-negative")
	ErrSingleClass     = errors.New("at least two classes are required")
	ErrFeatureMismatch = errors.New("number of features differs from fitted model")
)

// checkFit validates a training set and returns its shape and class count.
func checkFit(x mat.Matrix, y []int) (n, p, k int, err error) {
	n, p = x.Dims()
	if n == 0 {
		return 0, 0, 0, ErrNoSamples
	}

	if n != len(y) {
		return 0, 0, 0, errors.Wrapf(ErrLabelMismatch, "%d rows, %d labels", n, len(y))
	}

	seen := make(map[int]struct{})
	for _, c := range y {
		if c < 0 {
			return 0, 0, 0, errors.Wrapf(ErrNegativeLabel, "label %d", c)
		}

		if c+1 > k {
			k = c + 1
		}

		seen[c] = struct{}{}
	}

	if len(seen) < 2 {
		return 0, 0, 0, ErrSingleClass
	}

	return n, p, k, nil
}

func checkPredict(x mat.Matrix, fitted bool, features int) error {
	if !fitted {
		return ErrNotFitted
	}

	_, p := x.Dims()
	if p != features {
		return errors.Wrapf(ErrFeatureMismatch, "got %d, fitted on %d", p, features)
	}

	return nil
}

// sparseRow holds the non-zero entries of one row with ascending indices.
type sparseRow struct {
	idx  []int
	vals []float64
}

func (r sparseRow) at(j int) float64 {
	k := sort.SearchInts(r.idx, j)
	if k < len(r.idx) && r.idx[k] == j {
		return r.vals[k]
	}

	return 0
}

// eachNonZero calls fn for every non-zero element in row i of x. Matrices that
// know their sparsity pattern are asked for it directly.
func eachNonZero(x mat.Matrix, i int, fn func(j int, v float64)) {
	if nz, ok := x.(mat.RowNonZeroDoer); ok {
		nz.DoRowNonZero(i, func(_, j int, v float64) {
			if v != 0 {
				fn(j, v)
			}
		})

		return
	}

	_, c := x.Dims()
	for j := 0; j < c; j++ {
		if v := x.At(i, j); v != 0 {
			fn(j, v)
		}
	}
}

func sparseRows(x mat.Matrix) []sparseRow {
	n, _ := x.Dims()

	rows := make([]sparseRow, n)
	for i := range rows {
		var r sparseRow
		eachNonZero(x, i, func(j int, v float64) {
			r.idx = append(r.idx, j)
			r.vals = append(r.vals, v)
		})

		if !sort.IntsAreSorted(r.idx) {
			sort.Sort(byIndex(r))
		}

		rows[i] = r
	}

	return rows
}

type byIndex sparseRow

func (b byIndex) Len() int           { return len(b.idx) }
func (b byIndex) Less(i, j int) bool { return b.idx[i] < b.idx[j] }
func (b byIndex) Swap(i, j int) {
	b.idx[i], b.idx[j] = b.idx[j], b.idx[i]
	b.vals[i], b.vals[j] = b.vals[j], b.vals[i]
}

// argmax returns the most probable class of every row, the lowest class index
// winning ties.
func argmax(proba *mat.Dense) []int {
	r, c := proba.Dims()

	res := make([]int, r)
	for i := 0; i < r; i++ {
		best := 0
		for j := 1; j < c; j++ {
			if proba.At(i, j) > proba.At(i, best) {
				best = j
			}
		}

		res[i] = best
	}

	return res
}

// sigmoid is the logistic function, evaluated without overflow for large |z|.
func sigmoid(z float64) float64 {
	if math.IsNaN(z) {
		panic(fmt.Sprintf("sigmoid of %f", z))
	}

	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}

	e := math.Exp(z)

	return e / (1 + e)
}

// softplus computes log(1 + exp(a)).
func softplus(a float64) float64 {
	return math.Max(a, 0) + math.Log1p(math.Exp(-math.Abs(a)))
}
