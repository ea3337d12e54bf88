package classifier

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// GaussianNB models every feature as an independent normal distribution per
// class. VarSmoothing times the largest feature variance is added to every
// variance.
type GaussianNB struct {
	VarSmoothing float64

	logPrior []float64
	mean     [][]float64 // [class][feature]
	variance [][]float64
	epsilon  float64

	// Joint log likelihood of the all-zero row, per class
	base []float64
}

func NewGaussianNB(varSmoothing float64) *GaussianNB {
	return &GaussianNB{VarSmoothing: varSmoothing}
}

func (g *GaussianNB) Name() string {
	return "naive bayes"
}

// columns transposes the given rows into per feature lists of (position,
// value) pairs.
func columns(rows []sparseRow, members []int, p int) ([][]int, [][]float64) {
	pos := make([][]int, p)
	vals := make([][]float64, p)

	for k, s := range members {
		r := rows[s]
		for m, j := range r.idx {
			pos[j] = append(pos[j], k)
			vals[j] = append(vals[j], r.vals[m])
		}
	}

	return pos, vals
}

// meanVariance computes the population mean and variance of every feature
// over members.
func meanVariance(rows []sparseRow, members []int, p int) ([]float64, []float64) {
	pos, vals := columns(rows, members, p)

	mean := make([]float64, p)
	variance := make([]float64, p)

	col := make([]float64, len(members))
	for j := 0; j < p; j++ {
		for k, at := range pos[j] {
			col[at] = vals[j][k]
		}

		mean[j], variance[j] = stat.PopMeanVariance(col, nil)

		for _, at := range pos[j] {
			col[at] = 0
		}
	}

	return mean, variance
}

func (g *GaussianNB) Fit(x mat.Matrix, y []int) error {
	n, p, k, err := checkFit(x, y)
	if err != nil {
		return err
	}

	rows := sparseRows(x)

	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	_, total := meanVariance(rows, all, p)

	g.epsilon = g.VarSmoothing * floats.Max(total)
	if g.epsilon <= 0 {
		// All features constant, fall back to an absolute floor
		g.epsilon = math.Max(g.VarSmoothing, math.SmallestNonzeroFloat64)
	}

	members := make([][]int, k)
	for i, c := range y {
		members[c] = append(members[c], i)
	}

	g.logPrior = make([]float64, k)
	g.mean = make([][]float64, k)
	g.variance = make([][]float64, k)
	g.base = make([]float64, k)

	for c := 0; c < k; c++ {
		if len(members[c]) == 0 {
			// Class never observed, it can never win
			g.logPrior[c] = math.Inf(-1)
			g.mean[c] = make([]float64, p)
			g.variance[c] = make([]float64, p)
			floats.AddConst(1, g.variance[c])
			g.base[c] = math.Inf(-1)

			continue
		}

		g.logPrior[c] = math.Log(float64(len(members[c])) / float64(n))

		mean, variance := meanVariance(rows, members[c], p)
		floats.AddConst(g.epsilon, variance)

		base := g.logPrior[c]
		for j := range mean {
			base -= 0.5 * math.Log(2*math.Pi*variance[j])
			base -= 0.5 * mean[j] * mean[j] / variance[j]
		}

		g.mean[c] = mean
		g.variance[c] = variance
		g.base[c] = base
	}

	return nil
}

// jointLogLikelihood starts from the all-zero row and corrects the terms of
// the non-zero features.
func (g *GaussianNB) jointLogLikelihood(r sparseRow, dst []float64) {
	for c := range dst {
		jll := g.base[c]
		if !math.IsInf(jll, -1) {
			mean, variance := g.mean[c], g.variance[c]
			for k, j := range r.idx {
				v := r.vals[k]
				jll -= 0.5 * (v*v - 2*v*mean[j]) / variance[j]
			}
		}

		dst[c] = jll
	}
}

func (g *GaussianNB) PredictProba(x mat.Matrix) (*mat.Dense, error) {
	features := 0
	if g.mean != nil {
		features = len(g.mean[0])
	}

	err := checkPredict(x, g.mean != nil, features)
	if err != nil {
		return nil, err
	}

	rows := sparseRows(x)
	if len(rows) == 0 {
		return &mat.Dense{}, nil
	}

	proba := mat.NewDense(len(rows), len(g.base), nil)
	for i, r := range rows {
		out := proba.RawRowView(i)
		g.jointLogLikelihood(r, out)

		norm := floats.LogSumExp(out)
		for c := range out {
			out[c] = math.Exp(out[c] - norm)
		}
	}

	return proba, nil
}

func (g *GaussianNB) Predict(x mat.Matrix) ([]int, error) {
	proba, err := g.PredictProba(x)
	if err != nil {
		return nil, err
	}

	return argmax(proba), nil
}

// Theta returns the fitted mean of feature j in class c.
func (g *GaussianNB) Theta(c, j int) float64 {
	return g.mean[c][j]
}

// Sigma returns the fitted, smoothed variance of feature j in class c.
func (g *GaussianNB) Sigma(c, j int) float64 {
	return g.variance[c][j]
}
