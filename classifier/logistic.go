package classifier

import (
	"log/slog"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

type LogisticOptions struct {
	C       float64 // inverse regularization strength
	MaxIter int
	Tol     float64 // gradient norm at which optimization stops
}

func DefaultLogisticOptions() LogisticOptions {
	return LogisticOptions{
		C:       1.0,
		MaxIter: 100,
		Tol:     1e-4,
	}
}

// Logistic is an L2-regularized logistic regression fitted with L-BFGS. More
// than two classes are handled one-vs-rest.
type Logistic struct {
	opts   LogisticOptions
	logger *slog.Logger

	// One coefficient vector per binary problem, the intercept last
	coef     [][]float64
	classes  int
	features int
}

func NewLogistic(opts LogisticOptions, logger *slog.Logger) *Logistic {
	if logger == nil {
		logger = slog.Default()
	}

	return &Logistic{
		opts:   opts,
		logger: logger,
	}
}

func (l *Logistic) Name() string {
	return "logistic regression"
}

// binaryProblem is the objective
//
//	0.5*|w|^2 + C * sum_i log(1 + exp(-s_i*(w.x_i + b)))
//
// with s_i = +1 for the target class and -1 otherwise. The intercept b is not
// penalized.
type binaryProblem struct {
	rows   []sparseRow
	target []bool
	c      float64
	p      int
}

func (bp *binaryProblem) margin(r sparseRow, params []float64) float64 {
	z := params[bp.p]
	for k, j := range r.idx {
		z += params[j] * r.vals[k]
	}

	return z
}

func (bp *binaryProblem) loss(params []float64) float64 {
	w := params[:bp.p]
	f := 0.5 * floats.Dot(w, w)

	for i, r := range bp.rows {
		z := bp.margin(r, params)
		if bp.target[i] {
			f += bp.c * softplus(-z)
		} else {
			f += bp.c * softplus(z)
		}
	}

	return f
}

func (bp *binaryProblem) grad(grad, params []float64) {
	copy(grad[:bp.p], params[:bp.p])
	grad[bp.p] = 0

	for i, r := range bp.rows {
		d := sigmoid(bp.margin(r, params))
		if bp.target[i] {
			d -= 1
		}
		d *= bp.c

		for k, j := range r.idx {
			grad[j] += d * r.vals[k]
		}
		grad[bp.p] += d
	}
}

func (l *Logistic) Fit(x mat.Matrix, y []int) error {
	n, p, k, err := checkFit(x, y)
	if err != nil {
		return err
	}

	if l.opts.C <= 0 {
		return errors.Errorf("invalid regularization strength %g", l.opts.C)
	}

	rows := sparseRows(x)

	// Two classes need a single problem for class 1
	targets := []int{1}
	if k > 2 {
		targets = make([]int, k)
		for c := range targets {
			targets[c] = c
		}
	}

	coef := make([][]float64, len(targets))
	for t, class := range targets {
		bp := &binaryProblem{
			rows:   rows,
			target: make([]bool, n),
			c:      l.opts.C,
			p:      p,
		}

		for i, c := range y {
			bp.target[i] = c == class
		}

		coef[t], err = l.minimize(bp, class)
		if err != nil {
			return errors.Wrapf(err, "fitting class %d", class)
		}
	}

	l.coef = coef
	l.classes = k
	l.features = p

	return nil
}

func (l *Logistic) minimize(bp *binaryProblem, class int) ([]float64, error) {
	problem := optimize.Problem{
		Func: bp.loss,
		Grad: bp.grad,
	}

	settings := &optimize.Settings{
		MajorIterations:   l.opts.MaxIter,
		GradientThreshold: l.opts.Tol,
	}

	init := make([]float64, bp.p+1)

	result, err := optimize.Minimize(problem, init, settings, &optimize.LBFGS{})
	if err != nil {
		if result == nil {
			return nil, errors.Wrap(err, "minimizing loss")
		}

		// Line search trouble near the optimum still leaves a usable point
		l.logger.Warn("optimizer stopped early", "class", class, "status", result.Status.String(), "error", err)
	}

	if result.Status == optimize.IterationLimit {
		l.logger.Warn("optimizer did not converge", "class", class, "iterations", result.Stats.MajorIterations)
	}

	l.logger.Debug("logistic fitted", "class", class, "loss", result.F, "iterations", result.Stats.MajorIterations)

	return result.X, nil
}

func (l *Logistic) PredictProba(x mat.Matrix) (*mat.Dense, error) {
	err := checkPredict(x, l.coef != nil, l.features)
	if err != nil {
		return nil, err
	}

	rows := sparseRows(x)
	if len(rows) == 0 {
		return &mat.Dense{}, nil
	}

	proba := mat.NewDense(len(rows), l.classes, nil)
	bp := binaryProblem{p: l.features}

	for i, r := range rows {
		out := proba.RawRowView(i)

		if l.classes == 2 {
			s := sigmoid(bp.margin(r, l.coef[0]))
			out[0], out[1] = 1-s, s

			continue
		}

		for c, params := range l.coef {
			out[c] = sigmoid(bp.margin(r, params))
		}

		if sum := floats.Sum(out); sum > 0 {
			floats.Scale(1/sum, out)
		}
	}

	return proba, nil
}

func (l *Logistic) Predict(x mat.Matrix) ([]int, error) {
	proba, err := l.PredictProba(x)
	if err != nil {
		return nil, err
	}

	return argmax(proba), nil
}
