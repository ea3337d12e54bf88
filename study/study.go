// Package study runs the full pipeline on a loaded corpus: clean, encode,
// vectorize, split, then fit and score every model on the same split.
package study

import (
	"context"
	"hash/fnv"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"spamstudy/classifier"
	"spamstudy/config"
	"spamstudy/corpus"
	"spamstudy/dataset"
	"spamstudy/evaluate"
	"spamstudy/filtered"
	"spamstudy/labels"
	"spamstudy/vectorize"
)

// ErrNotBinary is returned when the corpus does not hold exactly two labels.
var ErrNotBinary = errors.New("corpus must contain exactly two labels")

type Summary struct {
	Records     int            `json:"records"`
	Fingerprint string         `json:"fingerprint"`
	Classes     []string       `json:"classes"`
	ClassCounts map[string]int `json:"class_counts"`
	Vocabulary  int            `json:"vocabulary"`
	Rows        int            `json:"rows"`
	Cols        int            `json:"cols"`
	NonZero     int            `json:"non_zero"`
	Train       int            `json:"train"`
	Test        int            `json:"test"`
	Seed        int64          `json:"seed"`
}

type ModelResult struct {
	Model   string          `json:"model"`
	Report  evaluate.Report `json:"report"`
	Elapsed time.Duration   `json:"elapsed_ns"`

	// Out-of-bag accuracy of a forest fitted on every row, forest only
	OOBScore *float64 `json:"oob_score,omitempty"`
}

type Result struct {
	RunID   string        `json:"run_id"`
	Started time.Time     `json:"started"`
	Summary Summary       `json:"summary"`
	Models  []ModelResult `json:"models"`
}

// Fingerprint identifies a corpus by its content, so runs over the same data
// can be found again.
func Fingerprint(records []corpus.Record) string {
	h := fnv.New64a()
	for _, r := range records {
		_, _ = h.Write([]byte(r.Label))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(r.Text))
		_, _ = h.Write([]byte{0})
	}

	return strconv.FormatUint(h.Sum64(), 16)
}

// Models returns the estimators compared by a run, in report order.
func Models(cfg config.Config, seed int64, logger *slog.Logger) []classifier.Model {
	fo := cfg.ForestOptions()
	fo.Seed = seed

	return []classifier.Model{
		classifier.NewForest(fo, logger.With("model", "random forest")),
		classifier.NewLogistic(cfg.LogisticOptions(), logger.With("model", "logistic regression")),
		classifier.NewGaussianNB(cfg.Bayes.VarSmoothing),
	}
}

// Run executes one study. Models are fitted concurrently and reported in the
// order returned by Models.
func Run(ctx context.Context, records []corpus.Record, cfg config.Config, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	res := Result{
		RunID:   uuid.NewString(),
		Started: time.Now(),
	}

	logger = logger.With("run", res.RunID)

	texts := filtered.CleanAll(corpus.Texts(records))
	names := corpus.Labels(records)

	enc := labels.Fit(names)
	if len(enc.Classes()) != 2 {
		return Result{}, errors.Wrapf(ErrNotBinary, "found %v", enc.Classes())
	}

	y, err := enc.TransformAll(names)
	if err != nil {
		return Result{}, errors.Wrap(err, "encoding labels")
	}

	vec := vectorize.New(cfg.VectorizerOptions())

	x, vocab, err := vec.FitTransform(texts)
	if err != nil {
		return Result{}, errors.Wrap(err, "vectorizing corpus")
	}

	seed := time.Now().UnixNano()
	if cfg.Split.Seed != nil {
		seed = *cfg.Split.Seed
	}

	split, err := dataset.SplitRows(y, cfg.Split.TestFraction, &seed)
	if err != nil {
		return Result{}, errors.Wrap(err, "splitting rows")
	}

	rows, cols := x.Dims()
	res.Summary = Summary{
		Records:     len(records),
		Fingerprint: Fingerprint(records),
		Classes:     enc.Classes(),
		ClassCounts: lo.CountValues(names),
		Vocabulary:  len(vocab),
		Rows:        rows,
		Cols:        cols,
		NonZero:     x.NonZero(),
		Train:       len(split.Train),
		Test:        len(split.Test),
		Seed:        seed,
	}

	logger.Info("corpus prepared",
		"records", res.Summary.Records,
		"classes", res.Summary.ClassCounts,
		"vocab", res.Summary.Vocabulary,
		"non_zero", res.Summary.NonZero,
		"train", res.Summary.Train,
		"test", res.Summary.Test,
		"seed", seed,
	)

	xTrain := x.Select(split.Train)
	xTest := x.Select(split.Test)

	models := Models(cfg, seed, logger)
	res.Models = make([]ModelResult, len(models))

	g, ctx := errgroup.WithContext(ctx)

	for i, m := range models {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			mr, err := fitAndScore(m, xTrain, split.TrainLabels, xTest, split.TestLabels)
			if err != nil {
				return errors.Wrapf(err, "running %s", m.Name())
			}

			logger.Info("model scored", "model", mr.Model, "accuracy", mr.Report.Accuracy, "auc", mr.Report.AUC, "elapsed", mr.Elapsed)

			res.Models[i] = mr

			return nil
		})
	}

	var oob *float64
	if cfg.Forest.OOB {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			score, ok, err := outOfBag(cfg, seed, x, y, logger)
			if err != nil {
				return errors.Wrap(err, "estimating out-of-bag accuracy")
			}

			if ok {
				oob = &score
			}

			return nil
		})
	}

	err = g.Wait()
	if err != nil {
		return Result{}, err
	}

	attachOOB(models, res.Models, oob)

	return res, nil
}

// oobScorer is implemented by ensembles that can estimate their own accuracy.
type oobScorer interface {
	OOBScore() (float64, bool)
}

// attachOOB sets score on the results of the models that produce out-of-bag
// estimates, wherever they are in the list.
func attachOOB(models []classifier.Model, results []ModelResult, score *float64) {
	for i, m := range models {
		if _, ok := m.(oobScorer); ok {
			results[i].OOBScore = score
		}
	}
}

func fitAndScore(m classifier.Model, xTrain mat.Matrix, yTrain []int, xTest mat.Matrix, yTest []int) (ModelResult, error) {
	start := time.Now()

	err := m.Fit(xTrain, yTrain)
	if err != nil {
		return ModelResult{}, errors.Wrap(err, "fitting")
	}

	pred, err := m.Predict(xTest)
	if err != nil {
		return ModelResult{}, errors.Wrap(err, "predicting")
	}

	proba, err := m.PredictProba(xTest)
	if err != nil {
		return ModelResult{}, errors.Wrap(err, "predicting probabilities")
	}

	report, err := evaluate.Evaluate(yTest, pred, proba)
	if err != nil {
		return ModelResult{}, errors.Wrap(err, "evaluating")
	}

	return ModelResult{
		Model:   m.Name(),
		Report:  report,
		Elapsed: time.Since(start),
	}, nil
}

// outOfBag fits a second forest on every row and returns its out-of-bag
// accuracy.
func outOfBag(cfg config.Config, seed int64, x mat.Matrix, y []int, logger *slog.Logger) (float64, bool, error) {
	opts := cfg.ForestOptions()
	opts.Seed = seed
	opts.OOBScore = true
	opts.Bootstrap = true

	f := classifier.NewForest(opts, logger.With("model", "random forest", "fit", "oob"))

	err := f.Fit(x, y)
	if err != nil {
		return 0, false, err
	}

	score, ok := f.OOBScore()

	return score, ok, nil
}
