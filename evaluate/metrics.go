// Package evaluate scores binary predictions against ground truth. Class 0 is
// ham and class 1 is spam; precision, recall and F1 refer to spam.
package evaluate

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	Negative = 0
	Positive = 1

	numClasses = 2
)

var (
	ErrLengthMismatch = errors.New("truth, predictions and probabilities differ in length")
	ErrProbaShape     = errors.New("probabilities must have one column per class")
	ErrLabelRange     = errors.New("label outside of {0, 1}")
	ErrSingleClass    = errors.New("truth contains a single class, ROC is undefined")
)

// Point is one (false positive rate, true positive rate) pair.
type Point struct {
	FPR float64 `json:"fpr"`
	TPR float64 `json:"tpr"`
}

// Curve is the ROC curve of one class, ordered by ascending false positive rate.
type Curve struct {
	Class  int     `json:"class"`
	Points []Point `json:"points"`
	AUC    float64 `json:"auc"`
}

type Report struct {
	Accuracy  float64   `json:"accuracy"`
	Precision float64   `json:"precision"`
	Recall    float64   `json:"recall"`
	F1        float64   `json:"f1"`
	ROC       []Curve   `json:"roc"`
	AUC       float64   `json:"auc"`       // of the positive class
	Confusion [2][2]int `json:"confusion"` // [true][predicted]
}

// Evaluate computes a Report. proba holds one row per sample and one column
// per class.
func Evaluate(truth, predicted []int, proba mat.Matrix) (Report, error) {
	rows, cols := proba.Dims()
	if len(truth) != len(predicted) || len(truth) != rows {
		return Report{}, ErrLengthMismatch
	}

	if cols != numClasses {
		return Report{}, ErrProbaShape
	}

	var r Report

	correct := 0
	for i, t := range truth {
		p := predicted[i]
		if t < 0 || t >= numClasses || p < 0 || p >= numClasses {
			return Report{}, errors.Wrapf(ErrLabelRange, "row %d", i)
		}

		r.Confusion[t][p]++
		if t == p {
			correct++
		}
	}

	if len(truth) > 0 {
		r.Accuracy = float64(correct) / float64(len(truth))
	}

	tp := r.Confusion[Positive][Positive]
	fp := r.Confusion[Negative][Positive]
	fn := r.Confusion[Positive][Negative]

	r.Precision = ratio(tp, tp+fp)
	r.Recall = ratio(tp, tp+fn)
	if r.Precision+r.Recall > 0 {
		r.F1 = 2 * r.Precision * r.Recall / (r.Precision + r.Recall)
	}

	r.ROC = make([]Curve, numClasses)
	for c := 0; c < numClasses; c++ {
		curve, err := ROC(truth, mat.Col(nil, c, proba), c)
		if err != nil {
			return Report{}, err
		}

		r.ROC[c] = curve
	}

	r.AUC = r.ROC[Positive].AUC

	return r, nil
}

// ROC computes the curve of class when scores are that class's probabilities.
// Every distinct score is used as a threshold.
func ROC(truth []int, scores []float64, class int) (Curve, error) {
	if len(truth) != len(scores) {
		return Curve{}, ErrLengthMismatch
	}

	y := make([]float64, len(scores))
	copy(y, scores)

	classes := make([]bool, len(truth))
	pos, neg := 0, 0
	for i, t := range truth {
		classes[i] = t == class
		if classes[i] {
			pos++
		} else {
			neg++
		}
	}

	if pos == 0 || neg == 0 {
		return Curve{}, errors.Wrapf(ErrSingleClass, "class %d", class)
	}

	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)

	curve := Curve{
		Class:  class,
		Points: make([]Point, len(tpr)),
		AUC:    integrate.Trapezoidal(fpr, tpr),
	}

	for i := range tpr {
		curve.Points[i] = Point{FPR: fpr[i], TPR: tpr[i]}
	}

	return curve, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}

	return float64(num) / float64(den)
}
