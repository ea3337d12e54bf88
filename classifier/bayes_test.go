package classifier

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestGaussianNB_Parameters(t *testing.T) {
	// Class 0 holds 0 and 2, class 1 holds 4 and 6
	x := mat.NewDense(4, 1, []float64{0, 2, 4, 6})
	y := []int{0, 0, 1, 1}

	g := NewGaussianNB(1e-9)

	err := g.Fit(x, y)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	// Overall variance is 5
	eps := 5e-9

	testCases := []struct {
		class    int
		mean     float64
		variance float64
	}{
		{0, 1, 1 + eps},
		{1, 5, 1 + eps},
	}

	for _, tc := range testCases {
		if m := g.Theta(tc.class, 0); math.Abs(m-tc.mean) > epsilon {
			t.Errorf("class %d: expected mean %f, got %f", tc.class, tc.mean, m)
		}

		if v := g.Sigma(tc.class, 0); math.Abs(v-tc.variance) > 1e-12 {
			t.Errorf("class %d: expected variance %.12f, got %.12f", tc.class, tc.variance, v)
		}
	}

	probe := mat.NewDense(3, 1, []float64{3, 2, 0})

	proba, err := g.PredictProba(probe)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	// Halfway between the means both classes are equally likely
	if p := proba.At(0, 1); math.Abs(p-0.5) > epsilon {
		t.Errorf("expected 0.5 at x=3, got %f", p)
	}

	// At x=2 the log odds are ((2-5)^2 - (2-1)^2) / 2 = 4 in favour of ham
	want := 1 / (1 + math.Exp(-4))
	if p := proba.At(1, 0); math.Abs(p-want) > 1e-6 {
		t.Errorf("expected %f at x=2, got %f", want, p)
	}

	// The zero row goes through the precomputed base term only
	if p := proba.At(2, 0); p < 0.99 {
		t.Errorf("expected ham at x=0, got %f", p)
	}
}

func TestGaussianNB_Priors(t *testing.T) {
	// Identical distributions, the prior decides
	x := mat.NewDense(8, 1, []float64{1, 2, 1, 2, 1, 2, 1, 2})
	y := []int{0, 0, 1, 1, 1, 1, 1, 1}

	g := NewGaussianNB(1e-9)

	err := g.Fit(x, y)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	proba, err := g.PredictProba(mat.NewDense(1, 1, []float64{1.5}))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if p := proba.At(0, 1); math.Abs(p-0.75) > 1e-6 {
		t.Errorf("expected the prior 0.75, got %f", p)
	}
}

func TestGaussianNB_ConstantFeatures(t *testing.T) {
	x := mat.NewDense(4, 2, nil)
	y := []int{0, 0, 1, 1}

	g := NewGaussianNB(1e-9)

	err := g.Fit(x, y)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	proba, err := g.PredictProba(x)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	checkProba(t, proba, 4, 2)
}
