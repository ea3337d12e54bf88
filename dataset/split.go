// Package dataset partitions labeled rows into train and test sets.
package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"
)

// InvalidFractionError is returned for a test fraction outside of (0, 1), or
// one that leaves either side of the split empty.
type InvalidFractionError struct {
	Fraction float64
	Rows     int
}

func (e *InvalidFractionError) Error() string {
	return fmt.Sprintf("invalid test fraction %g for %d rows", e.Fraction, e.Rows)
}

// DegenerateSplitError is returned when a class present in the data does not
// appear in both the train and the test set.
type DegenerateSplitError struct {
	Class int
	Side  string // "train" or "test"
}

func (e *DegenerateSplitError) Error() string {
	return fmt.Sprintf("degenerate split: class %d missing from %s set", e.Class, e.Side)
}

// Split holds disjoint row index sets covering all rows, with their labels.
type Split struct {
	Train       []int
	Test        []int
	TrainLabels []int
	TestLabels  []int
}

// SplitRows shuffles the row indices 0..len(labels)-1 and puts the first
// round(fraction*n) of them into the test set. A nil seed draws one from the
// clock.
func SplitRows(labels []int, fraction float64, seed *int64) (Split, error) {
	n := len(labels)

	if !(fraction > 0 && fraction < 1) {
		return Split{}, &InvalidFractionError{Fraction: fraction, Rows: n}
	}

	nTest := int(math.Round(fraction * float64(n)))
	if nTest == 0 || nTest == n {
		return Split{}, &InvalidFractionError{Fraction: fraction, Rows: n}
	}

	s := time.Now().UnixNano()
	if seed != nil {
		s = *seed
	}

	perm := rand.New(rand.NewSource(s)).Perm(n)

	split := Split{
		Test:  perm[:nTest],
		Train: perm[nTest:],
	}

	split.TestLabels = pick(labels, split.Test)
	split.TrainLabels = pick(labels, split.Train)

	err := checkClasses(labels, split)
	if err != nil {
		return Split{}, err
	}

	return split, nil
}

func pick(labels []int, rows []int) []int {
	res := make([]int, len(rows))
	for k, i := range rows {
		res[k] = labels[i]
	}

	return res
}

func checkClasses(labels []int, split Split) error {
	present := classSet(labels)

	classes := make([]int, 0, len(present))
	for c := range present {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	train := classSet(split.TrainLabels)
	test := classSet(split.TestLabels)

	for _, c := range classes {
		if !train[c] {
			return &DegenerateSplitError{Class: c, Side: "train"}
		}

		if !test[c] {
			return &DegenerateSplitError{Class: c, Side: "test"}
		}
	}

	return nil
}

func classSet(labels []int) map[int]bool {
	m := make(map[int]bool)
	for _, l := range labels {
		m[l] = true
	}

	return m
}
