package vectorize

import (
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

const epsilon = 1e-9

func rowNorm(m *Matrix, i int) float64 {
	return floats.Norm(m.Row(i).Values, 2)
}

func TestFitTransform_Small(t *testing.T) {
	req := require.New(t)

	v := New(Options{MinDocFreq: 1, MaxDocFreqFraction: 1.0})
	corpus := []string{"cat dog", "dog dog fish"}

	m, vocab, err := v.FitTransform(corpus)
	req.NoError(err)
	req.Equal(Vocabulary{"cat", "dog", "fish"}, vocab)

	r, c := m.Dims()
	req.Equal(2, r)
	req.Equal(3, c)

	// Raw weights before normalization
	dog := vocab.Index("dog")
	raw1 := v.weigh(v.counts(corpus[0]))
	raw2 := v.weigh(v.counts(corpus[1]))
	req.Greater(raw2.At(dog), raw1.At(dog))

	idf := v.IDF()
	req.InDelta(math.Log(3.0/2.0)+1, idf[vocab.Index("cat")], epsilon)
	req.InDelta(1.0, idf[dog], epsilon)
	req.Equal([]int{1, 2, 1}, v.DocFreq())

	for i := 0; i < r; i++ {
		req.InDelta(1.0, rowNorm(m, i), epsilon)
	}

	req.Zero(m.At(0, vocab.Index("fish")))
	req.Greater(m.At(1, dog), m.At(0, dog))
}

func TestFitTransform_Filters(t *testing.T) {
	corpus := []string{
		"the cheap pills now",
		"the meeting is now",
		"the pills are cheap",
		"lunch at noon",
	}

	testCases := []struct {
		name   string
		opts   Options
		expect Vocabulary
	}{
		{
			name:   "min document frequency",
			opts:   Options{MinDocFreq: 2},
			expect: Vocabulary{"cheap", "now", "pills", "the"},
		},
		{
			name:   "max document frequency",
			opts:   Options{MinDocFreq: 2, MaxDocFreqFraction: 0.5},
			expect: Vocabulary{"cheap", "now", "pills"},
		},
		{
			name:   "stop words",
			opts:   Options{MinDocFreq: 2, StopWords: EnglishStopWords},
			expect: Vocabulary{"cheap", "pills"},
		},
		{
			name:   "max vocabulary keeps most frequent, ties lexicographic",
			opts:   Options{MinDocFreq: 1, MaxVocab: 2},
			expect: Vocabulary{"cheap", "the"},
		},
		{
			name:   "short tokens",
			opts:   Options{MinDocFreq: 1, MinTokenLen: 5},
			expect: Vocabulary{"cheap", "lunch", "meeting", "pills"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, vocab, err := New(tc.opts).FitTransform(corpus)
			require.NoError(t, err)
			require.Equal(t, tc.expect, vocab)
		})
	}
}

func TestFitTransform_MaxDocFreqBoundary(t *testing.T) {
	corpus := make([]string, 100)
	for i := range corpus {
		corpus[i] = "rare" + strconv.Itoa(i)
		if i < 57 {
			corpus[i] += " common"
		}
	}

	testCases := []struct {
		fraction float64
		kept     bool
	}{
		// 0.57*100 rounds below 57
		{fraction: 0.57, kept: true},
		{fraction: 0.58, kept: true},
		{fraction: 0.56, kept: false},
	}

	for _, tc := range testCases {
		t.Run(strconv.FormatFloat(tc.fraction, 'f', -1, 64), func(t *testing.T) {
			_, vocab, err := New(Options{MinDocFreq: 1, MaxDocFreqFraction: tc.fraction}).FitTransform(corpus)
			require.NoError(t, err)
			require.Equal(t, tc.kept, vocab.Index("common") >= 0)
			require.GreaterOrEqual(t, vocab.Index("rare0"), 0)
		})
	}
}

func TestFitTransform_Lowercase(t *testing.T) {
	_, vocab, err := New(Options{Lowercase: true}).FitTransform([]string{"FREE Free free", "WIN"})
	require.NoError(t, err)
	require.Equal(t, Vocabulary{"free", "win"}, vocab)
}

func TestFitTransform_EmptyVocabulary(t *testing.T) {
	testCases := []struct {
		name   string
		corpus []string
		opts   Options
	}{
		{"empty documents", []string{"", ""}, Options{}},
		{"only stop words", []string{"the and", "of the"}, Options{StopWords: EnglishStopWords}},
		{"nothing frequent enough", []string{"a b", "c d"}, Options{MinDocFreq: 2}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := New(tc.opts).FitTransform(tc.corpus)

			var eve *EmptyVocabularyError
			require.True(t, errors.As(err, &eve), "unexpected error: %v", err)
			require.Equal(t, len(tc.corpus), eve.Documents)
		})
	}
}

func TestTransform_ReusesFit(t *testing.T) {
	req := require.New(t)

	v := New(Options{})
	_, vocab, err := v.FitTransform([]string{"cat dog", "dog dog fish"})
	req.NoError(err)

	idfBefore := v.IDF()

	m, err := v.Transform([]string{"cat cat bird", "bird", "fish dog"})
	req.NoError(err)
	req.Equal(vocab, v.Vocabulary())
	req.Equal(idfBefore, v.IDF())

	r, c := m.Dims()
	req.Equal(3, r)
	req.Equal(3, c)

	// "bird" is unknown, so the second row is all zeros and stays that way
	req.Zero(rowNorm(m, 1))
	req.InDelta(1.0, rowNorm(m, 0), epsilon)
	req.InDelta(1.0, m.At(0, vocab.Index("cat")), epsilon)
}

func TestTransform_NotFitted(t *testing.T) {
	_, err := New(Options{}).Transform([]string{"x"})
	require.ErrorIs(t, err, ErrNotFitted)
}

func TestMatrix(t *testing.T) {
	req := require.New(t)

	m := NewMatrix([]SparseVector{
		{Indices: []int{0, 2}, Values: []float64{1, 2}},
		{},
		{Indices: []int{1}, Values: []float64{3}},
	}, 3)

	req.Equal(3, m.NonZero())
	req.Equal(2.0, m.At(0, 2))
	req.Zero(m.At(1, 1))
	req.Equal(3.0, m.T().At(1, 2))

	sub := m.Select([]int{2, 0})
	r, c := sub.Dims()
	req.Equal(2, r)
	req.Equal(3, c)
	req.Equal(3.0, sub.At(0, 1))
	req.Equal(1.0, sub.At(1, 0))

	d := m.Dense()
	req.Equal(2.0, d.At(0, 2))
	req.Equal(3.0, d.At(2, 1))

	var seen int
	m.DoNonZero(func(i, j int, v float64) {
		seen++
		req.Equal(v, m.At(i, j))
	})
	req.Equal(3, seen)

	req.Panics(func() { m.At(3, 0) })
	req.Panics(func() { m.At(0, 3) })
}
