// Package vectorize turns cleaned documents into L2-normalized TF-IDF rows.
//
// The inverse document frequency uses the smoothed form
//
//	idf(t) = ln((1 + N) / (1 + df(t))) + 1
//
// and a term's weight in a document is tf(t, d) * idf(t).
package vectorize

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
)

// ErrNotFitted is returned by Transform before FitTransform succeeded.
var ErrNotFitted = errors.New("vectorizer is not fitted")

// EmptyVocabularyError is returned when no term survives the frequency and
// stop word filters.
type EmptyVocabularyError struct {
	Documents          int
	Terms              int // distinct terms before document frequency filtering
	MinDocFreq         int
	MaxDocFreqFraction float64
}

func (e *EmptyVocabularyError) Error() string {
	return fmt.Sprintf("empty vocabulary: %d documents, %d candidate terms, min_df=%d, max_df=%g",
		e.Documents, e.Terms, e.MinDocFreq, e.MaxDocFreqFraction)
}

// Options controls tokenization and vocabulary selection. Zero values disable
// the corresponding filter.
type Options struct {
	MaxVocab           int     // keep at most this many terms, 0 for no limit
	MinDocFreq         int     // minimum number of documents containing a term
	MaxDocFreqFraction float64 // maximum fraction of documents containing a term, <= 0 for no limit
	StopWords          map[string]struct{}
	Lowercase          bool
	MinTokenLen        int // in runes
}

// Vocabulary is the ordered list of retained terms. A term's position is its
// column in the feature matrix.
type Vocabulary []string

// Index returns the column of term, or -1.
func (v Vocabulary) Index(term string) int {
	k := sort.SearchStrings(v, term)
	if k < len(v) && v[k] == term {
		return k
	}

	return -1
}

type Vectorizer struct {
	opts Options

	vocab Vocabulary
	index map[string]int
	df    []int
	idf   []float64
}

func New(opts Options) *Vectorizer {
	return &Vectorizer{
		opts: opts,
	}
}

// StopSet builds a stop word set.
func StopSet(words ...string) map[string]struct{} {
	return lo.Associate(words, func(w string) (string, struct{}) {
		return w, struct{}{}
	})
}

func (v *Vectorizer) tokens(doc string) []string {
	fields := strings.Fields(doc)

	res := fields[:0]
	for _, f := range fields {
		if v.opts.Lowercase {
			f = strings.ToLower(f)
		}

		if utf8.RuneCountInString(f) < v.opts.MinTokenLen {
			continue
		}

		if _, stop := v.opts.StopWords[f]; stop {
			continue
		}

		res = append(res, f)
	}

	return res
}

func (v *Vectorizer) counts(doc string) map[string]int {
	tf := make(map[string]int)
	for _, t := range v.tokens(doc) {
		tf[t]++
	}

	return tf
}

// FitTransform learns the vocabulary and document frequencies from corpus and
// returns its feature matrix.
func (v *Vectorizer) FitTransform(corpus []string) (*Matrix, Vocabulary, error) {
	docs := make([]map[string]int, len(corpus))
	df := make(map[string]int)
	total := make(map[string]int)

	for i, doc := range corpus {
		tf := v.counts(doc)
		for t, n := range tf {
			df[t]++
			total[t] += n
		}

		docs[i] = tf
	}

	n := len(corpus)

	var terms []string
	for t, d := range df {
		if d < v.opts.MinDocFreq {
			continue
		}

		// Compare the fraction itself, d > f*n loses terms exactly at the limit
		if v.opts.MaxDocFreqFraction > 0 && float64(d)/float64(n) > v.opts.MaxDocFreqFraction {
			continue
		}

		terms = append(terms, t)
	}

	if len(terms) == 0 {
		return nil, nil, &EmptyVocabularyError{
			Documents:          n,
			Terms:              len(df),
			MinDocFreq:         v.opts.MinDocFreq,
			MaxDocFreqFraction: v.opts.MaxDocFreqFraction,
		}
	}

	if v.opts.MaxVocab > 0 && len(terms) > v.opts.MaxVocab {
		sort.Slice(terms, func(i, j int) bool {
			ti, tj := total[terms[i]], total[terms[j]]
			if ti != tj {
				return ti > tj
			}

			return terms[i] < terms[j]
		})

		terms = terms[:v.opts.MaxVocab]
	}

	sort.Strings(terms)

	v.vocab = terms
	v.index = make(map[string]int, len(terms))
	v.df = make([]int, len(terms))
	v.idf = make([]float64, len(terms))

	for j, t := range terms {
		v.index[t] = j
		v.df[j] = df[t]
		v.idf[j] = math.Log(float64(1+n)/float64(1+df[t])) + 1
	}

	rows := make([]SparseVector, n)
	for i, tf := range docs {
		rows[i] = v.normalize(v.weigh(tf))
	}

	return NewMatrix(rows, len(terms)), v.Vocabulary(), nil
}

// Transform maps corpus onto the fitted vocabulary. Terms outside of it are
// ignored and nothing is relearned.
func (v *Vectorizer) Transform(corpus []string) (*Matrix, error) {
	if v.vocab == nil {
		return nil, ErrNotFitted
	}

	rows := make([]SparseVector, len(corpus))
	for i, doc := range corpus {
		rows[i] = v.normalize(v.weigh(v.counts(doc)))
	}

	return NewMatrix(rows, len(v.vocab)), nil
}

// weigh returns the raw tf-idf weights of a document.
func (v *Vectorizer) weigh(tf map[string]int) SparseVector {
	var sv SparseVector
	for t := range tf {
		if j, ok := v.index[t]; ok {
			sv.Indices = append(sv.Indices, j)
		}
	}

	sort.Ints(sv.Indices)

	sv.Values = make([]float64, len(sv.Indices))
	for k, j := range sv.Indices {
		sv.Values[k] = float64(tf[v.vocab[j]]) * v.idf[j]
	}

	return sv
}

func (v *Vectorizer) normalize(sv SparseVector) SparseVector {
	if len(sv.Values) == 0 {
		return sv
	}

	norm := floats.Norm(sv.Values, 2)
	if norm > 0 {
		floats.Scale(1/norm, sv.Values)
	}

	return sv
}

// Vocabulary returns a copy of the fitted vocabulary.
func (v *Vectorizer) Vocabulary() Vocabulary {
	return append(Vocabulary(nil), v.vocab...)
}

// IDF returns a copy of the fitted inverse document frequencies, by column.
func (v *Vectorizer) IDF() []float64 {
	return append([]float64(nil), v.idf...)
}

// DocFreq returns a copy of the fitted document frequencies, by column.
func (v *Vectorizer) DocFreq() []int {
	return append([]int(nil), v.df...)
}
