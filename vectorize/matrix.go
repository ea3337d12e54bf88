package vectorize

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// SparseVector holds the non-zero entries of a row, sorted by index.
type SparseVector struct {
	Indices []int
	Values  []float64
}

// At returns the value stored for column j, or zero.
func (sv SparseVector) At(j int) float64 {
	k := sort.SearchInts(sv.Indices, j)
	if k < len(sv.Indices) && sv.Indices[k] == j {
		return sv.Values[k]
	}

	return 0
}

// Matrix is a read-only row-sparse matrix. It satisfies mat.Matrix, so the
// classifiers can consume it directly, and mat.RowNonZeroDoer so they can skip
// zeros.
type Matrix struct {
	rows []SparseVector
	cols int
}

var (
	_ mat.Matrix         = (*Matrix)(nil)
	_ mat.RowNonZeroDoer = (*Matrix)(nil)
	_ mat.NonZeroDoer    = (*Matrix)(nil)
)

// NewMatrix builds a matrix from rows. Row indices must be sorted and lower
// than cols; the slices are not copied.
func NewMatrix(rows []SparseVector, cols int) *Matrix {
	return &Matrix{
		rows: rows,
		cols: cols,
	}
}

func (m *Matrix) Dims() (r, c int) {
	return len(m.rows), m.cols
}

func (m *Matrix) At(i, j int) float64 {
	if i < 0 || i >= len(m.rows) {
		panic(mat.ErrRowAccess)
	}

	if j < 0 || j >= m.cols {
		panic(mat.ErrColAccess)
	}

	return m.rows[i].At(j)
}

func (m *Matrix) T() mat.Matrix {
	return mat.Transpose{Matrix: m}
}

func (m *Matrix) DoRowNonZero(i int, fn func(i, j int, v float64)) {
	if i < 0 || i >= len(m.rows) {
		panic(mat.ErrRowAccess)
	}

	row := m.rows[i]
	for k, j := range row.Indices {
		if row.Values[k] != 0 {
			fn(i, j, row.Values[k])
		}
	}
}

func (m *Matrix) DoNonZero(fn func(i, j int, v float64)) {
	for i := range m.rows {
		m.DoRowNonZero(i, fn)
	}
}

// Row returns row i. The returned slices are shared and must not be modified.
func (m *Matrix) Row(i int) SparseVector {
	return m.rows[i]
}

// NonZero returns the number of stored entries.
func (m *Matrix) NonZero() int {
	n := 0
	for _, r := range m.rows {
		n += len(r.Indices)
	}

	return n
}

// Select returns a matrix made of the given rows, in the given order. Row data
// is shared with m.
func (m *Matrix) Select(rows []int) *Matrix {
	res := make([]SparseVector, len(rows))
	for k, i := range rows {
		res[k] = m.rows[i]
	}

	return NewMatrix(res, m.cols)
}

// Dense returns a dense copy of m.
func (m *Matrix) Dense() *mat.Dense {
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return &mat.Dense{}
	}

	d := mat.NewDense(r, c, nil)
	m.DoNonZero(func(i, j int, v float64) {
		d.Set(i, j, v)
	})

	return d
}
