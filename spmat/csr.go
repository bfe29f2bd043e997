/*
Copyright © 2024 the steadybox authors.
This file is part of steadybox.

steadybox is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

steadybox is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with steadybox.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package spmat provides a compressed sparse row matrix and sparse and
// dense LU factorizations for solving the linear systems that arise in
// steady-state transport problems.
package spmat

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrShape is returned when matrix or vector dimensions do not agree.
	ErrShape = errors.New("spmat: dimension mismatch")

	// ErrSingular is returned when a matrix cannot be factorized.
	ErrSingular = errors.New("spmat: matrix is singular")
)

// CSR is a sparse matrix in compressed sparse row format. Column indices
// within each row are strictly increasing. A CSR is not modified after it
// is created, so it may be shared between goroutines.
type CSR struct {
	r, c   int
	indptr []int
	ind    []int
	data   []float64
}

var _ mat.Matrix = (*CSR)(nil)

// NewCSR returns a new r×c matrix from its compressed representation.
// The arguments are used directly, not copied.
func NewCSR(r, c int, indptr, ind []int, data []float64) (*CSR, error) {
	if r < 0 || c < 0 || len(indptr) != r+1 || len(ind) != len(data) || indptr[0] != 0 || indptr[r] != len(ind) {
		return nil, fmt.Errorf("spmat: invalid compressed matrix: %w", ErrShape)
	}
	for i := 0; i < r; i++ {
		for p := indptr[i]; p < indptr[i+1]; p++ {
			if ind[p] < 0 || ind[p] >= c || (p > indptr[i] && ind[p] <= ind[p-1]) {
				return nil, fmt.Errorf("spmat: row %d: column indices must be increasing and within [0, %d)", i, c)
			}
		}
	}
	return &CSR{r: r, c: c, indptr: indptr, ind: ind, data: data}, nil
}

// FromSparse compresses a two-dimensional sparse array.
func FromSparse(a *sparse.SparseArray) (*CSR, error) {
	if len(a.Shape) != 2 {
		return nil, fmt.Errorf("spmat: sparse array has %d dimensions, need 2: %w", len(a.Shape), ErrShape)
	}
	r, c := a.Shape[0], a.Shape[1]
	keys := make([]int, 0, len(a.Elements))
	for k, v := range a.Elements {
		if v != 0 {
			keys = append(keys, k)
		}
	}
	// Row-major one-dimensional indices sort into CSR order.
	sort.Ints(keys)
	m := &CSR{r: r, c: c, indptr: make([]int, r+1), ind: make([]int, len(keys)), data: make([]float64, len(keys))}
	for p, k := range keys {
		i, j := k/c, k%c
		m.indptr[i+1]++
		m.ind[p] = j
		m.data[p] = a.Elements[k]
	}
	for i := 0; i < r; i++ {
		m.indptr[i+1] += m.indptr[i]
	}
	return m, nil
}

// Identity returns the n×n identity matrix.
func Identity(n int) *CSR {
	d := make([]float64, n)
	for i := range d {
		d[i] = 1
	}
	return Diag(d)
}

// Diag returns a square matrix with d on its diagonal. Zero diagonal
// entries are stored explicitly.
func Diag(d []float64) *CSR {
	n := len(d)
	m := &CSR{r: n, c: n, indptr: make([]int, n+1), ind: make([]int, n), data: make([]float64, n)}
	for i, v := range d {
		m.indptr[i+1] = i + 1
		m.ind[i] = i
		m.data[i] = v
	}
	return m
}

// Dims returns the dimensions of the matrix.
func (m *CSR) Dims() (r, c int) { return m.r, m.c }

// At returns the element at row i, column j.
func (m *CSR) At(i, j int) float64 {
	if i < 0 || i >= m.r || j < 0 || j >= m.c {
		panic(mat.ErrIndexOutOfRange)
	}
	cols := m.ind[m.indptr[i]:m.indptr[i+1]]
	p := sort.SearchInts(cols, j)
	if p < len(cols) && cols[p] == j {
		return m.data[m.indptr[i]+p]
	}
	return 0
}

// T returns the implicit transpose of the matrix.
func (m *CSR) T() mat.Matrix { return mat.Transpose{Matrix: m} }

// NNZ returns the number of stored elements.
func (m *CSR) NNZ() int { return len(m.data) }

// Row returns the column indices and values stored in row i. The returned
// slices must not be modified.
func (m *CSR) Row(i int) (cols []int, vals []float64) {
	return m.ind[m.indptr[i]:m.indptr[i+1]], m.data[m.indptr[i]:m.indptr[i+1]]
}

// MulVec sets dst = m·x.
func (m *CSR) MulVec(dst, x []float64) error {
	if len(x) != m.c || len(dst) != m.r {
		return fmt.Errorf("spmat: MulVec %d×%d by %d into %d: %w", m.r, m.c, len(x), len(dst), ErrShape)
	}
	for i := 0; i < m.r; i++ {
		var s float64
		for p := m.indptr[i]; p < m.indptr[i+1]; p++ {
			s += m.data[p] * x[m.ind[p]]
		}
		dst[i] = s
	}
	return nil
}

// RowSums returns the sum of each row.
func (m *CSR) RowSums() []float64 {
	s := make([]float64, m.r)
	for i := range s {
		for p := m.indptr[i]; p < m.indptr[i+1]; p++ {
			s[i] += m.data[p]
		}
	}
	return s
}

// MaxAbs returns the largest absolute value of the stored elements.
func (m *CSR) MaxAbs() float64 {
	var a float64
	for _, v := range m.data {
		a = math.Max(a, math.Abs(v))
	}
	return a
}

// Scale returns f·m.
func (m *CSR) Scale(f float64) *CSR {
	o := m.clone()
	for i := range o.data {
		o.data[i] *= f
	}
	return o
}

func (m *CSR) clone() *CSR {
	return &CSR{
		r:      m.r,
		c:      m.c,
		indptr: append([]int(nil), m.indptr...),
		ind:    append([]int(nil), m.ind...),
		data:   append([]float64(nil), m.data...),
	}
}

// Add returns m+b. Elements present in either operand are kept in the
// result even when they cancel.
func (m *CSR) Add(b *CSR) (*CSR, error) {
	if m.r != b.r || m.c != b.c {
		return nil, fmt.Errorf("spmat: Add %d×%d and %d×%d: %w", m.r, m.c, b.r, b.c, ErrShape)
	}
	bld := NewBuilder(m.r, m.c, m.NNZ()+b.NNZ())
	for i := 0; i < m.r; i++ {
		p, pend := m.indptr[i], m.indptr[i+1]
		q, qend := b.indptr[i], b.indptr[i+1]
		for p < pend || q < qend {
			switch {
			case q == qend || (p < pend && m.ind[p] < b.ind[q]):
				bld.Append(m.ind[p], m.data[p])
				p++
			case p == pend || b.ind[q] < m.ind[p]:
				bld.Append(b.ind[q], b.data[q])
				q++
			default:
				bld.Append(m.ind[p], m.data[p]+b.data[q])
				p++
				q++
			}
		}
		bld.EndRow()
	}
	return bld.Matrix()
}

// Transpose returns the explicit transpose of m in compressed form, which
// is also the compressed sparse column form of m.
func (m *CSR) Transpose() *CSR {
	t := &CSR{r: m.c, c: m.r, indptr: make([]int, m.c+1), ind: make([]int, len(m.ind)), data: make([]float64, len(m.data))}
	for _, j := range m.ind {
		t.indptr[j+1]++
	}
	for j := 0; j < m.c; j++ {
		t.indptr[j+1] += t.indptr[j]
	}
	next := append([]int(nil), t.indptr[:m.c]...)
	for i := 0; i < m.r; i++ {
		for p := m.indptr[i]; p < m.indptr[i+1]; p++ {
			j := m.ind[p]
			t.ind[next[j]] = i
			t.data[next[j]] = m.data[p]
			next[j]++
		}
	}
	return t
}

// Restrict returns the square submatrix made of the rows and columns in
// idx, in the order given, so that row k and column k of the result both
// refer to idx[k]. m must be square and idx must not repeat an index.
func (m *CSR) Restrict(idx []int) (*CSR, error) {
	if m.r != m.c {
		return nil, fmt.Errorf("spmat: Restrict of %d×%d matrix: %w", m.r, m.c, ErrShape)
	}
	pos := make([]int, m.c)
	for i := range pos {
		pos[i] = -1
	}
	for k, i := range idx {
		if i < 0 || i >= m.r {
			return nil, fmt.Errorf("spmat: Restrict: index %d out of range [0, %d)", i, m.r)
		}
		if pos[i] >= 0 {
			return nil, fmt.Errorf("spmat: Restrict: index %d repeated", i)
		}
		pos[i] = k
	}
	bld := NewBuilder(len(idx), len(idx), 0)
	type entry struct {
		j int
		v float64
	}
	var row []entry
	for _, i := range idx {
		row = row[:0]
		for p := m.indptr[i]; p < m.indptr[i+1]; p++ {
			if k := pos[m.ind[p]]; k >= 0 {
				row = append(row, entry{k, m.data[p]})
			}
		}
		// Columns are already sorted when idx is increasing.
		if !sort.SliceIsSorted(row, func(a, b int) bool { return row[a].j < row[b].j }) {
			sort.Slice(row, func(a, b int) bool { return row[a].j < row[b].j })
		}
		for _, e := range row {
			bld.Append(e.j, e.v)
		}
		bld.EndRow()
	}
	return bld.Matrix()
}

// Dense returns a dense copy of m.
func (m *CSR) Dense() *mat.Dense {
	d := mat.NewDense(max(m.r, 1), max(m.c, 1), nil)
	for i := 0; i < m.r; i++ {
		for p := m.indptr[i]; p < m.indptr[i+1]; p++ {
			d.Set(i, m.ind[p], m.data[p])
		}
	}
	return d
}

// EqualApprox reports whether m and b have the same dimensions and every
// element of m-b is within tol of zero.
func EqualApprox(m, b *CSR, tol float64) bool {
	if m.r != b.r || m.c != b.c {
		return false
	}
	d, err := m.Add(b.Scale(-1))
	if err != nil {
		return false
	}
	return d.MaxAbs() <= tol
}

// Builder assembles a CSR matrix one row at a time.
type Builder struct {
	r, c   int
	indptr []int
	ind    []int
	data   []float64
	err    error
}

// NewBuilder returns a builder for an r×c matrix with room for nnz elements.
func NewBuilder(r, c, nnz int) *Builder {
	b := &Builder{r: r, c: c, indptr: make([]int, 1, r+1), ind: make([]int, 0, nnz), data: make([]float64, 0, nnz)}
	return b
}

// Append adds element (current row, j). Columns must be appended in
// increasing order within a row.
func (b *Builder) Append(j int, v float64) {
	if b.err != nil {
		return
	}
	row := len(b.indptr) - 1
	switch {
	case row >= b.r:
		b.err = fmt.Errorf("spmat: Builder: more than %d rows", b.r)
	case j < 0 || j >= b.c:
		b.err = fmt.Errorf("spmat: Builder: row %d: column %d out of range [0, %d)", row, j, b.c)
	case len(b.ind) > b.indptr[row] && b.ind[len(b.ind)-1] >= j:
		b.err = fmt.Errorf("spmat: Builder: row %d: column %d appended out of order", row, j)
	}
	b.ind = append(b.ind, j)
	b.data = append(b.data, v)
}

// EndRow finishes the current row.
func (b *Builder) EndRow() { b.indptr = append(b.indptr, len(b.ind)) }

// Matrix returns the assembled matrix. All rows must have been ended.
func (b *Builder) Matrix() (*CSR, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.indptr) != b.r+1 {
		return nil, fmt.Errorf("spmat: Builder: have %d rows, want %d: %w", len(b.indptr)-1, b.r, ErrShape)
	}
	return &CSR{r: b.r, c: b.c, indptr: b.indptr, ind: b.ind, data: b.data}, nil
}
