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

package spmat

import (
	"container/heap"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Factorization solves linear systems with a factorized matrix. A
// Factorization may be used from several goroutines at once.
type Factorization interface {
	// Solve sets dst to the solution x of A·x = b.
	Solve(dst, b []float64) error
}

// Factorizer factorizes square matrices.
type Factorizer interface {
	Factorize(a *CSR) (Factorization, error)
}

// DefaultPivotTol is the pivot threshold used by LU when none is given.
const DefaultPivotTol = 0.1

// singularTol is the size, relative to the largest element of the matrix,
// below which a pivot is treated as zero.
const singularTol = 1e-14

// LU is a sparse LU factorizer using left-looking elimination with
// threshold partial pivoting. The rows and columns of the matrix are first
// permuted symmetrically to reduce fill.
type LU struct {
	// PivotTol is in (0, 1]. The diagonal element is kept as the pivot if
	// its magnitude is at least PivotTol times the largest candidate in its
	// column; 1 gives ordinary partial pivoting.
	PivotTol float64

	// Ordering is the fill-reducing permutation. The zero value is
	// MinimumDegreeOrder.
	Ordering Ordering
}

// SparseLU is the result of a sparse LU factorization, P·Q·A·Qᵀ = L·U,
// where Q is the fill-reducing ordering.
type SparseLU struct {
	n     int
	q     []int   // q[k] is the column of A eliminated at step k; nil for the identity.
	prow  []int   // prow[k] is the row of Q·A·Qᵀ used as the k'th pivot.
	lcol  []spvec // L below the diagonal by column, in rows of A.
	ucol  []spvec // U above the diagonal by column, in pivot steps.
	udiag []float64
}

type spvec struct {
	ind []int
	val []float64
}

// stepHeap is a min-heap of pivot steps. Eliminating the pivot steps that
// touch a column in increasing order is a valid topological order for the
// sparse triangular solve.
type stepHeap []int

func (h stepHeap) Len() int            { return len(h) }
func (h stepHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h stepHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *stepHeap) Push(x interface{}) { *h = append(*h, x.(int)) }
func (h *stepHeap) Pop() interface{} {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}

// Factorize computes the LU factorization of a.
func (f LU) Factorize(a *CSR) (Factorization, error) {
	n, c := a.Dims()
	if n != c {
		return nil, fmt.Errorf("spmat: LU of %d×%d matrix: %w", n, c, ErrShape)
	}
	tol := f.PivotTol
	if tol <= 0 || tol > 1 {
		tol = DefaultPivotTol
	}
	anorm := a.MaxAbs()
	if anorm == 0 || math.IsNaN(anorm) || math.IsInf(anorm, 0) {
		return nil, fmt.Errorf("spmat: LU: largest element is %g: %w", anorm, ErrSingular)
	}
	var q []int
	switch f.Ordering {
	case MinimumDegreeOrder:
		var err error
		if q, err = MinimumDegree(a); err != nil {
			return nil, err
		}
		if a, err = a.Restrict(q); err != nil {
			return nil, err
		}
	case NaturalOrder:
	default:
		return nil, fmt.Errorf("spmat: LU: invalid ordering %v", f.Ordering)
	}
	at := a.Transpose() // row k of at is column k of a.

	lu := &SparseLU{
		n:     n,
		q:     q,
		prow:  make([]int, n),
		lcol:  make([]spvec, n),
		ucol:  make([]spvec, n),
		udiag: make([]float64, n),
	}
	pinv := make([]int, n)
	for i := range pinv {
		pinv[i] = -1
	}
	x := make([]float64, n)
	mark := make([]int, n) // mark[i] == k+1 when row i is in the pattern of column k.
	seen := make([]int, n) // seen[j] == k+1 when step j is queued for column k.
	var pattern []int
	h := new(stepHeap)

	for k := 0; k < n; k++ {
		pattern = pattern[:0]
		*h = (*h)[:0]
		touch := func(i int) {
			if mark[i] != k+1 {
				mark[i] = k + 1
				pattern = append(pattern, i)
				x[i] = 0
			}
			if j := pinv[i]; j >= 0 && seen[j] != k+1 {
				seen[j] = k + 1
				heap.Push(h, j)
			}
		}
		cols, vals := at.Row(k)
		for p, i := range cols {
			touch(i)
			x[i] += vals[p]
		}

		// Sparse triangular solve with the columns of L found so far.
		var u spvec
		for h.Len() > 0 {
			j := heap.Pop(h).(int)
			v := x[lu.prow[j]]
			if v == 0 {
				continue
			}
			u.ind = append(u.ind, j)
			u.val = append(u.val, v)
			l := lu.lcol[j]
			for p, i := range l.ind {
				touch(i)
				x[i] -= l.val[p] * v
			}
		}

		piv := -1
		var big float64
		for _, i := range pattern {
			if pinv[i] < 0 {
				if v := math.Abs(x[i]); v > big {
					big, piv = v, i
				}
			}
		}
		if piv < 0 || big <= singularTol*anorm || math.IsNaN(big) {
			col := k
			if q != nil {
				col = q[k]
			}
			return nil, fmt.Errorf("spmat: LU: no acceptable pivot in column %d: %w", col, ErrSingular)
		}
		if pinv[k] < 0 && mark[k] == k+1 && math.Abs(x[k]) >= tol*big {
			piv = k
		}
		pivot := x[piv]
		pinv[piv] = k
		lu.prow[k] = piv
		lu.udiag[k] = pivot
		lu.ucol[k] = u

		var l spvec
		for _, i := range pattern {
			if pinv[i] < 0 && x[i] != 0 {
				l.ind = append(l.ind, i)
				l.val = append(l.val, x[i]/pivot)
			}
		}
		lu.lcol[k] = l
	}
	return lu, nil
}

// Solve sets dst to the solution of A·x = b.
func (lu *SparseLU) Solve(dst, b []float64) error {
	if len(b) != lu.n || len(dst) != lu.n {
		return fmt.Errorf("spmat: Solve: system of size %d with vectors of length %d and %d: %w",
			lu.n, len(b), len(dst), ErrShape)
	}
	z := make([]float64, lu.n)
	if lu.q == nil {
		copy(z, b)
	} else {
		for k, i := range lu.q {
			z[k] = b[i]
		}
	}
	y := make([]float64, lu.n)
	for k := 0; k < lu.n; k++ {
		yk := z[lu.prow[k]]
		y[k] = yk
		if yk == 0 {
			continue
		}
		l := lu.lcol[k]
		for p, i := range l.ind {
			z[i] -= l.val[p] * yk
		}
	}
	for k := lu.n - 1; k >= 0; k-- {
		y[k] /= lu.udiag[k]
		xk := y[k]
		if xk == 0 {
			continue
		}
		u := lu.ucol[k]
		for p, j := range u.ind {
			y[j] -= u.val[p] * xk
		}
	}
	if lu.q == nil {
		copy(dst, y)
		return nil
	}
	for k, i := range lu.q {
		dst[i] = y[k]
	}
	return nil
}

// NNZ returns the number of stored elements of L and U, including the
// diagonal of U.
func (lu *SparseLU) NNZ() int {
	nnz := lu.n
	for k := 0; k < lu.n; k++ {
		nnz += len(lu.lcol[k].ind) + len(lu.ucol[k].ind)
	}
	return nnz
}

// DenseLU factorizes matrices as dense matrices using gonum. It is meant
// for small systems.
type DenseLU struct {
	// MaxCond is the largest acceptable condition number. Zero means 1e14.
	MaxCond float64
}

type denseLU struct {
	lu mat.LU
	n  int
}

// Factorize computes the dense LU factorization of a.
func (f DenseLU) Factorize(a *CSR) (Factorization, error) {
	n, c := a.Dims()
	if n != c || n == 0 {
		return nil, fmt.Errorf("spmat: dense LU of %d×%d matrix: %w", n, c, ErrShape)
	}
	maxCond := f.MaxCond
	if maxCond <= 0 {
		maxCond = 1e14
	}
	d := &denseLU{n: n}
	d.lu.Factorize(a)
	if cond := d.lu.Cond(); math.IsInf(cond, 1) || math.IsNaN(cond) || cond > maxCond {
		return nil, fmt.Errorf("spmat: dense LU: condition number %g: %w", cond, ErrSingular)
	}
	return d, nil
}

// Solve sets dst to the solution of A·x = b.
func (d *denseLU) Solve(dst, b []float64) error {
	if len(b) != d.n || len(dst) != d.n {
		return fmt.Errorf("spmat: Solve: system of size %d with vectors of length %d and %d: %w",
			d.n, len(b), len(dst), ErrShape)
	}
	var x mat.VecDense
	if err := d.lu.SolveVecTo(&x, false, mat.NewVecDense(d.n, append([]float64(nil), b...))); err != nil {
		return fmt.Errorf("spmat: dense LU: %v: %w", err, ErrSingular)
	}
	for i := range dst {
		dst[i] = x.AtVec(i)
	}
	return nil
}
