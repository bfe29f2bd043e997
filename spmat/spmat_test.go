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
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/ctessum/sparse"
	"github.com/kr/pretty"
	"gonum.org/v1/gonum/mat"
)

func different(a, b, tolerance float64) bool {
	if a == b {
		return false
	}
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

// testMatrix returns
//
//	[ 4 -1  0  0 ]
//	[-1  4 -1  0 ]
//	[ 0 -1  4 -1 ]
//	[ 2  0 -1  4 ]
func testMatrix(t *testing.T) *CSR {
	a := sparse.ZerosSparse(4, 4)
	for i := 0; i < 4; i++ {
		a.Set(4, i, i)
		if i > 0 {
			a.Set(-1, i, i-1)
		}
		if i < 3 {
			a.Set(-1, i, i+1)
		}
	}
	a.AddVal(2, 3, 0)
	m, err := FromSparse(a)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestFromSparse(t *testing.T) {
	m := testMatrix(t)
	want := mat.NewDense(4, 4, []float64{
		4, -1, 0, 0,
		-1, 4, -1, 0,
		0, -1, 4, -1,
		2, 0, -1, 4,
	})
	if !mat.Equal(m, want) {
		t.Errorf("have\n%v\nwant\n%v", mat.Formatted(m), mat.Formatted(want))
	}
	if m.NNZ() != 11 {
		t.Errorf("nnz: have %d, want 11", m.NNZ())
	}
	if !mat.Equal(m.T(), want.T()) {
		t.Error("transpose view differs")
	}
	if !mat.Equal(m.Transpose(), want.T()) {
		t.Error("explicit transpose differs")
	}
}

func TestNewCSR(t *testing.T) {
	if _, err := NewCSR(2, 2, []int{0, 2, 3}, []int{1, 0, 1}, []float64{1, 2, 3}); err == nil {
		t.Error("unsorted columns should be rejected")
	}
	if _, err := NewCSR(2, 2, []int{0, 1}, []int{0}, []float64{1}); !errors.Is(err, ErrShape) {
		t.Errorf("short indptr: have %v", err)
	}
	m, err := NewCSR(2, 3, []int{0, 1, 3}, []int{2, 0, 1}, []float64{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	dst := make([]float64, 2)
	if err := m.MulVec(dst, []float64{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if dst[0] != 3 || dst[1] != 8 {
		t.Errorf("MulVec: have %v, want [3 8]", dst)
	}
	if err := m.MulVec(dst, []float64{1}); !errors.Is(err, ErrShape) {
		t.Errorf("MulVec shape: have %v", err)
	}
}

func TestRestrict(t *testing.T) {
	m := testMatrix(t)
	idx := []int{0, 2, 3}
	r, err := m.Restrict(idx)
	if err != nil {
		t.Fatal(err)
	}
	want := mat.NewDense(3, 3, []float64{
		4, 0, 0,
		0, 4, -1,
		2, -1, 4,
	})
	if !mat.Equal(r, want) {
		t.Errorf("have\n%v\nwant\n%v", mat.Formatted(r), mat.Formatted(want))
	}
	// Restricting to every remaining index again changes nothing.
	rr, err := r.Restrict([]int{0, 1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(r, rr); len(diff) > 0 {
		t.Errorf("restriction is not idempotent: %v", diff)
	}
	if _, err := m.Restrict([]int{0, 4}); err == nil {
		t.Error("out of range index should be rejected")
	}
	if _, err := m.Restrict([]int{1, 1}); err == nil {
		t.Error("repeated index should be rejected")
	}
	// A permuted index set permutes rows and columns together.
	p, err := m.Restrict([]int{3, 0})
	if err != nil {
		t.Fatal(err)
	}
	if p.At(0, 1) != 2 || p.At(0, 0) != 4 || p.At(1, 0) != 0 {
		t.Errorf("permuted: have\n%v", mat.Formatted(p))
	}
}

func TestAddScale(t *testing.T) {
	m := testMatrix(t)
	s, err := m.Add(Identity(4).Scale(-4))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if s.At(i, i) != 0 {
			t.Errorf("diagonal %d: have %g, want 0", i, s.At(i, i))
		}
	}
	if s.NNZ() != m.NNZ() {
		t.Errorf("nnz: have %d, want %d", s.NNZ(), m.NNZ())
	}
	sums := m.RowSums()
	want := []float64{3, 2, 2, 5}
	for i := range want {
		if sums[i] != want[i] {
			t.Errorf("row sum %d: have %g, want %g", i, sums[i], want[i])
		}
	}
	if !EqualApprox(m, m.Scale(1+1e-15), 1e-13) {
		t.Error("EqualApprox should tolerate rounding")
	}
	if _, err := m.Add(Identity(3)); !errors.Is(err, ErrShape) {
		t.Errorf("shape: have %v", err)
	}
}

func TestBuilder(t *testing.T) {
	b := NewBuilder(2, 2, 3)
	b.Append(0, 1)
	b.Append(1, 2)
	b.EndRow()
	b.Append(1, 3)
	b.EndRow()
	m, err := b.Matrix()
	if err != nil {
		t.Fatal(err)
	}
	if m.At(0, 1) != 2 || m.At(1, 0) != 0 || m.At(1, 1) != 3 {
		t.Errorf("have\n%v", mat.Formatted(m))
	}

	b = NewBuilder(1, 2, 2)
	b.Append(1, 1)
	b.Append(0, 1)
	b.EndRow()
	if _, err := b.Matrix(); err == nil {
		t.Error("out of order columns should be rejected")
	}
}

// randomSystem returns a random sparse matrix with a dominant diagonal in
// each row. Columns are not dominant, so partial pivoting still exchanges rows.
func randomSystem(n int, rnd *rand.Rand) *CSR {
	a := sparse.ZerosSparse(n, n)
	for i := 0; i < n; i++ {
		a.Set(6.5+rnd.Float64(), i, i)
		for k := 0; k < 3; k++ {
			j := rnd.Intn(n)
			if j != i {
				a.AddVal(4*rnd.Float64()-2, i, j)
			}
		}
	}
	m, err := FromSparse(a)
	if err != nil {
		panic(err)
	}
	return m
}

func TestLU(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for _, n := range []int{1, 5, 40, 200} {
		a := randomSystem(n, rnd)
		xWant := make([]float64, n)
		for i := range xWant {
			xWant[i] = rnd.NormFloat64()
		}
		b := make([]float64, n)
		if err := a.MulVec(b, xWant); err != nil {
			t.Fatal(err)
		}
		for _, f := range []Factorizer{LU{}, LU{PivotTol: 1}, LU{Ordering: NaturalOrder}, DenseLU{}} {
			fact, err := f.Factorize(a)
			if err != nil {
				t.Fatalf("n=%d %T: %v", n, f, err)
			}
			x := make([]float64, n)
			if err := fact.Solve(x, b); err != nil {
				t.Fatal(err)
			}
			for i := range x {
				if math.Abs(x[i]-xWant[i]) > 1e-8*(1+math.Abs(xWant[i])) {
					t.Errorf("n=%d %T: x[%d] = %g, want %g", n, f, i, x[i], xWant[i])
					break
				}
			}
		}
	}
}

func TestLUPivoting(t *testing.T) {
	// The first column has a zero on the diagonal.
	a := mat.NewDense(3, 3, []float64{
		0, 1, 2,
		3, 0, 1,
		1, 1, 0,
	})
	s := sparse.ZerosSparse(3, 3)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			s.Set(a.At(i, j), i, j)
		}
	}
	m, err := FromSparse(s)
	if err != nil {
		t.Fatal(err)
	}
	fact, err := LU{}.Factorize(m)
	if err != nil {
		t.Fatal(err)
	}
	x := make([]float64, 3)
	if err := fact.Solve(x, []float64{5, 6, 3}); err != nil {
		t.Fatal(err)
	}
	want := []float64{10. / 7, 11. / 7, 12. / 7}
	for i := range want {
		if different(x[i], want[i], 1e-12) {
			t.Errorf("x[%d]: have %g, want %g", i, x[i], want[i])
		}
	}
	if nnz := fact.(*SparseLU).NNZ(); nnz < m.NNZ() {
		t.Errorf("factor has %d elements, fewer than the matrix's %d", nnz, m.NNZ())
	}
}

// arrow returns an n×n matrix with a dominant diagonal and a full first
// row and column.
func arrow(n int) *CSR {
	a := sparse.ZerosSparse(n, n)
	a.Set(float64(2*n), 0, 0)
	for i := 1; i < n; i++ {
		a.Set(2, i, i)
		a.Set(-1, 0, i)
		a.Set(-1, i, 0)
	}
	m, err := FromSparse(a)
	if err != nil {
		panic(err)
	}
	return m
}

func TestMinimumDegree(t *testing.T) {
	const n = 50
	m := arrow(n)
	order, err := MinimumDegree(m)
	if err != nil {
		t.Fatal(err)
	}
	seen := make([]bool, n)
	for _, i := range order {
		if seen[i] {
			t.Fatalf("%d appears twice in %v", i, order)
		}
		seen[i] = true
	}
	if len(order) != n {
		t.Fatalf("order has %d elements, want %d", len(order), n)
	}
	// The hub has the highest degree until only one leaf is left.
	if order[0] != 1 {
		t.Errorf("first eliminated: have %d, want 1", order[0])
	}

	md, err := LU{}.Factorize(m)
	if err != nil {
		t.Fatal(err)
	}
	nat, err := LU{Ordering: NaturalOrder}.Factorize(m)
	if err != nil {
		t.Fatal(err)
	}
	if nnz := md.(*SparseLU).NNZ(); nnz != 3*n-2 {
		t.Errorf("minimum degree: have %d elements, want %d", nnz, 3*n-2)
	}
	if nnz := nat.(*SparseLU).NNZ(); nnz != n*n {
		t.Errorf("natural order: have %d elements, want %d", nnz, n*n)
	}

	if _, err := (LU{Ordering: Ordering(9)}).Factorize(m); err == nil {
		t.Error("invalid ordering should be an error")
	}
	wide, err := NewCSR(2, 3, []int{0, 0, 0}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := MinimumDegree(wide); !errors.Is(err, ErrShape) {
		t.Errorf("non-square: have %v", err)
	}
}

// stencil returns the 7-point transport-like operator of a k×k×k grid in
// lexicographic order, with random rates and a dominant diagonal.
func stencil(k int, rnd *rand.Rand) *CSR {
	n := k * k * k
	a := sparse.ZerosSparse(n, n)
	idx := func(x, y, z int) int { return (z*k+y)*k + x }
	for z := 0; z < k; z++ {
		for y := 0; y < k; y++ {
			for x := 0; x < k; x++ {
				i := idx(x, y, z)
				a.AddVal(1, i, i)
				for _, d := range [][3]int{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}} {
					xx, yy, zz := x+d[0], y+d[1], z+d[2]
					if xx >= k || yy >= k || zz >= k {
						continue
					}
					j := idx(xx, yy, zz)
					r := 0.5 + rnd.Float64()
					a.AddVal(r, i, i)
					a.AddVal(-r, j, i)
					r = 0.5 + rnd.Float64()
					a.AddVal(r, j, j)
					a.AddVal(-r, i, j)
				}
			}
		}
	}
	m, err := FromSparse(a)
	if err != nil {
		panic(err)
	}
	return m
}

func TestLUOrderingStencil(t *testing.T) {
	rnd := rand.New(rand.NewSource(2))
	a := stencil(8, rnd)
	n, _ := a.Dims()
	xWant := make([]float64, n)
	for i := range xWant {
		xWant[i] = rnd.NormFloat64()
	}
	b := make([]float64, n)
	if err := a.MulVec(b, xWant); err != nil {
		t.Fatal(err)
	}
	nnz := make(map[Ordering]int)
	for _, o := range []Ordering{MinimumDegreeOrder, NaturalOrder} {
		fact, err := LU{Ordering: o}.Factorize(a)
		if err != nil {
			t.Fatalf("%v: %v", o, err)
		}
		x := make([]float64, n)
		if err := fact.Solve(x, b); err != nil {
			t.Fatal(err)
		}
		for i := range x {
			if math.Abs(x[i]-xWant[i]) > 1e-8*(1+math.Abs(xWant[i])) {
				t.Errorf("%v: x[%d] = %g, want %g", o, i, x[i], xWant[i])
				break
			}
		}
		nnz[o] = fact.(*SparseLU).NNZ()
	}
	if nnz[MinimumDegreeOrder] >= nnz[NaturalOrder] {
		t.Errorf("minimum degree has %d elements, natural order %d", nnz[MinimumDegreeOrder], nnz[NaturalOrder])
	}
}

func TestSingular(t *testing.T) {
	s := sparse.ZerosSparse(3, 3)
	s.Set(1, 0, 0)
	s.Set(2, 0, 1)
	s.Set(2, 1, 0)
	s.Set(4, 1, 1)
	s.Set(1, 2, 2)
	m, err := FromSparse(s)
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range []Factorizer{LU{}, DenseLU{}} {
		if _, err := f.Factorize(m); !errors.Is(err, ErrSingular) {
			t.Errorf("%T: have %v, want %v", f, err, ErrSingular)
		}
	}
	if _, err := (LU{}).Factorize(Diag(make([]float64, 3))); !errors.Is(err, ErrSingular) {
		t.Errorf("zero matrix: have %v", err)
	}
}
