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

package steadybox

import (
	"context"
	"fmt"

	"github.com/spatialmodel/steadybox/ad"
	"github.com/spatialmodel/steadybox/spmat"
)

// System is the steady-state problem F(x) = 0 of a set of tracers with a
// fixed parameter set, where for each tracer k
//
//	F_k(x) = -T_k(p)·x_k + G_k(x, p).
//
// A System is immutable and its methods may be called concurrently.
type System struct {
	reg   *Registry
	p     Params
	cells []Cell
}

// NewSystem returns the system defined by the tracers in r and the
// parameters p. r must not be modified afterwards.
func NewSystem(r *Registry, p Params) (*System, error) {
	if err := r.Check(p); err != nil {
		return nil, err
	}
	return &System{reg: r, p: p, cells: r.Grid().Cells()}, nil
}

// Registry returns the tracers of the system.
func (s *System) Registry() *Registry { return s.reg }

// Params returns the parameters of the system.
func (s *System) Params() Params { return s.p }

// Size returns the length of the state vector.
func (s *System) Size() int { return s.reg.Size() }

// transports evaluates the transport operator of every tracer.
func (s *System) transports() ([]*spmat.CSR, error) {
	nb := s.reg.NumCells()
	ts := make([]*spmat.CSR, s.reg.Len())
	for k, t := range s.reg.tracers {
		m, err := t.Transport(s.p)
		if err != nil {
			return nil, fmt.Errorf("steadybox: transport of tracer %s: %w", s.reg.names[k], err)
		}
		if r, c := m.Dims(); r != nb || c != nb {
			return nil, configErrorf("tracer "+s.reg.names[k], "transport operator is %d×%d but there are %d active cells", r, c, nb)
		}
		ts[k] = m
	}
	return ts, nil
}

func (s *System) checkState(x []float64) error {
	if len(x) != s.Size() {
		return fmt.Errorf("steadybox: state has length %d but %d tracers in %d cells need %d: %w",
			len(x), s.reg.Len(), s.reg.NumCells(), s.Size(), spmat.ErrShape)
	}
	return nil
}

// Residual returns F(x). x is not modified.
func (s *System) Residual(ctx context.Context, x []float64) ([]float64, error) {
	if err := s.checkState(x); err != nil {
		return nil, err
	}
	ts, err := s.transports()
	if err != nil {
		return nil, err
	}
	f := make([]float64, len(x))
	for k, t := range ts {
		fk := s.reg.Block(f, k)
		if err := t.MulVec(fk, s.reg.Block(x, k)); err != nil {
			return nil, err
		}
		for i := range fk {
			fk[i] = -fk[i]
		}
	}
	ntr := s.reg.Len()
	err = forEachCell(ctx, s.reg.NumCells(), func(c int) error {
		xc := make([]ad.Number, ntr)
		for j := range xc {
			xc[j] = ad.Real(x[s.reg.Offset(j, c)])
		}
		for k, t := range s.reg.tracers {
			g := t.Kinetics(s.cells[c], xc, s.p)
			if err := g.Err(); err != nil {
				return &DifferentiationError{Tracer: s.reg.names[k], Cell: c, Err: err}
			}
			f[s.reg.Offset(k, c)] += g.Value()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// LocalJacobian returns the derivatives of the kinetics of every tracer in
// active cell c with respect to every tracer in the same cell, as a
// row-major n_tracers×n_tracers matrix.
func (s *System) LocalJacobian(x []float64, c int) ([]float64, error) {
	if err := s.checkState(x); err != nil {
		return nil, err
	}
	ntr := s.reg.Len()
	d := make([]float64, ntr*ntr)
	return d, s.localJacobian(d, x, c)
}

func (s *System) localJacobian(dst, x []float64, c int) error {
	ntr := s.reg.Len()
	xc := make([]ad.Number, ntr)
	for j := range xc {
		xc[j] = ad.Variable(x[s.reg.Offset(j, c)], j, ntr)
	}
	for k, t := range s.reg.tracers {
		g := t.Kinetics(s.cells[c], xc, s.p)
		if err := g.Err(); err != nil {
			return &DifferentiationError{Tracer: s.reg.names[k], Cell: c, Err: err}
		}
		// A plain real here means the kinetics dropped the tangent of x.
		if !g.IsDual() {
			return &DifferentiationError{Tracer: s.reg.names[k], Cell: c, Err: ad.ErrMismatch}
		}
		for j := 0; j < ntr; j++ {
			dst[k*ntr+j] = g.Deriv(j)
		}
	}
	return nil
}

// Jacobian returns the sparse Jacobian of F at x. Block (k, k) holds
// -T_k(p) plus the derivative of G_k with respect to tracer k; block
// (k, j) with j ≠ k holds the derivative of G_k with respect to tracer j,
// which is diagonal because kinetics are local to a cell. The diagonal is
// always stored. x is not modified.
func (s *System) Jacobian(ctx context.Context, x []float64) (*spmat.CSR, error) {
	if err := s.checkState(x); err != nil {
		return nil, err
	}
	ts, err := s.transports()
	if err != nil {
		return nil, err
	}
	nb, ntr := s.reg.NumCells(), s.reg.Len()

	// Each cell writes its own n_tracers² block of local.
	local := make([]float64, nb*ntr*ntr)
	err = forEachCell(ctx, nb, func(c int) error {
		return s.localJacobian(local[c*ntr*ntr:(c+1)*ntr*ntr], x, c)
	})
	if err != nil {
		return nil, err
	}

	nnz := nb * ntr * ntr
	for _, t := range ts {
		nnz += t.NNZ()
	}
	n := nb * ntr
	b := spmat.NewBuilder(n, n, nnz)
	for k, t := range ts {
		for c := 0; c < nb; c++ {
			row := local[(c*ntr+k)*ntr : (c*ntr+k+1)*ntr]
			for j := 0; j < k; j++ {
				if row[j] != 0 {
					b.Append(j*nb+c, row[j])
				}
			}
			cols, vals := t.Row(c)
			diag := false
			for p, cc := range cols {
				if !diag && cc >= c {
					diag = true
					if cc == c {
						b.Append(k*nb+c, row[k]-vals[p])
						continue
					}
					b.Append(k*nb+c, row[k])
				}
				b.Append(k*nb+cc, -vals[p])
			}
			if !diag {
				b.Append(k*nb+c, row[k])
			}
			for j := k + 1; j < ntr; j++ {
				if row[j] != 0 {
					b.Append(j*nb+c, row[j])
				}
			}
			b.EndRow()
		}
	}
	return b.Matrix()
}
