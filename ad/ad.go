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

// Package ad implements forward-mode automatic differentiation with dual
// numbers that carry a vector of partial derivatives.
//
// A Number is either a plain real or a dual number. Kinetics functions
// receive their state as Numbers and must create any constants they
// combine with that state through Lift, so that the constant has the same
// representation as the state. Combining a dual number with a plain real
// does not panic: it yields a Number carrying an error that wraps
// ErrMismatch, and every operation on that Number passes the error along.
// Callers check for it with Err once the calculation is finished.
package ad

import (
	"errors"
	"fmt"
	"math"
)

// ErrMismatch is reported when an operation combines a dual number with a
// plain real that was not lifted into the dual representation.
var ErrMismatch = errors.New("ad: operation between a dual number and an un-lifted constant")

// Number is a real value with an optional tangent vector. The zero value is
// the plain real 0.
type Number struct {
	v   float64
	d   []float64 // nil for plain reals
	err error
}

// Real returns a plain real number.
func Real(v float64) Number { return Number{v: v} }

// Variable returns a dual number with value v whose tangent is the i'th
// unit vector of length n.
func Variable(v float64, i, n int) Number {
	d := make([]float64, n)
	d[i] = 1
	return Number{v: v, d: d}
}

// Value returns the primal part of a.
func (a Number) Value() float64 { return a.v }

// IsDual reports whether a carries a tangent.
func (a Number) IsDual() bool { return a.d != nil }

// Err returns the error carried by a, if any.
func (a Number) Err() error { return a.err }

// Deriv returns the partial derivative of a with respect to the i'th
// variable. Plain reals have zero derivatives.
func (a Number) Deriv(i int) float64 {
	if a.d == nil || i >= len(a.d) {
		return 0
	}
	return a.d[i]
}

// Tangent returns a copy of the tangent of a, or nil for a plain real.
func (a Number) Tangent() []float64 {
	if a.d == nil {
		return nil
	}
	return append([]float64(nil), a.d...)
}

// Lift returns the constant c in the same representation as a: a dual
// number with a zero tangent if a is dual, and a plain real otherwise.
func (a Number) Lift(c float64) Number {
	if a.err != nil {
		return a
	}
	if a.d == nil {
		return Number{v: c}
	}
	return Number{v: c, d: make([]float64, len(a.d))}
}

func (a Number) String() string {
	switch {
	case a.err != nil:
		return fmt.Sprintf("ad.Number(%v)", a.err)
	case a.d == nil:
		return fmt.Sprintf("%g", a.v)
	default:
		return fmt.Sprintf("%g%+v", a.v, a.d)
	}
}

// Errorf returns a Number that carries an error, for kinetics functions
// that need to report an invalid state.
func Errorf(format string, args ...interface{}) Number {
	return Number{v: math.NaN(), err: fmt.Errorf(format, args...)}
}

// check returns the first error of a and b, or a mismatch error when only
// one of them is dual.
func check(op string, a, b Number) error {
	if a.err != nil {
		return a.err
	}
	if b.err != nil {
		return b.err
	}
	if (a.d == nil) != (b.d == nil) {
		return fmt.Errorf("%s(%v, %v): %w", op, a.v, b.v, ErrMismatch)
	}
	if a.d != nil && len(a.d) != len(b.d) {
		return fmt.Errorf("ad: %s: tangent lengths %d and %d differ", op, len(a.d), len(b.d))
	}
	return nil
}

func fail(err error) Number { return Number{v: math.NaN(), err: err} }

// combine returns a number with value v and tangent da*a.d + db*b.d.
func combine(v float64, a Number, da float64, b Number, db float64) Number {
	if a.d == nil {
		return Number{v: v}
	}
	d := make([]float64, len(a.d))
	for i := range d {
		d[i] = da*a.d[i] + db*b.d[i]
	}
	return Number{v: v, d: d}
}

// chain returns a number with value v and tangent dv*a.d.
func chain(v float64, a Number, dv float64) Number {
	if a.err != nil {
		return a
	}
	if a.d == nil {
		return Number{v: v}
	}
	d := make([]float64, len(a.d))
	for i, x := range a.d {
		d[i] = dv * x
	}
	return Number{v: v, d: d}
}

// Add returns a+b.
func (a Number) Add(b Number) Number {
	if err := check("Add", a, b); err != nil {
		return fail(err)
	}
	return combine(a.v+b.v, a, 1, b, 1)
}

// Sub returns a-b.
func (a Number) Sub(b Number) Number {
	if err := check("Sub", a, b); err != nil {
		return fail(err)
	}
	return combine(a.v-b.v, a, 1, b, -1)
}

// Mul returns a*b.
func (a Number) Mul(b Number) Number {
	if err := check("Mul", a, b); err != nil {
		return fail(err)
	}
	return combine(a.v*b.v, a, b.v, b, a.v)
}

// Div returns a/b.
func (a Number) Div(b Number) Number {
	if err := check("Div", a, b); err != nil {
		return fail(err)
	}
	return combine(a.v/b.v, a, 1/b.v, b, -a.v/(b.v*b.v))
}

// Neg returns -a.
func (a Number) Neg() Number { return chain(-a.v, a, -1) }

// Scale returns f*a, where f is a plain scaling factor.
func (a Number) Scale(f float64) Number { return chain(f*a.v, a, f) }

// Shift returns a+c, where c is a plain constant.
func (a Number) Shift(c float64) Number { return chain(a.v+c, a, 1) }

// Less reports whether the primal value of a is less than that of b.
func (a Number) Less(b Number) bool { return a.v < b.v }

// Greater reports whether the primal value of a is greater than that of b.
func (a Number) Greater(b Number) bool { return a.v > b.v }
