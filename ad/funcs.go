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

package ad

import "math"

// Exp returns e**a.
func Exp(a Number) Number {
	e := math.Exp(a.v)
	return chain(e, a, e)
}

// Log returns the natural logarithm of a.
func Log(a Number) Number { return chain(math.Log(a.v), a, 1/a.v) }

// Pow returns a**p for a plain exponent p.
func Pow(a Number, p float64) Number {
	return chain(math.Pow(a.v, p), a, p*math.Pow(a.v, p-1))
}

// Sqrt returns the square root of a.
func Sqrt(a Number) Number {
	s := math.Sqrt(a.v)
	return chain(s, a, 0.5/s)
}

// Max returns whichever of a and b has the larger primal value.
func Max(a, b Number) Number {
	if err := check("Max", a, b); err != nil {
		return fail(err)
	}
	if b.v > a.v {
		return b
	}
	return a
}

// Min returns whichever of a and b has the smaller primal value.
func Min(a, b Number) Number {
	if err := check("Min", a, b); err != nil {
		return fail(err)
	}
	if b.v < a.v {
		return b
	}
	return a
}

// Where returns a if cond is true and b otherwise. a and b must have the
// same representation.
func Where(cond bool, a, b Number) Number {
	if err := check("Where", a, b); err != nil {
		return fail(err)
	}
	if cond {
		return a
	}
	return b
}

// Indicator returns 1 if cond is true and 0 otherwise, in the
// representation of like. The result has a zero derivative.
func Indicator(cond bool, like Number) Number {
	if cond {
		return like.Lift(1)
	}
	return like.Lift(0)
}

// Sum returns the sum of xs. It returns the plain real 0 when xs is empty.
func Sum(xs ...Number) Number {
	if len(xs) == 0 {
		return Real(0)
	}
	s := xs[0]
	for _, x := range xs[1:] {
		s = s.Add(x)
	}
	return s
}

// Err returns the first error carried by any of xs.
func Err(xs ...Number) error {
	for _, x := range xs {
		if x.err != nil {
			return x.err
		}
	}
	return nil
}
