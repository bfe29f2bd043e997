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

package newton

import (
	"fmt"
	"io"
	"math"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/steadybox/spmat"
	"gonum.org/v1/gonum/floats"
)

// Norm selects the vector norm used for residuals and steps.
type Norm int

const (
	// MaxNorm is the largest absolute component.
	MaxNorm Norm = iota
	// TwoNorm is the Euclidean norm.
	TwoNorm
)

func (n Norm) of(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	if n == TwoNorm {
		return floats.Norm(x, 2)
	}
	return floats.Norm(x, math.Inf(1))
}

func (n Norm) String() string {
	switch n {
	case MaxNorm:
		return "max"
	case TwoNorm:
		return "2"
	default:
		return fmt.Sprintf("Norm(%d)", int(n))
	}
}

// ParseNorm returns the norm named "max" or "2".
func ParseNorm(s string) (Norm, error) {
	switch s {
	case "max", "inf":
		return MaxNorm, nil
	case "2", "two":
		return TwoNorm, nil
	}
	return 0, fmt.Errorf("newton: invalid norm %q; options are 'max' and '2'", s)
}

// Options configure Solve.
type Options struct {
	// AbsTol is the residual norm below which the solver has converged.
	AbsTol float64

	// RelTol is the relative step size ‖δ‖/‖x‖ below which the solver has
	// converged. Zero disables the test. Damped steps never satisfy it.
	RelTol float64

	// MaxIter is the largest number of steps taken, counting rejected ones.
	MaxIter int

	// MaxChord is the number of consecutive steps that may reuse a
	// factorization after the step that computed it. Zero gives Newton's
	// method.
	MaxChord int

	// RateThreshold triggers a new factorization when the ratio of
	// successive residual norms exceeds it.
	RateThreshold float64

	// Damping enables halving of steps that do not decrease the residual
	// sufficiently, down to a factor of MinStep.
	Damping bool
	MinStep float64

	// StallSteps is the number of consecutive accepted steps without a
	// decrease of the residual norm after which the solver gives up.
	StallSteps int

	Norm Norm

	// Factorizer factorizes Jacobians. The default is spmat.LU{}.
	Factorizer spmat.Factorizer

	// Log receives one Debug entry per step and a summary. The default
	// discards everything.
	Log logrus.FieldLogger
}

// DefaultOptions returns the default solver options.
func DefaultOptions() Options {
	return Options{
		AbsTol:        1e-10,
		MaxIter:       50,
		MaxChord:      3,
		RateThreshold: 0.5,
		MinStep:       1. / 1024,
		StallSteps:    5,
		Factorizer:    spmat.LU{},
	}
}

// check fills in defaults for unset fields and validates the rest.
func (o Options) check() (Options, error) {
	d := DefaultOptions()
	if o.AbsTol <= 0 || math.IsNaN(o.AbsTol) {
		return o, fmt.Errorf("newton: absolute tolerance %g should be >0", o.AbsTol)
	}
	if o.RelTol < 0 {
		return o, fmt.Errorf("newton: relative tolerance %g should be >=0", o.RelTol)
	}
	if o.MaxIter <= 0 {
		return o, fmt.Errorf("newton: maximum iterations %d should be >0", o.MaxIter)
	}
	if o.MaxChord < 0 {
		return o, fmt.Errorf("newton: maximum chord steps %d should be >=0", o.MaxChord)
	}
	if o.RateThreshold <= 0 {
		o.RateThreshold = d.RateThreshold
	}
	if o.MinStep <= 0 || o.MinStep > 1 {
		o.MinStep = d.MinStep
	}
	if o.StallSteps <= 0 {
		o.StallSteps = d.StallSteps
	}
	if o.Factorizer == nil {
		o.Factorizer = d.Factorizer
	}
	if o.Log == nil {
		o.Log = discard()
	}
	return o, nil
}

func discard() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
