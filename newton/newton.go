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

// Package newton finds roots of large sparse nonlinear systems with a
// Newton-Chord-Shamanskii iteration: full Newton steps are interleaved
// with chord steps that reuse the last factorization of the Jacobian, and
// the Jacobian is refactorized after a fixed number of chord steps or
// whenever convergence slows down.
package newton

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/steadybox/spmat"
	"gonum.org/v1/gonum/floats"
)

// Problem is a nonlinear system F(x) = 0 with a sparse Jacobian.
// *steadybox.System implements Problem.
type Problem interface {
	Residual(ctx context.Context, x []float64) ([]float64, error)
	Jacobian(ctx context.Context, x []float64) (*spmat.CSR, error)
}

// State is the state of the solver.
type State int

// Solver states.
const (
	Init State = iota
	NewtonStep
	ChordStep
	Converged
	Stalled
	Failed
)

func (s State) String() string {
	switch s {
	case Init:
		return "Init"
	case NewtonStep:
		return "NewtonStep"
	case ChordStep:
		return "ChordStep"
	case Converged:
		return "Converged"
	case Stalled:
		return "Stalled"
	case Failed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Result is the outcome of Solve.
type Result struct {
	// X is the last accepted iterate. It is a root of the system only if
	// Diagnostics.State is Converged.
	X []float64
	Diagnostics
}

// Diagnostics describes the course of a solve.
type Diagnostics struct {
	State          State
	Iterations     int
	NewtonSteps    int
	ChordSteps     int
	Factorizations int

	// Rejected counts chord steps that increased the residual and were
	// discarded.
	Rejected int

	// Residuals holds the residual norm of the initial guess and of each
	// accepted step.
	Residuals []float64

	// LastStep is the norm of the last accepted step.
	LastStep float64

	// Reason says why the solver stopped.
	Reason string
}

// Residual returns the last residual norm.
func (d Diagnostics) Residual() float64 {
	if len(d.Residuals) == 0 {
		return math.NaN()
	}
	return d.Residuals[len(d.Residuals)-1]
}

type solver struct {
	prob Problem
	o    Options
	x, f []float64
	r    float64
	fact spmat.Factorization
	res  *Result
}

// Solve searches for a root of prob starting from x0, which is not
// modified. It returns a non-nil Result in all cases. The error is nil
// only if the solver converged; otherwise it is a *ConvergenceFailure, a
// *SingularJacobianError, or an error from prob or ctx.
func Solve(ctx context.Context, prob Problem, x0 []float64, o Options) (*Result, error) {
	res := &Result{X: append([]float64(nil), x0...)}
	res.State = Init
	o, err := o.check()
	if err != nil {
		res.State = Failed
		return res, err
	}
	s := &solver{prob: prob, o: o, x: res.X, res: res}
	err = s.run(ctx)
	log := o.Log.WithFields(logrus.Fields{
		"state":          res.State,
		"iterations":     res.Iterations,
		"newton":         res.NewtonSteps,
		"chord":          res.ChordSteps,
		"factorizations": res.Factorizations,
		"residual":       res.Residual(),
	})
	if err != nil {
		log.WithError(err).Warn("steady state not found")
		return res, err
	}
	log.Info("steady state found")
	return res, nil
}

func (s *solver) run(ctx context.Context) error {
	d := &s.res.Diagnostics
	o := s.o

	var err error
	s.f, err = s.prob.Residual(ctx, s.x)
	if err != nil {
		return s.fail("residual of initial guess", fmt.Errorf("newton: initial residual: %w", err))
	}
	s.r = o.Norm.of(s.f)
	d.Residuals = append(d.Residuals, s.r)
	if s.r < o.AbsTol {
		return s.converge("residual")
	}
	if !finite(s.r) {
		return s.fail("initial residual is not finite", &ConvergenceFailure{})
	}
	if err := s.refactorize(ctx); err != nil {
		return s.fail("factorization", err)
	}

	n := len(s.x)
	fresh := true // the next step uses a factorization made at the current iterate.
	chord, stall := 0, 0
	delta := make([]float64, n)
	rhs := make([]float64, n)
	xNew := make([]float64, n)
	for {
		if d.Iterations >= o.MaxIter {
			return s.fail("iteration limit", &ConvergenceFailure{})
		}
		if err := ctx.Err(); err != nil {
			return s.fail("cancelled", err)
		}
		d.Iterations++
		if fresh {
			d.State = NewtonStep
			d.NewtonSteps++
		} else {
			d.State = ChordStep
			d.ChordSteps++
		}

		for i, v := range s.f {
			rhs[i] = -v
		}
		if err := s.fact.Solve(delta, rhs); err != nil {
			return s.fail("linear solve", &SingularJacobianError{
				Iterate: append([]float64(nil), s.x...), Iteration: d.Iterations, Err: err})
		}

		lambda := 1.
		var fNew []float64
		var rNew float64
		for {
			copy(xNew, s.x)
			floats.AddScaled(xNew, lambda, delta)
			fNew, err = s.prob.Residual(ctx, xNew)
			if err != nil {
				return s.fail("residual", fmt.Errorf("newton: residual at iteration %d: %w", d.Iterations, err))
			}
			rNew = o.Norm.of(fNew)
			// Armijo condition on the residual norm.
			if !o.Damping || rNew <= (1-1e-4*lambda)*s.r || lambda/2 < o.MinStep {
				break
			}
			lambda /= 2
		}
		step := lambda * o.Norm.of(delta)
		rate := rNew / s.r

		s.o.Log.WithFields(logrus.Fields{
			"iteration": d.Iterations,
			"state":     d.State,
			"residual":  rNew,
			"step":      step,
			"damping":   lambda,
		}).Debug("newton iteration")

		if !fresh && !(rNew < s.r) {
			// The stale Jacobian is no longer good enough here.
			d.Rejected++
			if err := s.refactorize(ctx); err != nil {
				return s.fail("factorization", err)
			}
			fresh, chord = true, 0
			continue
		}

		copy(s.x, xNew)
		prev := s.r
		s.f, s.r = fNew, rNew
		d.Residuals = append(d.Residuals, s.r)
		d.LastStep = step

		switch {
		case s.r < o.AbsTol:
			return s.converge("residual")
		case !finite(s.r):
			return s.fail("residual is not finite", &ConvergenceFailure{})
		case o.RelTol > 0 && lambda == 1 && step <= o.RelTol*o.Norm.of(s.x):
			return s.converge("step size")
		}

		if s.r >= prev {
			stall++
		} else {
			stall = 0
		}
		if stall >= o.StallSteps {
			d.State = Stalled
			d.Reason = fmt.Sprintf("no decrease in %d steps", stall)
			return &ConvergenceFailure{Diagnostics: s.snapshot()}
		}

		if fresh {
			chord = 0
		} else {
			chord++
		}
		fresh = false
		if chord >= o.MaxChord || rate > o.RateThreshold {
			if err := s.refactorize(ctx); err != nil {
				return s.fail("factorization", err)
			}
			fresh, chord = true, 0
		}
	}
}

// refactorize evaluates and factorizes the Jacobian at the current iterate.
func (s *solver) refactorize(ctx context.Context) error {
	d := &s.res.Diagnostics
	j, err := s.prob.Jacobian(ctx, s.x)
	if err != nil {
		return fmt.Errorf("newton: Jacobian at iteration %d: %w", d.Iterations, err)
	}
	f, err := s.o.Factorizer.Factorize(j)
	if err != nil {
		return &SingularJacobianError{Iterate: append([]float64(nil), s.x...), Iteration: d.Iterations, Err: err}
	}
	s.fact = f
	d.Factorizations++
	return nil
}

func (s *solver) converge(reason string) error {
	s.res.State = Converged
	s.res.Reason = reason
	return nil
}

// fail moves the solver to the Failed state. A *ConvergenceFailure is
// filled in with the final diagnostics.
func (s *solver) fail(reason string, err error) error {
	s.res.State = Failed
	s.res.Reason = reason
	var cf *ConvergenceFailure
	if errors.As(err, &cf) {
		cf.Diagnostics = s.snapshot()
	}
	return err
}

func (s *solver) snapshot() Diagnostics {
	d := s.res.Diagnostics
	d.Residuals = append([]float64(nil), d.Residuals...)
	return d
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
