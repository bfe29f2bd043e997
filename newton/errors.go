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

import "fmt"

// SingularJacobianError is returned when the Jacobian cannot be
// factorized or the factorization cannot be used.
type SingularJacobianError struct {
	// Iterate is the state at which the Jacobian was evaluated.
	Iterate   []float64
	Iteration int
	Err       error
}

func (e *SingularJacobianError) Error() string {
	return fmt.Sprintf("newton: singular Jacobian at iteration %d: %v", e.Iteration, e.Err)
}

func (e *SingularJacobianError) Unwrap() error { return e.Err }

// ConvergenceFailure is returned when the solver stalls or reaches its
// iteration limit. The Result returned with it holds the last iterate.
type ConvergenceFailure struct {
	Diagnostics Diagnostics
}

func (e *ConvergenceFailure) Error() string {
	d := e.Diagnostics
	return fmt.Sprintf("newton: %s after %d iterations (%s): residual norm %g, last step %g",
		d.State, d.Iterations, d.Reason, d.Residual(), d.LastStep)
}
