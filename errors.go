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

import "fmt"

// ConfigurationError is returned when grid, flux, tracer or parameter
// input is malformed.
type ConfigurationError struct {
	// What names the offending input, e.g. "flux edge 3".
	What string
	Msg  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("steadybox: configuration: %s: %s", e.What, e.Msg)
}

func configErrorf(what, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{What: what, Msg: fmt.Sprintf(format, args...)}
}

// DifferentiationError is returned when the local kinetics of a tracer
// cannot be evaluated or differentiated at a cell, most often because the
// kinetics combined its state with a constant that was not lifted with
// ad.Number.Lift.
type DifferentiationError struct {
	Tracer string
	// Cell is the active index of the cell.
	Cell int
	Err  error
}

func (e *DifferentiationError) Error() string {
	return fmt.Sprintf("steadybox: differentiating kinetics of tracer %s in cell %d: %v", e.Tracer, e.Cell, e.Err)
}

func (e *DifferentiationError) Unwrap() error { return e.Err }
