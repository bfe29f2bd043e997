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
	"github.com/spatialmodel/steadybox/ad"
	"github.com/spatialmodel/steadybox/spmat"
)

// Tracer is an interface for the transport and local kinetics of one
// tracer.
type Tracer interface {
	// Transport returns the flux-divergence operator T(p) acting on the
	// tracer's concentrations in the active cells. It may differ between
	// tracers, e.g. when only some tracers exchange with the atmosphere.
	Transport(p Params) (*spmat.CSR, error)

	// Kinetics returns the local source-minus-sink rate of the tracer in
	// cell c. x holds the concentration of every tracer in cell c, in
	// registration order. Constants combined with x must be created with
	// Lift; comparisons only see primal values.
	Kinetics(c Cell, x []ad.Number, p Params) ad.Number
}

// TransportFunc is the type of Tracer.Transport.
type TransportFunc func(p Params) (*spmat.CSR, error)

// KineticsFunc is the type of Tracer.Kinetics.
type KineticsFunc func(c Cell, x []ad.Number, p Params) ad.Number

// TracerFuncs is a Tracer made of plain functions. A nil Kinetics means
// that the tracer has no local sources or sinks.
type TracerFuncs struct {
	TransportFunc TransportFunc
	KineticsFunc  KineticsFunc

	// Params lists the parameters the functions read, so that
	// Registry.Check can report missing ones.
	Params []string
}

// Transport implements Tracer.
func (t TracerFuncs) Transport(p Params) (*spmat.CSR, error) { return t.TransportFunc(p) }

// Kinetics implements Tracer.
func (t TracerFuncs) Kinetics(c Cell, x []ad.Number, p Params) ad.Number {
	if t.KineticsFunc == nil {
		return x[0].Lift(0)
	}
	return t.KineticsFunc(c, x, p)
}

// Requires implements ParamUser.
func (t TracerFuncs) Requires() []string { return t.Params }

// ParamUser is implemented by tracers that know which parameters they
// read.
type ParamUser interface {
	Requires() []string
}

// Constant returns a TransportFunc that always returns t.
func Constant(t *spmat.CSR) TransportFunc {
	return func(Params) (*spmat.CSR, error) { return t, nil }
}

// Sum returns kinetics that add the rates of fs. With no functions the
// rate is zero.
func Sum(fs ...KineticsFunc) KineticsFunc {
	return func(c Cell, x []ad.Number, p Params) ad.Number {
		if len(fs) == 0 {
			return x[0].Lift(0)
		}
		rates := make([]ad.Number, len(fs))
		for i, f := range fs {
			rates[i] = f(c, x, p)
		}
		return ad.Sum(rates...)
	}
}
