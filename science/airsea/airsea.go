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


// Package airsea provides gas exchange between the near-surface cells and
// an atmosphere held at a fixed saturation concentration.
package airsea

import (
	"fmt"

	"github.com/ctessum/unit"
	"github.com/spatialmodel/steadybox"
	"github.com/spatialmodel/steadybox/ad"
	"github.com/spatialmodel/steadybox/spmat"
)

// Exchange relaxes tracer Self in surface cells towards its saturation
// value at rate κ = w/h, where w is the piston velocity and h the
// thickness of the exchanging layer. Other cells are unaffected.
type Exchange struct {
	// Self is the index of the exchanging tracer.
	Self int

	// PistonVelocity names the piston velocity parameter [m/s].
	PistonVelocity string

	// Thickness names the layer thickness parameter [m]. If it is empty
	// the thickness of each cell is used.
	Thickness string

	// Saturation names the saturation concentration parameter. If it is
	// empty the saturation concentration is 1, so that the tracer is a
	// ratio to the atmospheric value.
	Saturation string
}

// Check returns an error if e is incompletely specified.
func (e Exchange) Check() error {
	if e.Self < 0 {
		return fmt.Errorf("airsea: invalid tracer index %d", e.Self)
	}
	if e.PistonVelocity == "" {
		return fmt.Errorf("airsea: piston velocity parameter must be specified")
	}
	return nil
}

// Params returns the parameter names e reads.
func (e Exchange) Params() []string {
	p := []string{e.PistonVelocity}
	if e.Thickness != "" {
		p = append(p, e.Thickness)
	}
	if e.Saturation != "" {
		p = append(p, e.Saturation)
	}
	return p
}

// Dimensions returns the physical dimensions of the parameters e reads,
// except for the saturation concentration, which may be in any unit.
func (e Exchange) Dimensions() map[string]unit.Dimensions {
	d := map[string]unit.Dimensions{e.PistonVelocity: unit.MeterPerSecond}
	if e.Thickness != "" {
		d[e.Thickness] = unit.Meter
	}
	return d
}

// Kappa returns the exchange rate [1/s] in cell c; zero away from the
// surface.
func (e Exchange) Kappa(c steadybox.Cell, p steadybox.Params) (float64, error) {
	if !c.Surface {
		return 0, nil
	}
	w, ok := p.Lookup(e.PistonVelocity)
	if !ok {
		return 0, fmt.Errorf("airsea: missing parameter %s", e.PistonVelocity)
	}
	if !(w >= 0) {
		return 0, fmt.Errorf("airsea: piston velocity %s=%g should be >=0", e.PistonVelocity, w)
	}
	h := c.Thickness
	if e.Thickness != "" {
		if h, ok = p.Lookup(e.Thickness); !ok {
			return 0, fmt.Errorf("airsea: missing parameter %s", e.Thickness)
		}
	}
	if !(h > 0) {
		return 0, fmt.Errorf("airsea: layer thickness %g in cell %d should be >0", h, c.Global)
	}
	return w / h, nil
}

// saturation returns the saturation concentration.
func (e Exchange) saturation(p steadybox.Params) (float64, error) {
	if e.Saturation == "" {
		return 1, nil
	}
	s, ok := p.Lookup(e.Saturation)
	if !ok {
		return 0, fmt.Errorf("airsea: missing parameter %s", e.Saturation)
	}
	return s, nil
}

// Kinetics returns the exchange κ·(s - x[Self]).
func (e Exchange) Kinetics() (steadybox.KineticsFunc, error) {
	if err := e.Check(); err != nil {
		return nil, err
	}
	return func(c steadybox.Cell, x []ad.Number, p steadybox.Params) ad.Number {
		if e.Self >= len(x) {
			return ad.Errorf("airsea: tracer index %d out of range with %d tracers", e.Self, len(x))
		}
		kappa, err := e.Kappa(c, p)
		if err != nil {
			return ad.Errorf("%w", err)
		}
		if kappa == 0 {
			return x[e.Self].Lift(0)
		}
		s, err := e.saturation(p)
		if err != nil {
			return ad.Errorf("%w", err)
		}
		return x[e.Self].Neg().Shift(s).Scale(kappa)
	}, nil
}

// Gated returns the exchange multiplied by the local value of tracer
// gate, for example the fraction of the surface free of ice.
func (e Exchange) Gated(gate int) (steadybox.KineticsFunc, error) {
	k, err := e.Kinetics()
	if err != nil {
		return nil, err
	}
	if gate < 0 {
		return nil, fmt.Errorf("airsea: invalid gate tracer index %d", gate)
	}
	return func(c steadybox.Cell, x []ad.Number, p steadybox.Params) ad.Number {
		if gate >= len(x) {
			return ad.Errorf("airsea: gate tracer index %d out of range with %d tracers", gate, len(x))
		}
		return k(c, x, p).Mul(x[gate])
	}, nil
}

// Operator returns the linear part of the exchange, diag(κ), over the
// active cells of g. Added to the transport of a tracer whose kinetics
// are replaced by Source, it gives the same steady state.
func (e Exchange) Operator(g *steadybox.Grid) steadybox.TransportFunc {
	cells := g.Cells()
	return func(p steadybox.Params) (*spmat.CSR, error) {
		d := make([]float64, len(cells))
		for i, c := range cells {
			k, err := e.Kappa(c, p)
			if err != nil {
				return nil, err
			}
			d[i] = k
		}
		return spmat.Diag(d), nil
	}
}

// Source returns the constant part of the exchange, κ·s, in each active
// cell of g.
func (e Exchange) Source(g *steadybox.Grid, p steadybox.Params) ([]float64, error) {
	s, err := e.saturation(p)
	if err != nil {
		return nil, err
	}
	cells := g.Cells()
	src := make([]float64, len(cells))
	for i, c := range cells {
		k, err := e.Kappa(c, p)
		if err != nil {
			return nil, err
		}
		src[i] = k * s
	}
	return src, nil
}
