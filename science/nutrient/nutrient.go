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


// Package nutrient contains a two-tracer phosphorus cycle: phosphate is
// taken up by biology in the lit surface layer and returned through a pool
// of dissolved organic phosphorus that remineralizes at a fixed rate.
package nutrient

import (
	"fmt"

	"github.com/ctessum/unit"
	"github.com/spatialmodel/steadybox"
	"github.com/spatialmodel/steadybox/ad"
)

// Mechanism holds the tracer indices and parameter names of the cycle.
//
//	uptake = μ·PO4/(PO4 + k)   where depth < zc, zero below
//	d PO4/dt = -uptake + λ·DOP + γ·(P̄ - PO4)
//	d DOP/dt =  uptake - λ·DOP
//
// The restoring term is optional; without it the total phosphorus of a
// closed circulation is not fixed by the steady state.
type Mechanism struct {
	// PO4 and DOP are the indices of the two tracers.
	PO4, DOP int

	MaxUptake         string // μ [1/s]
	HalfSaturation    string // k [concentration]
	CompensationDepth string // zc [m]
	Remineralization  string // λ [1/s]

	// Restoring names a restoring rate γ [1/s] and Mean the concentration
	// P̄ phosphate is restored to. Both or neither must be set.
	Restoring, Mean string
}

// Species returns the names of the tracers of the mechanism, in the order
// of their indices.
func (m Mechanism) Species() []string {
	if m.DOP < m.PO4 {
		return []string{"DOP", "PO4"}
	}
	return []string{"PO4", "DOP"}
}

// Check returns an error if m is incompletely specified.
func (m Mechanism) Check() error {
	if m.PO4 < 0 || m.DOP < 0 || m.PO4 == m.DOP {
		return fmt.Errorf("nutrient: invalid tracer indices PO4=%d, DOP=%d", m.PO4, m.DOP)
	}
	for _, name := range []string{m.MaxUptake, m.HalfSaturation, m.CompensationDepth, m.Remineralization} {
		if name == "" {
			return fmt.Errorf("nutrient: uptake, half saturation, compensation depth and remineralization parameters must all be specified")
		}
	}
	if (m.Restoring == "") != (m.Mean == "") {
		return fmt.Errorf("nutrient: restoring rate %q and mean %q must be set together", m.Restoring, m.Mean)
	}
	return nil
}

// Params returns the parameter names m reads.
func (m Mechanism) Params() []string {
	p := []string{m.MaxUptake, m.HalfSaturation, m.CompensationDepth, m.Remineralization}
	if m.Restoring != "" {
		p = append(p, m.Restoring, m.Mean)
	}
	return p
}

// Dimensions returns the physical dimensions of the rate and depth
// parameters m reads. Concentrations may be in any unit and are not
// included.
func (m Mechanism) Dimensions() map[string]unit.Dimensions {
	d := map[string]unit.Dimensions{
		m.MaxUptake:         unit.Herz,
		m.CompensationDepth: unit.Meter,
		m.Remineralization:  unit.Herz,
	}
	if m.Restoring != "" {
		d[m.Restoring] = unit.Herz
	}
	return d
}

type rates struct {
	mu, k, zc, lambda, gamma, mean float64
}

func (m Mechanism) rates(p steadybox.Params) (rates, error) {
	var r rates
	var missing []string
	get := func(name string) float64 {
		v, ok := p.Lookup(name)
		if !ok {
			missing = append(missing, name)
		}
		return v
	}
	r.mu = get(m.MaxUptake)
	r.k = get(m.HalfSaturation)
	r.zc = get(m.CompensationDepth)
	r.lambda = get(m.Remineralization)
	if m.Restoring != "" {
		r.gamma = get(m.Restoring)
		r.mean = get(m.Mean)
	}
	if len(missing) > 0 {
		return r, fmt.Errorf("nutrient: missing parameters %v", missing)
	}
	if !(r.k > 0) {
		return r, fmt.Errorf("nutrient: half saturation %s=%g should be >0", m.HalfSaturation, r.k)
	}
	return r, nil
}

// Uptake returns the biological uptake of phosphate in cell c.
func (m Mechanism) Uptake(c steadybox.Cell, x []ad.Number, p steadybox.Params) ad.Number {
	r, err := m.rates(p)
	if err != nil {
		return ad.Errorf("%w", err)
	}
	return m.uptake(c, x, r)
}

func (m Mechanism) uptake(c steadybox.Cell, x []ad.Number, r rates) ad.Number {
	po4 := x[m.PO4]
	lit := ad.Indicator(c.Depth < r.zc, po4)
	return po4.Scale(r.mu).Div(po4.Shift(r.k)).Mul(lit)
}

// Kinetics returns the local rate of change of the named species, "PO4"
// or "DOP".
func (m Mechanism) Kinetics(species string) (steadybox.KineticsFunc, error) {
	if err := m.Check(); err != nil {
		return nil, err
	}
	options := map[string]func(c steadybox.Cell, x []ad.Number, r rates) ad.Number{
		"PO4": func(c steadybox.Cell, x []ad.Number, r rates) ad.Number {
			g := m.uptake(c, x, r).Neg().Add(x[m.DOP].Scale(r.lambda))
			if m.Restoring != "" {
				g = g.Add(x[m.PO4].Neg().Shift(r.mean).Scale(r.gamma))
			}
			return g
		},
		"DOP": func(c steadybox.Cell, x []ad.Number, r rates) ad.Number {
			return m.uptake(c, x, r).Sub(x[m.DOP].Scale(r.lambda))
		},
	}
	f, ok := options[species]
	if !ok {
		return nil, fmt.Errorf("nutrient: invalid species %s; options are PO4 and DOP", species)
	}
	return func(c steadybox.Cell, x []ad.Number, p steadybox.Params) ad.Number {
		if m.PO4 >= len(x) || m.DOP >= len(x) {
			return ad.Errorf("nutrient: tracer indices PO4=%d, DOP=%d out of range with %d tracers", m.PO4, m.DOP, len(x))
		}
		r, err := m.rates(p)
		if err != nil {
			return ad.Errorf("%w", err)
		}
		return f(c, x, r)
	}, nil
}
