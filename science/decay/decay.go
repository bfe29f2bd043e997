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


// Package decay provides first-order loss of a tracer, such as
// radioactive decay, and the ages computed from it.
package decay

import (
	"fmt"
	"math"

	"github.com/ctessum/unit"
	"github.com/spatialmodel/steadybox"
	"github.com/spatialmodel/steadybox/ad"
	"github.com/spatialmodel/steadybox/spmat"
)

// Decay removes tracer Self at a rate proportional to its concentration.
// Exactly one of Rate and Lifetime names the parameter that sets the
// rate constant.
type Decay struct {
	// Self is the index of the decaying tracer.
	Self int

	// Rate is the name of a rate constant parameter [1/s].
	Rate string

	// Lifetime is the name of an e-folding time parameter [s].
	Lifetime string
}

// Check returns an error if d is incompletely specified.
func (d Decay) Check() error {
	if d.Self < 0 {
		return fmt.Errorf("decay: invalid tracer index %d", d.Self)
	}
	if (d.Rate == "") == (d.Lifetime == "") {
		return fmt.Errorf("decay: exactly one of rate and lifetime must be specified; have %q and %q", d.Rate, d.Lifetime)
	}
	return nil
}

// Lambda returns the rate constant [1/s] for parameters p.
func (d Decay) Lambda(p steadybox.Params) (float64, error) {
	name := d.Rate
	if name == "" {
		name = d.Lifetime
	}
	v, ok := p.Lookup(name)
	if !ok {
		return math.NaN(), fmt.Errorf("decay: missing parameter %s", name)
	}
	if d.Rate == "" {
		if !(v > 0) {
			return math.NaN(), fmt.Errorf("decay: lifetime %s=%g should be >0", name, v)
		}
		return 1 / v, nil
	}
	if !(v >= 0) {
		return math.NaN(), fmt.Errorf("decay: rate %s=%g should be >=0", name, v)
	}
	return v, nil
}

// Params returns the parameter names d reads.
func (d Decay) Params() []string {
	if d.Rate != "" {
		return []string{d.Rate}
	}
	return []string{d.Lifetime}
}

// Dimensions returns the physical dimensions of the parameters d reads.
func (d Decay) Dimensions() map[string]unit.Dimensions {
	if d.Rate != "" {
		return map[string]unit.Dimensions{d.Rate: unit.Herz}
	}
	return map[string]unit.Dimensions{d.Lifetime: unit.Second}
}

// Kinetics returns the local loss -λ·x[Self].
func (d Decay) Kinetics() (steadybox.KineticsFunc, error) {
	if err := d.Check(); err != nil {
		return nil, err
	}
	return func(_ steadybox.Cell, x []ad.Number, p steadybox.Params) ad.Number {
		if d.Self >= len(x) {
			return ad.Errorf("decay: tracer index %d out of range with %d tracers", d.Self, len(x))
		}
		lambda, err := d.Lambda(p)
		if err != nil {
			return ad.Errorf("%w", err)
		}
		return x[d.Self].Scale(-lambda)
	}, nil
}

// Operator returns base augmented by the decay, T + λI. A linear tracer
// with this transport needs no kinetics for the decay.
func (d Decay) Operator(base steadybox.TransportFunc) (steadybox.TransportFunc, error) {
	if err := d.Check(); err != nil {
		return nil, err
	}
	return func(p steadybox.Params) (*spmat.CSR, error) {
		t, err := base(p)
		if err != nil {
			return nil, err
		}
		lambda, err := d.Lambda(p)
		if err != nil {
			return nil, err
		}
		n, _ := t.Dims()
		return t.Add(spmat.Identity(n).Scale(lambda))
	}, nil
}

// Age converts ratios R of a decaying tracer to its source value into
// ages τ·ln(1/R) [s], where τ is the e-folding time.
func Age(ratio []float64, lifetime float64) ([]float64, error) {
	if !(lifetime > 0) {
		return nil, fmt.Errorf("decay: lifetime %g should be >0", lifetime)
	}
	age := make([]float64, len(ratio))
	for i, r := range ratio {
		if !(r > 0) {
			return nil, fmt.Errorf("decay: ratio %g in cell %d should be >0", r, i)
		}
		age[i] = -lifetime * math.Log(r)
	}
	return age, nil
}
