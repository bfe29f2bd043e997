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


package boxmodel

import (
	"github.com/ctessum/unit"
	"github.com/spatialmodel/steadybox"
	"github.com/spatialmodel/steadybox/opcache"
	"github.com/spatialmodel/steadybox/paramtable"
	"github.com/spatialmodel/steadybox/spmat"
)

var unitVolumeFlux = unit.Meter3PerSecond

// operatorCacheSize is the number of transport operators kept for models
// whose circulation depends on parameters.
const operatorCacheSize = 16

// Setup is a model ready to be solved.
type Setup struct {
	Model    *Model
	Grid     *steadybox.Grid
	Table    *paramtable.Table
	Params   steadybox.Params
	Registry *steadybox.Registry
	System   *steadybox.System

	// Transport returns the restricted transport operator shared by all
	// tracers.
	Transport steadybox.TransportFunc

	// Lifetimes holds the e-folding time [s] of each decaying tracer.
	Lifetimes map[string]float64
}

// Setup builds the grid, parameters, tracers and system of m. Parameters
// used by mechanisms or as flux rates are checked for presence and
// dimensions.
func (m *Model) Setup() (*Setup, error) {
	g, err := m.Grid()
	if err != nil {
		return nil, err
	}
	tab, err := paramtable.New(m.Params)
	if err != nil {
		return nil, err
	}
	p := tab.Params()
	s := &Setup{Model: m, Grid: g, Table: tab, Params: p, Lifetimes: make(map[string]float64)}

	dims := make(map[string]unit.Dimensions)
	for _, name := range m.RateParams() {
		dims[name] = unitVolumeFlux
	}
	s.Transport, err = m.transport(g, p)
	if err != nil {
		return nil, err
	}

	tracers := make(map[string]int, len(m.Tracers))
	for i, t := range m.Tracers {
		tracers[t.Name] = i
	}
	s.Registry = steadybox.NewRegistry(g)
	for i, t := range m.Tracers {
		k, err := t.build(i, tracers)
		if err != nil {
			return nil, err
		}
		for n, d := range k.dims {
			dims[n] = d
		}
		err = s.Registry.Register(t.Name, steadybox.TracerFuncs{
			TransportFunc: s.Transport,
			KineticsFunc:  k.f,
			Params:        append(k.params, m.RateParams()...),
		})
		if err != nil {
			return nil, err
		}
		if k.lifetime != "" {
			s.Lifetimes[t.Name] = p.Value(k.lifetime)
		}
	}
	if err := tab.Check(dims); err != nil {
		return nil, err
	}
	if s.System, err = steadybox.NewSystem(s.Registry, p); err != nil {
		return nil, err
	}
	return s, nil
}

// transport returns the transport of the model. A circulation with fixed
// rates is assembled once; one that depends on parameters is assembled on
// demand and cached by the values of its rate parameters.
func (m *Model) transport(g *steadybox.Grid, p steadybox.Params) (steadybox.TransportFunc, error) {
	build := func(p steadybox.Params) (*spmat.CSR, error) {
		edges, err := m.Edges(p)
		if err != nil {
			return nil, err
		}
		return g.Transport(edges)
	}
	keys := m.RateParams()
	if len(keys) == 0 {
		t, err := build(p)
		if err != nil {
			return nil, err
		}
		return steadybox.Constant(t), nil
	}
	c := opcache.New(build, operatorCacheSize, keys...)
	if _, err := c.Transport(p); err != nil {
		return nil, err
	}
	return c.Transport, nil
}

// InitialGuess returns the initial state of the system: each tracer's
// Initial value in every active box.
func (s *Setup) InitialGuess() []float64 {
	x := make([]float64, s.Registry.Size())
	for k, t := range s.Model.Tracers {
		b := s.Registry.Block(x, k)
		for i := range b {
			b[i] = t.Initial
		}
	}
	return x
}
