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
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/spatialmodel/steadybox"
	"github.com/spatialmodel/steadybox/newton"
	"github.com/spatialmodel/steadybox/science/decay"
)

const secondsPerYear = 365.25 * 86400

// Solution is a steady state in a form for output.
type Solution struct {
	// Model is the fingerprint of the model that was solved.
	Model      string           `toml:"model"`
	State      string           `toml:"state"`
	Iterations int              `toml:"iterations"`
	Residual   float64          `toml:"residual"`
	Tracers    []TracerSolution `toml:"tracer"`
}

// TracerSolution holds the concentrations of one tracer in the active
// boxes.
type TracerSolution struct {
	Name   string    `toml:"name"`
	Boxes  []string  `toml:"boxes"`
	Values []float64 `toml:"values"`

	// Inventory is the volume-weighted total.
	Inventory float64 `toml:"inventory"`

	// AgeYears is the radiocarbon-style age τ·ln(1/x) of a decaying
	// tracer whose values are ratios to the surface source.
	AgeYears []float64 `toml:"age_years,omitempty"`
}

// Solution converts a solver result into a Solution. Ages are computed for
// decaying tracers when ages is true.
func (s *Setup) Solution(res *newton.Result, ages bool) (*Solution, error) {
	if len(res.X) != s.Registry.Size() {
		return nil, fmt.Errorf("boxmodel: solution has length %d, want %d", len(res.X), s.Registry.Size())
	}
	out := &Solution{
		Model:      s.Model.Fingerprint(),
		State:      res.State.String(),
		Iterations: res.Iterations,
		Residual:   res.Residual(),
	}
	boxes := s.Model.BoxNames(s.Grid.WetIndices())
	inv := steadybox.Inventory(s.Registry, res.X)
	for k, name := range s.Registry.Names() {
		ts := TracerSolution{
			Name:      name,
			Boxes:     boxes,
			Values:    append([]float64(nil), s.Registry.Block(res.X, k)...),
			Inventory: inv[k],
		}
		if tau, ok := s.Lifetimes[name]; ok && ages {
			age, err := decay.Age(ts.Values, tau)
			if err != nil {
				return nil, fmt.Errorf("boxmodel: age of tracer %s: %w", name, err)
			}
			for i := range age {
				age[i] /= secondsPerYear
			}
			ts.AgeYears = age
		}
		out.Tracers = append(out.Tracers, ts)
	}
	return out, nil
}

// Encode writes s in TOML format.
func (s *Solution) Encode(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(s); err != nil {
		return fmt.Errorf("boxmodel: %v", err)
	}
	return nil
}
