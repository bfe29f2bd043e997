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


// Package boxmodel reads box models from TOML files: the boxes of the grid,
// the circulation between them, the model parameters and the tracers with
// their mechanisms.
package boxmodel

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spatialmodel/steadybox"
	"github.com/spatialmodel/steadybox/internal/hash"
	"github.com/spatialmodel/steadybox/paramtable"
)

// Model is the contents of a model file.
type Model struct {
	Boxes   []Box              `toml:"box"`
	Fluxes  []Flux             `toml:"flux"`
	Params  []paramtable.Entry `toml:"param"`
	Tracers []Tracer           `toml:"tracer"`
}

// Box is one box of the grid.
type Box struct {
	Name string `toml:"name"`

	// Volume is the volume of the box [m³].
	Volume float64 `toml:"volume"`

	// Dry boxes are excluded from the system.
	Dry bool `toml:"dry,omitempty"`

	// Surface boxes exchange with the atmosphere.
	Surface bool `toml:"surface,omitempty"`

	// Depth of the box center and Thickness [m].
	Depth     float64 `toml:"depth,omitempty"`
	Thickness float64 `toml:"thickness,omitempty"`
}

// Flux is a volume flux between boxes, either from one box to another or
// around a closed loop of boxes.
type Flux struct {
	Name string   `toml:"name"`
	From string   `toml:"from,omitempty"`
	To   string   `toml:"to,omitempty"`
	Loop []string `toml:"loop,omitempty"`

	// Rate is the volume flux in Unit, which defaults to m³/s. If Param is
	// set, the rate is instead the value of that parameter in SI units.
	Rate  float64 `toml:"rate,omitempty"`
	Unit  string  `toml:"unit,omitempty"`
	Param string  `toml:"param,omitempty"`

	// Kind is "advective" (the default) or "mixing".
	Kind string `toml:"kind,omitempty"`
}

// Tracer is a tracer and the mechanisms that make up its local kinetics.
type Tracer struct {
	Name       string            `toml:"name"`
	Mechanisms []string          `toml:"mechanisms,omitempty"`
	Options    map[string]string `toml:"options,omitempty"`

	// Initial is the initial guess of the concentration in every box.
	Initial float64 `toml:"initial,omitempty"`
}

// Load reads a model file.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("boxmodel: %v", err)
	}
	defer f.Close()
	m, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("boxmodel: reading %s: %w", path, err)
	}
	return m, nil
}

// Decode reads a model. Unknown keys are errors.
func Decode(r io.Reader) (*Model, error) {
	m := new(Model)
	md, err := toml.NewDecoder(r).Decode(m)
	if err != nil {
		return nil, fmt.Errorf("boxmodel: %v", err)
	}
	if u := md.Undecoded(); len(u) > 0 {
		keys := make([]string, len(u))
		for i, k := range u {
			keys[i] = k.String()
		}
		return nil, &steadybox.ConfigurationError{What: "model", Msg: "unknown keys " + strings.Join(keys, ", ")}
	}
	return m, nil
}

// Encode writes m in TOML format.
func (m *Model) Encode(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(m); err != nil {
		return fmt.Errorf("boxmodel: %v", err)
	}
	return nil
}

func configError(what, format string, args ...interface{}) error {
	return &steadybox.ConfigurationError{What: what, Msg: fmt.Sprintf(format, args...)}
}

// boxIndex returns the index of every box by name.
// Fingerprint returns a key that identifies the contents of m. Models that
// differ in any box, flux, parameter or tracer have different keys.
func (m *Model) Fingerprint() string { return hash.Hash(m) }

func (m *Model) boxIndex() (map[string]int, error) {
	idx := make(map[string]int, len(m.Boxes))
	for i, b := range m.Boxes {
		if b.Name == "" {
			return nil, configError(fmt.Sprintf("box %d", i), "missing name")
		}
		if _, ok := idx[b.Name]; ok {
			return nil, configError("box "+b.Name, "defined more than once")
		}
		idx[b.Name] = i
	}
	return idx, nil
}

// Grid returns the grid of the model.
func (m *Model) Grid() (*steadybox.Grid, error) {
	if _, err := m.boxIndex(); err != nil {
		return nil, err
	}
	boxes := make([]steadybox.Box, len(m.Boxes))
	for i, b := range m.Boxes {
		boxes[i] = steadybox.Box{
			Volume:    b.Volume,
			Wet:       !b.Dry,
			Surface:   b.Surface,
			Depth:     b.Depth,
			Thickness: b.Thickness,
		}
	}
	return steadybox.NewGrid(boxes)
}

// BoxNames returns the names of the boxes at the given global indices.
func (m *Model) BoxNames(global []int) []string {
	names := make([]string, len(global))
	for i, g := range global {
		names[i] = m.Boxes[g].Name
	}
	return names
}

// RateParams returns the names of the parameters that set flux rates,
// sorted and without repetition.
func (m *Model) RateParams() []string {
	set := make(map[string]bool)
	for _, f := range m.Fluxes {
		if f.Param != "" {
			set[f.Param] = true
		}
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Edges returns the directed and mixing edges of the circulation for
// parameters p. Loops become one edge per consecutive pair of boxes,
// including the edge that closes the loop.
func (m *Model) Edges(p steadybox.Params) ([]steadybox.FluxEdge, error) {
	idx, err := m.boxIndex()
	if err != nil {
		return nil, err
	}
	box := func(what, name string) (int, error) {
		i, ok := idx[name]
		if !ok {
			return 0, configError(what, "unknown box %q", name)
		}
		return i, nil
	}
	var edges []steadybox.FluxEdge
	for i, f := range m.Fluxes {
		what := fmt.Sprintf("flux %d", i)
		if f.Name != "" {
			what = "flux " + f.Name
		}
		kind := steadybox.Advective
		switch f.Kind {
		case "", "advective":
		case "mixing":
			kind = steadybox.Mixing
		default:
			return nil, configError(what, "invalid kind %q; options are 'advective' and 'mixing'", f.Kind)
		}
		rate, err := f.rate(what, p)
		if err != nil {
			return nil, err
		}
		var path []string
		switch {
		case len(f.Loop) > 0 && (f.From != "" || f.To != ""):
			return nil, configError(what, "both loop and from/to are specified")
		case len(f.Loop) == 1:
			return nil, configError(what, "a loop needs at least two boxes")
		case len(f.Loop) > 0:
			path = append(append(path, f.Loop...), f.Loop[0])
		default:
			path = []string{f.From, f.To}
		}
		for j := 1; j < len(path); j++ {
			from, err := box(what, path[j-1])
			if err != nil {
				return nil, err
			}
			to, err := box(what, path[j])
			if err != nil {
				return nil, err
			}
			edges = append(edges, steadybox.FluxEdge{Name: f.Name, From: from, To: to, Rate: rate, Kind: kind})
		}
	}
	return edges, nil
}

func (f Flux) rate(what string, p steadybox.Params) (float64, error) {
	if f.Param != "" {
		if f.Rate != 0 || f.Unit != "" {
			return 0, configError(what, "both a rate and a rate parameter are specified")
		}
		v, ok := p.Lookup(f.Param)
		if !ok {
			return 0, configError(what, "missing rate parameter %s", f.Param)
		}
		return v, nil
	}
	u := f.Unit
	if u == "" {
		u = "m3/s"
	}
	conv, err := paramtable.ParseUnit(u)
	if err != nil {
		return 0, configError(what, "%v", err)
	}
	if err := conv.Check(unitVolumeFlux); err != nil {
		return 0, configError(what, "rate unit %s: %v", u, err)
	}
	return f.Rate * conv.Value(), nil
}
