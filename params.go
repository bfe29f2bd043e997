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
	"fmt"
	"math"
	"strings"
)

// Params is an immutable, ordered set of named scalar parameters in SI
// units. The zero value is an empty set.
type Params struct {
	names  []string
	values []float64
	index  map[string]int
}

// NewParams creates a parameter set. Names must be unique and non-empty.
func NewParams(names []string, values []float64) (Params, error) {
	if len(names) != len(values) {
		return Params{}, configErrorf("parameters", "%d names but %d values", len(names), len(values))
	}
	p := Params{
		names:  append([]string(nil), names...),
		values: append([]float64(nil), values...),
		index:  make(map[string]int, len(names)),
	}
	for i, n := range names {
		if n == "" {
			return Params{}, configErrorf("parameters", "parameter %d has no name", i)
		}
		if _, ok := p.index[n]; ok {
			return Params{}, configErrorf("parameters", "duplicate parameter %s", n)
		}
		p.index[n] = i
	}
	return p, nil
}

// Len returns the number of parameters.
func (p Params) Len() int { return len(p.names) }

// Lookup returns the value of the named parameter and whether it exists.
func (p Params) Lookup(name string) (float64, bool) {
	i, ok := p.index[name]
	if !ok {
		return math.NaN(), false
	}
	return p.values[i], true
}

// Value returns the value of the named parameter, or NaN if it does not
// exist. Registry.Check reports missing parameters before solving.
func (p Params) Value(name string) float64 {
	v, _ := p.Lookup(name)
	return v
}

// Names returns the parameter names in order.
func (p Params) Names() []string { return append([]string(nil), p.names...) }

// Values returns the parameter values in order.
func (p Params) Values() []float64 { return append([]float64(nil), p.values...) }

// With returns a copy of p in which the named parameter is set to v. The
// parameter is appended if it does not exist. An empty name leaves p
// unchanged.
func (p Params) With(name string, v float64) Params {
	if name == "" {
		return p
	}
	names, values := p.Names(), p.Values()
	if i, ok := p.index[name]; ok {
		values[i] = v
	} else {
		names = append(names, name)
		values = append(values, v)
	}
	o := Params{names: names, values: values, index: make(map[string]int, len(names))}
	for i, n := range names {
		o.index[n] = i
	}
	return o
}

func (p Params) String() string {
	s := make([]string, len(p.names))
	for i, n := range p.names {
		s[i] = fmt.Sprintf("%s=%g", n, p.values[i])
	}
	return "{" + strings.Join(s, ", ") + "}"
}
