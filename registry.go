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
	"strings"
)

// Registry holds the tracers of a model in registration order. The state
// vector of the model is the concatenation of the tracers' concentrations
// over the active cells, tracer by tracer.
type Registry struct {
	grid    *Grid
	names   []string
	tracers []Tracer
}

// NewRegistry creates an empty registry for the active cells of g.
func NewRegistry(g *Grid) *Registry {
	return &Registry{grid: g}
}

// Register appends a tracer. Names must be unique and non-empty.
func (r *Registry) Register(name string, t Tracer) error {
	if name == "" {
		return configErrorf("tracer", "empty name")
	}
	if t == nil {
		return configErrorf("tracer "+name, "nil tracer")
	}
	if f, ok := t.(TracerFuncs); ok && f.TransportFunc == nil {
		return configErrorf("tracer "+name, "no transport function")
	}
	if _, ok := r.Index(name); ok {
		return configErrorf("tracer "+name, "already registered")
	}
	r.names = append(r.names, name)
	r.tracers = append(r.tracers, t)
	return nil
}

// Grid returns the grid the registry was created for.
func (r *Registry) Grid() *Grid { return r.grid }

// Len returns the number of tracers.
func (r *Registry) Len() int { return len(r.tracers) }

// NumCells returns the number of active cells.
func (r *Registry) NumCells() int { return r.grid.NumActive() }

// Size returns the length of the state vector.
func (r *Registry) Size() int { return r.Len() * r.NumCells() }

// Offset returns the position in the state vector of tracer k in active
// cell c.
func (r *Registry) Offset(k, c int) int { return k*r.NumCells() + c }

// Block returns the part of x that holds tracer k. The result shares
// memory with x.
func (r *Registry) Block(x []float64, k int) []float64 {
	nb := r.NumCells()
	return x[k*nb : (k+1)*nb : (k+1)*nb]
}

// Index returns the position of the named tracer.
func (r *Registry) Index(name string) (int, bool) {
	for i, n := range r.names {
		if n == name {
			return i, true
		}
	}
	return -1, false
}

// Names returns the tracer names in order.
func (r *Registry) Names() []string { return append([]string(nil), r.names...) }

// Tracer returns the k'th tracer.
func (r *Registry) Tracer(k int) Tracer { return r.tracers[k] }

// Check returns an error if a tracer requires a parameter that p lacks.
func (r *Registry) Check(p Params) error {
	if len(r.tracers) == 0 {
		return configErrorf("registry", "no tracers")
	}
	var missing []string
	for k, t := range r.tracers {
		u, ok := t.(ParamUser)
		if !ok {
			continue
		}
		for _, name := range u.Requires() {
			if _, ok := p.Lookup(name); !ok {
				missing = append(missing, fmt.Sprintf("%s (tracer %s)", name, r.names[k]))
			}
		}
	}
	if len(missing) > 0 {
		return configErrorf("parameters", "missing %s", strings.Join(missing, ", "))
	}
	return nil
}
