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

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/steadybox/spmat"
)

// Box holds the geometry of one grid cell.
type Box struct {
	// Volume is the cell volume [m³].
	Volume float64

	// Wet cells take part in the transport and kinetics; dry cells are
	// excluded from the system.
	Wet bool

	// Surface cells are in contact with the atmosphere.
	Surface bool

	// Depth is the depth of the cell center [m] and Thickness its vertical
	// extent [m]. Both are optional and only used by kinetics.
	Depth, Thickness float64
}

// Cell is an active (wet) cell as seen by local kinetics.
type Cell struct {
	// Index is the position of the cell among the active cells and Global
	// its position in the full grid.
	Index, Global int

	Volume           float64
	Surface          bool
	Depth, Thickness float64
}

// Grid is a set of cells together with the index set of its wet cells.
type Grid struct {
	boxes  []Box
	wet    []int // global index of each active cell, increasing
	active []int // active index of each global cell, or -1
}

// NewGrid creates a grid from box geometry. Wet boxes must have a positive
// volume. Dry boxes may have zero volume but not a negative one.
func NewGrid(boxes []Box) (*Grid, error) {
	g := &Grid{
		boxes:  append([]Box(nil), boxes...),
		active: make([]int, len(boxes)),
	}
	for i, b := range boxes {
		g.active[i] = -1
		if b.Volume < 0 || math.IsNaN(b.Volume) || math.IsInf(b.Volume, 0) {
			return nil, configErrorf(fmt.Sprintf("box %d", i), "volume %g is not valid", b.Volume)
		}
		if !b.Wet {
			continue
		}
		if b.Volume == 0 {
			return nil, configErrorf(fmt.Sprintf("box %d", i), "wet box has zero volume")
		}
		g.active[i] = len(g.wet)
		g.wet = append(g.wet, i)
	}
	if len(g.wet) == 0 {
		return nil, configErrorf("grid", "no wet boxes")
	}
	return g, nil
}

// Len returns the total number of cells, wet and dry.
func (g *Grid) Len() int { return len(g.boxes) }

// NumActive returns the number of wet cells.
func (g *Grid) NumActive() int { return len(g.wet) }

// WetIndices returns the global indices of the wet cells in increasing
// order.
func (g *Grid) WetIndices() []int { return append([]int(nil), g.wet...) }

// Mask returns the wet/dry flag of every cell.
func (g *Grid) Mask() []bool {
	m := make([]bool, len(g.boxes))
	for i, b := range g.boxes {
		m[i] = b.Wet
	}
	return m
}

// Volumes returns the volume of every cell.
func (g *Grid) Volumes() []float64 {
	v := make([]float64, len(g.boxes))
	for i, b := range g.boxes {
		v[i] = b.Volume
	}
	return v
}

// Active returns the active index of the cell with the given global index,
// and whether that cell is wet.
func (g *Grid) Active(global int) (int, bool) {
	if global < 0 || global >= len(g.active) || g.active[global] < 0 {
		return -1, false
	}
	return g.active[global], true
}

// Global returns the global index of an active cell.
func (g *Grid) Global(active int) int { return g.wet[active] }

// Cells returns the active cells in order.
func (g *Grid) Cells() []Cell {
	cells := make([]Cell, len(g.wet))
	for k, i := range g.wet {
		b := g.boxes[i]
		cells[k] = Cell{
			Index:     k,
			Global:    i,
			Volume:    b.Volume,
			Surface:   b.Surface,
			Depth:     b.Depth,
			Thickness: b.Thickness,
		}
	}
	return cells
}

// Expand returns a vector over all cells holding the active-cell values x
// in the wet cells and fill in the dry cells.
func (g *Grid) Expand(x []float64, fill float64) []float64 {
	o := make([]float64, len(g.boxes))
	for i := range o {
		o[i] = fill
	}
	for k, i := range g.wet {
		o[i] = x[k]
	}
	return o
}

// Transport assembles the flux-divergence operator of edges restricted to
// the wet cells of g.
func (g *Grid) Transport(edges []FluxEdge) (*spmat.CSR, error) {
	full, err := FluxDivergence(g.Volumes(), edges)
	if err != nil {
		return nil, err
	}
	return full.Restrict(g.wet)
}

// EdgeKind distinguishes directed flows from exchanges.
type EdgeKind int

const (
	// Advective edges carry a directed flow from one cell to another.
	Advective EdgeKind = iota

	// Mixing edges exchange equal volumes in both directions.
	Mixing
)

func (k EdgeKind) String() string {
	switch k {
	case Advective:
		return "advective"
	case Mixing:
		return "mixing"
	default:
		return fmt.Sprintf("EdgeKind(%d)", int(k))
	}
}

// FluxEdge is a volumetric flow between two cells, addressed by their
// global indices.
type FluxEdge struct {
	Name     string
	From, To int
	// Rate is the volumetric flow rate [m³/s].
	Rate float64
	Kind EdgeKind
}

func (e FluxEdge) label(i int) string {
	if e.Name != "" {
		return fmt.Sprintf("flux edge %d (%s)", i, e.Name)
	}
	return fmt.Sprintf("flux edge %d", i)
}

// check validates e against a grid of n cells with the given volumes.
func (e FluxEdge) check(i int, volumes []float64) error {
	n := len(volumes)
	switch {
	case e.From < 0 || e.From >= n || e.To < 0 || e.To >= n:
		return configErrorf(e.label(i), "cells %d→%d outside of grid with %d cells", e.From, e.To, n)
	case e.From == e.To:
		return configErrorf(e.label(i), "source and destination are both cell %d", e.From)
	case e.Rate < 0 || math.IsNaN(e.Rate) || math.IsInf(e.Rate, 0):
		return configErrorf(e.label(i), "rate %g is not valid", e.Rate)
	case e.Kind != Advective && e.Kind != Mixing:
		return configErrorf(e.label(i), "unknown kind %v", e.Kind)
	}
	for _, c := range []int{e.From, e.To} {
		if !(volumes[c] > 0) {
			return configErrorf(e.label(i), "cell %d has volume %g", c, volumes[c])
		}
	}
	return nil
}

// directed returns the directed edges that make up e.
func (e FluxEdge) directed() [][2]int {
	if e.Kind == Mixing {
		return [][2]int{{e.From, e.To}, {e.To, e.From}}
	}
	return [][2]int{{e.From, e.To}}
}

// FluxDivergence returns the flux-divergence operator T of edges over all
// cells, such that dc/dt = -T·c for concentrations c. A flow of rate q from
// cell i to cell j adds q/V_i to T[i,i] and -q/V_j to T[j,i]. Edges between
// the same pair of cells add up. Each row of T sums to zero when the flow
// into every cell balances the flow out of it.
func FluxDivergence(volumes []float64, edges []FluxEdge) (*spmat.CSR, error) {
	n := len(volumes)
	if n == 0 {
		return nil, configErrorf("grid", "no cells")
	}
	t := sparse.ZerosSparse(n, n)
	for k, e := range edges {
		if err := e.check(k, volumes); err != nil {
			return nil, err
		}
		if e.Rate == 0 {
			continue
		}
		for _, d := range e.directed() {
			i, j := d[0], d[1]
			t.AddVal(e.Rate/volumes[i], i, i)
			t.AddVal(-e.Rate/volumes[j], j, i)
		}
	}
	return spmat.FromSparse(t)
}

// AssembleTransport returns the flux-divergence operator of edges
// restricted to the cells where mask is true. Row and column k of the
// result both refer to the k'th wet cell in grid order.
func AssembleTransport(mask []bool, volumes []float64, edges []FluxEdge) (*spmat.CSR, error) {
	if len(mask) != len(volumes) {
		return nil, configErrorf("grid", "mask has %d cells but there are %d volumes", len(mask), len(volumes))
	}
	var wet []int
	for i, w := range mask {
		if w {
			if !(volumes[i] > 0) {
				return nil, configErrorf(fmt.Sprintf("box %d", i), "wet box has volume %g", volumes[i])
			}
			wet = append(wet, i)
		}
	}
	full, err := FluxDivergence(volumes, edges)
	if err != nil {
		return nil, err
	}
	return full.Restrict(wet)
}

// Imbalance returns, for each of n cells, the volumetric flow into the cell
// minus the flow out of it. A circulation conserves mass when every value
// is zero.
func Imbalance(n int, edges []FluxEdge) ([]float64, error) {
	o := make([]float64, n)
	for k, e := range edges {
		if e.From < 0 || e.From >= n || e.To < 0 || e.To >= n {
			return nil, configErrorf(e.label(k), "cells %d→%d outside of grid with %d cells", e.From, e.To, n)
		}
		if e.Kind == Mixing {
			continue
		}
		o[e.From] -= e.Rate
		o[e.To] += e.Rate
	}
	return o, nil
}
