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
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/kr/pretty"
	"github.com/spatialmodel/steadybox/spmat"
)

func different(a, b, tolerance float64) bool {
	if a == b {
		return false
	}
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

// smallGrid returns four boxes, the last of which is dry, with a loop
// 0→1→2→0 and an exchange between boxes 0 and 1.
func smallGrid(t *testing.T) (*Grid, []FluxEdge) {
	g, err := NewGrid([]Box{
		{Volume: 1, Wet: true, Surface: true, Thickness: 1},
		{Volume: 2, Wet: true, Depth: 10},
		{Volume: 3, Wet: true, Depth: 20},
		{Volume: 4},
	})
	if err != nil {
		t.Fatal(err)
	}
	edges := []FluxEdge{
		{Name: "loop", From: 0, To: 1, Rate: 1},
		{Name: "loop", From: 1, To: 2, Rate: 1},
		{Name: "loop", From: 2, To: 0, Rate: 1},
		{Name: "mix", From: 0, To: 1, Rate: 0.5, Kind: Mixing},
	}
	return g, edges
}

// loops returns random closed loops over the cells in wet.
func loops(rnd *rand.Rand, wet []int, n int) []FluxEdge {
	var edges []FluxEdge
	for l := 0; l < n; l++ {
		perm := rnd.Perm(len(wet))
		size := 2 + rnd.Intn(len(wet)-1)
		rate := rnd.Float64() * 1e8
		for i := 0; i < size; i++ {
			edges = append(edges, FluxEdge{From: wet[perm[i]], To: wet[perm[(i+1)%size]], Rate: rate})
		}
	}
	return edges
}

func TestFluxDivergenceConservation(t *testing.T) {
	rnd := rand.New(rand.NewSource(2))
	const n = 30
	volumes := make([]float64, n)
	var all []int
	for i := range volumes {
		volumes[i] = 1e14 * (1 + rnd.Float64())
		all = append(all, i)
	}
	edges := loops(rnd, all, 10)
	for i := 0; i < 5; i++ {
		edges = append(edges, FluxEdge{From: rnd.Intn(n / 2), To: n/2 + rnd.Intn(n/2), Rate: 1e7, Kind: Mixing})
	}
	tr, err := FluxDivergence(volumes, edges)
	if err != nil {
		t.Fatal(err)
	}
	scale := tr.MaxAbs()
	for i, s := range tr.RowSums() {
		if math.Abs(s) > 1e-12*scale {
			t.Errorf("row %d sums to %g", i, s)
		}
	}

	// Volume-weighted columns sum to zero even for unbalanced flows:
	// whatever leaves one cell arrives in another.
	edges = append(edges, FluxEdge{From: 0, To: 1, Rate: 3e7})
	tr, err = FluxDivergence(volumes, edges)
	if err != nil {
		t.Fatal(err)
	}
	colSum := make([]float64, n)
	for i := 0; i < n; i++ {
		cols, vals := tr.Row(i)
		for p, j := range cols {
			colSum[j] += volumes[i] * vals[p]
		}
	}
	for j, s := range colSum {
		if math.Abs(s) > 1e-12*scale*1e14 {
			t.Errorf("volume-weighted column %d sums to %g", j, s)
		}
	}
	if sums := tr.RowSums(); math.Abs(sums[0]) < 1e-10 {
		t.Errorf("unbalanced flow should give a nonzero row sum, have %g", sums[0])
	}
}

func TestFluxDivergenceEntries(t *testing.T) {
	g, edges := smallGrid(t)
	tr, err := FluxDivergence(g.Volumes(), edges)
	if err != nil {
		t.Fatal(err)
	}
	want := [][]float64{
		{1.5, -0.5, -1, 0},
		{-1.5 / 2, 1.5 / 2, 0, 0},
		{0, -1. / 3, 1. / 3, 0},
		{0, 0, 0, 0},
	}
	for i, row := range want {
		for j, w := range row {
			if have := tr.At(i, j); different(have, w, 1e-14) {
				t.Errorf("T[%d,%d]: have %g, want %g", i, j, have, w)
			}
		}
	}
}

func TestAssembleTransport(t *testing.T) {
	g, edges := smallGrid(t)
	tr, err := AssembleTransport(g.Mask(), g.Volumes(), edges)
	if err != nil {
		t.Fatal(err)
	}
	if r, c := tr.Dims(); r != 3 || c != 3 {
		t.Fatalf("dims: have %d×%d, want 3×3", r, c)
	}
	for i, s := range tr.RowSums() {
		if math.Abs(s) > 1e-15 {
			t.Errorf("row %d sums to %g", i, s)
		}
	}
	tg, err := g.Transport(edges)
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(tr, tg); len(diff) > 0 {
		t.Errorf("Grid.Transport differs from AssembleTransport: %v", diff)
	}
	again, err := tr.Restrict([]int{0, 1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if !spmat.EqualApprox(tr, again, 0) {
		t.Error("restriction is not idempotent")
	}

	// Exchange between wet cell 0 and dry cell 3 is lost from row 0 only.
	const q = 2.
	dry := append(edges, FluxEdge{From: 0, To: 3, Rate: q}, FluxEdge{From: 3, To: 0, Rate: q})
	td, err := AssembleTransport(g.Mask(), g.Volumes(), dry)
	if err != nil {
		t.Fatal(err)
	}
	if r, c := td.Dims(); r != 3 || c != 3 {
		t.Fatalf("dims with dry edge: have %d×%d, want 3×3", r, c)
	}
	sums := td.RowSums()
	if different(sums[0], q/g.Volumes()[0], 1e-12) {
		t.Errorf("row 0 with dry edge: have %g, want %g", sums[0], q/g.Volumes()[0])
	}
	for i, s := range sums[1:] {
		if math.Abs(s) > 1e-15 {
			t.Errorf("row %d with dry edge sums to %g", i+1, s)
		}
	}
	if d := td.At(0, 0) - tr.At(0, 0); different(d, q, 1e-12) {
		t.Errorf("diagonal change: have %g, want %g", d, q)
	}
}

func TestAssembleTransportErrors(t *testing.T) {
	volumes := []float64{1, 1, 0}
	mask := []bool{true, true, false}
	tests := []struct {
		name    string
		mask    []bool
		volumes []float64
		edges   []FluxEdge
	}{
		{"self edge", mask, volumes, []FluxEdge{{From: 1, To: 1, Rate: 1}}},
		{"zero volume", mask, volumes, []FluxEdge{{From: 1, To: 2, Rate: 1}}},
		{"wet zero volume", []bool{true, true, true}, volumes, nil},
		{"mask length", []bool{true, true}, volumes, nil},
		{"negative rate", mask, volumes, []FluxEdge{{From: 0, To: 1, Rate: -1}}},
		{"NaN rate", mask, volumes, []FluxEdge{{From: 0, To: 1, Rate: math.NaN()}}},
		{"out of range", mask, volumes, []FluxEdge{{From: 0, To: 3, Rate: 1}}},
		{"bad kind", mask, volumes, []FluxEdge{{From: 0, To: 1, Rate: 1, Kind: EdgeKind(7)}}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := AssembleTransport(test.mask, test.volumes, test.edges)
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("have error %v, want a ConfigurationError", err)
			}
		})
	}
}

func TestMixingEdge(t *testing.T) {
	volumes := []float64{1, 4}
	mixed, err := FluxDivergence(volumes, []FluxEdge{{From: 0, To: 1, Rate: 2, Kind: Mixing}})
	if err != nil {
		t.Fatal(err)
	}
	pair, err := FluxDivergence(volumes, []FluxEdge{{From: 0, To: 1, Rate: 2}, {From: 1, To: 0, Rate: 2}})
	if err != nil {
		t.Fatal(err)
	}
	if !spmat.EqualApprox(mixed, pair, 0) {
		t.Errorf("mixing edge differs from a pair of directed edges")
	}
	imb, err := Imbalance(2, []FluxEdge{{From: 0, To: 1, Rate: 2, Kind: Mixing}, {From: 0, To: 1, Rate: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if imb[0] != -1 || imb[1] != 1 {
		t.Errorf("imbalance: have %v, want [-1 1]", imb)
	}
}

func TestGridIndex(t *testing.T) {
	g, err := NewGrid([]Box{{Volume: 1, Wet: true}, {}, {Volume: 2, Wet: true}, {Volume: 5}})
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(g.WetIndices(), []int{0, 2}); len(diff) > 0 {
		t.Error(diff)
	}
	if a, ok := g.Active(2); !ok || a != 1 {
		t.Errorf("Active(2): have %d, %v", a, ok)
	}
	if _, ok := g.Active(1); ok {
		t.Error("dry cell should not be active")
	}
	if g.Global(1) != 2 {
		t.Errorf("Global(1): have %d", g.Global(1))
	}
	if diff := pretty.Diff(g.Expand([]float64{7, 8}, -1), []float64{7, -1, 8, -1}); len(diff) > 0 {
		t.Error(diff)
	}
	cells := g.Cells()
	if len(cells) != 2 || cells[1].Global != 2 || cells[1].Index != 1 || cells[1].Volume != 2 {
		t.Errorf("cells: %# v", pretty.Formatter(cells))
	}

	var cfgErr *ConfigurationError
	if _, err := NewGrid([]Box{{Volume: 0, Wet: true}}); !errors.As(err, &cfgErr) {
		t.Errorf("zero volume wet box: have %v", err)
	}
	if _, err := NewGrid([]Box{{Volume: 1}}); !errors.As(err, &cfgErr) {
		t.Errorf("all dry: have %v", err)
	}
}
