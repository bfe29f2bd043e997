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


package airsea

import (
	"testing"

	"github.com/ctessum/unit"
	"github.com/kr/pretty"
	"github.com/spatialmodel/steadybox"
	"github.com/spatialmodel/steadybox/ad"
)

func testGrid(t *testing.T) *steadybox.Grid {
	g, err := steadybox.NewGrid([]steadybox.Box{
		{Volume: 1, Wet: true, Surface: true, Thickness: 10},
		{Volume: 1},
		{Volume: 2, Wet: true, Thickness: 20},
	})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func testParams(t *testing.T) steadybox.Params {
	p, err := steadybox.NewParams([]string{"w", "h", "sat"}, []float64{2, 4, 3})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestKinetics(t *testing.T) {
	p := testParams(t)
	cells := testGrid(t).Cells()
	for _, test := range []struct {
		e     Exchange
		kappa float64
		sat   float64
	}{
		{e: Exchange{PistonVelocity: "w", Thickness: "h", Saturation: "sat"}, kappa: 0.5, sat: 3},
		{e: Exchange{PistonVelocity: "w"}, kappa: 0.2, sat: 1},
	} {
		k, err := test.e.Kinetics()
		if err != nil {
			t.Fatal(err)
		}
		x := []ad.Number{ad.Variable(2, 0, 1)}
		g := k(cells[0], x, p)
		if g.Err() != nil {
			t.Fatal(g.Err())
		}
		if g.Value() != test.kappa*(test.sat-2) || g.Deriv(0) != -test.kappa {
			t.Errorf("%+v: have %v", test.e, g)
		}
		if g := k(cells[1], x, p); g.Value() != 0 || g.Deriv(0) != 0 || g.Err() != nil {
			t.Errorf("%+v: deep cell: have %v", test.e, g)
		}
	}
}

func TestGated(t *testing.T) {
	p := testParams(t)
	e := Exchange{PistonVelocity: "w", Thickness: "h"}
	k, err := e.Gated(1)
	if err != nil {
		t.Fatal(err)
	}
	x := []ad.Number{ad.Variable(0.5, 0, 2), ad.Variable(0.25, 1, 2)}
	g := k(testGrid(t).Cells()[0], x, p)
	// 0.5·(1 - x0)·x1
	if g.Value() != 0.0625 || g.Deriv(0) != -0.125 || g.Deriv(1) != 0.25 {
		t.Errorf("have %v", g)
	}
	if _, err := e.Gated(-1); err == nil {
		t.Error("negative gate should be an error")
	}
}

func TestOperator(t *testing.T) {
	g := testGrid(t)
	p := testParams(t)
	e := Exchange{PistonVelocity: "w", Saturation: "sat"}
	m, err := e.Operator(g)(p)
	if err != nil {
		t.Fatal(err)
	}
	if r, c := m.Dims(); r != 2 || c != 2 || m.At(0, 0) != 0.2 || m.At(1, 1) != 0 {
		t.Errorf("have %v", m.Dense())
	}
	src, err := e.Source(g, p)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0.2, 0}
	want[0] *= 3
	if diff := pretty.Diff(src, want); len(diff) > 0 {
		t.Error(diff)
	}
}

func TestErrors(t *testing.T) {
	if _, err := (Exchange{}).Kinetics(); err == nil {
		t.Error("missing piston velocity should be an error")
	}
	p := testParams(t)
	thin := steadybox.Cell{Surface: true}
	if _, err := (Exchange{PistonVelocity: "w"}).Kappa(thin, p); err == nil {
		t.Error("zero thickness should be an error")
	}
	if _, err := (Exchange{PistonVelocity: "v"}).Kappa(thin, p); err == nil {
		t.Error("missing parameter should be an error")
	}
	k, err := Exchange{PistonVelocity: "w", Saturation: "missing"}.Kinetics()
	if err != nil {
		t.Fatal(err)
	}
	if g := k(testGrid(t).Cells()[0], []ad.Number{ad.Real(1)}, p); g.Err() == nil {
		t.Error("missing saturation should be an error")
	}
	e := Exchange{PistonVelocity: "w", Thickness: "h", Saturation: "sat"}
	d := e.Dimensions()
	if !d["w"].Matches(unit.MeterPerSecond) || !d["h"].Matches(unit.Meter) || len(e.Params()) != 3 {
		t.Errorf("have %v", d)
	}
}
