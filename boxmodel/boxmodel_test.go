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
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/kr/pretty"
	"github.com/spatialmodel/steadybox"
	"github.com/spatialmodel/steadybox/newton"
	"github.com/spatialmodel/steadybox/paramtable"
	"github.com/spatialmodel/steadybox/science/airsea"
	"github.com/spatialmodel/steadybox/science/decay"
	"github.com/spatialmodel/steadybox/spmat"
)

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func eightBox(t *testing.T) *Setup {
	s, err := EightBox().Setup()
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// TestEightBoxTransport checks the restricted operator of the eight-box
// circulation.
func TestEightBoxTransport(t *testing.T) {
	s := eightBox(t)
	if diff := pretty.Diff(s.Grid.WetIndices(), []int{0, 4, 5, 6, 7}); len(diff) > 0 {
		t.Error(diff)
	}
	tr, err := s.Transport(s.Params)
	if err != nil {
		t.Fatal(err)
	}
	if r, c := tr.Dims(); r != 5 || c != 5 {
		t.Fatalf("operator is %d×%d", r, c)
	}
	tol := 1e-12 * tr.MaxAbs()
	for i, sum := range tr.RowSums() {
		if math.Abs(sum) > tol {
			t.Errorf("row %d sums to %g", i, sum)
		}
	}
	vol := s.Grid.Volumes()
	for j := 0; j < 5; j++ {
		sum := 0.
		for i := 0; i < 5; i++ {
			sum += vol[s.Grid.Global(i)] * tr.At(i, j)
		}
		if math.Abs(sum) > 1e-12*1e17*tr.MaxAbs() {
			t.Errorf("column %d loses %g", j, sum)
		}
	}
	// 15 Sv overturning plus 10 Sv of mixing leave the surface box.
	if different(tr.At(0, 0), 25e6/1e15, 1e-12) {
		t.Errorf("T[0,0]: have %g", tr.At(0, 0))
	}
	// 100 + 15 Sv from deep_se (active 2) to deep_ne (active 4).
	if different(tr.At(4, 2), -115e6/1e17, 1e-12) {
		t.Errorf("T[4,2]: have %g", tr.At(4, 2))
	}

	edges, err := s.Model.Edges(s.Params)
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 10 {
		t.Errorf("have %d edges, want 10", len(edges))
	}
	imb, err := steadybox.Imbalance(s.Grid.Len(), edges)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range imb {
		if v != 0 {
			t.Errorf("box %d: imbalance %g", i, v)
		}
	}
}

// TestRadiocarbon solves the eight-box radiocarbon problem with Newton's
// method and directly.
func TestRadiocarbon(t *testing.T) {
	s := eightBox(t)
	o := newton.DefaultOptions()
	o.AbsTol = 1e-18
	res, err := newton.Solve(context.Background(), s.System, make([]float64, s.Registry.Size()), o)
	if err != nil {
		t.Fatal(err)
	}
	if res.State != newton.Converged || res.Iterations != 1 {
		t.Errorf("have state %v after %d iterations", res.State, res.Iterations)
	}
	r := res.X

	// (T + κS + I/τ) R = κS·1
	e := airsea.Exchange{PistonVelocity: "w", Thickness: "h"}
	exchange := e.Operator(s.Grid)
	withExchange := func(p steadybox.Params) (*spmat.CSR, error) {
		tr, err := s.Transport(p)
		if err != nil {
			return nil, err
		}
		k, err := exchange(p)
		if err != nil {
			return nil, err
		}
		return tr.Add(k)
	}
	op, err := decay.Decay{Lifetime: "tau"}.Operator(withExchange)
	if err != nil {
		t.Fatal(err)
	}
	a, err := op(s.Params)
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Source(s.Grid, s.Params)
	if err != nil {
		t.Fatal(err)
	}
	f, err := spmat.LU{}.Factorize(a)
	if err != nil {
		t.Fatal(err)
	}
	direct := make([]float64, len(b))
	if err := f.Solve(direct, b); err != nil {
		t.Fatal(err)
	}
	for i := range r {
		if different(r[i], direct[i], 1e-9) {
			t.Errorf("box %d: Newton %g, direct %g", i, r[i], direct[i])
		}
	}

	want := []float64{1.0029, 1.0581, 1.0617, 1.0687, 1.0652}
	for i, v := range r {
		inv := 1 / v
		if inv <= 1 || inv >= 1.3 || different(inv, want[i], 1e-3) {
			t.Errorf("box %d: 1/R = %g, want %g", i, inv, want[i])
		}
	}

	sol, err := s.Solution(res, true)
	if err != nil {
		t.Fatal(err)
	}
	age := sol.Tracers[0].AgeYears
	// Boxes in the order the overturning visits them.
	path := []int{0, 1, 2, 4, 3}
	for i, k := range path {
		if age[k] <= 0 {
			t.Errorf("%s: age %g should be positive", sol.Tracers[0].Boxes[k], age[k])
		}
		if i == 0 {
			continue
		}
		up := path[i-1]
		if !(age[k] > age[up]) || !(1/r[k] > 1/r[up]) {
			t.Errorf("%s: not older than %s", sol.Tracers[0].Boxes[k], sol.Tracers[0].Boxes[up])
		}
	}
	if different(age[0], 23.94, 1e-2) || different(age[3], 549.6, 1e-2) {
		t.Errorf("ages: have %v", age)
	}
	if diff := pretty.Diff(sol.Tracers[0].Boxes, []string{"surface", "deep_sw", "deep_se", "deep_nw", "deep_ne"}); len(diff) > 0 {
		t.Error(diff)
	}
	var buf bytes.Buffer
	if err := sol.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "age_years") {
		t.Errorf("output lacks ages:\n%s", buf.String())
	}
	if sol.Model != s.Model.Fingerprint() {
		t.Errorf("model fingerprint: have %q", sol.Model)
	}
}

func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := EightBox().Encode(&buf); err != nil {
		t.Fatal(err)
	}
	m, err := Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(m, EightBox()); len(diff) > 0 {
		t.Error(diff)
	}
}

func TestFingerprint(t *testing.T) {
	a := EightBox().Fingerprint()
	if a != EightBox().Fingerprint() {
		t.Error("fingerprint is not stable")
	}
	m := EightBox()
	m.Fluxes[1].Rate = 16
	if m.Fingerprint() == a {
		t.Error("a changed flux rate should change the fingerprint")
	}
	m = EightBox()
	m.Tracers[0].Options = map[string]string{}
	for k, v := range EightBox().Tracers[0].Options {
		m.Tracers[0].Options[k] = v
	}
	if m.Fingerprint() != a {
		t.Error("fingerprint depends on map insertion order")
	}
}

func TestModelErrors(t *testing.T) {
	var cfgErr *steadybox.ConfigurationError
	if _, err := Decode(strings.NewReader("[[box]]\nname = \"a\"\nsize = 3.0\n")); !errors.As(err, &cfgErr) {
		t.Errorf("unknown key: have %v", err)
	}
	if _, err := Decode(strings.NewReader("[[box]\n")); err == nil {
		t.Error("invalid TOML should be an error")
	}

	for name, change := range map[string]func(m *Model){
		"unknown box":       func(m *Model) { m.Fluxes[2].To = "abyss" },
		"duplicate box":     func(m *Model) { m.Boxes[1].Name = "surface" },
		"loop and to":       func(m *Model) { m.Fluxes[0].To = "surface" },
		"short loop":        func(m *Model) { m.Fluxes[0].Loop = m.Fluxes[0].Loop[:1] },
		"kind":              func(m *Model) { m.Fluxes[0].Kind = "diffusive" },
		"rate unit":         func(m *Model) { m.Fluxes[0].Unit = "m/s" },
		"mechanism":         func(m *Model) { m.Tracers[0].Mechanisms[1] = "growth" },
		"option":            func(m *Model) { m.Tracers[0].Options["gate"] = "R2" },
		"unused option":     func(m *Model) { m.Tracers[0].Options["species"] = "PO4" },
		"missing parameter": func(m *Model) { m.Params = m.Params[:2] },
		"dimensions":        func(m *Model) { m.Params[0].Unit = "m" },
		"duplicate tracer":  func(m *Model) { m.Tracers = append(m.Tracers, m.Tracers[0]) },
	} {
		t.Run(name, func(t *testing.T) {
			m := EightBox()
			change(m)
			if _, err := m.Setup(); !errors.As(err, &cfgErr) {
				t.Errorf("have %v", err)
			}
		})
	}
}

func TestRateParameter(t *testing.T) {
	m := EightBox()
	m.Fluxes[1] = Flux{Name: "overturning", Loop: m.Fluxes[1].Loop, Param: "psi"}
	m.Params = append(m.Params, paramtable.Entry{Name: "psi", Value: 15, Unit: "Sv"})
	s, err := m.Setup()
	if err != nil {
		t.Fatal(err)
	}
	a, err := s.Transport(s.Params)
	if err != nil {
		t.Fatal(err)
	}
	ref, err := eightBox(t).Transport(s.Params)
	if err != nil {
		t.Fatal(err)
	}
	if !spmat.EqualApprox(a, ref, 1e-12*ref.MaxAbs()) {
		t.Error("parameterized circulation differs")
	}
	b, err := s.Transport(s.Params.With("psi", 30e6))
	if err != nil {
		t.Fatal(err)
	}
	if different(b.At(0, 0), 40e6/1e15, 1e-12) {
		t.Errorf("T[0,0]: have %g", b.At(0, 0))
	}
	if again, _ := s.Transport(s.Params); again != a {
		t.Error("operator was not cached")
	}

	m.Params[len(m.Params)-1].Unit = "m"
	var cfgErr *steadybox.ConfigurationError
	if _, err := m.Setup(); !errors.As(err, &cfgErr) {
		t.Errorf("rate parameter with wrong dimensions: have %v", err)
	}
}

const nutrientModel = `
[[box]]
name = "surface"
volume = 1.0
surface = true
depth = 50.0
thickness = 100.0

[[box]]
name = "deep"
volume = 1.0
depth = 1000.0
thickness = 1900.0

[[flux]]
name = "mixing"
from = "surface"
to = "deep"
rate = 0.5
kind = "mixing"

[[param]]
name = "mu"
value = 1.0
unit = "1/s"

[[param]]
name = "k"
value = 0.5

[[param]]
name = "zc"
value = 0.1
unit = "km"

[[param]]
name = "lambda"
expr = "2 * gamma"
unit = "1/s"

[[param]]
name = "gamma"
value = 0.1
unit = "s-1"

[[param]]
name = "mean"
value = 2.0

[[tracer]]
name = "PO4"
mechanisms = ["nutrient"]
initial = 2.0

[tracer.options]
species = "PO4"
dop = "DOP"
max_uptake = "mu"
half_saturation = "k"
compensation_depth = "zc"
remineralization = "lambda"
restoring = "gamma"
mean = "mean"

[[tracer]]
name = "DOP"
mechanisms = ["nutrient"]

[tracer.options]
species = "DOP"
po4 = "PO4"
max_uptake = "mu"
half_saturation = "k"
compensation_depth = "zc"
remineralization = "lambda"
restoring = "gamma"
mean = "mean"
`

func TestNutrientModel(t *testing.T) {
	m, err := Decode(strings.NewReader(nutrientModel))
	if err != nil {
		t.Fatal(err)
	}
	s, err := m.Setup()
	if err != nil {
		t.Fatal(err)
	}
	x0 := s.InitialGuess()
	if diff := pretty.Diff(x0, []float64{2, 2, 0, 0}); len(diff) > 0 {
		t.Error(diff)
	}
	o := newton.DefaultOptions()
	o.AbsTol = 1e-14
	res, err := newton.Solve(context.Background(), s.System, x0, o)
	if err != nil {
		t.Fatal(err)
	}
	if res.ChordSteps == 0 {
		t.Error("no chord steps taken")
	}
	po4 := s.Registry.Block(res.X, 0)
	if different(po4[0]+po4[1], 4, 1e-8) || !(po4[0] < po4[1]) {
		t.Errorf("phosphate: have %v", po4)
	}

	o.MaxChord = 0
	res, err = newton.Solve(context.Background(), s.System, x0, o)
	if err != nil {
		t.Fatal(err)
	}
	order, err := res.Order()
	if err != nil {
		t.Fatal(err)
	}
	if order < 1.3 {
		t.Errorf("order of convergence of Newton's method: have %g", order)
	}

	res, err = newton.Retry(context.Background(), s.System, x0, o, 2)
	if err != nil || res.State != newton.Converged {
		t.Errorf("retry: have %v, %v", res.State, err)
	}
}
