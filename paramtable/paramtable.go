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


// Package paramtable turns a table of named parameters, given with units
// or as expressions of other parameters, into an immutable
// steadybox.Params in SI units.
package paramtable

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/unit"
	"github.com/spatialmodel/steadybox"
)

// Entry is one parameter of a table.
type Entry struct {
	Name string `toml:"name"`

	// Value is the value of the parameter in Unit.
	Value float64 `toml:"value"`

	// Unit is the unit of Value, e.g. "cm/hr" or "yr". It is parsed by
	// ParseUnit. Empty means dimensionless.
	Unit string `toml:"unit,omitempty"`

	// Expr, if not empty, defines the parameter as an expression of
	// other parameters, which are substituted in SI units. The result is
	// in Unit and Value is ignored.
	Expr string `toml:"expr,omitempty"`
}

// Table holds resolved parameters.
type Table struct {
	names  []string
	values map[string]*unit.Unit
}

// functions are available in expressions.
var functions = map[string]govaluate.ExpressionFunction{
	"exp":  unary("exp", math.Exp),
	"log":  unary("log", math.Log),
	"sqrt": unary("sqrt", math.Sqrt),
	"min": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("paramtable: got %d arguments for function 'min', but needs 2", len(args))
		}
		return math.Min(args[0].(float64), args[1].(float64)), nil
	},
	"max": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("paramtable: got %d arguments for function 'max', but needs 2", len(args))
		}
		return math.Max(args[0].(float64), args[1].(float64)), nil
	},
}

func unary(name string, f func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("paramtable: got %d arguments for function '%s', but needs 1", len(args), name)
		}
		return f(args[0].(float64)), nil
	}
}

func configError(name, format string, args ...interface{}) error {
	return &steadybox.ConfigurationError{What: "parameter " + name, Msg: fmt.Sprintf(format, args...)}
}

// New resolves entries. Derived parameters may refer to parameters in any
// order; unknown names and circular definitions are errors.
func New(entries []Entry) (*Table, error) {
	t := &Table{values: make(map[string]*unit.Unit)}
	declared := make(map[string]bool)
	for _, e := range entries {
		if e.Name == "" {
			return nil, configError(`""`, "missing name")
		}
		if declared[e.Name] {
			return nil, configError(e.Name, "defined more than once")
		}
		declared[e.Name] = true
		t.names = append(t.names, e.Name)
	}

	type derived struct {
		e    Entry
		expr *govaluate.EvaluableExpression
		unit *unit.Unit
	}
	var pending []derived
	for _, e := range entries {
		u, err := ParseUnit(e.Unit)
		if err != nil {
			return nil, configError(e.Name, "%v", err)
		}
		if e.Expr == "" {
			if math.IsNaN(e.Value) || math.IsInf(e.Value, 0) {
				return nil, configError(e.Name, "value %g is not finite", e.Value)
			}
			t.values[e.Name] = unit.New(e.Value*u.Value(), u.Dimensions())
			continue
		}
		expr, err := govaluate.NewEvaluableExpressionWithFunctions(e.Expr, functions)
		if err != nil {
			return nil, configError(e.Name, "expression %q: %v", e.Expr, err)
		}
		for _, v := range expr.Vars() {
			if !declared[v] {
				return nil, configError(e.Name, "expression %q refers to unknown parameter %s", e.Expr, v)
			}
		}
		pending = append(pending, derived{e: e, expr: expr, unit: u})
	}

	for len(pending) > 0 {
		var next []derived
		for _, d := range pending {
			vars := make(map[string]interface{})
			ready := true
			for _, v := range d.expr.Vars() {
				u, ok := t.values[v]
				if !ok {
					ready = false
					break
				}
				vars[v] = u.Value()
			}
			if !ready {
				next = append(next, d)
				continue
			}
			result, err := d.expr.Evaluate(vars)
			if err != nil {
				return nil, configError(d.e.Name, "evaluating %q: %v", d.e.Expr, err)
			}
			v, ok := result.(float64)
			if !ok {
				return nil, configError(d.e.Name, "expression %q is not a number", d.e.Expr)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, configError(d.e.Name, "expression %q evaluates to %g", d.e.Expr, v)
			}
			t.values[d.e.Name] = unit.New(v*d.unit.Value(), d.unit.Dimensions())
		}
		if len(next) == len(pending) {
			names := make([]string, len(next))
			for i, d := range next {
				names[i] = d.e.Name
			}
			sort.Strings(names)
			return nil, configError(strings.Join(names, ", "), "circular definition")
		}
		pending = next
	}
	return t, nil
}

// Names returns the parameter names in table order.
func (t *Table) Names() []string { return append([]string(nil), t.names...) }

// Unit returns the SI value and dimensions of the named parameter.
func (t *Table) Unit(name string) (*unit.Unit, bool) {
	u, ok := t.values[name]
	if !ok {
		return nil, false
	}
	return u.Clone(), true
}

// Params returns the SI values of all parameters.
func (t *Table) Params() steadybox.Params {
	v := make([]float64, len(t.names))
	for i, n := range t.names {
		v[i] = t.values[n].Value()
	}
	p, err := steadybox.NewParams(t.names, v)
	if err != nil {
		panic(err) // unreachable: names are unique
	}
	return p
}

// Check returns an error if any parameter named in dims is missing or has
// other dimensions.
func (t *Table) Check(dims map[string]unit.Dimensions) error {
	names := make([]string, 0, len(dims))
	for n := range dims {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		u, ok := t.values[n]
		if !ok {
			return configError(n, "missing")
		}
		if err := u.Check(dims[n]); err != nil {
			return configError(n, "%v", err)
		}
	}
	return nil
}
