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


package paramtable

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ctessum/unit"
)

// MoleDim is the dimension of amount of substance. The unit package
// reserves the symbol "mol" without defining a dimension for it.
var MoleDim unit.Dimension

func init() {
	MoleDim = unit.NewDimension("mole")
}

const year = 365.25 * 86400

// symbol is a unit symbol in terms of SI base units.
type symbol struct {
	factor float64
	dims   unit.Dimensions
}

var symbols = map[string]symbol{
	"1": {1, unit.Dimless},

	"s":    {1, unit.Second},
	"min":  {60, unit.Second},
	"h":    {3600, unit.Second},
	"hr":   {3600, unit.Second},
	"d":    {86400, unit.Second},
	"day":  {86400, unit.Second},
	"yr":   {year, unit.Second},
	"year": {year, unit.Second},
	"kyr":  {1e3 * year, unit.Second},

	"mm": {1e-3, unit.Meter},
	"cm": {1e-2, unit.Meter},
	"m":  {1, unit.Meter},
	"km": {1e3, unit.Meter},

	"L":  {1e-3, unit.Meter3},
	"Sv": {1e6, unit.Meter3PerSecond},

	"g":  {1e-3, unit.Kilogram},
	"kg": {1, unit.Kilogram},

	"mol":  {1, nil},
	"mmol": {1e-3, nil},
	"umol": {1e-6, nil},
	"μmol": {1e-6, nil},
}

func (s symbol) dimensions() unit.Dimensions {
	if s.dims == nil {
		return unit.Dimensions{MoleDim: 1}
	}
	return s.dims
}

// ParseUnit returns the value of one u in SI units, e.g. ParseUnit("cm/hr")
// returns 2.78e-6 m/s. Units are products of symbols with optional integer
// powers, such as "m3", "m^3" or "s-1", and at most one "/" after which
// all powers are negated. The empty string is dimensionless.
func ParseUnit(u string) (*unit.Unit, error) {
	u = strings.TrimSpace(u)
	result := unit.New(1, unit.Dimless)
	if u == "" {
		return result, nil
	}
	parts := strings.Split(u, "/")
	if len(parts) > 2 {
		return nil, fmt.Errorf("paramtable: unit %q has more than one '/'", u)
	}
	for i, part := range parts {
		sign := 1
		if i == 1 {
			sign = -1
		}
		fields := strings.FieldsFunc(part, func(r rune) bool { return r == '*' || r == ' ' || r == '·' })
		if len(fields) == 0 {
			return nil, fmt.Errorf("paramtable: unit %q has an empty term", u)
		}
		for _, f := range fields {
			s, pow, err := parseTerm(f)
			if err != nil {
				return nil, fmt.Errorf("paramtable: unit %q: %v", u, err)
			}
			pow *= sign
			base := unit.New(s.factor, s.dimensions())
			for ; pow > 0; pow-- {
				result = unit.Mul(result, base)
			}
			for ; pow < 0; pow++ {
				result = unit.Div(result, base)
			}
		}
	}
	return result, nil
}

// parseTerm splits a term such as "m3", "m^3" or "s-1" into a symbol and
// a power.
func parseTerm(term string) (symbol, int, error) {
	i := strings.IndexAny(term, "^-0123456789")
	if i == 0 {
		if term == "1" {
			return symbols["1"], 1, nil
		}
		return symbol{}, 0, fmt.Errorf("invalid term %q", term)
	}
	name, exp := term, "1"
	if i > 0 {
		name, exp = term[:i], strings.TrimPrefix(term[i:], "^")
	}
	s, ok := symbols[name]
	if !ok {
		return symbol{}, 0, fmt.Errorf("unknown unit symbol %q", name)
	}
	pow, err := strconv.Atoi(exp)
	if err != nil {
		return symbol{}, 0, fmt.Errorf("invalid power %q", exp)
	}
	return s, pow, nil
}
