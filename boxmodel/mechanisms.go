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
	"sort"
	"strings"

	"github.com/ctessum/unit"
	"github.com/spatialmodel/steadybox"
	"github.com/spatialmodel/steadybox/science/airsea"
	"github.com/spatialmodel/steadybox/science/decay"
	"github.com/spatialmodel/steadybox/science/nutrient"
)

// kinetics is a mechanism built for one tracer.
type kinetics struct {
	f      steadybox.KineticsFunc
	params []string
	dims   map[string]unit.Dimensions

	// lifetime names the e-folding time of a decaying tracer.
	lifetime string
}

// mechanism builds the kinetics of the tracer with index self from its
// options. tracers holds the index of every tracer by name.
type mechanism struct {
	options []string
	build   func(self int, opts map[string]string, tracers map[string]int) (kinetics, error)
}

// Mechanisms returns the names of the available mechanisms.
func Mechanisms() []string {
	names := make([]string, 0, len(mechanisms))
	for n := range mechanisms {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var mechanisms = map[string]mechanism{
	"decay": {
		options: []string{"rate", "lifetime"},
		build: func(self int, opts map[string]string, _ map[string]int) (kinetics, error) {
			d := decay.Decay{Self: self, Rate: opts["rate"], Lifetime: opts["lifetime"]}
			f, err := d.Kinetics()
			if err != nil {
				return kinetics{}, err
			}
			return kinetics{f: f, params: d.Params(), dims: d.Dimensions(), lifetime: d.Lifetime}, nil
		},
	},
	"airsea": {
		options: []string{"piston_velocity", "thickness", "saturation", "gate"},
		build: func(self int, opts map[string]string, tracers map[string]int) (kinetics, error) {
			e := airsea.Exchange{
				Self:           self,
				PistonVelocity: opts["piston_velocity"],
				Thickness:      opts["thickness"],
				Saturation:     opts["saturation"],
			}
			var f steadybox.KineticsFunc
			var err error
			if gate, ok := opts["gate"]; ok {
				g, ok := tracers[gate]
				if !ok {
					return kinetics{}, fmt.Errorf("airsea: unknown gate tracer %q", gate)
				}
				f, err = e.Gated(g)
			} else {
				f, err = e.Kinetics()
			}
			if err != nil {
				return kinetics{}, err
			}
			return kinetics{f: f, params: e.Params(), dims: e.Dimensions()}, nil
		},
	},
	"nutrient": {
		options: []string{"species", "po4", "dop", "max_uptake", "half_saturation",
			"compensation_depth", "remineralization", "restoring", "mean"},
		build: func(self int, opts map[string]string, tracers map[string]int) (kinetics, error) {
			species := opts["species"]
			index := func(key string) (int, error) {
				if strings.EqualFold(species, key) && opts[key] == "" {
					return self, nil
				}
				i, ok := tracers[opts[key]]
				if !ok {
					return 0, fmt.Errorf("nutrient: unknown %s tracer %q", strings.ToUpper(key), opts[key])
				}
				return i, nil
			}
			po4, err := index("po4")
			if err != nil {
				return kinetics{}, err
			}
			dop, err := index("dop")
			if err != nil {
				return kinetics{}, err
			}
			m := nutrient.Mechanism{
				PO4:               po4,
				DOP:               dop,
				MaxUptake:         opts["max_uptake"],
				HalfSaturation:    opts["half_saturation"],
				CompensationDepth: opts["compensation_depth"],
				Remineralization:  opts["remineralization"],
				Restoring:         opts["restoring"],
				Mean:              opts["mean"],
			}
			f, err := m.Kinetics(strings.ToUpper(species))
			if err != nil {
				return kinetics{}, err
			}
			return kinetics{f: f, params: m.Params(), dims: m.Dimensions()}, nil
		},
	},
}

// build returns the kinetics of tracer t, the sum of its mechanisms.
func (t Tracer) build(self int, tracers map[string]int) (kinetics, error) {
	what := "tracer " + t.Name
	known := make(map[string]bool)
	var parts []kinetics
	for _, name := range t.Mechanisms {
		m, ok := mechanisms[name]
		if !ok {
			return kinetics{}, configError(what, "invalid mechanism %q; options are %s", name, strings.Join(Mechanisms(), ", "))
		}
		for _, o := range m.options {
			known[o] = true
		}
		k, err := m.build(self, t.Options, tracers)
		if err != nil {
			return kinetics{}, configError(what, "%v", err)
		}
		parts = append(parts, k)
	}
	for o := range t.Options {
		if !known[o] {
			return kinetics{}, configError(what, "option %q is not used by mechanisms %v", o, t.Mechanisms)
		}
	}

	total := kinetics{dims: make(map[string]unit.Dimensions)}
	fs := make([]steadybox.KineticsFunc, len(parts))
	for i, k := range parts {
		fs[i] = k.f
		total.params = append(total.params, k.params...)
		for n, d := range k.dims {
			total.dims[n] = d
		}
		if k.lifetime != "" {
			total.lifetime = k.lifetime
		}
	}
	if len(fs) == 1 {
		total.f = fs[0]
	} else {
		total.f = steadybox.Sum(fs...)
	}
	return total, nil
}
