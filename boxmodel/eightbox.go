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

import "github.com/spatialmodel/steadybox/paramtable"

// EightBox returns a two-layer, 2×2 box model of radiocarbon in the ocean.
// Box i is in layer i/4; three of the four upper boxes are land. The deep
// boxes circulate in a zonal loop of 100 Sv, the surface box is part of a
// meridional overturning loop of 15 Sv, and it mixes with the deep box
// below it at 10 Sv. Tracer R is the ratio of radiocarbon to its
// atmospheric value, which enters through the surface and decays with an
// e-folding time of 8267 years.
func EightBox() *Model {
	return &Model{
		Boxes: []Box{
			{Name: "surface", Volume: 1e15, Surface: true, Depth: 50, Thickness: 100},
			{Name: "land1", Volume: 1e15, Dry: true},
			{Name: "land2", Volume: 1e15, Dry: true},
			{Name: "land3", Volume: 1e15, Dry: true},
			{Name: "deep_sw", Volume: 1e17, Depth: 2100, Thickness: 4000},
			{Name: "deep_se", Volume: 1e17, Depth: 2100, Thickness: 4000},
			{Name: "deep_nw", Volume: 1e17, Depth: 2100, Thickness: 4000},
			{Name: "deep_ne", Volume: 1e17, Depth: 2100, Thickness: 4000},
		},
		Fluxes: []Flux{
			{Name: "zonal", Loop: []string{"deep_sw", "deep_se", "deep_ne", "deep_nw"}, Rate: 100, Unit: "Sv"},
			{Name: "overturning", Loop: []string{"surface", "deep_sw", "deep_se", "deep_ne", "deep_nw"}, Rate: 15, Unit: "Sv"},
			{Name: "mixing", From: "surface", To: "deep_sw", Rate: 10, Unit: "Sv", Kind: "mixing"},
		},
		Params: []paramtable.Entry{
			{Name: "w", Value: 18, Unit: "cm/hr"},
			{Name: "h", Value: 100, Unit: "m"},
			{Name: "tau", Value: 8267, Unit: "yr"},
		},
		Tracers: []Tracer{
			{
				Name:       "R",
				Mechanisms: []string{"airsea", "decay"},
				Options: map[string]string{
					"piston_velocity": "w",
					"thickness":       "h",
					"lifetime":        "tau",
				},
				Initial: 1,
			},
		},
	}
}
