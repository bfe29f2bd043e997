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


// Package hash computes stable keys for parameter vectors and other
// values used to index caches.
package hash

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/davecgh/go-spew/spew"
)

var printer = spew.ConfigState{
	Indent:                  " ",
	SortKeys:                true,
	DisableMethods:          true,
	SpewKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// Hash returns a hash key for the specified object. Pointers are followed
// and map keys are sorted, so equal values have equal keys whatever their
// addresses or insertion order.
func Hash(object interface{}) string {
	h := fnv.New128a()
	printer.Fprintf(h, "%#v", object)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Floats returns a key that differs for every pair of name lists and bit
// patterns of values, so that, e.g., 0 and -0 or two NaN payloads get
// different keys.
func Floats(names []string, values []float64) string {
	h := fnv.New128a()
	var b [8]byte
	for i, name := range names {
		binary.LittleEndian.PutUint64(b[:], uint64(len(name)))
		h.Write(b[:])
		h.Write([]byte(name))
		if i < len(values) {
			binary.LittleEndian.PutUint64(b[:], math.Float64bits(values[i]))
			h.Write(b[:])
		}
	}
	binary.LittleEndian.PutUint64(b[:], uint64(len(values)))
	h.Write(b[:])
	return fmt.Sprintf("%x", h.Sum(nil))
}
