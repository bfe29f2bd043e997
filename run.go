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
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// forEachCell concurrently calls f for each of n active cells, with one
// worker per processor. Each worker handles every nprocs'th cell. It
// returns the first error encountered.
func forEachCell(ctx context.Context, n int, f func(c int) error) error {
	nprocs := runtime.GOMAXPROCS(0)
	if nprocs > n {
		nprocs = n
	}
	g, ctx := errgroup.WithContext(ctx)
	for pp := 0; pp < nprocs; pp++ {
		pp := pp
		g.Go(func() error {
			for c := pp; c < n; c += nprocs {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := f(c); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// Inventory returns the total amount of each tracer in the state x, the
// sum over active cells of concentration times volume.
func Inventory(r *Registry, x []float64) []float64 {
	cells := r.Grid().Cells()
	o := make([]float64, r.Len())
	for k := range o {
		for c, v := range r.Block(x, k) {
			o[k] += v * cells[c].Volume
		}
	}
	return o
}
