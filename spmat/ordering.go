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
package spmat

import (
	"container/heap"
	"fmt"
)

// Ordering is the symmetric permutation LU applies to a matrix before
// factorizing it.
type Ordering int

const (
	// MinimumDegreeOrder eliminates columns in the order returned by
	// MinimumDegree.
	MinimumDegreeOrder Ordering = iota
	// NaturalOrder eliminates columns in the order they are stored.
	NaturalOrder
)

func (o Ordering) String() string {
	switch o {
	case MinimumDegreeOrder:
		return "minimum degree"
	case NaturalOrder:
		return "natural"
	default:
		return fmt.Sprintf("Ordering(%d)", int(o))
	}
}

type degree struct{ deg, node int }

// degreeHeap is a min-heap of nodes by degree, then by index. Entries go
// stale when a node's degree changes and are skipped when popped.
type degreeHeap []degree

func (h degreeHeap) Len() int { return len(h) }
func (h degreeHeap) Less(i, j int) bool {
	if h[i].deg != h[j].deg {
		return h[i].deg < h[j].deg
	}
	return h[i].node < h[j].node
}
func (h degreeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *degreeHeap) Push(x interface{}) { *h = append(*h, x.(degree)) }
func (h *degreeHeap) Pop() interface{} {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}

// MinimumDegree returns a fill-reducing elimination order for the square
// matrix m. The graph is the pattern of m + mᵀ; at each step the node with
// the fewest neighbours is eliminated and its neighbours are joined into a
// clique. Ties go to the lowest index, so the order is deterministic.
// Element k of the result is the column of m eliminated at step k.
func MinimumDegree(m *CSR) ([]int, error) {
	n, c := m.Dims()
	if n != c {
		return nil, fmt.Errorf("spmat: MinimumDegree of %d×%d matrix: %w", n, c, ErrShape)
	}
	adj := make([]map[int]struct{}, n)
	for i := range adj {
		adj[i] = make(map[int]struct{})
	}
	for i := 0; i < n; i++ {
		cols, _ := m.Row(i)
		for _, j := range cols {
			if j != i {
				adj[i][j] = struct{}{}
				adj[j][i] = struct{}{}
			}
		}
	}
	h := make(degreeHeap, n)
	for i := range h {
		h[i] = degree{deg: len(adj[i]), node: i}
	}
	heap.Init(&h)

	order := make([]int, 0, n)
	done := make([]bool, n)
	var nb []int
	for len(order) < n {
		d := heap.Pop(&h).(degree)
		v := d.node
		if done[v] || d.deg != len(adj[v]) {
			continue
		}
		done[v] = true
		order = append(order, v)
		nb = nb[:0]
		for u := range adj[v] {
			nb = append(nb, u)
		}
		for _, u := range nb {
			delete(adj[u], v)
			for _, w := range nb {
				if w != u {
					adj[u][w] = struct{}{}
				}
			}
		}
		for _, u := range nb {
			heap.Push(&h, degree{deg: len(adj[u]), node: u})
		}
		adj[v] = nil
	}
	return order, nil
}
