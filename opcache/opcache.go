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


// Package opcache memoizes transport operators, which are expensive to
// assemble for large grids and are requested at every residual and
// Jacobian evaluation even though the parameters rarely change.
package opcache

import (
	"context"
	"math"
	"runtime"

	"github.com/ctessum/requestcache"
	"github.com/spatialmodel/steadybox"
	"github.com/spatialmodel/steadybox/internal/hash"
	"github.com/spatialmodel/steadybox/spmat"
)

// Cache holds recently built operators. It is safe for concurrent use.
// The operators it returns are shared and must not be modified.
type Cache struct {
	cache *requestcache.Cache
	keys  []string
}

// New returns a cache of up to size operators built by f. If keys are
// given, only the values of the named parameters distinguish cache
// entries; otherwise all parameters do.
func New(f steadybox.TransportFunc, size int, keys ...string) *Cache {
	return &Cache{
		cache: requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
			m, err := f(request.(steadybox.Params))
			return built{m: m, err: err}, nil
		}, runtime.GOMAXPROCS(-1),
			requestcache.Deduplicate(), requestcache.Memory(size)),
		keys: keys,
	}
}

// built is the cached outcome of a build. Failed builds are cached too:
// the deduplicator only releases waiting requests for successful results.
type built struct {
	m   *spmat.CSR
	err error
}

func (c *Cache) key(p steadybox.Params) string {
	if len(c.keys) == 0 {
		return hash.Floats(p.Names(), p.Values())
	}
	v := make([]float64, len(c.keys))
	for i, name := range c.keys {
		var ok bool
		if v[i], ok = p.Lookup(name); !ok {
			v[i] = math.NaN()
		}
	}
	return hash.Floats(c.keys, v)
}

// Transport returns the operator for p, building it if it is not cached.
// It has the signature of steadybox.TransportFunc. A build error is
// returned again for later requests with the same key.
func (c *Cache) Transport(p steadybox.Params) (*spmat.CSR, error) {
	r := c.cache.NewRequest(context.Background(), p, c.key(p))
	result, err := r.Result()
	if err != nil {
		return nil, err
	}
	b := result.(built)
	return b.m, b.err
}

// Requests returns the number of requests received by the deduplicator,
// the memory cache and the builder, in that order.
func (c *Cache) Requests() []int { return c.cache.Requests() }
