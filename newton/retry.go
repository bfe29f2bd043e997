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

package newton

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
)

// Order estimates the order of convergence from the residual history as
// the slope of log‖F_{n+1}‖ against log‖F_n‖. Newton's method approaches
// 2 and chord steps 1. At least three positive residuals are needed.
func (d Diagnostics) Order() (float64, error) {
	var x, y []float64
	for i := 1; i < len(d.Residuals); i++ {
		a, b := d.Residuals[i-1], d.Residuals[i]
		if a > 0 && b > 0 && finite(a) && finite(b) {
			x = append(x, math.Log(a))
			y = append(y, math.Log(b))
		}
	}
	if len(x) < 2 {
		return math.NaN(), fmt.Errorf("newton: %d residual pairs are not enough to estimate the order of convergence", len(x))
	}
	slope, _, _, _, _, _ := stats.LinearRegression(x, y)
	return slope, nil
}

// Retry calls Solve up to attempts+1 times. After a *ConvergenceFailure
// the next attempt uses damping, half the rate threshold and half as many
// chord steps. It starts from the last iterate if that improved on the
// previous starting point, and from the previous starting point otherwise.
// Other errors are returned immediately. With zero attempts Retry is Solve.
func Retry(ctx context.Context, prob Problem, x0 []float64, o Options, attempts uint64) (*Result, error) {
	if attempts == 0 {
		return Solve(ctx, prob, x0, o)
	}
	if o.Log == nil {
		o.Log = discard()
	}
	x := x0
	var res *Result
	var permanent error
	attempt := 0
	op := func() error {
		attempt++
		var err error
		res, err = Solve(ctx, prob, x, o)
		var cf *ConvergenceFailure
		if err == nil || !errors.As(err, &cf) {
			permanent = err
			return nil
		}
		o.Log.WithFields(logrus.Fields{
			"attempt":  attempt,
			"residual": cf.Diagnostics.Residual(),
		}).Warn("retrying with stronger damping")
		if allFinite(res.X) && res.Residual() < res.Residuals[0] {
			x = res.X
		}
		o.Damping = true
		if o.RateThreshold <= 0 {
			o.RateThreshold = DefaultOptions().RateThreshold
		}
		o.RateThreshold /= 2
		o.MaxChord /= 2
		return err
	}
	// WithMaxRetries does not limit the number of tries when attempts is 0.
	b := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, attempts), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return res, err
	}
	return res, permanent
}

func allFinite(x []float64) bool {
	for _, v := range x {
		if !finite(v) {
			return false
		}
	}
	return true
}
