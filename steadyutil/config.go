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


package steadyutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/steadybox/newton"
	"github.com/spatialmodel/steadybox/spmat"
	"github.com/spf13/cast"
)

// solverOptions unmarshals a viper configuration for the Newton solver.
func solverOptions(cfg *viper.Viper) (newton.Options, error) {
	o := newton.DefaultOptions()
	var err error
	if o.AbsTol, err = cast.ToFloat64E(cfg.Get("abstol")); err != nil {
		return o, fmt.Errorf("steadybox: abstol: %v", err)
	}
	if o.RelTol, err = cast.ToFloat64E(cfg.Get("reltol")); err != nil {
		return o, fmt.Errorf("steadybox: reltol: %v", err)
	}
	if o.MaxIter, err = cast.ToIntE(cfg.Get("max_iter")); err != nil {
		return o, fmt.Errorf("steadybox: max_iter: %v", err)
	}
	if o.MaxChord, err = cast.ToIntE(cfg.Get("max_chord")); err != nil {
		return o, fmt.Errorf("steadybox: max_chord: %v", err)
	}
	if o.Damping, err = cast.ToBoolE(cfg.Get("damping")); err != nil {
		return o, fmt.Errorf("steadybox: damping: %v", err)
	}
	if o.Norm, err = newton.ParseNorm(cfg.GetString("norm")); err != nil {
		return o, err
	}
	if o.Factorizer, err = factorizer(cfg.GetString("linear_solver"), cfg.GetFloat64("pivot_tol")); err != nil {
		return o, err
	}

	vars := []float64{o.AbsTol, float64(o.MaxIter)}
	varNames := []string{"abstol", "max_iter"}
	for i, v := range vars {
		if !(v > 0) {
			return o, fmt.Errorf("steadybox: %s=%g but should be >0", varNames[i], v)
		}
	}
	if o.RelTol < 0 || o.MaxChord < 0 {
		return o, fmt.Errorf("steadybox: reltol=%g and max_chord=%d should not be negative", o.RelTol, o.MaxChord)
	}
	o.Log = logrus.StandardLogger()
	return o, nil
}

// factorizer returns the linear solver with the given name.
func factorizer(name string, pivotTol float64) (spmat.Factorizer, error) {
	switch name {
	case "sparse":
		if !(pivotTol > 0 && pivotTol <= 1) {
			return nil, fmt.Errorf("steadybox: pivot_tol=%g but should be in (0, 1]", pivotTol)
		}
		return spmat.LU{PivotTol: pivotTol}, nil
	case "dense":
		return spmat.DenseLU{}, nil
	}
	return nil, fmt.Errorf("steadybox: invalid linear_solver %q; options are 'sparse' and 'dense'", name)
}

// checkModelFile makes sure that the model file is specified and expands
// any environment variables.
func checkModelFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`steadybox: you need to specify a model file (for example: --model="model.toml")`)
	}
	return os.ExpandEnv(f), nil
}

// checkOutputFile makes sure that the directory of the output file exists,
// if there is an output file, and expands any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", nil
	}
	f = os.ExpandEnv(f)
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("steadybox: the output directory doesn't exist: %v", err)
	}
	return f, nil
}

func checkRetries(n int) (uint64, error) {
	if n < 0 {
		return 0, fmt.Errorf("steadybox: retries=%d but should be >=0", n)
	}
	return uint64(n), nil
}
