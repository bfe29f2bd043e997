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
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/steadybox"
	"github.com/spatialmodel/steadybox/boxmodel"
	"github.com/spatialmodel/steadybox/newton"
	"gonum.org/v1/gonum/mat"
)

// Solve finds the steady state of the model in modelFile using solver
// options o, printing the result to w and writing it to output if output
// is not empty. When retries > 0, a solve that fails to converge is
// repeated up to retries times with stronger damping.
func Solve(ctx context.Context, modelFile string, o newton.Options, retries uint64, ages bool, output string, w io.Writer) (*boxmodel.Solution, error) {
	log := logrus.WithField("model", modelFile)
	log.Info("reading model")
	m, err := boxmodel.Load(modelFile)
	if err != nil {
		return nil, err
	}
	s, err := m.Setup()
	if err != nil {
		return nil, err
	}
	if err := checkImbalance(s, log); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"tracers": s.Registry.Len(),
		"boxes":   s.Grid.NumActive(),
		"params":  s.Params.String(),
	}).Info("solving")

	x0 := s.InitialGuess()
	var res *newton.Result
	if retries > 0 {
		res, err = newton.Retry(ctx, s.System, x0, o, retries)
	} else {
		res, err = newton.Solve(ctx, s.System, x0, o)
	}
	if err != nil {
		return nil, fmt.Errorf("steadybox: solving %s: %w", modelFile, err)
	}

	sol, err := s.Solution(res, ages)
	if err != nil {
		return nil, err
	}
	if err := printSolution(w, sol); err != nil {
		return nil, err
	}
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return nil, fmt.Errorf("steadybox: creating output file: %v", err)
		}
		if err := sol.Encode(f); err != nil {
			f.Close()
			return nil, err
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("steadybox: closing output file: %v", err)
		}
		log.WithField("output", output).Info("wrote solution")
	}
	return sol, nil
}

// checkImbalance warns about boxes where the circulation does not
// conserve volume.
func checkImbalance(s *boxmodel.Setup, log logrus.FieldLogger) error {
	edges, err := s.Model.Edges(s.Params)
	if err != nil {
		return err
	}
	imb, err := steadybox.Imbalance(s.Grid.Len(), edges)
	if err != nil {
		return err
	}
	var scale float64
	for _, e := range edges {
		scale = math.Max(scale, e.Rate)
	}
	for i, v := range imb {
		if math.Abs(v) > 1e-12*scale {
			log.WithFields(logrus.Fields{
				"box":      s.Model.Boxes[i].Name,
				"net_flow": v,
			}).Warn("circulation does not conserve volume")
		}
	}
	return nil
}

func printSolution(w io.Writer, sol *boxmodel.Solution) error {
	fmt.Fprintf(w, "%s after %d iterations, residual %.3g\n", sol.State, sol.Iterations, sol.Residual)
	for _, t := range sol.Tracers {
		fmt.Fprintf(w, "\n%s (inventory %.6g)\n", t.Name, t.Inventory)
		tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
		if t.AgeYears != nil {
			fmt.Fprintln(tw, "box\tvalue\tage [yr]\t")
		} else {
			fmt.Fprintln(tw, "box\tvalue\t")
		}
		for i, b := range t.Boxes {
			if t.AgeYears != nil {
				fmt.Fprintf(tw, "%s\t%.6g\t%.4g\t\n", b, t.Values[i], t.AgeYears[i])
			} else {
				fmt.Fprintf(tw, "%s\t%.6g\t\n", b, t.Values[i])
			}
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// Operator prints the transport operator of the model in modelFile,
// restricted to its wet boxes, followed by the row sums of the operator
// and the net flow into every box.
func Operator(modelFile string, w io.Writer) error {
	m, err := boxmodel.Load(modelFile)
	if err != nil {
		return err
	}
	s, err := m.Setup()
	if err != nil {
		return err
	}
	t, err := s.Transport(s.Params)
	if err != nil {
		return err
	}
	edges, err := m.Edges(s.Params)
	if err != nil {
		return err
	}
	imb, err := steadybox.Imbalance(s.Grid.Len(), edges)
	if err != nil {
		return err
	}

	wet := s.Grid.WetIndices()
	names := m.BoxNames(wet)
	fmt.Fprintf(w, "transport operator [1/s] over boxes %v:\n", names)
	fmt.Fprintf(w, "%.4g\n\n", mat.Formatted(t.Dense(), mat.Squeeze()))

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "box\trow sum [1/s]\tnet flow [m3/s]\t")
	for i, sum := range t.RowSums() {
		fmt.Fprintf(tw, "%s\t%.3g\t%.3g\t\n", names[i], sum, imb[wet[i]])
	}
	return tw.Flush()
}
