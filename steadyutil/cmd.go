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


// Package steadyutil implements the steadybox command line.
package steadyutil

import (
	"fmt"
	"os"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/steadybox"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to steadybox.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "log_level",
			usage: `
              log_level is the lowest level of log messages that are printed.
              Options are 'debug', 'info', 'warning' and 'error'. Each Newton
              iteration is logged at the debug level.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "model",
			usage: `
              model is the path to the TOML file describing the boxes, fluxes,
              parameters and tracers of the model. It can include environment
              variables.`,
			shorthand:  "m",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{solveCmd.Flags(), operatorCmd.Flags()},
		},
		{
			name: "abstol",
			usage: `
              abstol is the norm of the residual below which the steady state
              is considered found. The residual is a rate of change of
              concentration per second, so appropriate values are usually
              much smaller than the concentrations themselves.`,
			defaultVal: 1.0e-18,
			flagsets:   []*pflag.FlagSet{solveCmd.Flags()},
		},
		{
			name: "reltol",
			usage: `
              reltol is the size of an undamped step, relative to the size of
              the state, below which the steady state is considered found.
              Zero disables this test.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{solveCmd.Flags()},
		},
		{
			name: "max_iter",
			usage: `
              max_iter is the largest number of iterations the solver takes.`,
			defaultVal: 50,
			flagsets:   []*pflag.FlagSet{solveCmd.Flags()},
		},
		{
			name: "max_chord",
			usage: `
              max_chord is the number of chord steps that may reuse a factorized
              Jacobian before it is recomputed. Zero gives Newton's method.`,
			defaultVal: 3,
			flagsets:   []*pflag.FlagSet{solveCmd.Flags()},
		},
		{
			name: "damping",
			usage: `
              damping specifies whether steps that do not decrease the residual
              sufficiently are shortened.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{solveCmd.Flags()},
		},
		{
			name: "norm",
			usage: `
              norm is the vector norm of residuals and steps, either 'max' or '2'.`,
			defaultVal: "max",
			flagsets:   []*pflag.FlagSet{solveCmd.Flags()},
		},
		{
			name: "linear_solver",
			usage: `
              linear_solver is the factorization used for the Jacobian: 'sparse'
              for sparse LU, or 'dense' for dense LU, which is only suitable for
              small models.`,
			defaultVal: "sparse",
			flagsets:   []*pflag.FlagSet{solveCmd.Flags()},
		},
		{
			name: "pivot_tol",
			usage: `
              pivot_tol is the threshold for partial pivoting in the sparse LU
              factorization, in (0, 1]. Larger values favor stability over
              sparsity.`,
			defaultVal: 0.1,
			flagsets:   []*pflag.FlagSet{solveCmd.Flags()},
		},
		{
			name: "retries",
			usage: `
              retries is the number of times the solve is repeated with
              stronger damping when it fails to converge.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{solveCmd.Flags()},
		},
		{
			name: "age",
			usage: `
              age specifies whether the ages of decaying tracers, in years,
              are computed from their steady-state concentrations.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{solveCmd.Flags()},
		},
		{
			name: "output",
			usage: `
              output is the path where the solution is written in TOML format.
              If it is empty, the solution is only printed. It can include
              environment variables.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{solveCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("STEADYBOX")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
		}
		Cfg.BindPFlag(option.name, option.flagsets[0].Lookup(option.name))
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(solveCmd)
	Root.AddCommand(operatorCmd)

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:  true,
		DisableSorting: true,
	})
}

// setConfig finds and reads in the configuration file, if there is one,
// and sets the logging level.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("steadybox: problem reading configuration file: %v", err)
		}
	}
	level, err := logrus.ParseLevel(Cfg.GetString("log_level"))
	if err != nil {
		return fmt.Errorf("steadybox: %v", err)
	}
	logrus.SetLevel(level)
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "steadybox",
	Short: "A steady-state tracer box model.",
	Long: `steadybox finds the steady-state concentrations of tracers that are
carried between boxes by a fixed circulation and transformed within each box
by decay, air-sea exchange or nutrient cycling.
Use the subcommands specified below to access the model functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'STEADYBOX_var' where 'var' is the
name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of steadybox.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("steadybox v%s\n", steadybox.Version)
	},
	DisableAutoGenTag: true,
}

// solveCmd is a command that finds the steady state of a model.
var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Find the steady state of a model.",
	Long: `solve loads the model specified by --model, finds the concentrations
of all tracers at which transport and kinetics balance, prints them and
optionally writes them to the file specified by --output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := solverOptions(Cfg)
		if err != nil {
			return err
		}
		model, err := checkModelFile(Cfg.GetString("model"))
		if err != nil {
			return err
		}
		output, err := checkOutputFile(Cfg.GetString("output"))
		if err != nil {
			return err
		}
		retries, err := checkRetries(Cfg.GetInt("retries"))
		if err != nil {
			return err
		}
		_, err = Solve(cmd.Context(), model, o, retries, Cfg.GetBool("age"), output, cmd.OutOrStdout())
		return err
	},
	DisableAutoGenTag: true,
}

// operatorCmd is a command that prints the transport operator of a model.
var operatorCmd = &cobra.Command{
	Use:   "operator",
	Short: "Print the transport operator of a model.",
	Long: `operator prints the transport operator of the model specified by --model,
restricted to its wet boxes, together with the row sums of the operator and
the net flow into each box. Every row sum and net flow is zero for a
circulation that conserves mass.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		model, err := checkModelFile(Cfg.GetString("model"))
		if err != nil {
			return err
		}
		return Operator(model, cmd.OutOrStdout())
	},
	DisableAutoGenTag: true,
}
