/*
Copyright © 2019 the Flowsheet authors.
This file is part of Flowsheet.

Flowsheet is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Flowsheet is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Flowsheet.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package flowsheetutil contains the command-line interface for building
// and solving flowsheets from case files.
package flowsheetutil

import (
	"context"
	"fmt"
	"os"

	"github.com/lnashier/viper"
	"github.com/procsim/flowsheet"
	"github.com/procsim/flowsheet/solver"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
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
	// Options are the configuration options available to the flowsheet
	// commands.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the location of the case file.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "xlsx",
			usage: `
              xlsx specifies a Microsoft Excel file to save the stream
              table to. The stream table is not saved if it is empty.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "plot",
			usage: `
              plot specifies an image file to save a plot of the solver
              convergence to. The image format is chosen by the file
              extension, e.g. .png or .svg.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputLevel",
			usage: `
              OutputLevel is 0 to only report problems, 1 to report the
              outcome of every solve and 2 to also report every solver
              iteration.`,
			shorthand:  "v",
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), checkCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("FLOWSHEET")
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
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(checkCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("flowsheet: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "flowsheet",
	Short: "A process flowsheet model builder.",
	Long: `flowsheet builds the balance equations of process units from a case
file, solves them and reports the resulting streams.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'FLOWSHEET_var' where 'var' is the
name of the variable to be set. The configuration file is also the case file,
which holds the property package, reactions, balance selections and inlet
conditions of the model.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of flowsheet.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("flowsheet v%s\n", flowsheet.Version)
	},
	DisableAutoGenTag: true,
}

// runCmd builds, initializes and solves a case.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Solve a case.",
	Long: `run builds the model described by the case file, initializes and solves
it and prints the inlet and outlet stream table.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := buildCase(cmd)
		if err != nil {
			return err
		}
		res, err := Run(context.Background(), m, cast.ToInt(Cfg.Get("OutputLevel")))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "case %s\n\n", res.Case)
		st := m.StreamTable()
		if err := st.Fprint(cmd.OutOrStdout()); err != nil {
			return err
		}
		if f := os.ExpandEnv(Cfg.GetString("xlsx")); f != "" {
			if err := WriteStreamTable(f, st); err != nil {
				return err
			}
		}
		if f := os.ExpandEnv(Cfg.GetString("plot")); f != "" {
			if err := solver.PlotHistory(f, res.Names, res.Histories...); err != nil {
				return fmt.Errorf("flowsheet: saving convergence plot: %v", err)
			}
		}
		if res.Final.Status != solver.Optimal {
			return fmt.Errorf("flowsheet: solve finished with status %v", res.Final.Status)
		}
		return nil
	},
	DisableAutoGenTag: true,
}

// checkCmd builds a case and runs its model checks.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check a case for implausible specifications.",
	Long: `check builds the model described by the case file, fixes its inlet
conditions and specifications and logs any values that are physically
implausible.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := buildCase(cmd)
		if err != nil {
			return err
		}
		if err := m.Inlet.Fix(flowsheet.StateArgs(m.Case.Inlet)); err != nil {
			return err
		}
		if err := m.FixSpecifications(); err != nil {
			return err
		}
		Check(m)
		return nil
	},
	DisableAutoGenTag: true,
}

// buildCase reads the case file named by the config option and builds
// its model, logging to the output of cmd.
func buildCase(cmd *cobra.Command) (*Model, error) {
	path := Cfg.GetString("config")
	if path == "" {
		return nil, fmt.Errorf("flowsheet: a case file must be specified with --config")
	}
	c, err := LoadCase(path)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.Out = cmd.OutOrStdout()
	if cast.ToInt(Cfg.Get("OutputLevel")) > 1 {
		log.Level = logrus.DebugLevel
	}
	return c.Build(log)
}
