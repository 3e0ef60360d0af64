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

// Package flowsheet assembles steady-state and dynamic process models
// from unit operations. Its core is the ControlVolume, which writes the
// material, energy and momentum balances of a unit operation from a
// property package, an optional reaction package and a set of options.
package flowsheet

import (
	"github.com/procsim/flowsheet/algebra"
	"github.com/sirupsen/logrus"
)

// Version gives the version number.
const Version = "0.3.0"

// Bool returns a pointer to v, for options where leaving the value
// unset has a meaning of its own.
func Bool(v bool) *bool { return &v }

// Config holds the options for creating a Flowsheet.
type Config struct {
	// Name is the name of the flowsheet block. The default is "fs".
	Name string

	// Dynamic specifies whether the flowsheet is dynamic. If unset, a
	// top-level flowsheet is steady-state and a sub-flowsheet inherits
	// the setting of its parent.
	Dynamic *bool

	// TimeSet is the set of time points. The default is {0} for
	// steady-state flowsheets and {0, 1} for dynamic ones. Dynamic time
	// sets need at least two points. Sub-flowsheets share the time set
	// of their parent and may not declare one.
	TimeSet []float64

	Log logrus.FieldLogger
}

// Unit is a unit operation registered on a flowsheet.
type Unit interface {
	Name() string
}

// Flowsheet is the top-level container of a process model. It owns the
// time domain and the model block that every unit builds into.
type Flowsheet struct {
	Name    string
	Dynamic bool
	Time    []float64
	Model   *algebra.Block
	Log     logrus.FieldLogger

	parent *Flowsheet
	subs   []*Flowsheet
	units  []Unit
}

// New creates a top-level flowsheet.
func New(cfg Config) (*Flowsheet, error) {
	if cfg.Name == "" {
		cfg.Name = "fs"
	}
	fs := &Flowsheet{
		Name:  cfg.Name,
		Model: algebra.NewBlock(cfg.Name),
		Log:   cfg.Log,
	}
	if fs.Log == nil {
		fs.Log = logrus.StandardLogger()
	}
	if cfg.Dynamic != nil {
		fs.Dynamic = *cfg.Dynamic
	}
	var err error
	if fs.Time, err = timeSet(cfg.Name, fs.Dynamic, cfg.TimeSet); err != nil {
		return nil, err
	}
	return fs, nil
}

// NewSubFlowsheet creates a flowsheet nested inside fs.
func (fs *Flowsheet) NewSubFlowsheet(cfg Config) (*Flowsheet, error) {
	if cfg.Name == "" {
		return nil, newError(ErrConfiguration, fs.Name, "sub-flowsheets must be named")
	}
	name := fs.Model.FullName() + "." + cfg.Name
	dynamic, err := resolveDynamic(name, fs.Dynamic, cfg.Dynamic)
	if err != nil {
		return nil, err
	}
	if len(cfg.TimeSet) != 0 {
		return nil, newError(ErrDynamic, name,
			"sub-flowsheets use the time domain of their parent and may not declare a time set")
	}
	b, err := fs.Model.AddBlock(cfg.Name)
	if err != nil {
		return nil, newError(ErrConfiguration, name, "%v", err)
	}
	sub := &Flowsheet{
		Name:    cfg.Name,
		Dynamic: dynamic,
		Time:    fs.Time,
		Model:   b,
		Log:     cfg.Log,
		parent:  fs,
	}
	if sub.Log == nil {
		sub.Log = fs.Log
	}
	fs.subs = append(fs.subs, sub)
	return sub, nil
}

// resolveDynamic returns the dynamic setting of a child of a parent
// with the given setting.
func resolveDynamic(name string, parent bool, child *bool) (bool, error) {
	if child == nil {
		return parent, nil
	}
	if *child && !parent {
		return false, newError(ErrDynamic, name,
			"can not be dynamic because its parent is steady-state")
	}
	return *child, nil
}

func timeSet(name string, dynamic bool, ts []float64) ([]float64, error) {
	switch {
	case len(ts) == 0 && dynamic:
		ts = []float64{0, 1}
	case len(ts) == 0:
		ts = []float64{0}
	case dynamic && len(ts) < 2:
		return nil, newError(ErrDynamic, name,
			"dynamic flowsheets need at least 2 time points but %d were given", len(ts))
	}
	for i := 1; i < len(ts); i++ {
		if ts[i] <= ts[i-1] {
			return nil, newError(ErrConfiguration, name, "time set must be strictly increasing")
		}
	}
	return append([]float64(nil), ts...), nil
}

// AddUnit registers a unit with the flowsheet.
func (fs *Flowsheet) AddUnit(u Unit) { fs.units = append(fs.units, u) }

// Units returns the registered units in registration order.
func (fs *Flowsheet) Units() []Unit { return fs.units }

// Parent returns the flowsheet that fs is nested in, or nil.
func (fs *Flowsheet) Parent() *Flowsheet { return fs.parent }

// ModelCheck runs the model check of every registered unit and of every
// sub-flowsheet, logging units that do not have one.
func (fs *Flowsheet) ModelCheck() {
	for _, sub := range fs.subs {
		sub.ModelCheck()
	}
	for _, u := range fs.units {
		if mc, ok := u.(ModelChecker); ok {
			mc.ModelCheck(fs.Log)
			continue
		}
		fs.Log.WithField("unit", u.Name()).Warn("unit has no model check")
	}
}
