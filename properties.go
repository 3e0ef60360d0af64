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

package flowsheet

import (
	"fmt"

	"github.com/ctessum/unit"
	"github.com/procsim/flowsheet/algebra"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// PhaseEquilibrium is one member of a property package's phase
// equilibrium index. The corresponding generation term is the rate at
// which Component moves from phase From to phase To.
type PhaseEquilibrium struct {
	Name      string
	Component string
	From, To  string
}

// PropertyParameters is implemented by property packages. It holds the
// metadata shared by all of the package's state blocks and creates the
// state blocks themselves.
type PropertyParameters interface {
	// Phases and Components return the ordered phase and component sets.
	Phases() []string
	Components() []string

	// Elements returns the element set, or false if the package does
	// not declare one.
	Elements() ([]string, bool)

	// ElementComposition returns the number of atoms of element in one
	// molecule of component.
	ElementComposition(component, element string) float64

	// PhaseEquilibria returns the phase equilibrium index, or false if
	// the package does not declare one.
	PhaseEquilibria() ([]PhaseEquilibrium, bool)

	// MolecularWeight returns the molecular weight of component in
	// kg/mol, or false if it is not known.
	MolecularWeight(component string) (*unit.Unit, bool)

	// NewStateBlock creates a state block on b.
	NewStateBlock(b *algebra.Block, cfg StateBlockConfig) (StateBlock, error)
}

// StateBlockConfig holds the options passed to a property package when a
// state block is created.
type StateBlockConfig struct {
	Times []float64

	// DefinedState is true if the block represents an externally fixed
	// boundary condition, in which case the package does not add a
	// composition normalization constraint.
	DefinedState bool

	HasPhaseEquilibrium bool

	// Args holds package-specific options.
	Args map[string]interface{}

	Log logrus.FieldLogger
}

// StateBlock is a time-indexed container of the state of a material at
// one point of a flowsheet. The term accessors return algebra.Zero for
// phase/component combinations that do not exist.
type StateBlock interface {
	Block() *algebra.Block
	Config() StateBlockConfig

	MaterialFlowBasis() FlowBasis

	MaterialFlowTerm(t float64, phase, component string) algebra.Expr
	MaterialDensityTerm(t float64, phase, component string) algebra.Expr
	EnthalpyFlowTerm(t float64, phase string) algebra.Expr
	EnthalpyDensityTerm(t float64, phase string) algebra.Expr

	Temperature(t float64) algebra.Expr
	Pressure(t float64) algebra.Expr

	// StateVars returns the variables that fully define the state.
	StateVars() []*algebra.IndexedVar
}

// Flasher is implemented by state blocks that carry phase equilibrium
// constraints. These are deactivated for the first stage of
// initialization.
type Flasher interface {
	EquilibriumConstraints() []*algebra.IndexedConstraint
}

// Normalizer is implemented by state blocks that carry a composition
// normalization constraint. It is deactivated while the block is
// initialized with its state fixed.
type Normalizer interface {
	NormalizationConstraints() []*algebra.IndexedConstraint
}

// ModelChecker is implemented by blocks that can check themselves for
// physically implausible values. Problems are logged, not returned.
type ModelChecker interface {
	ModelCheck(log logrus.FieldLogger)
}

// StateArgs holds values for state variables, keyed by variable family
// name. A number applies to every member of the family. A map applies
// per label, e.g. {"mole_frac": {"c1": 0.4, "c2": 0.6}}.
type StateArgs map[string]interface{}

func (a StateArgs) value(name string, k algebra.Index) (float64, bool, error) {
	raw, ok := a[name]
	if !ok {
		return 0, false, nil
	}
	if f, err := cast.ToFloat64E(raw); err == nil {
		return f, true, nil
	}
	if m, ok := raw.(map[string]float64); ok {
		v, ok := m[k.A]
		return v, ok, nil
	}
	m, err := cast.ToStringMapE(raw)
	if err != nil {
		return 0, false, fmt.Errorf("value for %s must be a number or a map of numbers: %v", name, err)
	}
	v, ok := m[k.A]
	if !ok {
		return 0, false, nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false, fmt.Errorf("value for %s[%s]: %v", name, k.A, err)
	}
	return f, true, nil
}

// StateFlags records the state variables fixed by FixState so they can
// be released later.
type StateFlags struct {
	fixed []*algebra.Var
}

// Len returns the number of variables that will be unfixed by Release.
func (f *StateFlags) Len() int {
	if f == nil {
		return 0
	}
	return len(f.fixed)
}

// Release unfixes the variables that were fixed when f was created.
// Variables that were already fixed at that time are not touched.
// Calling Release more than once has no further effect.
func (f *StateFlags) Release() {
	if f == nil {
		return
	}
	for _, v := range f.fixed {
		v.Unfix()
	}
	f.fixed = nil
}

// FixState fixes every state variable of sb that is not already fixed,
// first setting its value from args if args holds one. The returned
// flags record the variables fixed by this call.
func FixState(sb StateBlock, args StateArgs) (*StateFlags, error) {
	flags := new(StateFlags)
	err := fixVars(sb.StateVars(), args, true, func(v *algebra.Var) {
		flags.fixed = append(flags.fixed, v)
	})
	if err != nil {
		flags.Release()
		return nil, newError(ErrConfiguration, sb.Block().FullName(), "%v", err)
	}
	return flags, nil
}

// fixVars sets and fixes the members of vars from args, calling fixed
// for each variable it fixes. Variables that are already fixed are left
// alone when skipFixed is set.
func fixVars(vars []*algebra.IndexedVar, args StateArgs, skipFixed bool, fixed func(*algebra.Var)) error {
	for _, iv := range vars {
		var err error
		iv.Each(func(k algebra.Index, v *algebra.Var) {
			if err != nil || (skipFixed && v.Fixed) {
				return
			}
			var val float64
			var ok bool
			if val, ok, err = args.value(iv.Name, k); err != nil {
				return
			}
			if ok {
				v.Value = val
			}
			if !v.Fixed && fixed != nil {
				fixed(v)
			}
			v.Fixed = true
		})
		if err != nil {
			return err
		}
	}
	return nil
}
