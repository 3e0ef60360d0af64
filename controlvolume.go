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

	"github.com/procsim/flowsheet/algebra"
	"github.com/sirupsen/logrus"
)

// FlowDirection specifies which state block of a control volume is
// attached to the inlet.
type FlowDirection int

const (
	// Forward flow: properties_in is the inlet and properties_out the outlet.
	Forward FlowDirection = iota
	// Backward flow: properties_out is the inlet and properties_in the outlet.
	Backward
)

func (d FlowDirection) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return fmt.Sprintf("FlowDirection(%d)", int(d))
	}
}

// Stage is the build stage of a control volume.
type Stage int

// These are the stages a control volume passes through. GeometryAdded
// and ReactionBlocksAdded are optional.
const (
	Unbuilt Stage = iota
	GeometryAdded
	StateBlocksAdded
	ReactionBlocksAdded
	BalancesAdded
	Initialized
	Released
)

func (s Stage) String() string {
	switch s {
	case Unbuilt:
		return "unbuilt"
	case GeometryAdded:
		return "geometry added"
	case StateBlocksAdded:
		return "state blocks added"
	case ReactionBlocksAdded:
		return "reaction blocks added"
	case BalancesAdded:
		return "balances added"
	case Initialized:
		return "initialized"
	case Released:
		return "released"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// ControlVolumeConfig holds the options for creating a ControlVolume.
type ControlVolumeConfig struct {
	// Name is the name of the control volume block. The default is
	// "control_volume".
	Name string

	// Parent is the block the control volume is created in. The
	// default is the flowsheet's model block.
	Parent *algebra.Block

	// Dynamic specifies whether the control volume is dynamic. If unset
	// it inherits the setting of the flowsheet.
	Dynamic *bool

	// HasHoldup specifies whether holdup terms are built. If unset it
	// takes the resolved value of Dynamic. Dynamic control volumes
	// must have holdup.
	HasHoldup *bool

	PropertyPackage     PropertyParameters
	PropertyPackageArgs map[string]interface{}

	// ReactionPackage is optional.
	ReactionPackage     ReactionParameters
	ReactionPackageArgs map[string]interface{}

	Log logrus.FieldLogger
}

// ControlVolume is a lumped region over which balance equations are
// written. It is created with Flowsheet.NewControlVolume and built up by
// calling, in order, AddGeometry (optional), AddStateBlocks,
// AddReactionBlocks (optional) and the balance methods.
type ControlVolume struct {
	Block     *algebra.Block
	Dynamic   bool
	HasHoldup bool
	Time      []float64
	Log       logrus.FieldLogger

	PropertiesIn, PropertiesOut StateBlock
	Reactions                   ReactionBlock

	// Volume is set by AddGeometry.
	Volume *algebra.IndexedVar

	props    PropertyParameters
	propArgs map[string]interface{}
	rxns     ReactionParameters
	rxnArgs  map[string]interface{}

	direction FlowDirection
	stage     Stage

	material, enthalpy, pressure bool

	inlet, outlet *Port
}

// NewControlVolume creates a control volume in fs. The dynamic and holdup
// settings are resolved here, once.
func (fs *Flowsheet) NewControlVolume(cfg ControlVolumeConfig) (*ControlVolume, error) {
	if cfg.Name == "" {
		cfg.Name = "control_volume"
	}
	if cfg.Parent == nil {
		cfg.Parent = fs.Model
	}
	name := cfg.Parent.FullName() + "." + cfg.Name
	if cfg.PropertyPackage == nil {
		return nil, newError(ErrConfiguration, name, "a property package must be specified")
	}
	dynamic, err := resolveDynamic(name, fs.Dynamic, cfg.Dynamic)
	if err != nil {
		return nil, err
	}
	holdup := dynamic
	if cfg.HasHoldup != nil {
		holdup = *cfg.HasHoldup
	}
	if dynamic && !holdup {
		return nil, newError(ErrConfiguration, name,
			"dynamic control volumes must have holdup; set HasHoldup to true or leave it unset")
	}
	b, err := cfg.Parent.AddBlock(cfg.Name)
	if err != nil {
		return nil, newError(ErrConfiguration, name, "%v", err)
	}
	cv := &ControlVolume{
		Block:     b,
		Dynamic:   dynamic,
		HasHoldup: holdup,
		Time:      fs.Time,
		Log:       cfg.Log,
		props:     cfg.PropertyPackage,
		propArgs:  cfg.PropertyPackageArgs,
		rxns:      cfg.ReactionPackage,
		rxnArgs:   cfg.ReactionPackageArgs,
	}
	if cv.Log == nil {
		cv.Log = fs.Log
	}
	cv.Log = cv.Log.WithField("block", b.FullName())
	return cv, nil
}

// Name returns the full name of the control volume block.
func (cv *ControlVolume) Name() string { return cv.Block.FullName() }

// Stage returns the current build stage.
func (cv *ControlVolume) Stage() Stage { return cv.stage }

// FlowDirection returns the flow direction set by AddStateBlocks. It
// can not be changed afterwards.
func (cv *ControlVolume) FlowDirection() FlowDirection { return cv.direction }

// PropertyPackage returns the property package of cv.
func (cv *ControlVolume) PropertyPackage() PropertyParameters { return cv.props }

// ReactionPackage returns the reaction package of cv, or nil.
func (cv *ControlVolume) ReactionPackage() ReactionParameters { return cv.rxns }

func (cv *ControlVolume) errorf(kind error, format string, a ...interface{}) error {
	return newError(kind, cv.Name(), format, a...)
}

func (cv *ControlVolume) advance(s Stage) {
	if s > cv.stage {
		cv.stage = s
	}
}

// AddGeometry adds the volume variable, volume[t], initialized to 1.
func (cv *ControlVolume) AddGeometry() error {
	if cv.Volume != nil {
		return cv.errorf(ErrConfiguration, "geometry has already been added")
	}
	if cv.stage >= BalancesAdded {
		return cv.errorf(ErrConfiguration, "geometry must be added before any balances")
	}
	v, err := cv.Block.NewVar("volume", algebra.Keys(cv.Time), 1)
	if err != nil {
		return cv.errorf(ErrConfiguration, "%v", err)
	}
	v.Doc = "Volume"
	cv.Volume = v
	cv.advance(GeometryAdded)
	return nil
}

// StateBlockOptions holds the arguments of AddStateBlocks.
type StateBlockOptions struct {
	FlowDirection FlowDirection

	// HasPhaseEquilibrium must be set. There is no default.
	HasPhaseEquilibrium *bool

	// Args are passed to the property package in addition to the
	// control volume's PropertyPackageArgs, which they override.
	Args map[string]interface{}
}

// AddStateBlocks creates the properties_in and properties_out state
// blocks. The block at the inlet for the given flow direction represents
// the externally defined state.
func (cv *ControlVolume) AddStateBlocks(o StateBlockOptions) error {
	if cv.PropertiesIn != nil {
		return cv.errorf(ErrConfiguration, "state blocks have already been added")
	}
	if o.HasPhaseEquilibrium == nil {
		return cv.errorf(ErrConfiguration,
			"HasPhaseEquilibrium must be specified explicitly when adding state blocks")
	}
	if o.FlowDirection != Forward && o.FlowDirection != Backward {
		return cv.errorf(ErrConfiguration, "unrecognized flow direction %v", o.FlowDirection)
	}
	args := make(map[string]interface{}, len(cv.propArgs)+len(o.Args))
	for k, v := range cv.propArgs {
		args[k] = v
	}
	for k, v := range o.Args {
		args[k] = v
	}

	build := func(name string, defined bool) (StateBlock, error) {
		b, err := cv.Block.AddBlock(name)
		if err != nil {
			return nil, cv.errorf(ErrConfiguration, "%v", err)
		}
		sb, err := cv.props.NewStateBlock(b, StateBlockConfig{
			Times:               cv.Time,
			DefinedState:        defined,
			HasPhaseEquilibrium: *o.HasPhaseEquilibrium,
			Args:                args,
			Log:                 cv.Log,
		})
		if err != nil {
			cv.Block.Remove(name)
			return nil, err
		}
		return sb, nil
	}
	in, err := build("properties_in", o.FlowDirection == Forward)
	if err != nil {
		return err
	}
	out, err := build("properties_out", o.FlowDirection == Backward)
	if err != nil {
		cv.Block.Remove("properties_in")
		return err
	}
	cv.PropertiesIn, cv.PropertiesOut = in, out
	cv.direction = o.FlowDirection
	cv.advance(StateBlocksAdded)
	cv.Log.WithFields(logrus.Fields{
		"flow_direction":        cv.direction,
		"has_phase_equilibrium": *o.HasPhaseEquilibrium,
	}).Debug("added state blocks")
	return nil
}

// ReactionBlockOptions holds the arguments of AddReactionBlocks.
type ReactionBlockOptions struct {
	// HasEquilibrium must be set. There is no default.
	HasEquilibrium *bool

	// Args are passed to the reaction package in addition to the
	// control volume's ReactionPackageArgs, which they override.
	Args map[string]interface{}
}

// AddReactionBlocks creates the reactions block, which evaluates reaction
// properties at the conditions of properties_out.
func (cv *ControlVolume) AddReactionBlocks(o ReactionBlockOptions) error {
	switch {
	case cv.PropertiesOut == nil:
		return cv.errorf(ErrConfiguration, "state blocks must be added before reaction blocks")
	case cv.rxns == nil:
		return cv.errorf(ErrConfiguration, "reaction blocks require a reaction package")
	case cv.Reactions != nil:
		return cv.errorf(ErrConfiguration, "reaction blocks have already been added")
	case o.HasEquilibrium == nil:
		return cv.errorf(ErrConfiguration,
			"HasEquilibrium must be specified explicitly when adding reaction blocks")
	}
	args := make(map[string]interface{}, len(cv.rxnArgs)+len(o.Args))
	for k, v := range cv.rxnArgs {
		args[k] = v
	}
	for k, v := range o.Args {
		args[k] = v
	}
	b, err := cv.Block.AddBlock("reactions")
	if err != nil {
		return cv.errorf(ErrConfiguration, "%v", err)
	}
	rb, err := cv.rxns.NewReactionBlock(b, cv.PropertiesOut, ReactionBlockConfig{
		Times:          cv.Time,
		HasEquilibrium: *o.HasEquilibrium,
		Args:           args,
		Log:            cv.Log,
	})
	if err != nil {
		cv.Block.Remove("reactions")
		return err
	}
	cv.Reactions = rb
	cv.advance(ReactionBlocksAdded)
	return nil
}

// AddPhaseFractions adds phase_fraction[t,p]. With more than one phase it
// is a variable constrained by sum_of_phase_fractions[t]; with one phase
// it is a constant expression equal to one. Calling it again has no
// effect.
func (cv *ControlVolume) AddPhaseFractions() error {
	if cv.Block.Has("phase_fraction") {
		return nil
	}
	phases := cv.props.Phases()
	keys := algebra.Keys(cv.Time, phases)
	if len(phases) < 2 {
		e := algebra.NewIndexedExpression("phase_fraction", keys, func(algebra.Index) algebra.Expr {
			return algebra.Const(1)
		})
		e.Doc = "Phase volume fractions"
		return cv.Block.AddExpression(e)
	}
	pf, err := cv.Block.NewVar("phase_fraction", keys, 1/float64(len(phases)))
	if err != nil {
		return err
	}
	pf.Doc = "Phase volume fractions"
	pf.SetBounds(0, 1)
	c := algebra.NewIndexedConstraint("sum_of_phase_fractions", algebra.Keys(cv.Time),
		func(k algebra.Index) (algebra.Expr, algebra.Expr) {
			terms := make([]algebra.Expr, len(phases))
			for i, p := range phases {
				terms[i] = pf.Get(k.Time, p)
			}
			return algebra.Sum(terms...), algebra.Const(1)
		})
	return cv.Block.AddConstraint(c)
}

// PhaseFraction returns phase_fraction[t,p], or nil if AddPhaseFractions
// has not been called.
func (cv *ControlVolume) PhaseFraction(t float64, phase string) algebra.Expr {
	if v, ok := cv.Block.Var("phase_fraction"); ok {
		return v.Get(t, phase)
	}
	if e, ok := cv.Block.Expression("phase_fraction"); ok {
		return e.Get(t, phase)
	}
	return nil
}

// inletState and outletState return the state blocks at the inlet and
// outlet for the configured flow direction.
func (cv *ControlVolume) inletState() StateBlock {
	if cv.direction == Backward {
		return cv.PropertiesOut
	}
	return cv.PropertiesIn
}

func (cv *ControlVolume) outletState() StateBlock {
	if cv.direction == Backward {
		return cv.PropertiesIn
	}
	return cv.PropertiesOut
}

// AddInletPort returns the inlet port of cv.
func (cv *ControlVolume) AddInletPort() (*Port, error) {
	if cv.PropertiesIn == nil {
		return nil, cv.errorf(ErrConfiguration, "state blocks must be added before ports")
	}
	if cv.inlet != nil {
		return nil, cv.errorf(ErrConfiguration, "the inlet port has already been added")
	}
	cv.inlet = NewPort("inlet", cv.inletState())
	return cv.inlet, nil
}

// AddOutletPort returns the outlet port of cv.
func (cv *ControlVolume) AddOutletPort() (*Port, error) {
	if cv.PropertiesIn == nil {
		return nil, cv.errorf(ErrConfiguration, "state blocks must be added before ports")
	}
	if cv.outlet != nil {
		return nil, cv.errorf(ErrConfiguration, "the outlet port has already been added")
	}
	cv.outlet = NewPort("outlet", cv.outletState())
	return cv.outlet, nil
}

// getOrCreateVar returns the variable family registered on cv under name,
// creating it if it does not exist yet.
func (cv *ControlVolume) getOrCreateVar(name, doc string, keys []algebra.Index, init float64) (*algebra.IndexedVar, error) {
	if v, ok := cv.Block.Var(name); ok {
		return v, nil
	}
	v, err := cv.Block.NewVar(name, keys, init)
	if err != nil {
		return nil, cv.errorf(ErrConfiguration, "%v", err)
	}
	v.Doc = doc
	return v, nil
}

func (cv *ControlVolume) newVar(name, doc string, keys []algebra.Index, init float64) (*algebra.IndexedVar, error) {
	v, err := cv.Block.NewVar(name, keys, init)
	if err != nil {
		return nil, cv.errorf(ErrConfiguration, "%v", err)
	}
	v.Doc = doc
	return v, nil
}

func (cv *ControlVolume) newConstraint(name, doc string, keys []algebra.Index, rule algebra.Rule) (*algebra.IndexedConstraint, error) {
	c := algebra.NewIndexedConstraint(name, keys, rule)
	c.Doc = doc
	if err := cv.Block.AddConstraint(c); err != nil {
		return nil, cv.errorf(ErrConfiguration, "%v", err)
	}
	return c, nil
}

func (cv *ControlVolume) newExpression(name, doc string, keys []algebra.Index, f func(algebra.Index) algebra.Expr) (*algebra.IndexedExpression, error) {
	e := algebra.NewIndexedExpression(name, keys, f)
	e.Doc = doc
	if err := cv.Block.AddExpression(e); err != nil {
		return nil, cv.errorf(ErrConfiguration, "%v", err)
	}
	return e, nil
}

// newAccumulation creates the time derivative of holdup and, when the
// time set has more than one point, its backward Euler discretization.
func (cv *ControlVolume) newAccumulation(name, doc string, holdup *algebra.IndexedVar) (*algebra.IndexedVar, error) {
	d := algebra.NewDerivative(name, holdup)
	d.Doc = doc
	if err := cv.Block.AddVar(d); err != nil {
		return nil, cv.errorf(ErrConfiguration, "%v", err)
	}
	if _, err := algebra.BackwardEuler(cv.Block, d, cv.Time); err != nil {
		return nil, cv.errorf(ErrDynamic, "%v", err)
	}
	return d, nil
}
