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

// Package testpkg provides minimal property and reaction packages for
// testing control volumes and unit models. Every index set and the flow
// bases can be changed after construction.
package testpkg

import (
	"errors"

	"github.com/ctessum/unit"
	"github.com/procsim/flowsheet"
	"github.com/procsim/flowsheet/algebra"
	"github.com/sirupsen/logrus"
)

// Properties is a property package with phases p1 and p2, components c1
// and c2 and elements H, He and Li.
type Properties struct {
	PhaseList     []string
	ComponentList []string

	ElementList []string
	Composition map[string]map[string]float64

	PhaseEquilibriumList []flowsheet.PhaseEquilibrium

	// Basis is the material flow basis of new state blocks.
	Basis flowsheet.FlowBasis

	// MW holds molecular weights in kg/mol. Components without one have
	// no molecular weight.
	MW map[string]float64

	// WithConstraints adds a derived variable and its constraints to
	// every state block.
	WithConstraints bool

	// FailBlock names a state block that NewStateBlock refuses to build,
	// after it has registered test_var.
	FailBlock string

	// StateBlocks holds the state blocks created by the package.
	StateBlocks []*StateBlock
}

// ErrRefused is returned by the packages when told to fail.
var ErrRefused = errors.New("testpkg: refused")

// NewProperties returns the default test property package.
func NewProperties() *Properties {
	return &Properties{
		PhaseList:     []string{"p1", "p2"},
		ComponentList: []string{"c1", "c2"},
		ElementList:   []string{"H", "He", "Li"},
		Composition: map[string]map[string]float64{
			"c1": {"H": 1, "He": 2, "Li": 3},
			"c2": {"H": 4, "He": 5, "Li": 6},
		},
		PhaseEquilibriumList: []flowsheet.PhaseEquilibrium{
			{Name: "e1", Component: "c1", From: "p1", To: "p2"},
			{Name: "e2", Component: "c2", From: "p1", To: "p2"},
		},
		Basis: flowsheet.Molar,
	}
}

func (p *Properties) Phases() []string     { return p.PhaseList }
func (p *Properties) Components() []string { return p.ComponentList }

func (p *Properties) Elements() ([]string, bool) {
	return p.ElementList, p.ElementList != nil
}

func (p *Properties) ElementComposition(component, element string) float64 {
	return p.Composition[component][element]
}

func (p *Properties) PhaseEquilibria() ([]flowsheet.PhaseEquilibrium, bool) {
	return p.PhaseEquilibriumList, p.PhaseEquilibriumList != nil
}

func (p *Properties) MolecularWeight(component string) (*unit.Unit, bool) {
	mw, ok := p.MW[component]
	if !ok {
		return nil, false
	}
	return flowsheet.MolecularWeight(mw), true
}

// NewStateBlock implements flowsheet.PropertyParameters.
func (p *Properties) NewStateBlock(b *algebra.Block, cfg flowsheet.StateBlockConfig) (flowsheet.StateBlock, error) {
	sb := &StateBlock{blk: b, cfg: cfg, basis: p.Basis}
	var err error
	keys := algebra.Keys(cfg.Times)
	if sb.TestVar, err = b.NewVar("test_var", keys, 1); err != nil {
		return nil, err
	}
	if b.Name() == p.FailBlock {
		return nil, ErrRefused
	}
	if sb.PressureVar, err = b.NewVar("pressure", keys, 1e5); err != nil {
		return nil, err
	}
	if p.WithConstraints {
		if sb.Derived, err = b.NewVar("derived", keys, 0); err != nil {
			return nil, err
		}
		sb.eqDerived = algebra.NewIndexedConstraint("eq_derived", keys,
			func(k algebra.Index) (algebra.Expr, algebra.Expr) {
				return sb.Derived.At(k), algebra.Scale(2, sb.TestVar.At(k))
			})
		if err = b.AddConstraint(sb.eqDerived); err != nil {
			return nil, err
		}
		sb.eqNorm = algebra.NewIndexedConstraint("eq_norm", keys,
			func(k algebra.Index) (algebra.Expr, algebra.Expr) {
				return sb.TestVar.At(k), algebra.Const(1)
			})
		if err = b.AddConstraint(sb.eqNorm); err != nil {
			return nil, err
		}
	}
	p.StateBlocks = append(p.StateBlocks, sb)
	return sb, nil
}

// StateBlock is the state block of Properties. Every material and
// enthalpy term is test_var[t].
type StateBlock struct {
	blk   *algebra.Block
	cfg   flowsheet.StateBlockConfig
	basis flowsheet.FlowBasis

	TestVar, PressureVar *algebra.IndexedVar

	// Derived is only created when Properties.WithConstraints is set.
	Derived           *algebra.IndexedVar
	eqDerived, eqNorm *algebra.IndexedConstraint

	// Checked is set by ModelCheck.
	Checked bool
}

func (sb *StateBlock) Block() *algebra.Block                  { return sb.blk }
func (sb *StateBlock) Config() flowsheet.StateBlockConfig     { return sb.cfg }
func (sb *StateBlock) MaterialFlowBasis() flowsheet.FlowBasis { return sb.basis }

func (sb *StateBlock) MaterialFlowTerm(t float64, _, _ string) algebra.Expr {
	return sb.TestVar.Get(t)
}

func (sb *StateBlock) MaterialDensityTerm(t float64, _, _ string) algebra.Expr {
	return sb.TestVar.Get(t)
}

func (sb *StateBlock) EnthalpyFlowTerm(t float64, _ string) algebra.Expr {
	return sb.TestVar.Get(t)
}

func (sb *StateBlock) EnthalpyDensityTerm(t float64, _ string) algebra.Expr {
	return sb.TestVar.Get(t)
}

func (sb *StateBlock) Temperature(t float64) algebra.Expr { return algebra.Zero }

func (sb *StateBlock) Pressure(t float64) algebra.Expr { return sb.PressureVar.Get(t) }

func (sb *StateBlock) StateVars() []*algebra.IndexedVar {
	return []*algebra.IndexedVar{sb.TestVar, sb.PressureVar}
}

// EquilibriumConstraints implements flowsheet.Flasher.
func (sb *StateBlock) EquilibriumConstraints() []*algebra.IndexedConstraint {
	if sb.eqDerived == nil {
		return nil
	}
	return []*algebra.IndexedConstraint{sb.eqDerived}
}

// NormalizationConstraints implements flowsheet.Normalizer.
func (sb *StateBlock) NormalizationConstraints() []*algebra.IndexedConstraint {
	if sb.eqNorm == nil {
		return nil
	}
	return []*algebra.IndexedConstraint{sb.eqNorm}
}

// ModelCheck implements flowsheet.ModelChecker.
func (sb *StateBlock) ModelCheck(logrus.FieldLogger) { sb.Checked = true }

// Reactions is a reaction package with rate reactions r1 and r2 and
// equilibrium reactions e1 and e2. Every stoichiometric coefficient is
// one.
type Reactions struct {
	Props *Properties

	RateList        []string
	EquilibriumList []string

	// Basis is the reaction rate basis of new reaction blocks.
	Basis flowsheet.FlowBasis

	// DH holds the heats of reaction.
	DH map[string]float64

	// RefuseEquilibrium makes NewReactionBlock fail when HasEquilibrium
	// is set.
	RefuseEquilibrium bool

	ReactionBlocks []*ReactionBlock
}

// NewReactions returns the default test reaction package.
func NewReactions(props *Properties) *Reactions {
	return &Reactions{
		Props:           props,
		RateList:        []string{"r1", "r2"},
		EquilibriumList: []string{"e1", "e2"},
		Basis:           flowsheet.Molar,
		DH:              map[string]float64{"r1": 10, "r2": 20, "e1": 30, "e2": 40},
	}
}

func (r *Reactions) RateReactions() ([]string, bool) {
	return r.RateList, r.RateList != nil
}

func (r *Reactions) EquilibriumReactions() ([]string, bool) {
	return r.EquilibriumList, r.EquilibriumList != nil
}

func (r *Reactions) RateStoichiometry(rxn, phase, component string) float64 {
	return r.stoich(r.RateList, rxn)
}

func (r *Reactions) EquilibriumStoichiometry(rxn, phase, component string) float64 {
	return r.stoich(r.EquilibriumList, rxn)
}

func (r *Reactions) stoich(idx []string, rxn string) float64 {
	for _, x := range idx {
		if x == rxn {
			return 1
		}
	}
	return 0
}

// NewReactionBlock implements flowsheet.ReactionParameters.
func (r *Reactions) NewReactionBlock(b *algebra.Block, state flowsheet.StateBlock, cfg flowsheet.ReactionBlockConfig) (flowsheet.ReactionBlock, error) {
	rb := &ReactionBlock{blk: b, cfg: cfg, pkg: r, State: state}
	var err error
	if rb.ReactionRate, err = b.NewVar("reaction_rate", algebra.Keys(cfg.Times, r.RateList), 0); err != nil {
		return nil, err
	}
	if cfg.HasEquilibrium && r.RefuseEquilibrium {
		return nil, ErrRefused
	}
	r.ReactionBlocks = append(r.ReactionBlocks, rb)
	return rb, nil
}

// ReactionBlock is the reaction block of Reactions.
type ReactionBlock struct {
	blk *algebra.Block
	cfg flowsheet.ReactionBlockConfig
	pkg *Reactions

	State        flowsheet.StateBlock
	ReactionRate *algebra.IndexedVar

	// Checked is set by ModelCheck.
	Checked bool
}

func (rb *ReactionBlock) Block() *algebra.Block                  { return rb.blk }
func (rb *ReactionBlock) Config() flowsheet.ReactionBlockConfig  { return rb.cfg }
func (rb *ReactionBlock) ReactionRateBasis() flowsheet.FlowBasis { return rb.pkg.Basis }

func (rb *ReactionBlock) HeatOfReaction(_ float64, rxn string) (algebra.Expr, bool) {
	dh, ok := rb.pkg.DH[rxn]
	if !ok {
		return nil, false
	}
	return algebra.Const(dh), true
}

// ModelCheck implements flowsheet.ModelChecker.
func (rb *ReactionBlock) ModelCheck(logrus.FieldLogger) { rb.Checked = true }
