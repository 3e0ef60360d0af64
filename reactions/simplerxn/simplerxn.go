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

// Package simplerxn is a table-driven reaction package. Reactions are
// declared with their stoichiometry and heat of reaction, and
// equilibrium reactions with an equilibrium constant on a mole fraction
// basis.
package simplerxn

import (
	"fmt"
	"math"

	"github.com/procsim/flowsheet"
	"github.com/procsim/flowsheet/algebra"
	"github.com/sirupsen/logrus"
)

// Reaction is one reaction in a single phase.
type Reaction struct {
	Name  string
	Phase string

	// Stoichiometry maps component names to coefficients. Products are
	// positive.
	Stoichiometry map[string]float64

	// DH is the molar heat of reaction in J/mol, if known.
	DH *float64

	// Keq is the equilibrium constant of an equilibrium reaction.
	Keq float64
}

// MoleFractioner is implemented by state blocks that expose phase mole
// fractions, which equilibrium constraints are written in.
type MoleFractioner interface {
	MoleFraction(t float64, phase, component string) algebra.Expr
}

// Package implements flowsheet.ReactionParameters.
type Package struct {
	Rate        []Reaction
	Equilibrium []Reaction

	// Basis is the basis of the reaction extents.
	Basis flowsheet.FlowBasis

	props flowsheet.PropertyParameters
}

// New checks that every reaction refers to phases and components of
// props.
func New(props flowsheet.PropertyParameters, p *Package) (*Package, error) {
	phases := make(map[string]bool)
	for _, ph := range props.Phases() {
		phases[ph] = true
	}
	comps := make(map[string]bool)
	for _, c := range props.Components() {
		comps[c] = true
	}
	names := make(map[string]bool)
	for _, set := range [][]Reaction{p.Rate, p.Equilibrium} {
		for _, r := range set {
			if r.Name == "" {
				return nil, fmt.Errorf("simplerxn: unnamed reaction")
			}
			if names[r.Name] {
				return nil, fmt.Errorf("simplerxn: duplicate reaction %q", r.Name)
			}
			names[r.Name] = true
			if !phases[r.Phase] {
				return nil, fmt.Errorf("simplerxn: reaction %s: invalid phase %q", r.Name, r.Phase)
			}
			for c := range r.Stoichiometry {
				if !comps[c] {
					return nil, fmt.Errorf("simplerxn: reaction %s: invalid component %q", r.Name, c)
				}
			}
		}
	}
	for _, r := range p.Equilibrium {
		if r.Keq <= 0 {
			return nil, fmt.Errorf("simplerxn: reaction %s: equilibrium constant must be positive", r.Name)
		}
	}
	p.props = props
	return p, nil
}

func reactionNames(rs []Reaction) ([]string, bool) {
	if rs == nil {
		return nil, false
	}
	o := make([]string, len(rs))
	for i, r := range rs {
		o[i] = r.Name
	}
	return o, true
}

func (p *Package) RateReactions() ([]string, bool)        { return reactionNames(p.Rate) }
func (p *Package) EquilibriumReactions() ([]string, bool) { return reactionNames(p.Equilibrium) }

func find(rs []Reaction, name string) (Reaction, bool) {
	for _, r := range rs {
		if r.Name == name {
			return r, true
		}
	}
	return Reaction{}, false
}

func stoichiometry(rs []Reaction, rxn, phase, component string) float64 {
	r, ok := find(rs, rxn)
	if !ok || r.Phase != phase {
		return 0
	}
	return r.Stoichiometry[component]
}

func (p *Package) RateStoichiometry(rxn, phase, component string) float64 {
	return stoichiometry(p.Rate, rxn, phase, component)
}

func (p *Package) EquilibriumStoichiometry(rxn, phase, component string) float64 {
	return stoichiometry(p.Equilibrium, rxn, phase, component)
}

// ReactionBlock holds the reaction properties at the conditions of a
// state block.
type ReactionBlock struct {
	blk   *algebra.Block
	cfg   flowsheet.ReactionBlockConfig
	pkg   *Package
	state flowsheet.StateBlock

	// EquilibriumConstraint is nil unless the block was built with
	// HasEquilibrium.
	EquilibriumConstraint *algebra.IndexedConstraint
}

// NewReactionBlock implements flowsheet.ReactionParameters.
func (p *Package) NewReactionBlock(b *algebra.Block, state flowsheet.StateBlock, cfg flowsheet.ReactionBlockConfig) (flowsheet.ReactionBlock, error) {
	rb := &ReactionBlock{blk: b, cfg: cfg, pkg: p, state: state}
	if !cfg.HasEquilibrium || len(p.Equilibrium) == 0 {
		return rb, nil
	}
	mf, ok := state.(MoleFractioner)
	if !ok {
		return nil, &flowsheet.Error{
			Kind:  flowsheet.ErrPropertyNotSupported,
			Block: b.FullName(),
			Msg:   "equilibrium reactions require a state block that provides phase mole fractions",
		}
	}
	names, _ := p.EquilibriumReactions()
	// Σ ν ln(x) = ln(Keq)
	rb.EquilibriumConstraint = algebra.NewIndexedConstraint("equilibrium_constraint",
		algebra.Keys(cfg.Times, names),
		func(k algebra.Index) (algebra.Expr, algebra.Expr) {
			r, _ := find(p.Equilibrium, k.A)
			var terms []algebra.Expr
			for _, c := range p.props.Components() {
				nu := r.Stoichiometry[c]
				if nu == 0 {
					continue
				}
				terms = append(terms, algebra.Scale(nu, algebra.Log(mf.MoleFraction(k.Time, r.Phase, c))))
			}
			return algebra.Sum(terms...), algebra.Const(math.Log(r.Keq))
		})
	if err := b.AddConstraint(rb.EquilibriumConstraint); err != nil {
		return nil, err
	}
	return rb, nil
}

func (rb *ReactionBlock) Block() *algebra.Block                  { return rb.blk }
func (rb *ReactionBlock) Config() flowsheet.ReactionBlockConfig  { return rb.cfg }
func (rb *ReactionBlock) ReactionRateBasis() flowsheet.FlowBasis { return rb.pkg.Basis }

// HeatOfReaction returns the declared heat of reaction.
func (rb *ReactionBlock) HeatOfReaction(_ float64, rxn string) (algebra.Expr, bool) {
	r, ok := find(rb.pkg.Rate, rxn)
	if !ok {
		r, ok = find(rb.pkg.Equilibrium, rxn)
	}
	if !ok || r.DH == nil {
		return nil, false
	}
	return algebra.Const(*r.DH), true
}

// ModelCheck logs equilibrium constraints that can not be evaluated
// because a participating mole fraction is not positive.
func (rb *ReactionBlock) ModelCheck(log logrus.FieldLogger) {
	if rb.EquilibriumConstraint == nil {
		return
	}
	for _, k := range rb.EquilibriumConstraint.Keys() {
		if r := rb.EquilibriumConstraint.At(k).Residual(); math.IsNaN(r) || math.IsInf(r, 0) {
			log.WithFields(logrus.Fields{
				"block":    rb.blk.FullName(),
				"reaction": k.A,
				"time":     k.Time,
			}).Warn("equilibrium constraint is undefined at the current mole fractions")
		}
	}
}
