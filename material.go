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

// MaterialBalanceType selects the material balances written by
// AddMaterialBalances.
type MaterialBalanceType int

// These are the material balance types. MaterialTotal is recognized but
// not supported.
const (
	MaterialNone MaterialBalanceType = iota
	ComponentPhase
	ComponentTotal
	ElementTotal
	MaterialTotal
)

func (t MaterialBalanceType) String() string {
	switch t {
	case MaterialNone:
		return "none"
	case ComponentPhase:
		return "componentPhase"
	case ComponentTotal:
		return "componentTotal"
	case ElementTotal:
		return "elementTotal"
	case MaterialTotal:
		return "total"
	default:
		return fmt.Sprintf("MaterialBalanceType(%d)", int(t))
	}
}

// MaterialTerm is a caller-supplied term of a component balance. phase
// is empty for total component balances. Returning nil adds nothing.
type MaterialTerm func(t float64, phase, component string) algebra.Expr

// ElementTerm is a caller-supplied term of an element balance.
type ElementTerm func(t float64, element string) algebra.Expr

// TimeTerm is a caller-supplied term of an enthalpy or pressure balance.
type TimeTerm func(t float64) algebra.Expr

// MaterialBalanceOptions holds the feature flags and custom terms of a
// material balance. Custom terms are added to, never substituted for,
// the terms the flags create.
type MaterialBalanceOptions struct {
	HasRateReactions        bool
	HasEquilibriumReactions bool
	HasPhaseEquilibrium     bool

	// HasMassTransfer adds a free mass transfer term. Positive values
	// are into the control volume.
	HasMassTransfer bool

	// CustomMolarTerm is on a molar basis and CustomMassTerm on a mass
	// basis; both are converted to the basis of the balance. They may
	// only be used with component balances.
	CustomMolarTerm MaterialTerm
	CustomMassTerm  MaterialTerm

	// CustomElementalTerm may only be used with element balances.
	CustomElementalTerm ElementTerm
}

// AddMaterialBalances writes material balances of the given type. It
// returns nil and no error for MaterialNone.
func (cv *ControlVolume) AddMaterialBalances(typ MaterialBalanceType, o MaterialBalanceOptions) (*algebra.IndexedConstraint, error) {
	switch typ {
	case MaterialNone:
		return nil, nil
	case ComponentPhase:
		return cv.AddPhaseComponentBalances(o)
	case ComponentTotal:
		return cv.AddTotalComponentBalances(o)
	case ElementTotal:
		return cv.AddTotalElementBalances(o)
	case MaterialTotal:
		return cv.AddTotalMaterialBalances(o)
	default:
		return nil, cv.errorf(ErrConfiguration, "unrecognized material balance type %v", typ)
	}
}

// AddPhaseComponentBalances writes one material balance per time, phase
// and component, material_balances[t,p,j].
func (cv *ControlVolume) AddPhaseComponentBalances(o MaterialBalanceOptions) (*algebra.IndexedConstraint, error) {
	return cv.addComponentBalances(o, true)
}

// AddTotalComponentBalances writes one material balance per time and
// component, material_balances[t,j], summed over phases.
func (cv *ControlVolume) AddTotalComponentBalances(o MaterialBalanceOptions) (*algebra.IndexedConstraint, error) {
	return cv.addComponentBalances(o, false)
}

// AddTotalMaterialBalances always fails with ErrBalanceTypeNotSupported.
func (cv *ControlVolume) AddTotalMaterialBalances(MaterialBalanceOptions) (*algebra.IndexedConstraint, error) {
	return nil, cv.errorf(ErrBalanceTypeNotSupported, "total material balances are not supported")
}

// checkBalance returns an error if balances of the named category can
// not be added.
func (cv *ControlVolume) checkBalance(what string, built, holdup bool) error {
	if cv.PropertiesOut == nil {
		return cv.errorf(ErrConfiguration, "%s balances require state blocks; call AddStateBlocks first", what)
	}
	if built {
		return cv.errorf(ErrConfiguration, "%s balances have already been added", what)
	}
	if holdup && cv.HasHoldup && cv.Volume == nil {
		return cv.errorf(ErrConfiguration,
			"%s balances with holdup require geometry; call AddGeometry first", what)
	}
	return nil
}

// conversions returns per-component basis conversion factors.
func (cv *ControlVolume) conversions(what string, from, to FlowBasis) (map[string]float64, error) {
	o := make(map[string]float64)
	for _, j := range cv.props.Components() {
		f, err := ConversionFactor(cv.props, j, from, to)
		if err != nil {
			if e, ok := err.(*Error); ok {
				e.Block = cv.Name()
				e.Msg = what + ": " + e.Msg
			}
			return nil, err
		}
		o[j] = f
	}
	return o, nil
}

// materialPlan holds everything a component balance needs that can fail
// to resolve. It is filled in before anything is added to the model.
type materialPlan struct {
	phases, comps []string
	basis         FlowBasis

	inConv, outConv map[string]float64

	rate, equil []string
	rxnConv     map[string]float64

	phaseEq []PhaseEquilibrium

	molarConv, massConv map[string]float64
}

func (cv *ControlVolume) planComponentBalances(o MaterialBalanceOptions, byPhase bool) (*materialPlan, error) {
	if o.CustomElementalTerm != nil {
		return nil, cv.errorf(ErrConfiguration, "custom elemental terms can only be used with element balances")
	}
	p := &materialPlan{
		phases: cv.props.Phases(),
		comps:  cv.props.Components(),
		basis:  cv.PropertiesOut.MaterialFlowBasis(),
	}
	var err error
	if p.inConv, err = cv.conversions("inlet flow", cv.PropertiesIn.MaterialFlowBasis(), p.basis); err != nil {
		return nil, err
	}
	if p.outConv, err = cv.conversions("outlet flow", p.basis, p.basis); err != nil {
		return nil, err
	}

	if o.HasRateReactions {
		if cv.Reactions == nil {
			return nil, cv.errorf(ErrConfiguration,
				"rate reactions require a reaction block; specify a reaction package and call AddReactionBlocks")
		}
		idx, ok := cv.rxns.RateReactions()
		if !ok || len(idx) == 0 {
			return nil, cv.errorf(ErrPropertyNotSupported,
				"rate reactions were requested but the reaction package does not declare any")
		}
		p.rate = idx
	}
	if o.HasEquilibriumReactions {
		if cv.Reactions == nil {
			return nil, cv.errorf(ErrConfiguration,
				"equilibrium reactions require a reaction block; specify a reaction package and call AddReactionBlocks")
		}
		if !cv.Reactions.Config().HasEquilibrium {
			return nil, cv.errorf(ErrConfiguration,
				"equilibrium reactions were requested but the reaction block was built without equilibrium")
		}
		idx, ok := cv.rxns.EquilibriumReactions()
		if !ok || len(idx) == 0 {
			return nil, cv.errorf(ErrPropertyNotSupported,
				"equilibrium reactions were requested but the reaction package does not declare any")
		}
		p.equil = idx
	}
	if len(p.rate) > 0 || len(p.equil) > 0 {
		if p.rxnConv, err = cv.conversions("reaction generation", cv.Reactions.ReactionRateBasis(), p.basis); err != nil {
			return nil, err
		}
	}

	if o.HasPhaseEquilibrium {
		if !cv.PropertiesOut.Config().HasPhaseEquilibrium {
			return nil, cv.errorf(ErrConfiguration,
				"phase equilibrium was requested but the state blocks were built without it")
		}
		pe, ok := cv.props.PhaseEquilibria()
		if !ok || len(pe) == 0 {
			return nil, cv.errorf(ErrPropertyNotSupported,
				"phase equilibrium was requested but the property package does not declare a phase equilibrium index")
		}
		if byPhase {
			p.phaseEq = pe
		}
	}

	if o.CustomMolarTerm != nil {
		if p.molarConv, err = cv.conversions("custom molar term", Molar, p.basis); err != nil {
			return nil, err
		}
	}
	if o.CustomMassTerm != nil {
		if p.massConv, err = cv.conversions("custom mass term", Mass, p.basis); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// addGeneration adds the extent, generation and stoichiometry components
// for one kind of reaction.
func (cv *ControlVolume) addGeneration(kind string, idx []string, keys []algebra.Index,
	stoich func(r, p, j string) float64) (*algebra.IndexedVar, error) {
	extent, err := cv.getOrCreateVar(kind+"_reaction_extent", "Extent of "+kind+" reactions",
		algebra.Keys(cv.Time, idx), 0)
	if err != nil {
		return nil, err
	}
	gen, err := cv.newVar(kind+"_reaction_generation",
		"Amount of component generated by "+kind+" reactions", keys, 0)
	if err != nil {
		return nil, err
	}
	_, err = cv.newConstraint(kind+"_reaction_stoichiometry_constraint",
		"Generation of components by "+kind+" reactions", keys,
		func(k algebra.Index) (algebra.Expr, algebra.Expr) {
			terms := make([]algebra.Expr, 0, len(idx))
			for _, r := range idx {
				if nu := stoich(r, k.A, k.B); nu != 0 {
					terms = append(terms, algebra.Scale(nu, extent.Get(k.Time, r)))
				}
			}
			return gen.At(k), algebra.Sum(terms...)
		})
	if err != nil {
		return nil, err
	}
	return gen, nil
}

func (cv *ControlVolume) addComponentBalances(o MaterialBalanceOptions, byPhase bool) (*algebra.IndexedConstraint, error) {
	if err := cv.checkBalance("material", cv.material, true); err != nil {
		return nil, err
	}
	p, err := cv.planComponentBalances(o, byPhase)
	if err != nil {
		return nil, err
	}
	in, out := cv.PropertiesIn, cv.PropertiesOut
	pjKeys := algebra.Keys(cv.Time, p.phases, p.comps)

	var accum *algebra.IndexedVar
	if cv.HasHoldup {
		if err := cv.AddPhaseFractions(); err != nil {
			return nil, err
		}
		holdup, err := cv.newVar("material_holdup", "Material holdup in control volume", pjKeys, 0)
		if err != nil {
			return nil, err
		}
		_, err = cv.newConstraint("material_holdup_calculation", "Material holdup calculations", pjKeys,
			func(k algebra.Index) (algebra.Expr, algebra.Expr) {
				return holdup.At(k), algebra.Mul(cv.Volume.Get(k.Time),
					cv.PhaseFraction(k.Time, k.A), out.MaterialDensityTerm(k.Time, k.A, k.B))
			})
		if err != nil {
			return nil, err
		}
		if cv.Dynamic {
			if accum, err = cv.newAccumulation("material_accumulation",
				"Material accumulation in control volume", holdup); err != nil {
				return nil, err
			}
		}
	}

	var rateGen, equilGen *algebra.IndexedVar
	if len(p.rate) > 0 {
		if rateGen, err = cv.addGeneration("rate", p.rate, pjKeys, cv.rxns.RateStoichiometry); err != nil {
			return nil, err
		}
	}
	if len(p.equil) > 0 {
		if equilGen, err = cv.addGeneration("equilibrium", p.equil, pjKeys, cv.rxns.EquilibriumStoichiometry); err != nil {
			return nil, err
		}
	}

	var peGen *algebra.IndexedVar
	if len(p.phaseEq) > 0 {
		names := make([]string, len(p.phaseEq))
		for i, pe := range p.phaseEq {
			names[i] = pe.Name
		}
		if peGen, err = cv.newVar("phase_equilibrium_generation",
			"Amount of component transferred between phases by phase equilibrium",
			algebra.Keys(cv.Time, names), 0); err != nil {
			return nil, err
		}
	}

	var mt *algebra.IndexedVar
	if o.HasMassTransfer {
		if mt, err = cv.getOrCreateVar("mass_transfer_term",
			"Component material transfer into unit", pjKeys, 0); err != nil {
			return nil, err
		}
	}

	// phaseTerms returns the right hand side terms of phase ph.
	phaseTerms := func(t float64, ph, j string) []algebra.Expr {
		terms := []algebra.Expr{
			algebra.Scale(p.inConv[j], in.MaterialFlowTerm(t, ph, j)),
			algebra.Neg(algebra.Scale(p.outConv[j], out.MaterialFlowTerm(t, ph, j))),
		}
		if rateGen != nil {
			terms = append(terms, algebra.Scale(p.rxnConv[j], rateGen.Get(t, ph, j)))
		}
		if equilGen != nil {
			terms = append(terms, algebra.Scale(p.rxnConv[j], equilGen.Get(t, ph, j)))
		}
		for _, pe := range p.phaseEq {
			if pe.Component != j {
				continue
			}
			switch ph {
			case pe.From:
				terms = append(terms, algebra.Neg(peGen.Get(t, pe.Name)))
			case pe.To:
				terms = append(terms, peGen.Get(t, pe.Name))
			}
		}
		if mt != nil {
			terms = append(terms, mt.Get(t, ph, j))
		}
		return terms
	}
	custom := func(t float64, ph, j string) []algebra.Expr {
		var terms []algebra.Expr
		if o.CustomMolarTerm != nil {
			terms = append(terms, algebra.Scale(p.molarConv[j], o.CustomMolarTerm(t, ph, j)))
		}
		if o.CustomMassTerm != nil {
			terms = append(terms, algebra.Scale(p.massConv[j], o.CustomMassTerm(t, ph, j)))
		}
		return terms
	}

	var mb *algebra.IndexedConstraint
	if byPhase {
		mb, err = cv.newConstraint("material_balances", "Material balances", pjKeys,
			func(k algebra.Index) (algebra.Expr, algebra.Expr) {
				var lhs algebra.Expr = algebra.Zero
				if accum != nil {
					lhs = accum.At(k)
				}
				rhs := append(phaseTerms(k.Time, k.A, k.B), custom(k.Time, k.A, k.B)...)
				return lhs, algebra.Sum(rhs...)
			})
	} else {
		mb, err = cv.newConstraint("material_balances", "Material balances",
			algebra.Keys(cv.Time, p.comps),
			func(k algebra.Index) (algebra.Expr, algebra.Expr) {
				var lhs, rhs []algebra.Expr
				for _, ph := range p.phases {
					if accum != nil {
						lhs = append(lhs, accum.Get(k.Time, ph, k.A))
					}
					rhs = append(rhs, phaseTerms(k.Time, ph, k.A)...)
				}
				rhs = append(rhs, custom(k.Time, "", k.A)...)
				return algebra.Sum(lhs...), algebra.Sum(rhs...)
			})
	}
	if err != nil {
		return nil, err
	}
	cv.material = true
	cv.advance(BalancesAdded)
	cv.Log.WithFields(logrus.Fields{
		"by_phase":    byPhase,
		"constraints": mb.Len(),
	}).Debug("added component balances")
	return mb, nil
}

// AddTotalElementBalances writes one balance per time and element,
// element_balances[t,e]. Elements are conserved by reactions and phase
// changes, so requesting either is an ErrConfiguration.
func (cv *ControlVolume) AddTotalElementBalances(o MaterialBalanceOptions) (*algebra.IndexedConstraint, error) {
	switch {
	case o.HasRateReactions:
		return nil, cv.errorf(ErrConfiguration,
			"element balances do not support rate reactions; elements are conserved by reactions")
	case o.HasEquilibriumReactions:
		return nil, cv.errorf(ErrConfiguration,
			"element balances do not support equilibrium reactions; elements are conserved by reactions")
	case o.HasPhaseEquilibrium:
		return nil, cv.errorf(ErrConfiguration,
			"element balances do not support phase equilibrium; phase changes do not alter element totals")
	case o.CustomMolarTerm != nil || o.CustomMassTerm != nil:
		return nil, cv.errorf(ErrConfiguration,
			"element balances take a custom elemental term, not a custom molar or mass term")
	}
	if err := cv.checkBalance("material", cv.material, true); err != nil {
		return nil, err
	}
	elements, ok := cv.props.Elements()
	if !ok || len(elements) == 0 {
		return nil, cv.errorf(ErrPropertyNotSupported,
			"element balances require the property package to declare an element list")
	}
	inConv, err := cv.conversions("inlet flow", cv.PropertiesIn.MaterialFlowBasis(), Molar)
	if err != nil {
		return nil, err
	}
	outConv, err := cv.conversions("outlet flow", cv.PropertiesOut.MaterialFlowBasis(), Molar)
	if err != nil {
		return nil, err
	}

	phases, comps := cv.props.Phases(), cv.props.Components()
	peKeys := algebra.Keys(cv.Time, phases, elements)
	in, out := cv.PropertiesIn, cv.PropertiesOut

	project := func(k algebra.Index, f func(j string) algebra.Expr) algebra.Expr {
		terms := make([]algebra.Expr, 0, len(comps))
		for _, j := range comps {
			if n := cv.props.ElementComposition(j, k.B); n != 0 {
				terms = append(terms, algebra.Scale(n, f(j)))
			}
		}
		return algebra.Sum(terms...)
	}

	flowIn, err := cv.newExpression("elemental_flow_in", "Total elemental flow into control volume", peKeys,
		func(k algebra.Index) algebra.Expr {
			return project(k, func(j string) algebra.Expr {
				return algebra.Scale(inConv[j], in.MaterialFlowTerm(k.Time, k.A, j))
			})
		})
	if err != nil {
		return nil, err
	}
	flowOut, err := cv.newExpression("elemental_flow_out", "Total elemental flow out of control volume", peKeys,
		func(k algebra.Index) algebra.Expr {
			return project(k, func(j string) algebra.Expr {
				return algebra.Scale(outConv[j], out.MaterialFlowTerm(k.Time, k.A, j))
			})
		})
	if err != nil {
		return nil, err
	}

	var accum *algebra.IndexedVar
	if cv.HasHoldup {
		if err := cv.AddPhaseFractions(); err != nil {
			return nil, err
		}
		holdup, err := cv.newVar("element_holdup", "Elemental holdup in control volume", peKeys, 0)
		if err != nil {
			return nil, err
		}
		_, err = cv.newConstraint("element_holdup_calculation", "Elemental holdup calculations", peKeys,
			func(k algebra.Index) (algebra.Expr, algebra.Expr) {
				return holdup.At(k), algebra.Mul(cv.Volume.Get(k.Time), cv.PhaseFraction(k.Time, k.A),
					project(k, func(j string) algebra.Expr {
						return out.MaterialDensityTerm(k.Time, k.A, j)
					}))
			})
		if err != nil {
			return nil, err
		}
		if cv.Dynamic {
			if accum, err = cv.newAccumulation("element_accumulation",
				"Elemental accumulation in control volume", holdup); err != nil {
				return nil, err
			}
		}
	}

	var mt *algebra.IndexedVar
	if o.HasMassTransfer {
		if mt, err = cv.getOrCreateVar("elemental_mass_transfer_term",
			"Elemental material transfer into unit", algebra.Keys(cv.Time, elements), 0); err != nil {
			return nil, err
		}
	}

	eb, err := cv.newConstraint("element_balances", "Elemental material balances",
		algebra.Keys(cv.Time, elements),
		func(k algebra.Index) (algebra.Expr, algebra.Expr) {
			var lhs, rhs []algebra.Expr
			for _, ph := range phases {
				if accum != nil {
					lhs = append(lhs, accum.Get(k.Time, ph, k.A))
				}
				rhs = append(rhs, flowIn.Get(k.Time, ph, k.A), algebra.Neg(flowOut.Get(k.Time, ph, k.A)))
			}
			if mt != nil {
				rhs = append(rhs, mt.At(k))
			}
			if o.CustomElementalTerm != nil {
				rhs = append(rhs, o.CustomElementalTerm(k.Time, k.A))
			}
			return algebra.Sum(lhs...), algebra.Sum(rhs...)
		})
	if err != nil {
		return nil, err
	}
	cv.material = true
	cv.advance(BalancesAdded)
	cv.Log.WithField("constraints", eb.Len()).Debug("added element balances")
	return eb, nil
}
