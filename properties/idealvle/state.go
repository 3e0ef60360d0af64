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

package idealvle

import (
	"math"

	"github.com/procsim/flowsheet"
	"github.com/procsim/flowsheet/algebra"
	"github.com/sirupsen/logrus"
)

// StateBlock holds the state of an ideal mixture at every time point.
type StateBlock struct {
	blk *algebra.Block
	cfg flowsheet.StateBlockConfig
	p   *Parameters

	// State variables.
	FlowMol, MoleFrac, TemperatureVar, PressureVar *algebra.IndexedVar

	FlowMolPhase, MoleFracPhase *algebra.IndexedVar
	DensityMol                  *algebra.IndexedVar

	// VaporPressure is only created for two-phase packages.
	VaporPressure *algebra.IndexedVar

	eqTotal, eqComp, eqSumMolFrac, eqKeq, eqPVap, eqMolFracOut, eqDensity *algebra.IndexedConstraint
}

// NewStateBlock implements flowsheet.PropertyParameters.
func (p *Parameters) NewStateBlock(b *algebra.Block, cfg flowsheet.StateBlockConfig) (flowsheet.StateBlock, error) {
	if cfg.HasPhaseEquilibrium && !p.twoPhase() {
		return nil, &flowsheet.Error{
			Kind:  flowsheet.ErrConfiguration,
			Block: b.FullName(),
			Msg:   "phase equilibrium requires both liquid and vapour phases",
		}
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	sb := &StateBlock{blk: b, cfg: cfg, p: p}
	if err := sb.build(); err != nil {
		return nil, err
	}
	return sb, nil
}

func (sb *StateBlock) build() error {
	p := sb.p
	times := sb.cfg.Times
	nc := float64(len(p.components))
	tk := algebra.Keys(times)
	tj := algebra.Keys(times, p.components)
	tp := algebra.Keys(times, p.PhaseList)
	tpj := algebra.Keys(times, p.PhaseList, p.components)

	type varSpec struct {
		v            **algebra.IndexedVar
		name         string
		keys         []algebra.Index
		init         float64
		lower, upper float64
	}
	vars := []varSpec{
		{&sb.FlowMol, "flow_mol", tk, 1, 0, math.Inf(1)},
		{&sb.MoleFrac, "mole_frac", tj, 1 / nc, 0, 1},
		{&sb.TemperatureVar, "temperature", tk, 298.15, 0, math.Inf(1)},
		{&sb.PressureVar, "pressure", tk, 101325, 0, math.Inf(1)},
		{&sb.FlowMolPhase, "flow_mol_phase", tp, 1 / float64(len(p.PhaseList)), 0, math.Inf(1)},
		{&sb.MoleFracPhase, "mole_frac_phase", tpj, 1 / nc, 0, 1},
		{&sb.DensityMol, "density_mol", tp, 40, 0, math.Inf(1)},
	}
	if p.twoPhase() {
		vars = append(vars, varSpec{&sb.VaporPressure, "vapor_pressure", tj, 101325, 1, math.Inf(1)})
	}
	for _, v := range vars {
		iv, err := sb.blk.NewVar(v.name, v.keys, v.init)
		if err != nil {
			return err
		}
		iv.SetBounds(v.lower, v.upper)
		*v.v = iv
	}

	sb.eqTotal = algebra.NewIndexedConstraint("eq_total", tk, func(k algebra.Index) (algebra.Expr, algebra.Expr) {
		var phases []algebra.Expr
		for _, ph := range p.PhaseList {
			phases = append(phases, sb.FlowMolPhase.Get(k.Time, ph))
		}
		return algebra.Sum(phases...), sb.FlowMol.At(k)
	})
	sb.eqComp = algebra.NewIndexedConstraint("eq_comp", tj, func(k algebra.Index) (algebra.Expr, algebra.Expr) {
		var phases []algebra.Expr
		for _, ph := range p.PhaseList {
			phases = append(phases, sb.componentFlow(k.Time, ph, k.A))
		}
		return algebra.Mul(sb.FlowMol.Get(k.Time), sb.MoleFrac.At(k)), algebra.Sum(phases...)
	})
	cons := []*algebra.IndexedConstraint{sb.eqTotal, sb.eqComp}

	if p.twoPhase() {
		sb.eqSumMolFrac = algebra.NewIndexedConstraint("eq_sum_mol_frac", tk, func(k algebra.Index) (algebra.Expr, algebra.Expr) {
			var liq, vap []algebra.Expr
			for _, c := range p.components {
				liq = append(liq, sb.MoleFracPhase.Get(k.Time, Liq, c))
				vap = append(vap, sb.MoleFracPhase.Get(k.Time, Vap, c))
			}
			return algebra.Sum(liq...), algebra.Sum(vap...)
		})
		sb.eqKeq = algebra.NewIndexedConstraint("eq_Keq", tj, func(k algebra.Index) (algebra.Expr, algebra.Expr) {
			return algebra.Mul(sb.MoleFracPhase.Get(k.Time, Vap, k.A), sb.PressureVar.Get(k.Time)),
				algebra.Mul(sb.VaporPressure.At(k), sb.MoleFracPhase.Get(k.Time, Liq, k.A))
		})
		// Antoine equation, converted from log10(bar) to ln(Pa).
		sb.eqPVap = algebra.NewIndexedConstraint("eq_P_vap", tj, func(k algebra.Index) (algebra.Expr, algebra.Expr) {
			a := p.byName[k.A].Antoine
			return algebra.Log(sb.VaporPressure.At(k)),
				algebra.Sum(
					algebra.Const(math.Log(1e5)),
					algebra.Scale(math.Ln10, algebra.Sub(
						algebra.Const(a.A),
						algebra.Div(algebra.Const(a.B), algebra.Sum(sb.TemperatureVar.Get(k.Time), algebra.Const(a.C))),
					)),
				)
		})
		cons = append(cons, sb.eqSumMolFrac, sb.eqKeq, sb.eqPVap)
	}
	if !sb.cfg.DefinedState {
		sb.eqMolFracOut = algebra.NewIndexedConstraint("eq_mol_frac_out", tk, func(k algebra.Index) (algebra.Expr, algebra.Expr) {
			var x []algebra.Expr
			for _, c := range p.components {
				x = append(x, sb.MoleFrac.Get(k.Time, c))
			}
			return algebra.Sum(x...), algebra.Const(1)
		})
		cons = append(cons, sb.eqMolFracOut)
	}
	sb.eqDensity = algebra.NewIndexedConstraint("density_mol_calculation", tp, func(k algebra.Index) (algebra.Expr, algebra.Expr) {
		if k.A == Vap {
			return sb.PressureVar.Get(k.Time),
				algebra.Mul(sb.DensityMol.At(k), algebra.Const(GasConstant), sb.TemperatureVar.Get(k.Time))
		}
		return sb.DensityMol.At(k), algebra.Const(p.LiquidDensity)
	})
	cons = append(cons, sb.eqDensity)

	for _, c := range cons {
		if err := sb.blk.AddConstraint(c); err != nil {
			return err
		}
	}
	return nil
}

func (sb *StateBlock) componentFlow(t float64, phase, component string) algebra.Expr {
	return algebra.Mul(sb.FlowMolPhase.Get(t, phase), sb.MoleFracPhase.Get(t, phase, component))
}

func (sb *StateBlock) valid(phase, component string) bool {
	if !sb.p.hasPhase(phase) {
		return false
	}
	if component == "" {
		return true
	}
	_, ok := sb.p.byName[component]
	return ok
}

// molarEnthalpy is the enthalpy of one mole of phase relative to liquid
// at the reference temperature.
func (sb *StateBlock) molarEnthalpy(t float64, phase string) algebra.Expr {
	h := algebra.Scale(sb.p.Cp[phase], algebra.Sub(sb.TemperatureVar.Get(t), algebra.Const(ReferenceTemperature)))
	if phase == Vap {
		h = algebra.Sum(h, algebra.Const(sb.p.HeatOfVaporization))
	}
	return h
}

func (sb *StateBlock) Block() *algebra.Block                  { return sb.blk }
func (sb *StateBlock) Config() flowsheet.StateBlockConfig     { return sb.cfg }
func (sb *StateBlock) MaterialFlowBasis() flowsheet.FlowBasis { return flowsheet.Molar }

func (sb *StateBlock) MaterialFlowTerm(t float64, phase, component string) algebra.Expr {
	if !sb.valid(phase, component) {
		return algebra.Zero
	}
	return sb.componentFlow(t, phase, component)
}

func (sb *StateBlock) MaterialDensityTerm(t float64, phase, component string) algebra.Expr {
	if !sb.valid(phase, component) {
		return algebra.Zero
	}
	return algebra.Mul(sb.DensityMol.Get(t, phase), sb.MoleFracPhase.Get(t, phase, component))
}

func (sb *StateBlock) EnthalpyFlowTerm(t float64, phase string) algebra.Expr {
	if !sb.valid(phase, "") {
		return algebra.Zero
	}
	return algebra.Mul(sb.FlowMolPhase.Get(t, phase), sb.molarEnthalpy(t, phase))
}

func (sb *StateBlock) EnthalpyDensityTerm(t float64, phase string) algebra.Expr {
	if !sb.valid(phase, "") {
		return algebra.Zero
	}
	return algebra.Mul(sb.DensityMol.Get(t, phase), sb.molarEnthalpy(t, phase))
}

func (sb *StateBlock) Temperature(t float64) algebra.Expr { return sb.TemperatureVar.Get(t) }
func (sb *StateBlock) Pressure(t float64) algebra.Expr    { return sb.PressureVar.Get(t) }

// StateVars returns flow_mol, mole_frac, temperature and pressure.
func (sb *StateBlock) StateVars() []*algebra.IndexedVar {
	return []*algebra.IndexedVar{sb.FlowMol, sb.MoleFrac, sb.TemperatureVar, sb.PressureVar}
}

// EquilibriumConstraints returns the flash equations, which are
// relaxed during the first stage of initialization.
func (sb *StateBlock) EquilibriumConstraints() []*algebra.IndexedConstraint {
	if sb.eqKeq == nil {
		return nil
	}
	return []*algebra.IndexedConstraint{sb.eqKeq, sb.eqSumMolFrac}
}

// NormalizationConstraints returns eq_mol_frac_out if the block has one.
func (sb *StateBlock) NormalizationConstraints() []*algebra.IndexedConstraint {
	if sb.eqMolFracOut == nil {
		return nil
	}
	return []*algebra.IndexedConstraint{sb.eqMolFracOut}
}

// ModelCheck logs temperatures and pressures outside the package
// bounds.
func (sb *StateBlock) ModelCheck(log logrus.FieldLogger) {
	check := func(name string, iv *algebra.IndexedVar, bounds [2]float64) {
		iv.Each(func(k algebra.Index, v *algebra.Var) {
			fields := logrus.Fields{"block": sb.blk.FullName(), "time": k.Time, "value": v.Value}
			switch {
			case v.Value < bounds[0]:
				log.WithFields(fields).Errorf("%s set below lower bound %g", name, bounds[0])
			case v.Value > bounds[1]:
				log.WithFields(fields).Errorf("%s set above upper bound %g", name, bounds[1])
			}
		})
	}
	check("temperature", sb.TemperatureVar, sb.p.TemperatureBounds)
	check("pressure", sb.PressureVar, sb.p.PressureBounds)
}

// MoleFraction returns the mole fraction of component in phase.
func (sb *StateBlock) MoleFraction(t float64, phase, component string) algebra.Expr {
	if !sb.valid(phase, component) {
		return algebra.Zero
	}
	return sb.MoleFracPhase.Get(t, phase, component)
}

// ReferencePressure is the pressure at which the vapour entropy is
// evaluated relative to, in Pa.
const ReferencePressure = 101325

// VolumetricFlow returns the total volumetric flow in m³/s.
func (sb *StateBlock) VolumetricFlow(t float64) algebra.Expr {
	var terms []algebra.Expr
	for _, ph := range sb.p.PhaseList {
		terms = append(terms, algebra.Div(sb.FlowMolPhase.Get(t, ph), sb.DensityMol.Get(t, ph)))
	}
	return algebra.Sum(terms...)
}

// MolarEntropy returns the entropy of the mixture in J/(mol K),
// neglecting the entropy of mixing.
func (sb *StateBlock) MolarEntropy(t float64) algebra.Expr {
	T := sb.TemperatureVar.Get(t)
	var terms []algebra.Expr
	for _, ph := range sb.p.PhaseList {
		s := algebra.Scale(sb.p.Cp[ph], algebra.Log(algebra.Div(T, algebra.Const(ReferenceTemperature))))
		if ph == Vap {
			s = algebra.Sum(s,
				algebra.Const(sb.p.HeatOfVaporization/ReferenceTemperature),
				algebra.Scale(-GasConstant, algebra.Log(algebra.Div(sb.PressureVar.Get(t), algebra.Const(ReferencePressure)))),
			)
		}
		terms = append(terms, algebra.Mul(sb.FlowMolPhase.Get(t, ph), s))
	}
	return algebra.Div(algebra.Sum(terms...), sb.FlowMol.Get(t))
}
