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

package flowsheetutil

import (
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/procsim/flowsheet"
	"github.com/procsim/flowsheet/algebra"
	"github.com/procsim/flowsheet/properties/idealvle"
	"github.com/procsim/flowsheet/reactions/simplerxn"
	"github.com/procsim/flowsheet/unitmodels"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// CaseConfig is the contents of a case file.
type CaseConfig struct {
	// Name is the name of the flowsheet.
	Name string

	// Dynamic selects a dynamic flowsheet. TimeSet lists its time
	// points.
	Dynamic bool
	TimeSet []float64

	Properties PropertiesConfig
	Reactions  ReactionsConfig

	// Model is either "control_volume" (the default) or
	// "pressure_changer".
	Model string

	ControlVolume   ControlVolumeCase
	PressureChanger PressureChangerCase

	// Inlet holds the inlet conditions, keyed by state variable name.
	Inlet map[string]interface{}

	// Fix holds values of unit variables, such as heat or deltaP, that
	// are fixed before solving.
	Fix map[string]interface{}
}

// PropertiesConfig describes an ideal VLE property package.
type PropertiesConfig struct {
	Phases             []string
	Components         []ComponentConfig
	Cp                 map[string]float64
	HeatOfVaporization float64
	LiquidDensity      float64
}

// ComponentConfig holds the pure-component data of one component.
type ComponentConfig struct {
	Name string

	// Antoine holds the coefficients A, B and C.
	Antoine [3]float64

	// MW is the molecular weight in kg/mol.
	MW float64

	Elements map[string]float64
}

// ReactionsConfig describes a table-driven reaction package.
type ReactionsConfig struct {
	// Basis is "molar" (the default), "mass" or "other".
	Basis       string
	Rate        []ReactionConfig
	Equilibrium []ReactionConfig
}

// ReactionConfig describes one reaction.
type ReactionConfig struct {
	Name          string
	Phase         string
	Stoichiometry map[string]float64
	DH            *float64
	Keq           float64
}

// ControlVolumeCase holds the balance selections of a control volume.
type ControlVolumeCase struct {
	Name      string
	HasHoldup *bool

	// The balance types are named as printed by their String methods,
	// e.g. "componentPhase", "enthalpyTotal" and "pressureTotal".
	MaterialBalance string
	EnergyBalance   string
	MomentumBalance string

	HasPhaseEquilibrium     bool
	HasRateReactions        bool
	HasEquilibriumReactions bool
	HasMassTransfer         bool
	HasHeatOfReaction       bool
	HasHeatTransfer         bool
	HasWorkTransfer         bool
	HasPressureChange       bool

	CustomTerms CustomTerms
}

// CustomTerms holds caller-supplied balance terms as expressions. The
// variable t is the time; T_in, T_out, P_in and P_out are the inlet and
// outlet temperatures and pressures.
type CustomTerms struct {
	// Molar maps phase and then component to a term of the material
	// balances.
	Molar    map[string]map[string]string
	Energy   string
	Pressure string
}

// PressureChangerCase holds the options of a pressure changer.
type PressureChangerCase struct {
	Name                    string
	ThermodynamicAssumption string
	Expander                bool
	HasPhaseEquilibrium     bool

	// Balance types as in ControlVolumeCase.
	MaterialBalance string
	EnergyBalance   string
	MomentumBalance string
}

// LoadCase reads a case file.
func LoadCase(filename string) (*CaseConfig, error) {
	c := new(CaseConfig)
	if _, err := toml.DecodeFile(os.ExpandEnv(filename), c); err != nil {
		return nil, fmt.Errorf("flowsheetutil: reading case file: %v", err)
	}
	return c, nil
}

// PropertyPackage builds the property package of the case.
func (c *CaseConfig) PropertyPackage() (*idealvle.Parameters, error) {
	p := &idealvle.Parameters{
		PhaseList:          c.Properties.Phases,
		Cp:                 c.Properties.Cp,
		HeatOfVaporization: c.Properties.HeatOfVaporization,
		LiquidDensity:      c.Properties.LiquidDensity,
	}
	for _, cc := range c.Properties.Components {
		comp := idealvle.Component{
			Name:     cc.Name,
			Antoine:  idealvle.Antoine{A: cc.Antoine[0], B: cc.Antoine[1], C: cc.Antoine[2]},
			Elements: cc.Elements,
		}
		if cc.MW > 0 {
			comp.MW = flowsheet.MolecularWeight(cc.MW)
		}
		p.ComponentData = append(p.ComponentData, comp)
	}
	return idealvle.New(p)
}

// ReactionPackage builds the reaction package of the case. It returns
// nil if the case has no reactions.
func (c *CaseConfig) ReactionPackage(props flowsheet.PropertyParameters) (*simplerxn.Package, error) {
	r := c.Reactions
	if len(r.Rate) == 0 && len(r.Equilibrium) == 0 {
		return nil, nil
	}
	basis, err := parseBasis(r.Basis)
	if err != nil {
		return nil, err
	}
	p := &simplerxn.Package{Basis: basis}
	conv := func(rcs []ReactionConfig) []simplerxn.Reaction {
		o := make([]simplerxn.Reaction, len(rcs))
		for i, rc := range rcs {
			o[i] = simplerxn.Reaction{
				Name:          rc.Name,
				Phase:         rc.Phase,
				Stoichiometry: rc.Stoichiometry,
				DH:            rc.DH,
				Keq:           rc.Keq,
			}
		}
		return o
	}
	if len(r.Rate) > 0 {
		p.Rate = conv(r.Rate)
	}
	if len(r.Equilibrium) > 0 {
		p.Equilibrium = conv(r.Equilibrium)
	}
	return simplerxn.New(props, p)
}

func parseBasis(s string) (flowsheet.FlowBasis, error) {
	if s == "" {
		return flowsheet.Molar, nil
	}
	for _, b := range []flowsheet.FlowBasis{flowsheet.Molar, flowsheet.Mass, flowsheet.Other} {
		if b.String() == s {
			return b, nil
		}
	}
	return 0, fmt.Errorf("flowsheetutil: invalid flow basis %q", s)
}

func parseMaterialBalance(s string) (flowsheet.MaterialBalanceType, error) {
	if s == "" {
		return flowsheet.ComponentPhase, nil
	}
	for _, t := range []flowsheet.MaterialBalanceType{flowsheet.MaterialNone, flowsheet.ComponentPhase,
		flowsheet.ComponentTotal, flowsheet.ElementTotal, flowsheet.MaterialTotal} {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("flowsheetutil: invalid material balance type %q", s)
}

func parseEnergyBalance(s string) (flowsheet.EnergyBalanceType, error) {
	if s == "" {
		return flowsheet.EnthalpyTotal, nil
	}
	for _, t := range []flowsheet.EnergyBalanceType{flowsheet.EnergyNone, flowsheet.EnthalpyTotal,
		flowsheet.EnthalpyPhase, flowsheet.EnergyTotal, flowsheet.EnergyPhase} {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("flowsheetutil: invalid energy balance type %q", s)
}

func parseMomentumBalance(s string) (flowsheet.MomentumBalanceType, error) {
	if s == "" {
		return flowsheet.PressureTotal, nil
	}
	for _, t := range []flowsheet.MomentumBalanceType{flowsheet.MomentumNone, flowsheet.PressureTotal,
		flowsheet.PressurePhase, flowsheet.MomentumTotal, flowsheet.MomentumPhase} {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("flowsheetutil: invalid momentum balance type %q", s)
}

// Model is a flowsheet built from a case file.
type Model struct {
	Case      *CaseConfig
	Flowsheet *flowsheet.Flowsheet
	CV        *flowsheet.ControlVolume

	// Unit is only set for pressure changer cases.
	Unit *unitmodels.PressureChanger

	Inlet, Outlet *flowsheet.Port
}

// Build creates the flowsheet described by c.
func (c *CaseConfig) Build(log logrus.FieldLogger) (*Model, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	props, err := c.PropertyPackage()
	if err != nil {
		return nil, err
	}
	fs, err := flowsheet.New(flowsheet.Config{
		Name:    c.Name,
		Dynamic: flowsheet.Bool(c.Dynamic),
		TimeSet: c.TimeSet,
		Log:     log,
	})
	if err != nil {
		return nil, err
	}
	m := &Model{Case: c, Flowsheet: fs}
	switch c.Model {
	case "", "control_volume":
		err = m.buildControlVolume(props, log)
	case "pressure_changer":
		err = m.buildPressureChanger(props, log)
	default:
		err = fmt.Errorf("flowsheetutil: invalid model %q", c.Model)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Model) buildControlVolume(props *idealvle.Parameters, log logrus.FieldLogger) error {
	c := m.Case
	cc := c.ControlVolume
	cfg := flowsheet.ControlVolumeConfig{
		Name:            cc.Name,
		HasHoldup:       cc.HasHoldup,
		PropertyPackage: props,
		Log:             log,
	}
	if cfg.Name == "" {
		cfg.Name = "unit"
	}
	rxns, err := c.ReactionPackage(props)
	if err != nil {
		return err
	}
	if rxns != nil {
		cfg.ReactionPackage = rxns
	}
	mbType, err := parseMaterialBalance(cc.MaterialBalance)
	if err != nil {
		return err
	}
	ebType, err := parseEnergyBalance(cc.EnergyBalance)
	if err != nil {
		return err
	}
	pbType, err := parseMomentumBalance(cc.MomentumBalance)
	if err != nil {
		return err
	}

	cv, err := m.Flowsheet.NewControlVolume(cfg)
	if err != nil {
		return err
	}
	m.CV = cv
	if cv.HasHoldup {
		if err := cv.AddGeometry(); err != nil {
			return err
		}
	}
	if err := cv.AddStateBlocks(flowsheet.StateBlockOptions{
		HasPhaseEquilibrium: flowsheet.Bool(cc.HasPhaseEquilibrium),
	}); err != nil {
		return err
	}
	if rxns != nil {
		if err := cv.AddReactionBlocks(flowsheet.ReactionBlockOptions{
			HasEquilibrium: flowsheet.Bool(cc.HasEquilibriumReactions),
		}); err != nil {
			return err
		}
	}

	mo := flowsheet.MaterialBalanceOptions{
		HasRateReactions:        cc.HasRateReactions,
		HasEquilibriumReactions: cc.HasEquilibriumReactions,
		HasPhaseEquilibrium:     cc.HasPhaseEquilibrium,
		HasMassTransfer:         cc.HasMassTransfer,
	}
	if len(cc.CustomTerms.Molar) > 0 {
		if mo.CustomMolarTerm, err = m.materialTerm(cc.CustomTerms.Molar); err != nil {
			return err
		}
	}
	if _, err := cv.AddMaterialBalances(mbType, mo); err != nil {
		return err
	}

	eo := flowsheet.EnergyBalanceOptions{
		HasHeatOfReaction: cc.HasHeatOfReaction,
		HasHeatTransfer:   cc.HasHeatTransfer,
		HasWorkTransfer:   cc.HasWorkTransfer,
	}
	if eo.CustomTerm, err = m.timeTerm(cc.CustomTerms.Energy); err != nil {
		return err
	}
	if _, err := cv.AddEnergyBalances(ebType, eo); err != nil {
		return err
	}

	po := flowsheet.MomentumBalanceOptions{HasPressureChange: cc.HasPressureChange}
	if po.CustomTerm, err = m.timeTerm(cc.CustomTerms.Pressure); err != nil {
		return err
	}
	if _, err := cv.AddMomentumBalances(pbType, po); err != nil {
		return err
	}

	if m.Inlet, err = cv.AddInletPort(); err != nil {
		return err
	}
	m.Outlet, err = cv.AddOutletPort()
	return err
}

func (m *Model) buildPressureChanger(props *idealvle.Parameters, log logrus.FieldLogger) error {
	pc := m.Case.PressureChanger
	a := unitmodels.Isentropic
	if pc.ThermodynamicAssumption != "" {
		var err error
		if a, err = unitmodels.ParseThermodynamicAssumption(pc.ThermodynamicAssumption); err != nil {
			return err
		}
	}
	mbType, err := parseMaterialBalance(pc.MaterialBalance)
	if err != nil {
		return err
	}
	ebType, err := parseEnergyBalance(pc.EnergyBalance)
	if err != nil {
		return err
	}
	pbType, err := parseMomentumBalance(pc.MomentumBalance)
	if err != nil {
		return err
	}
	u, err := unitmodels.NewPressureChanger(m.Flowsheet, unitmodels.PressureChangerConfig{
		Name:                    pc.Name,
		PropertyPackage:         props,
		MaterialBalanceType:     &mbType,
		EnergyBalanceType:       &ebType,
		MomentumBalanceType:     &pbType,
		HasPhaseEquilibrium:     pc.HasPhaseEquilibrium,
		Expander:                pc.Expander,
		ThermodynamicAssumption: a,
		Log:                     log,
	})
	if err != nil {
		return err
	}
	m.Unit = u
	m.CV = u.CV
	m.Inlet, m.Outlet = u.Inlet, u.Outlet
	return nil
}

// bindings returns the variables available to custom term expressions
// at time t.
func (m *Model) bindings(t float64) map[string]algebra.Expr {
	b := map[string]algebra.Expr{"t": algebra.Const(t)}
	if m.CV.PropertiesIn != nil {
		b["T_in"] = m.CV.PropertiesIn.Temperature(t)
		b["P_in"] = m.CV.PropertiesIn.Pressure(t)
		b["T_out"] = m.CV.PropertiesOut.Temperature(t)
		b["P_out"] = m.CV.PropertiesOut.Pressure(t)
	}
	return b
}

// timeTerm parses src at every time point. An empty src gives no term.
func (m *Model) timeTerm(src string) (flowsheet.TimeTerm, error) {
	if src == "" {
		return nil, nil
	}
	terms := make(map[float64]algebra.Expr)
	for _, t := range m.CV.Time {
		e, err := algebra.Parse(src, m.bindings(t))
		if err != nil {
			return nil, fmt.Errorf("flowsheetutil: custom term: %v", err)
		}
		terms[t] = e
	}
	return func(t float64) algebra.Expr { return terms[t] }, nil
}

func (m *Model) materialTerm(src map[string]map[string]string) (flowsheet.MaterialTerm, error) {
	type pj struct{ p, j string }
	terms := make(map[float64]map[pj]algebra.Expr)
	for _, t := range m.CV.Time {
		terms[t] = make(map[pj]algebra.Expr)
		for p, comps := range src {
			for j, s := range comps {
				e, err := algebra.Parse(s, m.bindings(t))
				if err != nil {
					return nil, fmt.Errorf("flowsheetutil: custom term for %s %s: %v", p, j, err)
				}
				terms[t][pj{p, j}] = e
			}
		}
	}
	return func(t float64, phase, component string) algebra.Expr {
		return terms[t][pj{phase, component}]
	}, nil
}

// FixSpecifications fixes the unit variables listed in the Fix table of
// the case. A number applies to every member of a variable family and a
// table applies per label, nested once more for families with two
// labels.
func (m *Model) FixSpecifications() error {
	names := make([]string, 0, len(m.Case.Fix))
	for n := range m.Case.Fix {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, name := range names {
		iv, ok := m.unitVar(name)
		if !ok {
			return fmt.Errorf("flowsheetutil: no unit variable named %q", name)
		}
		raw := m.Case.Fix[name]
		if f, err := cast.ToFloat64E(raw); err == nil {
			iv.Each(func(_ algebra.Index, v *algebra.Var) { v.Fix(f) })
			continue
		}
		vals, err := cast.ToStringMapE(raw)
		if err != nil {
			return fmt.Errorf("flowsheetutil: value for %s must be a number or a table: %v", name, err)
		}
		for _, k := range iv.Keys() {
			raw, ok := vals[k.A]
			if !ok {
				continue
			}
			if k.B != "" {
				inner, err := cast.ToStringMapE(raw)
				if err != nil {
					return fmt.Errorf("flowsheetutil: value for %s[%s] must be a table: %v", name, k.A, err)
				}
				if raw, ok = inner[k.B]; !ok {
					continue
				}
			}
			f, err := cast.ToFloat64E(raw)
			if err != nil {
				return fmt.Errorf("flowsheetutil: value for %s[%s]: %v", name, k.A, err)
			}
			iv.At(k).Fix(f)
		}
	}
	return nil
}

func (m *Model) unitVar(name string) (*algebra.IndexedVar, bool) {
	if m.Unit != nil {
		if iv, ok := m.Unit.Block.Var(name); ok {
			return iv, true
		}
	}
	return m.CV.Block.Var(name)
}
