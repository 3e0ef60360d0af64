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

// Package idealvle is a property package for ideal vapour-liquid
// equilibrium. Vapour pressures follow the Antoine equation, the vapour
// is an ideal gas and the liquid has a constant molar density.
//
// Units are SI: temperature in K, pressure in Pa, flows in mol/s,
// densities in mol/m³ and enthalpy flows in J/s.
package idealvle

import (
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/unit"
	"github.com/procsim/flowsheet"
)

// Phase names.
const (
	Liq = "Liq"
	Vap = "Vap"
)

// GasConstant is the molar gas constant in J/(mol K).
const GasConstant = 8.314462618

// ReferenceTemperature is the temperature at which the liquid enthalpy
// is zero, in K.
const ReferenceTemperature = 298.15

// Antoine holds the coefficients of the Antoine equation in the form
// log10(P/bar) = A - B/(T + C), with T in K.
type Antoine struct {
	A, B, C float64
}

// Pressure returns the vapour pressure in Pa at temperature t in K.
func (a Antoine) Pressure(t float64) float64 {
	return 1e5 * math.Pow(10, a.A-a.B/(t+a.C))
}

// Component holds the pure-component data of one component.
type Component struct {
	Name    string
	Antoine Antoine

	// MW is the molecular weight. It must have dimensions of
	// flowsheet.KilogramPerMole.
	MW *unit.Unit

	// Elements gives the number of atoms of each element in one
	// molecule.
	Elements map[string]float64
}

// Parameters is an ideal VLE property package. It implements
// flowsheet.PropertyParameters.
type Parameters struct {
	// PhaseList is the set of valid phases: Liq, Vap or both.
	PhaseList []string

	ComponentData []Component

	// Cp is the molar heat capacity of each phase in J/(mol K).
	Cp map[string]float64

	// HeatOfVaporization is added to the enthalpy of the vapour phase,
	// in J/mol.
	HeatOfVaporization float64

	// LiquidDensity is the molar density of the liquid in mol/m³.
	LiquidDensity float64

	// TemperatureBounds and PressureBounds are checked by ModelCheck.
	TemperatureBounds, PressureBounds [2]float64

	components []string
	byName     map[string]*Component
}

// New checks p and prepares it for use.
func New(p *Parameters) (*Parameters, error) {
	if len(p.PhaseList) == 0 || len(p.PhaseList) > 2 {
		return nil, fmt.Errorf("idealvle: need 1 or 2 phases but have %d", len(p.PhaseList))
	}
	for _, ph := range p.PhaseList {
		if ph != Liq && ph != Vap {
			return nil, fmt.Errorf("idealvle: invalid phase %q", ph)
		}
		if _, ok := p.Cp[ph]; !ok {
			return nil, fmt.Errorf("idealvle: missing heat capacity for phase %s", ph)
		}
	}
	if len(p.PhaseList) == 2 && p.PhaseList[0] == p.PhaseList[1] {
		return nil, fmt.Errorf("idealvle: duplicate phase %q", p.PhaseList[0])
	}
	if len(p.ComponentData) == 0 {
		return nil, fmt.Errorf("idealvle: no components")
	}
	if p.LiquidDensity <= 0 && p.hasPhase(Liq) {
		return nil, fmt.Errorf("idealvle: liquid density must be positive")
	}
	p.components = nil
	p.byName = make(map[string]*Component)
	for i, c := range p.ComponentData {
		if _, ok := p.byName[c.Name]; ok {
			return nil, fmt.Errorf("idealvle: duplicate component %q", c.Name)
		}
		if c.MW != nil {
			if err := c.MW.Check(flowsheet.KilogramPerMole); err != nil {
				return nil, fmt.Errorf("idealvle: molecular weight of %s: %v", c.Name, err)
			}
		}
		p.byName[c.Name] = &p.ComponentData[i]
		p.components = append(p.components, c.Name)
	}
	if p.TemperatureBounds == [2]float64{} {
		p.TemperatureBounds = [2]float64{200, 700}
	}
	if p.PressureBounds == [2]float64{} {
		p.PressureBounds = [2]float64{1e3, 1e7}
	}
	return p, nil
}

// MethanolWater returns a two-phase methanol-water package with NIST
// Antoine coefficients.
func MethanolWater() *Parameters {
	p, err := New(&Parameters{
		PhaseList: []string{Liq, Vap},
		ComponentData: []Component{
			{
				Name:     "methanol",
				Antoine:  Antoine{A: 5.20409, B: 1581.341, C: -33.50},
				MW:       flowsheet.MolecularWeight(0.03204),
				Elements: map[string]float64{"C": 1, "H": 4, "O": 1},
			},
			{
				Name:     "water",
				Antoine:  Antoine{A: 5.40221, B: 1838.675, C: -31.737},
				MW:       flowsheet.MolecularWeight(0.018015),
				Elements: map[string]float64{"H": 2, "O": 1},
			},
		},
		Cp:                 map[string]float64{Liq: 75.4, Vap: 33.6},
		HeatOfVaporization: 40650,
		LiquidDensity:      55200,
	})
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Parameters) hasPhase(ph string) bool {
	for _, x := range p.PhaseList {
		if x == ph {
			return true
		}
	}
	return false
}

func (p *Parameters) twoPhase() bool { return len(p.PhaseList) == 2 }

func (p *Parameters) Phases() []string     { return p.PhaseList }
func (p *Parameters) Components() []string { return p.components }

// Elements returns the elements that appear in any component, sorted.
func (p *Parameters) Elements() ([]string, bool) {
	set := make(map[string]bool)
	for _, c := range p.ComponentData {
		for e := range c.Elements {
			set[e] = true
		}
	}
	if len(set) == 0 {
		return nil, false
	}
	o := make([]string, 0, len(set))
	for e := range set {
		o = append(o, e)
	}
	sort.Strings(o)
	return o, true
}

func (p *Parameters) ElementComposition(component, element string) float64 {
	c, ok := p.byName[component]
	if !ok {
		return 0
	}
	return c.Elements[element]
}

// PhaseEquilibria returns one liquid-to-vapour equilibrium per
// component for two-phase packages.
func (p *Parameters) PhaseEquilibria() ([]flowsheet.PhaseEquilibrium, bool) {
	if !p.twoPhase() {
		return nil, false
	}
	o := make([]flowsheet.PhaseEquilibrium, len(p.components))
	for i, c := range p.components {
		o[i] = flowsheet.PhaseEquilibrium{Name: "vle_" + c, Component: c, From: Liq, To: Vap}
	}
	return o, true
}

func (p *Parameters) MolecularWeight(component string) (*unit.Unit, bool) {
	c, ok := p.byName[component]
	if !ok || c.MW == nil {
		return nil, false
	}
	return c.MW, true
}

// DefaultStateArgs returns the initial guesses used when a state is
// initialized without user values: a flow of 1 mol/s, equal mole
// fractions, 298.15 K and 101325 Pa.
func (p *Parameters) DefaultStateArgs() flowsheet.StateArgs {
	x := make(map[string]float64, len(p.components))
	for _, c := range p.components {
		x[c] = 1 / float64(len(p.components))
	}
	return flowsheet.StateArgs{
		"flow_mol":    1.0,
		"mole_frac":   x,
		"temperature": 298.15,
		"pressure":    101325.0,
	}
}
