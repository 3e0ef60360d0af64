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
	"github.com/procsim/flowsheet/algebra"
)

// Port is a named view of the state variables of a state block, used to
// set and read boundary conditions.
type Port struct {
	Name  string
	State StateBlock
}

// NewPort returns a port onto the state variables of sb.
func NewPort(name string, sb StateBlock) *Port {
	return &Port{Name: name, State: sb}
}

// Vars returns the variable families behind the port.
func (p *Port) Vars() []*algebra.IndexedVar { return p.State.StateVars() }

// Fix sets every port variable that args holds a value for and fixes
// every port variable at every time.
func (p *Port) Fix(args StateArgs) error {
	if err := fixVars(p.Vars(), args, false, nil); err != nil {
		return newError(ErrConfiguration, p.State.Block().FullName()+"."+p.Name, "%v", err)
	}
	return nil
}

// Unfix frees every port variable.
func (p *Port) Unfix() {
	for _, iv := range p.Vars() {
		iv.UnfixAll()
	}
}

// Values returns the port variable values at time t, keyed by family name
// and, for indexed families, label, e.g. "mole_frac[c1]".
func (p *Port) Values(t float64) map[string]float64 {
	o := make(map[string]float64)
	for _, iv := range p.Vars() {
		iv.Each(func(k algebra.Index, v *algebra.Var) {
			if k.Time != t {
				return
			}
			o[portKey(iv.Name, k)] = v.Value
		})
	}
	return o
}

func portKey(name string, k algebra.Index) string {
	switch {
	case k.A == "":
		return name
	case k.B == "":
		return name + "[" + k.A + "]"
	}
	return name + "[" + k.A + "," + k.B + "]"
}
