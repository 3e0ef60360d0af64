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
)

// FlowBasis is the accounting unit in which flows, generation and holdup
// are expressed.
type FlowBasis int

// These are the supported flow bases. Quantities on the Other basis can
// only be combined with other quantities on the Other basis.
const (
	Molar FlowBasis = iota
	Mass
	Other
)

func (b FlowBasis) String() string {
	switch b {
	case Molar:
		return "molar"
	case Mass:
		return "mass"
	case Other:
		return "other"
	default:
		return fmt.Sprintf("FlowBasis(%d)", int(b))
	}
}

// AmountDim is the dimension representing amount of substance.
// ("mol" is reserved by the unit package.)
var AmountDim = unit.NewDimension("mole")

// KilogramPerMole is the dimension of molecular weight.
var KilogramPerMole = unit.Dimensions{unit.MassDim: 1, AmountDim: -1}

// MolecularWeight returns a molecular weight in kg/mol.
func MolecularWeight(kgPerMole float64) *unit.Unit {
	return unit.New(kgPerMole, KilogramPerMole)
}

// ConversionFactor returns the factor that converts a flow of component
// on basis from to basis to. Converting molar to mass multiplies by the
// molecular weight; mass to molar divides by it. Matching bases convert
// with a factor of one, including Other; any other conversion involving
// Other is an ErrConfiguration. A missing or dimensionally wrong
// molecular weight is an ErrPropertyNotSupported.
func ConversionFactor(pp PropertyParameters, component string, from, to FlowBasis) (float64, error) {
	const block = "basis"
	for _, b := range []FlowBasis{from, to} {
		if b != Molar && b != Mass && b != Other {
			return 0, newError(ErrConfiguration, block, "unrecognized flow basis %v", b)
		}
	}
	if from == to {
		return 1, nil
	}
	if from == Other || to == Other {
		return 0, newError(ErrConfiguration, block,
			"can not convert %s from %v basis to %v basis; no conversion is defined for the 'other' basis",
			component, from, to)
	}
	mw, ok := pp.MolecularWeight(component)
	if !ok || mw == nil {
		return 0, newError(ErrPropertyNotSupported, block,
			"converting %s from %v basis to %v basis requires a molecular weight, which the property package does not provide",
			component, from, to)
	}
	if err := mw.Check(KilogramPerMole); err != nil {
		return 0, newError(ErrPropertyNotSupported, block, "molecular weight of %s: %v", component, err)
	}
	if mw.Value() <= 0 {
		return 0, newError(ErrPropertyNotSupported, block, "molecular weight of %s must be positive", component)
	}
	if from == Molar {
		return mw.Value(), nil
	}
	return 1 / mw.Value(), nil
}
