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
)

// Default values of the balance scaling factors.
const (
	DefaultEnergyScaling   = 1e-6
	DefaultPressureScaling = 1e-4
)

// EnergyBalanceType selects the energy balances written by
// AddEnergyBalances.
type EnergyBalanceType int

// These are the energy balance types. Only EnthalpyTotal is supported.
const (
	EnergyNone EnergyBalanceType = iota
	EnthalpyTotal
	EnthalpyPhase
	EnergyTotal
	EnergyPhase
)

func (t EnergyBalanceType) String() string {
	switch t {
	case EnergyNone:
		return "none"
	case EnthalpyTotal:
		return "enthalpyTotal"
	case EnthalpyPhase:
		return "enthalpyPhase"
	case EnergyTotal:
		return "energyTotal"
	case EnergyPhase:
		return "energyPhase"
	default:
		return fmt.Sprintf("EnergyBalanceType(%d)", int(t))
	}
}

// EnergyBalanceOptions holds the feature flags and custom term of an
// energy balance.
type EnergyBalanceOptions struct {
	// HasHeatOfReaction adds the heat_of_reaction expression. It needs
	// reaction extents, so material balances with reactions must be
	// added first.
	HasHeatOfReaction bool

	// HasHeatTransfer and HasWorkTransfer add free heat[t] and work[t]
	// variables. Positive values are into the control volume.
	HasHeatTransfer bool
	HasWorkTransfer bool

	CustomTerm TimeTerm
}

// AddEnergyBalances writes energy balances of the given type. It returns
// nil and no error for EnergyNone.
func (cv *ControlVolume) AddEnergyBalances(typ EnergyBalanceType, o EnergyBalanceOptions) (*algebra.IndexedConstraint, error) {
	switch typ {
	case EnergyNone:
		return nil, nil
	case EnthalpyTotal:
		return cv.AddTotalEnthalpyBalances(o)
	case EnthalpyPhase:
		return cv.AddPhaseEnthalpyBalances(o)
	case EnergyTotal:
		return cv.AddTotalEnergyBalances(o)
	case EnergyPhase:
		return cv.AddPhaseEnergyBalances(o)
	default:
		return nil, cv.errorf(ErrConfiguration, "unrecognized energy balance type %v", typ)
	}
}

// AddPhaseEnthalpyBalances always fails with ErrBalanceTypeNotSupported.
func (cv *ControlVolume) AddPhaseEnthalpyBalances(EnergyBalanceOptions) (*algebra.IndexedConstraint, error) {
	return nil, cv.errorf(ErrBalanceTypeNotSupported, "phase enthalpy balances are not supported")
}

// AddTotalEnergyBalances always fails with ErrBalanceTypeNotSupported.
func (cv *ControlVolume) AddTotalEnergyBalances(EnergyBalanceOptions) (*algebra.IndexedConstraint, error) {
	return nil, cv.errorf(ErrBalanceTypeNotSupported, "total energy balances are not supported")
}

// AddPhaseEnergyBalances always fails with ErrBalanceTypeNotSupported.
func (cv *ControlVolume) AddPhaseEnergyBalances(EnergyBalanceOptions) (*algebra.IndexedConstraint, error) {
	return nil, cv.errorf(ErrBalanceTypeNotSupported, "phase energy balances are not supported")
}

// scalar is the index of variables that are not indexed by anything.
var scalar = []algebra.Index{{}}

// scalingFactor returns the named fixed scaling parameter, creating it at
// value v if needed.
func (cv *ControlVolume) scalingFactor(name string, v float64) (algebra.Expr, error) {
	sf, err := cv.getOrCreateVar(name, "Scaling factor", scalar, v)
	if err != nil {
		return nil, err
	}
	sf.FixAll()
	return sf.At(algebra.Index{}), nil
}

// heatOfReaction collects -extent*dh for every built reaction extent.
func (cv *ControlVolume) heatOfReaction() (map[float64][]algebra.Expr, error) {
	type family struct {
		name string
		idx  func() ([]string, bool)
	}
	hr := make(map[float64][]algebra.Expr)
	found := false
	for _, f := range []family{
		{"rate_reaction_extent", cv.rxns.RateReactions},
		{"equilibrium_reaction_extent", cv.rxns.EquilibriumReactions},
	} {
		extent, ok := cv.Block.Var(f.name)
		if !ok {
			continue
		}
		found = true
		idx, _ := f.idx()
		for _, t := range cv.Time {
			for _, r := range idx {
				dh, ok := cv.Reactions.HeatOfReaction(t, r)
				if !ok {
					return nil, cv.errorf(ErrPropertyNotSupported,
						"heat of reaction was requested but the reaction package does not provide one for %s", r)
				}
				hr[t] = append(hr[t], algebra.Neg(algebra.Mul(extent.Get(t, r), dh)))
			}
		}
	}
	if !found {
		return nil, cv.errorf(ErrConfiguration,
			"heat of reaction was requested but no reaction extents have been built; add material balances with reactions first")
	}
	return hr, nil
}

// AddTotalEnthalpyBalances writes one enthalpy balance per time,
// enthalpy_balances[t], scaled by scaling_factor_energy.
func (cv *ControlVolume) AddTotalEnthalpyBalances(o EnergyBalanceOptions) (*algebra.IndexedConstraint, error) {
	if err := cv.checkBalance("enthalpy", cv.enthalpy, true); err != nil {
		return nil, err
	}
	var hr map[float64][]algebra.Expr
	if o.HasHeatOfReaction {
		if cv.Reactions == nil {
			return nil, cv.errorf(ErrConfiguration,
				"heat of reaction requires a reaction block; specify a reaction package and call AddReactionBlocks")
		}
		var err error
		if hr, err = cv.heatOfReaction(); err != nil {
			return nil, err
		}
	}

	phases := cv.props.Phases()
	tKeys := algebra.Keys(cv.Time)
	in, out := cv.PropertiesIn, cv.PropertiesOut

	var accum *algebra.IndexedVar
	if cv.HasHoldup {
		if err := cv.AddPhaseFractions(); err != nil {
			return nil, err
		}
		pKeys := algebra.Keys(cv.Time, phases)
		holdup, err := cv.newVar("enthalpy_holdup", "Enthalpy holdup in control volume", pKeys, 0)
		if err != nil {
			return nil, err
		}
		_, err = cv.newConstraint("enthalpy_holdup_calculation", "Enthalpy holdup calculation", pKeys,
			func(k algebra.Index) (algebra.Expr, algebra.Expr) {
				return holdup.At(k), algebra.Mul(cv.Volume.Get(k.Time),
					cv.PhaseFraction(k.Time, k.A), out.EnthalpyDensityTerm(k.Time, k.A))
			})
		if err != nil {
			return nil, err
		}
		if cv.Dynamic {
			if accum, err = cv.newAccumulation("enthalpy_accumulation",
				"Enthalpy accumulation in control volume", holdup); err != nil {
				return nil, err
			}
		}
	}

	var heat, work *algebra.IndexedVar
	var err error
	if o.HasHeatTransfer {
		if heat, err = cv.getOrCreateVar("heat", "Heat transferred into control volume", tKeys, 0); err != nil {
			return nil, err
		}
	}
	if o.HasWorkTransfer {
		if work, err = cv.getOrCreateVar("work", "Work transferred into control volume", tKeys, 0); err != nil {
			return nil, err
		}
	}
	var dh *algebra.IndexedExpression
	if hr != nil {
		if dh, err = cv.newExpression("heat_of_reaction", "Heat of reaction term", tKeys,
			func(k algebra.Index) algebra.Expr { return algebra.Sum(hr[k.Time]...) }); err != nil {
			return nil, err
		}
	}
	sf, err := cv.scalingFactor("scaling_factor_energy", DefaultEnergyScaling)
	if err != nil {
		return nil, err
	}

	eb, err := cv.newConstraint("enthalpy_balances", "Energy balances", tKeys,
		func(k algebra.Index) (algebra.Expr, algebra.Expr) {
			var lhs, rhs []algebra.Expr
			for _, p := range phases {
				if accum != nil {
					lhs = append(lhs, accum.Get(k.Time, p))
				}
				rhs = append(rhs, in.EnthalpyFlowTerm(k.Time, p), algebra.Neg(out.EnthalpyFlowTerm(k.Time, p)))
			}
			if heat != nil {
				rhs = append(rhs, heat.At(k))
			}
			if work != nil {
				rhs = append(rhs, work.At(k))
			}
			if dh != nil {
				rhs = append(rhs, dh.At(k))
			}
			if o.CustomTerm != nil {
				rhs = append(rhs, o.CustomTerm(k.Time))
			}
			return algebra.Mul(sf, algebra.Sum(lhs...)), algebra.Mul(sf, algebra.Sum(rhs...))
		})
	if err != nil {
		return nil, err
	}
	cv.enthalpy = true
	cv.advance(BalancesAdded)
	cv.Log.WithField("constraints", eb.Len()).Debug("added enthalpy balances")
	return eb, nil
}

// MomentumBalanceType selects the momentum balances written by
// AddMomentumBalances.
type MomentumBalanceType int

// These are the momentum balance types. Only PressureTotal is supported.
const (
	MomentumNone MomentumBalanceType = iota
	PressureTotal
	PressurePhase
	MomentumTotal
	MomentumPhase
)

func (t MomentumBalanceType) String() string {
	switch t {
	case MomentumNone:
		return "none"
	case PressureTotal:
		return "pressureTotal"
	case PressurePhase:
		return "pressurePhase"
	case MomentumTotal:
		return "momentumTotal"
	case MomentumPhase:
		return "momentumPhase"
	default:
		return fmt.Sprintf("MomentumBalanceType(%d)", int(t))
	}
}

// MomentumBalanceOptions holds the feature flags and custom term of a
// momentum balance.
type MomentumBalanceOptions struct {
	// HasPressureChange adds a free deltaP[t] variable.
	HasPressureChange bool

	CustomTerm TimeTerm
}

// AddMomentumBalances writes momentum balances of the given type. It
// returns nil and no error for MomentumNone.
func (cv *ControlVolume) AddMomentumBalances(typ MomentumBalanceType, o MomentumBalanceOptions) (*algebra.IndexedConstraint, error) {
	switch typ {
	case MomentumNone:
		return nil, nil
	case PressureTotal:
		return cv.AddTotalPressureBalances(o)
	case PressurePhase:
		return cv.AddPhasePressureBalances(o)
	case MomentumTotal:
		return cv.AddTotalMomentumBalances(o)
	case MomentumPhase:
		return cv.AddPhaseMomentumBalances(o)
	default:
		return nil, cv.errorf(ErrConfiguration, "unrecognized momentum balance type %v", typ)
	}
}

// AddPhasePressureBalances always fails with ErrBalanceTypeNotSupported.
func (cv *ControlVolume) AddPhasePressureBalances(MomentumBalanceOptions) (*algebra.IndexedConstraint, error) {
	return nil, cv.errorf(ErrBalanceTypeNotSupported, "phase pressure balances are not supported")
}

// AddTotalMomentumBalances always fails with ErrBalanceTypeNotSupported.
func (cv *ControlVolume) AddTotalMomentumBalances(MomentumBalanceOptions) (*algebra.IndexedConstraint, error) {
	return nil, cv.errorf(ErrBalanceTypeNotSupported, "total momentum balances are not supported")
}

// AddPhaseMomentumBalances always fails with ErrBalanceTypeNotSupported.
func (cv *ControlVolume) AddPhaseMomentumBalances(MomentumBalanceOptions) (*algebra.IndexedConstraint, error) {
	return nil, cv.errorf(ErrBalanceTypeNotSupported, "phase momentum balances are not supported")
}

// AddTotalPressureBalances writes one pressure balance per time,
// pressure_balance[t], scaled by scaling_factor_pressure.
func (cv *ControlVolume) AddTotalPressureBalances(o MomentumBalanceOptions) (*algebra.IndexedConstraint, error) {
	if err := cv.checkBalance("pressure", cv.pressure, false); err != nil {
		return nil, err
	}
	tKeys := algebra.Keys(cv.Time)
	in, out := cv.PropertiesIn, cv.PropertiesOut

	var deltaP *algebra.IndexedVar
	var err error
	if o.HasPressureChange {
		if deltaP, err = cv.getOrCreateVar("deltaP", "Pressure difference across unit", tKeys, 0); err != nil {
			return nil, err
		}
	}
	sf, err := cv.scalingFactor("scaling_factor_pressure", DefaultPressureScaling)
	if err != nil {
		return nil, err
	}
	pb, err := cv.newConstraint("pressure_balance", "Momentum balance", tKeys,
		func(k algebra.Index) (algebra.Expr, algebra.Expr) {
			rhs := []algebra.Expr{in.Pressure(k.Time), algebra.Neg(out.Pressure(k.Time))}
			if deltaP != nil {
				rhs = append(rhs, deltaP.At(k))
			}
			if o.CustomTerm != nil {
				rhs = append(rhs, o.CustomTerm(k.Time))
			}
			return algebra.Zero, algebra.Mul(sf, algebra.Sum(rhs...))
		})
	if err != nil {
		return nil, err
	}
	cv.pressure = true
	cv.advance(BalancesAdded)
	cv.Log.WithField("constraints", pb.Len()).Debug("added pressure balances")
	return pb, nil
}
