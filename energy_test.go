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

package flowsheet_test

import (
	"errors"
	"testing"

	"github.com/procsim/flowsheet"
	"github.com/procsim/flowsheet/algebra"
)

func TestAddTotalEnthalpyBalances(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		f := setup{}.build(t)
		eb, err := f.cv.AddTotalEnthalpyBalances(flowsheet.EnergyBalanceOptions{})
		if err != nil {
			t.Fatal(err)
		}
		if eb.Len() != 1 {
			t.Errorf("have %d balances, want 1", eb.Len())
		}
		checkHasNot(t, f.cv, "heat", "work", "heat_of_reaction", "enthalpy_holdup")
		sf, ok := f.cv.Block.Var("scaling_factor_energy")
		if !ok {
			t.Fatal("missing scaling_factor_energy")
		}
		sf.Each(func(_ algebra.Index, v *algebra.Var) {
			if !v.Fixed || v.Value != flowsheet.DefaultEnergyScaling {
				t.Errorf("scaling factor %g fixed %v", v.Value, v.Fixed)
			}
		})
	})
	t.Run("dynamic", func(t *testing.T) {
		f := setup{dynamic: true, geometry: true}.build(t)
		eb, err := f.cv.AddTotalEnthalpyBalances(flowsheet.EnergyBalanceOptions{})
		if err != nil {
			t.Fatal(err)
		}
		if eb.Len() != 2 {
			t.Errorf("have %d balances, want 2", eb.Len())
		}
		if _, ok := f.cv.Block.Var("phase_fraction"); !ok {
			t.Error("phase_fraction should be a variable")
		}
		checkHas(t, f.cv, "enthalpy_holdup", "enthalpy_holdup_calculation", "enthalpy_accumulation")
	})
	t.Run("dynamic no geometry", func(t *testing.T) {
		f := setup{dynamic: true}.build(t)
		_, err := f.cv.AddTotalEnthalpyBalances(flowsheet.EnergyBalanceOptions{})
		if !errors.Is(err, flowsheet.ErrConfiguration) {
			t.Errorf("have %v, want ErrConfiguration", err)
		}
	})
	t.Run("heat transfer", func(t *testing.T) {
		f := setup{}.build(t)
		eb, err := f.cv.AddTotalEnthalpyBalances(flowsheet.EnergyBalanceOptions{HasHeatTransfer: true})
		if err != nil {
			t.Fatal(err)
		}
		heat, ok := f.cv.Block.Var("heat")
		if !ok {
			t.Fatal("missing heat")
		}
		heat.Get(0).Value = 2e6
		if r := eb.Get(0).Residual(); different(r, -2, 1e-12) {
			t.Errorf("residual %g, want -2", r)
		}
		checkHasNot(t, f.cv, "work")
	})
	t.Run("work transfer", func(t *testing.T) {
		f := setup{}.build(t)
		eb, err := f.cv.AddTotalEnthalpyBalances(flowsheet.EnergyBalanceOptions{HasWorkTransfer: true})
		if err != nil {
			t.Fatal(err)
		}
		work, ok := f.cv.Block.Var("work")
		if !ok {
			t.Fatal("missing work")
		}
		work.Get(0).Value = -1e6
		if r := eb.Get(0).Residual(); different(r, 1, 1e-12) {
			t.Errorf("residual %g, want 1", r)
		}
	})
	t.Run("custom term", func(t *testing.T) {
		f := setup{}.build(t)
		eb, err := f.cv.AddTotalEnthalpyBalances(flowsheet.EnergyBalanceOptions{
			CustomTerm: func(float64) algebra.Expr { return algebra.Const(3e6) }})
		if err != nil {
			t.Fatal(err)
		}
		if r := eb.Get(0).Residual(); different(r, -3, 1e-12) {
			t.Errorf("residual %g, want -3", r)
		}
	})
	t.Run("heat of reaction no extents", func(t *testing.T) {
		f := setup{reactions: true}.build(t)
		_, err := f.cv.AddTotalEnthalpyBalances(flowsheet.EnergyBalanceOptions{HasHeatOfReaction: true})
		if !errors.Is(err, flowsheet.ErrConfiguration) {
			t.Errorf("have %v, want ErrConfiguration", err)
		}
		checkHasNot(t, f.cv, "heat_of_reaction", "enthalpy_balances")
	})
	t.Run("heat of reaction no reaction block", func(t *testing.T) {
		f := setup{}.build(t)
		_, err := f.cv.AddTotalEnthalpyBalances(flowsheet.EnergyBalanceOptions{HasHeatOfReaction: true})
		if !errors.Is(err, flowsheet.ErrConfiguration) {
			t.Errorf("have %v, want ErrConfiguration", err)
		}
	})
	t.Run("heat of reaction rate reactions", func(t *testing.T) {
		f := setup{reactions: true}.build(t)
		if _, err := f.cv.AddPhaseComponentBalances(flowsheet.MaterialBalanceOptions{HasRateReactions: true}); err != nil {
			t.Fatal(err)
		}
		if _, err := f.cv.AddTotalEnthalpyBalances(flowsheet.EnergyBalanceOptions{HasHeatOfReaction: true}); err != nil {
			t.Fatal(err)
		}
		hr, ok := f.cv.Block.Expression("heat_of_reaction")
		if !ok {
			t.Fatal("heat_of_reaction should be an expression")
		}
		if _, ok := f.cv.Block.Var("heat_of_reaction"); ok {
			t.Error("heat_of_reaction should not be a variable")
		}
		ext, _ := f.cv.Block.Var("rate_reaction_extent")
		ext.SetValue(1)
		if v := hr.Get(0).Eval(); v != -30 {
			t.Errorf("heat of reaction %g, want -30", v)
		}
	})
	t.Run("heat of reaction equilibrium reactions", func(t *testing.T) {
		f := setup{reactions: true, equilibrium: true}.build(t)
		if _, err := f.cv.AddPhaseComponentBalances(flowsheet.MaterialBalanceOptions{HasEquilibriumReactions: true}); err != nil {
			t.Fatal(err)
		}
		if _, err := f.cv.AddTotalEnthalpyBalances(flowsheet.EnergyBalanceOptions{HasHeatOfReaction: true}); err != nil {
			t.Fatal(err)
		}
		hr, ok := f.cv.Block.Expression("heat_of_reaction")
		if !ok {
			t.Fatal("heat_of_reaction should be an expression")
		}
		ext, _ := f.cv.Block.Var("equilibrium_reaction_extent")
		ext.Get(0, "e2").Value = 1
		if v := hr.Get(0).Eval(); v != -40 {
			t.Errorf("heat of reaction %g, want -40", v)
		}
	})
	t.Run("heat of reaction missing", func(t *testing.T) {
		f := setup{reactions: true}.build(t)
		delete(f.rp.DH, "r2")
		if _, err := f.cv.AddPhaseComponentBalances(flowsheet.MaterialBalanceOptions{HasRateReactions: true}); err != nil {
			t.Fatal(err)
		}
		_, err := f.cv.AddTotalEnthalpyBalances(flowsheet.EnergyBalanceOptions{HasHeatOfReaction: true})
		if !errors.Is(err, flowsheet.ErrPropertyNotSupported) {
			t.Errorf("have %v, want ErrPropertyNotSupported", err)
		}
	})
	t.Run("twice", func(t *testing.T) {
		f := setup{}.build(t)
		if _, err := f.cv.AddEnergyBalances(flowsheet.EnthalpyTotal, flowsheet.EnergyBalanceOptions{}); err != nil {
			t.Fatal(err)
		}
		_, err := f.cv.AddEnergyBalances(flowsheet.EnthalpyTotal, flowsheet.EnergyBalanceOptions{})
		if !errors.Is(err, flowsheet.ErrConfiguration) {
			t.Errorf("have %v, want ErrConfiguration", err)
		}
	})
}

func TestUnsupportedBalances(t *testing.T) {
	f := setup{}.build(t)
	for _, typ := range []flowsheet.EnergyBalanceType{flowsheet.EnthalpyPhase, flowsheet.EnergyTotal, flowsheet.EnergyPhase} {
		if _, err := f.cv.AddEnergyBalances(typ, flowsheet.EnergyBalanceOptions{}); !errors.Is(err, flowsheet.ErrBalanceTypeNotSupported) {
			t.Errorf("%v: have %v, want ErrBalanceTypeNotSupported", typ, err)
		}
	}
	for _, typ := range []flowsheet.MomentumBalanceType{flowsheet.PressurePhase, flowsheet.MomentumTotal, flowsheet.MomentumPhase} {
		if _, err := f.cv.AddMomentumBalances(typ, flowsheet.MomentumBalanceOptions{}); !errors.Is(err, flowsheet.ErrBalanceTypeNotSupported) {
			t.Errorf("%v: have %v, want ErrBalanceTypeNotSupported", typ, err)
		}
	}
	if eb, err := f.cv.AddEnergyBalances(flowsheet.EnergyNone, flowsheet.EnergyBalanceOptions{}); eb != nil || err != nil {
		t.Errorf("energy none: %v, %v", eb, err)
	}
	if pb, err := f.cv.AddMomentumBalances(flowsheet.MomentumNone, flowsheet.MomentumBalanceOptions{}); pb != nil || err != nil {
		t.Errorf("momentum none: %v, %v", pb, err)
	}
	if len(f.cv.Block.Constraints()) != 0 {
		t.Error("unsupported balances added constraints")
	}
}

func TestAddTotalPressureBalances(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		f := setup{}.build(t)
		pb, err := f.cv.AddTotalPressureBalances(flowsheet.MomentumBalanceOptions{})
		if err != nil {
			t.Fatal(err)
		}
		if pb.Len() != 1 {
			t.Errorf("have %d balances, want 1", pb.Len())
		}
		checkHasNot(t, f.cv, "deltaP")
		checkHas(t, f.cv, "scaling_factor_pressure")
	})
	t.Run("deltaP", func(t *testing.T) {
		f := setup{}.build(t)
		pb, err := f.cv.AddTotalPressureBalances(flowsheet.MomentumBalanceOptions{HasPressureChange: true})
		if err != nil {
			t.Fatal(err)
		}
		dp, ok := f.cv.Block.Var("deltaP")
		if !ok {
			t.Fatal("missing deltaP")
		}
		dp.Get(0).Value = 1e4
		if r := pb.Get(0).Residual(); different(r, -1, 1e-12) {
			t.Errorf("residual %g, want -1", r)
		}
	})
	t.Run("custom term", func(t *testing.T) {
		f := setup{}.build(t)
		pb, err := f.cv.AddTotalPressureBalances(flowsheet.MomentumBalanceOptions{
			CustomTerm: func(float64) algebra.Expr { return algebra.Const(-2e4) }})
		if err != nil {
			t.Fatal(err)
		}
		if r := pb.Get(0).Residual(); different(r, 2, 1e-12) {
			t.Errorf("residual %g, want 2", r)
		}
	})
	t.Run("dynamic no geometry", func(t *testing.T) {
		f := setup{dynamic: true}.build(t)
		pb, err := f.cv.AddMomentumBalances(flowsheet.PressureTotal, flowsheet.MomentumBalanceOptions{})
		if err != nil {
			t.Fatal(err)
		}
		if pb.Len() != 2 {
			t.Errorf("have %d balances, want 2", pb.Len())
		}
	})
}
