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

package unitmodels_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/procsim/flowsheet"
	"github.com/procsim/flowsheet/internal/testpkg"
	"github.com/procsim/flowsheet/properties/idealvle"
	"github.com/procsim/flowsheet/unitmodels"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func newFlowsheet(t *testing.T) (*flowsheet.Flowsheet, *logtest.Hook) {
	t.Helper()
	log, hook := logtest.NewNullLogger()
	fs, err := flowsheet.New(flowsheet.Config{Log: log})
	if err != nil {
		t.Fatal(err)
	}
	return fs, hook
}

func singlePhase(t *testing.T, phase string) *idealvle.Parameters {
	t.Helper()
	mw := idealvle.MethanolWater()
	p, err := idealvle.New(&idealvle.Parameters{
		PhaseList:     []string{phase},
		ComponentData: mw.ComponentData,
		Cp:            map[string]float64{phase: mw.Cp[phase]},
		LiquidDensity: mw.LiquidDensity,
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestParseThermodynamicAssumption(t *testing.T) {
	for _, a := range []unitmodels.ThermodynamicAssumption{unitmodels.Isentropic, unitmodels.Isothermal, unitmodels.Pump, unitmodels.Adiabatic} {
		b, err := unitmodels.ParseThermodynamicAssumption(a.String())
		if err != nil || a != b {
			t.Errorf("%v: have %v, %v", a, b, err)
		}
	}
	if _, err := unitmodels.ParseThermodynamicAssumption("polytropic"); err == nil {
		t.Error("expected an error")
	}
}

func TestPressureChangerStructure(t *testing.T) {
	t.Run("isothermal", func(t *testing.T) {
		fs, _ := newFlowsheet(t)
		u, err := unitmodels.NewPressureChanger(fs, unitmodels.PressureChangerConfig{
			PropertyPackage:         testpkg.NewProperties(),
			ThermodynamicAssumption: unitmodels.Isothermal,
		})
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := u.Block.Constraint("isothermal"); !ok {
			t.Error("missing isothermal constraint")
		}
		if _, ok := u.Block.Constraint("ratioP_calculation"); !ok {
			t.Error("missing ratioP_calculation")
		}
		if !u.CV.Block.Has("enthalpy_balances") || u.WorkMechanical == nil {
			t.Error("isothermal units need an energy balance with work")
		}
		if u.DeltaP == nil || u.Inlet == nil || u.Outlet == nil {
			t.Error("missing deltaP or ports")
		}
		if u.Name() != "fs.pressure_changer" {
			t.Errorf("name %q", u.Name())
		}
		if len(fs.Units()) != 1 {
			t.Error("unit was not registered")
		}
	})
	t.Run("adiabatic", func(t *testing.T) {
		fs, _ := newFlowsheet(t)
		u, err := unitmodels.NewPressureChanger(fs, unitmodels.PressureChangerConfig{
			PropertyPackage:         testpkg.NewProperties(),
			ThermodynamicAssumption: unitmodels.Adiabatic,
		})
		if err != nil {
			t.Fatal(err)
		}
		if !u.CV.Block.Has("enthalpy_balances") {
			t.Error("missing enthalpy balance")
		}
		if u.WorkMechanical == nil {
			t.Error("missing work_mechanical")
		}
		if _, ok := u.Block.Constraint("adiabatic"); !ok {
			t.Error("missing adiabatic constraint")
		}
	})
	t.Run("no balances", func(t *testing.T) {
		fs, _ := newFlowsheet(t)
		mb, eb, pb := flowsheet.MaterialNone, flowsheet.EnergyNone, flowsheet.MomentumNone
		u, err := unitmodels.NewPressureChanger(fs, unitmodels.PressureChangerConfig{
			PropertyPackage:         testpkg.NewProperties(),
			ThermodynamicAssumption: unitmodels.Isothermal,
			MaterialBalanceType:     &mb,
			EnergyBalanceType:       &eb,
			MomentumBalanceType:     &pb,
		})
		if err != nil {
			t.Fatal(err)
		}
		for _, name := range []string{"material_balances", "enthalpy_balances", "pressure_balance", "work", "deltaP"} {
			if u.CV.Block.Has(name) {
				t.Errorf("%s should not be built", name)
			}
		}
		if u.DeltaP != nil || u.WorkMechanical != nil {
			t.Error("deltaP and work_mechanical should be nil")
		}
		if _, ok := u.Block.Constraint("ratioP_calculation"); !ok {
			t.Error("missing ratioP_calculation")
		}
		if _, ok := u.Block.Constraint("isothermal"); !ok {
			t.Error("missing isothermal constraint")
		}
	})
	t.Run("total component balances", func(t *testing.T) {
		fs, _ := newFlowsheet(t)
		mb := flowsheet.ComponentTotal
		u, err := unitmodels.NewPressureChanger(fs, unitmodels.PressureChangerConfig{
			PropertyPackage:         testpkg.NewProperties(),
			ThermodynamicAssumption: unitmodels.Adiabatic,
			MaterialBalanceType:     &mb,
		})
		if err != nil {
			t.Fatal(err)
		}
		mbs, ok := u.CV.Block.Constraint("material_balances")
		if !ok {
			t.Fatal("missing material_balances")
		}
		if mbs.Len() != 2 {
			t.Errorf("have %d material balances, want one per component", mbs.Len())
		}
	})
	for _, a := range []unitmodels.ThermodynamicAssumption{unitmodels.Pump, unitmodels.Isentropic} {
		t.Run(a.String()+" without energy balance", func(t *testing.T) {
			fs, _ := newFlowsheet(t)
			eb := flowsheet.EnergyNone
			_, err := unitmodels.NewPressureChanger(fs, unitmodels.PressureChangerConfig{
				PropertyPackage:         singlePhase(t, idealvle.Liq),
				ThermodynamicAssumption: a,
				EnergyBalanceType:       &eb,
			})
			if !errors.Is(err, flowsheet.ErrConfiguration) {
				t.Errorf("have %v, want ErrConfiguration", err)
			}
		})
	}
	for _, a := range []unitmodels.ThermodynamicAssumption{unitmodels.Pump, unitmodels.Isentropic} {
		t.Run(a.String()+" unsupported", func(t *testing.T) {
			fs, _ := newFlowsheet(t)
			_, err := unitmodels.NewPressureChanger(fs, unitmodels.PressureChangerConfig{
				PropertyPackage:         testpkg.NewProperties(),
				ThermodynamicAssumption: a,
			})
			if !errors.Is(err, flowsheet.ErrPropertyNotSupported) {
				t.Errorf("have %v, want ErrPropertyNotSupported", err)
			}
		})
	}
	t.Run("duplicate", func(t *testing.T) {
		fs, _ := newFlowsheet(t)
		cfg := unitmodels.PressureChangerConfig{
			PropertyPackage:         testpkg.NewProperties(),
			ThermodynamicAssumption: unitmodels.Isothermal,
		}
		if _, err := unitmodels.NewPressureChanger(fs, cfg); err != nil {
			t.Fatal(err)
		}
		if _, err := unitmodels.NewPressureChanger(fs, cfg); !errors.Is(err, flowsheet.ErrConfiguration) {
			t.Errorf("have %v, want ErrConfiguration", err)
		}
	})
	t.Run("dynamic", func(t *testing.T) {
		log, _ := logtest.NewNullLogger()
		fs, err := flowsheet.New(flowsheet.Config{Dynamic: flowsheet.Bool(true), Log: log})
		if err != nil {
			t.Fatal(err)
		}
		u, err := unitmodels.NewPressureChanger(fs, unitmodels.PressureChangerConfig{
			PropertyPackage:         testpkg.NewProperties(),
			ThermodynamicAssumption: unitmodels.Adiabatic,
		})
		if err != nil {
			t.Fatal(err)
		}
		if u.CV.Volume == nil || !u.CV.Block.Has("material_accumulation") {
			t.Error("dynamic units need geometry and holdup")
		}
	})
}

func TestPump(t *testing.T) {
	fs, _ := newFlowsheet(t)
	props := singlePhase(t, idealvle.Liq)
	u, err := unitmodels.NewPressureChanger(fs, unitmodels.PressureChangerConfig{
		Name:                    "pump",
		PropertyPackage:         props,
		ThermodynamicAssumption: unitmodels.Pump,
	})
	if err != nil {
		t.Fatal(err)
	}
	u.DeltaP.Get(0).Fix(1e5)
	u.EfficiencyPump.Get(0).Fix(0.8)
	if err := u.Initialize(context.Background(), flowsheet.InitializeOptions{StateArgs: props.DefaultStateArgs()}); err != nil {
		t.Fatal(err)
	}

	wantFluid := 1e5 / props.LiquidDensity
	if v := u.WorkFluid.Get(0).Value; different(v, wantFluid, 1e-3) {
		t.Errorf("fluid work %g, want %g", v, wantFluid)
	}
	if v := u.WorkMechanical.Get(0).Value; different(v, wantFluid/0.8, 1e-3) {
		t.Errorf("mechanical work %g, want %g", v, wantFluid/0.8)
	}
	if v := u.CV.PropertiesOut.Pressure(0).Eval(); different(v, 201325, 1e-8) {
		t.Errorf("outlet pressure %g", v)
	}
	if v := u.RatioP.Get(0).Value; different(v, 201325.0/101325, 1e-6) {
		t.Errorf("pressure ratio %g", v)
	}
	rise := u.CV.PropertiesOut.Temperature(0).Eval() - u.CV.PropertiesIn.Temperature(0).Eval()
	if want := wantFluid / 0.8 / 75.4; different(rise, want, 5e-2) {
		t.Errorf("temperature rise %g, want %g", rise, want)
	}
	for _, v := range u.Inlet.Vars() {
		for _, k := range v.Keys() {
			if v.At(k).Fixed {
				t.Errorf("%s is still fixed after initialization", v.At(k).Name)
			}
		}
	}
}

func TestIsothermal(t *testing.T) {
	fs, _ := newFlowsheet(t)
	props := singlePhase(t, idealvle.Liq)
	u, err := unitmodels.NewPressureChanger(fs, unitmodels.PressureChangerConfig{
		PropertyPackage:         props,
		ThermodynamicAssumption: unitmodels.Isothermal,
	})
	if err != nil {
		t.Fatal(err)
	}
	u.DeltaP.Get(0).Fix(1e5)
	if err := u.Initialize(context.Background(), flowsheet.InitializeOptions{StateArgs: props.DefaultStateArgs()}); err != nil {
		t.Fatal(err)
	}
	tIn, tOut := u.CV.PropertiesIn.Temperature(0).Eval(), u.CV.PropertiesOut.Temperature(0).Eval()
	if different(tIn, tOut, 1e-8) {
		t.Errorf("outlet temperature %g, want %g", tOut, tIn)
	}
	// Liquid enthalpy depends on temperature only, so no work is needed.
	if w := u.WorkMechanical.Get(0).Value; math.Abs(w) > 1e-3 {
		t.Errorf("mechanical work %g, want 0", w)
	}
	if v := u.CV.PropertiesOut.Pressure(0).Eval(); different(v, 201325, 1e-8) {
		t.Errorf("outlet pressure %g", v)
	}
}

func TestIsentropicCompressor(t *testing.T) {
	fs, _ := newFlowsheet(t)
	props := singlePhase(t, idealvle.Vap)
	u, err := unitmodels.NewPressureChanger(fs, unitmodels.PressureChangerConfig{
		Name:            "compressor",
		PropertyPackage: props,
	})
	if err != nil {
		t.Fatal(err)
	}
	if u.PropertiesIsentropic == nil {
		t.Fatal("missing isentropic properties")
	}
	const (
		tIn = 400.0
		pIn = 1e5
		eff = 0.8
		cp  = 33.6
	)
	u.DeltaP.Get(0).Fix(1e5)
	u.EfficiencyIsentropic.Get(0).Fix(eff)
	args := props.DefaultStateArgs()
	args["temperature"] = tIn
	args["pressure"] = pIn
	if err := u.Initialize(context.Background(), flowsheet.InitializeOptions{StateArgs: args}); err != nil {
		t.Fatal(err)
	}

	tIsen := tIn * math.Pow(2, idealvle.GasConstant/cp)
	if v := u.PropertiesIsentropic.Temperature(0).Eval(); different(v, tIsen, 1e-4) {
		t.Errorf("isentropic temperature %g, want %g", v, tIsen)
	}
	wIsen := cp * (tIsen - tIn)
	if v := u.WorkIsentropic.Get(0).Value; different(v, wIsen, 1e-3) {
		t.Errorf("isentropic work %g, want %g", v, wIsen)
	}
	if v := u.WorkMechanical.Get(0).Value; different(v, wIsen/eff, 1e-3) {
		t.Errorf("mechanical work %g, want %g", v, wIsen/eff)
	}
	tOut := tIn + wIsen/eff/cp
	if v := u.CV.PropertiesOut.Temperature(0).Eval(); different(v, tOut, 1e-4) {
		t.Errorf("outlet temperature %g, want %g", v, tOut)
	}
	if !u.Block.Has("isentropic") {
		t.Error("missing isentropic constraint")
	}
}

func warnings(hook *logtest.Hook) int {
	var n int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			n++
		}
	}
	return n
}

func TestPressureChangerModelCheck(t *testing.T) {
	tests := []struct {
		name     string
		expander bool
		deltaP   float64
		ratioP   float64
		want     int
	}{
		{name: "compressor ok", deltaP: 1, ratioP: 2, want: 0},
		{name: "compressor wrong", deltaP: -1, ratioP: 0.5, want: 2},
		{name: "expander ok", expander: true, deltaP: -1, ratioP: 0.5, want: 0},
		{name: "expander wrong", expander: true, deltaP: 1, ratioP: 2, want: 2},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fs, hook := newFlowsheet(t)
			u, err := unitmodels.NewPressureChanger(fs, unitmodels.PressureChangerConfig{
				PropertyPackage:         testpkg.NewProperties(),
				ThermodynamicAssumption: unitmodels.Isothermal,
				Expander:                test.expander,
			})
			if err != nil {
				t.Fatal(err)
			}
			u.DeltaP.Get(0).Fix(test.deltaP)
			u.RatioP.Get(0).Fix(test.ratioP)
			fs.ModelCheck()
			if n := warnings(hook); n != test.want {
				t.Errorf("have %d warnings, want %d", n, test.want)
			}
		})
	}
	t.Run("outlet pressure", func(t *testing.T) {
		fs, hook := newFlowsheet(t)
		pp := testpkg.NewProperties()
		u, err := unitmodels.NewPressureChanger(fs, unitmodels.PressureChangerConfig{
			PropertyPackage:         pp,
			ThermodynamicAssumption: unitmodels.Isothermal,
		})
		if err != nil {
			t.Fatal(err)
		}
		pp.StateBlocks[1].PressureVar.Get(0).Fix(5e4)
		u.ModelCheck(fs.Log)
		if n := warnings(hook); n != 1 {
			t.Errorf("have %d warnings, want 1", n)
		}
	})
}

func TestFeedProduct(t *testing.T) {
	fs, hook := newFlowsheet(t)
	props := singlePhase(t, idealvle.Liq)
	feed, err := unitmodels.NewFeed(fs, unitmodels.BoundaryConfig{PropertyPackage: props})
	if err != nil {
		t.Fatal(err)
	}
	product, err := unitmodels.NewProduct(fs, unitmodels.BoundaryConfig{PropertyPackage: props})
	if err != nil {
		t.Fatal(err)
	}
	if feed.Name() != "fs.feed" || product.Name() != "fs.product" {
		t.Errorf("names %q %q", feed.Name(), product.Name())
	}
	if len(fs.Units()) != 2 {
		t.Errorf("have %d units, want 2", len(fs.Units()))
	}
	if feed.Properties.Config().DefinedState != true {
		t.Error("feed state should be defined")
	}
	args := props.DefaultStateArgs()
	args["flow_mol"] = 2.0
	if err := feed.Outlet.Fix(args); err != nil {
		t.Fatal(err)
	}
	if err := feed.Initialize(context.Background(), flowsheet.InitializeOptions{}); err != nil {
		t.Fatal(err)
	}
	sb := feed.Properties.(*idealvle.StateBlock)
	if v := sb.FlowMolPhase.Get(0, idealvle.Liq).Value; different(v, 2, 1e-6) {
		t.Errorf("liquid flow %g, want 2", v)
	}
	if !sb.FlowMol.Get(0).Fixed {
		t.Error("port-fixed variables should stay fixed")
	}
	if vals := feed.Outlet.Values(0); vals["flow_mol"] != 2 || vals["mole_frac[water]"] != 0.5 {
		t.Errorf("port values %v", vals)
	}

	if err := product.Initialize(context.Background(), flowsheet.InitializeOptions{StateArgs: args}); err != nil {
		t.Fatal(err)
	}
	for _, v := range product.Inlet.Vars() {
		for _, k := range v.Keys() {
			if v.At(k).Fixed {
				t.Errorf("%s is still fixed after initialization", v.At(k).Name)
			}
		}
	}
	fs.ModelCheck()
	if n := warnings(hook); n != 0 {
		t.Errorf("have %d warnings, want 0", n)
	}
}

func TestBoundaryErrors(t *testing.T) {
	fs, _ := newFlowsheet(t)
	if _, err := unitmodels.NewFeed(fs, unitmodels.BoundaryConfig{}); !errors.Is(err, flowsheet.ErrConfiguration) {
		t.Errorf("have %v, want ErrConfiguration", err)
	}
	props := singlePhase(t, idealvle.Liq)
	if _, err := unitmodels.NewProduct(fs, unitmodels.BoundaryConfig{PropertyPackage: props}); err != nil {
		t.Fatal(err)
	}
	if _, err := unitmodels.NewProduct(fs, unitmodels.BoundaryConfig{PropertyPackage: props}); !errors.Is(err, flowsheet.ErrConfiguration) {
		t.Errorf("have %v, want ErrConfiguration", err)
	}
}
