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
	"bytes"
	"context"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kr/pretty"
	"github.com/procsim/flowsheet"
	"github.com/procsim/flowsheet/solver"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/tealeg/xlsx"
)

const heaterCase = "testdata/heater.toml"

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func loadHeater(t *testing.T) *CaseConfig {
	t.Helper()
	c, err := LoadCase(heaterCase)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestLoadCase(t *testing.T) {
	c := loadHeater(t)
	if c.Name != "fs" || c.Model != "control_volume" {
		t.Errorf("name %q model %q", c.Name, c.Model)
	}
	want := ControlVolumeCase{
		Name:              "heater",
		MaterialBalance:   "componentPhase",
		EnergyBalance:     "enthalpyTotal",
		MomentumBalance:   "pressureTotal",
		HasHeatTransfer:   true,
		HasPressureChange: true,
	}
	if diff := pretty.Diff(c.ControlVolume, want); len(diff) != 0 {
		t.Errorf("control volume: %v", diff)
	}
	if len(c.Properties.Components) != 2 {
		t.Fatalf("have %d components", len(c.Properties.Components))
	}
	if a := c.Properties.Components[1].Antoine; a != [3]float64{5.40221, 1838.675, -31.737} {
		t.Errorf("antoine %v", a)
	}
	if _, ok := c.Inlet["mole_frac"]; !ok {
		t.Error("missing inlet mole fractions")
	}
	if _, err := LoadCase("testdata/missing.toml"); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestFingerprint(t *testing.T) {
	a, _ := buildHeater(t, nil)
	b, _ := buildHeater(t, nil)
	if a.Fingerprint() != b.Fingerprint() {
		t.Errorf("same case, different fingerprints: %s, %s", a.Fingerprint(), b.Fingerprint())
	}
	c, _ := buildHeater(t, func(c *CaseConfig) { c.Fix["heat"] = 2000.0 })
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("different cases should have different fingerprints")
	}
}

func TestBuildErrors(t *testing.T) {
	for _, test := range []struct {
		name   string
		modify func(c *CaseConfig)
	}{
		{"model", func(c *CaseConfig) { c.Model = "reactor" }},
		{"material", func(c *CaseConfig) { c.ControlVolume.MaterialBalance = "molar" }},
		{"energy", func(c *CaseConfig) { c.ControlVolume.EnergyBalance = "heat" }},
		{"momentum", func(c *CaseConfig) { c.ControlVolume.MomentumBalance = "force" }},
		{"unsupported energy", func(c *CaseConfig) { c.ControlVolume.EnergyBalance = "energyPhase" }},
		{"phases", func(c *CaseConfig) { c.Properties.Phases = []string{"Sol"} }},
		{"custom term", func(c *CaseConfig) { c.ControlVolume.CustomTerms.Energy = "2*x" }},
		{"molar term", func(c *CaseConfig) {
			c.ControlVolume.CustomTerms.Molar = map[string]map[string]string{"Liq": {"water": "((t"}}
		}},
		{"basis", func(c *CaseConfig) {
			c.Reactions.Basis = "volume"
			c.Reactions.Rate = []ReactionConfig{{Name: "r1", Phase: "Liq"}}
		}},
		{"reaction", func(c *CaseConfig) {
			c.Reactions.Rate = []ReactionConfig{{Name: "r1", Phase: "Vap"}}
		}},
		{"assumption", func(c *CaseConfig) {
			c.Model = "pressure_changer"
			c.PressureChanger.ThermodynamicAssumption = "polytropic"
		}},
		{"unit momentum", func(c *CaseConfig) {
			c.Model = "pressure_changer"
			c.PressureChanger.MomentumBalance = "force"
		}},
		{"pump without energy balance", func(c *CaseConfig) {
			c.Model = "pressure_changer"
			c.PressureChanger = PressureChangerCase{ThermodynamicAssumption: "pump", EnergyBalance: "none"}
		}},
	} {
		t.Run(test.name, func(t *testing.T) {
			c := loadHeater(t)
			test.modify(c)
			log, _ := logtest.NewNullLogger()
			if _, err := c.Build(log); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func buildHeater(t *testing.T, modify func(c *CaseConfig)) (*Model, *logtest.Hook) {
	t.Helper()
	c := loadHeater(t)
	if modify != nil {
		modify(c)
	}
	log, hook := logtest.NewNullLogger()
	m, err := c.Build(log)
	if err != nil {
		t.Fatal(err)
	}
	return m, hook
}

func checkHeater(t *testing.T, m *Model, res *Result) {
	t.Helper()
	if res.Final.Status != solver.Optimal {
		t.Fatalf("status %v", res.Final.Status)
	}
	out := m.Outlet.Values(0)
	if v, want := out["temperature"], 300+1000/75.4; different(v, want, 1e-5) {
		t.Errorf("outlet temperature %g, want %g", v, want)
	}
	if v := out["pressure"]; different(v, 96325, 1e-8) {
		t.Errorf("outlet pressure %g, want 96325", v)
	}
	if v := out["flow_mol"]; different(v, 1, 1e-8) {
		t.Errorf("outlet flow %g, want 1", v)
	}
	if v := out["mole_frac[methanol]"]; different(v, 0.4, 1e-8) {
		t.Errorf("outlet methanol %g, want 0.4", v)
	}
}

func TestRunHeater(t *testing.T) {
	m, hook := buildHeater(t, nil)
	res, err := Run(context.Background(), m, 0)
	if err != nil {
		t.Fatal(err)
	}
	checkHeater(t, m, res)
	if len(res.Names) != len(res.Histories) || len(res.Names) < 2 {
		t.Errorf("have %d names and %d histories", len(res.Names), len(res.Histories))
	}
	if !strings.HasSuffix(res.Names[len(res.Names)-1], "fs") {
		t.Errorf("last solve %q should be of the flowsheet", res.Names[len(res.Names)-1])
	}
	for _, e := range hook.AllEntries() {
		if e.Level <= logrus.WarnLevel {
			t.Errorf("unexpected log entry: %s", e.Message)
		}
	}
	for _, iv := range m.Inlet.Vars() {
		for _, k := range iv.Keys() {
			if !iv.At(k).Fixed {
				t.Errorf("%s should stay fixed", iv.At(k).Name)
			}
		}
	}
}

func TestCustomEnergyTerm(t *testing.T) {
	m, _ := buildHeater(t, func(c *CaseConfig) {
		c.ControlVolume.HasHeatTransfer = false
		c.ControlVolume.CustomTerms.Energy = "500 + 0.5*1000 + 0*t"
		delete(c.Fix, "heat")
	})
	res, err := Run(context.Background(), m, 0)
	if err != nil {
		t.Fatal(err)
	}
	checkHeater(t, m, res)
}

func TestFixSpecifications(t *testing.T) {
	t.Run("unknown", func(t *testing.T) {
		m, _ := buildHeater(t, func(c *CaseConfig) { c.Fix["work"] = 1.0 })
		if err := m.FixSpecifications(); err == nil {
			t.Error("expected an error")
		}
	})
	t.Run("not a number", func(t *testing.T) {
		m, _ := buildHeater(t, func(c *CaseConfig) { c.Fix["heat"] = "hot" })
		if err := m.FixSpecifications(); err == nil {
			t.Error("expected an error")
		}
	})
	t.Run("by label", func(t *testing.T) {
		m, _ := buildHeater(t, func(c *CaseConfig) {
			c.ControlVolume.HasMassTransfer = true
			c.Fix["mass_transfer_term"] = map[string]interface{}{
				"Liq": map[string]interface{}{"water": 0.1},
			}
		})
		if err := m.FixSpecifications(); err != nil {
			t.Fatal(err)
		}
		mt, ok := m.CV.Block.Var("mass_transfer_term")
		if !ok {
			t.Fatal("missing mass_transfer_term")
		}
		if v := mt.Get(0, "Liq", "water"); !v.Fixed || v.Value != 0.1 {
			t.Errorf("water: %g fixed %v", v.Value, v.Fixed)
		}
		if v := mt.Get(0, "Liq", "methanol"); v.Fixed {
			t.Error("methanol should not be fixed")
		}
	})
}

func TestRunPump(t *testing.T) {
	m, _ := buildHeater(t, func(c *CaseConfig) {
		c.Model = "pressure_changer"
		c.PressureChanger = PressureChangerCase{Name: "pump", ThermodynamicAssumption: "pump"}
		c.Fix = map[string]interface{}{"deltaP": 1e5, "efficiency_pump": 0.8}
	})
	if m.Unit == nil {
		t.Fatal("missing pressure changer")
	}
	res, err := Run(context.Background(), m, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Final.Status != solver.Optimal {
		t.Fatalf("status %v", res.Final.Status)
	}
	if v := m.Outlet.Values(0)["pressure"]; different(v, 201325, 1e-8) {
		t.Errorf("outlet pressure %g", v)
	}
	if v, want := m.Unit.WorkFluid.Get(0).Value, 1e5/55200; different(v, want, 1e-3) {
		t.Errorf("fluid work %g, want %g", v, want)
	}
}

func TestPressureChangerBalanceTypes(t *testing.T) {
	m, _ := buildHeater(t, func(c *CaseConfig) {
		c.Model = "pressure_changer"
		c.PressureChanger = PressureChangerCase{
			ThermodynamicAssumption: "isothermal",
			MaterialBalance:         "componentTotal",
			MomentumBalance:         "none",
		}
		c.Fix = nil
	})
	if m.Unit.DeltaP != nil {
		t.Error("deltaP built without a momentum balance")
	}
	if m.Unit.WorkMechanical == nil {
		t.Error("missing work_mechanical")
	}
	if mbs, ok := m.CV.Block.Constraint("material_balances"); !ok || mbs.Len() != 2 {
		t.Error("want one material balance per component")
	}
}

func TestStreamTable(t *testing.T) {
	m, _ := buildHeater(t, nil)
	if _, err := Run(context.Background(), m, 0); err != nil {
		t.Fatal(err)
	}
	st := m.StreamTable()
	wantKeys := []string{"flow_mol", "mole_frac[methanol]", "mole_frac[water]", "pressure", "temperature"}
	if diff := pretty.Diff(st.Keys, wantKeys); len(diff) != 0 {
		t.Errorf("keys: %v", diff)
	}
	if v, ok := st.Value("inlet", 0, "pressure"); !ok || v != 101325 {
		t.Errorf("inlet pressure %g, %v", v, ok)
	}
	if _, ok := st.Value("recycle", 0, "pressure"); ok {
		t.Error("unknown stream should have no values")
	}

	var buf bytes.Buffer
	if err := st.Fprint(&buf); err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"t=0", "inlet", "outlet", "mole_frac[water]", "101325"} {
		if !strings.Contains(buf.String(), s) {
			t.Errorf("printed table is missing %q:\n%s", s, buf.String())
		}
	}

	dir, err := ioutil.TempDir("", "flowsheetutil")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	fname := filepath.Join(dir, "streams.xlsx")
	if err := WriteStreamTable(fname, st); err != nil {
		t.Fatal(err)
	}
	f, err := xlsx.OpenFile(fname)
	if err != nil {
		t.Fatal(err)
	}
	sheet, ok := f.Sheet["t=0"]
	if !ok {
		t.Fatal("missing sheet")
	}
	if len(sheet.Rows) != len(wantKeys)+1 {
		t.Fatalf("have %d rows, want %d", len(sheet.Rows), len(wantKeys)+1)
	}
	// Rows follow the sorted keys; pressure is the fourth.
	row := sheet.Rows[4]
	if row.Cells[0].Value != "pressure" || row.Cells[1].Value != "101325" {
		t.Errorf("pressure row %s %s", row.Cells[0].Value, row.Cells[1].Value)
	}
}

func TestCheck(t *testing.T) {
	m, hook := buildHeater(t, func(c *CaseConfig) { c.Inlet["temperature"] = 150.0 })
	if err := m.Inlet.Fix(flowsheet.StateArgs(m.Case.Inlet)); err != nil {
		t.Fatal(err)
	}
	Check(m)
	var errs int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			errs++
		}
	}
	if errs != 1 {
		t.Errorf("have %d errors, want 1", errs)
	}
}

func TestCommands(t *testing.T) {
	t.Run("version", func(t *testing.T) {
		var buf bytes.Buffer
		Root.SetOutput(&buf)
		Root.SetArgs([]string{"version"})
		if err := Root.Execute(); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), flowsheet.Version) {
			t.Errorf("output %q", buf.String())
		}
	})
	t.Run("run", func(t *testing.T) {
		dir, err := ioutil.TempDir("", "flowsheetutil")
		if err != nil {
			t.Fatal(err)
		}
		defer os.RemoveAll(dir)
		var buf bytes.Buffer
		Cfg.Set("config", heaterCase)
		Cfg.Set("xlsx", filepath.Join(dir, "out.xlsx"))
		Cfg.Set("plot", filepath.Join(dir, "conv.png"))
		defer Cfg.Set("xlsx", "")
		defer Cfg.Set("plot", "")
		Root.SetOutput(&buf)
		Root.SetArgs([]string{"run"})
		if err := Root.Execute(); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "case ") || !strings.Contains(buf.String(), "outlet") {
			t.Errorf("output is missing the stream table:\n%s", buf.String())
		}
		for _, f := range []string{"out.xlsx", "conv.png"} {
			if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
				t.Error(err)
			}
		}
	})
	t.Run("check", func(t *testing.T) {
		var buf bytes.Buffer
		Cfg.Set("config", heaterCase)
		Root.SetOutput(&buf)
		Root.SetArgs([]string{"check"})
		if err := Root.Execute(); err != nil {
			t.Fatal(err)
		}
	})
	t.Run("no case", func(t *testing.T) {
		Cfg.Set("config", "")
		Root.SetOutput(new(bytes.Buffer))
		Root.SetArgs([]string{"run"})
		if err := Root.Execute(); err == nil {
			t.Error("expected an error")
		}
	})
}
