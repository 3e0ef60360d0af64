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

// Package unitmodels holds unit operations built on flowsheet control
// volumes.
package unitmodels

import (
	"context"
	"fmt"

	"github.com/procsim/flowsheet"
	"github.com/procsim/flowsheet/algebra"
	"github.com/procsim/flowsheet/solver"
	"github.com/sirupsen/logrus"
)

// ThermodynamicAssumption selects how a PressureChanger relates its
// inlet and outlet energy.
type ThermodynamicAssumption int

// These are the supported assumptions.
const (
	Isentropic ThermodynamicAssumption = iota
	Isothermal
	Pump
	Adiabatic
)

func (a ThermodynamicAssumption) String() string {
	switch a {
	case Isentropic:
		return "isentropic"
	case Isothermal:
		return "isothermal"
	case Pump:
		return "pump"
	case Adiabatic:
		return "adiabatic"
	default:
		return fmt.Sprintf("ThermodynamicAssumption(%d)", int(a))
	}
}

// ParseThermodynamicAssumption returns the assumption named s.
func ParseThermodynamicAssumption(s string) (ThermodynamicAssumption, error) {
	for _, a := range []ThermodynamicAssumption{Isentropic, Isothermal, Pump, Adiabatic} {
		if a.String() == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unitmodels: invalid thermodynamic assumption %q", s)
}

// VolumetricFlower is implemented by state blocks that can report their
// volumetric flow. Pumps require it.
type VolumetricFlower interface {
	VolumetricFlow(t float64) algebra.Expr
}

// Entropier is implemented by state blocks that can report their molar
// entropy. Isentropic pressure changers require it.
type Entropier interface {
	MolarEntropy(t float64) algebra.Expr
}

// PressureChangerConfig holds the options of a PressureChanger.
type PressureChangerConfig struct {
	// Name defaults to "pressure_changer".
	Name string

	Dynamic, HasHoldup *bool

	PropertyPackage     flowsheet.PropertyParameters
	PropertyPackageArgs map[string]interface{}

	// The balance types default to ComponentPhase, EnthalpyTotal and
	// PressureTotal. Any of them may be set to none.
	MaterialBalanceType *flowsheet.MaterialBalanceType
	EnergyBalanceType   *flowsheet.EnergyBalanceType
	MomentumBalanceType *flowsheet.MomentumBalanceType

	HasPhaseEquilibrium bool

	// Expander selects a pressure decrease. The default is a compressor.
	Expander bool

	ThermodynamicAssumption ThermodynamicAssumption

	Log logrus.FieldLogger
}

// PressureChanger is a compressor, expander or pump.
type PressureChanger struct {
	Block *algebra.Block
	CV    *flowsheet.ControlVolume

	Inlet, Outlet *flowsheet.Port

	// DeltaP is nil without a momentum balance.
	DeltaP, RatioP *algebra.IndexedVar

	// WorkMechanical is nil without an energy balance.
	WorkMechanical *algebra.IndexedVar

	// Pump variables.
	WorkFluid, EfficiencyPump *algebra.IndexedVar

	// Isentropic variables.
	WorkIsentropic, EfficiencyIsentropic *algebra.IndexedVar
	PropertiesIsentropic                 flowsheet.StateBlock

	Log logrus.FieldLogger

	cfg        PressureChangerConfig
	time       []float64
	sfp, sfe   algebra.Expr
	isentropic *algebra.IndexedConstraint
}

func unitError(kind error, block, format string, a ...interface{}) error {
	return &flowsheet.Error{Kind: kind, Block: block, Msg: fmt.Sprintf(format, a...)}
}

// NewPressureChanger builds a pressure changer on fs. The energy balance
// carries a work term and the momentum balance a pressure change term.
func NewPressureChanger(fs *flowsheet.Flowsheet, cfg PressureChangerConfig) (*PressureChanger, error) {
	if cfg.Name == "" {
		cfg.Name = "pressure_changer"
	}
	if cfg.MaterialBalanceType == nil {
		mb := flowsheet.ComponentPhase
		cfg.MaterialBalanceType = &mb
	}
	if cfg.EnergyBalanceType == nil {
		eb := flowsheet.EnthalpyTotal
		cfg.EnergyBalanceType = &eb
	}
	if cfg.MomentumBalanceType == nil {
		pb := flowsheet.PressureTotal
		cfg.MomentumBalanceType = &pb
	}
	if cfg.Log == nil {
		cfg.Log = fs.Log
	}
	blk, err := fs.Model.AddBlock(cfg.Name)
	if err != nil {
		return nil, unitError(flowsheet.ErrConfiguration, fs.Model.FullName()+"."+cfg.Name, "%v", err)
	}
	log := cfg.Log.WithField("unit", blk.FullName())
	cv, err := fs.NewControlVolume(flowsheet.ControlVolumeConfig{
		Name:                "control_volume",
		Parent:              blk,
		Dynamic:             cfg.Dynamic,
		HasHoldup:           cfg.HasHoldup,
		PropertyPackage:     cfg.PropertyPackage,
		PropertyPackageArgs: cfg.PropertyPackageArgs,
		Log:                 log,
	})
	if err != nil {
		return nil, err
	}
	u := &PressureChanger{Block: blk, CV: cv, Log: log, cfg: cfg, time: cv.Time}
	if err := u.build(); err != nil {
		return nil, err
	}
	fs.AddUnit(u)
	return u, nil
}

func (u *PressureChanger) build() error {
	cv := u.CV
	if cv.HasHoldup {
		if err := cv.AddGeometry(); err != nil {
			return err
		}
	}
	if err := cv.AddStateBlocks(flowsheet.StateBlockOptions{
		HasPhaseEquilibrium: flowsheet.Bool(u.cfg.HasPhaseEquilibrium),
	}); err != nil {
		return err
	}
	if _, err := cv.AddMaterialBalances(*u.cfg.MaterialBalanceType, flowsheet.MaterialBalanceOptions{
		HasPhaseEquilibrium: u.cfg.HasPhaseEquilibrium,
	}); err != nil {
		return err
	}
	if _, err := cv.AddEnergyBalances(*u.cfg.EnergyBalanceType, flowsheet.EnergyBalanceOptions{
		HasWorkTransfer: true,
	}); err != nil {
		return err
	}
	if _, err := cv.AddMomentumBalances(*u.cfg.MomentumBalanceType, flowsheet.MomentumBalanceOptions{
		HasPressureChange: true,
	}); err != nil {
		return err
	}
	var err error
	if u.Inlet, err = cv.AddInletPort(); err != nil {
		return err
	}
	if u.Outlet, err = cv.AddOutletPort(); err != nil {
		return err
	}
	if err = u.addPerformance(); err != nil {
		return err
	}
	a := u.cfg.ThermodynamicAssumption
	if (a == Pump || a == Isentropic) && u.WorkMechanical == nil {
		return unitError(flowsheet.ErrConfiguration, u.Name(),
			"%v pressure changers require an energy balance with a work term", a)
	}
	switch a {
	case Isothermal:
		return u.addIsothermal()
	case Pump:
		return u.addPump()
	case Isentropic:
		return u.addIsentropic()
	case Adiabatic:
		return u.addAdiabatic()
	}
	return unitError(flowsheet.ErrConfiguration, u.Name(), "invalid thermodynamic assumption %v", a)
}

func scalar(iv *algebra.IndexedVar) algebra.Expr { return iv.At(algebra.Index{}) }

func (u *PressureChanger) addPerformance() error {
	cv := u.CV
	u.DeltaP, _ = cv.Block.Var("deltaP")
	u.WorkMechanical, _ = cv.Block.Var("work")
	u.sfp = algebra.Const(flowsheet.DefaultPressureScaling)
	if sfp, ok := cv.Block.Var("scaling_factor_pressure"); ok {
		u.sfp = scalar(sfp)
	}
	u.sfe = algebra.Const(flowsheet.DefaultEnergyScaling)
	if sfe, ok := cv.Block.Var("scaling_factor_energy"); ok {
		u.sfe = scalar(sfe)
	}
	var err error
	if u.RatioP, err = u.Block.NewVar("ratioP", algebra.Keys(u.time), 1); err != nil {
		return err
	}
	return u.Block.AddConstraint(algebra.NewIndexedConstraint("ratioP_calculation", algebra.Keys(u.time),
		func(k algebra.Index) (algebra.Expr, algebra.Expr) {
			return algebra.Mul(u.sfp, u.RatioP.At(k), cv.PropertiesIn.Pressure(k.Time)),
				algebra.Mul(u.sfp, cv.PropertiesOut.Pressure(k.Time))
		}))
}

func (u *PressureChanger) addIsothermal() error {
	cv := u.CV
	return u.Block.AddConstraint(algebra.NewIndexedConstraint("isothermal", algebra.Keys(u.time),
		func(k algebra.Index) (algebra.Expr, algebra.Expr) {
			return cv.PropertiesIn.Temperature(k.Time), cv.PropertiesOut.Temperature(k.Time)
		}))
}

// materialFlow is the total material flow of sb in its flow basis.
func materialFlow(sb flowsheet.StateBlock, pp flowsheet.PropertyParameters, t float64) algebra.Expr {
	var terms []algebra.Expr
	for _, p := range pp.Phases() {
		for _, j := range pp.Components() {
			terms = append(terms, sb.MaterialFlowTerm(t, p, j))
		}
	}
	return algebra.Sum(terms...)
}

// addAdiabatic equates the inlet and outlet enthalpy per unit of
// material, cross-multiplied by the flows.
func (u *PressureChanger) addAdiabatic() error {
	cv := u.CV
	pp := cv.PropertyPackage()
	phases := pp.Phases()
	return u.Block.AddConstraint(algebra.NewIndexedConstraint("adiabatic", algebra.Keys(u.time),
		func(k algebra.Index) (algebra.Expr, algebra.Expr) {
			in, out := cv.PropertiesIn, cv.PropertiesOut
			return algebra.Mul(u.sfe, enthalpyFlow(in, phases, k.Time), materialFlow(out, pp, k.Time)),
				algebra.Mul(u.sfe, enthalpyFlow(out, phases, k.Time), materialFlow(in, pp, k.Time))
		}))
}

// actualWork relates the mechanical work to the ideal work through an
// efficiency. Compressors need more work than the ideal; expanders
// deliver less.
func (u *PressureChanger) actualWork(ideal, eff *algebra.IndexedVar) error {
	return u.Block.AddConstraint(algebra.NewIndexedConstraint("actual_work", algebra.Keys(u.time),
		func(k algebra.Index) (algebra.Expr, algebra.Expr) {
			if u.cfg.Expander {
				return algebra.Mul(u.sfe, u.WorkMechanical.At(k)),
					algebra.Mul(u.sfe, ideal.At(k), eff.At(k))
			}
			return algebra.Mul(u.sfe, ideal.At(k)),
				algebra.Mul(u.sfe, u.WorkMechanical.At(k), eff.At(k))
		}))
}

func (u *PressureChanger) addPump() error {
	vf, ok := u.CV.PropertiesOut.(VolumetricFlower)
	if !ok {
		return unitError(flowsheet.ErrPropertyNotSupported, u.Name(),
			"pumps require a property package that provides volumetric flow")
	}
	keys := algebra.Keys(u.time)
	var err error
	if u.WorkFluid, err = u.Block.NewVar("work_fluid", keys, 1); err != nil {
		return err
	}
	if u.EfficiencyPump, err = u.Block.NewVar("efficiency_pump", keys, 1); err != nil {
		return err
	}
	if err = u.Block.AddConstraint(algebra.NewIndexedConstraint("fluid_work_calculation", keys,
		func(k algebra.Index) (algebra.Expr, algebra.Expr) {
			rise := algebra.Sub(u.CV.PropertiesOut.Pressure(k.Time), u.CV.PropertiesIn.Pressure(k.Time))
			return u.WorkFluid.At(k), algebra.Mul(rise, vf.VolumetricFlow(k.Time))
		})); err != nil {
		return err
	}
	return u.actualWork(u.WorkFluid, u.EfficiencyPump)
}

func enthalpyFlow(sb flowsheet.StateBlock, phases []string, t float64) algebra.Expr {
	var terms []algebra.Expr
	for _, p := range phases {
		terms = append(terms, sb.EnthalpyFlowTerm(t, p))
	}
	return algebra.Sum(terms...)
}

func (u *PressureChanger) addIsentropic() error {
	cv := u.CV
	pp := cv.PropertyPackage()
	sIn, ok1 := cv.PropertiesIn.(Entropier)
	keys := algebra.Keys(u.time)
	var err error
	if u.EfficiencyIsentropic, err = u.Block.NewVar("efficiency_isentropic", keys, 0.8); err != nil {
		return err
	}
	if u.WorkIsentropic, err = u.Block.NewVar("work_isentropic", keys, 0); err != nil {
		return err
	}
	b, err := u.Block.AddBlock("properties_isentropic")
	if err != nil {
		return unitError(flowsheet.ErrConfiguration, u.Name(), "%v", err)
	}
	if u.PropertiesIsentropic, err = pp.NewStateBlock(b, flowsheet.StateBlockConfig{
		Times:               u.time,
		HasPhaseEquilibrium: u.cfg.HasPhaseEquilibrium,
		Args:                u.cfg.PropertyPackageArgs,
		Log:                 u.Log,
	}); err != nil {
		return err
	}
	sIsen, ok2 := u.PropertiesIsentropic.(Entropier)
	if !ok1 || !ok2 {
		return unitError(flowsheet.ErrPropertyNotSupported, u.Name(),
			"isentropic pressure changers require a property package that provides entropy")
	}
	isen, out, in := u.PropertiesIsentropic, cv.PropertiesOut, cv.PropertiesIn
	phases := pp.Phases()

	cons := []*algebra.IndexedConstraint{
		algebra.NewIndexedConstraint("isentropic_pressure", keys,
			func(k algebra.Index) (algebra.Expr, algebra.Expr) {
				return algebra.Mul(u.sfp, isen.Pressure(k.Time)), algebra.Mul(u.sfp, out.Pressure(k.Time))
			}),
		algebra.NewIndexedConstraint("isentropic_material", algebra.Keys(u.time, pp.Components()),
			func(k algebra.Index) (algebra.Expr, algebra.Expr) {
				var lhs, rhs []algebra.Expr
				for _, p := range phases {
					lhs = append(lhs, isen.MaterialFlowTerm(k.Time, p, k.A))
					rhs = append(rhs, out.MaterialFlowTerm(k.Time, p, k.A))
				}
				return algebra.Sum(lhs...), algebra.Sum(rhs...)
			}),
		algebra.NewIndexedConstraint("isentropic", keys,
			func(k algebra.Index) (algebra.Expr, algebra.Expr) {
				return sIsen.MolarEntropy(k.Time), sIn.MolarEntropy(k.Time)
			}),
		algebra.NewIndexedConstraint("isentropic_energy_balance", keys,
			func(k algebra.Index) (algebra.Expr, algebra.Expr) {
				return algebra.Mul(u.sfe, u.WorkIsentropic.At(k)),
					algebra.Mul(u.sfe, algebra.Sub(enthalpyFlow(isen, phases, k.Time), enthalpyFlow(in, phases, k.Time)))
			}),
	}
	u.isentropic = cons[2]
	for _, c := range cons {
		if err := u.Block.AddConstraint(c); err != nil {
			return err
		}
	}
	return u.actualWork(u.WorkIsentropic, u.EfficiencyIsentropic)
}

// Name implements flowsheet.Unit.
func (u *PressureChanger) Name() string { return u.Block.FullName() }

// Initialize initializes the control volume, holding the inlet state,
// and then solves the whole unit. For isentropic units the isentropic
// state starts from the outlet state and the unit is first solved
// without the isentropic constraint. The inlet state is released before
// returning.
func (u *PressureChanger) Initialize(ctx context.Context, o flowsheet.InitializeOptions) error {
	flags, err := u.CV.Initialize(ctx, o)
	if err != nil {
		return err
	}
	defer u.CV.ReleaseState(flags)
	s := o.Solver
	if s == nil {
		s = &solver.Newton{Verbosity: o.OutputLevel, Log: u.Log}
	}
	solve := func(stage string) error {
		r, err := s.Solve(ctx, u.Block)
		if err != nil {
			return err
		}
		log := u.Log.WithFields(logrus.Fields{"stage": stage, "status": r.Status, "iterations": r.Iterations})
		if r.Status != solver.Optimal {
			log.Warn("solve did not converge")
		} else if o.OutputLevel > 0 {
			log.Info("solve complete")
		}
		return nil
	}
	if u.isentropic != nil {
		copyState(u.PropertiesIsentropic, u.CV.PropertiesOut)
		u.isentropic.Deactivate()
		err = solve("initialization step 3")
		u.isentropic.Activate()
		if err != nil {
			return err
		}
	}
	return solve("initialization step 4")
}

// copyState copies the values of the state variables of src to dst.
func copyState(dst, src flowsheet.StateBlock) {
	dv, sv := dst.StateVars(), src.StateVars()
	for i := range dv {
		if i >= len(sv) {
			return
		}
		sv[i].Each(func(k algebra.Index, v *algebra.Var) {
			if d := dv[i].At(k); d != nil && !d.Fixed {
				d.Value = v.Value
			}
		})
	}
}

// ModelCheck warns about specifications that contradict the compressor
// or expander setting and then checks the control volume.
func (u *PressureChanger) ModelCheck(log logrus.FieldLogger) {
	log = log.WithField("unit", u.Name())
	sign := 1.0
	kind := "compressor"
	if u.cfg.Expander {
		sign, kind = -1, "expander"
	}
	anyFixed := func(iv *algebra.IndexedVar, bad func(float64) bool) bool {
		if iv == nil {
			return false
		}
		var found bool
		iv.Each(func(_ algebra.Index, v *algebra.Var) {
			found = found || (v.Fixed && bad(v.Value))
		})
		return found
	}
	if anyFixed(u.DeltaP, func(v float64) bool { return sign*v < 0 }) {
		log.Warnf("%s set with deltaP of the wrong sign", kind)
	}
	if anyFixed(u.RatioP, func(v float64) bool { return sign*(v-1) < 0 }) {
		log.Warnf("%s set with ratioP on the wrong side of 1", kind)
	}
	for _, t := range u.time {
		pOut := u.CV.PropertiesOut.Pressure(t)
		var fixed bool
		pOut.Walk(func(v *algebra.Var) { fixed = fixed || v.Fixed })
		if fixed && sign*(pOut.Eval()-u.CV.PropertiesIn.Pressure(t).Eval()) < 0 {
			log.Warnf("%s set with outlet pressure on the wrong side of inlet pressure", kind)
			break
		}
	}
	if anyFixed(u.WorkMechanical, func(v float64) bool { return sign*v < 0 }) {
		log.Warnf("%s set with work of the wrong sign", kind)
	}
	u.CV.ModelCheck()
	if mc, ok := u.PropertiesIsentropic.(flowsheet.ModelChecker); ok {
		mc.ModelCheck(log)
	}
}
