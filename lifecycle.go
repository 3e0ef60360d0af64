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
	"context"

	"github.com/procsim/flowsheet/algebra"
	"github.com/procsim/flowsheet/solver"
	"github.com/sirupsen/logrus"
)

// Solver solves the active constraints of a block.
type Solver interface {
	Solve(ctx context.Context, blk *algebra.Block) (solver.Result, error)
}

// InitializeOptions holds the options of ControlVolume.Initialize.
type InitializeOptions struct {
	// StateArgs holds initial values for the state variables.
	StateArgs StateArgs

	// OutputLevel is 0 for warnings only, 1 to also log the outcome of
	// every solve and 2 to also log solver iterations.
	OutputLevel int

	// Solver defaults to a solver.Newton.
	Solver Solver
}

// Initialize fixes the state at the inlet and outlet, solves the state
// and reaction blocks and then frees the outlet state again. Phase
// equilibrium constraints are left out of a first solve and included in
// a second. The returned flags record which inlet state variables this
// call fixed; pass them to ReleaseState once the unit has been solved.
//
// Solves that do not converge are logged, not returned as errors.
func (cv *ControlVolume) Initialize(ctx context.Context, o InitializeOptions) (*StateFlags, error) {
	if cv.PropertiesIn == nil {
		return nil, cv.errorf(ErrConfiguration, "state blocks must be added before initialization")
	}
	s := o.Solver
	if s == nil {
		s = &solver.Newton{Verbosity: o.OutputLevel, Log: cv.Log}
	}
	inlet, outlet := cv.inletState(), cv.outletState()

	flags, err := FixState(inlet, o.StateArgs)
	if err != nil {
		return nil, err
	}
	outFlags, err := FixState(outlet, o.StateArgs)
	if err != nil {
		flags.Release()
		return nil, err
	}
	defer outFlags.Release()

	var norms, flash []*algebra.IndexedConstraint
	for _, sb := range []StateBlock{inlet, outlet} {
		if n, ok := sb.(Normalizer); ok {
			norms = append(norms, active(n.NormalizationConstraints())...)
		}
		if f, ok := sb.(Flasher); ok {
			flash = append(flash, active(f.EquilibriumConstraints())...)
		}
	}
	setActive(norms, false)
	defer setActive(norms, true)

	blocks := []*algebra.Block{inlet.Block(), outlet.Block()}
	if cv.Reactions != nil {
		blocks = append(blocks, cv.Reactions.Block())
	}
	solve := func(stage string) error {
		for _, b := range blocks {
			r, err := s.Solve(ctx, b)
			if err != nil {
				return err
			}
			cv.logSolve(o.OutputLevel, stage, b, r)
		}
		return nil
	}

	if len(flash) > 0 {
		setActive(flash, false)
		err = solve("initialization step 1")
		setActive(flash, true)
		if err != nil {
			flags.Release()
			return nil, err
		}
	}
	if err = solve("initialization step 2"); err != nil {
		flags.Release()
		return nil, err
	}
	cv.advance(Initialized)
	if o.OutputLevel > 0 {
		cv.Log.WithField("fixed", flags.Len()).Info("initialization complete")
	}
	return flags, nil
}

func (cv *ControlVolume) logSolve(level int, stage string, b *algebra.Block, r solver.Result) {
	l := cv.Log.WithFields(logrus.Fields{
		"stage":      stage,
		"sub_block":  b.Name(),
		"status":     r.Status,
		"iterations": r.Iterations,
		"residual":   r.Residual,
	})
	if r.Status != solver.Optimal {
		l.Warn("solve did not converge")
		return
	}
	if level > 0 {
		l.Info("solve converged")
	}
}

func active(cons []*algebra.IndexedConstraint) []*algebra.IndexedConstraint {
	var o []*algebra.IndexedConstraint
	for _, c := range cons {
		if c.Active() {
			o = append(o, c)
		}
	}
	return o
}

func setActive(cons []*algebra.IndexedConstraint, on bool) {
	for _, c := range cons {
		if on {
			c.Activate()
		} else {
			c.Deactivate()
		}
	}
}

// ReleaseState unfixes the variables recorded in flags. Variables that
// were fixed before Initialize was called stay fixed.
func (cv *ControlVolume) ReleaseState(flags *StateFlags) {
	n := flags.Len()
	flags.Release()
	if cv.stage >= Initialized {
		cv.stage = Released
	}
	cv.Log.WithField("released", n).Debug("released state")
}

// ModelCheck runs the model checks of the state and reaction blocks and
// logs fixed variables of cv that are out of bounds. Problems are only
// logged.
func (cv *ControlVolume) ModelCheck() {
	type sub struct {
		name string
		v    interface{}
	}
	var subs []sub
	if cv.PropertiesIn != nil {
		subs = append(subs, sub{"properties_in", cv.PropertiesIn}, sub{"properties_out", cv.PropertiesOut})
	}
	if cv.Reactions != nil {
		subs = append(subs, sub{"reactions", cv.Reactions})
	}
	for _, s := range subs {
		log := cv.Log.WithField("sub_block", s.name)
		if mc, ok := s.v.(ModelChecker); ok {
			mc.ModelCheck(log)
			continue
		}
		log.Warn("sub-block has no model check")
	}
	for _, iv := range cv.Block.Vars() {
		iv.Each(func(k algebra.Index, v *algebra.Var) {
			if v.Fixed && !v.InBounds() {
				cv.Log.WithFields(logrus.Fields{
					"var":   v.Name,
					"value": v.Value,
					"lower": v.Lower,
					"upper": v.Upper,
				}).Error("fixed variable is out of bounds")
			}
		})
	}
}
