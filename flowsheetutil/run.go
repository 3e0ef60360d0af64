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
	"context"
	"fmt"

	"github.com/procsim/flowsheet"
	"github.com/procsim/flowsheet/algebra"
	"github.com/procsim/flowsheet/internal/hash"
	"github.com/procsim/flowsheet/solver"
	"github.com/sirupsen/logrus"
)

// recorder passes solves through to a solver and keeps their convergence
// histories.
type recorder struct {
	s         flowsheet.Solver
	names     []string
	histories [][]float64
}

func (r *recorder) Solve(ctx context.Context, b *algebra.Block) (solver.Result, error) {
	res, err := r.s.Solve(ctx, b)
	r.names = append(r.names, fmt.Sprintf("%d %s", len(r.names)+1, b.Name()))
	r.histories = append(r.histories, res.History)
	return res, err
}

// Result is the outcome of Run.
type Result struct {
	// Case is the fingerprint of the case that was solved.
	Case string

	// Final is the result of the solve of the whole flowsheet.
	Final solver.Result

	// Names and Histories hold the convergence histories of every
	// solve, in order.
	Names     []string
	Histories [][]float64
}

// Run fixes the inlet conditions and specifications of m, initializes
// the unit and then solves the whole flowsheet.
func Run(ctx context.Context, m *Model, outputLevel int) (*Result, error) {
	log := m.Flowsheet.Log
	rec := &recorder{s: &solver.Newton{Verbosity: outputLevel, Log: log}}
	args := flowsheet.StateArgs(m.Case.Inlet)
	if err := m.Inlet.Fix(args); err != nil {
		return nil, err
	}
	if err := m.FixSpecifications(); err != nil {
		return nil, err
	}
	o := flowsheet.InitializeOptions{StateArgs: args, OutputLevel: outputLevel, Solver: rec}
	if m.Unit != nil {
		if err := m.Unit.Initialize(ctx, o); err != nil {
			return nil, err
		}
	} else {
		flags, err := m.CV.Initialize(ctx, o)
		if err != nil {
			return nil, err
		}
		m.CV.ReleaseState(flags)
	}
	res, err := rec.Solve(ctx, m.Flowsheet.Model)
	if err != nil {
		return nil, err
	}
	entry := log.WithFields(logrus.Fields{
		"case":       m.Fingerprint(),
		"status":     res.Status,
		"iterations": res.Iterations,
		"residual":   res.Residual,
	})
	if res.Status != solver.Optimal {
		entry.Warn("flowsheet solve did not converge")
	} else if outputLevel > 0 {
		entry.Info("flowsheet solve complete")
	}
	return &Result{Case: m.Fingerprint(), Final: res, Names: rec.names, Histories: rec.histories}, nil
}

// Check runs the model checks of m.
func Check(m *Model) {
	if m.Unit != nil {
		m.Flowsheet.ModelCheck()
		return
	}
	m.CV.ModelCheck()
}

// StreamTable returns the inlet and outlet stream table of m.
func (m *Model) StreamTable() *StreamTable {
	return NewStreamTable(m.Flowsheet.Time, m.Inlet, m.Outlet)
}

// Fingerprint returns a hash of the case of m. Cases that differ only in
// the order of their tables have the same fingerprint.
func (m *Model) Fingerprint() string { return hash.Hash(m.Case) }
