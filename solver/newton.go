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

// Package solver solves the active equality constraints of a model block
// for its free variables.
package solver

import (
	"context"
	"fmt"
	"math"

	"github.com/procsim/flowsheet/algebra"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Status is the termination status of a solve.
type Status int

// These are the possible termination statuses. Only Optimal indicates
// that the constraints are satisfied to tolerance.
const (
	Optimal Status = iota
	MaxIterations
	Singular
	Diverged
	Infeasible
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case MaxIterations:
		return "maxIterations"
	case Singular:
		return "singular"
	case Diverged:
		return "diverged"
	case Infeasible:
		return "infeasible"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result describes the outcome of a solve.
type Result struct {
	Status     Status
	Iterations int

	// Residual is the largest absolute constraint residual at
	// termination.
	Residual float64

	// History holds Residual at the start of each iteration.
	History []float64

	NumVars, NumConstraints int
}

// Newton is a damped Newton solver. For systems that are not square
// each step is the least-squares (or minimum-norm) solution of the
// linearized equations.
type Newton struct {
	// Tolerance is the largest absolute residual accepted as converged.
	// The default is 1e-8.
	Tolerance float64

	// MaxIter is the maximum number of iterations. The default is 100.
	MaxIter int

	// Verbosity above 1 logs every iteration.
	Verbosity int

	Log logrus.FieldLogger
}

func (n *Newton) defaults() (tol float64, maxIter int, log logrus.FieldLogger) {
	tol, maxIter, log = n.Tolerance, n.MaxIter, n.Log
	if tol <= 0 {
		tol = 1e-8
	}
	if maxIter <= 0 {
		maxIter = 100
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return
}

// Solve adjusts the free variables referenced by the active constraints
// of blk and its descendants until the constraints are satisfied. The
// outcome is reported in the Result status; an error is only returned
// if ctx is cancelled.
func (n *Newton) Solve(ctx context.Context, blk *algebra.Block) (Result, error) {
	tol, maxIter, log := n.defaults()
	log = log.WithField("block", blk.FullName())

	cons := blk.ActiveConstraints()
	vars := freeVars(cons)
	r := Result{NumVars: len(vars), NumConstraints: len(cons)}
	if len(cons) == 0 {
		r.Status = Optimal
		return r, nil
	}

	x := make([]float64, len(vars))
	for i, v := range vars {
		x[i] = v.Value
	}
	set := func(x []float64) {
		for i, v := range vars {
			v.Value = x[i]
		}
	}
	f := func(y, x []float64) {
		set(x)
		for i, c := range cons {
			y[i] = c.Residual()
		}
	}

	F := make([]float64, len(cons))
	f(F, x)
	norm := floats.Norm(F, math.Inf(1))

	if len(vars) == 0 {
		r.Residual = norm
		r.Status = Infeasible
		if norm <= tol {
			r.Status = Optimal
		}
		return r, nil
	}

	J := mat.NewDense(len(cons), len(vars), nil)
	xNew := make([]float64, len(x))
	FNew := make([]float64, len(F))
	negF := make([]float64, len(F))
	for r.Iterations = 0; ; r.Iterations++ {
		if err := ctx.Err(); err != nil {
			set(x)
			r.Residual = norm
			return r, err
		}
		r.History = append(r.History, norm)
		if n.Verbosity > 1 {
			log.WithFields(logrus.Fields{"iteration": r.Iterations, "residual": norm}).Info("newton")
		}
		done := true
		switch {
		case math.IsNaN(norm) || math.IsInf(norm, 0):
			r.Status = Diverged
		case norm <= tol:
			r.Status = Optimal
		case r.Iterations >= maxIter:
			r.Status = MaxIterations
		default:
			done = false
		}
		if done {
			break
		}

		fd.Jacobian(J, f, x, &fd.JacobianSettings{Formula: fd.Central})
		floats.ScaleTo(negF, -1, F)
		var dx mat.VecDense
		if err := dx.SolveVec(J, mat.NewVecDense(len(negF), negF)); err != nil {
			if c, ok := err.(mat.Condition); !ok || math.IsInf(float64(c), 1) {
				set(x)
				r.Status = Singular
				break
			}
		}

		// Backtrack until the residual decreases, taking the shortest
		// step if it never does.
		for alpha := 1.0; ; alpha /= 2 {
			for i := range x {
				xNew[i] = clamp(x[i]+alpha*dx.AtVec(i), vars[i])
			}
			f(FNew, xNew)
			if nn := floats.Norm(FNew, math.Inf(1)); nn < norm || alpha <= minStep {
				copy(x, xNew)
				copy(F, FNew)
				norm = nn
				break
			}
		}
	}
	set(x)
	r.Residual = norm
	if r.Status != Optimal {
		log.WithFields(logrus.Fields{
			"status":     r.Status,
			"iterations": r.Iterations,
			"residual":   norm,
		}).Debug("solve did not converge")
	}
	return r, nil
}

const minStep = 1.0 / 1024

func clamp(x float64, v *algebra.Var) float64 {
	return math.Max(v.Lower, math.Min(v.Upper, x))
}

// freeVars returns the unique free variables referenced by cons, in
// the order they are first encountered.
func freeVars(cons []*algebra.Constraint) []*algebra.Var {
	seen := make(map[*algebra.Var]bool)
	var o []*algebra.Var
	for _, c := range cons {
		c.Body.Walk(func(v *algebra.Var) {
			if v.Fixed || seen[v] {
				return
			}
			seen[v] = true
			o = append(o, v)
		})
	}
	return o
}
