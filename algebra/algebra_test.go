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

package algebra

import (
	"errors"
	"math"
	"testing"

	"github.com/kr/pretty"
)

func different(a, b, tolerance float64) bool {
	if a == b {
		return false
	}
	if math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return 2*math.Abs(a-b)/math.Abs(a+b) > tolerance
}

func TestExpr(t *testing.T) {
	x := NewVar("x", 2)
	y := NewVar("y", 3)

	t.Run("sum", func(t *testing.T) {
		e := Sum(x, Const(1), nil, Zero, y, Const(2))
		if v := e.Eval(); v != 8 {
			t.Errorf("have %g, want 8", v)
		}
		if Sum() != Zero {
			t.Error("empty sum should be zero")
		}
		if Sum(x) != Expr(x) {
			t.Error("single-term sum should be the term itself")
		}
	})
	t.Run("mul", func(t *testing.T) {
		e := Mul(Const(2), x, y)
		if v := e.Eval(); v != 12 {
			t.Errorf("have %g, want 12", v)
		}
		if !IsZero(Mul(x, Zero)) {
			t.Error("product with zero should fold to zero")
		}
		if !IsZero(Mul(x, nil)) {
			t.Error("product with nil should fold to zero")
		}
	})
	t.Run("sub_div", func(t *testing.T) {
		e := Div(Sub(x, y), Const(4))
		if v := e.Eval(); v != -0.25 {
			t.Errorf("have %g, want -0.25", v)
		}
		if !IsZero(Div(Zero, x)) {
			t.Error("zero numerator should fold to zero")
		}
	})
	t.Run("log_exp", func(t *testing.T) {
		e := Log(Exp(x))
		if different(e.Eval(), 2, 1e-12) {
			t.Errorf("have %g, want 2", e.Eval())
		}
	})
	t.Run("walk", func(t *testing.T) {
		var names []string
		Sum(Mul(x, y), Div(y, x)).Walk(func(v *Var) { names = append(names, v.Name) })
		want := []string{"x", "y", "y", "x"}
		if diff := pretty.Diff(names, want); len(diff) > 0 {
			t.Error(diff)
		}
	})
}

func TestKeys(t *testing.T) {
	k := Keys([]float64{0, 1}, []string{"p1", "p2"}, []string{"c1"})
	want := []Index{
		{Time: 0, A: "p1", B: "c1"},
		{Time: 0, A: "p2", B: "c1"},
		{Time: 1, A: "p1", B: "c1"},
		{Time: 1, A: "p2", B: "c1"},
	}
	if diff := pretty.Diff(k, want); len(diff) > 0 {
		t.Error(diff)
	}
	if s := Key(0, "p1", "c1").String(); s != "[0,p1,c1]" {
		t.Errorf("have %s", s)
	}
}

func TestBlockRegistry(t *testing.T) {
	fs := NewBlock("fs")
	cv, err := fs.AddBlock("cv")
	if err != nil {
		t.Fatal(err)
	}
	if cv.FullName() != "fs.cv" {
		t.Errorf("full name %s", cv.FullName())
	}
	v, err := cv.NewVar("volume", Keys([]float64{0}), 1)
	if err != nil {
		t.Fatal(err)
	}
	if v.Get(0).Name != "fs.cv.volume[0]" {
		t.Errorf("variable name %s", v.Get(0).Name)
	}
	if _, err := cv.NewVar("volume", Keys([]float64{0}), 1); !errors.Is(err, ErrDuplicate) {
		t.Errorf("re-adding a variable should be rejected, have %v", err)
	}
	c := NewIndexedConstraint("volume", Keys([]float64{0}), func(k Index) (Expr, Expr) {
		return v.At(k), Const(2)
	})
	if err := cv.AddConstraint(c); !errors.Is(err, ErrDuplicate) {
		t.Errorf("a constraint may not shadow a variable, have %v", err)
	}
	if _, ok := cv.Var("volume"); !ok {
		t.Error("volume should be registered")
	}
	if _, ok := cv.Constraint("volume"); ok {
		t.Error("volume is not a constraint")
	}
	if !fs.Has("cv") {
		t.Error("cv should be registered on fs")
	}
	t.Run("remove", func(t *testing.T) {
		if !fs.Remove("cv") {
			t.Fatal("cv was not removed")
		}
		if fs.Has("cv") || len(fs.Components()) != 0 {
			t.Errorf("fs still holds %v", fs.Components())
		}
		if cv.Parent() != nil {
			t.Error("removed block kept its parent")
		}
		if fs.Remove("cv") {
			t.Error("second removal should report false")
		}
		if _, err := fs.AddBlock("cv"); err != nil {
			t.Errorf("re-adding after removal: %v", err)
		}
	})
}

func TestIndexedConstraint(t *testing.T) {
	b := NewBlock("b")
	x, _ := b.NewVar("x", Keys([]float64{0}, []string{"a", "b", "c"}), 1)
	c := NewIndexedConstraint("eq", x.Keys(), func(k Index) (Expr, Expr) {
		if k.A == "b" {
			return nil, nil
		}
		return x.At(k), Const(3)
	})
	if err := b.AddConstraint(c); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 2 {
		t.Errorf("skipped members should not be built; have %d", c.Len())
	}
	if r := c.Get(0, "a").Residual(); r != -2 {
		t.Errorf("residual %g", r)
	}
	if b.NumActiveConstraints() != 2 {
		t.Error("both constraints should be active")
	}
	c.Deactivate()
	if c.Active() || b.NumActiveConstraints() != 0 {
		t.Error("constraints should be inactive")
	}
	c.Activate()
	if !c.Active() {
		t.Error("constraints should be active")
	}
}

func TestBackwardEuler(t *testing.T) {
	b := NewBlock("b")
	times := []float64{0, 0.5, 1}
	x, _ := b.NewVar("holdup", Keys(times, []string{"c1"}), 0)
	d := NewDerivative("accumulation", x)
	if err := b.AddVar(d); err != nil {
		t.Fatal(err)
	}
	disc, err := BackwardEuler(b, d, times)
	if err != nil {
		t.Fatal(err)
	}
	if disc.Len() != 2 {
		t.Errorf("have %d discretization equations, want 2", disc.Len())
	}
	x.Get(0, "c1").Value = 1
	x.Get(0.5, "c1").Value = 2
	d.Get(0.5, "c1").Value = 2
	if r := disc.Get(0.5, "c1").Residual(); r != 0 {
		t.Errorf("residual %g", r)
	}
	if _, err := BackwardEuler(b, x, times); err == nil {
		t.Error("should be an error")
	}
	if _, err := BackwardEuler(NewBlock("c"), d, []float64{1, 0}); err == nil {
		t.Error("should be an error")
	}
}

func TestParse(t *testing.T) {
	x := NewVar("x", 2)
	e, err := Parse("3*x + exp(0) + t", map[string]Expr{"x": x, "t": Const(0.5)})
	if err != nil {
		t.Fatal(err)
	}
	if different(e.Eval(), 7.5, 1e-12) {
		t.Errorf("have %g, want 7.5", e.Eval())
	}
	x.Value = 1
	if different(e.Eval(), 4.5, 1e-12) {
		t.Errorf("have %g, want 4.5", e.Eval())
	}
	var n int
	e.Walk(func(*Var) { n++ })
	if n != 1 {
		t.Errorf("walk visited %d variables", n)
	}

	c, err := Parse("2*3", nil)
	if err != nil {
		t.Fatal(err)
	}
	if c != Const(6) {
		t.Errorf("constant expressions should fold, have %v", c)
	}

	if _, err := Parse("y + 1", map[string]Expr{"x": x}); err == nil {
		t.Error("should be an error")
	}
	if _, err := Parse("(((", nil); err == nil {
		t.Error("should be an error")
	}
}
