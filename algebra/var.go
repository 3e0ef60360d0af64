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
	"fmt"
	"math"
	"strings"
)

// Var is a scalar decision variable.
type Var struct {
	Name  string
	Value float64

	// Fixed variables are treated as constants by solvers.
	Fixed bool

	// Lower and Upper are the variable bounds. They default to
	// negative and positive infinity.
	Lower, Upper float64
}

// NewVar returns an unbounded variable with the given initial value.
func NewVar(name string, init float64) *Var {
	return &Var{Name: name, Value: init, Lower: math.Inf(-1), Upper: math.Inf(1)}
}

// Fix sets the value of v and marks it as fixed.
func (v *Var) Fix(value float64) {
	v.Value = value
	v.Fixed = true
}

// Unfix marks v as free.
func (v *Var) Unfix() { v.Fixed = false }

// Eval implements Expr.
func (v *Var) Eval() float64 { return v.Value }

// Walk implements Expr.
func (v *Var) Walk(f func(*Var)) { f(v) }

func (v *Var) String() string { return v.Name }

// SetBounds sets the lower and upper bounds of v.
func (v *Var) SetBounds(lower, upper float64) {
	v.Lower, v.Upper = lower, upper
}

// InBounds reports whether the value of v lies within its bounds.
func (v *Var) InBounds() bool {
	return v.Value >= v.Lower && v.Value <= v.Upper
}

// Index identifies a member of an indexed family by time and up to two
// set labels, for example (t, phase, component).
type Index struct {
	Time float64
	A, B string
}

// Key returns the Index for time t and the given labels. At most two
// labels may be given.
func Key(t float64, labels ...string) Index {
	k := Index{Time: t}
	switch len(labels) {
	case 0:
	case 1:
		k.A = labels[0]
	case 2:
		k.A, k.B = labels[0], labels[1]
	default:
		panic(fmt.Errorf("algebra: index has %d labels; at most 2 are allowed", len(labels)))
	}
	return k
}

// Labels returns the non-empty set labels of k.
func (k Index) Labels() []string {
	switch {
	case k.A == "":
		return nil
	case k.B == "":
		return []string{k.A}
	}
	return []string{k.A, k.B}
}

// WithTime returns a copy of k at time t.
func (k Index) WithTime(t float64) Index {
	k.Time = t
	return k
}

func (k Index) String() string {
	return "[" + strings.Join(append([]string{fmt.Sprintf("%g", k.Time)}, k.Labels()...), ",") + "]"
}

// Keys returns the cross product of times and the given label sets,
// in order.
func Keys(times []float64, sets ...[]string) []Index {
	var o []Index
	switch len(sets) {
	case 0:
		for _, t := range times {
			o = append(o, Key(t))
		}
	case 1:
		for _, t := range times {
			for _, a := range sets[0] {
				o = append(o, Key(t, a))
			}
		}
	case 2:
		for _, t := range times {
			for _, a := range sets[0] {
				for _, b := range sets[1] {
					o = append(o, Key(t, a, b))
				}
			}
		}
	default:
		panic(fmt.Errorf("algebra: %d index sets given; at most 2 are allowed", len(sets)))
	}
	return o
}

// IndexedVar is an ordered family of variables.
type IndexedVar struct {
	Name string
	Doc  string

	// DerivativeOf is set when this family holds the time derivatives
	// of another family.
	DerivativeOf *IndexedVar

	keys []Index
	vars map[Index]*Var
}

// NewIndexedVar creates a family with one variable per key, each
// initialized to init.
func NewIndexedVar(name string, keys []Index, init float64) *IndexedVar {
	iv := &IndexedVar{
		Name: name,
		keys: keys,
		vars: make(map[Index]*Var, len(keys)),
	}
	for _, k := range keys {
		iv.vars[k] = NewVar(name+k.String(), init)
	}
	return iv
}

// NewDerivative creates a family holding the time derivatives of of.
func NewDerivative(name string, of *IndexedVar) *IndexedVar {
	d := NewIndexedVar(name, of.keys, 0)
	d.DerivativeOf = of
	return d
}

// At returns the variable at k, or nil if k is not in the family.
func (iv *IndexedVar) At(k Index) *Var { return iv.vars[k] }

// Get is shorthand for At(Key(t, labels...)).
func (iv *IndexedVar) Get(t float64, labels ...string) *Var {
	return iv.vars[Key(t, labels...)]
}

// Keys returns the keys of the family in creation order.
func (iv *IndexedVar) Keys() []Index { return iv.keys }

// Len returns the number of members.
func (iv *IndexedVar) Len() int { return len(iv.keys) }

// Each calls f for each member in order.
func (iv *IndexedVar) Each(f func(Index, *Var)) {
	for _, k := range iv.keys {
		f(k, iv.vars[k])
	}
}

// FixAll fixes every member at its current value.
func (iv *IndexedVar) FixAll() {
	for _, v := range iv.vars {
		v.Fixed = true
	}
}

// UnfixAll frees every member.
func (iv *IndexedVar) UnfixAll() {
	for _, v := range iv.vars {
		v.Fixed = false
	}
}

// SetValue sets the value of every member.
func (iv *IndexedVar) SetValue(value float64) {
	for _, v := range iv.vars {
		v.Value = value
	}
}

// SetBounds sets the bounds of every member.
func (iv *IndexedVar) SetBounds(lower, upper float64) {
	for _, v := range iv.vars {
		v.SetBounds(lower, upper)
	}
}

func (iv *IndexedVar) component() string { return "var" }
