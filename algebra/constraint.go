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

// Constraint is an equality constraint in residual form, Body == 0.
type Constraint struct {
	Name   string
	Body   Expr
	Active bool
}

// Eq returns a constraint enforcing lhs == rhs.
func Eq(name string, lhs, rhs Expr) *Constraint {
	return &Constraint{Name: name, Body: Sub(lhs, rhs), Active: true}
}

// Residual returns the current value of the constraint body.
func (c *Constraint) Residual() float64 { return c.Body.Eval() }

// Rule builds the constraint for one member of an indexed family.
// Returning nil for both sides skips that member.
type Rule func(k Index) (lhs, rhs Expr)

// IndexedConstraint is an ordered family of constraints.
type IndexedConstraint struct {
	Name string
	Doc  string

	keys []Index
	cons map[Index]*Constraint
}

// NewIndexedConstraint builds a constraint family by applying rule to
// every key.
func NewIndexedConstraint(name string, keys []Index, rule Rule) *IndexedConstraint {
	ic := &IndexedConstraint{
		Name: name,
		cons: make(map[Index]*Constraint, len(keys)),
	}
	for _, k := range keys {
		lhs, rhs := rule(k)
		if lhs == nil && rhs == nil {
			continue
		}
		ic.keys = append(ic.keys, k)
		ic.cons[k] = Eq(name+k.String(), orZero(lhs), orZero(rhs))
	}
	return ic
}

func orZero(e Expr) Expr {
	if e == nil {
		return Zero
	}
	return e
}

// At returns the constraint at k, or nil.
func (ic *IndexedConstraint) At(k Index) *Constraint { return ic.cons[k] }

// Get is shorthand for At(Key(t, labels...)).
func (ic *IndexedConstraint) Get(t float64, labels ...string) *Constraint {
	return ic.cons[Key(t, labels...)]
}

// Keys returns the keys of the family in order.
func (ic *IndexedConstraint) Keys() []Index { return ic.keys }

// Len returns the number of constraints in the family.
func (ic *IndexedConstraint) Len() int { return len(ic.keys) }

// Activate marks every member active.
func (ic *IndexedConstraint) Activate() {
	for _, c := range ic.cons {
		c.Active = true
	}
}

// Deactivate marks every member inactive.
func (ic *IndexedConstraint) Deactivate() {
	for _, c := range ic.cons {
		c.Active = false
	}
}

// Active reports whether any member is active.
func (ic *IndexedConstraint) Active() bool {
	for _, c := range ic.cons {
		if c.Active {
			return true
		}
	}
	return false
}

func (ic *IndexedConstraint) component() string { return "constraint" }

// IndexedExpression is an ordered family of named derived quantities.
// Expressions are not decision variables and add no equations.
type IndexedExpression struct {
	Name string
	Doc  string

	keys  []Index
	exprs map[Index]Expr
}

// NewIndexedExpression builds an expression family by applying f to
// every key.
func NewIndexedExpression(name string, keys []Index, f func(Index) Expr) *IndexedExpression {
	ie := &IndexedExpression{
		Name:  name,
		keys:  keys,
		exprs: make(map[Index]Expr, len(keys)),
	}
	for _, k := range keys {
		ie.exprs[k] = orZero(f(k))
	}
	return ie
}

// At returns the expression at k, or nil.
func (ie *IndexedExpression) At(k Index) Expr { return ie.exprs[k] }

// Get is shorthand for At(Key(t, labels...)).
func (ie *IndexedExpression) Get(t float64, labels ...string) Expr {
	return ie.exprs[Key(t, labels...)]
}

// Keys returns the keys of the family in order.
func (ie *IndexedExpression) Keys() []Index { return ie.keys }

// Len returns the number of members.
func (ie *IndexedExpression) Len() int { return len(ie.keys) }

func (ie *IndexedExpression) component() string { return "expression" }
