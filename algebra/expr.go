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

// Package algebra holds the symbolic substrate that flowsheet models are
// written in: scalar variables, expression trees, indexed families of
// variables, expressions and constraints, and the named block registry
// that owns them.
package algebra

import (
	"fmt"
	"math"
	"strings"
)

// Expr is a node in an expression tree.
type Expr interface {
	// Eval returns the value of the expression at the current
	// values of the variables it references.
	Eval() float64

	// Walk calls f for every variable referenced by the expression.
	// A variable may be visited more than once.
	Walk(f func(*Var))

	String() string
}

// Const is a constant expression.
type Const float64

// Zero is the additive identity.
const Zero = Const(0)

// Eval implements Expr.
func (c Const) Eval() float64 { return float64(c) }

// Walk implements Expr.
func (c Const) Walk(func(*Var)) {}

func (c Const) String() string { return fmt.Sprintf("%g", float64(c)) }

// IsZero reports whether e is a constant zero.
func IsZero(e Expr) bool {
	c, ok := e.(Const)
	return e == nil || (ok && c == 0)
}

type sum []Expr

func (s sum) Eval() float64 {
	var v float64
	for _, e := range s {
		v += e.Eval()
	}
	return v
}

func (s sum) Walk(f func(*Var)) {
	for _, e := range s {
		e.Walk(f)
	}
}

func (s sum) String() string {
	parts := make([]string, len(s))
	for i, e := range s {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, " + ") + ")"
}

// Sum returns the sum of terms. Nil and constant-zero terms are dropped
// and constants are folded together.
func Sum(terms ...Expr) Expr {
	var c Const
	var s sum
	for _, t := range terms {
		switch tt := t.(type) {
		case nil:
		case Const:
			c += tt
		case sum:
			for _, ttt := range tt {
				if cc, ok := ttt.(Const); ok {
					c += cc
				} else {
					s = append(s, ttt)
				}
			}
		default:
			s = append(s, t)
		}
	}
	if c != 0 {
		s = append(s, c)
	}
	switch len(s) {
	case 0:
		return Zero
	case 1:
		return s[0]
	}
	return s
}

type product []Expr

func (p product) Eval() float64 {
	v := 1.
	for _, e := range p {
		v *= e.Eval()
	}
	return v
}

func (p product) Walk(f func(*Var)) {
	for _, e := range p {
		e.Walk(f)
	}
}

func (p product) String() string {
	parts := make([]string, len(p))
	for i, e := range p {
		parts[i] = e.String()
	}
	return strings.Join(parts, "*")
}

// Mul returns the product of factors. A constant-zero factor makes the
// whole product zero and constant factors are folded together.
func Mul(factors ...Expr) Expr {
	c := Const(1)
	var p product
	for _, f := range factors {
		switch ff := f.(type) {
		case nil:
			return Zero
		case Const:
			c *= ff
		default:
			p = append(p, f)
		}
	}
	if c == 0 {
		return Zero
	}
	if len(p) == 0 {
		return c
	}
	if c != 1 {
		p = append(product{c}, p...)
	}
	if len(p) == 1 {
		return p[0]
	}
	return p
}

// Scale returns c*e.
func Scale(c float64, e Expr) Expr { return Mul(Const(c), e) }

// Neg returns -e.
func Neg(e Expr) Expr { return Scale(-1, e) }

// Sub returns a-b.
func Sub(a, b Expr) Expr { return Sum(a, Neg(b)) }

type quotient struct{ num, den Expr }

func (q quotient) Eval() float64     { return q.num.Eval() / q.den.Eval() }
func (q quotient) Walk(f func(*Var)) { q.num.Walk(f); q.den.Walk(f) }
func (q quotient) String() string    { return "(" + q.num.String() + ")/(" + q.den.String() + ")" }

// Div returns a/b.
func Div(a, b Expr) Expr {
	if IsZero(a) {
		return Zero
	}
	if c, ok := b.(Const); ok && c != 0 {
		return Scale(1/float64(c), a)
	}
	return quotient{num: a, den: b}
}

type unary struct {
	name string
	f    func(float64) float64
	arg  Expr
}

func (u unary) Eval() float64     { return u.f(u.arg.Eval()) }
func (u unary) Walk(f func(*Var)) { u.arg.Walk(f) }
func (u unary) String() string    { return u.name + "(" + u.arg.String() + ")" }

// Log returns the natural logarithm of e.
func Log(e Expr) Expr { return unary{name: "log", f: math.Log, arg: e} }

// Exp returns the exponential of e.
func Exp(e Expr) Expr { return unary{name: "exp", f: math.Exp, arg: e} }
