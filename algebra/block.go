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
	"fmt"
)

// ErrDuplicate is returned when a component is registered under a name
// that is already in use on the same block.
var ErrDuplicate = errors.New("algebra: duplicate component")

// component is implemented by everything a Block can own.
type component interface {
	component() string
}

// Block is a named registry of model components. Every variable,
// expression, constraint and child block is registered under a name
// that is unique within its parent block.
type Block struct {
	name   string
	parent *Block

	order []string
	items map[string]component
}

// NewBlock returns an empty top-level block.
func NewBlock(name string) *Block {
	return &Block{name: name, items: make(map[string]component)}
}

// Name returns the local name of b.
func (b *Block) Name() string { return b.name }

// FullName returns the dotted name of b from the top-level block.
func (b *Block) FullName() string {
	if b.parent == nil {
		return b.name
	}
	return b.parent.FullName() + "." + b.name
}

// Parent returns the block that owns b, or nil.
func (b *Block) Parent() *Block { return b.parent }

func (b *Block) component() string { return "block" }

func (b *Block) add(name string, c component) error {
	if old, ok := b.items[name]; ok {
		return fmt.Errorf("%s.%s is already a %s: %w", b.FullName(), name, old.component(), ErrDuplicate)
	}
	b.items[name] = c
	b.order = append(b.order, name)
	return nil
}

// AddBlock creates and registers a child block.
func (b *Block) AddBlock(name string) (*Block, error) {
	c := NewBlock(name)
	c.parent = b
	if err := b.add(name, c); err != nil {
		return nil, err
	}
	return c, nil
}

// AddVar registers a variable family under its own name.
func (b *Block) AddVar(v *IndexedVar) error {
	if err := b.add(v.Name, v); err != nil {
		return err
	}
	v.prefix(b.FullName())
	return nil
}

// NewVar creates and registers a variable family.
func (b *Block) NewVar(name string, keys []Index, init float64) (*IndexedVar, error) {
	v := NewIndexedVar(name, keys, init)
	if err := b.AddVar(v); err != nil {
		return nil, err
	}
	return v, nil
}

// AddConstraint registers a constraint family under its own name.
func (b *Block) AddConstraint(c *IndexedConstraint) error {
	if err := b.add(c.Name, c); err != nil {
		return err
	}
	for _, k := range c.keys {
		c.cons[k].Name = b.FullName() + "." + c.cons[k].Name
	}
	return nil
}

// AddExpression registers an expression family under its own name.
func (b *Block) AddExpression(e *IndexedExpression) error { return b.add(e.Name, e) }

// Var looks up a variable family.
func (b *Block) Var(name string) (*IndexedVar, bool) {
	v, ok := b.items[name].(*IndexedVar)
	return v, ok
}

// Constraint looks up a constraint family.
func (b *Block) Constraint(name string) (*IndexedConstraint, bool) {
	c, ok := b.items[name].(*IndexedConstraint)
	return c, ok
}

// Expression looks up an expression family.
func (b *Block) Expression(name string) (*IndexedExpression, bool) {
	e, ok := b.items[name].(*IndexedExpression)
	return e, ok
}

// Block looks up a child block.
func (b *Block) Block(name string) (*Block, bool) {
	c, ok := b.items[name].(*Block)
	return c, ok
}

// Has reports whether any component is registered under name.
func (b *Block) Has(name string) bool {
	_, ok := b.items[name]
	return ok
}

// Remove unregisters the component named name. It reports whether
// anything was removed.
func (b *Block) Remove(name string) bool {
	c, ok := b.items[name]
	if !ok {
		return false
	}
	delete(b.items, name)
	for i, n := range b.order {
		if n == name {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	if cb, ok := c.(*Block); ok {
		cb.parent = nil
	}
	return true
}

// Components returns the names of the components of b in registration
// order.
func (b *Block) Components() []string {
	return append([]string(nil), b.order...)
}

// Walk calls f for b and then, depth first, for every descendant block.
func (b *Block) Walk(f func(*Block)) {
	f(b)
	for _, name := range b.order {
		if c, ok := b.items[name].(*Block); ok {
			c.Walk(f)
		}
	}
}

// Vars returns the variable families registered directly on b.
func (b *Block) Vars() []*IndexedVar {
	var o []*IndexedVar
	for _, name := range b.order {
		if v, ok := b.items[name].(*IndexedVar); ok {
			o = append(o, v)
		}
	}
	return o
}

// Constraints returns the constraint families registered directly on b.
func (b *Block) Constraints() []*IndexedConstraint {
	var o []*IndexedConstraint
	for _, name := range b.order {
		if c, ok := b.items[name].(*IndexedConstraint); ok {
			o = append(o, c)
		}
	}
	return o
}

// ActiveConstraints returns every active constraint on b and its
// descendants.
func (b *Block) ActiveConstraints() []*Constraint {
	var o []*Constraint
	b.Walk(func(bb *Block) {
		for _, ic := range bb.Constraints() {
			for _, k := range ic.keys {
				if c := ic.cons[k]; c.Active {
					o = append(o, c)
				}
			}
		}
	})
	return o
}

// NumActiveConstraints returns the number of active constraints on b
// and its descendants.
func (b *Block) NumActiveConstraints() int { return len(b.ActiveConstraints()) }

// prefix qualifies the member names of iv with a block name.
func (iv *IndexedVar) prefix(p string) {
	iv.Each(func(_ Index, v *Var) { v.Name = p + "." + v.Name })
}
