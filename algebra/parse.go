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
	"sort"

	"github.com/Knetic/govaluate"
)

var parseFunctions = map[string]govaluate.ExpressionFunction{
	"exp": func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 1 {
			return nil, fmt.Errorf("algebra: got %d arguments for function 'exp', but needs 1", len(arg))
		}
		return math.Exp(arg[0].(float64)), nil
	},
	"log": func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 1 {
			return nil, fmt.Errorf("algebra: got %d arguments for function 'log', but needs 1", len(arg))
		}
		return math.Log(arg[0].(float64)), nil
	},
	"sqrt": func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 1 {
			return nil, fmt.Errorf("algebra: got %d arguments for function 'sqrt', but needs 1", len(arg))
		}
		return math.Sqrt(arg[0].(float64)), nil
	},
}

// parsed is an expression read from text. Its value is computed by
// govaluate from the current values of the bound expressions.
type parsed struct {
	src   string
	expr  *govaluate.EvaluableExpression
	names []string
	bind  map[string]Expr
}

func (p *parsed) Eval() float64 {
	params := make(map[string]interface{}, len(p.names))
	for _, n := range p.names {
		params[n] = p.bind[n].Eval()
	}
	v, err := p.expr.Evaluate(params)
	if err != nil {
		return math.NaN()
	}
	f, ok := v.(float64)
	if !ok {
		return math.NaN()
	}
	return f
}

func (p *parsed) Walk(f func(*Var)) {
	for _, n := range p.names {
		p.bind[n].Walk(f)
	}
}

func (p *parsed) String() string { return p.src }

// Parse reads an arithmetic expression such as "0.5*t + exp(-x)".
// Every identifier in src must be a key of bind; the identifiers are
// evaluated through the bound expressions whenever the result is
// evaluated. The functions exp, log and sqrt are available.
func Parse(src string, bind map[string]Expr) (Expr, error) {
	e, err := govaluate.NewEvaluableExpressionWithFunctions(src, parseFunctions)
	if err != nil {
		return nil, fmt.Errorf("algebra: parsing %q: %v", src, err)
	}
	seen := make(map[string]bool)
	var names []string
	for _, n := range e.Vars() {
		if seen[n] {
			continue
		}
		seen[n] = true
		if _, ok := bind[n]; !ok {
			return nil, fmt.Errorf("algebra: parsing %q: unknown variable %q", src, n)
		}
		names = append(names, n)
	}
	sort.Strings(names)
	if len(names) == 0 {
		v, err := e.Evaluate(nil)
		if err != nil {
			return nil, fmt.Errorf("algebra: evaluating %q: %v", src, err)
		}
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("algebra: %q does not evaluate to a number", src)
		}
		return Const(f), nil
	}
	return &parsed{src: src, expr: e, names: names, bind: bind}, nil
}
