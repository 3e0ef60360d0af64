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

import "fmt"

// BackwardEuler adds to b a constraint family relating the derivative
// family d to the family it differentiates, using first-order backward
// differences over times:
//  d[t_k] == (x[t_k] - x[t_k-1]) / (t_k - t_k-1)   for k >= 1.
// The derivative at the first time point is left free; callers fix
// the initial condition instead.
func BackwardEuler(b *Block, d *IndexedVar, times []float64) (*IndexedConstraint, error) {
	x := d.DerivativeOf
	if x == nil {
		return nil, fmt.Errorf("algebra: %s is not a derivative", d.Name)
	}
	prev := make(map[float64]float64, len(times))
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return nil, fmt.Errorf("algebra: time set must be strictly increasing")
		}
		prev[times[i]] = times[i-1]
	}
	c := NewIndexedConstraint(d.Name+"_disc_eq", d.Keys(), func(k Index) (Expr, Expr) {
		tp, ok := prev[k.Time]
		if !ok {
			return nil, nil
		}
		dx := Sub(x.At(k), x.At(k.WithTime(tp)))
		return d.At(k), Scale(1/(k.Time-tp), dx)
	})
	if err := b.AddConstraint(c); err != nil {
		return nil, err
	}
	return c, nil
}
