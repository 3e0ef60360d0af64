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

package solver

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// HistoryPlot returns a plot of residual against iteration for one or
// more solves, on a logarithmic axis. Each named history becomes one
// line.
func HistoryPlot(names []string, histories ...[]float64) (*plot.Plot, error) {
	if len(names) != len(histories) {
		return nil, fmt.Errorf("solver: %d names for %d histories", len(names), len(histories))
	}
	p, err := plot.New()
	if err != nil {
		return nil, err
	}
	p.Title.Text = "Convergence"
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "Max. residual"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{}
	for i, h := range histories {
		if len(h) == 0 {
			continue
		}
		xys := make(plotter.XYs, len(h))
		for j, r := range h {
			xys[j].X = float64(j)
			// Zero or invalid residuals can't be shown on a log scale.
			xys[j].Y = math.Max(r, 1e-16)
			if math.IsNaN(r) || math.IsInf(r, 0) {
				xys[j].Y = 1e16
			}
		}
		l, err := plotter.NewLine(xys)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			l.Dashes = []vg.Length{vg.Points(float64(2 * i)), vg.Points(2)}
		}
		p.Add(l)
		p.Legend.Add(names[i], l)
	}
	return p, nil
}

// PlotHistory saves a convergence plot of the given histories to
// filename. The image format is determined by the file extension.
func PlotHistory(filename string, names []string, histories ...[]float64) error {
	p, err := HistoryPlot(names, histories...)
	if err != nil {
		return err
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, filename)
}
