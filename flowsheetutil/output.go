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
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/procsim/flowsheet"
	"github.com/tealeg/xlsx"
)

// StreamTable holds the port values of a set of streams at every time
// point.
type StreamTable struct {
	Streams []string
	Times   []float64

	// Keys are the sorted port variable keys, e.g. "mole_frac[water]".
	Keys []string

	// values are indexed by stream, time index and key.
	values []map[float64]map[string]float64
}

// NewStreamTable collects the current values of ports at times.
func NewStreamTable(times []float64, ports ...*flowsheet.Port) *StreamTable {
	st := &StreamTable{Times: times}
	keys := make(map[string]bool)
	for _, p := range ports {
		st.Streams = append(st.Streams, p.Name)
		vals := make(map[float64]map[string]float64)
		for _, t := range times {
			vals[t] = p.Values(t)
			for k := range vals[t] {
				keys[k] = true
			}
		}
		st.values = append(st.values, vals)
	}
	for k := range keys {
		st.Keys = append(st.Keys, k)
	}
	sort.Strings(st.Keys)
	return st
}

// Value returns the value of key in the given stream at time t.
func (st *StreamTable) Value(stream string, t float64, key string) (float64, bool) {
	for i, s := range st.Streams {
		if s == stream {
			v, ok := st.values[i][t][key]
			return v, ok
		}
	}
	return 0, false
}

func sheetName(t float64) string {
	return "t=" + strconv.FormatFloat(t, 'g', -1, 64)
}

// Fprint writes st to w as aligned text, one block per time point.
func (st *StreamTable) Fprint(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	for _, t := range st.Times {
		fmt.Fprintf(tw, "%s", sheetName(t))
		for _, s := range st.Streams {
			fmt.Fprintf(tw, "\t%s", s)
		}
		fmt.Fprintln(tw)
		for _, k := range st.Keys {
			fmt.Fprint(tw, k)
			for _, s := range st.Streams {
				if v, ok := st.Value(s, t, k); ok {
					fmt.Fprintf(tw, "\t%.6g", v)
				} else {
					fmt.Fprint(tw, "\t-")
				}
			}
			fmt.Fprintln(tw)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

// WriteStreamTable saves st as a Microsoft Excel file with one sheet per
// time point.
func WriteStreamTable(filename string, st *StreamTable) error {
	f := xlsx.NewFile()
	for _, t := range st.Times {
		sheet, err := f.AddSheet(sheetName(t))
		if err != nil {
			return fmt.Errorf("flowsheetutil: writing stream table: %v", err)
		}
		row := sheet.AddRow()
		row.AddCell().SetString("variable")
		for _, s := range st.Streams {
			row.AddCell().SetString(s)
		}
		for _, k := range st.Keys {
			row = sheet.AddRow()
			row.AddCell().SetString(k)
			for _, s := range st.Streams {
				cell := row.AddCell()
				if v, ok := st.Value(s, t, k); ok {
					cell.SetFloat(v)
				}
			}
		}
	}
	if err := f.Save(os.ExpandEnv(filename)); err != nil {
		return fmt.Errorf("flowsheetutil: writing stream table: %v", err)
	}
	return nil
}
