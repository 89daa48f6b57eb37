// Package timeseries normalizes raw tabular time series into date-indexed
// tables and aligns outcome, covariate and prediction series over a common
// date index.
package timeseries

import "time"

// Series is tabular time-series input prior to normalization. The row
// index arrives in one of three ways, in order of precedence:
//
//  1. a column named "date" (any case) among Columns, promoted by Organize;
//  2. RawIndex, unparsed index cells from a text source;
//  3. Dates, an already-typed index from a typed source.
//
// A single-column series is simply a Series with one entry in Columns.
// Column lengths must agree with the index length.
type Series struct {
	Dates    []time.Time
	RawIndex []string
	Columns  []Column
}

// Column is a named column of a Series or Table. Numeric columns set
// Values, where a nil cell is a missing observation; text columns (such
// as an unpromoted date column) set Text instead.
type Column struct {
	Name   string
	Values []*float64
	Text   []string
}

// Len returns the cell count of the column.
func (c Column) Len() int {
	if c.Text != nil {
		return len(c.Text)
	}
	return len(c.Values)
}

func cloneColumn(c Column) Column {
	out := Column{Name: c.Name}
	if c.Values != nil {
		out.Values = append([]*float64(nil), c.Values...)
	}
	if c.Text != nil {
		out.Text = append([]string(nil), c.Text...)
	}
	return out
}

func cloneColumns(cols []Column) []Column {
	out := make([]Column, len(cols))
	for i, c := range cols {
		out[i] = cloneColumn(c)
	}
	return out
}
