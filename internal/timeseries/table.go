package timeseries

import "time"

// Table is a date-indexed table of named columns. Organize and
// OrganizeTable establish the index invariant: dates unique and sorted
// ascending. A table stored verbatim (Dataset.SetYPred) carries no such
// guarantee.
type Table struct {
	dates []time.Time
	cols  []Column
}

// NewTable builds a table directly from a typed index and columns.
// Callers that need the index invariant pass the result through
// OrganizeTable.
func NewTable(dates []time.Time, cols ...Column) *Table {
	return &Table{dates: dates, cols: cols}
}

// Len returns the row count. Nil-safe.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.dates)
}

// Dates returns the index. The slice is shared with the table, not copied.
func (t *Table) Dates() []time.Time {
	if t == nil {
		return nil
	}
	return t.dates
}

// Columns returns the data columns in order. Shared, not copied.
func (t *Table) Columns() []Column {
	if t == nil {
		return nil
	}
	return t.cols
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	if t == nil {
		return Column{}, false
	}
	for _, c := range t.cols {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Bounds returns the first and last index dates in row order; ok is
// false for an empty table.
func (t *Table) Bounds() (first, last time.Time, ok bool) {
	if t.Len() == 0 {
		return time.Time{}, time.Time{}, false
	}
	return t.dates[0], t.dates[len(t.dates)-1], true
}

// truncate keeps rows [from, to).
func (t *Table) truncate(from, to int) {
	t.dates = t.dates[from:to]
	for i := range t.cols {
		c := &t.cols[i]
		if c.Values != nil {
			c.Values = c.Values[from:to]
		}
		if c.Text != nil {
			c.Text = c.Text[from:to]
		}
	}
}
