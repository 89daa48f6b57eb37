package timeseries

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Normalization failures. All are fatal for the batch; none are retryable.
var (
	// ErrNilSeries is returned when a required series is absent.
	ErrNilSeries = errors.New("time series cannot be nil")

	// ErrNoDateIndex is returned when a series carries neither a date
	// column nor an index to convert.
	ErrNoDateIndex = errors.New("series has no date index")

	// ErrUnparseableDate is returned when an index cell cannot be
	// converted to a date.
	ErrUnparseableDate = errors.New("cannot parse date")

	// ErrDuplicateDate is returned when two rows share an index date.
	ErrDuplicateDate = errors.New("duplicate date in index")

	// ErrRaggedSeries is returned when a column length disagrees with
	// the index length.
	ErrRaggedSeries = errors.New("column length does not match index")
)

// dateLayouts are tried in order when parsing raw index cells.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"20060102",
}

// Options controls Organize filtering and nil handling.
type Options struct {
	// Start drops rows before it when set. Inclusive: a row exactly at
	// Start is retained.
	Start *time.Time
	// End drops rows after it when set. Inclusive: a row exactly at End
	// is retained.
	End *time.Time
	// Require makes a nil series an error instead of a nil result. Set
	// for outcome series that must exist.
	Require bool
}

// Organize normalizes a raw series into a date-indexed table: promotes a
// column named "date" (any case) to the index, converts the index to
// dates, sorts rows ascending, verifies index uniqueness, and applies
// inclusive end/start filtering in that order. A nil series yields a nil
// table unless opts.Require is set. Pure transformation; the input is
// not modified.
func Organize(s *Series, opts Options) (*Table, error) {
	if s == nil {
		if opts.Require {
			return nil, ErrNilSeries
		}
		return nil, nil
	}
	dates, cols, err := resolveIndex(s)
	if err != nil {
		return nil, err
	}
	return organize(&Table{dates: dates, cols: cols}, opts)
}

// OrganizeTable runs the same sort, uniqueness and filtering pass over an
// already-typed table. Used when re-aligning tables produced downstream.
func OrganizeTable(t *Table, opts Options) (*Table, error) {
	if t == nil {
		if opts.Require {
			return nil, ErrNilSeries
		}
		return nil, nil
	}
	for _, c := range t.cols {
		if c.Len() != len(t.dates) {
			return nil, raggedErr(c, len(t.dates))
		}
	}
	clone := &Table{
		dates: append([]time.Time(nil), t.dates...),
		cols:  cloneColumns(t.cols),
	}
	return organize(clone, opts)
}

// resolveIndex picks the series' date index and returns it alongside
// copies of the surviving data columns. A column named "date" wins over
// an explicit index, mirroring an index reset; raw text cells are parsed
// against dateLayouts.
func resolveIndex(s *Series) ([]time.Time, []Column, error) {
	var dateCol *Column
	cols := make([]Column, 0, len(s.Columns))
	for i := range s.Columns {
		c := s.Columns[i]
		if dateCol == nil && strings.EqualFold(c.Name, "date") {
			dateCol = &s.Columns[i]
			continue
		}
		cols = append(cols, cloneColumn(c))
	}

	var (
		dates []time.Time
		err   error
	)
	switch {
	case dateCol != nil:
		if dateCol.Text == nil {
			return nil, nil, fmt.Errorf("date column %q is not text: %w", dateCol.Name, ErrUnparseableDate)
		}
		dates, err = parseDates(dateCol.Text)
	case s.RawIndex != nil:
		dates, err = parseDates(s.RawIndex)
	case s.Dates != nil:
		dates = append([]time.Time(nil), s.Dates...)
	default:
		return nil, nil, ErrNoDateIndex
	}
	if err != nil {
		return nil, nil, err
	}

	for _, c := range cols {
		if c.Len() != len(dates) {
			return nil, nil, raggedErr(c, len(dates))
		}
	}
	return dates, cols, nil
}

func raggedErr(c Column, n int) error {
	return fmt.Errorf("column %q has %d cells for %d dates: %w", c.Name, c.Len(), n, ErrRaggedSeries)
}

func parseDates(cells []string) ([]time.Time, error) {
	dates := make([]time.Time, len(cells))
	for i, cell := range cells {
		d, err := parseDate(strings.TrimSpace(cell))
		if err != nil {
			return nil, err
		}
		dates[i] = d
	}
	return dates, nil
}

func parseDate(cell string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, cell); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableDate, cell)
}

// organize sorts, checks uniqueness and filters t in place. t must be
// private to the caller.
func organize(t *Table, opts Options) (*Table, error) {
	sortByDate(t)
	for i := 1; i < len(t.dates); i++ {
		if t.dates[i].Equal(t.dates[i-1]) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDate, t.dates[i].Format("2006-01-02"))
		}
	}
	if opts.End != nil {
		end := *opts.End
		// First index strictly after End.
		cut := sort.Search(len(t.dates), func(i int) bool { return t.dates[i].After(end) })
		t.truncate(0, cut)
	}
	if opts.Start != nil {
		start := *opts.Start
		// First index at or after Start.
		cut := sort.Search(len(t.dates), func(i int) bool { return !t.dates[i].Before(start) })
		t.truncate(cut, len(t.dates))
	}
	return t, nil
}

// sortByDate applies a stable ascending permutation to the index and
// every column.
func sortByDate(t *Table) {
	idx := make([]int, len(t.dates))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return t.dates[idx[a]].Before(t.dates[idx[b]])
	})

	dates := make([]time.Time, len(idx))
	for i, j := range idx {
		dates[i] = t.dates[j]
	}
	t.dates = dates

	for ci := range t.cols {
		c := &t.cols[ci]
		if c.Values != nil {
			vals := make([]*float64, len(idx))
			for i, j := range idx {
				vals[i] = c.Values[j]
			}
			c.Values = vals
		}
		if c.Text != nil {
			txt := make([]string, len(idx))
			for i, j := range idx {
				txt[i] = c.Text[j]
			}
			c.Text = txt
		}
	}
}
