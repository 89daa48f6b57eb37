package timeseries

import (
	"fmt"
	"time"
)

// DatasetOptions bound and tag a dataset at construction.
type DatasetOptions struct {
	Start     *time.Time // inclusive filter start applied to y and X
	End       *time.Time // inclusive filter end applied to y and X
	Frequency Frequency
}

// Dataset aligns an outcome series y with optional covariates X and
// predictions over a common date index. y always exists after
// construction; X and the prediction table may be nil.
type Dataset struct {
	y     *Table
	x     *Table
	yPred *Table
	freq  Frequency
}

// NewDataset organizes y (required) and x (optional) against the same
// bounds and wraps them.
func NewDataset(y, x *Series, opts DatasetOptions) (*Dataset, error) {
	yt, err := Organize(y, Options{Start: opts.Start, End: opts.End, Require: true})
	if err != nil {
		return nil, fmt.Errorf("organize y: %w", err)
	}
	xt, err := Organize(x, Options{Start: opts.Start, End: opts.End})
	if err != nil {
		return nil, fmt.Errorf("organize X: %w", err)
	}
	return &Dataset{y: yt, x: xt, freq: opts.Frequency}, nil
}

// FromOrganized wraps already-normalized tables without reorganizing
// them. The caller vouches for the index invariant.
func FromOrganized(y, x *Table, freq Frequency) *Dataset {
	return &Dataset{y: y, x: x, freq: freq}
}

// NewFromY wraps a lone organized outcome table.
func NewFromY(y *Table, freq Frequency) *Dataset {
	return FromOrganized(y, nil, freq)
}

// Len returns the row count of y.
func (d *Dataset) Len() int { return d.y.Len() }

// Frequency returns the dataset's sampling tag.
func (d *Dataset) Frequency() Frequency { return d.freq }

// Y returns the outcome table.
func (d *Dataset) Y() *Table { return d.y }

// X returns the covariate table, nil when absent.
func (d *Dataset) X() *Table { return d.x }

// YPred returns the prediction table, nil until SetYPred.
func (d *Dataset) YPred() *Table { return d.yPred }

// SetX organizes x bounded by y's first and last dates and attaches it.
func (d *Dataset) SetX(x *Series) error {
	first, last, ok := d.y.Bounds()
	if !ok {
		return fmt.Errorf("set X: dataset has no rows")
	}
	xt, err := Organize(x, Options{Start: &first, End: &last})
	if err != nil {
		return fmt.Errorf("set X: %w", err)
	}
	d.x = xt
	return nil
}

// SetYPred attaches a prediction table. With organize set, the aligned
// copy is computed against y's span and then unconditionally replaced by
// the raw input, so the raw table is what gets stored either way; the
// flag only adds the alignment's error checking. Callers that need an
// aligned prediction table must organize it themselves first.
// TODO: confirm with the model-evaluation consumers whether the aligned
// copy was ever meant to win before changing this.
func (d *Dataset) SetYPred(p *Table, organize bool) error {
	if organize {
		first, last, ok := d.y.Bounds()
		if !ok {
			return fmt.Errorf("set y_pred: dataset has no rows")
		}
		if _, err := OrganizeTable(p, Options{Start: &first, End: &last}); err != nil {
			return fmt.Errorf("set y_pred: %w", err)
		}
	}
	d.yPred = p
	return nil
}
