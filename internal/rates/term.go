// Package rates assembles the risk-free discount grid for CDS return
// calculations: short Treasury rates from FRED, the Board's zero-coupon
// yield curve, a spline resample onto quarterly maturities, and quarterly
// discount factors.
package rates

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// TermStructure is a date-by-maturity grid. Rates holds one row per date in
// Dates order, one cell per maturity in Maturities order. Values are decimals
// (0.05 = 5%) for rate grids and plain factors for discount grids.
type TermStructure struct {
	Dates      []time.Time
	Maturities []float64 // years
	Rates      [][]float64
}

// Len returns the number of dates.
func (ts TermStructure) Len() int {
	return len(ts.Dates)
}

func (ts TermStructure) validate() error {
	for i, row := range ts.Rates {
		if len(row) != len(ts.Maturities) {
			return fmt.Errorf("row %d has %d cells for %d maturities", i, len(row), len(ts.Maturities))
		}
	}
	if len(ts.Rates) != len(ts.Dates) {
		return fmt.Errorf("%d rows for %d dates", len(ts.Rates), len(ts.Dates))
	}
	return nil
}

// Merge inner-joins two term structures on date and interleaves their
// maturity columns in ascending order. Dates present in only one input drop.
func Merge(a, b TermStructure) (TermStructure, error) {
	if err := a.validate(); err != nil {
		return TermStructure{}, fmt.Errorf("merge: %w", err)
	}
	if err := b.validate(); err != nil {
		return TermStructure{}, fmt.Errorf("merge: %w", err)
	}

	maturities := make([]float64, 0, len(a.Maturities)+len(b.Maturities))
	sources := make([]source, 0, cap(maturities))
	for i, m := range a.Maturities {
		maturities = append(maturities, m)
		sources = append(sources, source{0, i})
	}
	for i, m := range b.Maturities {
		maturities = append(maturities, m)
		sources = append(sources, source{1, i})
	}
	sort.Sort(&maturitySort{maturities, sources})

	for i := 1; i < len(maturities); i++ {
		if maturities[i] == maturities[i-1] {
			return TermStructure{}, fmt.Errorf("merge: duplicate maturity %g", maturities[i])
		}
	}

	bRows := make(map[time.Time][]float64, b.Len())
	for i, d := range b.Dates {
		bRows[d] = b.Rates[i]
	}

	out := TermStructure{Maturities: maturities}
	for i, d := range a.Dates {
		bRow, ok := bRows[d]
		if !ok {
			continue
		}
		row := make([]float64, len(maturities))
		for j, src := range sources {
			if src.from == 0 {
				row[j] = a.Rates[i][src.col]
			} else {
				row[j] = bRow[src.col]
			}
		}
		out.Dates = append(out.Dates, d)
		out.Rates = append(out.Rates, row)
	}

	return out, nil
}

// source points a merged column back at one input grid.
type source struct {
	from int // 0 = first input, 1 = second
	col  int
}

type maturitySort struct {
	maturities []float64
	sources    []source
}

func (s *maturitySort) Len() int           { return len(s.maturities) }
func (s *maturitySort) Less(i, j int) bool { return s.maturities[i] < s.maturities[j] }
func (s *maturitySort) Swap(i, j int) {
	s.maturities[i], s.maturities[j] = s.maturities[j], s.maturities[i]
	s.sources[i], s.sources[j] = s.sources[j], s.sources[i]
}

// QuarterlyMaturities returns 0.25, 0.50, ..., max in quarter-year steps.
func QuarterlyMaturities(max float64) []float64 {
	n := int(math.Round(max * 4))
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i+1) * 0.25
	}
	return out
}

// ExtrapolateQuarterly resamples each date's curve onto quarterly maturities
// 0.25..30.0 with a not-a-knot cubic spline, extending past the observed
// maturity range with the boundary polynomials.
func ExtrapolateQuarterly(ts TermStructure) (TermStructure, error) {
	if err := ts.validate(); err != nil {
		return TermStructure{}, fmt.Errorf("extrapolate: %w", err)
	}

	targets := QuarterlyMaturities(30)
	out := TermStructure{
		Dates:      append([]time.Time(nil), ts.Dates...),
		Maturities: targets,
		Rates:      make([][]float64, ts.Len()),
	}

	for i, row := range ts.Rates {
		spline, err := newCubicSpline(ts.Maturities, row)
		if err != nil {
			return TermStructure{}, fmt.Errorf("extrapolate %s: %w", ts.Dates[i].Format("2006-01-02"), err)
		}
		resampled := make([]float64, len(targets))
		for j, m := range targets {
			resampled[j] = spline.evaluate(m)
		}
		out.Rates[i] = resampled
	}

	return out, nil
}

// Discount converts a rate grid to quarterly discount factors,
// exp(-(maturity * rate) / 4) per cell.
func Discount(ts TermStructure) TermStructure {
	out := TermStructure{
		Dates:      append([]time.Time(nil), ts.Dates...),
		Maturities: append([]float64(nil), ts.Maturities...),
		Rates:      make([][]float64, ts.Len()),
	}
	for i, row := range ts.Rates {
		factors := make([]float64, len(row))
		for j, r := range row {
			factors[j] = math.Exp(-(ts.Maturities[j] * r) / 4)
		}
		out.Rates[i] = factors
	}
	return out
}
