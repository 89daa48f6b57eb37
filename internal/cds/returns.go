package cds

import (
	"fmt"
	"math"
	"time"

	"crsp-equity-lab/internal/rates"
)

// Approximation constants: quarterly-compounded default intensity with a 60%
// recovery assumption, risky duration summed over 20 years of quarters, and
// 250 trading days of carry per year.
const (
	recoveryRate     = 0.6
	durationYears    = 20
	tradingDaysPerYr = 250
)

// ReturnSeries is one portfolio's dated daily returns.
type ReturnSeries struct {
	Key     string
	Dates   []time.Time
	Returns []float64
}

// ComputeReturns computes daily He-Kelly returns for every portfolio against
// the quarterly discount grid. The grid's final row drops before use. A
// portfolio needs at least two quote dates and at least one date on the
// discount calendar; portfolios with fewer dates come back empty.
func ComputeReturns(portfolios []*Portfolio, discount rates.TermStructure) ([]*ReturnSeries, error) {
	if discount.Len() > 0 {
		discount = rates.TermStructure{
			Dates:      discount.Dates[:discount.Len()-1],
			Maturities: discount.Maturities,
			Rates:      discount.Rates[:discount.Len()-1],
		}
	}

	quarters := rates.QuarterlyMaturities(durationYears)
	cols, err := quarterColumns(discount.Maturities, quarters)
	if err != nil {
		return nil, err
	}

	discountRows := make(map[time.Time][]float64, discount.Len())
	for i, d := range discount.Dates {
		discountRows[d] = discount.Rates[i]
	}

	out := make([]*ReturnSeries, 0, len(portfolios))
	for _, p := range portfolios {
		rs, err := computePortfolioReturns(p, quarters, cols, discountRows)
		if err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, nil
}

func computePortfolioReturns(p *Portfolio, quarters []float64, cols []int, discountRows map[time.Time][]float64) (*ReturnSeries, error) {
	rs := &ReturnSeries{Key: p.Key}
	if len(p.Dates) < 2 {
		return rs, nil
	}

	// Risky duration per date: 0.25 times the sum over quarters of
	// discount(q) * exp(-q * lambda), where lambda is the spread-implied
	// default intensity. Quote dates off the discount calendar borrow the
	// next computed row, then the previous one.
	products := make([][]float64, len(p.Dates))
	matched := false
	for i, d := range p.Dates {
		row, ok := discountRows[d]
		if !ok {
			continue
		}
		matched = true

		lambda := 4 * math.Log(1+p.Spreads[i]/(4*recoveryRate))
		prod := make([]float64, len(quarters))
		for k, q := range quarters {
			prod[k] = row[cols[k]] * math.Exp(-q*lambda)
		}
		products[i] = prod
	}
	if !matched {
		return nil, fmt.Errorf("portfolio %s shares no dates with the discount calendar", p.Key)
	}

	fillBackwardThenForward(products)

	duration := make([]float64, len(p.Dates))
	for i, prod := range products {
		sum := 0.0
		for _, v := range prod {
			sum += v
		}
		duration[i] = 0.25 * sum
	}

	// return_t = s_{t-1}/250 + (s_t - s_{t-1}) * RD_{t-1}; the first quote
	// date has no lag and drops.
	rs.Dates = make([]time.Time, 0, len(p.Dates)-1)
	rs.Returns = make([]float64, 0, len(p.Dates)-1)
	for i := 1; i < len(p.Dates); i++ {
		prev := p.Spreads[i-1]
		r := prev/tradingDaysPerYr + (p.Spreads[i]-prev)*duration[i-1]
		rs.Dates = append(rs.Dates, p.Dates[i])
		rs.Returns = append(rs.Returns, r)
	}

	return rs, nil
}

// quarterColumns maps each target quarter onto its column in the discount
// grid's maturity list.
func quarterColumns(maturities, quarters []float64) ([]int, error) {
	cols := make([]int, len(quarters))
	for k, q := range quarters {
		found := -1
		for j, m := range maturities {
			if math.Abs(m-q) < 1e-9 {
				found = j
				break
			}
		}
		if found == -1 {
			return nil, fmt.Errorf("discount grid lacks the %g maturity", q)
		}
		cols[k] = found
	}
	return cols, nil
}

// fillBackwardThenForward replaces nil rows with the next computed row, then
// any still-missing trailing rows with the previous one.
func fillBackwardThenForward(rows [][]float64) {
	for i := len(rows) - 2; i >= 0; i-- {
		if rows[i] == nil {
			rows[i] = rows[i+1]
		}
	}
	for i := 1; i < len(rows); i++ {
		if rows[i] == nil {
			rows[i] = rows[i-1]
		}
	}
}
