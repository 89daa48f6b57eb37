// Package benchmark rebuilds the value- and equal-weighted CRSP market
// returns from adjusted monthly stock records and diffs them against the
// published index file. CRSP's own support notes say exact replication from
// the public monthly file is not possible, so the comparison is a pull
// diagnostic, not a validation gate.
package benchmark

import (
	"sort"
	"time"

	"crsp-equity-lab/internal/domain"
)

// IndexReturn is one month of replicated market returns.
type IndexReturn struct {
	Month time.Time // first day of the calendar month, UTC
	VW    *float64  // prior-month-cap weighted mean return; nil when no security qualifies
	EW    *float64  // simple mean return; nil when no returns that month
	N     int64     // securities contributing a return
}

// MonthlyIndexReturns replicates monthly VW and EW market returns. VW weights
// each security by its prior-month market cap; securities missing either the
// return or the prior cap drop out of the VW leg.
func MonthlyIndexReturns(records []*domain.MonthlyStockRecord) []IndexReturn {
	type key struct {
		permno int64
		month  time.Time
	}

	caps := make(map[key]float64)
	for _, r := range records {
		if r.MarketCap != nil {
			caps[key{r.Permno, monthOf(r.Date)}] = *r.MarketCap
		}
	}

	type accum struct {
		weighted  float64
		weightSum float64
		retSum    float64
		n         int64
	}

	months := make(map[time.Time]*accum)
	for _, r := range records {
		if r.Ret == nil {
			continue
		}
		month := monthOf(r.Date)
		a := months[month]
		if a == nil {
			a = &accum{}
			months[month] = a
		}

		a.retSum += *r.Ret
		a.n++

		if w, ok := caps[key{r.Permno, month.AddDate(0, -1, 0)}]; ok && w > 0 {
			a.weighted += w * *r.Ret
			a.weightSum += w
		}
	}

	out := make([]IndexReturn, 0, len(months))
	for month, a := range months {
		ir := IndexReturn{Month: month, N: a.n}
		if a.n > 0 {
			ew := a.retSum / float64(a.n)
			ir.EW = &ew
		}
		if a.weightSum > 0 {
			vw := a.weighted / a.weightSum
			ir.VW = &vw
		}
		out = append(out, ir)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

// Divergence is one month of computed-versus-published differences.
type Divergence struct {
	Month time.Time

	VWComputed  *float64
	VWPublished *float64
	VWDiff      *float64 // computed - published; nil when either side is missing

	EWComputed  *float64
	EWPublished *float64
	EWDiff      *float64
}

// Compare joins replicated returns against the published index file on
// calendar month and reports the differences. Months present on only one
// side are dropped.
func Compare(computed []IndexReturn, published []*domain.IndexMonthlyRecord) []Divergence {
	byMonth := make(map[time.Time]*domain.IndexMonthlyRecord, len(published))
	for _, p := range published {
		byMonth[monthOf(p.Date)] = p
	}

	var out []Divergence
	for _, c := range computed {
		p, ok := byMonth[c.Month]
		if !ok {
			continue
		}

		d := Divergence{
			Month:       c.Month,
			VWComputed:  c.VW,
			VWPublished: p.Vwretd,
			VWDiff:      diff(c.VW, p.Vwretd),
			EWComputed:  c.EW,
			EWPublished: p.Ewretd,
			EWDiff:      diff(c.EW, p.Ewretd),
		}
		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

func diff(computed, published *float64) *float64 {
	if computed == nil || published == nil {
		return nil
	}
	d := *computed - *published
	return &d
}

func monthOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
