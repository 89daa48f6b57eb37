// Package cds forms tenor-quintile CDS portfolios from Markit composite
// quotes and computes their daily and monthly returns with the He-Kelly
// approximation.
package cds

import (
	"fmt"
	"math"
	"sort"
	"time"

	"crsp-equity-lab/internal/domain"
)

// RelevantTenors are the contract tenors carried into portfolio formation.
var RelevantTenors = []string{domain.Tenor3Y, domain.Tenor5Y, domain.Tenor7Y, domain.Tenor10Y}

// QuintileCount buckets per tenor.
const QuintileCount = 5

// Portfolio is one tenor-quintile bucket: the representative par spread per
// quote date, sorted ascending. Spread values are decimals.
type Portfolio struct {
	Key      string // e.g. "5Y_Q3"
	Tenor    string
	Quintile int
	Dates    []time.Time
	Spreads  []float64
}

// PortfolioKey names a tenor-quintile bucket.
func PortfolioKey(tenor string, quintile int) string {
	return fmt.Sprintf("%s_Q%d", tenor, quintile)
}

// BuildPortfolios forms the tenor-quintile portfolios from raw quotes in
// [start, end]:
//
//  1. drop quotes without a par spread, dedupe exact repeats;
//  2. bucket each ticker-month into quintiles by its first 5Y spread of the
//     month, with breaks at that month's 0.2/0.4/0.6/0.8 quantiles;
//  3. spread the bucket across every tenor the ticker quotes that month;
//  4. average par spreads per (date, tenor, quintile) into a representative
//     spread, replacing outliers above 10 with the global mean.
//
// Ticker-months without a 5Y quote never join a bucket and drop out. The
// result covers every tenor-quintile pair, including any left empty.
func BuildPortfolios(records []*domain.CDSSpreadRecord, start, end time.Time) ([]*Portfolio, error) {
	cleaned := cleanQuotes(records, start, end)

	quintiles := assignQuintiles(cleaned)

	type repKey struct {
		date     time.Time
		tenor    string
		quintile int
	}
	sums := make(map[repKey]float64)
	counts := make(map[repKey]int)

	for _, q := range cleaned {
		if !relevantTenor(q.tenor) {
			continue
		}
		bucket, ok := quintiles[tickerMonth{q.ticker, q.yearMonth}]
		if !ok {
			continue
		}
		k := repKey{q.date, q.tenor, bucket}
		sums[k] += q.parSpread
		counts[k]++
	}

	reps := make(map[repKey]float64, len(sums))
	var total float64
	for k, sum := range sums {
		rep := sum / float64(counts[k])
		reps[k] = rep
		total += rep
	}

	// Representative spreads above 10 are data errors; they collapse to the
	// global mean computed before replacement.
	if len(reps) > 0 {
		globalMean := total / float64(len(reps))
		for k, rep := range reps {
			if rep > 10 {
				reps[k] = globalMean
			}
		}
	}

	portfolios := make([]*Portfolio, 0, len(RelevantTenors)*QuintileCount)
	for _, tenor := range RelevantTenors {
		for quintile := 1; quintile <= QuintileCount; quintile++ {
			p := &Portfolio{
				Key:      PortfolioKey(tenor, quintile),
				Tenor:    tenor,
				Quintile: quintile,
			}
			for k, rep := range reps {
				if k.tenor == tenor && k.quintile == quintile {
					p.Dates = append(p.Dates, k.date)
					p.Spreads = append(p.Spreads, rep)
				}
			}
			sort.Sort(&portfolioSort{p})
			portfolios = append(portfolios, p)
		}
	}

	return portfolios, nil
}

// quote is a cleaned CDS observation.
type quote struct {
	date      time.Time
	ticker    string
	tenor     string
	parSpread float64
	yearMonth string
}

type tickerMonth struct {
	ticker    string
	yearMonth string
}

func cleanQuotes(records []*domain.CDSSpreadRecord, start, end time.Time) []quote {
	seen := make(map[quote]struct{}, len(records))
	out := make([]quote, 0, len(records))
	for _, r := range records {
		if r.ParSpread == nil || r.Ticker == nil || r.Tenor == nil {
			continue
		}
		if r.Date.Before(start) || r.Date.After(end) {
			continue
		}
		q := quote{
			date:      r.Date,
			ticker:    *r.Ticker,
			tenor:     *r.Tenor,
			parSpread: *r.ParSpread,
			yearMonth: r.Date.Format("2006-01"),
		}
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	return out
}

// assignQuintiles buckets each ticker-month by its first 5Y spread of the
// month against that month's quantile breaks.
func assignQuintiles(cleaned []quote) map[tickerMonth]int {
	firsts := make(map[tickerMonth]quote)
	for _, q := range cleaned {
		if q.tenor != domain.Tenor5Y {
			continue
		}
		k := tickerMonth{q.ticker, q.yearMonth}
		held, ok := firsts[k]
		if !ok || q.date.Before(held.date) {
			firsts[k] = q
		}
	}

	byMonth := make(map[string][]float64)
	for k, q := range firsts {
		byMonth[k.yearMonth] = append(byMonth[k.yearMonth], q.parSpread)
	}

	type breaks struct {
		q20, q40, q60, q80 float64
	}
	monthBreaks := make(map[string]breaks, len(byMonth))
	for ym, spreads := range byMonth {
		sort.Float64s(spreads)
		monthBreaks[ym] = breaks{
			q20: quantileNearest(spreads, 0.2),
			q40: quantileNearest(spreads, 0.4),
			q60: quantileNearest(spreads, 0.6),
			q80: quantileNearest(spreads, 0.8),
		}
	}

	out := make(map[tickerMonth]int, len(firsts))
	for k, q := range firsts {
		b := monthBreaks[k.yearMonth]
		switch {
		case q.parSpread <= b.q20:
			out[k] = 1
		case q.parSpread <= b.q40:
			out[k] = 2
		case q.parSpread <= b.q60:
			out[k] = 3
		case q.parSpread <= b.q80:
			out[k] = 4
		default:
			out[k] = 5
		}
	}
	return out
}

// quantileNearest picks the sorted value whose index is nearest to
// q*(n-1), the interpolation the original portfolio formation used.
func quantileNearest(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	idx := int(math.Round(q * float64(len(sorted)-1)))
	return sorted[idx]
}

func relevantTenor(tenor string) bool {
	for _, t := range RelevantTenors {
		if t == tenor {
			return true
		}
	}
	return false
}

type portfolioSort struct {
	p *Portfolio
}

func (s *portfolioSort) Len() int           { return len(s.p.Dates) }
func (s *portfolioSort) Less(i, j int) bool { return s.p.Dates[i].Before(s.p.Dates[j]) }
func (s *portfolioSort) Swap(i, j int) {
	s.p.Dates[i], s.p.Dates[j] = s.p.Dates[j], s.p.Dates[i]
	s.p.Spreads[i], s.p.Spreads[j] = s.p.Spreads[j], s.p.Spreads[i]
}
