// Package marketcap derives split-adjusted share counts, prices and market
// capitalization on monthly stock records.
package marketcap

import (
	"math"

	"crsp-equity-lab/internal/domain"
)

// Adjust returns copies of the records with Shrout scaled from thousands to
// raw shares and AdjShrout, AdjPrc and MarketCap filled in.
//
// cfacshr and cfacpr are not always equal (spinoffs, rights and some less
// common distribution events move them apart), so prc * shrout alone would
// misprice the affected months. Price enters as an absolute value because
// CRSP stores bid/ask midpoints as negative prices.
//
// Missing inputs propagate: any nil operand leaves its derived fields nil.
func Adjust(records []*domain.MonthlyStockRecord) []*domain.MonthlyStockRecord {
	out := make([]*domain.MonthlyStockRecord, 0, len(records))
	for _, r := range records {
		v := *r
		if v.Shrout != nil {
			scaled := *v.Shrout * 1000
			v.Shrout = &scaled
		}
		v.AdjShrout = mul(v.Shrout, v.CfacShr)
		v.AdjPrc = absDiv(v.Prc, v.CfacPr)
		v.MarketCap = mul(v.AdjPrc, v.AdjShrout)
		out = append(out, &v)
	}
	return out
}

func mul(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	p := *a * *b
	return &p
}

func absDiv(num, den *float64) *float64 {
	if num == nil || den == nil {
		return nil
	}
	q := math.Abs(*num) / *den
	return &q
}
