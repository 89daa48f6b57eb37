// Package panel reshapes stored long-form records into the wide date-indexed
// series the dataset layer consumes: one row per month, one column per
// security or index field.
package panel

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"crsp-equity-lab/internal/domain"
	"crsp-equity-lab/internal/timeseries"
)

// ReturnField selects which monthly return column feeds a panel.
type ReturnField string

const (
	FieldRet  ReturnField = "ret"  // holding period return, dividends included
	FieldRetx ReturnField = "retx" // holding period return, dividends excluded
)

// BuildReturnSeries pivots monthly stock records into a wide series with one
// column per permno (named by its decimal value) holding the chosen return.
// Months where a security has no row are nil cells.
func BuildReturnSeries(records []*domain.MonthlyStockRecord, field ReturnField) (*timeseries.Series, error) {
	switch field {
	case FieldRet:
		return buildWideSeries(records, func(r *domain.MonthlyStockRecord) *float64 { return r.Ret }), nil
	case FieldRetx:
		return buildWideSeries(records, func(r *domain.MonthlyStockRecord) *float64 { return r.Retx }), nil
	default:
		return nil, fmt.Errorf("unknown return field %q", field)
	}
}

// BuildMarketCapSeries pivots monthly stock records into a wide series of
// market caps, shaped like BuildReturnSeries for lagged-weight joins.
func BuildMarketCapSeries(records []*domain.MonthlyStockRecord) *timeseries.Series {
	return buildWideSeries(records, func(r *domain.MonthlyStockRecord) *float64 { return r.MarketCap })
}

func buildWideSeries(records []*domain.MonthlyStockRecord, value func(*domain.MonthlyStockRecord) *float64) *timeseries.Series {
	dateSet := make(map[time.Time]struct{})
	permnoSet := make(map[int64]struct{})
	for _, r := range records {
		dateSet[r.Date] = struct{}{}
		permnoSet[r.Permno] = struct{}{}
	}

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	permnos := make([]int64, 0, len(permnoSet))
	for p := range permnoSet {
		permnos = append(permnos, p)
	}
	sort.Slice(permnos, func(i, j int) bool { return permnos[i] < permnos[j] })

	rowOf := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		rowOf[d] = i
	}
	colOf := make(map[int64]int, len(permnos))
	for i, p := range permnos {
		colOf[p] = i
	}

	cols := make([]timeseries.Column, len(permnos))
	for i, p := range permnos {
		cols[i] = timeseries.Column{
			Name:   strconv.FormatInt(p, 10),
			Values: make([]*float64, len(dates)),
		}
	}

	for _, r := range records {
		cols[colOf[r.Permno]].Values[rowOf[r.Date]] = value(r)
	}

	return &timeseries.Series{Dates: dates, Columns: cols}
}

// Index column names accepted by BuildIndexSeries.
const (
	IndexColVwretd = "vwretd"
	IndexColVwretx = "vwretx"
	IndexColEwretd = "ewretd"
	IndexColEwretx = "ewretx"
	IndexColSprtrn = "sprtrn"
	IndexColSpindx = "spindx"
	IndexColTotval = "totval"
	IndexColTotcnt = "totcnt"
	IndexColUsdval = "usdval"
	IndexColUsdcnt = "usdcnt"
)

// BuildIndexSeries turns monthly index records into a series of the named
// msix columns. With no columns given it carries the four market return
// columns plus the S&P 500 pair.
func BuildIndexSeries(records []*domain.IndexMonthlyRecord, columns ...string) (*timeseries.Series, error) {
	if len(columns) == 0 {
		columns = []string{
			IndexColVwretd, IndexColVwretx,
			IndexColEwretd, IndexColEwretx,
			IndexColSprtrn, IndexColSpindx,
		}
	}

	extractors := make([]func(*domain.IndexMonthlyRecord) *float64, len(columns))
	for i, name := range columns {
		extract, err := indexExtractor(name)
		if err != nil {
			return nil, err
		}
		extractors[i] = extract
	}

	sorted := append([]*domain.IndexMonthlyRecord(nil), records...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	dates := make([]time.Time, len(sorted))
	cols := make([]timeseries.Column, len(columns))
	for i, name := range columns {
		cols[i] = timeseries.Column{Name: name, Values: make([]*float64, len(sorted))}
	}

	for row, r := range sorted {
		dates[row] = r.Date
		for i, extract := range extractors {
			cols[i].Values[row] = extract(r)
		}
	}

	return &timeseries.Series{Dates: dates, Columns: cols}, nil
}

func indexExtractor(name string) (func(*domain.IndexMonthlyRecord) *float64, error) {
	switch name {
	case IndexColVwretd:
		return func(r *domain.IndexMonthlyRecord) *float64 { return r.Vwretd }, nil
	case IndexColVwretx:
		return func(r *domain.IndexMonthlyRecord) *float64 { return r.Vwretx }, nil
	case IndexColEwretd:
		return func(r *domain.IndexMonthlyRecord) *float64 { return r.Ewretd }, nil
	case IndexColEwretx:
		return func(r *domain.IndexMonthlyRecord) *float64 { return r.Ewretx }, nil
	case IndexColSprtrn:
		return func(r *domain.IndexMonthlyRecord) *float64 { return r.Sprtrn }, nil
	case IndexColSpindx:
		return func(r *domain.IndexMonthlyRecord) *float64 { return r.Spindx }, nil
	case IndexColTotval:
		return func(r *domain.IndexMonthlyRecord) *float64 { return r.Totval }, nil
	case IndexColTotcnt:
		return func(r *domain.IndexMonthlyRecord) *float64 { return intAsFloat(r.Totcnt) }, nil
	case IndexColUsdval:
		return func(r *domain.IndexMonthlyRecord) *float64 { return r.Usdval }, nil
	case IndexColUsdcnt:
		return func(r *domain.IndexMonthlyRecord) *float64 { return intAsFloat(r.Usdcnt) }, nil
	default:
		return nil, fmt.Errorf("unknown index column %q", name)
	}
}

func intAsFloat(v *int64) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}

// BuildDataset assembles an organized dataset from an outcome series and
// optional covariates.
func BuildDataset(y, x *timeseries.Series, opts timeseries.DatasetOptions) (*timeseries.Dataset, error) {
	return timeseries.NewDataset(y, x, opts)
}
