package domain

import "time"

// MonthlyStockRecord is one row of the CRSP monthly stock file (crsp.msf)
// joined with the names history and the delisting file.
// Corresponds to the crsp_monthly_stock table in ClickHouse.
//
// Nullable columns are pointers; nil marks a missing observation.
type MonthlyStockRecord struct {
	Permno int64     // CRSP permanent security identifier
	Date   time.Time // month-end trading date

	Permco *int64  // CRSP permanent company identifier
	ShrCd  *int64  // share code (10/11 domestic common, 70s ADRs, 73 foreign)
	ExchCd *int64  // exchange code (1 NYSE, 2 AMEX, 3 NASDAQ)
	Comnam *string // company name over the msenames window
	ShrCls *string // share class

	Ret    *float64 // holding period return, dividends included
	Retx   *float64 // holding period return, dividends excluded
	Dlret  *float64 // delisting return; a delisting policy may impute it
	Dlretx *float64 // delisting return, dividends excluded
	Dlstcd *int64   // delisting status code; nil when the month has no delisting event

	Prc     *float64 // closing price; negative values mark bid/ask midpoints
	AltPrc  *float64 // alternate price when prc is unavailable
	Vol     *float64 // share volume
	Shrout  *float64 // shares outstanding (CRSP reports thousands; marketcap.Adjust scales to shares)
	CfacShr *float64 // cumulative share adjustment factor
	CfacPr  *float64 // cumulative price adjustment factor

	Naics *string // NAICS industry code
	SicCd *int64  // SIC industry code

	// Derived by marketcap.Adjust; nil until adjustment runs or when an
	// input column is missing.
	AdjShrout *float64 // Shrout * CfacShr
	AdjPrc    *float64 // |Prc| / CfacPr
	MarketCap *float64 // AdjPrc * AdjShrout
}
