package domain

import "time"

// IndexMonthlyRecord is one row of the CRSP monthly index file
// (crsp_a_indexes.msix). Corresponds to the crsp_monthly_index table
// in ClickHouse.
type IndexMonthlyRecord struct {
	Date time.Time // calendar month end (caldt)

	Vwretd *float64 // value-weighted return, dividends included
	Vwretx *float64 // value-weighted return, dividends excluded
	Ewretd *float64 // equal-weighted return, dividends included
	Ewretx *float64 // equal-weighted return, dividends excluded
	Sprtrn *float64 // S&P 500 composite return
	Spindx *float64 // S&P 500 composite index level

	Totval *float64 // total market value, in $1000s
	Totcnt *int64   // count of securities in the index universe
	Usdval *float64 // market value of securities used, in $1000s
	Usdcnt *int64   // count of securities used in the return
}
