package domain

import "time"

// CDSSpreadRecord is one Markit composite CDS quote. Corresponds to the
// markit_cds_spread table in ClickHouse.
type CDSSpreadRecord struct {
	Date       time.Time // quote date
	Ticker     *string   // Markit ticker
	RedCode    *string   // Markit RED entity code
	Tenor      *string   // contract tenor label: 6M, 1Y, 3Y, 5Y, 7Y, 10Y, ...
	ParSpread  *float64  // par spread, decimal (0.01 = 100bp)
	ConvSpread *float64  // conventional spread, decimal
}

// CDS tenors carried through to portfolio formation.
const (
	Tenor3Y  = "3Y"
	Tenor5Y  = "5Y"
	Tenor7Y  = "7Y"
	Tenor10Y = "10Y"
)
