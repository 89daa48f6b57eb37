package wrds

import (
	"context"
	"fmt"

	"crsp-equity-lab/internal/domain"
)

// Markit composites live in one WRDS table per calendar year (markit.cds2001,
// markit.cds2002, ...). Table names cannot be bound as parameters, so the year
// is validated and interpolated.
const (
	markitMinYear = 2001
	markitMaxYear = 2100
)

const markitCDSSQLFmt = `
	SELECT
		date,
		ticker,
		redcode,
		tenor,
		parspread::float8,
		convspread::float8
	FROM markit.cds%d
	WHERE tenor = ANY($1)
	ORDER BY date, redcode, tenor
`

// PullCDSSpreads fetches Markit composite CDS quotes for the given tenors
// across [startYear, endYear] inclusive, one yearly table at a time. Rows with
// a missing par spread are kept; cleaning happens at portfolio formation.
func (c *Client) PullCDSSpreads(ctx context.Context, startYear, endYear int, tenors []string) ([]*domain.CDSSpreadRecord, error) {
	if startYear < markitMinYear || endYear > markitMaxYear || startYear > endYear {
		return nil, fmt.Errorf("markit year range [%d, %d] out of bounds", startYear, endYear)
	}
	if len(tenors) == 0 {
		tenors = []string{domain.Tenor3Y, domain.Tenor5Y, domain.Tenor7Y, domain.Tenor10Y}
	}

	var records []*domain.CDSSpreadRecord
	for year := startYear; year <= endYear; year++ {
		yearRecords, err := c.pullCDSYear(ctx, year, tenors)
		if err != nil {
			return nil, err
		}
		records = append(records, yearRecords...)
	}

	return records, nil
}

func (c *Client) pullCDSYear(ctx context.Context, year int, tenors []string) ([]*domain.CDSSpreadRecord, error) {
	query := fmt.Sprintf(markitCDSSQLFmt, year)

	rows, err := c.pool.Query(ctx, query, tenors)
	if err != nil {
		return nil, fmt.Errorf("query markit cds %d: %w", year, err)
	}
	defer rows.Close()

	var records []*domain.CDSSpreadRecord
	for rows.Next() {
		r := &domain.CDSSpreadRecord{}
		err := rows.Scan(
			&r.Date,
			&r.Ticker,
			&r.RedCode,
			&r.Tenor,
			&r.ParSpread,
			&r.ConvSpread,
		)
		if err != nil {
			return nil, fmt.Errorf("scan markit cds row: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate markit cds rows: %w", err)
	}

	return records, nil
}
