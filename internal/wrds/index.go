package wrds

import (
	"context"
	"fmt"
	"time"

	"crsp-equity-lab/internal/domain"
)

const monthlyIndexSQL = `
	SELECT
		caldt,
		vwretd::float8,
		vwretx::float8,
		ewretd::float8,
		ewretx::float8,
		sprtrn::float8,
		spindx::float8,
		totval::float8,
		totcnt::bigint,
		usdval::float8,
		usdcnt::bigint
	FROM crsp_a_indexes.msix
	WHERE caldt BETWEEN $1 AND $2
	ORDER BY caldt
`

// PullMonthlyIndex fetches the CRSP monthly index file (value- and
// equal-weighted market returns plus the S&P 500 series) for [start, end]
// inclusive.
func (c *Client) PullMonthlyIndex(ctx context.Context, start, end time.Time) ([]*domain.IndexMonthlyRecord, error) {
	rows, err := c.pool.Query(ctx, monthlyIndexSQL, start, end)
	if err != nil {
		return nil, fmt.Errorf("query crsp monthly index: %w", err)
	}
	defer rows.Close()

	var records []*domain.IndexMonthlyRecord
	for rows.Next() {
		r := &domain.IndexMonthlyRecord{}
		err := rows.Scan(
			&r.Date,
			&r.Vwretd,
			&r.Vwretx,
			&r.Ewretd,
			&r.Ewretx,
			&r.Sprtrn,
			&r.Spindx,
			&r.Totval,
			&r.Totcnt,
			&r.Usdval,
			&r.Usdcnt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan crsp monthly index row: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate crsp monthly index rows: %w", err)
	}

	return records, nil
}
