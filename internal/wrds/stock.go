package wrds

import (
	"context"
	"fmt"
	"time"

	"crsp-equity-lab/internal/domain"
)

// Share codes kept by the monthly pull: ordinary common shares, certificates,
// ADRs, units, and closed-end funds.
const monthlyStockSQL = `
	SELECT
		msf.date,
		msf.permno::bigint,
		msf.permco::bigint,
		msenames.shrcd::bigint,
		msenames.exchcd::bigint,
		msenames.comnam,
		msenames.shrcls,
		msf.ret::float8,
		msf.retx::float8,
		msedelist.dlret::float8,
		msedelist.dlretx::float8,
		msedelist.dlstcd::bigint,
		msf.prc::float8,
		msf.altprc::float8,
		msf.vol::float8,
		msf.shrout::float8,
		msf.cfacshr::float8,
		msf.cfacpr::float8,
		msenames.naics,
		msenames.siccd::bigint
	FROM crsp.msf AS msf
	LEFT JOIN crsp.msenames AS msenames
		ON msf.permno = msenames.permno
		AND msenames.namedt <= msf.date
		AND msf.date <= msenames.nameendt
	LEFT JOIN crsp.msedelist AS msedelist
		ON msf.permno = msedelist.permno
		AND date_trunc('month', msf.date) = date_trunc('month', msedelist.dlstdt)
	WHERE msf.date BETWEEN $1 AND $2
		AND msenames.shrcd IN (10, 11, 20, 21, 40, 41, 70, 71, 73)
	ORDER BY msf.permno, msf.date
`

// PullMonthlyStock fetches the CRSP monthly stock file joined with name
// history and delisting events for [start, end] inclusive. Delisting returns
// are matched on calendar month, so a mid-month delisting lands on that
// month's observation.
func (c *Client) PullMonthlyStock(ctx context.Context, start, end time.Time) ([]*domain.MonthlyStockRecord, error) {
	rows, err := c.pool.Query(ctx, monthlyStockSQL, start, end)
	if err != nil {
		return nil, fmt.Errorf("query crsp monthly stock: %w", err)
	}
	defer rows.Close()

	var records []*domain.MonthlyStockRecord
	for rows.Next() {
		r := &domain.MonthlyStockRecord{}
		err := rows.Scan(
			&r.Date,
			&r.Permno,
			&r.Permco,
			&r.ShrCd,
			&r.ExchCd,
			&r.Comnam,
			&r.ShrCls,
			&r.Ret,
			&r.Retx,
			&r.Dlret,
			&r.Dlretx,
			&r.Dlstcd,
			&r.Prc,
			&r.AltPrc,
			&r.Vol,
			&r.Shrout,
			&r.CfacShr,
			&r.CfacPr,
			&r.Naics,
			&r.SicCd,
		)
		if err != nil {
			return nil, fmt.Errorf("scan crsp monthly stock row: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate crsp monthly stock rows: %w", err)
	}

	return records, nil
}
