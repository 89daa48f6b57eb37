package clickhouse

import (
	"context"
	"fmt"
	"time"

	"crsp-equity-lab/internal/domain"
	"crsp-equity-lab/internal/storage"
)

// MonthlyStockStore implements storage.MonthlyStockStore using ClickHouse.
type MonthlyStockStore struct {
	conn *Conn
}

// NewMonthlyStockStore creates a new MonthlyStockStore.
func NewMonthlyStockStore(conn *Conn) *MonthlyStockStore {
	return &MonthlyStockStore{conn: conn}
}

// Compile-time interface check.
var _ storage.MonthlyStockStore = (*MonthlyStockStore)(nil)

const monthlyStockColumns = `
	permno, date, permco, shrcd, exchcd, comnam, shrcls,
	ret, retx, dlret, dlretx, dlstcd,
	prc, altprc, vol, shrout, cfacshr, cfacpr,
	naics, siccd, adj_shrout, adj_prc, market_cap
`

// InsertBulk adds multiple records. A key already stored is replaced at the
// next merge (ReplacingMergeTree), so re-pulling an overlapping window
// converges. Two rows for one (permno, date) inside a single batch mean the
// source join misfired and fail the batch.
func (s *MonthlyStockStore) InsertBulk(ctx context.Context, records []*domain.MonthlyStockRecord) error {
	if len(records) == 0 {
		return nil
	}

	type key struct {
		permno int64
		date   string
	}
	batchKeys := make(map[key]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.Permno == 0 || r.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		k := key{r.Permno, r.Date.Format("2006-01-02")}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO crsp_monthly_stock (`+monthlyStockColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err = batch.Append(
			r.Permno, r.Date, r.Permco, r.ShrCd, r.ExchCd, r.Comnam, r.ShrCls,
			r.Ret, r.Retx, r.Dlret, r.Dlretx, r.Dlstcd,
			r.Prc, r.AltPrc, r.Vol, r.Shrout, r.CfacShr, r.CfacPr,
			r.Naics, r.SicCd, r.AdjShrout, r.AdjPrc, r.MarketCap,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByPermno retrieves all records for a security, ordered by date ASC.
func (s *MonthlyStockStore) GetByPermno(ctx context.Context, permno int64) ([]*domain.MonthlyStockRecord, error) {
	query := `
		SELECT ` + monthlyStockColumns + `
		FROM crsp_monthly_stock FINAL
		WHERE permno = ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, permno)
	if err != nil {
		return nil, fmt.Errorf("query by permno: %w", err)
	}
	defer rows.Close()

	return scanMonthlyStock(rows)
}

// GetByDateRange retrieves records within [start, end] (inclusive),
// ordered by permno, then date ASC.
func (s *MonthlyStockStore) GetByDateRange(ctx context.Context, start, end time.Time) ([]*domain.MonthlyStockRecord, error) {
	query := `
		SELECT ` + monthlyStockColumns + `
		FROM crsp_monthly_stock FINAL
		WHERE date >= ? AND date <= ?
		ORDER BY permno ASC, date ASC
	`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by date range: %w", err)
	}
	defer rows.Close()

	return scanMonthlyStock(rows)
}

// Count returns the number of stored records.
func (s *MonthlyStockStore) Count(ctx context.Context) (int64, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM crsp_monthly_stock FINAL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return int64(count), nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanMonthlyStock scans multiple rows.
func scanMonthlyStock(rows chRows) ([]*domain.MonthlyStockRecord, error) {
	var records []*domain.MonthlyStockRecord

	for rows.Next() {
		var r domain.MonthlyStockRecord
		err := rows.Scan(
			&r.Permno, &r.Date, &r.Permco, &r.ShrCd, &r.ExchCd, &r.Comnam, &r.ShrCls,
			&r.Ret, &r.Retx, &r.Dlret, &r.Dlretx, &r.Dlstcd,
			&r.Prc, &r.AltPrc, &r.Vol, &r.Shrout, &r.CfacShr, &r.CfacPr,
			&r.Naics, &r.SicCd, &r.AdjShrout, &r.AdjPrc, &r.MarketCap,
		)
		if err != nil {
			return nil, fmt.Errorf("scan monthly stock row: %w", err)
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monthly stock rows: %w", err)
	}

	return records, nil
}
