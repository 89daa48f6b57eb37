package clickhouse

import (
	"context"
	"fmt"
	"time"

	"crsp-equity-lab/internal/domain"
	"crsp-equity-lab/internal/storage"
)

// CDSSpreadStore implements storage.CDSSpreadStore using ClickHouse.
type CDSSpreadStore struct {
	conn *Conn
}

// NewCDSSpreadStore creates a new CDSSpreadStore.
func NewCDSSpreadStore(conn *Conn) *CDSSpreadStore {
	return &CDSSpreadStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CDSSpreadStore = (*CDSSpreadStore)(nil)

const cdsSpreadColumns = `
	date, ticker, redcode, tenor, parspread, convspread
`

// InsertBulk adds multiple records. The table is a quote feed, not a keyed
// snapshot: Markit data carries exact duplicate quotes and portfolio
// formation dedupes them, so nothing is rejected here beyond malformed rows.
func (s *CDSSpreadStore) InsertBulk(ctx context.Context, records []*domain.CDSSpreadRecord) error {
	if len(records) == 0 {
		return nil
	}

	for _, r := range records {
		if r == nil || r.Date.IsZero() {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO markit_cds_spread (`+cdsSpreadColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err = batch.Append(r.Date, r.Ticker, r.RedCode, r.Tenor, r.ParSpread, r.ConvSpread)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByDateRange retrieves records within [start, end] (inclusive),
// ordered by date, then redcode, then tenor ASC.
func (s *CDSSpreadStore) GetByDateRange(ctx context.Context, start, end time.Time) ([]*domain.CDSSpreadRecord, error) {
	query := `
		SELECT ` + cdsSpreadColumns + `
		FROM markit_cds_spread
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC, redcode ASC, tenor ASC
	`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by date range: %w", err)
	}
	defer rows.Close()

	return scanCDSSpreads(rows)
}

// GetByTenor retrieves records for one tenor within [start, end] (inclusive),
// ordered by date, then redcode ASC.
func (s *CDSSpreadStore) GetByTenor(ctx context.Context, tenor string, start, end time.Time) ([]*domain.CDSSpreadRecord, error) {
	query := `
		SELECT ` + cdsSpreadColumns + `
		FROM markit_cds_spread
		WHERE tenor = ? AND date >= ? AND date <= ?
		ORDER BY date ASC, redcode ASC
	`

	rows, err := s.conn.Query(ctx, query, tenor, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by tenor: %w", err)
	}
	defer rows.Close()

	return scanCDSSpreads(rows)
}

// Count returns the number of stored records.
func (s *CDSSpreadStore) Count(ctx context.Context) (int64, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM markit_cds_spread`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return int64(count), nil
}

// scanCDSSpreads scans multiple rows.
func scanCDSSpreads(rows chRows) ([]*domain.CDSSpreadRecord, error) {
	var records []*domain.CDSSpreadRecord

	for rows.Next() {
		var r domain.CDSSpreadRecord
		err := rows.Scan(&r.Date, &r.Ticker, &r.RedCode, &r.Tenor, &r.ParSpread, &r.ConvSpread)
		if err != nil {
			return nil, fmt.Errorf("scan cds spread row: %w", err)
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cds spread rows: %w", err)
	}

	return records, nil
}
