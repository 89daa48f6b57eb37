package clickhouse

import (
	"context"
	"fmt"
	"time"

	"crsp-equity-lab/internal/domain"
	"crsp-equity-lab/internal/storage"
)

// MonthlyIndexStore implements storage.MonthlyIndexStore using ClickHouse.
type MonthlyIndexStore struct {
	conn *Conn
}

// NewMonthlyIndexStore creates a new MonthlyIndexStore.
func NewMonthlyIndexStore(conn *Conn) *MonthlyIndexStore {
	return &MonthlyIndexStore{conn: conn}
}

// Compile-time interface check.
var _ storage.MonthlyIndexStore = (*MonthlyIndexStore)(nil)

const monthlyIndexColumns = `
	date, vwretd, vwretx, ewretd, ewretx, sprtrn, spindx,
	totval, totcnt, usdval, usdcnt
`

// InsertBulk adds multiple records. A date already stored is replaced at the
// next merge (ReplacingMergeTree); the same date twice in one batch fails it.
func (s *MonthlyIndexStore) InsertBulk(ctx context.Context, records []*domain.IndexMonthlyRecord) error {
	if len(records) == 0 {
		return nil
	}

	batchKeys := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		k := r.Date.Format("2006-01-02")
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO crsp_monthly_index (`+monthlyIndexColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err = batch.Append(
			r.Date, r.Vwretd, r.Vwretx, r.Ewretd, r.Ewretx, r.Sprtrn, r.Spindx,
			r.Totval, r.Totcnt, r.Usdval, r.Usdcnt,
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

// GetByDateRange retrieves records within [start, end] (inclusive), ordered by date ASC.
func (s *MonthlyIndexStore) GetByDateRange(ctx context.Context, start, end time.Time) ([]*domain.IndexMonthlyRecord, error) {
	query := `
		SELECT ` + monthlyIndexColumns + `
		FROM crsp_monthly_index FINAL
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by date range: %w", err)
	}
	defer rows.Close()

	return scanMonthlyIndex(rows)
}

// Count returns the number of stored records.
func (s *MonthlyIndexStore) Count(ctx context.Context) (int64, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM crsp_monthly_index FINAL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return int64(count), nil
}

// scanMonthlyIndex scans multiple rows.
func scanMonthlyIndex(rows chRows) ([]*domain.IndexMonthlyRecord, error) {
	var records []*domain.IndexMonthlyRecord

	for rows.Next() {
		var r domain.IndexMonthlyRecord
		err := rows.Scan(
			&r.Date, &r.Vwretd, &r.Vwretx, &r.Ewretd, &r.Ewretx, &r.Sprtrn, &r.Spindx,
			&r.Totval, &r.Totcnt, &r.Usdval, &r.Usdcnt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan monthly index row: %w", err)
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monthly index rows: %w", err)
	}

	return records, nil
}
