package storage

import (
	"context"
	"time"

	"crsp-equity-lab/internal/domain"
)

// MonthlyStockStore provides access to crsp_monthly_stock storage.
type MonthlyStockStore interface {
	// InsertBulk adds multiple records. A (permno, date) key already stored
	// is replaced; the same key twice within one batch fails the batch.
	InsertBulk(ctx context.Context, records []*domain.MonthlyStockRecord) error

	// GetByPermno retrieves all records for a security, ordered by date ASC.
	GetByPermno(ctx context.Context, permno int64) ([]*domain.MonthlyStockRecord, error)

	// GetByDateRange retrieves records within [start, end] (inclusive),
	// ordered by permno, then date ASC.
	GetByDateRange(ctx context.Context, start, end time.Time) ([]*domain.MonthlyStockRecord, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)
}

// MonthlyIndexStore provides access to crsp_monthly_index storage.
type MonthlyIndexStore interface {
	// InsertBulk adds multiple records. A date already stored is replaced;
	// the same date twice within one batch fails the batch.
	InsertBulk(ctx context.Context, records []*domain.IndexMonthlyRecord) error

	// GetByDateRange retrieves records within [start, end] (inclusive), ordered by date ASC.
	GetByDateRange(ctx context.Context, start, end time.Time) ([]*domain.IndexMonthlyRecord, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)
}

// CDSSpreadStore provides access to markit_cds_spread storage.
type CDSSpreadStore interface {
	// InsertBulk adds multiple records. The feed carries exact duplicate
	// quotes, so duplicates are kept; only malformed rows are rejected.
	InsertBulk(ctx context.Context, records []*domain.CDSSpreadRecord) error

	// GetByDateRange retrieves records within [start, end] (inclusive),
	// ordered by date, then redcode, then tenor ASC.
	GetByDateRange(ctx context.Context, start, end time.Time) ([]*domain.CDSSpreadRecord, error)

	// GetByTenor retrieves records for one tenor within [start, end] (inclusive),
	// ordered by date, then redcode ASC.
	GetByTenor(ctx context.Context, tenor string, start, end time.Time) ([]*domain.CDSSpreadRecord, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)
}

// PullRunStore records data pulls for audit and incremental resumption.
type PullRunStore interface {
	// Insert adds a new run and returns its generated ID.
	Insert(ctx context.Context, run *domain.PullRun) (int64, error)

	// Complete marks a run completed with the number of records written.
	Complete(ctx context.Context, id, recordCount int64) error

	// Fail marks a run failed and records the error text.
	Fail(ctx context.Context, id int64, errText string) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id int64) (*domain.PullRun, error)

	// GetLastCompleted retrieves the most recently completed run of a kind.
	// Returns ErrNotFound if no run of that kind has completed.
	GetLastCompleted(ctx context.Context, kind string) (*domain.PullRun, error)

	// GetRecent retrieves the most recent runs of any kind, newest first.
	GetRecent(ctx context.Context, limit int) ([]*domain.PullRun, error)
}
