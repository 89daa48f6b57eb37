package pull

import (
	"context"
	"time"

	"crsp-equity-lab/internal/domain"
)

// StockSource provides CRSP monthly stock rows from an external service.
type StockSource interface {
	// PullMonthlyStock returns rows for [start, end] inclusive, joined with
	// name history and delisting events.
	PullMonthlyStock(ctx context.Context, start, end time.Time) ([]*domain.MonthlyStockRecord, error)
}

// IndexSource provides CRSP monthly index rows from an external service.
type IndexSource interface {
	// PullMonthlyIndex returns rows for [start, end] inclusive.
	PullMonthlyIndex(ctx context.Context, start, end time.Time) ([]*domain.IndexMonthlyRecord, error)
}

// CDSSource provides Markit composite CDS quotes from an external service.
type CDSSource interface {
	// PullCDSSpreads returns quotes for [startYear, endYear] inclusive,
	// limited to the given tenors. A nil tenor list means the standard
	// 3Y/5Y/7Y/10Y set.
	PullCDSSpreads(ctx context.Context, startYear, endYear int, tenors []string) ([]*domain.CDSSpreadRecord, error)
}

// Notifier receives progress events during a pull. Implementations must not
// block; the runner calls it inline.
type Notifier interface {
	PullProgress(kind, stage string, records int)
}

// Pull progress stages, in order of emission.
const (
	StageStarted   = "started"
	StageFetched   = "fetched"
	StageAdjusted  = "adjusted"
	StageStored    = "stored"
	StageCompleted = "completed"
	StageFailed    = "failed"
)
