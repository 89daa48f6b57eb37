// Package pull orchestrates snapshot pulls: fetch rows from WRDS, derive the
// adjusted columns, persist them, and record the run in the pull ledger.
package pull

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"crsp-equity-lab/internal/delisting"
	"crsp-equity-lab/internal/domain"
	"crsp-equity-lab/internal/marketcap"
	"crsp-equity-lab/internal/storage"
)

// Runner executes pull jobs against the snapshot stores.
type Runner struct {
	stockSource StockSource
	indexSource IndexSource
	cdsSource   CDSSource

	stockStore storage.MonthlyStockStore
	indexStore storage.MonthlyIndexStore
	cdsStore   storage.CDSSpreadStore
	runs       storage.PullRunStore

	policy    delisting.Policy
	batchSize int
	notifier  Notifier
	logger    zerolog.Logger
}

// Options contains configuration for creating a Runner. Sources and stores a
// given deployment does not pull may be left nil; calling the matching pull
// method then fails.
type Options struct {
	StockSource StockSource
	IndexSource IndexSource
	CDSSource   CDSSource

	StockStore storage.MonthlyStockStore
	IndexStore storage.MonthlyIndexStore
	CDSStore   storage.CDSSpreadStore
	Runs       storage.PullRunStore

	// Policy adjusts stock returns for delisting after market caps are
	// derived. Nil stores raw returns.
	Policy    delisting.Policy
	BatchSize int
	Notifier  Notifier
	Logger    zerolog.Logger
}

// NewRunner creates a new pull runner.
func NewRunner(opts Options) *Runner {
	batchSize := opts.BatchSize
	if batchSize == 0 {
		batchSize = 5000
	}

	return &Runner{
		stockSource: opts.StockSource,
		indexSource: opts.IndexSource,
		cdsSource:   opts.CDSSource,
		stockStore:  opts.StockStore,
		indexStore:  opts.IndexStore,
		cdsStore:    opts.CDSStore,
		runs:        opts.Runs,
		policy:      opts.Policy,
		batchSize:   batchSize,
		notifier:    opts.Notifier,
		logger:      opts.Logger,
	}
}

// Result contains statistics from one pull job.
type Result struct {
	RunID         int64
	RecordsPulled int
	RecordsStored int
	Duration      time.Duration
}

// PullStock pulls the CRSP monthly stock file for [start, end], derives
// market caps, applies the delisting policy, and stores the rows. Re-pulling
// an overlapping range replaces the previously stored rows.
func (r *Runner) PullStock(ctx context.Context, start, end time.Time) (*Result, error) {
	if r.stockSource == nil || r.stockStore == nil {
		return nil, fmt.Errorf("stock pulls are not configured")
	}

	policyName := ""
	if r.policy != nil {
		policyName = r.policy.Name()
	}

	return r.execute(ctx, domain.PullKindStock, policyName, start, end, func(ctx context.Context, res *Result) error {
		records, err := r.stockSource.PullMonthlyStock(ctx, start, end)
		if err != nil {
			return fmt.Errorf("fetch monthly stock: %w", err)
		}
		res.RecordsPulled = len(records)
		r.notify(domain.PullKindStock, StageFetched, len(records))

		records = marketcap.Adjust(records)
		if r.policy != nil {
			records = r.policy.Apply(records)
		}
		r.notify(domain.PullKindStock, StageAdjusted, len(records))

		stored, err := storeBatches(ctx, records, r.batchSize, r.stockStore.InsertBulk)
		res.RecordsStored = stored
		if err != nil {
			return fmt.Errorf("store monthly stock: %w", err)
		}
		r.notify(domain.PullKindStock, StageStored, stored)
		return nil
	})
}

// PullIndex pulls the CRSP monthly index file for [start, end] and stores it.
func (r *Runner) PullIndex(ctx context.Context, start, end time.Time) (*Result, error) {
	if r.indexSource == nil || r.indexStore == nil {
		return nil, fmt.Errorf("index pulls are not configured")
	}

	return r.execute(ctx, domain.PullKindIndex, "", start, end, func(ctx context.Context, res *Result) error {
		records, err := r.indexSource.PullMonthlyIndex(ctx, start, end)
		if err != nil {
			return fmt.Errorf("fetch monthly index: %w", err)
		}
		res.RecordsPulled = len(records)
		r.notify(domain.PullKindIndex, StageFetched, len(records))

		stored, err := storeBatches(ctx, records, r.batchSize, r.indexStore.InsertBulk)
		res.RecordsStored = stored
		if err != nil {
			return fmt.Errorf("store monthly index: %w", err)
		}
		r.notify(domain.PullKindIndex, StageStored, stored)
		return nil
	})
}

// PullCDS pulls Markit composite quotes for the calendar years covering
// [start, end] and stores them. Quotes outside the exact day range are kept;
// portfolio formation filters by date.
func (r *Runner) PullCDS(ctx context.Context, start, end time.Time) (*Result, error) {
	if r.cdsSource == nil || r.cdsStore == nil {
		return nil, fmt.Errorf("cds pulls are not configured")
	}

	return r.execute(ctx, domain.PullKindCDS, "", start, end, func(ctx context.Context, res *Result) error {
		records, err := r.cdsSource.PullCDSSpreads(ctx, start.Year(), end.Year(), nil)
		if err != nil {
			return fmt.Errorf("fetch cds spreads: %w", err)
		}
		res.RecordsPulled = len(records)
		r.notify(domain.PullKindCDS, StageFetched, len(records))

		stored, err := storeBatches(ctx, records, r.batchSize, r.cdsStore.InsertBulk)
		res.RecordsStored = stored
		if err != nil {
			return fmt.Errorf("store cds spreads: %w", err)
		}
		r.notify(domain.PullKindCDS, StageStored, stored)
		return nil
	})
}

// execute wraps one pull in ledger bookkeeping: insert a running row, run the
// job, then mark it completed or failed.
func (r *Runner) execute(ctx context.Context, kind, policyName string, start, end time.Time, job func(context.Context, *Result) error) (*Result, error) {
	if r.runs == nil {
		return nil, fmt.Errorf("pull ledger is not configured")
	}

	began := time.Now()
	run := &domain.PullRun{
		Kind:       kind,
		PolicyName: policyName,
		StartDate:  start,
		EndDate:    end,
		StartedAt:  began.UTC(),
		Status:     domain.PullStatusRunning,
	}

	id, err := r.runs.Insert(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("record pull run: %w", err)
	}

	result := &Result{RunID: id}
	r.notify(kind, StageStarted, 0)
	r.logger.Info().
		Str("kind", kind).
		Int64("run_id", id).
		Time("start", start).
		Time("end", end).
		Msg("pull started")

	if err := job(ctx, result); err != nil {
		result.Duration = time.Since(began)
		r.notify(kind, StageFailed, result.RecordsStored)
		r.logger.Error().
			Str("kind", kind).
			Int64("run_id", id).
			Err(err).
			Msg("pull failed")

		if failErr := r.runs.Fail(ctx, id, err.Error()); failErr != nil {
			r.logger.Error().
				Int64("run_id", id).
				Err(failErr).
				Msg("failed to mark pull run failed")
		}
		return result, err
	}

	if err := r.runs.Complete(ctx, id, int64(result.RecordsStored)); err != nil {
		return result, fmt.Errorf("mark pull run completed: %w", err)
	}

	result.Duration = time.Since(began)
	r.notify(kind, StageCompleted, result.RecordsStored)
	r.logger.Info().
		Str("kind", kind).
		Int64("run_id", id).
		Int("pulled", result.RecordsPulled).
		Int("stored", result.RecordsStored).
		Dur("duration", result.Duration).
		Msg("pull completed")

	return result, nil
}

// storeBatches inserts records in fixed-size batches and reports how many
// landed before any error.
func storeBatches[T any](ctx context.Context, records []T, batchSize int, insert func(context.Context, []T) error) (int, error) {
	stored := 0
	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}

		if err := insert(ctx, records[i:end]); err != nil {
			return stored, err
		}
		stored += end - i
	}
	return stored, nil
}

func (r *Runner) notify(kind, stage string, records int) {
	if r.notifier == nil {
		return
	}
	r.notifier.PullProgress(kind, stage, records)
}
