package postgres

import (
	"context"
	"fmt"

	"crsp-equity-lab/internal/domain"
	"crsp-equity-lab/internal/storage"
)

// PullRunStore implements storage.PullRunStore using PostgreSQL.
type PullRunStore struct {
	pool *Pool
}

// NewPullRunStore creates a new PullRunStore.
func NewPullRunStore(pool *Pool) *PullRunStore {
	return &PullRunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PullRunStore = (*PullRunStore)(nil)

// Insert adds a new run and returns its generated ID.
func (s *PullRunStore) Insert(ctx context.Context, run *domain.PullRun) (int64, error) {
	if run == nil || run.Kind == "" {
		return 0, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO pull_runs (
			kind, policy_name, start_date, end_date,
			started_at, completed_at, record_count, status, error_text
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		run.Kind, run.PolicyName, run.StartDate, run.EndDate,
		run.StartedAt, run.CompletedAt, run.RecordCount, run.Status, run.ErrorText,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert pull run: %w", err)
	}
	return id, nil
}

// Complete marks a run completed with the number of records written.
func (s *PullRunStore) Complete(ctx context.Context, id, recordCount int64) error {
	query := `
		UPDATE pull_runs
		SET status = $2, completed_at = now(), record_count = $3, error_text = NULL
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query, id, domain.PullStatusCompleted, recordCount)
	if err != nil {
		return fmt.Errorf("complete pull run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Fail marks a run failed and records the error text.
func (s *PullRunStore) Fail(ctx context.Context, id int64, errText string) error {
	query := `
		UPDATE pull_runs
		SET status = $2, completed_at = now(), error_text = $3
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query, id, domain.PullStatusFailed, errText)
	if err != nil {
		return fmt.Errorf("fail pull run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *PullRunStore) GetByID(ctx context.Context, id int64) (*domain.PullRun, error) {
	query := `
		SELECT id, kind, policy_name, start_date, end_date,
		       started_at, completed_at, record_count, status, error_text
		FROM pull_runs
		WHERE id = $1
	`

	run, err := scanPullRun(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pull run by id: %w", err)
	}
	return run, nil
}

// GetLastCompleted retrieves the most recently completed run of a kind.
func (s *PullRunStore) GetLastCompleted(ctx context.Context, kind string) (*domain.PullRun, error) {
	query := `
		SELECT id, kind, policy_name, start_date, end_date,
		       started_at, completed_at, record_count, status, error_text
		FROM pull_runs
		WHERE kind = $1 AND status = $2
		ORDER BY completed_at DESC
		LIMIT 1
	`

	run, err := scanPullRun(s.pool.QueryRow(ctx, query, kind, domain.PullStatusCompleted))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get last completed pull run: %w", err)
	}
	return run, nil
}

// GetRecent retrieves the most recent runs of any kind, newest first.
func (s *PullRunStore) GetRecent(ctx context.Context, limit int) ([]*domain.PullRun, error) {
	query := `
		SELECT id, kind, policy_name, start_date, end_date,
		       started_at, completed_at, record_count, status, error_text
		FROM pull_runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent pull runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.PullRun
	for rows.Next() {
		run, err := scanPullRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pull run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pull run rows: %w", err)
	}

	return runs, nil
}

// pgRow is satisfied by both pgx.Row and pgx.Rows.
type pgRow interface {
	Scan(dest ...interface{}) error
}

// scanPullRun scans a single run from a row.
func scanPullRun(row pgRow) (*domain.PullRun, error) {
	var run domain.PullRun
	err := row.Scan(
		&run.ID, &run.Kind, &run.PolicyName, &run.StartDate, &run.EndDate,
		&run.StartedAt, &run.CompletedAt, &run.RecordCount, &run.Status, &run.ErrorText,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
