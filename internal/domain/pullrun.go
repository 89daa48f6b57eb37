package domain

import "time"

// PullRun is one ledger row for a snapshot pull job.
// Corresponds to the pull_runs table in PostgreSQL.
type PullRun struct {
	ID          int64
	Kind        string     // PullKindStock, PullKindIndex or PullKindCDS
	PolicyName  string     // delisting policy applied; empty for non-stock pulls
	StartDate   time.Time  // pull window start (inclusive)
	EndDate     time.Time  // pull window end (inclusive)
	StartedAt   time.Time  // job start
	CompletedAt *time.Time // set when the run completes or fails; nil while running
	RecordCount int64      // rows written to the snapshot stores
	Status      string     // PullStatusRunning, PullStatusCompleted or PullStatusFailed
	ErrorText   *string    // failure detail; nil unless Status is failed
}

// Pull job kinds.
const (
	PullKindStock = "stock"
	PullKindIndex = "index"
	PullKindCDS   = "cds"
)

// Pull job statuses.
const (
	PullStatusRunning   = "running"
	PullStatusCompleted = "completed"
	PullStatusFailed    = "failed"
)
