package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"crsp-equity-lab/internal/domain"
	"crsp-equity-lab/internal/storage"
)

// PullRunStore is an in-memory implementation of storage.PullRunStore.
type PullRunStore struct {
	mu     sync.RWMutex
	nextID int64
	data   map[int64]*domain.PullRun
}

// NewPullRunStore creates a new in-memory pull run store.
func NewPullRunStore() *PullRunStore {
	return &PullRunStore{
		nextID: 1,
		data:   make(map[int64]*domain.PullRun),
	}
}

// Insert adds a new run and returns its generated ID.
func (s *PullRunStore) Insert(_ context.Context, run *domain.PullRun) (int64, error) {
	if run == nil || run.Kind == "" {
		return 0, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	runCopy := *run
	runCopy.ID = s.nextID
	s.data[runCopy.ID] = &runCopy
	s.nextID++

	return runCopy.ID, nil
}

// Complete marks a run completed with the number of records written.
func (s *PullRunStore) Complete(_ context.Context, id, recordCount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}

	now := time.Now().UTC()
	run.Status = domain.PullStatusCompleted
	run.CompletedAt = &now
	run.RecordCount = recordCount
	run.ErrorText = nil

	return nil
}

// Fail marks a run failed and records the error text.
func (s *PullRunStore) Fail(_ context.Context, id int64, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}

	now := time.Now().UTC()
	run.Status = domain.PullStatusFailed
	run.CompletedAt = &now
	run.ErrorText = &errText

	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *PullRunStore) GetByID(_ context.Context, id int64) (*domain.PullRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	runCopy := *run
	return &runCopy, nil
}

// GetLastCompleted retrieves the most recently completed run of a kind.
func (s *PullRunStore) GetLastCompleted(_ context.Context, kind string) (*domain.PullRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *domain.PullRun
	for _, run := range s.data {
		if run.Kind != kind || run.Status != domain.PullStatusCompleted {
			continue
		}
		if last == nil || run.CompletedAt.After(*last.CompletedAt) {
			last = run
		}
	}

	if last == nil {
		return nil, storage.ErrNotFound
	}

	runCopy := *last
	return &runCopy, nil
}

// GetRecent retrieves the most recent runs of any kind, newest first.
func (s *PullRunStore) GetRecent(_ context.Context, limit int) ([]*domain.PullRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PullRun
	for _, run := range s.data {
		runCopy := *run
		result = append(result, &runCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

var _ storage.PullRunStore = (*PullRunStore)(nil)
