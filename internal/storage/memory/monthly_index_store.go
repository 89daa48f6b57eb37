package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"crsp-equity-lab/internal/domain"
	"crsp-equity-lab/internal/storage"
)

// MonthlyIndexStore is an in-memory implementation of storage.MonthlyIndexStore.
type MonthlyIndexStore struct {
	mu   sync.RWMutex
	data map[string]*domain.IndexMonthlyRecord // keyed by date
}

// NewMonthlyIndexStore creates a new in-memory monthly index store.
func NewMonthlyIndexStore() *MonthlyIndexStore {
	return &MonthlyIndexStore{
		data: make(map[string]*domain.IndexMonthlyRecord),
	}
}

// InsertBulk adds multiple records. A date already stored is replaced,
// mirroring the ClickHouse ReplacingMergeTree tables; the same date twice in
// one batch fails it.
func (s *MonthlyIndexStore) InsertBulk(_ context.Context, records []*domain.IndexMonthlyRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		key := r.Date.Format("2006-01-02")
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range records {
		recordCopy := *r
		s.data[r.Date.Format("2006-01-02")] = &recordCopy
	}

	return nil
}

// GetByDateRange retrieves records within [start, end] (inclusive), ordered by date ASC.
func (s *MonthlyIndexStore) GetByDateRange(_ context.Context, start, end time.Time) ([]*domain.IndexMonthlyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.IndexMonthlyRecord
	for _, r := range s.data {
		if !r.Date.Before(start) && !r.Date.After(end) {
			recordCopy := *r
			result = append(result, &recordCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return result, nil
}

// Count returns the number of stored records.
func (s *MonthlyIndexStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.data)), nil
}

var _ storage.MonthlyIndexStore = (*MonthlyIndexStore)(nil)
