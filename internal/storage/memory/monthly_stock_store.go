package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"crsp-equity-lab/internal/domain"
	"crsp-equity-lab/internal/storage"
)

// MonthlyStockStore is an in-memory implementation of storage.MonthlyStockStore.
type MonthlyStockStore struct {
	mu   sync.RWMutex
	data map[string]*domain.MonthlyStockRecord // keyed by (permno, date)
}

// NewMonthlyStockStore creates a new in-memory monthly stock store.
func NewMonthlyStockStore() *MonthlyStockStore {
	return &MonthlyStockStore{
		data: make(map[string]*domain.MonthlyStockRecord),
	}
}

// stockKey generates a unique key for a monthly stock record.
func stockKey(permno int64, date time.Time) string {
	return fmt.Sprintf("%d|%s", permno, date.Format("2006-01-02"))
}

// InsertBulk adds multiple records. A key already stored is replaced,
// mirroring the ClickHouse ReplacingMergeTree tables; the same (permno, date)
// twice in one batch fails it.
func (s *MonthlyStockStore) InsertBulk(_ context.Context, records []*domain.MonthlyStockRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: validate and detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.Permno == 0 || r.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		key := stockKey(r.Permno, r.Date)
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, r := range records {
		recordCopy := *r
		s.data[stockKey(r.Permno, r.Date)] = &recordCopy
	}

	return nil
}

// GetByPermno retrieves all records for a security, ordered by date ASC.
func (s *MonthlyStockStore) GetByPermno(_ context.Context, permno int64) ([]*domain.MonthlyStockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MonthlyStockRecord
	for _, r := range s.data {
		if r.Permno == permno {
			recordCopy := *r
			result = append(result, &recordCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return result, nil
}

// GetByDateRange retrieves records within [start, end] (inclusive),
// ordered by permno, then date ASC.
func (s *MonthlyStockStore) GetByDateRange(_ context.Context, start, end time.Time) ([]*domain.MonthlyStockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MonthlyStockRecord
	for _, r := range s.data {
		if !r.Date.Before(start) && !r.Date.After(end) {
			recordCopy := *r
			result = append(result, &recordCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Permno != result[j].Permno {
			return result[i].Permno < result[j].Permno
		}
		return result[i].Date.Before(result[j].Date)
	})

	return result, nil
}

// Count returns the number of stored records.
func (s *MonthlyStockStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.data)), nil
}

var _ storage.MonthlyStockStore = (*MonthlyStockStore)(nil)
