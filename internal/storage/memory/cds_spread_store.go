package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"crsp-equity-lab/internal/domain"
	"crsp-equity-lab/internal/storage"
)

// CDSSpreadStore is an in-memory implementation of storage.CDSSpreadStore.
// Like the ClickHouse table it mirrors, it is a quote feed: rows append and
// duplicates are kept, cleaning happens at portfolio formation.
type CDSSpreadStore struct {
	mu   sync.RWMutex
	data []*domain.CDSSpreadRecord
}

// NewCDSSpreadStore creates a new in-memory CDS spread store.
func NewCDSSpreadStore() *CDSSpreadStore {
	return &CDSSpreadStore{}
}

// InsertBulk appends multiple records. Nothing is rejected beyond malformed rows.
func (s *CDSSpreadStore) InsertBulk(_ context.Context, records []*domain.CDSSpreadRecord) error {
	if len(records) == 0 {
		return nil
	}

	for _, r := range records {
		if r == nil || r.Date.IsZero() {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		recordCopy := *r
		s.data = append(s.data, &recordCopy)
	}

	return nil
}

// GetByDateRange retrieves records within [start, end] (inclusive),
// ordered by date, then redcode, then tenor ASC.
func (s *CDSSpreadStore) GetByDateRange(_ context.Context, start, end time.Time) ([]*domain.CDSSpreadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CDSSpreadRecord
	for _, r := range s.data {
		if !r.Date.Before(start) && !r.Date.After(end) {
			recordCopy := *r
			result = append(result, &recordCopy)
		}
	}

	sortSpreads(result)
	return result, nil
}

// GetByTenor retrieves records for one tenor within [start, end] (inclusive),
// ordered by date, then redcode ASC.
func (s *CDSSpreadStore) GetByTenor(_ context.Context, tenor string, start, end time.Time) ([]*domain.CDSSpreadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CDSSpreadRecord
	for _, r := range s.data {
		if r.Tenor == nil || *r.Tenor != tenor {
			continue
		}
		if !r.Date.Before(start) && !r.Date.After(end) {
			recordCopy := *r
			result = append(result, &recordCopy)
		}
	}

	sortSpreads(result)
	return result, nil
}

// Count returns the number of stored records.
func (s *CDSSpreadStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.data)), nil
}

func sortSpreads(records []*domain.CDSSpreadRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.Before(records[j].Date)
		}
		ri, rj := strOrEmpty(records[i].RedCode), strOrEmpty(records[j].RedCode)
		if ri != rj {
			return ri < rj
		}
		return strOrEmpty(records[i].Tenor) < strOrEmpty(records[j].Tenor)
	})
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ storage.CDSSpreadStore = (*CDSSpreadStore)(nil)
