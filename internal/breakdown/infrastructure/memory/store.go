// Package memory holds breakdown records in process memory. Intended
// for local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	breakdown "fleetops-cloud/internal/breakdown/domain"
)

// Store is a concurrency-safe in-memory record store.
type Store struct {
	mu      sync.RWMutex
	records map[string]breakdown.Record
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{records: make(map[string]breakdown.Record)}
}

// Upsert stores the record under its natural key.
func (s *Store) Upsert(_ context.Context, record breakdown.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Key()] = record
	return nil
}

// ListByDay returns the day's records ordered by occurrence time.
func (s *Store) ListByDay(_ context.Context, day string) ([]breakdown.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []breakdown.Record
	for _, record := range s.records {
		if record.Day() == day {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].OccurredOn < records[j].OccurredOn
	})
	return records, nil
}
