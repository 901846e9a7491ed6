// Package in_memory implements the object state Store as process-local maps.
// Useful for tests and for single-process applications that do not need
// persistence across restarts.
package in_memory

import (
	"context"
	"maps"
	"sync"

	"github.com/objectrun/oms"
)

type recordKey struct {
	classID     string
	partitionID int
	objectID    int64
}

type store struct {
	mu      sync.RWMutex
	records map[recordKey]map[int][]byte
}

// NewStore returns an empty in-memory Store.
func NewStore() oms.Store {
	return &store{
		records: make(map[recordKey]map[int][]byte),
	}
}

func key(id oms.Identity) recordKey {
	return recordKey{
		classID:     id.ClassID,
		partitionID: id.PartitionID,
		objectID:    id.ObjectID,
	}
}

func (s *store) Get(ctx context.Context, id oms.Identity, index int) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[key(id)]
	if !ok {
		return nil, false, nil
	}
	data, ok := record[index]
	if !ok {
		return nil, false, nil
	}
	return data, true, nil
}

func (s *store) GetAll(ctx context.Context, id oms.Identity) (map[int][]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[key(id)]
	if !ok {
		return nil, false, nil
	}
	// Clone so callers can't mutate the stored record.
	return maps.Clone(record), true, nil
}

func (s *store) SetAll(ctx context.Context, id oms.Identity, entries map[int][]byte) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[key(id)]
	if !ok {
		record = make(map[int][]byte, len(entries))
		s.records[key(id)] = record
	}
	maps.Copy(record, entries)
	return nil
}

func (s *store) Delete(ctx context.Context, id oms.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key(id))
	return nil
}
