// Package mocks provides hand-written test doubles for the engine's external
// contracts. The mock store records every call it receives so tests can assert
// on exact store traffic, and can be told to fail selected objects.
package mocks

import (
	"context"
	"maps"
	"sync"

	"github.com/objectrun/oms"
)

// SetAllCall records one SetAll invocation.
type SetAllCall struct {
	ID      oms.Identity
	Entries map[int][]byte
}

// MockStore is an in-memory oms.Store that records traffic.
type MockStore struct {
	mu      sync.Mutex
	records map[string]map[int][]byte

	// FailSetAll maps Identity.String() to the error SetAll should return for
	// that object. Other objects proceed normally.
	FailSetAll map[string]error
	// FailGetAll, when set, makes every GetAll return this error.
	FailGetAll error

	// SetAllCalls lists every SetAll received, in order.
	SetAllCalls []SetAllCall
	// GetAllCount counts GetAll invocations.
	GetAllCount int
	// GetCount counts Get invocations.
	GetCount int
	// DeleteCount counts Delete invocations.
	DeleteCount int
}

// NewMockStore returns an empty recording store.
func NewMockStore() *MockStore {
	return &MockStore{
		records: make(map[string]map[int][]byte),
	}
}

// Seed pre-populates an object's record without recording a call.
func (m *MockStore) Seed(id oms.Identity, entries map[int][]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id.String()] = maps.Clone(entries)
}

// Record returns a copy of the object's stored record, nil if absent.
func (m *MockStore) Record(id oms.Identity) map[int][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.records[id.String()])
}

func (m *MockStore) Get(ctx context.Context, id oms.Identity, index int) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCount++
	record, ok := m.records[id.String()]
	if !ok {
		return nil, false, nil
	}
	data, ok := record[index]
	return data, ok, nil
}

func (m *MockStore) GetAll(ctx context.Context, id oms.Identity) (map[int][]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetAllCount++
	if m.FailGetAll != nil {
		return nil, false, m.FailGetAll
	}
	record, ok := m.records[id.String()]
	if !ok {
		return nil, false, nil
	}
	return maps.Clone(record), true, nil
}

func (m *MockStore) SetAll(ctx context.Context, id oms.Identity, entries map[int][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetAllCalls = append(m.SetAllCalls, SetAllCall{ID: id, Entries: maps.Clone(entries)})
	if err := m.FailSetAll[id.String()]; err != nil {
		return err
	}
	record, ok := m.records[id.String()]
	if !ok {
		record = make(map[int][]byte, len(entries))
		m.records[id.String()] = record
	}
	maps.Copy(record, entries)
	return nil
}

func (m *MockStore) Delete(ctx context.Context, id oms.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCount++
	delete(m.records, id.String())
	return nil
}

// MockIDGenerator hands out sequential IDs starting at 1.
type MockIDGenerator struct {
	mu   sync.Mutex
	last int64
}

func (g *MockIDGenerator) NewID() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last++
	return g.last
}
