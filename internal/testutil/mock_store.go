// Package testutil provides shared test utilities for the loader.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dwsmith1983/oacload/internal/provider"
	"github.com/dwsmith1983/oacload/pkg/types"
)

// Compile-time interface satisfaction check.
var _ provider.Store = (*MockStore)(nil)

// MockStore is an in-memory Store with failure injection.
type MockStore struct {
	mu        sync.Mutex
	rows      []types.CapacityRecord
	loaded    map[string]int
	existsErr map[string]error
	appendErr error
	healthErr error

	appendCalls atomic.Int64
	existsCalls atomic.Int64
}

// NewMockStore creates an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{
		loaded:    make(map[string]int),
		existsErr: make(map[string]error),
	}
}

func recordKey(date, cycle string) string { return date + "|" + cycle }

func dedupKey(key types.DedupKey) string { return recordKey(key.GasDay(), string(key.Cycle)) }

// Seed marks key as already loaded with n placeholder rows.
func (m *MockStore) Seed(key types.DedupKey, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		m.rows = append(m.rows, types.CapacityRecord{ReportDate: key.GasDay(), Cycle: string(key.Cycle)})
	}
	m.loaded[dedupKey(key)] += n
}

// SetExistsError makes Exists fail for key.
func (m *MockStore) SetExistsError(key types.DedupKey, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existsErr[dedupKey(key)] = err
}

// SetAppendError makes every AppendBatch fail without writing.
func (m *MockStore) SetAppendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendErr = err
}

// SetHealthError makes HealthCheck fail.
func (m *MockStore) SetHealthError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthErr = err
}

func (m *MockStore) Exists(_ context.Context, key types.DedupKey) (bool, error) {
	m.existsCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.existsErr[dedupKey(key)]; err != nil {
		return false, err
	}
	return m.loaded[dedupKey(key)] > 0, nil
}

func (m *MockStore) AppendBatch(_ context.Context, records []types.CapacityRecord) (int, error) {
	m.appendCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return 0, m.appendErr
	}
	for _, r := range records {
		if m.loaded[recordKey(r.ReportDate, r.Cycle)] > 0 {
			return 0, &provider.StoreError{
				Kind: provider.KindConstraint,
				Op:   "append",
				Err:  fmt.Errorf("key %s %s already loaded", r.ReportDate, r.Cycle),
			}
		}
	}
	for _, r := range records {
		m.loaded[recordKey(r.ReportDate, r.Cycle)]++
	}
	m.rows = append(m.rows, records...)
	return len(records), nil
}

func (m *MockStore) HealthCheck(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthErr
}

// Rows returns a copy of every persisted record.
func (m *MockStore) Rows() []types.CapacityRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.CapacityRecord, len(m.rows))
	copy(out, m.rows)
	return out
}

// RowCount returns the number of persisted records.
func (m *MockStore) RowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// RowsFor returns the number of records persisted for key.
func (m *MockStore) RowsFor(key types.DedupKey) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded[dedupKey(key)]
}

// AppendCalls returns how many times AppendBatch was called.
func (m *MockStore) AppendCalls() int { return int(m.appendCalls.Load()) }

// ExistsCalls returns how many times Exists was called.
func (m *MockStore) ExistsCalls() int { return int(m.existsCalls.Load()) }
