package artifact

import (
	"sort"
	"sync"
)

// InMemoryStore keeps reports in a nested map guarded by an RWMutex. Data is
// copied on save and retrieval.
//
// Layout: runID -> name -> raw bytes
type InMemoryStore struct {
	mu      sync.RWMutex
	reports map[string]map[string][]byte
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore returns an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{reports: make(map[string]map[string][]byte)}
}

// Save stores (or overwrites) a report. The input slice is copied.
func (a *InMemoryStore) Save(runID, name string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.reports[runID]; !exists {
		a.reports[runID] = make(map[string][]byte)
	}
	a.reports[runID][name] = append([]byte(nil), data...)
	return nil
}

// Get returns a copy of the stored report or ErrNotFound.
func (a *InMemoryStore) Get(runID, name string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	data, ok := a.reports[runID][name]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// List implements Store. Unknown runs yield an empty list.
func (a *InMemoryStore) List(runID string) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.reports[runID]))
	for name := range a.reports[runID] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the report if present or returns ErrNotFound.
func (a *InMemoryStore) Delete(runID, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.reports[runID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := m[name]; !ok {
		return ErrNotFound
	}
	delete(m, name)
	return nil
}
