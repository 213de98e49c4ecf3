package storage

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory AttributeStore for development and tests.
// Records are cloned on the way in and out so callers never share state
// with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Attributes
	puts    int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Attributes)}
}

// Get retrieves a clone of the record stored under key
func (m *MemoryStore) Get(ctx context.Context, key string) (Attributes, bool, error) {
	if err := checkKey(key); err != nil {
		return nil, false, err
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	record, exists := m.records[key]
	if !exists {
		return nil, false, nil
	}
	return record.Clone(), true, nil
}

// Put replaces the record stored under key
func (m *MemoryStore) Put(ctx context.Context, key string, attributes Attributes) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	record := attributes.Clone()
	if record == nil {
		record = Attributes{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = record
	m.puts++
	return nil
}

// Delete removes the record stored under key
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

// Puts returns how many writes the store has accepted
func (m *MemoryStore) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

// Len returns the number of stored records
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
