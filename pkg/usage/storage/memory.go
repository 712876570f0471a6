package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend implements Backend with an in-memory map. State does not
// survive restarts; it is intended for tests and deployments that accept
// counters resetting on restart.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		records: make(map[string]*Record),
	}
}

// Save stores a copy of the record.
func (m *MemoryBackend) Save(_ context.Context, record *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *record
	if clone.UpdatedAt.IsZero() {
		clone.UpdatedAt = time.Now()
	}
	m.records[record.Provider] = &clone
	return nil
}

// Load returns a copy of the record, or nil if absent.
func (m *MemoryBackend) Load(_ context.Context, provider string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.records[provider]
	if !ok {
		return nil, nil
	}
	clone := *record
	return &clone, nil
}

// LoadAll returns copies of all records keyed by provider name.
func (m *MemoryBackend) LoadAll(_ context.Context) (map[string]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]*Record, len(m.records))
	for name, record := range m.records {
		clone := *record
		out[name] = &clone
	}
	return out, nil
}

// Delete removes the record for a provider.
func (m *MemoryBackend) Delete(_ context.Context, provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, provider)
	return nil
}

// Close is a no-op for the memory backend.
func (m *MemoryBackend) Close() error {
	return nil
}
