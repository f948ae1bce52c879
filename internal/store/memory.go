package store

import (
	"context"
	"sync"

	"reportview/internal/report"
)

// MemoryStore keeps reports in process. It is used by tests and for local
// previews of imported snapshot folders.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]report.Record
	keys    []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[string]report.Record)}
}

func (m *MemoryStore) GetReport(ctx context.Context, id string) (*report.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.reports[id]
	if !ok {
		return nil, report.ErrRecordNotFound
	}
	return &rec, nil
}

func (m *MemoryStore) APIKey(ctx context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.keys) == 0 {
		return "", nil
	}
	return m.keys[0], nil
}

func (m *MemoryStore) AddAPIKey(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return nil
}

func (m *MemoryStore) SaveReport(ctx context.Context, rec *report.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[rec.ID] = *rec
	return nil
}

func (m *MemoryStore) DeleteReport(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reports, id)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
