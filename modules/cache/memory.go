package cache

import (
	"context"
	"sync"

	"github.com/Leantar/fdi/models"
)

// Memory keeps fingerprints for the lifetime of the process.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]models.Fingerprint
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]models.Fingerprint),
	}
}

func (m *Memory) Get(_ context.Context, key string) (models.Fingerprint, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fp, ok := m.entries[key]
	return fp, ok, nil
}

func (m *Memory) Put(_ context.Context, key, _ string, fp models.Fingerprint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = fp.Clone()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

func (m *Memory) Close() error {
	return nil
}
