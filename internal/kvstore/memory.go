package kvstore

import (
	"context"
	"sync"
)

// Memory is an in-process Store used for local runs and tests. An optional
// visibility lag makes a freshly written key read as missing for the first N
// Gets, mimicking the eventual consistency of the production store.
type Memory struct {
	mu            sync.Mutex
	entries       map[string][]byte
	pending       map[string]int
	visibilityLag int
}

// NewMemory returns an empty in-process store with immediately visible writes.
func NewMemory() *Memory {
	return NewMemoryWithLag(0)
}

// NewMemoryWithLag returns a store whose writes become visible only after lag
// failed reads of the written key.
func NewMemoryWithLag(lag int) *Memory {
	if lag < 0 {
		lag = 0
	}
	return &Memory{
		entries:       make(map[string][]byte),
		pending:       make(map[string]int),
		visibilityLag: lag,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if remaining, lagging := m.pending[key]; lagging {
		if remaining > 1 {
			m.pending[key] = remaining - 1
		} else {
			delete(m.pending, key)
		}
		return nil, nil
	}

	value, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	copied := make([]byte, len(value))
	copy(copied, value)
	return copied, nil
}

func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]byte, len(value))
	copy(copied, value)
	m.entries[key] = copied
	if m.visibilityLag > 0 {
		m.pending[key] = m.visibilityLag
	}
	return nil
}

// Len reports the number of stored keys, including not-yet-visible ones.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
