package storage

import (
	"context"
	"sync"
)

// MemoryKV keeps values in process memory. A positive maxBytes bounds the
// total size of stored values, mirroring a browser storage quota.
type MemoryKV struct {
	mu       sync.RWMutex
	data     map[string][]byte
	size     int
	maxBytes int
}

func NewMemoryKV(maxBytes int) *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte), maxBytes: maxBytes}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.size - len(m.data[key]) + len(value)
	if m.maxBytes > 0 && next > m.maxBytes {
		return ErrQuotaExceeded
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = stored
	m.size = next
	return nil
}

func (m *MemoryKV) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.size -= len(m.data[key])
	delete(m.data, key)
	return nil
}

func (m *MemoryKV) Close() error { return nil }
