package cachestore

import (
	"context"
	"sync"
)

// MemoryStore is a process-local Store. It is used in tests and when no
// persistent backend is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[Namespace]map[string]string
	closed bool

	// PutErr, when set, is returned by Put without storing anything.
	PutErr error
	// GetErr, when set, is returned by Get.
	GetErr error
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[Namespace]map[string]string{
		Scenes: {},
		Images: {},
	}}
}

func (m *MemoryStore) Get(ctx context.Context, ns Namespace, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, ErrClosed
	}
	if m.GetErr != nil {
		return "", false, m.GetErr
	}
	if err := checkArgs(ns, key); err != nil {
		return "", false, err
	}
	v, ok := m.data[ns][key]
	return v, ok, nil
}

func (m *MemoryStore) Put(ctx context.Context, ns Namespace, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.PutErr != nil {
		return m.PutErr
	}
	if err := checkArgs(ns, key); err != nil {
		return err
	}
	m.data[ns][key] = value
	return nil
}

// Len returns the number of entries in ns.
func (m *MemoryStore) Len(ns Namespace) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data[ns])
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
