// Package kvstore is the local key-value cache store: a synchronous string
// store holding the JSON-serialized transaction and category collections plus
// a few small flags. It is the only store in local (demo/offline) mode.
package kvstore

import (
	"fmt"
	"sort"
	"sync"

	"zetafin/internal/core"
)

// ErrQuotaExceeded is returned by Set when the value does not fit.
var ErrQuotaExceeded = fmt.Errorf("%w: quota exceeded", core.ErrStorage)

// Store is a durable string key-value store.
type Store interface {
	// Get returns the raw value and false if key was never set.
	Get(key string) (string, bool, error)
	// Set overwrites the value for key.
	Set(key, value string) error
	// Remove deletes key; removing a missing key is not an error.
	Remove(key string) error
	// Keys lists every stored key in lexical order.
	Keys() ([]string, error)
}

// Memory is an in-process Store with an optional byte quota.
type Memory struct {
	mu       sync.Mutex
	items    map[string]string
	size     int
	maxBytes int
}

// NewMemory creates an empty store. maxBytes <= 0 disables the quota.
func NewMemory(maxBytes int) *Memory {
	return &Memory{items: make(map[string]string), maxBytes: maxBytes}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	size := m.size + entrySize(key, value)
	if old, ok := m.items[key]; ok {
		size -= entrySize(key, old)
	}
	if m.maxBytes > 0 && size > m.maxBytes {
		return fmt.Errorf("set %q (%d bytes, limit %d): %w", key, size, m.maxBytes, ErrQuotaExceeded)
	}
	m.items[key] = value
	m.size = size
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.items[key]; ok {
		m.size -= entrySize(key, v)
		delete(m.items, key)
	}
	return nil
}

func (m *Memory) Keys() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func entrySize(key, value string) int {
	return len(key) + len(value)
}
