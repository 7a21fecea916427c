package credentials

import (
	"fmt"
	"sync"

	"github.com/desertthunder/apostle/internal/shared"
)

// MemoryStore is a process-local [Store]. Nothing survives a restart.
type MemoryStore struct {
	kvStore
	m *memoryKV
}

type memoryKV struct {
	mu     sync.Mutex
	values map[string]string
}

func (k *memoryKV) get(key string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.values[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", shared.ErrNotFound, key)
	}
	return v, nil
}

func (k *memoryKV) setMany(pairs map[string]string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for key, v := range pairs {
		k.values[key] = v
	}
	return nil
}

func (k *memoryKV) del(keys ...string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, key := range keys {
		delete(k.values, key)
	}
	return nil
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	m := &memoryKV{values: make(map[string]string)}
	return &MemoryStore{kvStore: kvStore{backend: m}, m: m}
}

// Seed sets a raw key, bypassing [Store.Write] rules. Used to stage legacy layouts.
func (s *MemoryStore) Seed(key, value string) {
	s.m.setMany(map[string]string{key: value})
}

// Keys returns how many raw keys are stored.
func (s *MemoryStore) Keys() int {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return len(s.m.values)
}
