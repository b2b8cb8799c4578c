// Package cache memoizes the byte-slice result of an expensive,
// deterministic computation by key. orchestrate uses it to avoid
// rebuilding the same classified-path-set bytes across runs that share a
// (simId, observerSet, bitSet, mode, thresholds) key; running localization
// twice on the same input is guaranteed to produce bitwise-identical
// output, which is what makes it safe for two callers to race on a miss
// and compute the same key twice.
package cache

import (
	"context"
	"sync"
)

// Store memoizes compute's result under key. MemStore computes each key at
// most once per instance; RedisStore shares results across every process
// using the same Redis keyspace, but processes that miss on a key at the
// same time each compute it, and the first value written is kept.
type Store interface {
	GetOrCompute(ctx context.Context, key string, compute func() ([]byte, error)) ([]byte, error)
}

// MemStore is the default, in-memory Store: a mutex-guarded map, holding
// the whole computation under lock so concurrent local callers for the
// same key never compute it twice.
type MemStore struct {
	mu    sync.Mutex
	cache map[string][]byte
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{cache: make(map[string][]byte)}
}

// GetOrCompute implements Store.
func (m *MemStore) GetOrCompute(ctx context.Context, key string, compute func() ([]byte, error)) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.cache[key]; ok {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		return nil, err
	}
	m.cache[key] = v
	return v, nil
}
