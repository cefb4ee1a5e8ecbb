// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

// Package shardmap provides a sharded concurrent map. Reads on one
// shard never block reads on another, and a write touches only the
// shard owning its key, so unrelated keys never serialize. This is the
// lock-light map backing the permission caches and the gateway
// registries.
package shardmap

import (
	"hash/maphash"
	"sync"
)

const shardCount = 32

type shard[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

// Map is a concurrent map sharded by key hash.
type Map[K comparable, V any] struct {
	seed   maphash.Seed
	shards [shardCount]shard[K, V]
}

// New creates an empty Map.
func New[K comparable, V any]() *Map[K, V] {
	m := &Map[K, V]{seed: maphash.MakeSeed()}
	for i := range m.shards {
		m.shards[i].m = make(map[K]V)
	}
	return m
}

func (m *Map[K, V]) shardFor(key K) *shard[K, V] {
	return &m.shards[maphash.Comparable(m.seed, key)%shardCount]
}

// Get returns the value for key, if present.
func (m *Map[K, V]) Get(key K) (V, bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	v, ok := s.m[key]
	s.mu.RUnlock()
	return v, ok
}

// Set stores value under key, replacing any previous value.
func (m *Map[K, V]) Set(key K, value V) {
	s := m.shardFor(key)
	s.mu.Lock()
	s.m[key] = value
	s.mu.Unlock()
}

// Delete removes key. Reports whether it was present.
func (m *Map[K, V]) Delete(key K) bool {
	s := m.shardFor(key)
	s.mu.Lock()
	_, ok := s.m[key]
	delete(s.m, key)
	s.mu.Unlock()
	return ok
}

// GetOrInsert returns the value for key, inserting the result of make
// under the shard lock when absent. make runs at most once per call
// and must not touch the map.
func (m *Map[K, V]) GetOrInsert(key K, make func() V) V {
	s := m.shardFor(key)
	s.mu.Lock()
	v, ok := s.m[key]
	if !ok {
		v = make()
		s.m[key] = v
	}
	s.mu.Unlock()
	return v
}

// Update applies fn to the current value for key under the shard
// lock. fn receives the value and whether it was present, and returns
// the new value and whether to keep it; returning keep=false deletes
// the key.
func (m *Map[K, V]) Update(key K, fn func(v V, ok bool) (V, bool)) {
	s := m.shardFor(key)
	s.mu.Lock()
	v, ok := s.m[key]
	nv, keep := fn(v, ok)
	if keep {
		s.m[key] = nv
	} else if ok {
		delete(s.m, key)
	}
	s.mu.Unlock()
}

// Range calls fn for each entry until fn returns false. Entries are
// visited under per-shard read locks; fn must not mutate the map.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		for k, v := range s.m {
			if !fn(k, v) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}

// RetainIf deletes every entry for which keep returns false. Each
// shard is swept under its own write lock.
func (m *Map[K, V]) RetainIf(keep func(key K, value V) bool) {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		for k, v := range s.m {
			if !keep(k, v) {
				delete(s.m, k)
			}
		}
		s.mu.Unlock()
	}
}

// Len returns the total entry count across shards. The value is a
// snapshot; concurrent writers may change it immediately.
func (m *Map[K, V]) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}
