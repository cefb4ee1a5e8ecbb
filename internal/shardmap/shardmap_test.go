// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package shardmap_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partyline/partyline/internal/shardmap"
)

func TestMap_Basics(t *testing.T) {
	m := shardmap.New[uint64, string]()

	_, ok := m.Get(1)
	assert.False(t, ok)

	m.Set(1, "a")
	v, ok := m.Get(1)
	require.True(t, ok)
	assert.Equal(t, "a", v)

	assert.True(t, m.Delete(1))
	assert.False(t, m.Delete(1))
}

func TestMap_GetOrInsert(t *testing.T) {
	m := shardmap.New[uint64, *int]()

	calls := 0
	mk := func() *int { calls++; n := 42; return &n }

	a := m.GetOrInsert(7, mk)
	b := m.GetOrInsert(7, mk)
	assert.Same(t, a, b)
	assert.Equal(t, 1, calls)
}

func TestMap_RetainIf(t *testing.T) {
	m := shardmap.New[int, int]()
	for i := range 100 {
		m.Set(i, i)
	}

	m.RetainIf(func(_ int, v int) bool { return v%2 == 0 })
	assert.Equal(t, 50, m.Len())
}

func TestMap_ConcurrentAccess(t *testing.T) {
	m := shardmap.New[int, int]()

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 1000 {
				k := g*1000 + i
				m.Set(k, k)
				_, _ = m.Get(k)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 8000, m.Len())
}
