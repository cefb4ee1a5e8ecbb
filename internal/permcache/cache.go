// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

// Package permcache holds resolved per-user, per-room permissions with
// reference counting, so backend request paths can skip recomputing
// permissions while at least one live connection exists for the user.
package permcache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/partyline/partyline/internal/models"
	"github.com/partyline/partyline/internal/shardmap"
)

// Default cache configuration values.
const (
	defaultSweepInterval = 60 * time.Second
)

// Entry is the cached resolution result for one user in one room.
type Entry struct {
	Perms models.Permissions
	Muted bool
}

// Option configures Cache behavior.
type Option func(*config)

type config struct {
	sweepInterval time.Duration
	opsCounter    *prometheus.CounterVec
}

// WithSweepInterval sets how often RunSweeper drops unreferenced users.
func WithSweepInterval(d time.Duration) Option {
	return func(c *config) {
		c.sweepInterval = d
	}
}

// WithOpsCounter sets the Prometheus counter recording cache hits and
// misses under the "result" label.
func WithOpsCounter(cv *prometheus.CounterVec) Option {
	return func(c *config) {
		c.opsCounter = cv
	}
}

// userEntry holds all cached rooms for one user plus the number of live
// connections referencing them. refs may go briefly negative when a
// disconnect races a connect; the sweeper only reclaims entries at or
// below zero.
type userEntry struct {
	refs atomic.Int64

	mu    sync.RWMutex
	rooms map[models.RoomID]Entry
}

// Cache is a sharded flat cache of resolved permissions keyed by user
// then room. All methods are safe for concurrent use.
type Cache struct {
	cfg   config
	users *shardmap.Map[models.UserID, *userEntry]
}

// NewCache creates an empty Cache.
func NewCache(opts ...Option) *Cache {
	cfg := config{
		sweepInterval: defaultSweepInterval,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Cache{
		cfg:   cfg,
		users: shardmap.New[models.UserID, *userEntry](),
	}
}

func (c *Cache) record(result string) {
	if c.cfg.opsCounter != nil {
		c.cfg.opsCounter.WithLabelValues(result).Inc()
	}
}

// Get returns the cached entry for the user in the room, if present.
func (c *Cache) Get(userID models.UserID, roomID models.RoomID) (Entry, bool) {
	ue, ok := c.users.Get(userID)
	if !ok {
		c.record("miss")
		return Entry{}, false
	}

	ue.mu.RLock()
	entry, ok := ue.rooms[roomID]
	ue.mu.RUnlock()

	if !ok {
		c.record("miss")
		return Entry{}, false
	}
	c.record("hit")
	return entry, true
}

// Set stores the entry for the user in the room, creating the user's
// bucket if needed. A bucket created by Set starts with zero references
// and survives until a sweep unless AddReference is called.
func (c *Cache) Set(userID models.UserID, roomID models.RoomID, entry Entry) {
	ue := c.bucket(userID)
	ue.mu.Lock()
	ue.rooms[roomID] = entry
	ue.mu.Unlock()
}

// BatchSet stores many room entries for one user under a single lock.
// Used when a connection identifies and permissions for every visible
// room arrive together.
func (c *Cache) BatchSet(userID models.UserID, entries map[models.RoomID]Entry) {
	if len(entries) == 0 {
		return
	}
	ue := c.bucket(userID)
	ue.mu.Lock()
	for roomID, entry := range entries {
		ue.rooms[roomID] = entry
	}
	ue.mu.Unlock()
}

// Clear removes every cached room entry for the user while keeping the
// reference count, so in-flight connections repopulate on next use.
func (c *Cache) Clear(userID models.UserID) {
	ue, ok := c.users.Get(userID)
	if !ok {
		return
	}
	ue.mu.Lock()
	clear(ue.rooms)
	ue.mu.Unlock()
}

// ClearAll drops every cached resolution while keeping reference
// counts. Coarse invalidation for party-wide changes, like a role
// permission edit, whose affected holders cannot be enumerated here.
func (c *Cache) ClearAll() {
	c.users.Range(func(_ models.UserID, ue *userEntry) bool {
		ue.mu.Lock()
		clear(ue.rooms)
		ue.mu.Unlock()
		return true
	})
}

// ClearRoom removes the cached entry for a single room across one user.
func (c *Cache) ClearRoom(userID models.UserID, roomID models.RoomID) {
	ue, ok := c.users.Get(userID)
	if !ok {
		return
	}
	ue.mu.Lock()
	delete(ue.rooms, roomID)
	ue.mu.Unlock()
}

// AddReference notes a live connection for the user. Entries for users
// with at least one reference are never swept.
func (c *Cache) AddReference(userID models.UserID) {
	c.bucket(userID).refs.Add(1)
}

// RemoveReference drops a connection's claim on the user's entries. The
// entries remain until the next sweep so quick reconnects stay warm.
func (c *Cache) RemoveReference(userID models.UserID) {
	if ue, ok := c.users.Get(userID); ok {
		ue.refs.Add(-1)
	}
}

// Refs reports the current reference count for a user. Zero for
// unknown users.
func (c *Cache) Refs(userID models.UserID) int64 {
	if ue, ok := c.users.Get(userID); ok {
		return ue.refs.Load()
	}
	return 0
}

// Len returns the number of users with cached entries.
func (c *Cache) Len() int {
	return c.users.Len()
}

// Sweep removes entries for users with no remaining references and
// returns how many users were dropped.
func (c *Cache) Sweep() int {
	removed := 0
	c.users.RetainIf(func(_ models.UserID, ue *userEntry) bool {
		if ue.refs.Load() > 0 {
			return true
		}
		removed++
		return false
	})
	return removed
}

// RunSweeper periodically sweeps unreferenced users until the context
// is cancelled. Intended to run as a background goroutine.
func (c *Cache) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := c.Sweep(); removed > 0 {
				slog.Debug("permission cache sweep", "removed_users", removed)
			}
		}
	}
}

func (c *Cache) bucket(userID models.UserID) *userEntry {
	return c.users.GetOrInsert(userID, func() *userEntry {
		return &userEntry{rooms: make(map[models.RoomID]Entry)}
	})
}
