// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

// Package models contains the shared value types of Partyline: ids,
// permission bitsets, roles, overwrites, and gateway message shapes.
package models

import (
	"strconv"
	"sync/atomic"
	"time"
)

// Snowflake is a 64-bit time-sortable identifier for domain entities
// (users, parties, rooms, roles, messages). Layout: 42 bits of
// milliseconds since the Partyline epoch, 10 bits of worker id, 12 bits
// of sequence.
type Snowflake uint64

// Epoch is the Partyline snowflake epoch, 2020-01-01T00:00:00Z in Unix
// milliseconds.
const Epoch int64 = 1577836800000

const (
	timestampShift = 22
	workerShift    = 12
	sequenceMask   = 0xFFF
	workerMask     = 0x3FF
)

// Nil is the zero Snowflake, never assigned to an entity.
const Nil Snowflake = 0

// Timestamp returns the creation time encoded in the id.
func (s Snowflake) Timestamp() time.Time {
	ms := int64(s>>timestampShift) + Epoch
	return time.UnixMilli(ms)
}

// IsNil reports whether the id is the zero value.
func (s Snowflake) IsNil() bool { return s == Nil }

func (s Snowflake) String() string {
	return strconv.FormatUint(uint64(s), 10)
}

// ParseSnowflake parses the canonical decimal string form.
func ParseSnowflake(s string) (Snowflake, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return Nil, err
	}
	return Snowflake(v), nil
}

// SnowflakeGenerator mints Snowflakes for one worker. Safe for
// concurrent use; sequence numbers within a millisecond come from a
// single atomic counter, so ids are unique but not strictly ordered
// under contention.
type SnowflakeGenerator struct {
	worker uint64
	seq    atomic.Uint64
}

// NewSnowflakeGenerator creates a generator for the given worker id
// (truncated to 10 bits).
func NewSnowflakeGenerator(worker uint16) *SnowflakeGenerator {
	return &SnowflakeGenerator{worker: uint64(worker) & workerMask}
}

// Next returns a fresh Snowflake.
func (g *SnowflakeGenerator) Next() Snowflake {
	ms := uint64(time.Now().UnixMilli() - Epoch)
	seq := g.seq.Add(1) & sequenceMask
	return Snowflake(ms<<timestampShift | g.worker<<workerShift | seq)
}

// Aliases to make signatures self-describing. All are Snowflakes on
// the wire.
type (
	UserID  = Snowflake
	PartyID = Snowflake
	RoomID  = Snowflake
	RoleID  = Snowflake
)
