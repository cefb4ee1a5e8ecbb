// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package gateway

import (
	"context"
	"crypto/rand"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/partyline/partyline/internal/models"
)

// Conn is the emitter-facing handle for one websocket session. The
// session's actor loop drains tx; emitters deliver into it without
// blocking. A connection that cannot keep its buffer drained is
// deactivated and killed rather than allowed to stall fan-out.
type Conn struct {
	ID ulid.ULID

	// UserID is zero until the session identifies.
	userID atomic.Uint64

	tx     chan *Event
	kill   context.CancelFunc
	active atomic.Bool

	enc        Encoding
	compressed bool
}

// NewConn creates a connection handle with a bounded send queue. kill
// cancels the session's context, ending its actor loop.
func NewConn(queueSize int, enc Encoding, compressed bool, kill context.CancelFunc) *Conn {
	c := &Conn{
		ID:         ulid.MustNew(ulid.Now(), rand.Reader),
		tx:         make(chan *Event, queueSize),
		kill:       kill,
		enc:        enc,
		compressed: compressed,
	}
	c.active.Store(true)
	return c
}

// UserID returns the identified user, or zero before identify.
func (c *Conn) UserID() models.UserID {
	return models.UserID(c.userID.Load())
}

// SetUserID records the identified user.
func (c *Conn) SetUserID(id models.UserID) {
	c.userID.Store(uint64(id))
}

// Active reports whether the connection still accepts events.
func (c *Conn) Active() bool { return c.active.Load() }

// Events returns the channel the session's actor loop drains.
func (c *Conn) Events() <-chan *Event { return c.tx }

// TrySend queues an event without blocking. It reports false when the
// connection is inactive or its buffer is full.
func (c *Conn) TrySend(ev *Event) bool {
	if !c.active.Load() {
		return false
	}
	select {
	case c.tx <- ev:
		return true
	default:
		return false
	}
}

// SendOrKill queues an event; a full buffer deactivates and kills the
// connection. Used for targeted deliveries where dropping would
// desynchronize the client.
func (c *Conn) SendOrKill(ev *Event) bool {
	if c.TrySend(ev) {
		return true
	}
	c.Kill()
	return false
}

// Kill deactivates the connection and cancels its session context.
// Safe to call more than once.
func (c *Conn) Kill() {
	if c.active.CompareAndSwap(true, false) {
		c.kill()
	}
}
