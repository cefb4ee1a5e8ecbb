// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package gateway

import (
	"context"

	"github.com/oklog/ulid/v2"

	"github.com/partyline/partyline/internal/models"
	"github.com/partyline/partyline/internal/shardmap"
)

// Registry tracks every live connection on this gateway node, the
// users behind them, and the per-party emitters. It is the routing
// fabric between the backend event stream and individual sessions.
type Registry struct {
	conns   *shardmap.Map[ulid.ULID, *Conn]
	users   *shardmap.Map[models.UserID, []*Conn]
	parties *shardmap.Map[models.PartyID, *PartyEmitter]
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:   shardmap.New[ulid.ULID, *Conn](),
		users:   shardmap.New[models.UserID, []*Conn](),
		parties: shardmap.New[models.PartyID, *PartyEmitter](),
	}
}

// Register adds a connection before identify.
func (r *Registry) Register(c *Conn) {
	r.conns.Set(c.ID, c)
}

// BindUser associates an identified connection with its user, enabling
// user-targeted delivery.
func (r *Registry) BindUser(c *Conn) {
	userID := c.UserID()
	r.users.Update(userID, func(conns []*Conn, _ bool) ([]*Conn, bool) {
		next := make([]*Conn, 0, len(conns)+1)
		next = append(next, conns...)
		return append(next, c), true
	})
}

// Unregister removes a connection everywhere: the conn table, its user
// binding, and every party emitter.
func (r *Registry) Unregister(c *Conn) {
	r.conns.Delete(c.ID)

	if userID := c.UserID(); userID != 0 {
		r.users.Update(userID, func(conns []*Conn, ok bool) ([]*Conn, bool) {
			if !ok {
				return nil, false
			}
			next := make([]*Conn, 0, len(conns))
			for _, other := range conns {
				if other.ID != c.ID {
					next = append(next, other)
				}
			}
			return next, len(next) > 0
		})
	}

	r.parties.Range(func(_ models.PartyID, e *PartyEmitter) bool {
		e.Unsubscribe(c.ID)
		return true
	})
}

// Subscribe attaches a connection to a party's event stream, creating
// the emitter on first use.
func (r *Registry) Subscribe(partyID models.PartyID, c *Conn) {
	e := r.parties.GetOrInsert(partyID, func() *PartyEmitter {
		return newPartyEmitter(partyID)
	})
	e.Subscribe(c)
}

// Unsubscribe detaches a connection from a party's event stream.
func (r *Registry) Unsubscribe(partyID models.PartyID, c *Conn) {
	if e, ok := r.parties.Get(partyID); ok {
		e.Unsubscribe(c.ID)
	}
}

// BroadcastParty queues an event to every subscriber of a party. A
// party nobody on this node subscribes to is a no-op.
func (r *Registry) BroadcastParty(ctx context.Context, partyID models.PartyID, ev *Event) error {
	e, ok := r.parties.Get(partyID)
	if !ok {
		return nil
	}
	return e.Broadcast(ctx, ev)
}

// SendToUser delivers an event to every connection of one user. A full
// session buffer on a targeted delivery kills that session; unlike a
// party broadcast, the client cannot recover the gap later.
func (r *Registry) SendToUser(userID models.UserID, ev *Event) {
	conns, ok := r.users.Get(userID)
	if !ok {
		return
	}
	for _, c := range conns {
		c.SendOrKill(ev)
	}
}

// ClosePartyEmitter drains and removes a party's emitter, after the
// party itself is deleted.
func (r *Registry) ClosePartyEmitter(partyID models.PartyID) {
	if e, ok := r.parties.Get(partyID); ok {
		r.parties.Delete(partyID)
		e.Close()
	}
}

// ConnCount returns the number of live connections.
func (r *Registry) ConnCount() int { return r.conns.Len() }
