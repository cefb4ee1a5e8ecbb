// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package gateway

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/partyline/partyline/internal/models"
	"github.com/partyline/partyline/internal/observability"
)

const (
	// broadcastBuffer bounds the per-party event queue. Producers block
	// past this depth, applying backpressure to the backend stream.
	broadcastBuffer = 16

	// Delivery to a slow subscriber retries this many times before the
	// event is counted as lagged and dropped for that subscriber.
	deliverRetries = 3
	deliverBackoff = 5 * time.Millisecond
)

// PartyEmitter fans one party's event stream out to its subscribed
// connections. A single pump goroutine serializes fan-out so event
// order within a party is preserved.
type PartyEmitter struct {
	partyID models.PartyID
	events  chan *Event

	mu   sync.RWMutex
	subs map[ulid.ULID]*Conn

	stop sync.Once
}

// newPartyEmitter creates an emitter and starts its pump.
func newPartyEmitter(partyID models.PartyID) *PartyEmitter {
	e := &PartyEmitter{
		partyID: partyID,
		events:  make(chan *Event, broadcastBuffer),
		subs:    make(map[ulid.ULID]*Conn),
	}
	go e.pump()
	return e
}

// Subscribe attaches a connection to the party stream.
func (e *PartyEmitter) Subscribe(c *Conn) {
	e.mu.Lock()
	e.subs[c.ID] = c
	e.mu.Unlock()
}

// Unsubscribe detaches a connection.
func (e *PartyEmitter) Unsubscribe(id ulid.ULID) {
	e.mu.Lock()
	delete(e.subs, id)
	e.mu.Unlock()
}

// Len returns the subscriber count.
func (e *PartyEmitter) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs)
}

// Broadcast queues an event for fan-out, blocking when the party
// buffer is full until the pump catches up or ctx ends.
func (e *PartyEmitter) Broadcast(ctx context.Context, ev *Event) error {
	select {
	case e.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck // context errors pass through unwrapped
	}
}

// Close stops the pump after draining queued events.
func (e *PartyEmitter) Close() {
	e.stop.Do(func() { close(e.events) })
}

func (e *PartyEmitter) pump() {
	for ev := range e.events {
		e.mu.RLock()
		subs := make([]*Conn, 0, len(e.subs))
		for _, c := range e.subs {
			subs = append(subs, c)
		}
		e.mu.RUnlock()

		for _, c := range subs {
			e.deliver(c, ev)
		}
	}
}

// deliver retries a full subscriber buffer briefly, then drops the
// event for that subscriber and counts the lag. Dropping beats killing
// here: the subscriber still holds a consistent (if delayed) stream,
// and persistent laggards show up on the metric.
func (e *PartyEmitter) deliver(c *Conn, ev *Event) {
	for attempt := 0; ; attempt++ {
		if c.TrySend(ev) {
			return
		}
		if !c.Active() {
			return
		}
		if attempt >= deliverRetries {
			observability.RecordLaggedEvent(strconv.FormatUint(uint64(e.partyID), 10))
			slog.Warn("subscriber lagging, event dropped",
				"party_id", e.partyID, "conn_id", c.ID.String(), "op", ev.Op)
			return
		}
		time.Sleep(deliverBackoff)
	}
}
