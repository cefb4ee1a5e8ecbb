// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package gateway

import (
	"sync/atomic"
	"time"
)

// heartEpoch anchors beat timestamps. Captured once at startup, it
// retains its monotonic reading, so liveness arithmetic is immune to
// wall-clock steps (NTP adjustments, manual changes).
var heartEpoch = time.Now()

// Heart tracks liveness of one connection. The client must send a
// heartbeat at the interval announced in Hello; the probe loop checks
// the elapsed time against the timeout.
type Heart struct {
	// lastBeat is the monotonic offset from heartEpoch, in
	// nanoseconds, of the most recent heartbeat.
	lastBeat atomic.Int64
}

// NewHeart returns a Heart primed with the current time, so a fresh
// connection gets a full interval before its first beat is due.
func NewHeart() *Heart {
	h := &Heart{}
	h.Beat()
	return h
}

// Beat records a heartbeat.
func (h *Heart) Beat() {
	h.lastBeat.Store(int64(time.Since(heartEpoch)))
}

// Alive reports whether a beat arrived within the timeout.
func (h *Heart) Alive(timeout time.Duration) bool {
	elapsed := time.Since(heartEpoch) - time.Duration(h.lastBeat.Load())
	return elapsed <= timeout
}
