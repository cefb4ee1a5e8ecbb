// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package gateway

import (
	"errors"
	"net"

	"github.com/gorilla/websocket"
)

// item is one outcome of the socket reader goroutine: a frame, or the
// reason reading stopped.
type item struct {
	data []byte
	err  error
}

// isExpectedClose reports whether a read error is an ordinary session
// end rather than something worth logging loudly.
func isExpectedClose(err error) bool {
	if err == nil {
		return false
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, net.ErrClosed)
}
