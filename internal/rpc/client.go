// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package rpc

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

const (
	reconnectBase    = 250 * time.Millisecond
	reconnectRetries = 5
)

// Dialer opens one stream to the peer.
type Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

// Client issues calls over a single stream, one in flight at a time.
// A broken stream is dropped and redialed with fibonacci backoff on
// the next call.
type Client struct {
	dial   Dialer
	logger *slog.Logger

	mu   sync.Mutex
	conn io.ReadWriteCloser
	seq  uint32
}

func NewClient(dial Dialer, logger *slog.Logger) *Client {
	return &Client{dial: dial, logger: logger.With("component", "rpc")}
}

// Call encodes in, sends it as method, and decodes the paired
// response into out. out may be nil when the response body is empty.
// An error envelope surfaces with its wire code.
func (c *Client) Call(ctx context.Context, method string, in, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.ensure(ctx)
	if err != nil {
		return err
	}

	c.seq++
	req, err := NewRequest(c.seq, method, in)
	if err != nil {
		return err
	}

	if err := WriteEnvelope(conn, req); err != nil {
		c.drop()
		return err
	}
	resp, err := ReadEnvelope(conn)
	if err != nil {
		c.drop()
		return err
	}

	if resp.Seq != req.Seq {
		// The stream is desynchronized; nothing on it is trustworthy.
		c.drop()
		return oops.In("rpc").
			Code("SEQ_MISMATCH").
			With("method", method).
			With("want", req.Seq).
			With("got", resp.Seq).
			Errorf("response out of sequence")
	}

	switch resp.Kind {
	case KindResponse:
		if out == nil {
			return nil
		}
		return resp.Decode(out)
	case KindError:
		if resp.Err == nil {
			c.drop()
			return oops.In("rpc").
				Code("BAD_ENVELOPE").
				With("method", method).
				Errorf("error envelope without an error")
		}
		return oops.In("rpc").
			Code(resp.Err.Code).
			With("method", method).
			Errorf("%s", resp.Err.Message)
	default:
		c.drop()
		return oops.In("rpc").
			Code("BAD_ENVELOPE").
			With("kind", uint8(resp.Kind)).
			Errorf("unexpected envelope kind")
	}
}

// ensure returns the live stream, dialing with backoff if there is
// none. Caller holds mu.
func (c *Client) ensure(ctx context.Context) (io.ReadWriteCloser, error) {
	if c.conn != nil {
		return c.conn, nil
	}

	backoff := retry.WithMaxRetries(reconnectRetries, retry.NewFibonacci(reconnectBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		conn, err := c.dial(ctx)
		if err != nil {
			c.logger.Warn("dial failed", "error", err)
			return retry.RetryableError(err)
		}
		c.conn = conn
		return nil
	})
	if err != nil {
		return nil, oops.In("rpc").Code("DIAL_FAILED").Wrap(err)
	}
	return c.conn, nil
}

// drop discards the stream after a failure. Caller holds mu.
func (c *Client) drop() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// Close shuts the client down. Subsequent calls redial.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drop()
	return nil
}
