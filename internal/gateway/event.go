// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

// Package gateway implements the realtime connection core: websocket
// session handling, heartbeats, party subscriptions, and permission
// gated event fan-out.
package gateway

import (
	"bytes"
	"encoding/json"

	"github.com/klauspost/compress/flate"
	"github.com/samber/oops"

	"github.com/partyline/partyline/internal/codec"
	"github.com/partyline/partyline/internal/models"
)

// Encoding selects the wire representation a connection negotiated at
// upgrade time.
type Encoding uint8

const (
	EncodingJSON Encoding = iota
	EncodingCBOR
)

// ParseEncoding maps the "encoding" query parameter to an Encoding.
// Empty defaults to JSON.
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "", "json":
		return EncodingJSON, nil
	case "cbor":
		return EncodingCBOR, nil
	default:
		return 0, oops.Code("UNKNOWN_ENCODING").With("encoding", s).Errorf("unknown wire encoding")
	}
}

// Event is a server message encoded once, up front, in every wire form
// a connection might have negotiated. Fan-out then reduces to a buffer
// lookup per subscriber, no matter how many receive it.
type Event struct {
	Op       models.Opcode
	PartyID  models.PartyID
	RoomID   models.RoomID
	AuthorID models.UserID

	// Indexed [encoding][compressed].
	encoded [2][2][]byte
}

// NewEvent encodes msg in all wire forms. PartyID, RoomID, and
// AuthorID are routing metadata; zero values mean "not scoped".
func NewEvent(msg models.ServerMsg, partyID models.PartyID, roomID models.RoomID, authorID models.UserID) (*Event, error) {
	ev := &Event{
		Op:       msg.Op,
		PartyID:  partyID,
		RoomID:   roomID,
		AuthorID: authorID,
	}

	jsonBuf, err := json.Marshal(msg)
	if err != nil {
		return nil, oops.Code("ENCODE_FAILED").With("op", msg.Op).Wrap(err)
	}
	cborBuf, err := codec.Marshal(msg)
	if err != nil {
		return nil, oops.Code("ENCODE_FAILED").With("op", msg.Op).Wrap(err)
	}

	ev.encoded[EncodingJSON][0] = jsonBuf
	ev.encoded[EncodingCBOR][0] = cborBuf

	if ev.encoded[EncodingJSON][1], err = deflate(jsonBuf); err != nil {
		return nil, err
	}
	if ev.encoded[EncodingCBOR][1], err = deflate(cborBuf); err != nil {
		return nil, err
	}
	return ev, nil
}

// Payload returns the pre-encoded bytes for one wire form. The caller
// must not mutate the returned slice.
func (ev *Event) Payload(enc Encoding, compressed bool) []byte {
	if compressed {
		return ev.encoded[enc][1]
	}
	return ev.encoded[enc][0]
}

// RoomScoped reports whether delivery requires a room visibility
// check. Room lifecycle events carry a RoomID for cache invalidation
// but are party-visible; only room traffic is gated.
func (ev *Event) RoomScoped() bool {
	switch ev.Op {
	case models.OpMessageCreate, models.OpMessageUpdate, models.OpMessageDelete, models.OpTypingStart:
		return ev.RoomID != 0
	default:
		return false
	}
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestSpeed)
	if err != nil {
		return nil, oops.Code("COMPRESS_FAILED").Wrap(err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, oops.Code("COMPRESS_FAILED").Wrap(err)
	}
	if err := w.Close(); err != nil {
		return nil, oops.Code("COMPRESS_FAILED").Wrap(err)
	}
	return buf.Bytes(), nil
}

func mustEvent(msg models.ServerMsg) *Event {
	ev, err := NewEvent(msg, 0, 0, 0)
	if err != nil {
		panic(err)
	}
	return ev
}

// Control events shared by every connection. HeartbeatAck and
// InvalidSession never vary, so they are built once at startup; Hello
// varies only with the configured interval and is built per server.
var (
	heartbeatAckEvent   = mustEvent(models.ServerMsg{Op: models.OpHeartbeatAck})
	invalidSessionEvent = mustEvent(models.ServerMsg{Op: models.OpInvalidSession})
)

// HelloEvent builds the Hello control event announcing the heartbeat
// interval.
func HelloEvent(intervalMS uint32) (*Event, error) {
	return NewEvent(models.ServerMsg{
		Op:      models.OpHello,
		Payload: models.HelloPayload{HeartbeatIntervalMS: intervalMS},
	}, 0, 0, 0)
}
