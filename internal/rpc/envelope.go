// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

// Package rpc defines the wire contract between the backend and its
// gateway nodes: length-framed CBOR envelopes carrying requests,
// responses, and errors, and a client that reconnects with backoff.
// The transport itself is out of scope; anything ordered, reliable,
// and encrypted carries the frames.
package rpc

import (
	"github.com/samber/oops"

	"github.com/partyline/partyline/internal/codec"
)

// Kind discriminates envelope variants.
type Kind uint8

const (
	KindRequest Kind = iota + 1
	KindResponse
	KindError
)

// Error is the wire form of a failed call. Code carries the same
// values the services use (NOT_FOUND, UNAUTHORIZED, ...).
type Error struct {
	Code    string `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`
}

// Envelope is one framed message. Seq pairs a response with its
// request; Method is set on requests only; exactly one of Payload and
// Err is set on the way back.
type Envelope struct {
	Seq     uint32           `cbor:"1,keyasint"`
	Kind    Kind             `cbor:"2,keyasint"`
	Method  string           `cbor:"3,keyasint,omitempty"`
	Payload codec.RawMessage `cbor:"4,keyasint,omitempty"`
	Err     *Error           `cbor:"5,keyasint,omitempty"`
}

// NewRequest builds a request envelope with an encoded body.
func NewRequest(seq uint32, method string, body any) (*Envelope, error) {
	payload, err := codec.Marshal(body)
	if err != nil {
		return nil, oops.In("rpc").
			Code("ENCODE_FAILED").
			With("method", method).
			Wrap(err)
	}
	return &Envelope{Seq: seq, Kind: KindRequest, Method: method, Payload: payload}, nil
}

// NewResponse builds a success response paired to seq.
func NewResponse(seq uint32, body any) (*Envelope, error) {
	payload, err := codec.Marshal(body)
	if err != nil {
		return nil, oops.In("rpc").Code("ENCODE_FAILED").Wrap(err)
	}
	return &Envelope{Seq: seq, Kind: KindResponse, Payload: payload}, nil
}

// NewError builds an error response paired to seq.
func NewError(seq uint32, code, message string) *Envelope {
	return &Envelope{Seq: seq, Kind: KindError, Err: &Error{Code: code, Message: message}}
}

// Decode unmarshals the envelope payload into v.
func (e *Envelope) Decode(v any) error {
	if err := codec.Unmarshal(e.Payload, v); err != nil {
		return oops.In("rpc").
			Code("DECODE_FAILED").
			With("method", e.Method).
			With("seq", e.Seq).
			Wrap(err)
	}
	return nil
}
