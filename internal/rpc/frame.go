// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package rpc

import (
	"encoding/binary"
	"io"

	"github.com/samber/oops"

	"github.com/partyline/partyline/internal/codec"
)

// maxFrameSize bounds a single envelope. The largest legitimate frame
// is a ready snapshot for a user in many large parties; 4 MB leaves
// ample headroom while keeping a malformed length prefix harmless.
const maxFrameSize = 4 * 1024 * 1024

// WriteEnvelope frames env onto w: a big-endian uint32 length prefix
// followed by the CBOR-encoded envelope.
func WriteEnvelope(w io.Writer, env *Envelope) error {
	data, err := codec.Marshal(env)
	if err != nil {
		return oops.In("rpc").Code("ENCODE_FAILED").Wrap(err)
	}
	if len(data) > maxFrameSize {
		return oops.In("rpc").
			Code("FRAME_TOO_LARGE").
			With("size", len(data)).
			Errorf("envelope exceeds frame limit")
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(data)))
	if _, err := w.Write(prefix[:]); err != nil {
		return oops.In("rpc").Code("WRITE_FAILED").Wrap(err)
	}
	if _, err := w.Write(data); err != nil {
		return oops.In("rpc").Code("WRITE_FAILED").Wrap(err)
	}
	return nil
}

// ReadEnvelope reads one framed envelope from r. A length prefix over
// the limit poisons the stream, so the caller must drop the conn.
func ReadEnvelope(r io.Reader) (*Envelope, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, oops.In("rpc").Code("READ_FAILED").Wrap(err)
	}

	size := binary.BigEndian.Uint32(prefix[:])
	if size > maxFrameSize {
		return nil, oops.In("rpc").
			Code("FRAME_TOO_LARGE").
			With("size", size).
			Errorf("frame length exceeds limit")
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, oops.In("rpc").Code("READ_FAILED").Wrap(err)
	}

	var env Envelope
	if err := codec.Unmarshal(data, &env); err != nil {
		return nil, oops.In("rpc").Code("DECODE_FAILED").Wrap(err)
	}
	return &env, nil
}
