// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package gateway

import (
	"encoding/json"

	"github.com/samber/oops"

	"github.com/partyline/partyline/internal/codec"
	"github.com/partyline/partyline/internal/models"
)

// The inbound envelope is decoded per encoding with the payload left
// raw, so the opcode can pick the decode target. json.RawMessage and
// codec.RawMessage defer differently, hence two mirror structs.
type jsonEnvelope struct {
	Op      models.Opcode   `json:"o"`
	Payload json.RawMessage `json:"p,omitempty"`
}

type cborEnvelope struct {
	Op      models.Opcode    `cbor:"1,keyasint"`
	Payload codec.RawMessage `cbor:"2,keyasint,omitempty"`
}

// DecodeClientMsg parses one inbound frame in the connection's
// negotiated encoding. The payload stays raw; DecodePayload finishes
// the job once the opcode is known.
func DecodeClientMsg(data []byte, enc Encoding) (models.ClientMsg, error) {
	switch enc {
	case EncodingCBOR:
		var env cborEnvelope
		if err := codec.Unmarshal(data, &env); err != nil {
			return models.ClientMsg{}, oops.Code("DECODE_FAILED").Wrap(err)
		}
		return models.ClientMsg{Op: env.Op, Payload: env.Payload}, nil
	default:
		var env jsonEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return models.ClientMsg{}, oops.Code("DECODE_FAILED").Wrap(err)
		}
		return models.ClientMsg{Op: env.Op, Payload: env.Payload}, nil
	}
}

// DecodePayload decodes a client message payload into v using the
// connection's negotiated encoding. A missing payload is an error;
// every client opcode carrying one requires it.
func DecodePayload(msg models.ClientMsg, enc Encoding, v any) error {
	if len(msg.Payload) == 0 {
		return oops.Code("DECODE_FAILED").With("op", msg.Op).Errorf("missing payload")
	}
	var err error
	switch enc {
	case EncodingCBOR:
		err = codec.Unmarshal(msg.Payload, v)
	default:
		err = json.Unmarshal(msg.Payload, v)
	}
	if err != nil {
		return oops.Code("DECODE_FAILED").With("op", msg.Op).Wrap(err)
	}
	return nil
}
