// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partyline/partyline/internal/codec"
	"github.com/partyline/partyline/internal/models"
)

func inflate(t *testing.T, data []byte) []byte {
	t.Helper()
	r := flate.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	return out
}

func TestParseEncoding(t *testing.T) {
	enc, err := ParseEncoding("")
	require.NoError(t, err)
	assert.Equal(t, EncodingJSON, enc)

	enc, err = ParseEncoding("json")
	require.NoError(t, err)
	assert.Equal(t, EncodingJSON, enc)

	enc, err = ParseEncoding("cbor")
	require.NoError(t, err)
	assert.Equal(t, EncodingCBOR, enc)

	_, err = ParseEncoding("msgpack")
	assert.Error(t, err)
}

func TestNewEvent_AllWireForms(t *testing.T) {
	msg := models.ServerMsg{
		Op:      models.OpMessageCreate,
		Payload: models.MessagePayload{ID: 7, RoomID: 42, AuthorID: 9},
	}
	ev, err := NewEvent(msg, 5, 42, 9)
	require.NoError(t, err)

	// JSON form decodes back to the envelope.
	var jsonEnv struct {
		Op models.Opcode `json:"o"`
	}
	require.NoError(t, json.Unmarshal(ev.Payload(EncodingJSON, false), &jsonEnv))
	assert.Equal(t, models.OpMessageCreate, jsonEnv.Op)

	// CBOR form decodes too.
	var cborEnv struct {
		Op models.Opcode `cbor:"1,keyasint"`
	}
	require.NoError(t, codec.Unmarshal(ev.Payload(EncodingCBOR, false), &cborEnv))
	assert.Equal(t, models.OpMessageCreate, cborEnv.Op)

	// Compressed forms inflate to the plain bytes.
	assert.Equal(t, ev.Payload(EncodingJSON, false), inflate(t, ev.Payload(EncodingJSON, true)))
	assert.Equal(t, ev.Payload(EncodingCBOR, false), inflate(t, ev.Payload(EncodingCBOR, true)))
}

func TestEvent_RoomScoped(t *testing.T) {
	msgEv, err := NewEvent(models.ServerMsg{Op: models.OpMessageCreate}, 5, 42, 9)
	require.NoError(t, err)
	assert.True(t, msgEv.RoomScoped())

	// Room lifecycle events carry a room id but stay party-visible.
	roomEv, err := NewEvent(models.ServerMsg{Op: models.OpRoomUpdate}, 5, 42, 0)
	require.NoError(t, err)
	assert.False(t, roomEv.RoomScoped())

	partyEv, err := NewEvent(models.ServerMsg{Op: models.OpRoleUpdate}, 5, 0, 0)
	require.NoError(t, err)
	assert.False(t, partyEv.RoomScoped())
}

func TestHelloEvent(t *testing.T) {
	ev, err := HelloEvent(45000)
	require.NoError(t, err)

	var env struct {
		Op      models.Opcode       `json:"o"`
		Payload models.HelloPayload `json:"p"`
	}
	require.NoError(t, json.Unmarshal(ev.Payload(EncodingJSON, false), &env))
	assert.Equal(t, models.OpHello, env.Op)
	assert.Equal(t, uint32(45000), env.Payload.HeartbeatIntervalMS)
}

func TestStaticEvents(t *testing.T) {
	var env struct {
		Op models.Opcode `json:"o"`
	}
	require.NoError(t, json.Unmarshal(heartbeatAckEvent.Payload(EncodingJSON, false), &env))
	assert.Equal(t, models.OpHeartbeatAck, env.Op)

	require.NoError(t, json.Unmarshal(invalidSessionEvent.Payload(EncodingJSON, false), &env))
	assert.Equal(t, models.OpInvalidSession, env.Op)
}
