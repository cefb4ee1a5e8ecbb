// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partyline/partyline/internal/codec"
	"github.com/partyline/partyline/internal/models"
	"github.com/partyline/partyline/pkg/errutil"
)

func TestDecodeClientMsg_JSON(t *testing.T) {
	data := []byte(`{"o":101,"p":{"auth":"token","intent":3}}`)

	msg, err := DecodeClientMsg(data, EncodingJSON)
	require.NoError(t, err)
	assert.Equal(t, models.OpIdentify, msg.Op)

	var p models.IdentifyPayload
	require.NoError(t, DecodePayload(msg, EncodingJSON, &p))
	assert.Equal(t, "token", p.Auth)
	assert.Equal(t, models.IntentParties|models.IntentPartyMembers, p.Intent)
}

func TestDecodeClientMsg_CBOR(t *testing.T) {
	// Build the payload separately the way a real client would.
	payload, err := codec.Marshal(models.SubscribePayload{PartyID: 5000})
	require.NoError(t, err)
	data, err := codec.Marshal(cborEnvelope{Op: models.OpSubscribe, Payload: payload})
	require.NoError(t, err)

	msg, err := DecodeClientMsg(data, EncodingCBOR)
	require.NoError(t, err)
	assert.Equal(t, models.OpSubscribe, msg.Op)

	var p models.SubscribePayload
	require.NoError(t, DecodePayload(msg, EncodingCBOR, &p))
	assert.Equal(t, models.PartyID(5000), p.PartyID)
}

func TestDecodeClientMsg_Garbage(t *testing.T) {
	_, err := DecodeClientMsg([]byte("not a frame"), EncodingJSON)
	errutil.AssertErrorCode(t, err, "DECODE_FAILED")

	_, err = DecodeClientMsg([]byte{0xff, 0xff}, EncodingCBOR)
	errutil.AssertErrorCode(t, err, "DECODE_FAILED")
}

func TestDecodePayload_Missing(t *testing.T) {
	msg := models.ClientMsg{Op: models.OpIdentify}
	var p models.IdentifyPayload
	err := DecodePayload(msg, EncodingJSON, &p)
	errutil.AssertErrorCode(t, err, "DECODE_FAILED")
}

func TestDecodeClientMsg_HeartbeatWithoutPayload(t *testing.T) {
	msg, err := DecodeClientMsg([]byte(`{"o":100}`), EncodingJSON)
	require.NoError(t, err)
	assert.Equal(t, models.OpHeartbeat, msg.Op)
	assert.Empty(t, msg.Payload)
}
