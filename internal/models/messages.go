// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package models

import "encoding/json"

// Opcode identifies a gateway message type. Server and client opcodes
// share one space; the direction is implied by the carrying envelope.
type Opcode uint8

// Server → client opcodes.
const (
	OpHello Opcode = iota
	OpHeartbeatAck
	OpReady
	OpInvalidSession
	OpPartyCreate
	OpPartyUpdate
	OpPartyDelete
	OpRoomCreate
	OpRoomUpdate
	OpRoomDelete
	OpRoleCreate
	OpRoleUpdate
	OpRoleDelete
	OpMemberJoin
	OpMemberUpdate
	OpMemberLeave
	OpMemberBan
	OpMemberUnban
	OpMessageCreate
	OpMessageUpdate
	OpMessageDelete
	OpPresenceUpdate
	OpTypingStart
)

// Client → server opcodes.
const (
	OpHeartbeat Opcode = 100 + iota
	OpIdentify
	OpResume
	OpSetPresence
	OpSubscribe
	OpUnsubscribe
)

// Intent is a bitmask of event categories a connection opts into at
// identify time. Events whose category is not covered are filtered
// before delivery.
type Intent uint32

const (
	IntentParties Intent = 1 << iota
	IntentPartyMembers
	IntentMessages
	IntentPresence
	IntentTyping
)

// IntentAll covers every category.
const IntentAll = IntentParties | IntentPartyMembers | IntentMessages | IntentPresence | IntentTyping

// Contains reports whether every bit of o is set in i.
func (i Intent) Contains(o Intent) bool { return i&o == o }

// intentByOpcode maps server opcodes to the intent gating them. Zero
// means the message is never filtered (control messages, Ready).
var intentByOpcode = map[Opcode]Intent{
	OpPartyCreate:    IntentParties,
	OpPartyUpdate:    IntentParties,
	OpPartyDelete:    IntentParties,
	OpRoomCreate:     IntentParties,
	OpRoomUpdate:     IntentParties,
	OpRoomDelete:     IntentParties,
	OpRoleCreate:     IntentParties,
	OpRoleUpdate:     IntentParties,
	OpRoleDelete:     IntentParties,
	OpMemberJoin:     IntentPartyMembers,
	OpMemberUpdate:   IntentPartyMembers,
	OpMemberLeave:    IntentPartyMembers,
	OpMemberBan:      IntentPartyMembers,
	OpMemberUnban:    IntentPartyMembers,
	OpMessageCreate:  IntentMessages,
	OpMessageUpdate:  IntentMessages,
	OpMessageDelete:  IntentMessages,
	OpPresenceUpdate: IntentPresence,
	OpTypingStart:    IntentTyping,
}

// MatchingIntent returns the intent gating op, or zero if unfiltered.
func (op Opcode) MatchingIntent() Intent { return intentByOpcode[op] }

// ServerMsg is one server → client gateway message: an opcode plus a
// payload. Payload is a concrete payload struct on the sending side
// and raw bytes on the receiving side.
type ServerMsg struct {
	Op      Opcode `json:"o" cbor:"1,keyasint"`
	Payload any    `json:"p,omitempty" cbor:"2,keyasint,omitempty"`
}

// ClientMsg is one client → server gateway message, decoded from the
// connection's negotiated wire encoding. Payload holds the raw payload
// bytes in that same encoding until the opcode selects a decode target;
// see gateway.DecodeClientMsg.
type ClientMsg struct {
	Op      Opcode
	Payload []byte
}

// HelloPayload announces the heartbeat contract on connect.
type HelloPayload struct {
	HeartbeatIntervalMS uint32 `json:"heartbeat_interval" cbor:"1,keyasint"`
}

// IdentifyPayload authenticates a connection and declares intents.
type IdentifyPayload struct {
	Auth   string `json:"auth" cbor:"1,keyasint"`
	Intent Intent `json:"intent" cbor:"2,keyasint"`
}

// SetPresencePayload asks the backend to change the sender's presence.
type SetPresencePayload struct {
	Status uint8 `json:"status" cbor:"1,keyasint"`
}

// SubscribePayload requests a party subscription change.
type SubscribePayload struct {
	PartyID PartyID `json:"party_id" cbor:"1,keyasint"`
}

// ReadyParty is one party in the initial snapshot: structure plus the
// receiving user's own membership.
type ReadyParty struct {
	ID      PartyID `json:"id" cbor:"1,keyasint"`
	OwnerID UserID  `json:"owner_id" cbor:"2,keyasint"`
	Roles   []Role  `json:"roles" cbor:"3,keyasint"`
	Me      Member  `json:"me" cbor:"4,keyasint"`
}

// ReadyRoom is one room in the initial snapshot, with its full
// overwrite list.
type ReadyRoom struct {
	ID         RoomID     `json:"id" cbor:"1,keyasint"`
	PartyID    PartyID    `json:"party_id" cbor:"2,keyasint"`
	Overwrites Overwrites `json:"overwrites" cbor:"3,keyasint"`
}

// ReadyPayload is the full-state snapshot bootstrapping a connection:
// every party visible to the user, every room, and the user's
// memberships. Delivered once after a successful identify.
type ReadyPayload struct {
	UserID  UserID       `json:"user_id" cbor:"1,keyasint"`
	Parties []ReadyParty `json:"parties" cbor:"2,keyasint"`
	Rooms   []ReadyRoom  `json:"rooms" cbor:"3,keyasint"`
}

// PartyPayload carries party lifecycle events. Roles is populated on
// create so receivers can seed structure without a snapshot refetch.
type PartyPayload struct {
	ID      PartyID `json:"id" cbor:"1,keyasint"`
	OwnerID UserID  `json:"owner_id" cbor:"2,keyasint"`
	Roles   []Role  `json:"roles,omitempty" cbor:"3,keyasint,omitempty"`
}

// RolePayload carries role lifecycle events.
type RolePayload struct {
	Role Role `json:"role" cbor:"1,keyasint"`
}

// RoleDeletePayload carries only the ids needed to drop a role.
type RoleDeletePayload struct {
	ID      RoleID  `json:"id" cbor:"1,keyasint"`
	PartyID PartyID `json:"party_id" cbor:"2,keyasint"`
}

// MemberPayload carries member lifecycle events.
type MemberPayload struct {
	Member Member `json:"member" cbor:"1,keyasint"`
}

// PartyDeletePayload announces a party removal.
type PartyDeletePayload struct {
	ID PartyID `json:"id" cbor:"1,keyasint"`
}

// RoomPayload carries room lifecycle events.
type RoomPayload struct {
	Room ReadyRoom `json:"room" cbor:"1,keyasint"`
}

// RoomDeletePayload announces a room removal.
type RoomDeletePayload struct {
	ID      RoomID  `json:"id" cbor:"1,keyasint"`
	PartyID PartyID `json:"party_id" cbor:"2,keyasint"`
}

// PresencePayload announces a user's presence change within a party.
type PresencePayload struct {
	UserID  UserID  `json:"user_id" cbor:"1,keyasint"`
	PartyID PartyID `json:"party_id" cbor:"2,keyasint"`
	Status  uint8   `json:"status" cbor:"3,keyasint"`
}

// TypingPayload announces a typing indicator in a room.
type TypingPayload struct {
	UserID  UserID  `json:"user_id" cbor:"1,keyasint"`
	PartyID PartyID `json:"party_id" cbor:"2,keyasint"`
	RoomID  RoomID  `json:"room_id" cbor:"3,keyasint"`
}

// MessagePayload carries message events. The body is opaque to the
// gateway; only routing metadata is inspected.
type MessagePayload struct {
	ID       Snowflake       `json:"id" cbor:"1,keyasint"`
	RoomID   RoomID          `json:"room_id" cbor:"2,keyasint"`
	AuthorID UserID          `json:"author_id" cbor:"3,keyasint"`
	Content  json.RawMessage `json:"content,omitempty" cbor:"4,keyasint,omitempty"`
}
