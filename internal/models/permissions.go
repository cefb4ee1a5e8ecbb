// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package models

import (
	"fmt"
	"strconv"
)

// Permissions is the capability bitset a user holds in a party or room.
// It is a 128-bit value split across two words: Low carries party-wide
// capabilities, High carries room-scoped ones. Permissions is an
// immutable value type; every operation returns a new value.
type Permissions struct {
	Low  uint64 `json:"l" cbor:"1,keyasint"`
	High uint64 `json:"h" cbor:"2,keyasint"`
}

// Party-wide capabilities (low word).
const (
	PermAdministrator uint64 = 1 << iota
	PermCreateInvite
	PermKickMembers
	PermBanMembers
	PermViewAuditLog
	PermViewStatistics
	PermManageParty
	PermManageRooms
	PermManageNicknames
	PermManageRoles
	PermManageWebhooks
	PermManageExpressions
	PermMoveMembers
	PermChangeNickname
)

// Room-scoped capabilities (high word).
const (
	PermViewRoom uint64 = 1 << iota
	PermReadMessageHistory
	PermSendMessages
	PermManageMessages
	PermMuteMembers
	PermDeafenMembers
	PermMentionEveryone
	PermUseExternalEmotes
	PermAddReactions
	PermEmbedLinks
	PermAttachFiles
	PermUseSlashCommands
	PermSendTTSMessages
	PermStream
)

// NoPermissions is the empty set.
var NoPermissions = Permissions{}

// AllPermissions has every bit set. Owners and administrators resolve
// to this value.
var AllPermissions = Permissions{Low: ^uint64(0), High: ^uint64(0)}

// PartyPerms builds a Permissions from low-word bits.
func PartyPerms(bits uint64) Permissions { return Permissions{Low: bits} }

// RoomPerms builds a Permissions from high-word bits.
func RoomPerms(bits uint64) Permissions { return Permissions{High: bits} }

// Union returns p | o.
func (p Permissions) Union(o Permissions) Permissions {
	return Permissions{Low: p.Low | o.Low, High: p.High | o.High}
}

// Intersect returns p & o.
func (p Permissions) Intersect(o Permissions) Permissions {
	return Permissions{Low: p.Low & o.Low, High: p.High & o.High}
}

// Difference returns the bits of p not present in o.
func (p Permissions) Difference(o Permissions) Permissions {
	return Permissions{Low: p.Low &^ o.Low, High: p.High &^ o.High}
}

// Contains reports whether every bit of o is present in p.
func (p Permissions) Contains(o Permissions) bool {
	return p.Low&o.Low == o.Low && p.High&o.High == o.High
}

// IsEmpty reports whether no bit is set.
func (p Permissions) IsEmpty() bool { return p.Low == 0 && p.High == 0 }

// IsAdmin reports whether the ADMINISTRATOR bit is set.
func (p Permissions) IsAdmin() bool { return p.Low&PermAdministrator != 0 }

// Normalize collapses any set containing ADMINISTRATOR to the full
// set. Every value displayed or enforced passes through this; callers
// never observe a partial set alongside the admin bit.
func (p Permissions) Normalize() Permissions {
	if p.IsAdmin() {
		return AllPermissions
	}
	return p
}

// Apply folds one overwrite into p: deny bits are removed first, then
// allow bits are added. Member-targeted overwrites must be applied
// after all role-targeted ones; see Overwrites.Apply.
func (p Permissions) Apply(allow, deny Permissions) Permissions {
	return p.Difference(deny).Union(allow)
}

func (p Permissions) String() string {
	return fmt.Sprintf("Permissions(%s,%s)",
		strconv.FormatUint(p.Low, 16), strconv.FormatUint(p.High, 16))
}
