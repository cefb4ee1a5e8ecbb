// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package models

// Role is a named permission set assignable to party members. Roles
// are ordered by Position within a party; a higher position outranks a
// lower one. The role whose id equals its party id is the implicit
// base ("@everyone") role, always present at position 0.
type Role struct {
	ID          RoleID      `json:"id" cbor:"1,keyasint"`
	PartyID     PartyID     `json:"party_id" cbor:"2,keyasint"`
	Permissions Permissions `json:"permissions" cbor:"3,keyasint"`
	Position    uint8       `json:"position" cbor:"4,keyasint"`
	Name        string      `json:"name" cbor:"5,keyasint"`
	Color       uint32      `json:"color,omitempty" cbor:"6,keyasint,omitempty"`
	Flags       uint16      `json:"flags,omitempty" cbor:"7,keyasint,omitempty"`
	Avatar      string      `json:"avatar,omitempty" cbor:"8,keyasint,omitempty"`
}

// IsBase reports whether this is the party's implicit base role.
func (r *Role) IsBase() bool { return r.ID == r.PartyID }

// Member associates a user with the roles they hold in one party. The
// base role is implicit and never listed in Roles.
type Member struct {
	PartyID PartyID  `json:"party_id" cbor:"1,keyasint"`
	UserID  UserID   `json:"user_id" cbor:"2,keyasint"`
	Roles   []RoleID `json:"roles" cbor:"3,keyasint"`
}

// Overwrite adjusts room permissions for a single role or member.
// TargetID is a role id or user id; which one is decided by lookup,
// not by a tag, matching the storage layout. Pointless overwrites
// (both sets empty) are never persisted.
type Overwrite struct {
	TargetID Snowflake   `json:"target_id" cbor:"1,keyasint"`
	Allow    Permissions `json:"allow" cbor:"2,keyasint"`
	Deny     Permissions `json:"deny" cbor:"3,keyasint"`
}

// IsPointless reports whether the overwrite adjusts nothing.
func (o *Overwrite) IsPointless() bool { return o.Allow.IsEmpty() && o.Deny.IsEmpty() }

// Overwrites is a room's overwrite list, ordered by insertion.
type Overwrites []Overwrite

// Apply computes the effective permissions for a user holding
// roleIDs, starting from the base+role union. Role-targeted
// overwrites merge commutatively: the union of matching deny bits is
// removed, the union of matching allow bits is added. A user-targeted
// overwrite, if present, is applied last and beats every role
// overwrite. The base role participates via partyID.
func (ov Overwrites) Apply(base Permissions, partyID PartyID, roleIDs []RoleID, userID UserID) Permissions {
	if base.IsAdmin() {
		return AllPermissions
	}

	var allow, deny Permissions
	var userAllow, userDeny Permissions

	for i := range ov {
		o := &ov[i]
		switch {
		case o.TargetID == Snowflake(userID):
			userAllow = o.Allow
			userDeny = o.Deny
		case o.TargetID == Snowflake(partyID) || containsRole(roleIDs, RoleID(o.TargetID)):
			allow = allow.Union(o.Allow)
			deny = deny.Union(o.Deny)
		}
	}

	return base.Apply(allow, deny).Apply(userAllow, userDeny)
}

func containsRole(roleIDs []RoleID, id RoleID) bool {
	for _, r := range roleIDs {
		if r == id {
			return true
		}
	}
	return false
}
