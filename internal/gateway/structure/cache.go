// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

// Package structure maintains the gateway's local view of party
// structure: roles, memberships, rooms, and overwrites. It exists so
// the gateway can resolve a user's room permissions without a backend
// round trip on every delivered event.
package structure

import (
	"log/slog"
	"sync"

	"github.com/samber/oops"

	"github.com/partyline/partyline/internal/models"
	"github.com/partyline/partyline/internal/shardmap"
)

// Error codes reported by cache mutations.
const (
	CodeUnknownParty = "UNKNOWN_PARTY"
	CodeUnknownRoom  = "UNKNOWN_ROOM"
)

type memberKey struct {
	Party models.PartyID
	User  models.UserID
}

type roomEntry struct {
	partyID    models.PartyID
	overwrites models.Overwrites
}

// partyEntry indexes everything owned by one party so removal can
// cascade. Sets are guarded by mu; the maps in Cache are the source of
// truth for lookups.
type partyEntry struct {
	mu      sync.Mutex
	ownerID models.UserID
	roles   map[models.RoleID]struct{}
	rooms   map[models.RoomID]struct{}
	members map[models.UserID]struct{}
}

// Cache is the gateway-side structural state. All methods are safe for
// concurrent use; lookups on unrelated keys do not serialize.
type Cache struct {
	rolePerms *shardmap.Map[models.RoleID, models.Permissions]
	userRoles *shardmap.Map[memberKey, []models.RoleID]
	rooms     *shardmap.Map[models.RoomID, roomEntry]
	parties   *shardmap.Map[models.PartyID, *partyEntry]
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{
		rolePerms: shardmap.New[models.RoleID, models.Permissions](),
		userRoles: shardmap.New[memberKey, []models.RoleID](),
		rooms:     shardmap.New[models.RoomID, roomEntry](),
		parties:   shardmap.New[models.PartyID, *partyEntry](),
	}
}

// PopulateFromReady loads a full-state snapshot into the cache. It is
// idempotent: repopulating with a newer snapshot for the same parties
// overwrites stale state in place.
func (c *Cache) PopulateFromReady(ready *models.ReadyPayload) {
	for i := range ready.Parties {
		p := &ready.Parties[i]
		c.SetParty(p.ID, p.OwnerID)
		for j := range p.Roles {
			if err := c.SetRole(&p.Roles[j]); err != nil {
				// Party was just registered; only a malformed snapshot
				// can get here.
				slog.Warn("skipping role from snapshot", "role_id", p.Roles[j].ID, "error", err)
			}
		}
		if err := c.SetMember(&p.Me); err != nil {
			slog.Warn("skipping membership from snapshot", "party_id", p.ID, "error", err)
		}
	}
	for i := range ready.Rooms {
		if err := c.SetRoom(&ready.Rooms[i]); err != nil {
			slog.Warn("skipping room from snapshot", "room_id", ready.Rooms[i].ID, "error", err)
		}
	}
}

// SetParty registers a party or updates its owner.
func (c *Cache) SetParty(partyID models.PartyID, ownerID models.UserID) {
	entry := c.parties.GetOrInsert(partyID, func() *partyEntry {
		return &partyEntry{
			roles:   make(map[models.RoleID]struct{}),
			rooms:   make(map[models.RoomID]struct{}),
			members: make(map[models.UserID]struct{}),
		}
	})
	entry.mu.Lock()
	entry.ownerID = ownerID
	entry.mu.Unlock()
}

// RemoveParty drops a party and cascades to its roles, rooms, and
// memberships.
func (c *Cache) RemoveParty(partyID models.PartyID) {
	entry, ok := c.parties.Get(partyID)
	if !ok {
		return
	}
	c.parties.Delete(partyID)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	for roleID := range entry.roles {
		c.rolePerms.Delete(roleID)
	}
	for roomID := range entry.rooms {
		c.rooms.Delete(roomID)
	}
	for userID := range entry.members {
		c.userRoles.Delete(memberKey{Party: partyID, User: userID})
	}
}

// SetRole stores or replaces a role's permission set. The party must
// already be known.
func (c *Cache) SetRole(role *models.Role) error {
	entry, ok := c.parties.Get(role.PartyID)
	if !ok {
		return oops.Code(CodeUnknownParty).
			With("party_id", role.PartyID).With("role_id", role.ID).
			Errorf("role references unknown party")
	}
	c.rolePerms.Set(role.ID, role.Permissions)
	entry.mu.Lock()
	entry.roles[role.ID] = struct{}{}
	entry.mu.Unlock()
	return nil
}

// RemoveRole drops a role's permission set. Memberships still listing
// the role resolve as if it granted nothing.
func (c *Cache) RemoveRole(partyID models.PartyID, roleID models.RoleID) {
	c.rolePerms.Delete(roleID)
	if entry, ok := c.parties.Get(partyID); ok {
		entry.mu.Lock()
		delete(entry.roles, roleID)
		entry.mu.Unlock()
	}
}

// SetMember stores or replaces a user's role list in a party. The
// party must already be known.
func (c *Cache) SetMember(member *models.Member) error {
	entry, ok := c.parties.Get(member.PartyID)
	if !ok {
		return oops.Code(CodeUnknownParty).
			With("party_id", member.PartyID).With("user_id", member.UserID).
			Errorf("member references unknown party")
	}
	roles := make([]models.RoleID, len(member.Roles))
	copy(roles, member.Roles)
	c.userRoles.Set(memberKey{Party: member.PartyID, User: member.UserID}, roles)
	entry.mu.Lock()
	entry.members[member.UserID] = struct{}{}
	entry.mu.Unlock()
	return nil
}

// RemoveMember drops a user's membership in a party.
func (c *Cache) RemoveMember(partyID models.PartyID, userID models.UserID) {
	c.userRoles.Delete(memberKey{Party: partyID, User: userID})
	if entry, ok := c.parties.Get(partyID); ok {
		entry.mu.Lock()
		delete(entry.members, userID)
		entry.mu.Unlock()
	}
}

// IsMember reports whether the user has a cached membership in the
// party.
func (c *Cache) IsMember(partyID models.PartyID, userID models.UserID) bool {
	_, ok := c.userRoles.Get(memberKey{Party: partyID, User: userID})
	return ok
}

// SetRoom stores or replaces a room and its overwrite list. The party
// must already be known.
func (c *Cache) SetRoom(room *models.ReadyRoom) error {
	entry, ok := c.parties.Get(room.PartyID)
	if !ok {
		return oops.Code(CodeUnknownParty).
			With("party_id", room.PartyID).With("room_id", room.ID).
			Errorf("room references unknown party")
	}
	overwrites := make(models.Overwrites, len(room.Overwrites))
	copy(overwrites, room.Overwrites)
	c.rooms.Set(room.ID, roomEntry{partyID: room.PartyID, overwrites: overwrites})
	entry.mu.Lock()
	entry.rooms[room.ID] = struct{}{}
	entry.mu.Unlock()
	return nil
}

// RemoveRoom drops a room.
func (c *Cache) RemoveRoom(partyID models.PartyID, roomID models.RoomID) {
	c.rooms.Delete(roomID)
	if entry, ok := c.parties.Get(partyID); ok {
		entry.mu.Lock()
		delete(entry.rooms, roomID)
		entry.mu.Unlock()
	}
}

// PartyForRoom returns the party a cached room belongs to.
func (c *Cache) PartyForRoom(roomID models.RoomID) (models.PartyID, bool) {
	entry, ok := c.rooms.Get(roomID)
	if !ok {
		return 0, false
	}
	return entry.partyID, true
}

// RoomsInParty returns the ids of the party's cached rooms.
func (c *Cache) RoomsInParty(partyID models.PartyID) []models.RoomID {
	entry, ok := c.parties.Get(partyID)
	if !ok {
		return nil
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	ids := make([]models.RoomID, 0, len(entry.rooms))
	for id := range entry.rooms {
		ids = append(ids, id)
	}
	return ids
}

// ResolvePermissions computes the user's effective permissions in a
// room from cached structure alone. The second return is false when
// the room, its party, or the party's base role is not cached, meaning
// the caller must fall back to the backend. A cached room with no
// membership for the user resolves to the empty set.
func (c *Cache) ResolvePermissions(userID models.UserID, roomID models.RoomID) (models.Permissions, bool) {
	room, ok := c.rooms.Get(roomID)
	if !ok {
		return models.NoPermissions, false
	}
	party, ok := c.parties.Get(room.partyID)
	if !ok {
		return models.NoPermissions, false
	}

	party.mu.Lock()
	ownerID := party.ownerID
	party.mu.Unlock()
	if ownerID == userID {
		return models.AllPermissions, true
	}

	roleIDs, ok := c.userRoles.Get(memberKey{Party: room.partyID, User: userID})
	if !ok {
		return models.NoPermissions, true
	}

	// Without the base role the union would be a partial result;
	// report uncached so the caller falls back to the backend.
	base, ok := c.rolePerms.Get(models.RoleID(room.partyID))
	if !ok {
		slog.Warn("base role missing from cache", "party_id", room.partyID)
		return models.NoPermissions, false
	}
	for _, roleID := range roleIDs {
		perms, ok := c.rolePerms.Get(roleID)
		if !ok {
			slog.Warn("role missing from cache", "party_id", room.partyID, "role_id", roleID)
			continue
		}
		base = base.Union(perms)
	}

	if base.IsAdmin() {
		return models.AllPermissions, true
	}
	return room.overwrites.Apply(base, room.partyID, roleIDs, userID), true
}
