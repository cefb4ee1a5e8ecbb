// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package structure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partyline/partyline/internal/models"
	"github.com/partyline/partyline/pkg/errutil"
)

const (
	partyID models.PartyID = 5000
	ownerID models.UserID  = 1
	userID  models.UserID  = 2
	roomID  models.RoomID  = 6000
	modID   models.RoleID  = 5001
)

// populated builds a cache holding one party with a base role, a
// moderator role, one member, and one room.
func populated(t *testing.T, overwrites models.Overwrites) *Cache {
	t.Helper()
	c := NewCache()
	c.SetParty(partyID, ownerID)

	base := models.Role{
		ID:          models.RoleID(partyID),
		PartyID:     partyID,
		Permissions: models.RoomPerms(models.PermViewRoom | models.PermSendMessages),
	}
	mod := models.Role{
		ID:          modID,
		PartyID:     partyID,
		Permissions: models.RoomPerms(models.PermManageMessages),
		Position:    1,
	}
	require.NoError(t, c.SetRole(&base))
	require.NoError(t, c.SetRole(&mod))

	require.NoError(t, c.SetMember(&models.Member{
		PartyID: partyID,
		UserID:  userID,
		Roles:   []models.RoleID{modID},
	}))

	require.NoError(t, c.SetRoom(&models.ReadyRoom{
		ID:         roomID,
		PartyID:    partyID,
		Overwrites: overwrites,
	}))
	return c
}

func TestResolvePermissions_UnknownRoomNotCached(t *testing.T) {
	c := NewCache()
	_, ok := c.ResolvePermissions(userID, roomID)
	assert.False(t, ok, "unknown room must report not cached")
}

func TestResolvePermissions_MemberGetsRoleUnion(t *testing.T) {
	c := populated(t, nil)

	perms, ok := c.ResolvePermissions(userID, roomID)
	require.True(t, ok)
	want := models.RoomPerms(models.PermViewRoom | models.PermSendMessages | models.PermManageMessages)
	assert.Equal(t, want, perms)
}

func TestResolvePermissions_OwnerGetsEverything(t *testing.T) {
	c := populated(t, models.Overwrites{
		{TargetID: models.Snowflake(partyID), Deny: models.AllPermissions},
	})

	perms, ok := c.ResolvePermissions(ownerID, roomID)
	require.True(t, ok)
	assert.Equal(t, models.AllPermissions, perms, "owner bypasses overwrites")
}

func TestResolvePermissions_NonMemberGetsNothing(t *testing.T) {
	c := populated(t, nil)

	perms, ok := c.ResolvePermissions(999, roomID)
	require.True(t, ok, "a cached room resolves even for outsiders")
	assert.Equal(t, models.NoPermissions, perms)
}

func TestResolvePermissions_AdminIgnoresOverwrites(t *testing.T) {
	c := populated(t, models.Overwrites{
		{TargetID: models.Snowflake(userID), Deny: models.AllPermissions},
	})

	admin := models.Role{
		ID:          5002,
		PartyID:     partyID,
		Permissions: models.PartyPerms(models.PermAdministrator),
		Position:    2,
	}
	require.NoError(t, c.SetRole(&admin))
	require.NoError(t, c.SetMember(&models.Member{
		PartyID: partyID,
		UserID:  userID,
		Roles:   []models.RoleID{admin.ID},
	}))

	perms, ok := c.ResolvePermissions(userID, roomID)
	require.True(t, ok)
	assert.Equal(t, models.AllPermissions, perms)
}

func TestResolvePermissions_MemberOverwriteBeatsRole(t *testing.T) {
	c := populated(t, models.Overwrites{
		{TargetID: models.Snowflake(modID), Allow: models.RoomPerms(models.PermMentionEveryone)},
		{TargetID: models.Snowflake(userID), Deny: models.RoomPerms(models.PermSendMessages)},
	})

	perms, ok := c.ResolvePermissions(userID, roomID)
	require.True(t, ok)
	assert.True(t, perms.Contains(models.RoomPerms(models.PermMentionEveryone)))
	assert.False(t, perms.Contains(models.RoomPerms(models.PermSendMessages)))
}

func TestResolvePermissions_DeletedRoleSkipped(t *testing.T) {
	c := populated(t, nil)

	c.RemoveRole(partyID, modID)

	perms, ok := c.ResolvePermissions(userID, roomID)
	require.True(t, ok)
	want := models.RoomPerms(models.PermViewRoom | models.PermSendMessages)
	assert.Equal(t, want, perms, "stale role reference contributes nothing")
}

func TestResolvePermissions_MissingBaseRoleNotCached(t *testing.T) {
	c := NewCache()
	c.SetParty(partyID, ownerID)
	require.NoError(t, c.SetRole(&models.Role{
		ID:          modID,
		PartyID:     partyID,
		Permissions: models.RoomPerms(models.PermManageMessages),
		Position:    1,
	}))
	require.NoError(t, c.SetMember(&models.Member{
		PartyID: partyID,
		UserID:  userID,
		Roles:   []models.RoleID{modID},
	}))
	require.NoError(t, c.SetRoom(&models.ReadyRoom{ID: roomID, PartyID: partyID}))

	// Without the base role the union would be partial; the resolver
	// must force a backend fall back instead.
	perms, ok := c.ResolvePermissions(userID, roomID)
	assert.False(t, ok, "missing base role must report not cached")
	assert.Equal(t, models.NoPermissions, perms)

	// The owner short-circuit does not depend on role data.
	perms, ok = c.ResolvePermissions(ownerID, roomID)
	require.True(t, ok)
	assert.Equal(t, models.AllPermissions, perms)
}

func TestSetRole_UnknownPartyFails(t *testing.T) {
	c := NewCache()
	err := c.SetRole(&models.Role{ID: 1, PartyID: 42})
	errutil.AssertErrorCode(t, err, CodeUnknownParty)
}

func TestSetRoom_UnknownPartyFails(t *testing.T) {
	c := NewCache()
	err := c.SetRoom(&models.ReadyRoom{ID: 1, PartyID: 42})
	errutil.AssertErrorCode(t, err, CodeUnknownParty)
}

func TestSetMember_UnknownPartyFails(t *testing.T) {
	c := NewCache()
	err := c.SetMember(&models.Member{PartyID: 42, UserID: userID})
	errutil.AssertErrorCode(t, err, CodeUnknownParty)
}

func TestRemoveParty_Cascades(t *testing.T) {
	c := populated(t, nil)

	c.RemoveParty(partyID)

	_, ok := c.ResolvePermissions(userID, roomID)
	assert.False(t, ok, "rooms must be gone after party removal")
	assert.False(t, c.IsMember(partyID, userID))
	assert.Empty(t, c.RoomsInParty(partyID))

	// Role perms are gone too: re-adding the party and room alone
	// leaves the member resolving with an empty base.
	c.SetParty(partyID, ownerID)
	require.NoError(t, c.SetRoom(&models.ReadyRoom{ID: roomID, PartyID: partyID}))
	require.NoError(t, c.SetMember(&models.Member{PartyID: partyID, UserID: userID, Roles: []models.RoleID{modID}}))
	perms, ok := c.ResolvePermissions(userID, roomID)
	require.True(t, ok)
	assert.Equal(t, models.NoPermissions, perms)
}

func TestRemoveMember(t *testing.T) {
	c := populated(t, nil)

	c.RemoveMember(partyID, userID)

	perms, ok := c.ResolvePermissions(userID, roomID)
	require.True(t, ok)
	assert.Equal(t, models.NoPermissions, perms)
}

func TestPopulateFromReady_Idempotent(t *testing.T) {
	c := NewCache()
	ready := &models.ReadyPayload{
		UserID: userID,
		Parties: []models.ReadyParty{{
			ID:      partyID,
			OwnerID: ownerID,
			Roles: []models.Role{{
				ID:          models.RoleID(partyID),
				PartyID:     partyID,
				Permissions: models.RoomPerms(models.PermViewRoom),
			}},
			Me: models.Member{PartyID: partyID, UserID: userID},
		}},
		Rooms: []models.ReadyRoom{{ID: roomID, PartyID: partyID}},
	}

	c.PopulateFromReady(ready)
	c.PopulateFromReady(ready)

	perms, ok := c.ResolvePermissions(userID, roomID)
	require.True(t, ok)
	assert.Equal(t, models.RoomPerms(models.PermViewRoom), perms)
	assert.Equal(t, []models.RoomID{roomID}, c.RoomsInParty(partyID))
}

func TestPartyForRoom(t *testing.T) {
	c := populated(t, nil)

	got, ok := c.PartyForRoom(roomID)
	require.True(t, ok)
	assert.Equal(t, partyID, got)

	_, ok = c.PartyForRoom(9999)
	assert.False(t, ok)
}
