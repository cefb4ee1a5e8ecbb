// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/partyline/partyline/internal/models"
)

func TestPermissions_AdminNormalizesToAll(t *testing.T) {
	p := models.PartyPerms(models.PermAdministrator | models.PermKickMembers)

	assert.True(t, p.IsAdmin())
	assert.Equal(t, models.AllPermissions, p.Normalize())

	// Normalization is total: even a lone admin bit collapses.
	assert.Equal(t, models.AllPermissions, models.PartyPerms(models.PermAdministrator).Normalize())

	// Without the admin bit nothing changes.
	q := models.RoomPerms(models.PermSendMessages)
	assert.Equal(t, q, q.Normalize())
}

func TestPermissions_UnionIsMonotonic(t *testing.T) {
	base := models.RoomPerms(models.PermViewRoom)
	extra := models.PartyPerms(models.PermBanMembers)

	merged := base.Union(extra)
	assert.True(t, merged.Contains(base))
	assert.True(t, merged.Contains(extra))
}

func TestPermissions_UnionCommutes(t *testing.T) {
	a := models.PartyPerms(models.PermManageRoles)
	b := models.RoomPerms(models.PermSendMessages | models.PermAttachFiles)

	assert.Equal(t, a.Union(b), b.Union(a))
}

func TestPermissions_ApplyRemovesDenyBeforeAllow(t *testing.T) {
	base := models.RoomPerms(models.PermSendMessages)
	out := base.Apply(models.RoomPerms(models.PermSendMessages), models.RoomPerms(models.PermSendMessages))

	// An overwrite both denying and allowing the same bit allows it.
	assert.True(t, out.Contains(models.RoomPerms(models.PermSendMessages)))
}

func TestOverwrites_MemberBeatsRole(t *testing.T) {
	const (
		partyID models.PartyID = 10
		roleA   models.RoleID  = 11
		userU   models.UserID  = 12
	)

	send := models.RoomPerms(models.PermSendMessages)

	ov := models.Overwrites{
		{TargetID: models.Snowflake(roleA), Deny: send},
		{TargetID: models.Snowflake(userU), Allow: send},
	}

	// Base ∅ plus role A granting SEND; the role overwrite denies it,
	// the member overwrite re-allows it and wins.
	got := ov.Apply(send, partyID, []models.RoleID{roleA}, userU)
	assert.True(t, got.Contains(send))
}

func TestOverwrites_RoleMergeIsCommutative(t *testing.T) {
	const (
		partyID models.PartyID = 20
		roleA   models.RoleID  = 21
		roleB   models.RoleID  = 22
		userU   models.UserID  = 23
	)

	base := models.RoomPerms(models.PermViewRoom | models.PermSendMessages)
	ov := models.Overwrites{
		{TargetID: models.Snowflake(roleA), Allow: models.RoomPerms(models.PermAttachFiles)},
		{TargetID: models.Snowflake(roleB), Deny: models.RoomPerms(models.PermSendMessages)},
	}

	ab := ov.Apply(base, partyID, []models.RoleID{roleA, roleB}, userU)
	ba := ov.Apply(base, partyID, []models.RoleID{roleB, roleA}, userU)
	assert.Equal(t, ab, ba)
}

func TestOverwrites_AdminIgnoresOverwrites(t *testing.T) {
	const (
		partyID models.PartyID = 30
		userU   models.UserID  = 31
	)

	ov := models.Overwrites{
		{TargetID: models.Snowflake(userU), Deny: models.AllPermissions},
	}

	got := ov.Apply(models.PartyPerms(models.PermAdministrator), partyID, nil, userU)
	assert.Equal(t, models.AllPermissions, got)
}

func TestOverwrites_BaseRoleOverwriteApplies(t *testing.T) {
	const (
		partyID models.PartyID = 40
		userU   models.UserID  = 41
	)

	base := models.RoomPerms(models.PermViewRoom | models.PermSendMessages)
	ov := models.Overwrites{
		// Targeting the party id targets the base role.
		{TargetID: models.Snowflake(partyID), Deny: models.RoomPerms(models.PermSendMessages)},
	}

	got := ov.Apply(base, partyID, nil, userU)
	assert.False(t, got.Contains(models.RoomPerms(models.PermSendMessages)))
	assert.True(t, got.Contains(models.RoomPerms(models.PermViewRoom)))
}

func TestOverwrite_IsPointless(t *testing.T) {
	o := models.Overwrite{TargetID: 1}
	assert.True(t, o.IsPointless())

	o.Allow = models.RoomPerms(models.PermViewRoom)
	assert.False(t, o.IsPointless())
}
