// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package backend_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partyline/partyline/internal/backend"
	"github.com/partyline/partyline/internal/models"
	"github.com/partyline/partyline/internal/permcache"
	"github.com/partyline/partyline/pkg/errutil"
)

const (
	permUser models.UserID = 7
	permRoom models.RoomID = 42
)

type permKey struct {
	userID models.UserID
	roomID models.RoomID
}

// fakePermStore serves canned resolutions and counts lookups so tests
// can tell a cache hit from a store round trip.
type fakePermStore struct {
	perms map[permKey]models.Permissions
	calls int
}

func (f *fakePermStore) RoomPermissions(_ context.Context, userID models.UserID, roomID models.RoomID) (models.Permissions, error) {
	f.calls++
	p, ok := f.perms[permKey{userID, roomID}]
	if !ok {
		return models.NoPermissions, oops.Code("NOT_FOUND").Errorf("room or membership not found")
	}
	return p, nil
}

func newPermRig(perms map[permKey]models.Permissions) (*backend.PermissionService, *fakePermStore, *permcache.Cache) {
	store := &fakePermStore{perms: perms}
	cache := permcache.NewCache()
	svc := backend.NewPermissionService(store, cache, slog.Default())
	return svc, store, cache
}

func TestPermissionService_CachesResolution(t *testing.T) {
	svc, store, _ := newPermRig(map[permKey]models.Permissions{
		{permUser, permRoom}: models.RoomPerms(models.PermViewRoom | models.PermSendMessages),
	})

	p1, err := svc.RoomPermissions(context.Background(), permUser, permRoom)
	require.NoError(t, err)
	p2, err := svc.RoomPermissions(context.Background(), permUser, permRoom)
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.Equal(t, 1, store.calls, "second lookup must come from the cache")
}

func TestPermissionService_InvalidateForcesRefetch(t *testing.T) {
	svc, store, _ := newPermRig(map[permKey]models.Permissions{
		{permUser, permRoom}: models.RoomPerms(models.PermViewRoom),
	})

	_, err := svc.RoomPermissions(context.Background(), permUser, permRoom)
	require.NoError(t, err)

	svc.Invalidate(permUser)

	_, err = svc.RoomPermissions(context.Background(), permUser, permRoom)
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
}

func TestPermissionService_RequireAllowed(t *testing.T) {
	svc, _, _ := newPermRig(map[permKey]models.Permissions{
		{permUser, permRoom}: models.RoomPerms(models.PermViewRoom | models.PermSendMessages),
	})

	err := svc.Require(context.Background(), permUser, permRoom, models.RoomPerms(models.PermSendMessages))
	assert.NoError(t, err)
}

func TestPermissionService_RequireMasksInvisibleRoom(t *testing.T) {
	// Holds bits but not view: the denial must read as a missing room.
	svc, _, _ := newPermRig(map[permKey]models.Permissions{
		{permUser, permRoom}: models.RoomPerms(models.PermSendMessages),
	})

	err := svc.Require(context.Background(), permUser, permRoom, models.RoomPerms(models.PermSendMessages))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "NOT_FOUND")
}

func TestPermissionService_RequireDeniedWithView(t *testing.T) {
	svc, _, _ := newPermRig(map[permKey]models.Permissions{
		{permUser, permRoom}: models.RoomPerms(models.PermViewRoom),
	})

	err := svc.Require(context.Background(), permUser, permRoom, models.RoomPerms(models.PermManageMessages))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "UNAUTHORIZED")
}

func TestPermissionService_RequireUnknownRoom(t *testing.T) {
	svc, _, _ := newPermRig(nil)

	err := svc.Require(context.Background(), permUser, permRoom, models.RoomPerms(models.PermViewRoom))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "NOT_FOUND")
}

func TestPermissionService_RetainRelease(t *testing.T) {
	svc, _, cache := newPermRig(nil)

	svc.Retain(permUser)
	assert.Equal(t, int64(1), cache.Refs(permUser))
	svc.Release(permUser)
	assert.Equal(t, int64(0), cache.Refs(permUser))
}
