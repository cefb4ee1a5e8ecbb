// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package backend

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/partyline/partyline/internal/models"
	"github.com/partyline/partyline/internal/permcache"
	"github.com/partyline/partyline/pkg/errutil"
)

// PermissionStore is the slice of the store the resolver needs.
type PermissionStore interface {
	RoomPermissions(ctx context.Context, userID models.UserID, roomID models.RoomID) (models.Permissions, error)
}

// PermissionService resolves a user's permissions in a room, caching
// results in the flat cache until a structural change invalidates them.
type PermissionService struct {
	store  PermissionStore
	cache  *permcache.Cache
	logger *slog.Logger
}

func NewPermissionService(store PermissionStore, cache *permcache.Cache, logger *slog.Logger) *PermissionService {
	return &PermissionService{
		store:  store,
		cache:  cache,
		logger: logger.With("component", "permissions"),
	}
}

// RoomPermissions returns the user's effective permissions in the
// room: cached value if present, otherwise the store's aggregate fold,
// cached on the way out.
func (p *PermissionService) RoomPermissions(ctx context.Context, userID models.UserID, roomID models.RoomID) (models.Permissions, error) {
	if e, ok := p.cache.Get(userID, roomID); ok {
		return e.Perms, nil
	}

	perms, err := p.store.RoomPermissions(ctx, userID, roomID)
	if err != nil {
		return models.NoPermissions, err
	}
	p.cache.Set(userID, roomID, permcache.Entry{Perms: perms})
	return perms, nil
}

// Require demands that the user holds needed in the room. A user who
// cannot view the room gets NOT_FOUND rather than UNAUTHORIZED, so a
// denial does not leak the room's existence.
func (p *PermissionService) Require(ctx context.Context, userID models.UserID, roomID models.RoomID, needed models.Permissions) error {
	perms, err := p.RoomPermissions(ctx, userID, roomID)
	if err != nil {
		if errutil.Code(err) == CodeNotFound {
			return oops.In("backend").
				Code(CodeNotFound).
				With("room_id", roomID.String()).
				Errorf("room not found")
		}
		return err
	}

	if !perms.Contains(models.RoomPerms(models.PermViewRoom)) {
		return oops.In("backend").
			Code(CodeNotFound).
			With("room_id", roomID.String()).
			Errorf("room not found")
	}
	if !perms.Contains(needed) {
		return oops.In("backend").
			Code(CodeUnauthorized).
			With("room_id", roomID.String()).
			With("needed", needed.String()).
			Errorf("missing permissions")
	}
	return nil
}

// Invalidate drops every cached room for the user. Called when a role
// grant, role edit, or membership change could affect any room.
func (p *PermissionService) Invalidate(userID models.UserID) {
	p.cache.Clear(userID)
}

// InvalidateAll drops every cached resolution. Role permission edits
// and deletes affect an unenumerable set of holders, so the whole
// cache goes.
func (p *PermissionService) InvalidateAll() {
	p.cache.ClearAll()
}

// InvalidateRoom drops one cached room for the user, after an
// overwrite change scoped to that room.
func (p *PermissionService) InvalidateRoom(userID models.UserID, roomID models.RoomID) {
	p.cache.ClearRoom(userID, roomID)
}

// Retain pins the user's cache entries for the lifetime of a session.
func (p *PermissionService) Retain(userID models.UserID) {
	p.cache.AddReference(userID)
}

// Release undoes Retain; unreferenced entries go on the next sweep.
func (p *PermissionService) Release(userID models.UserID) {
	p.cache.RemoveReference(userID)
}
