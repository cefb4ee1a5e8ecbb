// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package backend

import (
	"context"
	"log/slog"
	"slices"

	"github.com/samber/oops"

	"github.com/partyline/partyline/internal/models"
	"github.com/partyline/partyline/internal/roles"
	"github.com/partyline/partyline/pkg/errutil"
)

// RoleStore is the slice of the store role management needs. Snapshot
// and mutation run against the same connection so the checker sees
// transaction-consistent data.
type RoleStore interface {
	RoleSnapshot(ctx context.Context, partyID models.PartyID) (models.UserID, map[models.RoleID]roles.PartialRole, error)
	GetMember(ctx context.Context, partyID models.PartyID, userID models.UserID) (*models.Member, error)
	GetRole(ctx context.Context, partyID models.PartyID, roleID models.RoleID) (*models.Role, error)
	RoleCount(ctx context.Context, partyID models.PartyID) (int, error)
	InsertRole(ctx context.Context, role *models.Role) error
	UpdateRole(ctx context.Context, role *models.Role) error
	DeleteRole(ctx context.Context, partyID models.PartyID, roleID models.RoleID) error
	AddMemberRole(ctx context.Context, partyID models.PartyID, userID models.UserID, roleID models.RoleID) error
	RemoveMemberRole(ctx context.Context, partyID models.PartyID, userID models.UserID, roleID models.RoleID) error
}

// RoleUpdate describes a partial role edit; nil fields are untouched.
type RoleUpdate struct {
	Name        *string
	Color       *uint32
	Permissions *models.Permissions
	Position    *uint8
}

// RoleService applies role mutations: hierarchy check, persist, fan
// out. Permission cache invalidation rides the resulting events; the
// gateway clears its per-connection memos when they arrive.
type RoleService struct {
	store  RoleStore
	perms  *PermissionService
	sink   EventSink
	gen    *models.SnowflakeGenerator
	logger *slog.Logger
}

func NewRoleService(store RoleStore, perms *PermissionService, sink EventSink, gen *models.SnowflakeGenerator, logger *slog.Logger) *RoleService {
	return &RoleService{
		store:  store,
		perms:  perms,
		sink:   sink,
		gen:    gen,
		logger: logger.With("component", "roles"),
	}
}

// checker builds a hierarchy checker for the party and resolves the
// acting member. Non-members are denied, not told the party exists.
func (r *RoleService) checker(ctx context.Context, partyID models.PartyID, actorID models.UserID) (*roles.Checker, *models.Member, error) {
	ownerID, snapshot, err := r.store.RoleSnapshot(ctx, partyID)
	if err != nil {
		return nil, nil, err
	}
	c, err := roles.NewChecker(partyID, ownerID, snapshot)
	if err != nil {
		return nil, nil, err
	}

	member, err := r.store.GetMember(ctx, partyID, actorID)
	if err != nil {
		if errutil.Code(err) == CodeNotFound {
			return nil, nil, oops.In("backend").
				Code(CodeNotFound).
				With("party_id", partyID.String()).
				Errorf("party not found")
		}
		return nil, nil, err
	}
	return c, member, nil
}

// statusErr maps a checker verdict to the client-facing error. Every
// denial except the role limit collapses to UNAUTHORIZED; the precise
// status survives as error context.
func statusErr(st roles.Status, partyID models.PartyID) error {
	base := oops.In("backend").
		With("party_id", partyID.String()).
		With("status", st.String())

	switch st {
	case roles.StatusNotFound:
		return base.Code(CodeNotFound).Errorf("role not found")
	case roles.StatusRoleLimit:
		return base.Code(CodeRoleLimit).Errorf("party is at the role limit")
	default:
		return base.Code(CodeUnauthorized).Errorf("role operation denied")
	}
}

func (r *RoleService) publish(ctx context.Context, msg models.ServerMsg) {
	if err := r.sink.Dispatch(ctx, msg, 0); err != nil {
		errutil.LogError(r.logger, "event dispatch failed", err)
	}
}

// CreateRole creates a role just above the base role, with no
// permissions. Grants and moves go through UpdateRole, where the
// full modification rules apply.
func (r *RoleService) CreateRole(ctx context.Context, partyID models.PartyID, actorID models.UserID, name string, color uint32) (*models.Role, error) {
	c, member, err := r.checker(ctx, partyID, actorID)
	if err != nil {
		return nil, err
	}
	count, err := r.store.RoleCount(ctx, partyID)
	if err != nil {
		return nil, err
	}
	if st := c.CheckCreate(actorID, member.Roles, count); st != roles.StatusAllowed {
		return nil, statusErr(st, partyID)
	}

	// Position 1: directly above the base role, which pins position 0.
	role := &models.Role{
		ID:       models.RoleID(r.gen.Next()),
		PartyID:  partyID,
		Name:     name,
		Color:    color,
		Position: 1,
	}
	if err := r.store.InsertRole(ctx, role); err != nil {
		return nil, err
	}

	r.logger.Info("role created",
		"party_id", partyID.String(), "role_id", role.ID.String(), "actor_id", actorID.String())
	r.publish(ctx, models.ServerMsg{Op: models.OpRoleCreate, Payload: &models.RolePayload{Role: *role}})
	return role, nil
}

// UpdateRole applies a partial edit to a role.
func (r *RoleService) UpdateRole(ctx context.Context, partyID models.PartyID, actorID models.UserID, roleID models.RoleID, form RoleUpdate) (*models.Role, error) {
	c, member, err := r.checker(ctx, partyID, actorID)
	if err != nil {
		return nil, err
	}
	st := c.CheckModify(actorID, member.Roles, roleID, roles.ModifyRole{
		Permissions: form.Permissions,
		Position:    form.Position,
	})
	if st != roles.StatusAllowed {
		return nil, statusErr(st, partyID)
	}

	role, err := r.store.GetRole(ctx, partyID, roleID)
	if err != nil {
		return nil, err
	}
	if form.Name != nil {
		role.Name = *form.Name
	}
	if form.Color != nil {
		role.Color = *form.Color
	}
	if form.Permissions != nil {
		role.Permissions = *form.Permissions
	}
	if form.Position != nil {
		role.Position = *form.Position
	}
	if err := r.store.UpdateRole(ctx, role); err != nil {
		return nil, err
	}
	if form.Permissions != nil || form.Position != nil {
		r.perms.InvalidateAll()
	}

	r.logger.Info("role updated",
		"party_id", partyID.String(), "role_id", roleID.String(), "actor_id", actorID.String())
	r.publish(ctx, models.ServerMsg{Op: models.OpRoleUpdate, Payload: &models.RolePayload{Role: *role}})
	return role, nil
}

// DeleteRole removes a role. Holders lose its permissions when the
// delete event invalidates their cached resolutions.
func (r *RoleService) DeleteRole(ctx context.Context, partyID models.PartyID, actorID models.UserID, roleID models.RoleID) error {
	c, member, err := r.checker(ctx, partyID, actorID)
	if err != nil {
		return err
	}
	if st := c.CheckModify(actorID, member.Roles, roleID, roles.ModifyRole{Delete: true}); st != roles.StatusAllowed {
		return statusErr(st, partyID)
	}

	if err := r.store.DeleteRole(ctx, partyID, roleID); err != nil {
		return err
	}
	r.perms.InvalidateAll()

	r.logger.Info("role deleted",
		"party_id", partyID.String(), "role_id", roleID.String(), "actor_id", actorID.String())
	r.publish(ctx, models.ServerMsg{Op: models.OpRoleDelete, Payload: &models.RoleDeletePayload{ID: roleID, PartyID: partyID}})
	return nil
}

// AssignRole grants a role to a member.
func (r *RoleService) AssignRole(ctx context.Context, partyID models.PartyID, actorID, targetID models.UserID, roleID models.RoleID) error {
	c, member, err := r.checker(ctx, partyID, actorID)
	if err != nil {
		return err
	}
	if st := c.CheckAssign(actorID, member.Roles, roleID); st != roles.StatusAllowed {
		return statusErr(st, partyID)
	}

	target, err := r.store.GetMember(ctx, partyID, targetID)
	if err != nil {
		return err
	}
	if slices.Contains(target.Roles, roleID) {
		return nil
	}
	if err := r.store.AddMemberRole(ctx, partyID, targetID, roleID); err != nil {
		return err
	}
	target.Roles = append(target.Roles, roleID)

	r.perms.Invalidate(targetID)
	r.logger.Info("role assigned",
		"party_id", partyID.String(), "role_id", roleID.String(),
		"user_id", targetID.String(), "actor_id", actorID.String())
	r.publish(ctx, models.ServerMsg{Op: models.OpMemberUpdate, Payload: &models.MemberPayload{Member: *target}})
	return nil
}

// RevokeRole removes a role from a member.
func (r *RoleService) RevokeRole(ctx context.Context, partyID models.PartyID, actorID, targetID models.UserID, roleID models.RoleID) error {
	c, member, err := r.checker(ctx, partyID, actorID)
	if err != nil {
		return err
	}
	if st := c.CheckAssign(actorID, member.Roles, roleID); st != roles.StatusAllowed {
		return statusErr(st, partyID)
	}

	target, err := r.store.GetMember(ctx, partyID, targetID)
	if err != nil {
		return err
	}
	if !slices.Contains(target.Roles, roleID) {
		return nil
	}
	if err := r.store.RemoveMemberRole(ctx, partyID, targetID, roleID); err != nil {
		return err
	}
	target.Roles = slices.DeleteFunc(target.Roles, func(id models.RoleID) bool { return id == roleID })

	r.perms.Invalidate(targetID)
	r.logger.Info("role revoked",
		"party_id", partyID.String(), "role_id", roleID.String(),
		"user_id", targetID.String(), "actor_id", actorID.String())
	r.publish(ctx, models.ServerMsg{Op: models.OpMemberUpdate, Payload: &models.MemberPayload{Member: *target}})
	return nil
}
