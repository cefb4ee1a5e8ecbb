// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package store

import (
	"context"

	"github.com/partyline/partyline/internal/models"
	"github.com/partyline/partyline/internal/roles"
)

// RolesForParty returns every role in a party, base role included,
// ordered by position then id.
func (s *Store) RolesForParty(ctx context.Context, partyID models.PartyID) ([]models.Role, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, party_id, name, perms_low, perms_high, position, color, flags
		 FROM roles WHERE party_id = $1 ORDER BY position, id`,
		int64(partyID))
	if err != nil {
		return nil, wrapErr(err, "party roles")
	}
	defer rows.Close()

	var out []models.Role
	for rows.Next() {
		var r models.Role
		var low, high int64
		if err := rows.Scan(&r.ID, &r.PartyID, &r.Name, &low, &high, &r.Position, &r.Color, &r.Flags); err != nil {
			return nil, wrapErr(err, "scan role")
		}
		r.Permissions = models.Permissions{Low: uint64(low), High: uint64(high)}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err, "iterate roles")
	}
	return out, nil
}

// GetRole fetches a single role row.
func (s *Store) GetRole(ctx context.Context, partyID models.PartyID, roleID models.RoleID) (*models.Role, error) {
	var r models.Role
	var low, high int64
	err := s.db.QueryRow(ctx,
		`SELECT id, party_id, name, perms_low, perms_high, position, color, flags
		 FROM roles WHERE party_id = $1 AND id = $2`,
		int64(partyID), int64(roleID)).
		Scan(&r.ID, &r.PartyID, &r.Name, &low, &high, &r.Position, &r.Color, &r.Flags)
	if err != nil {
		return nil, wrapErr(err, "get role")
	}
	r.Permissions = models.Permissions{Low: uint64(low), High: uint64(high)}
	return &r, nil
}

// RoleSnapshot loads the minimal role state the role checker needs:
// the party owner plus each role's id, permissions, and position.
func (s *Store) RoleSnapshot(ctx context.Context, partyID models.PartyID) (models.UserID, map[models.RoleID]roles.PartialRole, error) {
	ownerID, err := s.PartyOwner(ctx, partyID)
	if err != nil {
		return 0, nil, err
	}

	list, err := s.RolesForParty(ctx, partyID)
	if err != nil {
		return 0, nil, err
	}
	snapshot := make(map[models.RoleID]roles.PartialRole, len(list))
	for _, r := range list {
		snapshot[r.ID] = roles.PartialRole{
			Permissions: r.Permissions,
			Position:    r.Position,
		}
	}
	return ownerID, snapshot, nil
}

// InsertRole persists a new role.
func (s *Store) InsertRole(ctx context.Context, role *models.Role) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO roles (id, party_id, name, perms_low, perms_high, position, color, flags)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		int64(role.ID), int64(role.PartyID), role.Name,
		int64(role.Permissions.Low), int64(role.Permissions.High),
		int16(role.Position), int64(role.Color), int32(role.Flags))
	if err != nil {
		return wrapErr(err, "insert role")
	}
	return nil
}

// UpdateRole replaces a role's mutable fields.
func (s *Store) UpdateRole(ctx context.Context, role *models.Role) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE roles SET name = $3, perms_low = $4, perms_high = $5, position = $6, color = $7, flags = $8
		 WHERE id = $1 AND party_id = $2`,
		int64(role.ID), int64(role.PartyID), role.Name,
		int64(role.Permissions.Low), int64(role.Permissions.High),
		int16(role.Position), int64(role.Color), int32(role.Flags))
	if err != nil {
		return wrapErr(err, "update role")
	}
	if tag.RowsAffected() == 0 {
		return wrapErr(errNotFound, "update role")
	}
	return nil
}

// DeleteRole removes a role and its member assignments.
func (s *Store) DeleteRole(ctx context.Context, partyID models.PartyID, roleID models.RoleID) error {
	if _, err := s.db.Exec(ctx,
		`DELETE FROM member_roles WHERE party_id = $1 AND role_id = $2`,
		int64(partyID), int64(roleID)); err != nil {
		return wrapErr(err, "delete role assignments")
	}
	tag, err := s.db.Exec(ctx,
		`DELETE FROM roles WHERE id = $2 AND party_id = $1`,
		int64(partyID), int64(roleID))
	if err != nil {
		return wrapErr(err, "delete role")
	}
	if tag.RowsAffected() == 0 {
		return wrapErr(errNotFound, "delete role")
	}
	return nil
}

// RoleCount returns how many roles a party has, base role included.
func (s *Store) RoleCount(ctx context.Context, partyID models.PartyID) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM roles WHERE party_id = $1`,
		int64(partyID)).Scan(&n)
	if err != nil {
		return 0, wrapErr(err, "role count")
	}
	return n, nil
}

// AddMemberRole grants a role to a member.
func (s *Store) AddMemberRole(ctx context.Context, partyID models.PartyID, userID models.UserID, roleID models.RoleID) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO member_roles (party_id, user_id, role_id) VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING`,
		int64(partyID), int64(userID), int64(roleID))
	if err != nil {
		return wrapErr(err, "add member role")
	}
	return nil
}

// RemoveMemberRole revokes a role from a member.
func (s *Store) RemoveMemberRole(ctx context.Context, partyID models.PartyID, userID models.UserID, roleID models.RoleID) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM member_roles WHERE party_id = $1 AND user_id = $2 AND role_id = $3`,
		int64(partyID), int64(userID), int64(roleID))
	if err != nil {
		return wrapErr(err, "remove member role")
	}
	return nil
}
