// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package store

import (
	"context"

	"github.com/partyline/partyline/internal/models"
)

// PartyPermissions computes a user's base permissions in a party: the
// union of the base role and every role they hold, aggregated in SQL.
// The party owner short-circuits to the full set. A non-member gets
// NOT_FOUND.
func (s *Store) PartyPermissions(ctx context.Context, userID models.UserID, partyID models.PartyID) (models.Permissions, error) {
	ownerID, err := s.PartyOwner(ctx, partyID)
	if err != nil {
		return models.NoPermissions, err
	}
	if ownerID == userID {
		return models.AllPermissions, nil
	}

	if _, err := s.GetMember(ctx, partyID, userID); err != nil {
		return models.NoPermissions, err
	}

	var low, high int64
	err = s.db.QueryRow(ctx,
		`SELECT COALESCE(bit_or(r.perms_low), 0), COALESCE(bit_or(r.perms_high), 0)
		 FROM roles r
		 WHERE r.party_id = $1
		   AND (r.id = $1 OR r.id IN (
		     SELECT role_id FROM member_roles WHERE party_id = $1 AND user_id = $2))`,
		int64(partyID), int64(userID)).Scan(&low, &high)
	if err != nil {
		return models.NoPermissions, wrapErr(err, "party permissions")
	}

	return models.Permissions{Low: uint64(low), High: uint64(high)}.Normalize(), nil
}

// RoomOverwrites returns a room's overwrite list.
func (s *Store) RoomOverwrites(ctx context.Context, roomID models.RoomID) (models.Overwrites, error) {
	rows, err := s.db.Query(ctx,
		`SELECT target_id, allow_low, allow_high, deny_low, deny_high
		 FROM overwrites WHERE room_id = $1 ORDER BY target_id`,
		int64(roomID))
	if err != nil {
		return nil, wrapErr(err, "room overwrites")
	}
	defer rows.Close()

	var out models.Overwrites
	for rows.Next() {
		var o models.Overwrite
		var allowLow, allowHigh, denyLow, denyHigh int64
		if err := rows.Scan(&o.TargetID, &allowLow, &allowHigh, &denyLow, &denyHigh); err != nil {
			return nil, wrapErr(err, "scan overwrite")
		}
		o.Allow = models.Permissions{Low: uint64(allowLow), High: uint64(allowHigh)}
		o.Deny = models.Permissions{Low: uint64(denyLow), High: uint64(denyHigh)}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err, "iterate overwrites")
	}
	return out, nil
}

// SetOverwrite upserts one overwrite. A pointless overwrite (empty
// allow and deny) deletes the row instead.
func (s *Store) SetOverwrite(ctx context.Context, roomID models.RoomID, o *models.Overwrite) error {
	if o.IsPointless() {
		_, err := s.db.Exec(ctx,
			`DELETE FROM overwrites WHERE room_id = $1 AND target_id = $2`,
			int64(roomID), int64(o.TargetID))
		if err != nil {
			return wrapErr(err, "delete overwrite")
		}
		return nil
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO overwrites (room_id, target_id, allow_low, allow_high, deny_low, deny_high)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (room_id, target_id)
		 DO UPDATE SET allow_low = $3, allow_high = $4, deny_low = $5, deny_high = $6`,
		int64(roomID), int64(o.TargetID),
		int64(o.Allow.Low), int64(o.Allow.High),
		int64(o.Deny.Low), int64(o.Deny.High))
	if err != nil {
		return wrapErr(err, "set overwrite")
	}
	return nil
}

// RoomPermissions resolves a user's effective permissions in a room:
// party base permissions folded through the room's overwrites. Owner
// and administrator bypass overwrites entirely.
func (s *Store) RoomPermissions(ctx context.Context, userID models.UserID, roomID models.RoomID) (models.Permissions, error) {
	partyID, err := s.RoomParty(ctx, roomID)
	if err != nil {
		return models.NoPermissions, err
	}

	base, err := s.PartyPermissions(ctx, userID, partyID)
	if err != nil {
		return models.NoPermissions, err
	}
	if base == models.AllPermissions {
		return base, nil
	}

	member, err := s.GetMember(ctx, partyID, userID)
	if err != nil {
		return models.NoPermissions, err
	}
	overwrites, err := s.RoomOverwrites(ctx, roomID)
	if err != nil {
		return models.NoPermissions, err
	}
	return overwrites.Apply(base, partyID, member.Roles, userID), nil
}
