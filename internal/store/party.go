// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/partyline/partyline/internal/models"
)

// Party is a stored party row.
type Party struct {
	ID      models.PartyID
	OwnerID models.UserID
	Name    string
}

// Room is a stored room row without its overwrites.
type Room struct {
	ID       models.RoomID
	PartyID  models.PartyID
	Name     string
	Position int16
}

// GetParty fetches one party.
func (s *Store) GetParty(ctx context.Context, partyID models.PartyID) (*Party, error) {
	var p Party
	err := s.db.QueryRow(ctx,
		`SELECT id, owner_id, name FROM parties WHERE id = $1`,
		int64(partyID)).Scan(&p.ID, &p.OwnerID, &p.Name)
	if err != nil {
		return nil, wrapErr(err, "get party")
	}
	return &p, nil
}

// PartyOwner returns the owner of a party.
func (s *Store) PartyOwner(ctx context.Context, partyID models.PartyID) (models.UserID, error) {
	var ownerID models.UserID
	err := s.db.QueryRow(ctx,
		`SELECT owner_id FROM parties WHERE id = $1`,
		int64(partyID)).Scan(&ownerID)
	if err != nil {
		return 0, wrapErr(err, "party owner")
	}
	return ownerID, nil
}

// GetMember fetches a user's membership and role list in one party.
func (s *Store) GetMember(ctx context.Context, partyID models.PartyID, userID models.UserID) (*models.Member, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM party_members WHERE party_id = $1 AND user_id = $2)`,
		int64(partyID), int64(userID)).Scan(&exists)
	if err != nil {
		return nil, wrapErr(err, "member exists")
	}
	if !exists {
		return nil, wrapErr(pgx.ErrNoRows, "get member")
	}

	rows, err := s.db.Query(ctx,
		`SELECT role_id FROM member_roles WHERE party_id = $1 AND user_id = $2`,
		int64(partyID), int64(userID))
	if err != nil {
		return nil, wrapErr(err, "member roles")
	}
	defer rows.Close()

	m := &models.Member{PartyID: partyID, UserID: userID}
	for rows.Next() {
		var roleID models.RoleID
		if err := rows.Scan(&roleID); err != nil {
			return nil, wrapErr(err, "scan member role")
		}
		m.Roles = append(m.Roles, roleID)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err, "iterate member roles")
	}
	return m, nil
}

// PartyIDsForUser returns the parties a user belongs to.
func (s *Store) PartyIDsForUser(ctx context.Context, userID models.UserID) ([]models.PartyID, error) {
	rows, err := s.db.Query(ctx,
		`SELECT party_id FROM party_members WHERE user_id = $1 ORDER BY party_id`,
		int64(userID))
	if err != nil {
		return nil, wrapErr(err, "user parties")
	}
	defer rows.Close()

	var ids []models.PartyID
	for rows.Next() {
		var id models.PartyID
		if err := rows.Scan(&id); err != nil {
			return nil, wrapErr(err, "scan user party")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err, "iterate user parties")
	}
	return ids, nil
}

// RoomsForParty returns the party's rooms, ordered by position.
func (s *Store) RoomsForParty(ctx context.Context, partyID models.PartyID) ([]Room, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, party_id, name, position FROM rooms WHERE party_id = $1 ORDER BY position, id`,
		int64(partyID))
	if err != nil {
		return nil, wrapErr(err, "party rooms")
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var r Room
		if err := rows.Scan(&r.ID, &r.PartyID, &r.Name, &r.Position); err != nil {
			return nil, wrapErr(err, "scan room")
		}
		rooms = append(rooms, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err, "iterate rooms")
	}
	return rooms, nil
}

// RoomParty maps a room to its party.
func (s *Store) RoomParty(ctx context.Context, roomID models.RoomID) (models.PartyID, error) {
	var partyID models.PartyID
	err := s.db.QueryRow(ctx,
		`SELECT party_id FROM rooms WHERE id = $1`,
		int64(roomID)).Scan(&partyID)
	if err != nil {
		return 0, wrapErr(err, "room party")
	}
	return partyID, nil
}

// ReadySnapshot assembles the full-state payload for one user: every
// party they belong to, its roles and their own membership, and every
// room with its overwrites.
func (s *Store) ReadySnapshot(ctx context.Context, userID models.UserID) (*models.ReadyPayload, error) {
	partyIDs, err := s.PartyIDsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	ready := &models.ReadyPayload{UserID: userID}
	for _, partyID := range partyIDs {
		party, err := s.GetParty(ctx, partyID)
		if err != nil {
			return nil, err
		}
		roleRows, err := s.RolesForParty(ctx, partyID)
		if err != nil {
			return nil, err
		}
		me, err := s.GetMember(ctx, partyID, userID)
		if err != nil {
			return nil, err
		}
		ready.Parties = append(ready.Parties, models.ReadyParty{
			ID:      partyID,
			OwnerID: party.OwnerID,
			Roles:   roleRows,
			Me:      *me,
		})

		rooms, err := s.RoomsForParty(ctx, partyID)
		if err != nil {
			return nil, err
		}
		for _, room := range rooms {
			overwrites, err := s.RoomOverwrites(ctx, room.ID)
			if err != nil {
				return nil, err
			}
			ready.Rooms = append(ready.Rooms, models.ReadyRoom{
				ID:         room.ID,
				PartyID:    partyID,
				Overwrites: overwrites,
			})
		}
	}
	return ready, nil
}
