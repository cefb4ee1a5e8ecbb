// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package store

import (
	"context"

	"github.com/partyline/partyline/internal/models"
)

// UserForToken resolves a session token to its user. Expired or
// unknown tokens come back as NOT_FOUND.
func (s *Store) UserForToken(ctx context.Context, token string) (models.UserID, error) {
	var userID models.UserID
	err := s.db.QueryRow(ctx,
		`SELECT user_id FROM sessions WHERE token = $1 AND expires_at > now()`,
		token).Scan(&userID)
	if err != nil {
		return 0, wrapErr(err, "user for token")
	}
	return userID, nil
}

// BlockedBy returns the users who have blocked userID.
func (s *Store) BlockedBy(ctx context.Context, userID models.UserID) ([]models.UserID, error) {
	rows, err := s.db.Query(ctx,
		`SELECT user_id FROM user_blocks WHERE blocked_id = $1`,
		int64(userID))
	if err != nil {
		return nil, wrapErr(err, "blocked by")
	}
	defer rows.Close()

	var out []models.UserID
	for rows.Next() {
		var id models.UserID
		if err := rows.Scan(&id); err != nil {
			return nil, wrapErr(err, "scan blocker")
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err, "iterate blockers")
	}
	return out, nil
}
