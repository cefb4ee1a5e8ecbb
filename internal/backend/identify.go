// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package backend

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/partyline/partyline/internal/gateway"
	"github.com/partyline/partyline/internal/models"
	"github.com/partyline/partyline/pkg/errutil"
)

// IdentifyStore is the slice of the store session bootstrap needs.
type IdentifyStore interface {
	UserForToken(ctx context.Context, token string) (models.UserID, error)
	ReadySnapshot(ctx context.Context, userID models.UserID) (*models.ReadyPayload, error)
	BlockedBy(ctx context.Context, userID models.UserID) ([]models.UserID, error)
	PartyIDsForUser(ctx context.Context, userID models.UserID) ([]models.PartyID, error)
}

// IdentifyService is the backend half of the gateway session contract:
// token authentication, the ready snapshot, and presence fan-out.
type IdentifyService struct {
	store  IdentifyStore
	perms  *PermissionService
	sink   EventSink
	logger *slog.Logger
}

func NewIdentifyService(store IdentifyStore, perms *PermissionService, sink EventSink, logger *slog.Logger) *IdentifyService {
	return &IdentifyService{
		store:  store,
		perms:  perms,
		sink:   sink,
		logger: logger.With("component", "identify"),
	}
}

// Identify resolves a connection token to a user and assembles their
// full-state snapshot. An unknown token reports UNAUTHORIZED without
// distinguishing expired from never-issued.
func (s *IdentifyService) Identify(ctx context.Context, auth string) (*gateway.IdentifyResult, error) {
	userID, err := s.store.UserForToken(ctx, auth)
	if err != nil {
		if errutil.Code(err) == CodeNotFound {
			return nil, oops.In("backend").Code(CodeUnauthorized).Errorf("invalid token")
		}
		return nil, err
	}

	ready, err := s.store.ReadySnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	blocked, err := s.store.BlockedBy(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.perms.Retain(userID)
	s.logger.Info("user identified", "user_id", userID.String(), "parties", len(ready.Parties))
	return &gateway.IdentifyResult{Ready: *ready, BlockedBy: blocked}, nil
}

// SetPresence fans a presence change out to every party the user is
// in. Presence is ephemeral; nothing is persisted.
func (s *IdentifyService) SetPresence(ctx context.Context, userID models.UserID, status uint8) error {
	partyIDs, err := s.store.PartyIDsForUser(ctx, userID)
	if err != nil {
		return err
	}

	for _, partyID := range partyIDs {
		msg := models.ServerMsg{Op: models.OpPresenceUpdate, Payload: &models.PresencePayload{
			UserID:  userID,
			PartyID: partyID,
			Status:  status,
		}}
		if err := s.sink.Dispatch(ctx, msg, 0); err != nil {
			errutil.LogError(s.logger, "presence dispatch failed", err)
		}
	}
	return nil
}

// Release drops the cache reference Identify took.
func (s *IdentifyService) Release(userID models.UserID) {
	s.perms.Release(userID)
}
