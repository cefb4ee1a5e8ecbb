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

type fakeIdentifyStore struct {
	tokens  map[string]models.UserID
	ready   map[models.UserID]*models.ReadyPayload
	blocked map[models.UserID][]models.UserID
	parties map[models.UserID][]models.PartyID
}

func (f *fakeIdentifyStore) UserForToken(_ context.Context, token string) (models.UserID, error) {
	id, ok := f.tokens[token]
	if !ok {
		return 0, oops.Code("NOT_FOUND").Errorf("token not found")
	}
	return id, nil
}

func (f *fakeIdentifyStore) ReadySnapshot(_ context.Context, userID models.UserID) (*models.ReadyPayload, error) {
	if r, ok := f.ready[userID]; ok {
		return r, nil
	}
	return &models.ReadyPayload{UserID: userID}, nil
}

func (f *fakeIdentifyStore) BlockedBy(_ context.Context, userID models.UserID) ([]models.UserID, error) {
	return f.blocked[userID], nil
}

func (f *fakeIdentifyStore) PartyIDsForUser(_ context.Context, userID models.UserID) ([]models.PartyID, error) {
	return f.parties[userID], nil
}

func newIdentifyRig(store *fakeIdentifyStore) (*backend.IdentifyService, *fakeSink, *permcache.Cache) {
	cache := permcache.NewCache()
	perms := backend.NewPermissionService(&fakePermStore{}, cache, slog.Default())
	sink := &fakeSink{}
	return backend.NewIdentifyService(store, perms, sink, slog.Default()), sink, cache
}

func TestIdentifyService_Identify(t *testing.T) {
	svc, _, cache := newIdentifyRig(&fakeIdentifyStore{
		tokens: map[string]models.UserID{"tok-7": 7},
		ready: map[models.UserID]*models.ReadyPayload{
			7: {UserID: 7, Parties: []models.ReadyParty{{ID: testParty, OwnerID: testOwner}}},
		},
		blocked: map[models.UserID][]models.UserID{7: {9}},
	})

	res, err := svc.Identify(context.Background(), "tok-7")
	require.NoError(t, err)

	assert.Equal(t, models.UserID(7), res.Ready.UserID)
	assert.Len(t, res.Ready.Parties, 1)
	assert.Equal(t, []models.UserID{9}, res.BlockedBy)
	assert.Equal(t, int64(1), cache.Refs(7), "identify pins the cache")

	svc.Release(7)
	assert.Equal(t, int64(0), cache.Refs(7))
}

func TestIdentifyService_InvalidToken(t *testing.T) {
	svc, _, cache := newIdentifyRig(&fakeIdentifyStore{})

	_, err := svc.Identify(context.Background(), "nope")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "UNAUTHORIZED")
	assert.Equal(t, int64(0), cache.Refs(7))
}

func TestIdentifyService_SetPresence(t *testing.T) {
	svc, sink, _ := newIdentifyRig(&fakeIdentifyStore{
		parties: map[models.UserID][]models.PartyID{7: {100, 200}},
	})

	require.NoError(t, svc.SetPresence(context.Background(), 7, 2))
	require.Len(t, sink.msgs, 2)

	for i, partyID := range []models.PartyID{100, 200} {
		assert.Equal(t, models.OpPresenceUpdate, sink.msgs[i].Op)
		p := sink.msgs[i].Payload.(*models.PresencePayload)
		assert.Equal(t, partyID, p.PartyID)
		assert.Equal(t, models.UserID(7), p.UserID)
		assert.Equal(t, uint8(2), p.Status)
	}
}
