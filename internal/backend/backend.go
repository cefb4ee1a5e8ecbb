// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

// Package backend implements the service side of the gateway contract:
// token identification, presence, permission resolution over the flat
// cache, and role management. Services take narrow store interfaces so
// tests can swap in fakes without a database.
package backend

import (
	"context"

	"github.com/partyline/partyline/internal/models"
)

// Error codes shared by the services. Authorization failures collapse
// to UNAUTHORIZED; lookups a user is not allowed to know about are
// masked as NOT_FOUND.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeRoleLimit    = "ROLE_LIMIT"
)

// EventSink receives the events a mutation produces. In-process this
// is the gateway dispatcher; across nodes it is the rpc client. A zero
// target means party broadcast.
type EventSink interface {
	Dispatch(ctx context.Context, msg models.ServerMsg, target models.UserID) error
}
