// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package gateway

import (
	"context"

	"github.com/samber/oops"

	"github.com/partyline/partyline/internal/gateway/structure"
	"github.com/partyline/partyline/internal/models"
	"github.com/partyline/partyline/internal/observability"
)

// Dispatcher consumes the backend event stream: it folds structural
// changes into the local cache, pre-encodes each event once, and
// routes it to party subscribers or a targeted user.
type Dispatcher struct {
	registry *Registry
	cache    *structure.Cache
	metrics  *observability.Metrics
}

// NewDispatcher creates a Dispatcher. metrics may be nil.
func NewDispatcher(registry *Registry, cache *structure.Cache, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{registry: registry, cache: cache, metrics: metrics}
}

// Dispatch processes one backend event. msg.Payload must be the typed
// payload for msg.Op. target, when nonzero, routes the event to that
// user's connections instead of a party broadcast.
func (d *Dispatcher) Dispatch(ctx context.Context, msg models.ServerMsg, target models.UserID) error {
	partyID, roomID, authorID, err := d.applyStructure(msg)
	if err != nil {
		return err
	}

	ev, err := NewEvent(msg, partyID, roomID, authorID)
	if err != nil {
		return err
	}

	if target != 0 {
		d.registry.SendToUser(target, ev)
		d.count("user")
		return nil
	}
	if partyID == 0 {
		return oops.Code("UNROUTABLE_EVENT").With("op", msg.Op).
			Errorf("event has no party and no target user")
	}
	if err := d.registry.BroadcastParty(ctx, partyID, ev); err != nil {
		return err
	}
	if msg.Op == models.OpPartyDelete {
		d.registry.ClosePartyEmitter(partyID)
	}
	d.count("party")
	return nil
}

func (d *Dispatcher) count(scope string) {
	if d.metrics != nil {
		d.metrics.EventsTotal.WithLabelValues(scope).Inc()
	}
}

// applyStructure folds a structural event into the cache and extracts
// routing metadata. Non-structural events only contribute routing.
//
//nolint:cyclop // one arm per opcode family
func (d *Dispatcher) applyStructure(msg models.ServerMsg) (models.PartyID, models.RoomID, models.UserID, error) {
	switch p := msg.Payload.(type) {
	case *models.PartyPayload:
		d.cache.SetParty(p.ID, p.OwnerID)
		for i := range p.Roles {
			if err := d.cache.SetRole(&p.Roles[i]); err != nil {
				return 0, 0, 0, err
			}
		}
		return p.ID, 0, 0, nil

	case *models.PartyDeletePayload:
		d.cache.RemoveParty(p.ID)
		return p.ID, 0, 0, nil

	case *models.RoomPayload:
		if err := d.cache.SetRoom(&p.Room); err != nil {
			return 0, 0, 0, err
		}
		return p.Room.PartyID, p.Room.ID, 0, nil

	case *models.RoomDeletePayload:
		d.cache.RemoveRoom(p.PartyID, p.ID)
		return p.PartyID, p.ID, 0, nil

	case *models.RolePayload:
		if err := d.cache.SetRole(&p.Role); err != nil {
			return 0, 0, 0, err
		}
		return p.Role.PartyID, 0, 0, nil

	case *models.RoleDeletePayload:
		d.cache.RemoveRole(p.PartyID, p.ID)
		return p.PartyID, 0, 0, nil

	case *models.MemberPayload:
		switch msg.Op {
		case models.OpMemberLeave, models.OpMemberBan:
			d.cache.RemoveMember(p.Member.PartyID, p.Member.UserID)
		default:
			if err := d.cache.SetMember(&p.Member); err != nil {
				return 0, 0, 0, err
			}
		}
		return p.Member.PartyID, 0, p.Member.UserID, nil

	case *models.MessagePayload:
		partyID, ok := d.cache.PartyForRoom(p.RoomID)
		if !ok {
			return 0, 0, 0, oops.Code(structure.CodeUnknownRoom).
				With("room_id", p.RoomID).Errorf("message for unknown room")
		}
		return partyID, p.RoomID, p.AuthorID, nil

	case *models.PresencePayload:
		return p.PartyID, 0, p.UserID, nil

	case *models.TypingPayload:
		return p.PartyID, p.RoomID, p.UserID, nil

	case nil:
		return 0, 0, 0, nil

	default:
		return 0, 0, 0, oops.Code("UNKNOWN_PAYLOAD").With("op", msg.Op).
			Errorf("unhandled event payload type")
	}
}
