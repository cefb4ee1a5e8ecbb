// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/oops"

	"github.com/partyline/partyline/internal/gateway/structure"
	"github.com/partyline/partyline/internal/models"
	"github.com/partyline/partyline/pkg/errutil"
)

// Backend is the control-plane client a session uses for operations
// the gateway cannot answer from local state.
type Backend interface {
	// Identify authenticates a connection token and returns the user's
	// full-state snapshot plus the users who have blocked them.
	Identify(ctx context.Context, auth string) (*IdentifyResult, error)

	// SetPresence records a presence change; the resulting event comes
	// back through the event stream.
	SetPresence(ctx context.Context, userID models.UserID, status uint8) error

	// Release drops the reference Identify took on the user's cached
	// permission state. Called once when an identified session ends.
	Release(userID models.UserID)
}

// IdentifyResult is the backend's answer to a successful identify.
type IdentifyResult struct {
	Ready     models.ReadyPayload
	BlockedBy []models.UserID
}

// errSessionEnd signals the session loop to stop without logging; the
// close reason was already handled.
var errSessionEnd = oops.Code("SESSION_END").Errorf("session ended")

// session is the actor owning one websocket. All socket writes happen
// on the session goroutine; the reader goroutine only reads.
type session struct {
	cfg      Config
	ws       *websocket.Conn
	conn     *Conn
	heart    *Heart
	registry *Registry
	cache    *structure.Cache
	backend  Backend
	hello    *Event
	logger   *slog.Logger

	identified bool
	intent     models.Intent
	blockedBy  map[models.UserID]struct{}
	permMemo   map[models.RoomID]models.Permissions
	parties    map[models.PartyID]struct{}
}

func (s *session) run(ctx context.Context) {
	defer func() {
		s.conn.Kill()
		s.registry.Unregister(s.conn)
		if s.identified {
			s.backend.Release(s.conn.UserID())
		}
		_ = s.ws.Close()
	}()

	if err := s.writeEvent(s.hello); err != nil {
		return
	}

	items := make(chan item, 8)
	go s.reader(ctx, items)

	probe := time.NewTicker(s.cfg.ProbeInterval)
	defer probe.Stop()

	for {
		// The kill signal must win over buffered events: check it
		// before letting select pick among ready arms.
		select {
		case <-ctx.Done():
			s.writeClose(websocket.CloseGoingAway, "shutting down")
			return
		default:
		}

		select {
		case <-ctx.Done():
			s.writeClose(websocket.CloseGoingAway, "shutting down")
			return

		case it := <-items:
			if it.err != nil {
				if !isExpectedClose(it.err) {
					s.logger.Debug("socket read failed", "error", it.err)
				}
				return
			}
			if err := s.handleFrame(ctx, it.data); err != nil {
				if errutil.Code(err) != "SESSION_END" {
					errutil.LogError(s.logger, "closing session", err)
					s.writeClose(websocket.ClosePolicyViolation, "protocol error")
				}
				return
			}

		case ev := <-s.conn.Events():
			if err := s.deliver(ev); err != nil {
				return
			}

		case <-probe.C:
			if !s.heart.Alive(s.cfg.HeartbeatTimeout) {
				s.logger.Debug("missed heartbeat", "conn_id", s.conn.ID.String())
				s.writeClose(websocket.ClosePolicyViolation, "heartbeat timeout")
				return
			}
		}
	}
}

// reader pumps socket frames into the session loop. It exits on the
// first read error, delivering it as the final item, or when the
// session context ends while the loop is no longer draining items.
func (s *session) reader(ctx context.Context, items chan<- item) {
	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			select {
			case items <- item{err: err}:
			case <-ctx.Done():
			}
			return
		}
		select {
		case items <- item{data: data}:
		case <-ctx.Done():
			return
		}
	}
}

//nolint:cyclop // one arm per client opcode
func (s *session) handleFrame(ctx context.Context, data []byte) error {
	msg, err := DecodeClientMsg(data, s.conn.enc)
	if err != nil {
		return err
	}

	switch msg.Op {
	case models.OpHeartbeat:
		s.heart.Beat()
		return s.writeEvent(heartbeatAckEvent)

	case models.OpIdentify:
		return s.identify(ctx, msg)

	case models.OpResume:
		// Sessions are not resumable; the client must re-identify.
		_ = s.writeEvent(invalidSessionEvent)
		return errSessionEnd

	case models.OpSubscribe:
		return s.subscribe(msg, true)

	case models.OpUnsubscribe:
		return s.subscribe(msg, false)

	case models.OpSetPresence:
		if !s.identified {
			return oops.Code("NOT_IDENTIFIED").Errorf("presence before identify")
		}
		var p models.SetPresencePayload
		if err := DecodePayload(msg, s.conn.enc, &p); err != nil {
			return err
		}
		return s.backend.SetPresence(ctx, s.conn.UserID(), p.Status)

	default:
		s.logger.Debug("ignoring unknown opcode", "op", msg.Op)
		return nil
	}
}

func (s *session) identify(ctx context.Context, msg models.ClientMsg) error {
	if s.identified {
		return oops.Code("ALREADY_IDENTIFIED").Errorf("duplicate identify")
	}

	var p models.IdentifyPayload
	if err := DecodePayload(msg, s.conn.enc, &p); err != nil {
		return err
	}

	res, err := s.backend.Identify(ctx, p.Auth)
	if err != nil {
		errutil.LogError(s.logger, "identify rejected", err)
		_ = s.writeEvent(invalidSessionEvent)
		return errSessionEnd
	}

	s.identified = true
	s.intent = p.Intent
	if s.intent == 0 {
		s.intent = models.IntentAll
	}
	s.blockedBy = make(map[models.UserID]struct{}, len(res.BlockedBy))
	for _, id := range res.BlockedBy {
		s.blockedBy[id] = struct{}{}
	}

	s.conn.SetUserID(res.Ready.UserID)
	s.registry.BindUser(s.conn)
	s.cache.PopulateFromReady(&res.Ready)
	for i := range res.Ready.Parties {
		partyID := res.Ready.Parties[i].ID
		s.registry.Subscribe(partyID, s.conn)
		s.parties[partyID] = struct{}{}
	}

	ready, err := NewEvent(models.ServerMsg{Op: models.OpReady, Payload: res.Ready}, 0, 0, 0)
	if err != nil {
		return err
	}
	s.logger = s.logger.With("user_id", res.Ready.UserID)
	s.logger.Info("session identified", "parties", len(res.Ready.Parties))
	return s.writeEvent(ready)
}

func (s *session) subscribe(msg models.ClientMsg, join bool) error {
	if !s.identified {
		return oops.Code("NOT_IDENTIFIED").Errorf("subscribe before identify")
	}
	var p models.SubscribePayload
	if err := DecodePayload(msg, s.conn.enc, &p); err != nil {
		return err
	}

	if !join {
		s.registry.Unsubscribe(p.PartyID, s.conn)
		delete(s.parties, p.PartyID)
		return nil
	}
	if !s.cache.IsMember(p.PartyID, s.conn.UserID()) {
		s.logger.Debug("subscribe to party without membership", "party_id", p.PartyID)
		return nil
	}
	s.registry.Subscribe(p.PartyID, s.conn)
	s.parties[p.PartyID] = struct{}{}
	return nil
}

// deliver applies intent, block, and visibility filters, then writes
// the event's pre-encoded payload.
func (s *session) deliver(ev *Event) error {
	s.maybeInvalidate(ev)

	if !s.identified {
		return nil
	}
	if mi := ev.Op.MatchingIntent(); mi != 0 && !s.intent.Contains(mi) {
		return nil
	}
	if ev.AuthorID != 0 && ev.AuthorID != s.conn.UserID() {
		if _, blocked := s.blockedBy[ev.AuthorID]; blocked {
			return nil
		}
	}
	if ev.RoomScoped() && !s.canView(ev.RoomID) {
		return nil
	}
	return s.writeEvent(ev)
}

func (s *session) canView(roomID models.RoomID) bool {
	perms, ok := s.permMemo[roomID]
	if !ok {
		perms, ok = s.cache.ResolvePermissions(s.conn.UserID(), roomID)
		if !ok {
			return false
		}
		s.permMemo[roomID] = perms
	}
	return perms.Contains(models.RoomPerms(models.PermViewRoom))
}

// maybeInvalidate drops memoized permissions that a structural event
// may have changed. Over-invalidation is fine; the memo repopulates
// from the structure cache on next use.
func (s *session) maybeInvalidate(ev *Event) {
	switch ev.Op {
	case models.OpRoleCreate:
		// A brand new role is held by nobody.

	case models.OpRoleUpdate, models.OpRoleDelete, models.OpPartyUpdate:
		s.forgetParty(ev.PartyID)

	case models.OpMemberJoin, models.OpMemberUpdate:
		if ev.AuthorID == s.conn.UserID() {
			s.forgetParty(ev.PartyID)
		}

	case models.OpMemberLeave, models.OpMemberBan:
		if ev.AuthorID == s.conn.UserID() {
			s.forgetParty(ev.PartyID)
			s.registry.Unsubscribe(ev.PartyID, s.conn)
			delete(s.parties, ev.PartyID)
		}

	case models.OpRoomCreate, models.OpRoomUpdate, models.OpRoomDelete:
		delete(s.permMemo, ev.RoomID)

	case models.OpPartyDelete:
		// Party rooms are already gone from the cache; drop the whole
		// memo rather than track which rooms belonged to it.
		clear(s.permMemo)
		s.registry.Unsubscribe(ev.PartyID, s.conn)
		delete(s.parties, ev.PartyID)
	}
}

func (s *session) forgetParty(partyID models.PartyID) {
	for _, roomID := range s.cache.RoomsInParty(partyID) {
		delete(s.permMemo, roomID)
	}
}

func (s *session) writeEvent(ev *Event) error {
	msgType := websocket.BinaryMessage
	if s.conn.enc == EncodingJSON && !s.conn.compressed {
		msgType = websocket.TextMessage
	}
	_ = s.ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := s.ws.WriteMessage(msgType, ev.Payload(s.conn.enc, s.conn.compressed)); err != nil {
		return oops.Code("WRITE_FAILED").With("op", ev.Op).Wrap(err)
	}
	return nil
}

func (s *session) writeClose(code int, reason string) {
	_ = s.ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	_ = s.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}
