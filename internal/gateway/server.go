// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gobwas/glob"
	"github.com/gorilla/websocket"

	"github.com/partyline/partyline/internal/gateway/structure"
	"github.com/partyline/partyline/internal/models"
	"github.com/partyline/partyline/internal/observability"
)

// Default session timing. The heartbeat interval is what Hello
// announces; the timeout is how long a silent client survives.
const (
	DefaultHeartbeatInterval = 45 * time.Second
	DefaultHeartbeatTimeout  = 52 * time.Second
	DefaultProbeInterval     = 8 * time.Second
	DefaultWriteTimeout      = 10 * time.Second

	// DefaultSendQueue is deliberately small: a consumer that cannot
	// drain a handful of events is lagging, and a short queue surfaces
	// that quickly instead of hiding it behind buffering.
	DefaultSendQueue = 16
)

// Config holds session and upgrade settings for the websocket server.
type Config struct {
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	ProbeInterval     time.Duration
	WriteTimeout      time.Duration
	SendQueue         int

	// AllowedOrigins are compiled glob patterns matched against the
	// Origin header. Empty means same-origin only, gorilla's default.
	AllowedOrigins []glob.Glob
}

func (c *Config) applyDefaults() {
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.HeartbeatTimeout == 0 {
		c.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if c.ProbeInterval == 0 {
		c.ProbeInterval = DefaultProbeInterval
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.SendQueue == 0 {
		c.SendQueue = DefaultSendQueue
	}
}

// Server upgrades websocket connections and runs one session actor per
// connection. It implements http.Handler.
type Server struct {
	cfg      Config
	registry *Registry
	cache    *structure.Cache
	backend  Backend
	hello    *Event
	upgrader websocket.Upgrader
	metrics  *observability.Metrics

	// baseCtx parents every session so shutdown reaches them all.
	baseCtx context.Context
}

// NewServer creates a websocket Server. metrics may be nil.
func NewServer(ctx context.Context, cfg Config, registry *Registry, cache *structure.Cache, backend Backend, metrics *observability.Metrics) (*Server, error) {
	cfg.applyDefaults()

	hello, err := HelloEvent(uint32(cfg.HeartbeatInterval.Milliseconds()))
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		registry: registry,
		cache:    cache,
		backend:  backend,
		hello:    hello,
		metrics:  metrics,
		baseCtx:  ctx,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
	if len(cfg.AllowedOrigins) > 0 {
		s.upgrader.CheckOrigin = s.checkOrigin
	}
	return s, nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, g := range s.cfg.AllowedOrigins {
		if g.Match(origin) {
			return true
		}
	}
	return false
}

// ServeHTTP upgrades the request and runs the session until it ends.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	enc, err := ParseEncoding(r.URL.Query().Get("encoding"))
	if err != nil {
		http.Error(w, "unknown encoding", http.StatusBadRequest)
		return
	}
	compressed := r.URL.Query().Get("compress") == "true"

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	defer cancel()

	conn := NewConn(s.cfg.SendQueue, enc, compressed, cancel)
	s.registry.Register(conn)

	if s.metrics != nil {
		s.metrics.ConnectionsGauge.WithLabelValues("open").Inc()
		defer s.metrics.ConnectionsGauge.WithLabelValues("open").Dec()
	}

	sess := &session{
		cfg:      s.cfg,
		ws:       ws,
		conn:     conn,
		heart:    NewHeart(),
		registry: s.registry,
		cache:    s.cache,
		backend:  s.backend,
		hello:    s.hello,
		logger:   slog.With("conn_id", conn.ID.String(), "remote", r.RemoteAddr),
		permMemo: make(map[models.RoomID]models.Permissions),
		parties:  make(map[models.PartyID]struct{}),
	}
	sess.run(ctx)
}
