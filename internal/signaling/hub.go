// Package signaling brokers WebRTC handshake messages between peers grouped
// into named rooms. It never inspects negotiation payloads beyond the routing
// fields of the envelope.
package signaling

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mossy-p/webrtc-relay/internal/metrics"
	"github.com/mossy-p/webrtc-relay/internal/models"
)

const drainPoll = 10 * time.Millisecond

type Config struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Presence PresenceSink

	// NewID generates connection ids. Defaults to random UUIDs.
	NewID func() string
	// Now is the relay clock used for welcome and relay timestamps.
	Now func() time.Time
}

// Hub ties the connection registry and the room router together and
// dispatches decoded client messages to them.
type Hub struct {
	registry *Registry
	router   *Router
	log      *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewHub(cfg Config) *Hub {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New(prometheus.NewRegistry())
	}
	if cfg.Presence == nil {
		cfg.Presence = nopPresence{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Hub{
		registry: NewRegistry(cfg.NewID),
		router:   newRouter(cfg.Logger, cfg.Metrics, cfg.Presence, cfg.Now),
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
		now:      cfg.Now,
	}
}

// Connect registers a new connection and greets it with its id.
func (h *Hub) Connect(p Peer) string {
	s := h.registry.Register(p)
	h.metrics.ConnectionsActive.Inc()
	h.router.send(s.id, p, models.NewWelcome(s.id, h.now()))
	return s.id
}

// Disconnect leaves the connection's room, if any, and drops its metadata.
// Unknown ids are ignored.
func (h *Hub) Disconnect(id string) {
	s, ok := h.registry.Unregister(id)
	if !ok {
		return
	}

	s.mu.Lock()
	s.closed = true
	if s.roomID != "" {
		h.router.leave(s, s.roomID)
	}
	s.mu.Unlock()

	h.metrics.ConnectionsActive.Dec()
	h.log.Info("client.disconnected", "client_id", id)
}

// join adds s to roomID, leaving its previous room first.
func (h *Hub) join(s *Session, roomID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrUnknownConnection
	}
	return h.router.join(s, roomID, role)
}

// leave removes s from roomID. Missing rooms and non-members are a no-op.
func (h *Hub) leave(s *Session, roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	h.router.leave(s, roomID)
}

// HandleMessage decodes one inbound frame from connection id and dispatches it.
// Failures are reported to the sender only; a panic is logged and the
// connection stays open.
func (h *Hub) HandleMessage(id string, data []byte) {
	s, ok := h.registry.Get(id)
	if !ok {
		h.log.Debug("message.orphaned", "client_id", id)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			h.metrics.Panics.Inc()
			h.log.Error("message.panic", "client_id", id, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	env, err := models.ParseEnvelope(data)
	if err != nil {
		h.log.Warn("message.malformed", "client_id", id, "err", err)
		h.fail(s, ErrMalformedEnvelope)
		return
	}

	h.metrics.MessagesReceived.WithLabelValues(typeLabel(env.Type)).Inc()
	h.log.Debug("message.received", "client_id", id, "type", env.Type)

	if err := h.dispatch(s, env); err != nil {
		h.fail(s, err)
	}
}

func (h *Hub) dispatch(s *Session, env *models.Envelope) error {
	switch {
	case env.Type == models.MessageTypeJoin:
		if err := h.require(s, env, "roomId", "role"); err != nil {
			return err
		}
		return h.join(s, env.RoomID, env.Role)
	case env.Type == models.MessageTypeLeave:
		if err := h.require(s, env, "roomId"); err != nil {
			return err
		}
		h.leave(s, env.RoomID)
	case env.Type.IsRelayed():
		if err := h.require(s, env, "roomId"); err != nil {
			return err
		}
		_, err := h.router.relay(s, env)
		return err
	case env.Type == models.MessageTypeHeartbeat:
		h.router.send(s.id, s.peer, models.NewHeartbeatAck())
	default:
		h.log.Warn("message.unknown_type", "client_id", s.id, "type", env.Type)
	}
	return nil
}

// require checks the routing fields a message type depends on.
func (h *Hub) require(s *Session, env *models.Envelope, keys ...string) error {
	if err := env.Require(keys...); err != nil {
		h.log.Warn("message.malformed", "client_id", s.id, "type", env.Type, "err", err)
		return ErrMalformedEnvelope
	}
	return nil
}

func (h *Hub) fail(s *Session, err error) {
	message, kind, ok := wireError(err)
	if !ok {
		if !errors.Is(err, ErrUnknownConnection) {
			h.log.Error("message.failed", "client_id", s.id, "err", err)
		}
		return
	}
	h.metrics.Errors.WithLabelValues(kind).Inc()
	h.router.send(s.id, s.peer, models.NewError(message))
}

func typeLabel(t models.MessageType) string {
	switch t {
	case models.MessageTypeJoin, models.MessageTypeLeave, models.MessageTypeHeartbeat:
		return string(t)
	}
	if t.IsRelayed() {
		return string(t)
	}
	return "unknown"
}

// Session returns the metadata record for id.
func (h *Hub) Session(id string) (*Session, bool) {
	return h.registry.Get(id)
}

// Rooms lists active rooms sorted by id.
func (h *Hub) Rooms() []models.RoomInfo { return h.router.Rooms() }

// Room describes one active room and its members.
func (h *Hub) Room(roomID string) (models.RoomInfo, bool) { return h.router.Room(roomID) }

// Connections returns the number of registered connections.
func (h *Hub) Connections() int { return h.registry.Len() }

// RoomCount returns the number of active rooms.
func (h *Hub) RoomCount() int { return h.router.Len() }

// Drain waits until every connection has been unregistered or ctx is done.
func (h *Hub) Drain(ctx context.Context) error {
	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()
	for h.registry.Len() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Close closes every registered channel. Each transport then reports its
// own disconnect, which is safe to race with Close.
func (h *Hub) Close() {
	for _, s := range h.registry.Snapshot() {
		if err := s.peer.Close(); err != nil {
			h.log.Debug("client.close", "client_id", s.id, "err", err)
		}
	}
}
