package signaling

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mossy-p/webrtc-relay/internal/metrics"
	"github.com/mossy-p/webrtc-relay/internal/models"
)

type member struct {
	session *Session
	role    string
}

// room is a set of sessions. A room is removed from the router table in the
// same critical section that empties it; deleted marks a stale handle so a
// concurrent join retries against a fresh room instead.
type room struct {
	id      string
	mu      sync.Mutex
	members map[string]*member
	deleted bool
}

// Router owns room membership and fans messages out to room members.
//
// Lock order is Session.mu -> room.mu -> Router.mu. Router.mu is never held
// while acquiring a room lock.
type Router struct {
	mu    sync.Mutex
	rooms map[string]*room

	log      *slog.Logger
	metrics  *metrics.Metrics
	presence PresenceSink
	now      func() time.Time
}

func newRouter(log *slog.Logger, m *metrics.Metrics, presence PresenceSink, now func() time.Time) *Router {
	return &Router{
		rooms:    make(map[string]*room),
		log:      log,
		metrics:  m,
		presence: presence,
		now:      now,
	}
}

// join adds s to roomID. The caller holds s.mu.
func (rt *Router) join(s *Session, roomID, role string) error {
	if roomID == "" {
		return ErrInvalidRequest
	}
	if role == "" {
		role = models.DefaultRole
	}

	// A connection belongs to at most one room.
	if s.roomID != "" && s.roomID != roomID {
		rt.leave(s, s.roomID)
	}

	for {
		if rt.tryJoin(rt.acquire(roomID), s, role) {
			return nil
		}
	}
}

func (rt *Router) tryJoin(r *room, s *Session, role string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleted {
		return false
	}

	_, rejoin := r.members[s.id]
	r.members[s.id] = &member{session: s, role: role}
	s.roomID, s.role = r.id, role
	size := len(r.members)
	if size == 1 && !rejoin {
		rt.metrics.RoomsActive.Inc()
	}

	rt.log.Info("room.joined", "client_id", s.id, "room_id", r.id, "role", role, "room_size", size)

	rt.send(s.id, s.peer, models.NewJoined(r.id, s.id, role, size))
	if data, ok := rt.encode(models.NewPeerJoined(s.id, role, size)); ok {
		rt.broadcast(r, s.id, data)
	}
	rt.presence.PeerJoined(r.id, s.id, role)
	return true
}

// acquire returns the live room for roomID, creating it when absent. A new
// room counts as active once tryJoin adds its first member.
func (rt *Router) acquire(roomID string) *room {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	r, ok := rt.rooms[roomID]
	if !ok {
		r = &room{id: roomID, members: make(map[string]*member)}
		rt.rooms[roomID] = r
		rt.log.Info("room.created", "room_id", roomID)
	}
	return r
}

func (rt *Router) lookup(roomID string) *room {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.rooms[roomID]
}

// leave removes s from roomID and deletes the room once it is empty.
// Leaving a room s is not a member of does nothing. The caller holds s.mu.
func (rt *Router) leave(s *Session, roomID string) {
	r := rt.lookup(roomID)
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[s.id]; !ok || r.deleted {
		return
	}
	delete(r.members, s.id)
	if s.roomID == roomID {
		s.roomID, s.role = "", ""
	}
	size := len(r.members)

	rt.log.Info("room.left", "client_id", s.id, "room_id", roomID, "room_size", size)

	if data, ok := rt.encode(models.NewPeerLeft(s.id, size)); ok {
		rt.broadcast(r, s.id, data)
	}
	rt.presence.PeerLeft(roomID, s.id, size)

	if size == 0 {
		r.deleted = true
		rt.mu.Lock()
		if rt.rooms[roomID] == r {
			delete(rt.rooms, roomID)
		}
		rt.mu.Unlock()
		rt.metrics.RoomsActive.Dec()
		rt.log.Info("room.deleted", "room_id", roomID)
	}
}

// relay forwards env to every member of its room except the sender, stamped
// with the sender id and the relay time. It returns the number of members
// whose channel accepted the message.
func (rt *Router) relay(s *Session, env *models.Envelope) (int, error) {
	r := rt.lookup(env.RoomID)
	if r == nil {
		return 0, ErrRoomNotFound
	}

	data, err := env.Stamp(s.id, rt.now())
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleted || len(r.members) == 0 {
		return 0, ErrRoomNotFound
	}

	delivered := rt.broadcast(r, s.id, data)
	rt.metrics.Relayed.Add(float64(delivered))
	rt.log.Debug("message.relayed", "client_id", s.id, "room_id", r.id, "type", env.Type, "delivered", delivered)
	return delivered, nil
}

// broadcast sends data to every member but exclude. Members whose channel
// is not ready are skipped and stay in the room. The caller holds r.mu.
func (rt *Router) broadcast(r *room, exclude string, data []byte) int {
	delivered := 0
	for id, m := range r.members {
		if id == exclude {
			continue
		}
		if rt.deliver(id, m.session.peer, data) {
			delivered++
		}
	}
	return delivered
}

func (rt *Router) send(clientID string, p Peer, msg any) bool {
	data, ok := rt.encode(msg)
	if !ok {
		return false
	}
	return rt.deliver(clientID, p, data)
}

func (rt *Router) deliver(clientID string, p Peer, data []byte) bool {
	if err := p.Send(data); err != nil {
		rt.metrics.SendSkipped.Inc()
		rt.log.Debug("send.skipped", "client_id", clientID, "err", err)
		return false
	}
	return true
}

func (rt *Router) encode(msg any) ([]byte, bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		rt.log.Error("message.encode", "err", err)
		return nil, false
	}
	return data, true
}

// snapshot describes one room, or returns false when it has no members.
func (r *room) snapshot(withMembers bool) (models.RoomInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleted || len(r.members) == 0 {
		return models.RoomInfo{}, false
	}

	info := models.RoomInfo{ID: r.id, Size: len(r.members)}
	if withMembers {
		info.Members = make([]models.MemberInfo, 0, len(r.members))
		for id, m := range r.members {
			info.Members = append(info.Members, models.MemberInfo{ClientID: id, Role: m.role})
		}
		sort.Slice(info.Members, func(i, j int) bool {
			return info.Members[i].ClientID < info.Members[j].ClientID
		})
	}
	return info, true
}

// Rooms lists active rooms sorted by id.
func (rt *Router) Rooms() []models.RoomInfo {
	rooms := rt.table()
	out := make([]models.RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		if info, ok := r.snapshot(false); ok {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Room describes a single active room including its members.
func (rt *Router) Room(roomID string) (models.RoomInfo, bool) {
	r := rt.lookup(roomID)
	if r == nil {
		return models.RoomInfo{}, false
	}
	return r.snapshot(true)
}

// Len returns the number of rooms with at least one member.
func (rt *Router) Len() int {
	n := 0
	for _, r := range rt.table() {
		r.mu.Lock()
		if !r.deleted && len(r.members) > 0 {
			n++
		}
		r.mu.Unlock()
	}
	return n
}

// table copies the room table so room locks are taken without Router.mu.
func (rt *Router) table() []*room {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rooms := make([]*room, 0, len(rt.rooms))
	for _, r := range rt.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}
