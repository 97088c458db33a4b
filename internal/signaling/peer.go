package signaling

// Peer is the outbound half of a client's bidirectional channel.
//
// Send must not block: it either queues data for delivery or returns
// ErrPeerBusy/ErrPeerClosed immediately. Close tears the channel down; the
// transport reports the disconnect back through Hub.Disconnect.
type Peer interface {
	Send(data []byte) error
	Close() error
}

// PresenceSink observes membership changes. Calls happen while the room is
// locked, so implementations must return without blocking.
type PresenceSink interface {
	PeerJoined(roomID, clientID, role string)
	PeerLeft(roomID, clientID string, remaining int)
}

type nopPresence struct{}

func (nopPresence) PeerJoined(string, string, string) {}
func (nopPresence) PeerLeft(string, string, int)      {}
