package signaling

import (
	"errors"

	"github.com/mossy-p/webrtc-relay/internal/metrics"
)

var (
	// ErrMalformedEnvelope means the frame was not a JSON object with string routing fields.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrInvalidRequest means a join arrived without a room id.
	ErrInvalidRequest = errors.New("room id required")

	// ErrRoomNotFound means a relay targeted a room with no members.
	ErrRoomNotFound = errors.New("room not found")

	// ErrUnknownConnection means the connection id is not (or no longer) registered.
	ErrUnknownConnection = errors.New("unknown connection")

	// ErrPeerClosed is returned by Peer.Send once the channel has been closed.
	ErrPeerClosed = errors.New("peer closed")

	// ErrPeerBusy is returned by Peer.Send when the outbound queue is full.
	ErrPeerBusy = errors.New("peer send buffer full")
)

// wireError maps a core error to the text sent in an error notification
// and the metrics kind label. ok is false for errors the client never sees.
func wireError(err error) (message, kind string, ok bool) {
	switch {
	case errors.Is(err, ErrMalformedEnvelope):
		return "Invalid JSON", metrics.ErrorMalformedEnvelope, true
	case errors.Is(err, ErrInvalidRequest):
		return "Room ID required", metrics.ErrorInvalidRequest, true
	case errors.Is(err, ErrRoomNotFound):
		return "Room not found", metrics.ErrorRoomNotFound, true
	}
	return "", "", false
}
