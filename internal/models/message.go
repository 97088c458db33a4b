package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// MessageType is the discriminator carried in every envelope's "type" field.
type MessageType string

// Client -> server
const (
	MessageTypeJoin         MessageType = "join"
	MessageTypeLeave        MessageType = "leave"
	MessageTypeOffer        MessageType = "offer"
	MessageTypeAnswer       MessageType = "answer"
	MessageTypeICECandidate MessageType = "ice-candidate"
	MessageTypeHeartbeat    MessageType = "heartbeat"
)

// Server -> client
const (
	MessageTypeWelcome      MessageType = "welcome"
	MessageTypeJoined       MessageType = "joined"
	MessageTypePeerJoined   MessageType = "peer-joined"
	MessageTypePeerLeft     MessageType = "peer-left"
	MessageTypeError        MessageType = "error"
	MessageTypeHeartbeatAck MessageType = "heartbeat-ack"
)

// DefaultRole is assigned when a join carries no role.
const DefaultRole = "viewer"

// IsRelayed reports whether messages of this type are forwarded to the room.
func (t MessageType) IsRelayed() bool {
	switch t {
	case MessageTypeOffer, MessageTypeAnswer, MessageTypeICECandidate:
		return true
	}
	return false
}

// ErrNotObject is returned by ParseEnvelope for payloads that are not a JSON object.
var ErrNotObject = errors.New("envelope is not a JSON object")

// Envelope is a decoded inbound message. Fields keeps every top-level field
// exactly as the client sent it so relayed payloads pass through untouched.
//
// Type, RoomID and Role are read leniently: a value that is not a JSON
// string reads as "". Require reports such values for the fields a message
// type actually routes on.
type Envelope struct {
	Type   MessageType
	RoomID string
	Role   string
	Fields map[string]json.RawMessage
}

// ParseEnvelope decodes a frame into an Envelope. Only payloads that are not
// a JSON object are rejected.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, ErrNotObject
	}

	env := &Envelope{Fields: fields}
	env.Type = MessageType(stringField(fields, "type"))
	env.RoomID = stringField(fields, "roomId")
	env.Role = stringField(fields, "role")
	return env, nil
}

// Require returns an error when any of keys is present with a value other
// than a string or null.
func (e *Envelope) Require(keys ...string) error {
	for _, key := range keys {
		raw, ok := e.Fields[key]
		if !ok || string(raw) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("field %q must be a string: %w", key, err)
		}
	}
	return nil
}

// stringField returns "" for absent, null or non-string fields.
func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Stamp encodes the envelope for forwarding with from and timestamp
// overwritten by the relay. Any sender-supplied values are discarded.
func (e *Envelope) Stamp(from string, now time.Time) ([]byte, error) {
	out := make(map[string]json.RawMessage, len(e.Fields)+2)
	for k, v := range e.Fields {
		out[k] = v
	}

	fromRaw, err := json.Marshal(from)
	if err != nil {
		return nil, err
	}
	out["from"] = fromRaw
	out["timestamp"] = json.RawMessage(fmt.Sprintf("%d", now.UnixMilli()))

	return json.Marshal(out)
}

type Welcome struct {
	Type      MessageType `json:"type"`
	ClientID  string      `json:"clientId"`
	Timestamp int64       `json:"timestamp"`
}

type Joined struct {
	Type     MessageType `json:"type"`
	RoomID   string      `json:"roomId"`
	ClientID string      `json:"clientId"`
	Role     string      `json:"role"`
	RoomSize int         `json:"roomSize"`
}

type PeerJoined struct {
	Type     MessageType `json:"type"`
	ClientID string      `json:"clientId"`
	Role     string      `json:"role"`
	RoomSize int         `json:"roomSize"`
}

type PeerLeft struct {
	Type     MessageType `json:"type"`
	ClientID string      `json:"clientId"`
	RoomSize int         `json:"roomSize"`
}

type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

type HeartbeatAck struct {
	Type MessageType `json:"type"`
}

func NewWelcome(clientID string, now time.Time) Welcome {
	return Welcome{Type: MessageTypeWelcome, ClientID: clientID, Timestamp: now.UnixMilli()}
}

func NewJoined(roomID, clientID, role string, size int) Joined {
	return Joined{Type: MessageTypeJoined, RoomID: roomID, ClientID: clientID, Role: role, RoomSize: size}
}

func NewPeerJoined(clientID, role string, size int) PeerJoined {
	return PeerJoined{Type: MessageTypePeerJoined, ClientID: clientID, Role: role, RoomSize: size}
}

func NewPeerLeft(clientID string, size int) PeerLeft {
	return PeerLeft{Type: MessageTypePeerLeft, ClientID: clientID, RoomSize: size}
}

func NewError(message string) ErrorMessage {
	return ErrorMessage{Type: MessageTypeError, Message: message}
}

func NewHeartbeatAck() HeartbeatAck {
	return HeartbeatAck{Type: MessageTypeHeartbeatAck}
}
