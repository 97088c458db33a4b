package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Envelope
		wantErr bool
	}{
		{
			name: "join with role",
			in:   `{"type":"join","roomId":"demo","role":"broadcaster"}`,
			want: Envelope{Type: MessageTypeJoin, RoomID: "demo", Role: "broadcaster"},
		},
		{
			name: "join without room",
			in:   `{"type":"join"}`,
			want: Envelope{Type: MessageTypeJoin},
		},
		{
			name: "null fields read as empty",
			in:   `{"type":"leave","roomId":null}`,
			want: Envelope{Type: MessageTypeLeave},
		},
		{
			name: "missing type",
			in:   `{"roomId":"demo"}`,
			want: Envelope{RoomID: "demo"},
		},
		{name: "invalid json", in: `{"type":`, wantErr: true},
		{name: "array", in: `[1,2]`, wantErr: true},
		{name: "literal null", in: `null`, wantErr: true},
		{
			name: "numeric room id reads as empty",
			in:   `{"type":"join","roomId":7}`,
			want: Envelope{Type: MessageTypeJoin},
		},
		{
			name: "object type reads as empty",
			in:   `{"type":{}}`,
			want: Envelope{},
		},
		{
			name: "opaque role on a relayed message",
			in:   `{"type":"offer","roomId":"r","role":{"dtls":"actpass"}}`,
			want: Envelope{Type: MessageTypeOffer, RoomID: "r"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEnvelope([]byte(tt.in))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEnvelope: %v", err)
			}
			if got.Type != tt.want.Type || got.RoomID != tt.want.RoomID || got.Role != tt.want.Role {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEnvelopeRequire(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"type":"join","roomId":"r","role":7,"sdp":{"x":1},"extra":null}`))
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}

	if err := env.Require("roomId", "extra", "missing"); err != nil {
		t.Fatalf("string, null and absent fields must pass: %v", err)
	}
	if err := env.Require("roomId", "role"); err == nil {
		t.Fatal("expected error for numeric role")
	}
	if err := env.Require("sdp"); err == nil {
		t.Fatal("expected error for object field")
	}
}

func TestParseEnvelope_NullIsNotObject(t *testing.T) {
	_, err := ParseEnvelope([]byte("null"))
	if !errors.Is(err, ErrNotObject) {
		t.Fatalf("expected ErrNotObject, got %v", err)
	}
}

func TestEnvelopeStamp_OverridesSenderFields(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"type":"offer","roomId":"demo","payload":{"sdp":"v=0"},"from":"spoofed","timestamp":1}`))
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}

	now := time.UnixMilli(1700000000123)
	out, err := env.Stamp("client-a", now)
	if err != nil {
		t.Fatalf("Stamp: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["from"] != "client-a" {
		t.Errorf("from = %v", got["from"])
	}
	if got["timestamp"] != float64(1700000000123) {
		t.Errorf("timestamp = %v", got["timestamp"])
	}
	if got["type"] != "offer" || got["roomId"] != "demo" {
		t.Errorf("routing fields changed: %v", got)
	}
	payload, ok := got["payload"].(map[string]any)
	if !ok || payload["sdp"] != "v=0" {
		t.Errorf("payload not passed through: %v", got["payload"])
	}

	if string(env.Fields["from"]) != `"spoofed"` {
		t.Errorf("Stamp must not mutate the parsed envelope")
	}
}

func TestMessageTypeIsRelayed(t *testing.T) {
	for _, typ := range []MessageType{MessageTypeOffer, MessageTypeAnswer, MessageTypeICECandidate} {
		if !typ.IsRelayed() {
			t.Errorf("%s should be relayed", typ)
		}
	}
	for _, typ := range []MessageType{MessageTypeJoin, MessageTypeLeave, MessageTypeHeartbeat, "candidate", ""} {
		if typ.IsRelayed() {
			t.Errorf("%q should not be relayed", typ)
		}
	}
}

func TestOutboundShapes(t *testing.T) {
	now := time.UnixMilli(42)
	tests := []struct {
		name string
		msg  any
		want string
	}{
		{"welcome", NewWelcome("a", now), `{"type":"welcome","clientId":"a","timestamp":42}`},
		{"joined", NewJoined("demo", "a", "broadcaster", 1), `{"type":"joined","roomId":"demo","clientId":"a","role":"broadcaster","roomSize":1}`},
		{"peer-joined", NewPeerJoined("b", "viewer", 2), `{"type":"peer-joined","clientId":"b","role":"viewer","roomSize":2}`},
		{"peer-left", NewPeerLeft("b", 1), `{"type":"peer-left","clientId":"b","roomSize":1}`},
		{"error", NewError("Room not found"), `{"type":"error","message":"Room not found"}`},
		{"heartbeat-ack", NewHeartbeatAck(), `{"type":"heartbeat-ack"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.msg)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(b) != tt.want {
				t.Fatalf("got %s, want %s", b, tt.want)
			}
		})
	}
}
