package signaling

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mossy-p/webrtc-relay/internal/metrics"
)

var testNow = time.UnixMilli(1700000000000)

type fakePeer struct {
	mu     sync.Mutex
	msgs   [][]byte
	closed bool
	busy   bool
	panics bool
}

func (p *fakePeer) Send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.panics {
		panic("send exploded")
	}
	if p.closed {
		return ErrPeerClosed
	}
	if p.busy {
		return ErrPeerBusy
	}
	p.msgs = append(p.msgs, append([]byte(nil), data...))
	return nil
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePeer) setBusy(busy bool) {
	p.mu.Lock()
	p.busy = busy
	p.mu.Unlock()
}

// drain returns and clears the decoded messages received so far.
func (p *fakePeer) drain(t *testing.T) []map[string]any {
	t.Helper()
	p.mu.Lock()
	raw := p.msgs
	p.msgs = nil
	p.mu.Unlock()

	out := make([]map[string]any, 0, len(raw))
	for _, b := range raw {
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			t.Fatalf("peer received invalid JSON %q: %v", b, err)
		}
		out = append(out, m)
	}
	return out
}

func (p *fakePeer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

type recordingPresence struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingPresence) PeerJoined(roomID, clientID, role string) {
	r.mu.Lock()
	r.events = append(r.events, fmt.Sprintf("join %s %s %s", roomID, clientID, role))
	r.mu.Unlock()
}

func (r *recordingPresence) PeerLeft(roomID, clientID string, remaining int) {
	r.mu.Lock()
	r.events = append(r.events, fmt.Sprintf("leave %s %s %d", roomID, clientID, remaining))
	r.mu.Unlock()
}

func sequentialIDs(names ...string) func() string {
	var n atomic.Int64
	return func() string {
		i := int(n.Add(1)) - 1
		if i < len(names) {
			return names[i]
		}
		return fmt.Sprintf("client-%d", i)
	}
}

func newTestHub(t *testing.T, cfg Config) (*Hub, *metrics.Metrics) {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New(prometheus.NewRegistry())
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return testNow }
	}
	return NewHub(cfg), cfg.Metrics
}

// connect registers a fake peer and discards its welcome message.
func connect(t *testing.T, h *Hub) (string, *fakePeer) {
	t.Helper()
	p := &fakePeer{}
	id := h.Connect(p)
	msgs := p.drain(t)
	if len(msgs) != 1 || msgs[0]["type"] != "welcome" {
		t.Fatalf("expected welcome, got %v", msgs)
	}
	return id, p
}

func send(h *Hub, id string, msg string) {
	h.HandleMessage(id, []byte(msg))
}

func assertSingle(t *testing.T, msgs []map[string]any, want map[string]any) {
	t.Helper()
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one message, got %d: %v", len(msgs), msgs)
	}
	for k, v := range want {
		if msgs[0][k] != v {
			t.Fatalf("field %q = %v, want %v (message %v)", k, msgs[0][k], v, msgs[0])
		}
	}
}
