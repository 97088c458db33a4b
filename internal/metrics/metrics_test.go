package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ConnectionsActive.Inc()
	m.MessagesReceived.WithLabelValues("join").Inc()
	m.Errors.WithLabelValues(ErrorRoomNotFound).Add(2)

	if got := testutil.ToFloat64(m.ConnectionsActive); got != 1 {
		t.Fatalf("connections_active = %v", got)
	}
	if got := testutil.ToFloat64(m.Errors.WithLabelValues(ErrorRoomNotFound)); got != 2 {
		t.Fatalf("errors_total = %v", got)
	}
	if n := testutil.CollectAndCount(m.MessagesReceived); n != 1 {
		t.Fatalf("messages_received_total series = %d", n)
	}
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	New(reg)
}

func TestHandler_ServesTextFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Relayed.Add(3)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "signaling_relayed_total 3") {
		t.Fatalf("metrics output missing counter:\n%s", body)
	}
}
