package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "signaling"

// Error kinds used as the "kind" label of ErrorsTotal.
const (
	ErrorMalformedEnvelope = "malformed_envelope"
	ErrorInvalidRequest    = "invalid_request"
	ErrorRoomNotFound      = "room_not_found"
)

// Metrics holds the collectors updated by the signaling core.
type Metrics struct {
	ConnectionsActive prometheus.Gauge
	RoomsActive       prometheus.Gauge
	MessagesReceived  *prometheus.CounterVec
	Relayed           prometheus.Counter
	SendSkipped       prometheus.Counter
	Errors            *prometheus.CounterVec
	Panics            prometheus.Counter
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ConnectionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Connections currently registered.",
		}),
		RoomsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Rooms with at least one member.",
		}),
		MessagesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Inbound envelopes by type.",
		}, []string{"type"}),
		Relayed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relayed_total",
			Help:      "Envelopes delivered to a room member's send queue.",
		}),
		SendSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_skipped_total",
			Help:      "Outbound messages dropped because the recipient channel was not ready.",
		}),
		Errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Error notifications sent to clients by kind.",
		}, []string{"kind"}),
		Panics: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "panics_total",
			Help:      "Recovered panics while handling a message.",
		}),
	}
}

// Handler exposes the registry in Prometheus' text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
