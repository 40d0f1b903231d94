package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for the WIP server.
type Metrics struct {
	registry *prometheus.Registry

	PacketsReceived *prometheus.CounterVec
	PacketsSent     *prometheus.CounterVec
	BytesReceived   prometheus.Counter
	BytesSent       prometheus.Counter
	DecodeErrors    *prometheus.CounterVec
	AuthFailures    prometheus.Counter
	ReportsIngested prometheus.Counter
	QueriesServed   prometheus.Counter
	WebClients      prometheus.Gauge
}

// New creates the metrics set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		PacketsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wip",
			Name:      "packets_received_total",
			Help:      "Total packets received, by packet type",
		}, []string{"type"}),
		PacketsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wip",
			Name:      "packets_sent_total",
			Help:      "Total packets sent, by packet type",
		}, []string{"type"}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wip",
			Name:      "bytes_received_total",
			Help:      "Total bytes received over UDP",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wip",
			Name:      "bytes_sent_total",
			Help:      "Total bytes sent over UDP",
		}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wip",
			Name:      "decode_errors_total",
			Help:      "Packets rejected during decode, by reason",
		}, []string{"reason"}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wip",
			Name:      "auth_failures_total",
			Help:      "Report requests rejected for bad or missing auth",
		}),
		ReportsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wip",
			Name:      "reports_ingested_total",
			Help:      "Sensor reports accepted and persisted",
		}),
		QueriesServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wip",
			Name:      "queries_served_total",
			Help:      "Query requests answered with a forecast",
		}),
		WebClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wip",
			Name:      "web_clients",
			Help:      "Connected websocket dashboard clients",
		}),
	}

	registry.MustRegister(
		m.PacketsReceived,
		m.PacketsSent,
		m.BytesReceived,
		m.BytesSent,
		m.DecodeErrors,
		m.AuthFailures,
		m.ReportsIngested,
		m.QueriesServed,
		m.WebClients,
	)

	return m
}

// Registry returns the registry backing this metrics set.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
