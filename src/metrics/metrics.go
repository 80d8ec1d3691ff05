// Package metrics holds the Prometheus collectors for the realtime hub.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics contains the hub's collectors. A nil *Metrics is valid and records nothing,
// so components can run without instrumentation in tests.
type Metrics struct {
	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
	EventsPublished   *prometheus.CounterVec
	FramesDropped     prometheus.Counter
	InboundRejected   *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "realtime_connections_active",
			Help: "Number of currently registered websocket connections",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realtime_connections_total",
			Help: "Total number of websocket connections registered",
		}),
		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realtime_events_published_total",
				Help: "Total number of events fanned out by type",
			},
			[]string{"type"},
		),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realtime_frames_dropped_total",
			Help: "Total number of frames dropped because a client buffer was full",
		}),
		InboundRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realtime_inbound_rejected_total",
				Help: "Total number of client frames rejected by reason",
			},
			[]string{"reason"},
		),
	}

	reg.MustRegister(m.ConnectionsActive)
	reg.MustRegister(m.ConnectionsTotal)
	reg.MustRegister(m.EventsPublished)
	reg.MustRegister(m.FramesDropped)
	reg.MustRegister(m.InboundRejected)
	return m
}

// NewRegistry returns a private registry with the Go and process collectors,
// to avoid polluting the global one.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Inc()
	m.ConnectionsTotal.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Dec()
}

func (m *Metrics) Published(eventType string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

func (m *Metrics) Dropped() {
	if m == nil {
		return
	}
	m.FramesDropped.Inc()
}

func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.InboundRejected.WithLabelValues(reason).Inc()
}
