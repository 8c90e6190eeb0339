package metrics

import "github.com/prometheus/client_golang/prometheus"

// RealtimeMetrics tracks live websocket subscriptions and fanned-out events.
type RealtimeMetrics struct {
	connections prometheus.Gauge
	published   *prometheus.CounterVec
	dropped     *prometheus.CounterVec
}

// NewRealtimeMetrics registers realtime metrics on the provided registerer.
func NewRealtimeMetrics(reg prometheus.Registerer) *RealtimeMetrics {
	if reg == nil {
		return &RealtimeMetrics{}
	}
	connections := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_connections",
		Help: "Currently open websocket subscriptions.",
	})
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_events_published_total",
		Help: "Events published to channel subscribers.",
	}, []string{"event"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_events_dropped_total",
		Help: "Events dropped because a subscriber buffer was full.",
	}, []string{"event"})
	reg.MustRegister(connections, published, dropped)
	return &RealtimeMetrics{
		connections: connections,
		published:   published,
		dropped:     dropped,
	}
}

// ConnOpened increments the live connection gauge.
func (r *RealtimeMetrics) ConnOpened() {
	if r == nil || r.connections == nil {
		return
	}
	r.connections.Inc()
}

// ConnClosed decrements the live connection gauge.
func (r *RealtimeMetrics) ConnClosed() {
	if r == nil || r.connections == nil {
		return
	}
	r.connections.Dec()
}

// IncPublished counts one event delivered to subscribers.
func (r *RealtimeMetrics) IncPublished(event string) {
	if r == nil || r.published == nil {
		return
	}
	r.published.WithLabelValues(normalizeLabel(event)).Inc()
}

// IncDropped counts one event discarded for a slow subscriber.
func (r *RealtimeMetrics) IncDropped(event string) {
	if r == nil || r.dropped == nil {
		return
	}
	r.dropped.WithLabelValues(normalizeLabel(event)).Inc()
}
