package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors the engine reports against,
// mirroring the platform-level metric struct style of the semstreams pack:
// one field per collector, grouped by concern, registered together.
type Metrics struct {
	MessagesReceived *prometheus.CounterVec
	MessagesRejected *prometheus.CounterVec
	GroupsEmitted    prometheus.Counter
	MatchLatency     prometheus.Histogram
	BufferOccupancy  *prometheus.GaugeVec
}

// NewMetrics constructs the collector set, unregistered.
func NewMetrics() *Metrics {
	return &Metrics{
		MessagesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "conflux",
				Name:      "messages_received_total",
				Help:      "Total number of messages accepted by a stream buffer.",
			},
			[]string{"key", "outcome"},
		),
		MessagesRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "conflux",
				Name:      "messages_rejected_total",
				Help:      "Total number of messages dropped or rejected, by reason.",
			},
			[]string{"key", "reason"},
		),
		GroupsEmitted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "conflux",
				Name:      "groups_emitted_total",
				Help:      "Total number of synchronized groups emitted.",
			},
		),
		MatchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "conflux",
				Name:      "match_latency_seconds",
				Help:      "Wall-clock time between a message's push and its group's emission.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		BufferOccupancy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "conflux",
				Name:      "buffer_occupancy",
				Help:      "Current number of buffered messages per stream key.",
			},
			[]string{"key"},
		),
	}
}

// Registry wraps a *prometheus.Registry with the engine's Metrics,
// registered together at construction. No Go runtime or process collectors
// are registered.
type Registry struct {
	prom    *prometheus.Registry
	Metrics *Metrics
}

// NewRegistry builds a Registry with Metrics already registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	m := NewMetrics()
	reg.MustRegister(
		m.MessagesReceived,
		m.MessagesRejected,
		m.GroupsEmitted,
		m.MatchLatency,
		m.BufferOccupancy,
	)
	return &Registry{prom: reg, Metrics: m}
}

// Prometheus returns the underlying registry, e.g. to mount at /metrics.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.prom
}

// Recorder adapts a Registry's Metrics to core/state.Recorder[K] for a
// specific comparable key type, rendering K through fmt.Sprint as the
// Prometheus label value.
type Recorder[K comparable] struct {
	metrics *Metrics
}

// NewRecorder returns a Recorder bound to reg's Metrics.
func NewRecorder[K comparable](reg *Registry) *Recorder[K] {
	return &Recorder[K]{metrics: reg.Metrics}
}

func (r *Recorder[K]) label(k K) string { return fmt.Sprint(k) }

func (r *Recorder[K]) ObserveReceived(k K) {
	r.metrics.MessagesReceived.WithLabelValues(r.label(k), "accepted").Inc()
}

func (r *Recorder[K]) ObserveRejected(k K) {
	r.metrics.MessagesRejected.WithLabelValues(r.label(k), "buffer_full").Inc()
}

func (r *Recorder[K]) ObserveOutOfOrder(k K) {
	r.metrics.MessagesRejected.WithLabelValues(r.label(k), "out_of_order").Inc()
}

func (r *Recorder[K]) ObserveBeforeStart(k K) {
	r.metrics.MessagesRejected.WithLabelValues(r.label(k), "before_start").Inc()
}

func (r *Recorder[K]) ObserveDroppedCapacity(k K) {
	r.metrics.MessagesRejected.WithLabelValues(r.label(k), "dropped_capacity").Inc()
}

func (r *Recorder[K]) ObserveDroppedStale(k K) {
	r.metrics.MessagesRejected.WithLabelValues(r.label(k), "dropped_stale").Inc()
}

func (r *Recorder[K]) ObserveDroppedWindow(k K) {
	r.metrics.MessagesRejected.WithLabelValues(r.label(k), "dropped_window").Inc()
}

func (r *Recorder[K]) ObserveGroupEmitted() {
	r.metrics.GroupsEmitted.Inc()
}

func (r *Recorder[K]) ObserveOccupancy(k K, length, _ int) {
	r.metrics.BufferOccupancy.WithLabelValues(r.label(k)).Set(float64(length))
}
