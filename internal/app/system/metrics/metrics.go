// Package metrics holds the Prometheus instruments for assignment and
// dispatch. A nil *Metrics is valid and records nothing, so callers and
// tests can omit it.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the set of collectors registered by New.
type Metrics struct {
	deliveries    *prometheus.CounterVec
	deliveryTime  prometheus.Histogram
	batches       *prometheus.CounterVec
	slotMutations *prometheus.CounterVec
	loadedDays    prometheus.Gauge
}

// New creates and registers the collectors on reg (prometheus.DefaultRegisterer
// when nil) under namespace (default "sitecrew").
func New(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "sitecrew"
	}

	m := &Metrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "deliveries_total",
			Help:      "Notifier calls by outcome (sent, error, timeout).",
		}, []string{"outcome"}),
		deliveryTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "delivery_seconds",
			Help:      "Latency of individual notifier calls in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
		}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "batches_total",
			Help:      "Dispatch invocations by kind (batch, single, empty, unconfirmed).",
		}, []string{"kind"}),
		slotMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assignment",
			Name:      "slot_mutations_total",
			Help:      "SetSlot calls by result (changed, noop, rejected).",
		}, []string{"result"}),
		loadedDays: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dayscope",
			Name:      "loaded_days",
			Help:      "Number of day scopes currently held in memory.",
		}),
	}
	reg.MustRegister(m.deliveries, m.deliveryTime, m.batches, m.slotMutations, m.loadedDays)
	return m
}

// Delivery records one notifier call.
func (m *Metrics) Delivery(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(outcome).Inc()
	m.deliveryTime.Observe(took.Seconds())
}

// Batch records one dispatch invocation.
func (m *Metrics) Batch(kind string) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(kind).Inc()
}

// SlotMutation records one SetSlot outcome.
func (m *Metrics) SlotMutation(result string) {
	if m == nil {
		return
	}
	m.slotMutations.WithLabelValues(result).Inc()
}

// LoadedDays sets the number of resident day scopes.
func (m *Metrics) LoadedDays(n int) {
	if m == nil {
		return
	}
	m.loadedDays.Set(float64(n))
}
