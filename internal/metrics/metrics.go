package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	payloads     *prometheus.CounterVec
	records      *prometheus.CounterVec
	storeErrors  prometheus.Counter
	storeLatency prometheus.Histogram
	sinkFailures *prometheus.CounterVec
	notified     *prometheus.CounterVec
	queueDepth   prometheus.Gauge
	dependencyUp *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		payloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cgm_payloads_total",
			Help: "Inbound payloads by outcome (gated, rejected, queued, dropped)",
		}, []string{"outcome"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cgm_records_total",
			Help: "Decoded records by store result (inserted, duplicate)",
		}, []string{"result"}),
		storeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cgm_store_errors_total",
			Help: "Upsert transactions that failed to commit",
		}),
		storeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cgm_store_upsert_seconds",
			Help:    "Upsert transaction latency",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		sinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cgm_sink_failures_total",
			Help: "Failed sink invocations by sink",
		}, []string{"sink"}),
		notified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cgm_sink_notifications_total",
			Help: "Successful sink invocations by sink",
		}, []string{"sink"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cgm_queue_depth",
			Help: "Accepted records waiting for a worker",
		}),
		dependencyUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cgm_dependency_up",
			Help: "Last health check result per dependency (1 = up)",
		}, []string{"name"}),
	}

	if reg != nil {
		reg.MustRegister(m.payloads, m.records, m.storeErrors, m.storeLatency, m.sinkFailures, m.notified, m.queueDepth, m.dependencyUp)
	}
	return m
}

// Payload counts one payload outcome.
func (m *Metrics) Payload(outcome string) {
	if m == nil {
		return
	}
	m.payloads.WithLabelValues(outcome).Inc()
}

// Stored records the result of one upsert.
func (m *Metrics) Stored(inserted, skipped int, d time.Duration) {
	if m == nil {
		return
	}
	m.records.WithLabelValues("inserted").Add(float64(inserted))
	m.records.WithLabelValues("duplicate").Add(float64(skipped))
	m.storeLatency.Observe(d.Seconds())
}

// StoreFailed records a failed upsert.
func (m *Metrics) StoreFailed(d time.Duration) {
	if m == nil {
		return
	}
	m.storeErrors.Inc()
	m.storeLatency.Observe(d.Seconds())
}

// SinkResult records one sink invocation.
func (m *Metrics) SinkResult(sink string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.sinkFailures.WithLabelValues(sink).Inc()
		return
	}
	m.notified.WithLabelValues(sink).Inc()
}

// QueueDepth sets the current queue depth.
func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// DependencyUp records the latest health check result for a dependency.
func (m *Metrics) DependencyUp(name string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.dependencyUp.WithLabelValues(name).Set(v)
}
