package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics tracks the offline queue. A nil receiver is a no-op so wiring
// stays optional in tests.
type SyncMetrics struct {
	EnqueuedTotal  prometheus.Counter
	SubmittedTotal prometheus.Counter
	RetriedTotal   prometheus.Counter
	FailedTotal    prometheus.Counter
	PendingGauge   prometheus.Gauge
	DrainDuration  prometheus.Histogram
}

func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	m := &SyncMetrics{
		EnqueuedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "herbtrace_sync_enqueued_total",
			Help: "Total number of submissions queued for the authoritative store",
		}),
		SubmittedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "herbtrace_sync_submitted_total",
			Help: "Total number of queue items transmitted successfully",
		}),
		RetriedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "herbtrace_sync_retried_total",
			Help: "Total number of transmission attempts that were rescheduled",
		}),
		FailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "herbtrace_sync_failed_total",
			Help: "Total number of queue items that exhausted their retry budget",
		}),
		PendingGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "herbtrace_sync_pending",
			Help: "Current number of pending queue items",
		}),
		DrainDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "herbtrace_sync_drain_duration_seconds",
			Help:    "Wall time of one drain pass over the queue",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.EnqueuedTotal,
		m.SubmittedTotal,
		m.RetriedTotal,
		m.FailedTotal,
		m.PendingGauge,
		m.DrainDuration,
	)
	return m
}

func (m *SyncMetrics) Enqueued() {
	if m != nil {
		m.EnqueuedTotal.Inc()
	}
}

func (m *SyncMetrics) Submitted() {
	if m != nil {
		m.SubmittedTotal.Inc()
	}
}

func (m *SyncMetrics) Retried() {
	if m != nil {
		m.RetriedTotal.Inc()
	}
}

func (m *SyncMetrics) Failed() {
	if m != nil {
		m.FailedTotal.Inc()
	}
}

func (m *SyncMetrics) SetPending(n float64) {
	if m != nil {
		m.PendingGauge.Set(n)
	}
}

func (m *SyncMetrics) ObserveDrain(seconds float64) {
	if m != nil {
		m.DrainDuration.Observe(seconds)
	}
}
