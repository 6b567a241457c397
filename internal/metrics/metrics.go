// Package metrics holds the Prometheus collectors for outbox dispatch and
// distance fan-out. Every method is safe on a nil receiver.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics records dispatcher outcomes per aggregate type.
type OutboxMetrics struct {
	published   *prometheus.CounterVec
	failed      *prometheus.CounterVec
	dead        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	deadRecords prometheus.Gauge
}

// NewOutboxMetrics registers the dispatcher metrics on reg.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_published_total",
		Help: "Outbox records published to the broker.",
	}, []string{"aggregate_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_failed_total",
		Help: "Failed outbox dispatch attempts.",
	}, []string{"aggregate_type"})
	dead := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_dead_total",
		Help: "Outbox records that reached the retry ceiling.",
	}, []string{"aggregate_type"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_publish_duration_seconds",
		Help:    "Broker publish latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"aggregate_type"})
	deadRecords := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_dead_records",
		Help: "Outbox records currently parked at the retry ceiling.",
	})
	reg.MustRegister(published, failed, dead, duration, deadRecords)
	return &OutboxMetrics{
		published:   published,
		failed:      failed,
		dead:        dead,
		duration:    duration,
		deadRecords: deadRecords,
	}
}

func (m *OutboxMetrics) IncPublished(aggregateType string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(aggregateType)).Inc()
}

func (m *OutboxMetrics) IncFailed(aggregateType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(aggregateType)).Inc()
}

func (m *OutboxMetrics) IncDead(aggregateType string) {
	if m == nil || m.dead == nil {
		return
	}
	m.dead.WithLabelValues(normalizeLabel(aggregateType)).Inc()
}

// ObservePublish records how long one broker write took.
func (m *OutboxMetrics) ObservePublish(aggregateType string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(aggregateType)).Observe(d.Seconds())
}

// SetDeadRecords publishes the current dead-record count.
func (m *OutboxMetrics) SetDeadRecords(n int64) {
	if m == nil || m.deadRecords == nil {
		return
	}
	m.deadRecords.Set(float64(n))
}

// Pair kinds for FanoutMetrics.
const (
	PairSiteCounterpart = "site_counterpart"
	PairSiteFactory     = "site_factory"
)

// FanoutMetrics counts distance pairs written by the fan-out engine.
type FanoutMetrics struct {
	upserted *prometheus.CounterVec
}

// NewFanoutMetrics registers the fan-out metrics on reg.
func NewFanoutMetrics(reg prometheus.Registerer) *FanoutMetrics {
	if reg == nil {
		return &FanoutMetrics{}
	}
	upserted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "distance_pairs_upserted_total",
		Help: "Distance pairs created or recalculated.",
	}, []string{"pair"})
	reg.MustRegister(upserted)
	return &FanoutMetrics{upserted: upserted}
}

func (m *FanoutMetrics) IncUpserted(pair string) {
	if m == nil || m.upserted == nil {
		return
	}
	m.upserted.WithLabelValues(normalizeLabel(pair)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
