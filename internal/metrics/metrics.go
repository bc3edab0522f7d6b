// Package metrics exposes the service's Prometheus instruments.
//
// All recording methods are safe on a nil *Metrics so components can run
// without instrumentation in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "groupcall"

type Metrics struct {
	registry *prometheus.Registry

	BroadcastDelivered  *prometheus.CounterVec
	BroadcastDropped    *prometheus.CounterVec
	Subscribers         prometheus.Gauge
	AdmissionOps        *prometheus.CounterVec
	UtterancesRecorded  prometheus.Counter
	EnqueueFailures     prometheus.Counter
	FeedbackPublished   prometheus.Counter
	CompletionRequests  *prometheus.CounterVec
	CompletionLatency   prometheus.Histogram
	ReportsGenerated    prometheus.Counter
	SweepRuns           prometheus.Counter
	SweepOutcomes       *prometheus.CounterVec
	AuditEntriesWritten *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		BroadcastDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_delivered_total",
			Help:      "Messages handed to subscriber buffers, by topic kind.",
		}, []string{"topic_kind"}),
		BroadcastDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_dropped_total",
			Help:      "Messages dropped because a subscriber buffer was full, by topic kind.",
		}, []string{"topic_kind"}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broadcast_clients",
			Help:      "Connected broadcast clients.",
		}),
		AdmissionOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_operations_total",
			Help:      "Session mutations, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		UtterancesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_recorded_total",
			Help:      "Transcriptions persisted.",
		}),
		EnqueueFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_enqueue_failures_total",
			Help:      "Utterances persisted but not handed to the feedback channel.",
		}),
		FeedbackPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_published_total",
			Help:      "AI_FEEDBACK events published.",
		}),
		CompletionRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_requests_total",
			Help:      "Text-completion calls, by result (ok, fallback).",
		}, []string{"result"}),
		CompletionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_duration_seconds",
			Help:      "Latency of upstream text-completion calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		ReportsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_generated_total",
			Help:      "Reports persisted, including session summaries.",
		}),
		SweepRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expiry_sweeps_total",
			Help:      "Completed expiry sweep passes.",
		}),
		SweepOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expiry_sessions_total",
			Help:      "Sessions handled by the expiry sweep, by outcome (deleted, completed, failed).",
		}, []string{"outcome"}),
		AuditEntriesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_entries_total",
			Help:      "Audit log writes, by action and outcome.",
		}, []string{"action", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.BroadcastDelivered,
		m.BroadcastDropped,
		m.Subscribers,
		m.AdmissionOps,
		m.UtterancesRecorded,
		m.EnqueueFailures,
		m.FeedbackPublished,
		m.CompletionRequests,
		m.CompletionLatency,
		m.ReportsGenerated,
		m.SweepRuns,
		m.SweepOutcomes,
		m.AuditEntriesWritten,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveBroadcast(topicKind string, delivered, dropped int) {
	if m == nil {
		return
	}
	m.BroadcastDelivered.WithLabelValues(topicKind).Add(float64(delivered))
	if dropped > 0 {
		m.BroadcastDropped.WithLabelValues(topicKind).Add(float64(dropped))
	}
}

func (m *Metrics) ClientConnected() {
	if m == nil {
		return
	}
	m.Subscribers.Inc()
}

func (m *Metrics) ClientDisconnected() {
	if m == nil {
		return
	}
	m.Subscribers.Dec()
}

func (m *Metrics) ObserveAdmission(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.AdmissionOps.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveUtterance() {
	if m == nil {
		return
	}
	m.UtterancesRecorded.Inc()
}

func (m *Metrics) ObserveEnqueueFailure() {
	if m == nil {
		return
	}
	m.EnqueueFailures.Inc()
}

func (m *Metrics) ObserveFeedback() {
	if m == nil {
		return
	}
	m.FeedbackPublished.Inc()
}

func (m *Metrics) ObserveCompletion(result string, seconds float64) {
	if m == nil {
		return
	}
	m.CompletionRequests.WithLabelValues(result).Inc()
	if seconds > 0 {
		m.CompletionLatency.Observe(seconds)
	}
}

func (m *Metrics) ObserveReports(n int) {
	if m == nil {
		return
	}
	m.ReportsGenerated.Add(float64(n))
}

func (m *Metrics) ObserveSweep() {
	if m == nil {
		return
	}
	m.SweepRuns.Inc()
}

func (m *Metrics) ObserveSweepOutcome(outcome string) {
	if m == nil {
		return
	}
	m.SweepOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveAudit(action string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.AuditEntriesWritten.WithLabelValues(action, outcome).Inc()
}
