// Package metrics exposes prometheus instrumentation for the triage
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "betterclaw_events_total",
			Help: "Total number of events processed by final decision",
		},
		[]string{"decision"},
	)

	JudgmentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "betterclaw_judgment_total",
			Help: "Total number of LLM judgment outcomes",
		},
		[]string{"outcome"}, // push, drop, fail_open
	)

	DeliveryFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "betterclaw_delivery_failures_total",
			Help: "Total number of failed agent delivery attempts",
		},
	)

	InsightsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "betterclaw_insights_total",
			Help: "Total number of proactive insights fired by trigger",
		},
		[]string{"trigger"},
	)

	PushesToday = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "betterclaw_pushes_today",
			Help: "Pushes forwarded to the agent since the last UTC day rollover",
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "betterclaw_queue_depth",
			Help: "Events waiting in the pipeline serialization lane",
		},
	)
)

// RecordDecision records the final decision of one processed event.
func RecordDecision(decision string) {
	EventsTotal.WithLabelValues(decision).Inc()
}

// RecordJudgment records a resolved (or failed-open) judgment call.
func RecordJudgment(outcome string) {
	JudgmentTotal.WithLabelValues(outcome).Inc()
}

// RecordDeliveryFailure records a failed outbound delivery.
func RecordDeliveryFailure() {
	DeliveryFailuresTotal.Inc()
}

// RecordInsight records a proactive insight delivery attempt.
func RecordInsight(triggerID string) {
	InsightsTotal.WithLabelValues(triggerID).Inc()
}
