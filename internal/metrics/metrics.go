// Package metrics exposes Prometheus instrumentation for the alert engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AlertsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowalert_alerts_generated_total",
			Help: "Total alerts generated, by rule code",
		},
		[]string{"rule"},
	)

	RuleEvaluationPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snowalert_rule_evaluation_panics_total",
			Help: "Total rule evaluations recovered from a panic",
		},
	)

	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowalert_deliveries_total",
			Help: "Total delivery attempts to the integration endpoint, by outcome",
		},
		[]string{"outcome"},
	)

	DeliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "snowalert_delivery_duration_seconds",
			Help:    "End-to-end delivery duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	TokenRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowalert_token_requests_total",
			Help: "Total OAuth2 token requests, by result",
		},
		[]string{"result"},
	)
)

// Delivery outcome label values.
const (
	OutcomeSuccess     = "success"
	OutcomeAuthFailed  = "auth_failed"
	OutcomeClientError = "client_error"
	OutcomeServerError = "server_error"
	OutcomeNetwork     = "network_error"
	OutcomeSkipped     = "skipped_empty"
)
