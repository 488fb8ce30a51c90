package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bbg_requests_total",
			Help: "Total number of gateway requests",
		},
		[]string{"route", "code", "method"},
	)

	BackendCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bbg_backend_call_seconds",
			Help:    "Duration of calls to the auth, inventory, trip and booking services",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "op", "outcome"},
	)

	WorkflowTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bbg_workflow_transitions_total",
			Help: "Booking workflow transitions by step and result",
		},
		[]string{"step", "result"},
	)

	EventPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bbg_event_publish_failures_total",
			Help: "Workflow events that could not be delivered to a sink",
		},
		[]string{"sink"},
	)

	HoldsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bbg_holds_swept_total",
			Help: "Expired holds released by the sweeper",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bbg_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
