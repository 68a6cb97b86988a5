package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paperless_ai_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// ShareOperations counts sharing engine operations by resource kind,
	// operation (list|create|update|delete) and result (ok|denied|error).
	ShareOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paperless_ai_share_operations_total",
			Help: "Total number of sharing operations",
		},
		[]string{"kind", "operation", "result"},
	)

	// InstanceProbes counts Paperless instance reachability probes by outcome.
	InstanceProbes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paperless_ai_instance_probes_total",
			Help: "Total number of Paperless instance reachability probes",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paperless_ai_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
