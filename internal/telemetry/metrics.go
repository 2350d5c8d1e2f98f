package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPRequestDuration tracks the thin admin HTTP surface's request latency.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "mcp",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)

// RequestsTotal counts every handled HTTP request.
var RequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "mcp",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	},
	[]string{"method", "path", "status"},
)

// ExternalCallErrorsTotal counts adapter call failures by target and kind
// (spec §4.9).
var ExternalCallErrorsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "mcp",
		Subsystem: "external",
		Name:      "call_errors_total",
		Help:      "Total number of external adapter call errors by target and kind.",
	},
	[]string{"target", "kind"},
)

// ExternalCallDuration tracks adapter call latency.
var ExternalCallDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "mcp",
		Subsystem: "external",
		Name:      "call_duration_seconds",
		Help:      "External adapter call duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"target"},
)

// CircuitBreakerState is a gauge per target: 0=closed, 1=open, 2=half_open.
var CircuitBreakerState = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "mcp",
		Subsystem: "breaker",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state per target (0=closed, 1=open, 2=half_open).",
	},
	[]string{"target"},
)

// CacheHitsTotal / CacheMissesTotal are labelled by cache name (retrieval,
// answer).
var CacheHitsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "mcp",
		Name:      "cache_hits_total",
		Help:      "Total number of cache hits by cache name.",
	},
	[]string{"cache"},
)

var CacheMissesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "mcp",
		Name:      "cache_misses_total",
		Help:      "Total number of cache misses by cache name.",
	},
	[]string{"cache"},
)

// ReportsGeneratedTotal is labelled by outcome (succeeded, failed).
var ReportsGeneratedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "mcp",
		Subsystem: "reports",
		Name:      "generated_total",
		Help:      "Total number of daily reports generated by outcome.",
	},
	[]string{"outcome"},
)

// DecisionsTotal is labelled by decision type and resulting status.
var DecisionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "mcp",
		Subsystem: "decisions",
		Name:      "total",
		Help:      "Total number of decisions produced by type and status.",
	},
	[]string{"type", "status"},
)

// IngestionJobsTotal is labelled by outcome.
var IngestionJobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "mcp",
		Subsystem: "ingestion",
		Name:      "jobs_total",
		Help:      "Total number of ingestion jobs by outcome.",
	},
	[]string{"outcome"},
)

// SchedulerRunsTotal is labelled by outcome (completed, cancelled, error).
var SchedulerRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "mcp",
		Subsystem: "scheduler",
		Name:      "runs_total",
		Help:      "Total number of scheduler trigger passes by outcome.",
	},
	[]string{"outcome"},
)

// All returns MCP-specific collectors for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestDuration,
		RequestsTotal,
		ExternalCallErrorsTotal,
		ExternalCallDuration,
		CircuitBreakerState,
		CacheHitsTotal,
		CacheMissesTotal,
		ReportsGeneratedTotal,
		DecisionsTotal,
		IngestionJobsTotal,
		SchedulerRunsTotal,
	}
}

// NewMetricsRegistry creates a Prometheus registry with Go/process
// collectors and all MCP-specific series registered up front.
func NewMetricsRegistry(extra ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	for _, c := range extra {
		reg.MustRegister(c)
	}
	return reg
}
