// Package metrics exposes the Prometheus surface for the graph service,
// grouped per subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every counter, histogram, and gauge this process exports.
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	XidAllocations      prometheus.Counter
	ActiveTxns          prometheus.Gauge
	SchemaCacheHits     prometheus.Counter
	SchemaCacheMiss     prometheus.Counter
	CycleCheckDuration  prometheus.Histogram
	RateLimitRejections prometheus.Counter
	ResourceExhausted   prometheus.Counter
}

// New registers and returns the process-wide metric set.
func New() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vertexdb",
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Total RPCs handled, by method and status code.",
		}, []string{"method", "code"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vertexdb",
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "RPC handler latency in seconds, by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		XidAllocations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "vertexdb",
			Subsystem: "oracle",
			Name:      "xid_allocations_total",
			Help:      "Total transaction ids allocated.",
		}),
		ActiveTxns: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "vertexdb",
			Subsystem: "storage",
			Name:      "active_transactions",
			Help:      "Number of transactions currently in flight.",
		}),
		SchemaCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "vertexdb",
			Subsystem: "schema",
			Name:      "cache_hits_total",
			Help:      "Schema registry cache hits.",
		}),
		SchemaCacheMiss: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "vertexdb",
			Subsystem: "schema",
			Name:      "cache_misses_total",
			Help:      "Schema registry cache misses.",
		}),
		CycleCheckDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vertexdb",
			Subsystem: "edges",
			Name:      "cycle_check_duration_seconds",
			Help:      "Duration of the DAG cycle-check BFS.",
			Buckets:   prometheus.DefBuckets,
		}),
		RateLimitRejections: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "vertexdb",
			Subsystem: "transport",
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the process-wide rate limiter.",
		}),
		ResourceExhausted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "vertexdb",
			Subsystem: "storage",
			Name:      "resource_exhausted_total",
			Help:      "Transactions rejected because the connection pool was saturated.",
		}),
	}
}
