package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DispatchTotal counts dispatched requests by terminal status
	// (ok, validation, auth, connection, execution).
	DispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "querygate_dispatch_requests_total",
		Help: "Dispatched requests by outcome.",
	}, []string{"status"})

	// QueryDuration observes wall-clock query execution time.
	QueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "querygate_query_duration_seconds",
		Help:    "SQL execution latency for dispatched and previewed queries.",
		Buckets: prometheus.DefBuckets,
	})

	// PoolAcquireTimeouts counts bounded-blocking pool acquisitions that
	// timed out.
	PoolAcquireTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "querygate_pool_acquire_timeouts_total",
		Help: "Connection acquisitions that hit the acquire timeout.",
	})

	// RouteTableSize tracks the number of live deployed routes.
	RouteTableSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "querygate_route_table_size",
		Help: "Deployed mappings in the live route table.",
	})
)
