package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesRequested = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "rides_requested_total", Help: "Total ride requests created"})
	RidesAccepted  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "rides_accepted_total", Help: "Total rides accepted by a driver"})
	RidesCompleted = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "rides_completed_total", Help: "Total rides completed"})
	RidesCancelled = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "rides_cancelled_total", Help: "Total rides cancelled"})

	// AcceptConflicts counts losing acceptance attempts: the ride was
	// gone or another driver won the compare-and-set.
	AcceptConflicts = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "accept_conflicts_total", Help: "Accept attempts that lost the conditional update"})

	LocationUpdates = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "location_updates_total", Help: "Total location upserts"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
