package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arrow3_api_requests_total",
			Help: "Total number of API requests by method, resource, and status",
		},
		[]string{"method", "resource", "status"},
	)

	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arrow3_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "resource"},
	)

	refreshRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arrow3_api_refresh_retries_total",
			Help: "Total number of transparent refresh-and-retry cycles after a 401",
		},
	)
)
