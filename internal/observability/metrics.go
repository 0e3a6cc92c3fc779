package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "claims_total", Help: "Claim attempts by outcome"},
		[]string{"result"},
	)
	RequestsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "requests_created_total", Help: "Trip requests created"},
	)
	TripsStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "trips_started_total", Help: "Trips started"},
	)
	TripsCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "trips_completed_total", Help: "Trips completed"},
	)
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "notifications_total", Help: "Notification deliveries by sink and outcome"},
		[]string{"sink", "result"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
