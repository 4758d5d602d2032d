package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsCreated   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridebid", Name: "requests_created_total", Help: "Trip requests opened for bidding"})
	OffersSubmitted   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridebid", Name: "offers_submitted_total", Help: "Driver offers submitted"})
	OffersAccepted    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridebid", Name: "offers_accepted_total", Help: "Offers accepted by passengers"})
	AcceptConflicts   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridebid", Name: "accept_conflicts_total", Help: "Accept attempts lost to a concurrent settlement"})
	RequestsCancelled = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridebid", Name: "requests_cancelled_total", Help: "Trip requests cancelled"})
	TripsCompleted    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridebid", Name: "trips_completed_total", Help: "Trips completed and scored"})

	NegotiationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ridebid",
		Name:      "negotiation_duration_seconds",
		Help:      "Time from request creation to offer acceptance",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridebid", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ridebid",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
