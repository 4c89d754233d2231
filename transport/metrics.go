package transport

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics, registered on the default registry. The watch daemon
// exposes them via /metrics; embedding programs can scrape the default
// registry the usual way.
var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "createathon",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "API requests by method and HTTP status code.",
		},
		[]string{"method", "code"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "createathon",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "API request latency by method.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	refreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "createathon",
			Subsystem: "client",
			Name:      "token_refresh_total",
			Help:      "Token refresh attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

const (
	refreshOutcomeSuccess   = "success"
	refreshOutcomeCoalesced = "coalesced"
	refreshOutcomeFailed    = "failed"
)

func observeRequest(method string, status int, seconds float64) {
	requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(method).Observe(seconds)
}
