package generator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchposter_generator_requests_total",
			Help: "Total number of dispatches to the image service, partitioned by outcome.",
		},
		[]string{"provider", "outcome"}, // outcome: success / rate_limited / content_rejected / error
	)
	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchposter_generator_retries_total",
			Help: "Total number of rate-limit retries.",
		},
		[]string{"provider", "source"}, // source: hint / backoff
	)
)
