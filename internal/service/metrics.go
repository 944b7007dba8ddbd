package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	postersSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchposter_gallery_saved_total",
			Help: "Total number of saved poster records.",
		},
		[]string{"mode"},
	)
	listFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matchposter_gallery_list_fallback_total",
			Help: "Total number of list queries served by the full-scan fallback.",
		},
	)
	blobDeleteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matchposter_gallery_blob_delete_failures_total",
			Help: "Total number of blob deletes that failed for reasons other than a missing object.",
		},
	)
	postersSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matchposter_gallery_swept_total",
			Help: "Total number of expired poster records removed by the retention sweep.",
		},
	)
	composeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "matchposter_compose_duration_seconds",
			Help:    "Poster composition latency, including background resolution.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)
)
