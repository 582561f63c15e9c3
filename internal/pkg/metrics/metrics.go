// Package metrics holds the Prometheus collectors updated by the intake pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_order_lookups_total",
			Help: "Order lookups by outcome",
		},
		[]string{"result"},
	)

	PhotosTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_photos_total",
			Help: "Processed uploads by outcome",
		},
		[]string{"outcome"},
	)

	QualityWarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_quality_warnings_total",
			Help: "Advisory quality warnings by kind",
		},
		[]string{"kind"},
	)

	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_sessions_total",
			Help: "Session lifecycle events",
		},
		[]string{"event"},
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "intake_photo_pipeline_seconds",
			Help:    "Duration of the accept-photo pipeline",
			Buckets: prometheus.DefBuckets,
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "intake_active_sessions",
			Help: "Sessions bound to an order",
		},
	)

	AcceptedPhotos = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "intake_accepted_photos",
			Help: "Accepted photos across active sessions, counted from disk",
		},
	)

	StalePartsRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intake_stale_parts_removed_total",
			Help: "Abandoned partial downloads removed by the reconciler",
		},
	)
)
