// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IntentsQueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nudge_intents_queued_total",
			Help: "Total number of notification intents queued by the scanner",
		},
		[]string{"type"},
	)

	ScanEntities = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nudge_scan_entities_total",
			Help: "Per-entity scan outcomes",
		},
		[]string{"outcome"},
	)

	DispatchResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nudge_dispatch_results_total",
			Help: "Dispatch outcomes per queue row",
		},
		[]string{"result"},
	)

	DeliveryEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nudge_delivery_events_total",
			Help: "Provider delivery events ingested",
		},
		[]string{"type", "matched"},
	)

	DraftsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nudge_drafts_expired_total",
			Help: "Stale email drafts expired by the janitor",
		},
	)

	SendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "nudge_send_duration_seconds",
			Help: "Duration of external send calls in seconds",
		},
	)
)
