//nolint:gochecknoglobals // prometheus metrics
package metrics

import (
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DevicesEnumerated = promauto.NewGaugeVec(
		prom.GaugeOpts{
			Name: "faros_devices_enumerated",
			Help: "Devices classified per kind in the last discovery run (Gauge).",
		},
		[]string{"kind"},
	)

	FetchFailuresTotal = promauto.NewCounter(
		prom.CounterOpts{
			Name: "faros_status_fetch_failures_total",
			Help: "Per-device status fetches that failed and were excluded (Counter).",
		},
	)

	FetchesTotal = promauto.NewCounter(
		prom.CounterOpts{
			Name: "faros_status_fetches_total",
			Help: "Per-device status fetches issued (Counter).",
		},
	)

	ValidatedChains = promauto.NewGauge(
		prom.GaugeOpts{
			Name: "faros_validated_chains",
			Help: "Validated daisy-chains in the last discovery run (Gauge).",
		},
	)

	DegradedGroups = promauto.NewGauge(
		prom.GaugeOpts{
			Name: "faros_degraded_groups",
			Help: "Chain groups that failed head validation in the last run (Gauge).",
		},
	)

	ReconcileDuration = promauto.NewHistogram(
		prom.HistogramOpts{
			Name:    "faros_reconcile_duration_seconds",
			Help:    "Wall time of topology reconciliation (Histogram).",
			Buckets: prom.DefBuckets,
		},
	)
)
