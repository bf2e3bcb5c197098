package snapshotter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	iterationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cladm_snapshot_iterations_total",
			Help: "Snapshot envelopes persisted, by monitor family and envelope status",
		},
		[]string{"family", "status"}, // status: SUCCESS or FAILURE
	)

	writeFailureTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cladm_snapshot_write_failures_total",
			Help: "Snapshot files that could not be written to the run directory",
		},
		[]string{"family"},
	)

	snapshotDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cladm_snapshot_duration_seconds",
			Help:    "Time taken by individual snapshot functions",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"family", "kind"},
	)
)
