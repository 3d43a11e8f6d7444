package snapshot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	snapshotDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "disk_exporter_snapshot_duration_seconds",
			Help:    "Time taken to collect a complete hardware health snapshot",
			Buckets: prometheus.DefBuckets,
		},
	)

	snapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "disk_exporter_snapshots_total",
			Help: "Total number of snapshot collection passes by status",
		},
		[]string{"status"},
	)

	collectorRuntime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "disk_exporter_collector_runtime_seconds",
			Help:    "Per-collector collection time",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collector"},
	)

	snapshotSamples = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "disk_exporter_snapshot_samples",
			Help: "Number of samples in the most recent snapshot",
		},
	)
)
