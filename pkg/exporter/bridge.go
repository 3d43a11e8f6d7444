package exporter

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hwstack/hwhealth-exporter/pkg/metric"
	"github.com/hwstack/hwhealth-exporter/pkg/snapshot"
)

// Bridge adapts the snapshot builder to the prometheus.Collector contract.
// Every scrape of /metrics triggers one fresh collection pass, so the
// exposed values are never stale and no background cache is needed.
type Bridge struct {
	builder *snapshot.Builder
}

// NewBridge creates a bridge over the given builder.
func NewBridge(builder *snapshot.Builder) *Bridge {
	return &Bridge{builder: builder}
}

// Describe is intentionally empty, making this an unchecked collector.
// The metric set varies with the hardware present, so descriptors cannot
// be enumerated up front.
func (b *Bridge) Describe(_ chan<- *prometheus.Desc) {}

// Collect builds a snapshot and converts every sample to a const metric.
// Collector failures inside the snapshot are already isolated and
// reported through the per-collector success markers, so the scrape
// itself succeeds whenever at least the builder ran.
func (b *Bridge) Collect(ch chan<- prometheus.Metric) {
	snap, err := b.builder.Build(context.Background())
	if err != nil {
		slog.Error("snapshot build failed", slog.String("error", err.Error()))
		return
	}

	for _, s := range snap.Samples {
		emit(ch, s)
	}

	emit(ch, metric.Sample{
		Name:  "disk_exporter_last_update_time_seconds",
		Help:  "Unix timestamp of the most recent collection pass",
		Value: float64(snap.Taken.UnixNano()) / 1e9,
	})
}

func emit(ch chan<- prometheus.Metric, s metric.Sample) {
	desc := prometheus.NewDesc(s.Name, help(s), s.LabelKeys(), nil)

	m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, s.Value, s.LabelValues()...)
	if err != nil {
		slog.Warn("skipping invalid sample",
			slog.String("name", s.Name),
			slog.String("error", err.Error()))
		return
	}

	ch <- m
}

func help(s metric.Sample) string {
	if s.Help != "" {
		return s.Help
	}
	return "Hardware health metric " + s.Name
}
