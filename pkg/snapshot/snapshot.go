// Package snapshot assembles one point-in-time view of hardware health by
// fanning out to all enabled collectors in parallel.
package snapshot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hwstack/hwhealth-exporter/pkg/collector"
	"github.com/hwstack/hwhealth-exporter/pkg/metric"
)

// Snapshot is the result of one collection pass.
type Snapshot struct {
	// Samples holds every collected sample plus the per-collector success
	// and duration markers. Sample keys are unique within a snapshot.
	Samples []metric.Sample

	// Failures maps collector name to the error it returned, if any.
	// A collector may appear here and still have contributed samples.
	Failures map[string]error

	// Taken is when the collection pass started.
	Taken time.Time
}

// OK reports whether every collector succeeded.
func (s *Snapshot) OK() bool {
	return len(s.Failures) == 0
}

// Builder runs the enabled collectors and assembles snapshots.
type Builder struct {
	collectors []collector.Collector
}

// NewBuilder creates a builder over the given collector set.
func NewBuilder(collectors []collector.Collector) *Builder {
	return &Builder{collectors: collectors}
}

// Build runs every collector in parallel and returns the combined
// snapshot. A failing collector never blocks its siblings: partial
// samples are kept, the failure is recorded, and the per-collector
// success marker reports 0. Build itself only fails if ctx is done.
func (b *Builder) Build(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		snapshotDuration.Observe(time.Since(start).Seconds())
	}()

	snap := &Snapshot{
		Failures: make(map[string]error),
		Taken:    start,
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, c := range b.collectors {
		g.Go(func() error {
			collectorStart := time.Now()
			samples, err := c.Collect(gctx)
			elapsed := time.Since(collectorStart)

			collectorRuntime.WithLabelValues(c.Name()).Observe(elapsed.Seconds())

			mu.Lock()
			defer mu.Unlock()

			// Partial samples are kept even on error.
			snap.Samples = append(snap.Samples, samples...)
			snap.Samples = append(snap.Samples,
				metric.New("disk_exporter_collector_success", boolValue(err == nil),
					map[string]string{"collector": c.Name()}),
				metric.New("disk_exporter_collector_duration_seconds", elapsed.Seconds(),
					map[string]string{"collector": c.Name()}),
			)

			if err != nil {
				slog.Error("collector failed",
					slog.String("collector", c.Name()),
					slog.String("error", err.Error()))
				snap.Failures[c.Name()] = err
			} else {
				slog.Debug("collector done",
					slog.String("collector", c.Name()),
					slog.Int("samples", len(samples)),
					slog.Duration("elapsed", elapsed))
			}

			// Failures are isolated per collector; never cancel siblings.
			return nil
		})
	}

	// Only a ctx error can surface here since goroutines always return nil.
	if err := g.Wait(); err != nil {
		snapshotsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	snap.Samples = dedupe(snap.Samples)

	if snap.OK() {
		snapshotsTotal.WithLabelValues("success").Inc()
	} else {
		snapshotsTotal.WithLabelValues("partial").Inc()
	}
	snapshotSamples.Set(float64(len(snap.Samples)))

	return snap, nil
}

// dedupe drops samples whose key repeats, keeping the first occurrence.
// Duplicates indicate a collector bug and are logged.
func dedupe(samples []metric.Sample) []metric.Sample {
	seen := make(map[string]struct{}, len(samples))
	out := samples[:0]
	for _, s := range samples {
		key := s.Key()
		if _, dup := seen[key]; dup {
			slog.Warn("dropping duplicate sample", slog.String("key", key))
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
