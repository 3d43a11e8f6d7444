// Package exporter wires collectors, the snapshot builder, and the HTTP
// server into the running exporter process.
package exporter

import (
	"context"
	"io"
	"log/slog"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
	"golang.org/x/sync/errgroup"

	"github.com/hwstack/hwhealth-exporter/pkg/collector"
	"github.com/hwstack/hwhealth-exporter/pkg/config"
	"github.com/hwstack/hwhealth-exporter/pkg/errors"
	"github.com/hwstack/hwhealth-exporter/pkg/server"
	"github.com/hwstack/hwhealth-exporter/pkg/snapshot"
	"github.com/hwstack/hwhealth-exporter/pkg/toolexec"
)

// build constructs the collection pipeline shared by Serve and CollectOnce:
// runner, enabled collectors, builder, and the hardware metric registry.
func build(cfg *config.Config) (*prometheus.Registry, []collector.Collector, error) {
	runner := &toolexec.ExecRunner{Timeout: cfg.CollectTimeout}

	collectors, err := collector.Active(cfg, collector.NewDefaultFactory(cfg, runner))
	if err != nil {
		return nil, nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(NewBridge(snapshot.NewBuilder(collectors)))

	return registry, collectors, nil
}

// Serve runs the exporter until ctx is canceled: the HTTP server on the
// configured port and, when a textfile path is set, the periodic textfile
// writer. Readiness is signaled to systemd once the listener is up.
func Serve(ctx context.Context, cfg *config.Config, name, version string) error {
	registry, collectors, err := build(cfg)
	if err != nil {
		return err
	}

	if len(collectors) == 0 {
		return errors.New(errors.ErrCodeConfiguration, "no collectors enabled")
	}

	for _, c := range collectors {
		slog.Info("collector enabled", slog.String("collector", c.Name()))
	}

	// Hardware metrics plus the exporter's own promauto self-metrics.
	gatherers := prometheus.Gatherers{registry, prometheus.DefaultGatherer}

	handler := promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
		// Each scrape shells out to vendor tools; never run them twice
		// concurrently for competing scrapers.
		MaxRequestsInFlight: 1,
	})

	srv := server.New(server.NewConfig(cfg, name, version), handler)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(gctx)
	})

	if cfg.TextfilePath != "" {
		w := NewTextfileWriter(gatherers, cfg.TextfilePath, cfg.RefreshInterval)
		g.Go(func() error {
			err := w.Run(gctx)
			if err == context.Canceled {
				return nil
			}
			return err
		})
		slog.Info("textfile writer enabled",
			slog.String("path", cfg.TextfilePath),
			slog.Duration("interval", cfg.RefreshInterval))
	}

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		slog.Warn("systemd notify failed", slog.String("error", err.Error()))
	} else if sent {
		slog.Debug("systemd readiness signaled")
	}

	err = g.Wait()

	if _, nerr := daemon.SdNotify(false, daemon.SdNotifyStopping); nerr != nil {
		slog.Warn("systemd notify failed", slog.String("error", nerr.Error()))
	}

	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// CollectOnce performs a single collection pass and renders the hardware
// metrics in Prometheus text exposition format to w. Used by the one-shot
// CLI command for debugging a host without standing up the server.
func CollectOnce(ctx context.Context, cfg *config.Config, w io.Writer) error {
	registry, collectors, err := build(cfg)
	if err != nil {
		return err
	}

	if len(collectors) == 0 {
		return errors.New(errors.ErrCodeConfiguration, "no collectors enabled")
	}

	// Gathering drives the bridge, which builds one snapshot.
	mfs, err := registry.Gather()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "metric gather failed", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, "failed to render metric family", err)
		}
	}

	return nil
}
