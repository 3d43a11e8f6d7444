package exporter

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/hwstack/hwhealth-exporter/pkg/errors"
)

// TextfileWriter periodically renders the hardware registry in Prometheus
// text exposition format to a file, for hosts scraped through the
// node_exporter textfile collector instead of this exporter's own port.
type TextfileWriter struct {
	gatherer prometheus.Gatherer
	path     string
	interval time.Duration
}

// NewTextfileWriter creates a writer that renders gatherer to path every
// interval.
func NewTextfileWriter(gatherer prometheus.Gatherer, path string, interval time.Duration) *TextfileWriter {
	return &TextfileWriter{gatherer: gatherer, path: path, interval: interval}
}

// Run writes once immediately, then on every interval tick until ctx is
// done. Write failures are logged and retried on the next tick; they
// never terminate the exporter.
func (w *TextfileWriter) Run(ctx context.Context) error {
	if err := w.write(); err != nil {
		slog.Error("textfile write failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.write(); err != nil {
				slog.Error("textfile write failed", slog.String("error", err.Error()))
			}
		}
	}
}

// write renders one gather pass atomically: the output lands in a temp
// file first so a concurrent textfile-collector scrape never sees a
// partial document.
func (w *TextfileWriter) write() error {
	mfs, err := w.gatherer.Gather()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "metric gather failed", err)
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "failed to create textfile directory", err)
	}

	tmp := w.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "failed to create textfile", err)
	}

	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(f, mf); err != nil {
			f.Close()
			os.Remove(tmp)
			return errors.Wrap(errors.ErrCodeInternal, "failed to render metric family", err)
		}
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrap(errors.ErrCodeInternal, "failed to close textfile", err)
	}

	if err := os.Rename(tmp, w.path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(errors.ErrCodeInternal, "failed to replace textfile", err)
	}

	slog.Debug("textfile written", slog.String("path", w.path))
	return nil
}
