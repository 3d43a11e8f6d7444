// Package collector defines the hardware subsystem collector contract and
// the registry of enabled collectors.
//
// The set of subsystems is fixed at compile time: disk SMART, MegaRAID,
// PercRAID, and the BMC system event log. Which of them run is decided
// once at startup from configuration and never changes afterwards.
package collector

import (
	"context"

	"github.com/hwstack/hwhealth-exporter/pkg/config"
	"github.com/hwstack/hwhealth-exporter/pkg/errors"
	"github.com/hwstack/hwhealth-exporter/pkg/metric"
)

// Collector produces metric samples for one hardware subsystem.
// Implementations return partial samples alongside a non-nil error when
// only part of the subsystem could be read.
type Collector interface {
	// Name identifies the subsystem ("smart", "megaraid", "percraid", "bmc").
	Name() string

	// Collect gathers samples. It must honor ctx and return within the
	// configured tool timeout.
	Collect(ctx context.Context) ([]metric.Sample, error)
}

// Factory creates collectors with their dependencies.
// This interface enables dependency injection for testing.
type Factory interface {
	CreateSMARTCollector() Collector
	CreateMegaRAIDCollector() Collector
	CreatePercRAIDCollector() Collector
	CreateBMCSELCollector() Collector
}

// Active returns the enabled collector set for the given configuration.
// It re-validates RAID mutual exclusivity so a caller that skipped
// config.Validate still fails at construction time, not at scrape time.
// The returned slice is never mutated afterwards and is safe to share
// across concurrent scrapes.
func Active(cfg *config.Config, f Factory) ([]Collector, error) {
	if cfg.MegaRAIDEnabled && cfg.PercRAIDEnabled {
		return nil, errors.New(errors.ErrCodeConfiguration,
			"MegaRAID and PercRAID collectors are mutually exclusive")
	}

	var active []Collector
	if cfg.SMARTEnabled {
		active = append(active, f.CreateSMARTCollector())
	}
	if cfg.MegaRAIDEnabled {
		active = append(active, f.CreateMegaRAIDCollector())
	}
	if cfg.PercRAIDEnabled {
		active = append(active, f.CreatePercRAIDCollector())
	}
	if cfg.BMCSELEnabled {
		active = append(active, f.CreateBMCSELCollector())
	}

	return active, nil
}
