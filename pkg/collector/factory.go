package collector

import (
	"github.com/hwstack/hwhealth-exporter/pkg/collector/bmc"
	"github.com/hwstack/hwhealth-exporter/pkg/collector/raid"
	"github.com/hwstack/hwhealth-exporter/pkg/collector/smart"
	"github.com/hwstack/hwhealth-exporter/pkg/config"
	"github.com/hwstack/hwhealth-exporter/pkg/toolexec"
)

// DefaultFactory creates collectors wired to real external tools.
type DefaultFactory struct {
	cfg    *config.Config
	runner toolexec.Runner
}

// NewDefaultFactory creates a factory using the configured tool paths and
// the given runner for process invocation.
func NewDefaultFactory(cfg *config.Config, runner toolexec.Runner) *DefaultFactory {
	return &DefaultFactory{cfg: cfg, runner: runner}
}

// CreateSMARTCollector creates the disk SMART collector.
func (f *DefaultFactory) CreateSMARTCollector() Collector {
	return smart.New(f.cfg.SmartctlPath, f.runner)
}

// CreateMegaRAIDCollector creates the MegaRAID controller collector.
func (f *DefaultFactory) CreateMegaRAIDCollector() Collector {
	return raid.NewMega(f.cfg.MegaCLIPath, f.runner)
}

// CreatePercRAIDCollector creates the Dell PERC controller collector.
func (f *DefaultFactory) CreatePercRAIDCollector() Collector {
	return raid.NewPerc(f.cfg.PercCLIPath, f.runner)
}

// CreateBMCSELCollector creates the BMC system event log collector.
func (f *DefaultFactory) CreateBMCSELCollector() Collector {
	return bmc.New(f.cfg.IpmitoolPath, f.runner)
}
