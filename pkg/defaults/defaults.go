// Package defaults provides centralized configuration constants for the
// hardware health exporter.
//
// Centralizing timeout and port values here keeps collector, server, and
// configuration code consistent and makes tuning easier.
package defaults

import "time"

// Exporter network defaults.
const (
	// ExporterAddress is the default listen address.
	ExporterAddress = "0.0.0.0"

	// ExporterPort is the default listen port for the metrics endpoint.
	ExporterPort = 8101
)

// Collector timeouts and intervals.
const (
	// CollectTimeout bounds a single external tool invocation. Vendor RAID
	// tools are known to stall; the invoker kills the child at this limit.
	CollectTimeout = 30 * time.Second

	// RefreshInterval is how often the textfile writer re-collects and
	// rewrites the exposition file.
	RefreshInterval = 60 * time.Second
)

// TextfilePath is the default destination for the textfile exposition
// output, picked up by node_exporter's textfile collector.
const TextfilePath = "/tmp/metrics/disk_exporter.prom"

// External tool paths. Bare names resolve through PATH; the PercCLI and
// MegaCLI binaries install outside the usual PATH on most distros.
const (
	SmartctlPath = "smartctl"
	MegaCLIPath  = "/usr/bin/megacli64"
	PercCLIPath  = "/usr/bin/perccli64"
	IpmitoolPath = "ipmitool"
)

// HTTP server timeouts.
const (
	ServerReadTimeout     = 10 * time.Second
	ServerWriteTimeout    = 120 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)
