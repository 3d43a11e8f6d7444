// Package cli implements the hwhealthd command-line interface.
//
// # Commands
//
// serve - Run the exporter:
//
//	hwhealthd serve [--config FILE] [--address ADDR] [--port PORT]
//
// Starts the HTTP server exposing hardware health metrics on /metrics and,
// when configured, the periodic textfile writer for node_exporter's
// textfile collector.
//
// collect - One-shot collection:
//
//	hwhealthd collect [--config FILE] [--output FILE]
//
// Runs every enabled collector once and prints the metrics in Prometheus
// text exposition format. Useful for debugging a host without standing up
// the server.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

const (
	name           = "hwhealthd"
	versionDefault = "dev"
)

var (
	// overridden during build with ldflags
	version = versionDefault
	commit  = "unknown"
	date    = "unknown"
)

func rootCmd() *cli.Command {
	return &cli.Command{
		Name:    name,
		Usage:   "Hardware health metrics exporter",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Description: `Exports hardware health telemetry for Prometheus:
  - Disk SMART attributes and health verdicts via smartctl
  - RAID controller, virtual drive, and physical drive status via
    megacli64 or perccli64
  - BMC system event log entries via ipmitool`,
		Commands: []*cli.Command{
			serveCmd(),
			collectCmd(),
		},
	}
}

// Execute runs the CLI. It is called by main and installs signal handling
// for graceful shutdown.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
