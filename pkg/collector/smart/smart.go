// Package smart collects disk health attributes via smartctl.
//
// Devices are enumerated with `smartctl --scan`, then each device is
// queried individually. A device that fails to respond or produces
// unparseable output does not abort collection of the remaining devices;
// its failure is folded into the returned error while partial samples are
// still reported.
package smart

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hwstack/hwhealth-exporter/pkg/errors"
	"github.com/hwstack/hwhealth-exporter/pkg/metric"
	"github.com/hwstack/hwhealth-exporter/pkg/toolexec"
)

const metricPrefix = "smartprom_"

// device is one entry from the smartctl scan output.
type device struct {
	// Path is the block device node, e.g. /dev/sda.
	Path string
	// Type is the smartctl device type argument (-d), empty when the scan
	// line carried none.
	Type string
}

// Collector collects SMART attributes from all scannable block devices.
type Collector struct {
	path   string
	runner toolexec.Runner
}

// New creates a SMART collector invoking the smartctl binary at path.
func New(path string, runner toolexec.Runner) *Collector {
	return &Collector{path: path, runner: runner}
}

// Name implements collector.Collector.
func (c *Collector) Name() string {
	return "smart"
}

// Collect enumerates devices and gathers one sample per SMART attribute,
// labelled with the originating drive. Per-device failures are isolated;
// the returned error is non-nil if any device failed.
func (c *Collector) Collect(ctx context.Context) ([]metric.Sample, error) {
	res, err := c.runner.Run(ctx, c.path, "--scan")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeToolExec, "smartctl scan failed", err)
	}

	devices := parseScan(res.Stdout)
	samples := []metric.Sample{
		metric.New(metricPrefix+"devices", float64(len(devices)), nil),
	}

	var failed []string
	for _, dev := range devices {
		ds, err := c.collectDevice(ctx, dev)
		if err != nil {
			slog.Warn("failed to collect SMART data",
				slog.String("device", dev.Path),
				slog.String("error", err.Error()))
			failed = append(failed, dev.Path)
			continue
		}
		samples = append(samples, ds...)
	}

	if len(failed) > 0 {
		return samples, errors.NewWithContext(errors.ErrCodeParse,
			fmt.Sprintf("SMART collection failed for %d of %d devices", len(failed), len(devices)),
			map[string]any{"devices": failed})
	}

	return samples, nil
}

// collectDevice queries one device for identity, health verdict, and the
// SMART attribute table.
func (c *Collector) collectDevice(ctx context.Context, dev device) ([]metric.Sample, error) {
	args := []string{"-i", "-H", "-A"}
	if dev.Type != "" {
		args = append(args, "-d", dev.Type)
	}
	args = append(args, dev.Path)

	// smartctl encodes status bits in its exit code and still prints valid
	// data on many nonzero exits, so the output is parsed regardless.
	res, err := c.runner.Run(ctx, c.path, args...)
	if err != nil {
		return nil, err
	}

	samples := parseDevice(res.Stdout, dev.Path)
	if len(samples) == 0 {
		return nil, errors.NewWithContext(errors.ErrCodeParse,
			"no SMART data in smartctl output",
			map[string]any{"device": dev.Path, "exit_code": res.ExitCode})
	}

	return samples, nil
}

// parseScan parses `smartctl --scan` output. Lines look like:
//
//	/dev/sda -d scsi # /dev/sda, SCSI device
func parseScan(out []byte) []device {
	var devices []device
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) == 0 || !strings.HasPrefix(fields[0], "/dev/") {
			continue
		}

		d := device{Path: fields[0]}
		if len(fields) >= 3 && fields[1] == "-d" {
			d.Type = fields[2]
		}
		devices = append(devices, d)
	}
	return devices
}

// parseDevice extracts samples from one device's smartctl output. Malformed
// attribute rows are skipped individually.
func parseDevice(out []byte, drive string) []metric.Sample {
	var samples []metric.Sample
	labels := func() map[string]string {
		return map[string]string{"drive": drive}
	}

	inTable := false
	for _, line := range strings.Split(string(out), "\n") {
		trimmed := strings.TrimSpace(line)

		// ATA overall verdict.
		if v, ok := strings.CutPrefix(trimmed, "SMART overall-health self-assessment test result:"); ok {
			passed := 0.0
			if strings.TrimSpace(v) == "PASSED" {
				passed = 1.0
			}
			samples = append(samples, metric.New(metricPrefix+"smart_passed", passed, labels()))
			continue
		}

		// SCSI form of the same verdict.
		if v, ok := strings.CutPrefix(trimmed, "SMART Health Status:"); ok {
			passed := 0.0
			if strings.TrimSpace(v) == "OK" {
				passed = 1.0
			}
			samples = append(samples, metric.New(metricPrefix+"smart_passed", passed, labels()))
			continue
		}

		if strings.HasPrefix(trimmed, "ID#") {
			inTable = true
			continue
		}
		if !inTable {
			continue
		}
		if trimmed == "" {
			inTable = false
			continue
		}

		if s, ok := parseAttributeRow(trimmed, drive); ok {
			samples = append(samples, s)
		}
	}

	return samples
}

// parseAttributeRow parses one row of the ATA attribute table:
//
//	ID# ATTRIBUTE_NAME        FLAG   VALUE WORST THRESH TYPE     UPDATED WHEN_FAILED RAW_VALUE
//	  5 Reallocated_Sector_Ct 0x0033 100   100   010    Pre-fail Always  -           3
//
// The sample value is the raw value, which carries the physically
// meaningful count for attributes like reallocated sectors, temperature,
// and power-on hours.
func parseAttributeRow(line, drive string) (metric.Sample, bool) {
	fields := strings.Fields(line)
	if len(fields) < 10 {
		return metric.Sample{}, false
	}

	if _, err := parseLeadingFloat(fields[0]); err != nil {
		return metric.Sample{}, false
	}

	// Raw values may carry annotations, e.g. "39 (Min/Max 30/45)".
	raw, err := parseLeadingFloat(fields[9])
	if err != nil {
		return metric.Sample{}, false
	}

	name := metricPrefix + normalizeAttribute(fields[1])
	return metric.New(name, raw, map[string]string{"drive": drive}), true
}

// normalizeAttribute converts a smartctl attribute name to a metric name
// fragment, e.g. "Reallocated_Sector_Ct" -> "reallocated_sector_ct".
func normalizeAttribute(attr string) string {
	attr = strings.ToLower(attr)
	attr = strings.ReplaceAll(attr, "-", "_")
	return attr
}

// parseLeadingFloat parses the leading decimal number of s, tolerating
// trailing annotations.
func parseLeadingFloat(s string) (float64, error) {
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9') {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("no leading number in %q", s)
	}

	var v float64
	if _, err := fmt.Sscanf(s[:end], "%f", &v); err != nil {
		return 0, err
	}
	return v, nil
}
