// Package bmc collects the baseboard management controller's system event
// log via ipmitool.
package bmc

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hwstack/hwhealth-exporter/pkg/errors"
	"github.com/hwstack/hwhealth-exporter/pkg/metric"
	"github.com/hwstack/hwhealth-exporter/pkg/toolexec"
)

const (
	// selFieldCount is the column count of an `ipmitool sel list` row:
	// index | date | time | sensor | event | state.
	selFieldCount = 6

	selTimeLayout = "01/02/2006 15:04:05"
)

// event is one parsed system event log entry.
type event struct {
	Index     int64
	Timestamp int64
	Title     string
	Content   string
}

// Collector reads the system event log from the local BMC.
type Collector struct {
	path   string
	runner toolexec.Runner
}

// New creates a BMC event log collector invoking the binary at path.
func New(path string, runner toolexec.Runner) *Collector {
	return &Collector{path: path, runner: runner}
}

// Name implements collector.Collector.
func (c *Collector) Name() string {
	return "bmc"
}

// Collect runs `ipmitool sel list` and emits one sample per log entry
// plus the tool's exit code. The exit code sample is emitted even when
// the tool fails, so alerting on a broken BMC stays possible.
func (c *Collector) Collect(ctx context.Context) ([]metric.Sample, error) {
	res, err := c.runner.Run(ctx, c.path, "sel", "list")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeToolExec, "ipmitool invocation failed", err)
	}

	samples := []metric.Sample{
		metric.New("ipmitool_exit_code", float64(res.ExitCode), nil),
	}

	if res.ExitCode != 0 {
		return samples, errors.NewWithContext(errors.ErrCodeToolExec,
			fmt.Sprintf("ipmitool exited with code %d", res.ExitCode),
			map[string]any{"stderr": strings.TrimSpace(string(res.Stderr))})
	}

	events := parseSEL(res.Stdout)
	samples = append(samples, metric.New("ipmitool_event_log_entries", float64(len(events)), nil))

	for _, e := range events {
		samples = append(samples, metric.New("ipmitool_event_log", 1, map[string]string{
			"index":     strconv.FormatInt(e.Index, 10),
			"timestamp": strconv.FormatInt(e.Timestamp, 10),
			"title":     e.Title,
			"content":   e.Content,
		}))
	}

	return samples, nil
}

// parseSEL parses `ipmitool sel list` output. Rows that do not match the
// expected shape are logged and skipped; an empty log is a valid result.
func parseSEL(out []byte) []event {
	var events []event

	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		e, ok := parseSELRow(line)
		if !ok {
			slog.Debug("skipping malformed event log row", slog.String("row", line))
			continue
		}
		events = append(events, e)
	}

	return events
}

// parseSELRow parses one row like:
//
//	1 | 06/10/2024 | 09:12:33 | Temperature #0x30 | Upper Critical going high | Asserted
//
// The index is hexadecimal, matching the BMC's own numbering. The trailing
// assertion direction carries no information beyond the event column and is
// discarded.
func parseSELRow(line string) (event, bool) {
	parts := strings.Split(line, "|")
	if len(parts) != selFieldCount {
		return event{}, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	index, err := strconv.ParseInt(parts[0], 16, 64)
	if err != nil {
		return event{}, false
	}

	ts, err := time.Parse(selTimeLayout, parts[1]+" "+parts[2])
	if err != nil {
		return event{}, false
	}

	return event{
		Index:     index,
		Timestamp: ts.Unix(),
		Title:     parts[3],
		Content:   parts[4],
	}, true
}
