// Package raid collects RAID controller health via the StorCLI tool family.
//
// Two variants exist: MegaRAID (megacli64) and Dell PERC (perccli64). Both
// binaries emit the same JSON schema for `/cALL show all J`, so they share
// one parser; only the subsystem name and binary path differ. The variants
// are mutually exclusive, enforced by the collector registry.
//
// Metric names keep the established megacli_ prefix for both variants so
// dashboards survive a controller swap.
package raid

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hwstack/hwhealth-exporter/pkg/errors"
	"github.com/hwstack/hwhealth-exporter/pkg/metric"
	"github.com/hwstack/hwhealth-exporter/pkg/toolexec"
)

const metricPrefix = "megacli_"

// Variant names the RAID tool family being collected.
type Variant string

const (
	// VariantMega is the LSI/Broadcom MegaRAID tool.
	VariantMega Variant = "megaraid"
	// VariantPerc is the Dell PERC OEM build.
	VariantPerc Variant = "percraid"
)

// Collector collects controller, virtual-drive, and physical-drive status
// from one StorCLI-family tool.
type Collector struct {
	variant Variant
	path    string
	runner  toolexec.Runner
}

// NewMega creates a MegaRAID collector invoking the binary at path.
func NewMega(path string, runner toolexec.Runner) *Collector {
	return &Collector{variant: VariantMega, path: path, runner: runner}
}

// NewPerc creates a Dell PERC collector invoking the binary at path.
func NewPerc(path string, runner toolexec.Runner) *Collector {
	return &Collector{variant: VariantPerc, path: path, runner: runner}
}

// Name implements collector.Collector.
func (c *Collector) Name() string {
	return string(c.variant)
}

// Collect runs `<tool> /cALL show all J` once and maps the JSON document
// onto samples. Controllers with physical drives trigger a second
// invocation for per-drive detail (error counts, temperature, link
// speeds). A controller whose command status is not Success is skipped;
// siblings on the same tool invocation still report.
func (c *Collector) Collect(ctx context.Context) ([]metric.Sample, error) {
	out, err := c.query(ctx, "/cALL", "show", "all", "J")
	if err != nil {
		return nil, err
	}

	if len(out.Controllers) == 0 {
		return nil, errors.New(errors.ErrCodeParse, "no controllers in tool output")
	}

	detail, detailErr := c.collectDriveDetail(ctx, out)

	var samples []metric.Sample
	var failed []int
	for i, ctrl := range out.Controllers {
		if !strings.EqualFold(ctrl.CommandStatus.Status, "Success") {
			slog.Warn("controller query unsuccessful",
				slog.String("collector", string(c.variant)),
				slog.Int("controller", ctrl.CommandStatus.Controller),
				slog.String("status", ctrl.CommandStatus.Status))
			failed = append(failed, i)
			continue
		}
		samples = append(samples, controllerSamples(ctrl.ResponseData, detailFor(detail, i))...)
	}

	if len(failed) > 0 {
		return samples, errors.NewWithContext(errors.ErrCodeParse,
			fmt.Sprintf("%d of %d controllers reported command failure", len(failed), len(out.Controllers)),
			map[string]any{"controllers": failed})
	}
	if detailErr != nil {
		return samples, detailErr
	}

	return samples, nil
}

// query runs one tool invocation and parses the JSON document.
func (c *Collector) query(ctx context.Context, args ...string) (*cliOutput, error) {
	res, err := c.runner.Run(ctx, c.path, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeToolExec,
			fmt.Sprintf("%s invocation failed", c.variant), err)
	}

	if len(res.Stdout) == 0 {
		return nil, errors.NewWithContext(errors.ErrCodeToolExec,
			fmt.Sprintf("%s produced no output", c.variant),
			map[string]any{"exit_code": res.ExitCode, "stderr": strings.TrimSpace(string(res.Stderr))})
	}

	var out cliOutput
	if err := json.Unmarshal(res.Stdout, &out); err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse,
			fmt.Sprintf("failed to parse %s JSON output", c.variant), err)
	}

	return &out, nil
}

// collectDriveDetail runs `/cALL/eALL/sALL show all J` when any controller
// reports physical drives. A failed detail pass degrades rather than
// aborts: base drive samples still report, the error is surfaced to the
// caller.
func (c *Collector) collectDriveDetail(ctx context.Context, out *cliOutput) (*detailOutput, error) {
	havePDs := false
	for _, ctrl := range out.Controllers {
		if len(ctrl.ResponseData.PDList) > 0 {
			havePDs = true
			break
		}
	}
	if !havePDs {
		return nil, nil
	}

	res, err := c.runner.Run(ctx, c.path, "/cALL/eALL/sALL", "show", "all", "J")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeToolExec,
			fmt.Sprintf("%s drive detail invocation failed", c.variant), err)
	}

	var detail detailOutput
	if err := json.Unmarshal(res.Stdout, &detail); err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse,
			fmt.Sprintf("failed to parse %s drive detail output", c.variant), err)
	}

	return &detail, nil
}

// detailFor returns the detail-response map of the i-th controller. The
// detail invocation enumerates controllers in the same order as the main
// one.
func detailFor(detail *detailOutput, i int) map[string]json.RawMessage {
	if detail == nil || i >= len(detail.Controllers) {
		return nil
	}
	entry := detail.Controllers[i]
	if !strings.EqualFold(entry.CommandStatus.Status, "Success") {
		return nil
	}
	return entry.ResponseData
}

// controllerSamples maps one controller's response data onto samples.
func controllerSamples(r responseData, detail map[string]json.RawMessage) []metric.Sample {
	ctrl := strconv.Itoa(r.Basics.Controller)
	base := func() map[string]string {
		return map[string]string{"controller": ctrl}
	}

	samples := []metric.Sample{
		metric.New(metricPrefix+"controller_info", 1, map[string]string{
			"controller":       ctrl,
			"model":            strings.TrimSpace(r.Basics.Model),
			"serial":           strings.TrimSpace(r.Basics.SerialNumber),
			"driver":           r.Version.DriverName,
			"bios_version":     strings.TrimSpace(r.Version.BiosVersion),
			"firmware_version": strings.TrimSpace(r.Version.FirmwareVersion),
			"package_build":    strings.TrimSpace(r.Version.FirmwarePackageBuild),
		}),
	}

	if temp, ok := rocTemperature(r.HwCfg); ok {
		samples = append(samples, metric.New(metricPrefix+"controller_temperature_celsius", temp, base()))
	}

	switch r.Version.DriverName {
	case "megaraid_sas":
		samples = append(samples, megaraidSamples(r, ctrl, detail)...)
	case "mpt3sas":
		samples = append(samples, sasSamples(r, ctrl, detail)...)
	}

	return samples
}

// megaraidSamples covers full MegaRAID controllers: health triplet, BBU,
// memory, drive counts, and per-VD/per-PD status.
func megaraidSamples(r responseData, ctrl string, detail map[string]json.RawMessage) []metric.Sample {
	base := func(extra map[string]string) map[string]string {
		m := map[string]string{"controller": ctrl}
		for k, v := range extra {
			m[k] = v
		}
		return m
	}

	samples := []metric.Sample{
		metric.New(metricPrefix+"healthy", boolValue(r.Status.ControllerStatus == "Optimal"), base(nil)),
		metric.New(metricPrefix+"degraded", boolValue(r.Status.ControllerStatus == "Degraded"), base(nil)),
		metric.New(metricPrefix+"failed", boolValue(r.Status.ControllerStatus == "Failed"), base(nil)),
	}

	// BBU Status is 0 for a healthy cachevault and 32 for a healthy BBU.
	if bbu, ok := toFloat(r.Status.BBUStatus); ok {
		samples = append(samples,
			metric.New(metricPrefix+"battery_backup_healthy", boolValue(bbu == 0 || bbu == 32), base(nil)))
	}

	if ports, ok := toFloat(r.HwCfg["Backend Port Count"]); ok {
		samples = append(samples, metric.New(metricPrefix+"ports", ports, base(nil)))
	}

	if v, ok := r.ScheduledTasks["Patrol Read Reoccurrence"].(string); ok {
		samples = append(samples,
			metric.New(metricPrefix+"scheduled_patrol_read", boolValue(strings.Contains(v, "hrs")), base(nil)))
	}

	for i, cv := range r.CachevaultInfo {
		if temp, err := parseCelsius(cv.Temp); err == nil {
			samples = append(samples, metric.New(metricPrefix+"cv_temperature", temp,
				base(map[string]string{"cvidx": strconv.Itoa(i)})))
		}
	}

	if diff, ok := controllerTimeDrift(r.Basics); ok {
		samples = append(samples, metric.New(metricPrefix+"time_difference", diff, base(nil)))
	}

	if r.Status.MemoryCorrectableErrors != nil {
		samples = append(samples, metric.New(metricPrefix+"memory_errors", *r.Status.MemoryCorrectableErrors,
			base(map[string]string{"type": "correctable"})))
	}
	if r.Status.MemoryUncorrectableErrors != nil {
		samples = append(samples, metric.New(metricPrefix+"memory_errors", *r.Status.MemoryUncorrectableErrors,
			base(map[string]string{"type": "uncorrectable"})))
	}

	if mb, ok := parseMegabytes(r.HwCfg["On Board Memory Size"]); ok {
		samples = append(samples, metric.New(metricPrefix+"memory_size_bytes", mb*1024*1024,
			base(map[string]string{"type": "total"})))
	}
	if mb, ok := toFloat(r.HwCfg["Current Size of FW Cache (MB)"]); ok {
		samples = append(samples, metric.New(metricPrefix+"memory_size_bytes", mb*1024*1024,
			base(map[string]string{"type": "write_cache"})))
	}

	if r.DriveGroups != nil {
		samples = append(samples, metric.New(metricPrefix+"drive_groups", *r.DriveGroups, base(nil)))
	}
	if r.VirtualDrives != nil {
		samples = append(samples, metric.New(metricPrefix+"drives", *r.VirtualDrives,
			base(map[string]string{"state": "Total", "type": "virtual"})))
	}

	samples = append(samples, virtualDriveSamples(r.VDList, ctrl)...)

	if r.PhysicalDrives != nil {
		samples = append(samples, metric.New(metricPrefix+"drives", *r.PhysicalDrives,
			base(map[string]string{"state": "DisksTotal", "type": "physical"})))
	}

	samples = append(samples, physicalDriveSamples(r.PDList, ctrl, detail)...)

	return samples
}

// sasSamples covers mpt3sas HBAs, which expose a reduced response schema.
func sasSamples(r responseData, ctrl string, detail map[string]json.RawMessage) []metric.Sample {
	labels := map[string]string{"controller": ctrl}

	samples := []metric.Sample{
		metric.New(metricPrefix+"healthy", boolValue(r.Status.ControllerStatus == "OK"), labels),
	}

	if ports, ok := toFloat(r.HwCfg["Backend Port Count"]); ok {
		samples = append(samples, metric.New(metricPrefix+"ports", ports,
			map[string]string{"controller": ctrl}))
	}

	samples = append(samples, physicalDriveSamples(r.PDList, ctrl, detail)...)
	return samples
}

// virtualDriveSamples emits per-VD info, the numeric state code, and the
// aggregate offline/degraded counts.
func virtualDriveSamples(vds []virtualDrive, ctrl string) []metric.Sample {
	var samples []metric.Sample
	offline, degraded := 0.0, 0.0

	for _, vd := range vds {
		dg, vg := splitPosition(vd.Position)

		switch vd.State {
		case "OfLn":
			offline++
		case "Dgrd", "Pdgd":
			degraded++
		}

		samples = append(samples,
			metric.New(metricPrefix+"vd_info", 1, map[string]string{
				"controller": ctrl,
				"DG":         dg,
				"VG":         vg,
				"name":       strings.TrimSpace(vd.Name),
				"cache":      strings.TrimSpace(vd.Cache),
				"type":       strings.TrimSpace(vd.Type),
				"state":      strings.TrimSpace(vd.State),
			}),
			metric.New(metricPrefix+"vd_state", vdStateCode(vd.State), map[string]string{
				"controller": ctrl,
				"DG":         dg,
				"VG":         vg,
			}),
		)
	}

	samples = append(samples,
		metric.New(metricPrefix+"drives", offline, map[string]string{
			"controller": ctrl, "state": "Offline", "type": "virtual",
		}),
		metric.New(metricPrefix+"drives", degraded, map[string]string{
			"controller": ctrl, "state": "Degraded", "type": "virtual",
		}),
	)

	return samples
}

// physicalDriveSamples emits per-PD info, the numeric state code, and the
// detailed telemetry (error counts, temperature, link speeds) when the
// drive detail pass provided it.
func physicalDriveSamples(pds []physicalDrive, ctrl string, detail map[string]json.RawMessage) []metric.Sample {
	var samples []metric.Sample

	for _, pd := range pds {
		enclosure, slot := splitEIDSlot(pd.EIDSlt)
		base := func(extra map[string]string) map[string]string {
			m := map[string]string{
				"controller": ctrl,
				"enclosure":  enclosure,
				"slot":       slot,
				"disk_id":    anyString(pd.DID),
			}
			for k, v := range extra {
				m[k] = v
			}
			return m
		}

		d := driveDetailFor(detail, ctrl, enclosure, slot)

		info := base(map[string]string{
			"DG":        anyString(pd.DG),
			"interface": strings.TrimSpace(pd.Interface),
			"media":     strings.TrimSpace(pd.Media),
			"model":     strings.TrimSpace(pd.Model),
			"state":     strings.TrimSpace(pd.State),
			"firmware":  d.attrString("Firmware Revision"),
			"serial":    d.attrString("SN"),
		})

		samples = append(samples,
			metric.New(metricPrefix+"pd_info", 1, info),
			metric.New(metricPrefix+"pd_state", pdStateCode(pd.State), base(nil)),
		)

		samples = append(samples, d.samples(base)...)
	}

	return samples
}

// driveDetailFor extracts one drive's detailed-information section. Drives
// behind no enclosure are addressed without the /e segment.
func driveDetailFor(rd map[string]json.RawMessage, ctrl, enclosure, slot string) *driveDetail {
	d := &driveDetail{}
	if rd == nil {
		return d
	}

	id := fmt.Sprintf("Drive /c%s/e%s/s%s", ctrl, enclosure, slot)
	if enclosure == "" {
		id = fmt.Sprintf("Drive /c%s/s%s", ctrl, slot)
	}

	raw, found := rd[id+" - Detailed Information"]
	if !found {
		return d
	}

	var sections map[string]json.RawMessage
	if err := json.Unmarshal(raw, &sections); err != nil {
		slog.Debug("skipping malformed drive detail", slog.String("drive", id))
		return d
	}

	json.Unmarshal(sections[id+" State"], &d.State)
	json.Unmarshal(sections[id+" Device attributes"], &d.Attributes)
	json.Unmarshal(sections[id+" Policies/Settings"], &d.Settings)
	return d
}

// samples emits the detailed per-drive telemetry. Each value is optional;
// firmware revisions disagree on which fields they report.
func (d *driveDetail) samples(base func(map[string]string) map[string]string) []metric.Sample {
	var samples []metric.Sample

	if v, found := d.State["S.M.A.R.T alert flagged by drive"]; found {
		samples = append(samples,
			metric.New(metricPrefix+"pd_smart_alert", boolValue(anyString(v) == "Yes"), base(nil)))
	}

	for key, typ := range map[string]string{
		"Predictive Failure Count": "predictive",
		"Media Error Count":        "media",
		"Other Error Count":        "other",
	} {
		if v, ok := toFloat(d.State[key]); ok {
			samples = append(samples,
				metric.New(metricPrefix+"pd_errors", v, base(map[string]string{"type": typ})))
		}
	}

	// Drive Temperature reads like "33C (91.40 F)".
	if s, ok := d.State["Drive Temperature"].(string); ok {
		if m := driveCelsiusRe.FindStringSubmatch(s); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				samples = append(samples,
					metric.New(metricPrefix+"pd_temperature", v, base(map[string]string{"type": "celsius"})))
			}
		}
	}

	for key, typ := range map[string]string{
		"Coerced size":     "coerced",
		"Non Coerced size": "non_coerced",
		"Raw size":         "raw",
	} {
		if v, ok := parseSectorSize(d.Attributes[key]); ok {
			samples = append(samples,
				metric.New(metricPrefix+"pd_size_bytes", v, base(map[string]string{"type": typ})))
		}
	}

	if s, ok := d.Attributes["WWN"].(string); ok {
		if wwn, err := strconv.ParseUint(strings.TrimSpace(s), 16, 64); err == nil {
			samples = append(samples, metric.New(metricPrefix+"pd_wwn", float64(wwn), base(nil)))
		}
	}

	for key, typ := range map[string]string{
		"Device Speed": "drive",
		"Link Speed":   "link",
	} {
		if v, ok := parseSpeedBits(d.Attributes[key]); ok {
			samples = append(samples,
				metric.New(metricPrefix+"pd_speed_bits", v, base(map[string]string{"type": typ})))
		}
	}

	if v, found := d.Settings["Needs EKM Attention"]; found {
		samples = append(samples,
			metric.New(metricPrefix+"pd_ekm_attention_needed", boolValue(anyString(v) == "Yes"), base(nil)))
	}
	if v, ok := toFloat(d.Settings["Sequence Number"]); ok {
		samples = append(samples, metric.New(metricPrefix+"pd_sequence_number", v, base(nil)))
	}
	if port, path, ok := parsePortPath(d.Settings["Connected Port Number"]); ok {
		samples = append(samples,
			metric.New(metricPrefix+"pd_port", port, base(nil)),
			metric.New(metricPrefix+"pd_path", path, base(nil)))
	}

	return samples
}

// attrString reads a device attribute as a trimmed label value, empty when
// the detail pass did not cover this drive.
func (d *driveDetail) attrString(key string) string {
	if d.Attributes == nil {
		return ""
	}
	v, found := d.Attributes[key]
	if !found {
		return ""
	}
	return anyString(v)
}

// vdStateCode maps a virtual drive state to healthy=0 / degraded=1 /
// failed=2. Unknown states count as failed.
func vdStateCode(state string) float64 {
	switch state {
	case "Optl":
		return 0
	case "Dgrd", "Pdgd":
		return 1
	default:
		return 2
	}
}

// pdStateCode maps a physical drive state to healthy=0 / rebuilding=1 /
// failed=2. Spares and unconfigured-good drives are healthy.
func pdStateCode(state string) float64 {
	switch state {
	case "Onln", "GHS", "DHS", "JBOD", "UGood":
		return 0
	case "Rbld":
		return 1
	default:
		return 2
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// toFloat converts the loosely typed JSON values the tool emits (numbers,
// numeric strings) to float64.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// anyString renders a loosely typed JSON value as a trimmed label value.
func anyString(v any) string {
	if v == nil {
		return ""
	}
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// rocTemperature reads the controller temperature from HwCfg, tolerating
// the firmware's misspelled key.
func rocTemperature(hwCfg map[string]any) (float64, bool) {
	for _, key := range []string{
		"ROC temperature(Degree Celsius)",
		"ROC temperature(Degree Celcius)",
	} {
		if v, found := hwCfg[key]; found {
			return toFloat(v)
		}
	}
	return 0, false
}

// parseCelsius parses temperature strings like "23C".
func parseCelsius(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "C"))
	return strconv.ParseFloat(s, 64)
}

var megabytesRe = regexp.MustCompile(`([0-9]+)\s*MB`)

// parseMegabytes extracts the MB count from strings like "1024MB".
func parseMegabytes(v any) (float64, bool) {
	s, ok := v.(string)
	if !ok {
		return toFloat(v)
	}
	m := megabytesRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	return f, err == nil
}

var driveCelsiusRe = regexp.MustCompile(`([0-9.]+)\s*C`)

var sectorCountRe = regexp.MustCompile(`\[([0-9a-fx]+)`)

// parseSectorSize converts size strings like "3.492 TB [0x1b7881b00 Sectors]"
// to bytes using the bracketed hex sector count.
func parseSectorSize(v any) (float64, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	m := sectorCountRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	sectors, err := strconv.ParseUint(strings.TrimPrefix(m[1], "0x"), 16, 64)
	if err != nil {
		return 0, false
	}
	return float64(sectors) * 512, true
}

// parseSpeedBits converts link speed strings like "12.0Gb/s" to bits per
// second.
func parseSpeedBits(v any) (float64, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	num, _, found := strings.Cut(s, "Gb")
	if !found {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, false
	}
	return f * 1024 * 1024 * 1024, true
}

// parsePortPath splits a connected port value like "2(path0)" into the port
// and path numbers.
func parsePortPath(v any) (port, path float64, ok bool) {
	s, isStr := v.(string)
	if !isStr {
		return 0, 0, false
	}
	before, rest, found := strings.Cut(s, "(")
	if !found {
		return 0, 0, false
	}
	port, err := strconv.ParseFloat(strings.TrimSpace(before), 64)
	if err != nil {
		return 0, 0, false
	}
	rest = strings.TrimSuffix(strings.TrimSpace(rest), ")")
	path, err = strconv.ParseFloat(strings.TrimPrefix(rest, "path"), 64)
	if err != nil {
		return 0, 0, false
	}
	return port, path, true
}

const controllerTimeLayout = "01/02/2006, 15:04:05"

// controllerTimeDrift returns the absolute difference between the system
// clock and the controller clock as reported by the tool.
func controllerTimeDrift(b basics) (float64, bool) {
	sys, err := time.Parse(controllerTimeLayout, b.CurrentSystemTime)
	if err != nil {
		return 0, false
	}
	ctrl, err := time.Parse(controllerTimeLayout, b.CurrentControllerTime)
	if err != nil {
		return 0, false
	}
	return sys.Sub(ctrl).Abs().Seconds(), true
}

// splitPosition splits a "DG/VD" position like "0/1".
func splitPosition(pos string) (dg, vg string) {
	dg, vg = "-1", "-1"
	parts := strings.SplitN(pos, "/", 2)
	if len(parts) == 2 {
		dg, vg = parts[0], parts[1]
	}
	return dg, vg
}

// splitEIDSlot splits an "EID:Slt" identifier like "32:2". Drives behind
// no enclosure report an empty enclosure.
func splitEIDSlot(s string) (enclosure, slot string) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return "", strings.TrimSpace(s)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}
