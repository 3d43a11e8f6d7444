package exporter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwstack/hwhealth-exporter/pkg/collector"
	"github.com/hwstack/hwhealth-exporter/pkg/collector/raid"
	"github.com/hwstack/hwhealth-exporter/pkg/collector/smart"
	"github.com/hwstack/hwhealth-exporter/pkg/errors"
	"github.com/hwstack/hwhealth-exporter/pkg/metric"
	"github.com/hwstack/hwhealth-exporter/pkg/snapshot"
	"github.com/hwstack/hwhealth-exporter/pkg/toolexec"
)

const smartScan = `/dev/sda -d sat # /dev/sda [SAT], ATA device
`

const smartDevice = `=== START OF READ SMART DATA SECTION ===
SMART overall-health self-assessment test result: PASSED

ID# ATTRIBUTE_NAME          FLAG     VALUE WORST THRESH TYPE      UPDATED  WHEN_FAILED RAW_VALUE
  5 Reallocated_Sector_Ct   0x0033   100   100   010    Pre-fail  Always       -       3
`

const percDegraded = `{
  "Controllers": [
    {
      "Command Status": {"Controller": 0, "Status": "Success", "Description": "None"},
      "Response Data": {
        "Basics": {"Controller": 0, "Model": "PERC H740P", "Serial Number": "X"},
        "Version": {"Driver Name": "megaraid_sas", "Bios Version": "7", "Firmware Version": "5"},
        "Status": {"Controller Status": "Degraded"},
        "HwCfg": {},
        "VD LIST": [
          {"DG/VD": "0/0", "State": "Dgrd", "Name": "data", "Cache": "RWBD", "TYPE": "RAID5"}
        ],
        "PD LIST": []
      }
    }
  ]
}`

// fakeRunner returns canned output keyed by the joined argument string.
type fakeRunner struct {
	results map[string]*toolexec.Result
	errs    map[string]error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (*toolexec.Result, error) {
	key := name
	for _, a := range args {
		key += " " + a
	}
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	if res, ok := f.results[key]; ok {
		return res, nil
	}
	return &toolexec.Result{}, nil
}

// scrape stands up the full bridge-registry-handler pipeline and performs
// one HTTP scrape against it.
func scrape(t *testing.T, collectors ...collector.Collector) (int, string) {
	t.Helper()

	registry := prometheus.NewRegistry()
	registry.MustRegister(NewBridge(snapshot.NewBuilder(collectors)))

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Code, rec.Body.String()
}

func TestScrapeSMART(t *testing.T) {
	runner := &fakeRunner{results: map[string]*toolexec.Result{
		"smartctl --scan":                   {Stdout: []byte(smartScan)},
		"smartctl -i -H -A -d sat /dev/sda": {Stdout: []byte(smartDevice)},
	}}

	code, body := scrape(t, smart.New("smartctl", runner))
	require.Equal(t, http.StatusOK, code)

	assert.Contains(t, body, `smartprom_reallocated_sector_ct{drive="/dev/sda"} 3`)
	assert.Contains(t, body, `smartprom_smart_passed{drive="/dev/sda"} 1`)
	assert.Contains(t, body, `disk_exporter_collector_success{collector="smart"} 1`)
	assert.Contains(t, body, "disk_exporter_last_update_time_seconds")
}

func TestScrapeDegradedRAID(t *testing.T) {
	runner := &fakeRunner{results: map[string]*toolexec.Result{
		"/usr/bin/perccli64 /cALL show all J": {Stdout: []byte(percDegraded)},
	}}

	code, body := scrape(t, raid.NewPerc("/usr/bin/perccli64", runner))
	require.Equal(t, http.StatusOK, code)

	assert.Contains(t, body, `megacli_vd_state{DG="0",VG="0",controller="0"} 1`)
	assert.Contains(t, body, `megacli_degraded{controller="0"} 1`)
	assert.Contains(t, body, `megacli_healthy{controller="0"} 0`)
}

func TestScrapeFailureIsolation(t *testing.T) {
	runner := &fakeRunner{
		results: map[string]*toolexec.Result{
			"/usr/bin/perccli64 /cALL show all J": {Stdout: []byte(percDegraded)},
		},
		errs: map[string]error{
			"smartctl --scan": errors.New(errors.ErrCodeTimeout, "tool invocation timed out"),
		},
	}

	code, body := scrape(t,
		smart.New("smartctl", runner),
		raid.NewPerc("/usr/bin/perccli64", runner),
	)

	// A hung tool must not take down the scrape.
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `disk_exporter_collector_success{collector="smart"} 0`)
	assert.Contains(t, body, `disk_exporter_collector_success{collector="percraid"} 1`)
	assert.Contains(t, body, `megacli_degraded{controller="0"} 1`)
}

func TestTextfileWriter(t *testing.T) {
	registry := prometheus.NewRegistry()
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_metric", Help: "test"})
	g.Set(42)
	registry.MustRegister(g)

	path := filepath.Join(t.TempDir(), "metrics", "disk_exporter.prom")
	w := NewTextfileWriter(registry, path, time.Hour)

	require.NoError(t, w.write())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "test_metric 42")

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must not linger")
}

func TestTextfileWriterRunStopsOnCancel(t *testing.T) {
	registry := prometheus.NewRegistry()
	path := filepath.Join(t.TempDir(), "disk_exporter.prom")
	w := NewTextfileWriter(registry, path, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := w.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "at least the immediate write must land")
}

// generationCollector emits two series carrying the same per-collect
// generation number. Within one scrape they must always agree; the sleep
// holds the collect open so concurrent scrapes overlap.
type generationCollector struct {
	generation atomic.Int64
}

func (c *generationCollector) Name() string { return "generation" }

func (c *generationCollector) Collect(context.Context) ([]metric.Sample, error) {
	gen := float64(c.generation.Add(1))
	time.Sleep(5 * time.Millisecond)
	return []metric.Sample{
		metric.New("generation_first", gen, nil),
		metric.New("generation_second", gen, nil),
	}, nil
}

func TestConcurrentScrapesGetOwnSnapshot(t *testing.T) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(NewBridge(snapshot.NewBuilder([]collector.Collector{
		&generationCollector{},
	})))

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})

	const scrapes = 8
	bodies := make([]string, scrapes)
	var wg sync.WaitGroup
	for i := 0; i < scrapes; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			time.Sleep(time.Duration(i) * time.Millisecond)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
			bodies[i] = rec.Body.String()
		}(i)
	}
	wg.Wait()

	generations := make(map[float64]bool)
	for i, body := range bodies {
		first := seriesValue(t, body, "generation_first")
		second := seriesValue(t, body, "generation_second")
		assert.Equal(t, first, second, "scrape %d mixed samples from two collects", i)
		generations[first] = true
	}
	assert.Len(t, generations, scrapes, "every scrape must trigger its own collect")
}

// seriesValue extracts one unlabeled series value from an exposition body.
func seriesValue(t *testing.T, body, name string) float64 {
	t.Helper()
	for _, line := range strings.Split(body, "\n") {
		if value, found := strings.CutPrefix(line, name+" "); found {
			f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			require.NoError(t, err)
			return f
		}
	}
	t.Fatalf("series %s missing from scrape body", name)
	return 0
}

func TestGatherWithFailingTool(t *testing.T) {
	// A gather pass completes even when the underlying tool cannot run;
	// the failure shows up as a success marker, not a gather error.
	registry := prometheus.NewRegistry()
	runner := &fakeRunner{errs: map[string]error{
		"smartctl --scan": errors.New(errors.ErrCodeToolExec, "no such tool"),
	}}
	registry.MustRegister(NewBridge(snapshot.NewBuilder([]collector.Collector{
		smart.New("smartctl", runner),
	})))

	mfs, err := registry.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mfs)
}
