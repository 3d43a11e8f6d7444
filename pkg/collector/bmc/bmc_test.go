package bmc

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwstack/hwhealth-exporter/pkg/errors"
	"github.com/hwstack/hwhealth-exporter/pkg/metric"
	"github.com/hwstack/hwhealth-exporter/pkg/toolexec"
)

const selOutput = `   1 | 06/10/2024 | 09:12:33 | Temperature #0x30 | Upper Critical going high | Asserted
   2 | 06/10/2024 | 09:14:01 | Temperature #0x30 | Upper Critical going high | Deasserted
   a | 06/11/2024 | 22:05:40 | Memory #0x02 | Correctable ECC | Asserted
`

// fakeRunner returns one canned result for every invocation.
type fakeRunner struct {
	result *toolexec.Result
	err    error
	calls  [][]string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (*toolexec.Result, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.result, f.err
}

func TestCollect(t *testing.T) {
	runner := &fakeRunner{result: &toolexec.Result{Stdout: []byte(selOutput)}}

	c := New("ipmitool", runner)
	assert.Equal(t, "bmc", c.Name())

	samples, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"ipmitool", "sel", "list"}, runner.calls[0])

	byKey := indexSamples(samples)
	assert.Equal(t, 0.0, byKey["ipmitool_exit_code"].Value)
	assert.Equal(t, 3.0, byKey["ipmitool_event_log_entries"].Value)

	ts := strconv.FormatInt(time.Date(2024, 6, 10, 9, 12, 33, 0, time.UTC).Unix(), 10)
	key := `ipmitool_event_log{content=Upper Critical going high}{index=1}{timestamp=` + ts + `}{title=Temperature #0x30}`
	require.Contains(t, byKey, key)
	assert.Equal(t, 1.0, byKey[key].Value)

	// Hex index "a" parses as 10.
	ts = strconv.FormatInt(time.Date(2024, 6, 11, 22, 5, 40, 0, time.UTC).Unix(), 10)
	key = `ipmitool_event_log{content=Correctable ECC}{index=10}{timestamp=` + ts + `}{title=Memory #0x02}`
	require.Contains(t, byKey, key)
}

func TestCollectEmptyLog(t *testing.T) {
	runner := &fakeRunner{result: &toolexec.Result{Stdout: []byte("")}}

	c := New("ipmitool", runner)
	samples, err := c.Collect(context.Background())
	require.NoError(t, err)

	byKey := indexSamples(samples)
	assert.Equal(t, 0.0, byKey["ipmitool_exit_code"].Value)
	assert.Equal(t, 0.0, byKey["ipmitool_event_log_entries"].Value)
}

func TestCollectNonzeroExit(t *testing.T) {
	runner := &fakeRunner{result: &toolexec.Result{
		ExitCode: 1,
		Stderr:   []byte("Could not open device at /dev/ipmi0"),
	}}

	c := New("ipmitool", runner)
	samples, err := c.Collect(context.Background())

	// The exit code sample still reports so a broken BMC is alertable.
	require.Error(t, err)
	var se *errors.StructuredError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, errors.ErrCodeToolExec, se.Code)

	byKey := indexSamples(samples)
	assert.Equal(t, 1.0, byKey["ipmitool_exit_code"].Value)
	assert.NotContains(t, byKey, "ipmitool_event_log_entries")
}

func TestCollectRunnerError(t *testing.T) {
	runner := &fakeRunner{err: errors.New(errors.ErrCodeTimeout, "tool invocation timed out")}

	c := New("ipmitool", runner)
	samples, err := c.Collect(context.Background())
	require.Error(t, err)
	assert.Empty(t, samples)
}

func TestParseSELSkipsMalformedRows(t *testing.T) {
	out := `garbage row
   1 | 06/10/2024 | 09:12:33 | Temperature #0x30 | Upper Critical going high | Asserted
   2 | Pre-Init | Pre-Init | Power Unit #0x01 | Power off/down | Asserted
   zz | 06/10/2024 | 09:12:33 | Fan #0x41 | too few fields
`
	events := parseSEL([]byte(out))
	require.Len(t, events, 1)
	assert.Equal(t, int64(1), events[0].Index)
	assert.Equal(t, "Temperature #0x30", events[0].Title)
	assert.Equal(t, "Upper Critical going high", events[0].Content,
		"assertion direction is not part of the content")
}

func indexSamples(samples []metric.Sample) map[string]metric.Sample {
	m := make(map[string]metric.Sample, len(samples))
	for _, s := range samples {
		m[s.Key()] = s
	}
	return m
}
