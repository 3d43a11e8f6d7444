package collector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwstack/hwhealth-exporter/pkg/config"
	"github.com/hwstack/hwhealth-exporter/pkg/metric"
)

type stubCollector struct {
	name string
}

func (s *stubCollector) Name() string                                       { return s.name }
func (s *stubCollector) Collect(_ context.Context) ([]metric.Sample, error) { return nil, nil }

type stubFactory struct{}

func (stubFactory) CreateSMARTCollector() Collector    { return &stubCollector{name: "smart"} }
func (stubFactory) CreateMegaRAIDCollector() Collector { return &stubCollector{name: "megaraid"} }
func (stubFactory) CreatePercRAIDCollector() Collector { return &stubCollector{name: "percraid"} }
func (stubFactory) CreateBMCSELCollector() Collector   { return &stubCollector{name: "bmc"} }

func names(cs []Collector) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Name())
	}
	return out
}

func TestActiveDefaults(t *testing.T) {
	cfg := config.New()
	active, err := Active(cfg, stubFactory{})
	require.NoError(t, err)

	// MegaRAID stays off unless asked for; it can hang a host for minutes.
	assert.Equal(t, []string{"smart", "percraid", "bmc"}, names(active))
}

func TestActiveToggles(t *testing.T) {
	cfg := config.New()
	cfg.SMARTEnabled = false
	cfg.PercRAIDEnabled = false
	cfg.MegaRAIDEnabled = true

	active, err := Active(cfg, stubFactory{})
	require.NoError(t, err)
	assert.Equal(t, []string{"megaraid", "bmc"}, names(active))
}

func TestActiveAllDisabled(t *testing.T) {
	cfg := config.New()
	cfg.SMARTEnabled = false
	cfg.PercRAIDEnabled = false
	cfg.BMCSELEnabled = false

	active, err := Active(cfg, stubFactory{})
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestActiveMutualExclusion(t *testing.T) {
	cfg := config.New()
	cfg.MegaRAIDEnabled = true
	cfg.PercRAIDEnabled = true

	_, err := Active(cfg, stubFactory{})
	require.Error(t, err)
}

func TestActiveIdempotent(t *testing.T) {
	cfg := config.New()

	first, err := Active(cfg, stubFactory{})
	require.NoError(t, err)
	second, err := Active(cfg, stubFactory{})
	require.NoError(t, err)

	assert.Equal(t, names(first), names(second))
}
