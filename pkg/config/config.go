// Package config holds the process-wide exporter configuration.
//
// Configuration is resolved once at startup: defaults, then an optional
// YAML file, then environment variables. The resulting Config is immutable
// for the process lifetime and passed by value into every component that
// needs it; there is no ambient global lookup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hwstack/hwhealth-exporter/pkg/defaults"
	"github.com/hwstack/hwhealth-exporter/pkg/errors"
)

// Config holds exporter configuration.
type Config struct {
	// Listen address and port for the metrics endpoint.
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`

	// Per-collector enable toggles. MegaRAID and PercRAID are mutually
	// exclusive; MegaRAID defaults off because the vendor tool can stall
	// the host for minutes.
	SMARTEnabled    bool `yaml:"smart_enabled"`
	MegaRAIDEnabled bool `yaml:"mega_raid_enabled"`
	PercRAIDEnabled bool `yaml:"perc_raid_enabled"`
	BMCSELEnabled   bool `yaml:"bmc_sel_enabled"`

	// CollectTimeout bounds every external tool invocation.
	CollectTimeout time.Duration `yaml:"collect_timeout"`

	// Textfile exposition output. Empty TextfilePath disables the writer.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	TextfilePath    string        `yaml:"textfile_path"`

	// External tool binaries.
	SmartctlPath string `yaml:"smartctl_path"`
	MegaCLIPath  string `yaml:"megacli_path"`
	PercCLIPath  string `yaml:"perccli_path"`
	IpmitoolPath string `yaml:"ipmitool_path"`

	LogLevel string `yaml:"log_level"`
}

// New returns a Config populated with defaults only.
func New() *Config {
	return &Config{
		Address:         defaults.ExporterAddress,
		Port:            defaults.ExporterPort,
		SMARTEnabled:    true,
		MegaRAIDEnabled: false,
		PercRAIDEnabled: true,
		BMCSELEnabled:   true,
		CollectTimeout:  defaults.CollectTimeout,
		RefreshInterval: defaults.RefreshInterval,
		TextfilePath:    defaults.TextfilePath,
		SmartctlPath:    defaults.SmartctlPath,
		MegaCLIPath:     defaults.MegaCLIPath,
		PercCLIPath:     defaults.PercCLIPath,
		IpmitoolPath:    defaults.IpmitoolPath,
		LogLevel:        "info",
	}
}

// Load resolves the effective configuration: defaults, then the optional
// YAML file at path (empty path skips the file), then environment
// variables. The result is validated before being returned.
func Load(path string) (*Config, error) {
	cfg := New()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile overlays values from a YAML config file.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeConfiguration, "failed to read config file", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(errors.ErrCodeConfiguration, "failed to parse config file", err)
	}
	return nil
}

// applyEnv overlays values from environment variables. Unset or malformed
// variables leave the current value in place.
func (c *Config) applyEnv() {
	if v := os.Getenv("EXPORTER_ADDRESS"); v != "" {
		c.Address = v
	}
	if v := os.Getenv("EXPORTER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		} else {
			// Preserve the bad value so validation fails loudly instead of
			// silently exporting on the default port.
			c.Port = -1
		}
	}

	envBool(&c.SMARTEnabled, "SMART_ENABLED")
	envBool(&c.MegaRAIDEnabled, "MEGA_RAID_ENABLED")
	envBool(&c.PercRAIDEnabled, "PERC_RAID_ENABLED")
	envBool(&c.BMCSELEnabled, "BMC_SEL_ENABLED")

	envDuration(&c.CollectTimeout, "COLLECT_TIMEOUT")
	envDuration(&c.RefreshInterval, "REFRESH_INTERVAL")

	if v, ok := os.LookupEnv("TEXTFILE_PATH"); ok {
		c.TextfilePath = v
	}
	if v := os.Getenv("SMARTCTL_PATH"); v != "" {
		c.SmartctlPath = v
	}
	if v := os.Getenv("MEGACLI_PATH"); v != "" {
		c.MegaCLIPath = v
	}
	if v := os.Getenv("PERCCLI_PATH"); v != "" {
		c.PercCLIPath = v
	}
	if v := os.Getenv("IPMITOOL_PATH"); v != "" {
		c.IpmitoolPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func envBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
		}
	}
}

// Validate checks the configuration for fatal errors. It is called before
// the server binds so that misconfiguration terminates startup.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return errors.NewWithContext(errors.ErrCodeConfiguration,
			fmt.Sprintf("invalid port %d, must be 1-65535", c.Port),
			map[string]any{"port": c.Port})
	}

	if c.MegaRAIDEnabled && c.PercRAIDEnabled {
		return errors.New(errors.ErrCodeConfiguration,
			"MEGA_RAID_ENABLED and PERC_RAID_ENABLED are mutually exclusive")
	}

	if c.CollectTimeout <= 0 {
		return errors.New(errors.ErrCodeConfiguration, "collect timeout must be positive")
	}

	if c.TextfilePath != "" && c.RefreshInterval <= 0 {
		return errors.New(errors.ErrCodeConfiguration, "refresh interval must be positive")
	}

	return nil
}

// ListenAddr returns the address:port string for the HTTP listener.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Address, c.Port)
}
