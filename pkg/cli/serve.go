package cli

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/hwstack/hwhealth-exporter/pkg/config"
	"github.com/hwstack/hwhealth-exporter/pkg/exporter"
	"github.com/hwstack/hwhealth-exporter/pkg/logging"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:                  "serve",
		EnableShellCompletion: true,
		Usage:                 "Run the hardware health exporter",
		Description: `Run the exporter until interrupted. Metrics are served on /metrics;
/health and /ready support liveness and readiness probes.

Configuration resolves defaults, then the optional YAML config file, then
environment variables, then command-line flags.`,
		Flags: []cli.Flag{
			configFlag,
			&cli.StringFlag{
				Name:    "address",
				Usage:   "Listen address",
				Sources: cli.EnvVars("EXPORTER_ADDRESS"),
			},
			&cli.IntFlag{
				Name:    "port",
				Usage:   "Listen port",
				Sources: cli.EnvVars("EXPORTER_PORT"),
			},
			logLevelFlag,
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			logging.SetDefaultStructuredLoggerWithLevel(name, version, cfg.LogLevel)

			return exporter.Serve(ctx, cfg, name, version)
		},
	}
}

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "Path to YAML config file",
	Sources: cli.EnvVars("EXPORTER_CONFIG"),
}

var logLevelFlag = &cli.StringFlag{
	Name:    "log-level",
	Usage:   "Log level (debug, info, warn, error)",
	Sources: cli.EnvVars("LOG_LEVEL"),
}

// loadConfig resolves the effective configuration, applying flag overrides
// on top of file and environment values.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("address") {
		cfg.Address = cmd.String("address")
	}
	if cmd.IsSet("port") {
		cfg.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
