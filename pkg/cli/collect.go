package cli

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/hwstack/hwhealth-exporter/pkg/errors"
	"github.com/hwstack/hwhealth-exporter/pkg/exporter"
	"github.com/hwstack/hwhealth-exporter/pkg/logging"
)

func collectCmd() *cli.Command {
	return &cli.Command{
		Name:                  "collect",
		EnableShellCompletion: true,
		Usage:                 "Run all enabled collectors once and print the metrics",
		Description: `Run one collection pass against the local hardware and print the result
in Prometheus text exposition format. Collector toggles, tool paths, and
timeouts resolve exactly as they do for serve, so the output matches what
a scrape of /metrics would return.

# Examples

Print to stdout:
  hwhealthd collect

Write to a textfile collector directory:
  hwhealthd collect --output /var/lib/node_exporter/disk_exporter.prom`,
		Flags: []cli.Flag{
			configFlag,
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path (default: stdout)",
			},
			logLevelFlag,
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			logging.SetDefaultStructuredLoggerWithLevel(name, version, cfg.LogLevel)

			out := os.Stdout
			if path := cmd.String("output"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return errors.Wrap(errors.ErrCodeInternal, "failed to create output file", err)
				}
				defer f.Close()
				out = f
			}

			return exporter.CollectOnce(ctx, cfg, out)
		},
	}
}
