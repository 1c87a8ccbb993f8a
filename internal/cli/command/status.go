package command

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvwait/internal/cli/connection"
)

// StatusReport combines the admin endpoint answers.
type StatusReport struct {
	Admin   string `json:"admin" yaml:"admin"`
	Health  string `json:"health" yaml:"health"`
	Ready   string `json:"ready" yaml:"ready"`
	Version string `json:"version" yaml:"version"`
}

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Query the server admin endpoint",
		Description: "Reads /health, /ready and /status from the admin HTTP listener\n" +
			"(--admin, default from profile). The listener must be enabled on the server.",
		Subcommands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show live server counters",
				Action: statusStatsAction,
			},
		},
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	s, err := GetSettings(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
	defer cancel()

	client := connection.NewAdminClient(s.Admin)

	health, err := client.Health(ctx)
	if err != nil {
		return err
	}
	ready, err := client.Ready(ctx)
	if err != nil {
		return err
	}

	return render(c, s, StatusReport{
		Admin:   client.BaseURL(),
		Health:  health.Status,
		Ready:   ready.Status,
		Version: health.Version,
	})
}

func statusStatsAction(c *cli.Context) error {
	s, err := GetSettings(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
	defer cancel()

	stats, err := connection.NewAdminClient(s.Admin).Status(ctx)
	if err != nil {
		return err
	}
	return render(c, s, stats)
}
