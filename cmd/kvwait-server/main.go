package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvwait/internal/infra/buildinfo"
	"github.com/yndnr/kvwait/internal/server/config"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "kvwait-server",
		Usage:     "key-value server with conditional blocking reads",
		ArgsUsage: "MAX_SESSIONS",
		Version:   buildinfo.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				EnvVars: []string{config.EnvPrefix + "CONFIG"},
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Protocol listen address (default \":8080\")",
			},
			&cli.StringFlag{
				Name:  "admin-addr",
				Usage: "Enable the admin HTTP listener on this address",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log format: json, text",
			},
			&cli.DurationFlag{
				Name:  "idle-timeout",
				Usage: "Close connections idle this long (0 disables)",
			},
			&cli.IntFlag{
				Name:  "rate-limit",
				Usage: "Commands per second per connection (0 disables)",
			},
		},
		Action: func(c *cli.Context) error {
			overrides, err := overridesFrom(c)
			if err != nil {
				return err
			}

			cfg, err := config.Load(c.String("config"), overrides)
			if err != nil {
				return err
			}

			inst, err := start(c.Context, cfg, c.String("config"), overrides)
			if err != nil {
				return err
			}
			return inst.wait(c.Context)
		},
	}
}

// overridesFrom turns the positional argument and explicitly set flags
// into dotted configuration keys.
func overridesFrom(c *cli.Context) (map[string]any, error) {
	overrides := make(map[string]any)

	switch c.NArg() {
	case 0:
		// MAX_SESSIONS may come from the file or the environment.
	case 1:
		n, err := strconv.Atoi(c.Args().First())
		if err != nil {
			return nil, fmt.Errorf("MAX_SESSIONS must be an integer, got %q", c.Args().First())
		}
		overrides["server.max_sessions"] = n
	default:
		return nil, errors.New("too many arguments; usage: kvwait-server [flags] MAX_SESSIONS")
	}

	if c.IsSet("addr") {
		overrides["server.addr"] = c.String("addr")
	}
	if c.IsSet("admin-addr") {
		overrides["admin.enabled"] = true
		overrides["admin.addr"] = c.String("admin-addr")
	}
	if c.IsSet("log-level") {
		overrides["log.level"] = c.String("log-level")
	}
	if c.IsSet("log-format") {
		overrides["log.format"] = c.String("log-format")
	}
	if c.IsSet("idle-timeout") {
		overrides["server.idle_timeout"] = c.Duration("idle-timeout")
	}
	if c.IsSet("rate-limit") {
		overrides["server.rate_limit"] = c.Int("rate-limit")
	}
	return overrides, nil
}
