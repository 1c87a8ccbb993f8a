package command

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvwait/internal/cli/config"
	"github.com/yndnr/kvwait/internal/cli/output"
	serverconfig "github.com/yndnr/kvwait/internal/server/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management",
		Subcommands: []*cli.Command{
			{
				Name:  "cli",
				Usage: "CLI profile",
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Show the effective profile (password redacted)",
						Action: configCLIShow,
					},
					{
						Name:  "init",
						Usage: "Write the effective settings to the profile file",
						Flags: []cli.Flag{
							&cli.BoolFlag{
								Name:    "force",
								Aliases: []string{"f"},
								Usage:   "Overwrite an existing profile",
							},
						},
						Action: configCLIInit,
					},
				},
			},
			{
				Name:  "server",
				Usage: "Server configuration",
				Subcommands: []*cli.Command{
					{
						Name:      "test",
						Usage:     "Validate a server configuration file",
						ArgsUsage: "FILE",
						Flags: []cli.Flag{
							&cli.IntFlag{
								Name:  "max-sessions",
								Usage: "MAX_SESSIONS the server would be started with",
							},
						},
						Action: configServerTest,
					},
				},
			},
		},
	}
}

// effectiveProfile merges flag values into the loaded profile.
func effectiveProfile(s *Settings) *config.CLIConfig {
	p := *s.Profile
	p.Connection.Server = s.Server
	p.Connection.Admin = s.Admin
	p.Connection.User = s.User
	p.Connection.Password = s.Password
	p.Output.Format = string(s.Output)
	return &p
}

func configCLIShow(c *cli.Context) error {
	s, err := GetSettings(c)
	if err != nil {
		return err
	}

	format := s.Output
	if format == output.FormatTable {
		format = output.FormatYAML
	}

	fmt.Fprintf(stderr(c), "# profile: %s\n", s.ConfigPath)
	return output.NewFormatter(format).Format(c.App.Writer, effectiveProfile(s).Redacted())
}

func configCLIInit(c *cli.Context) error {
	s, err := GetSettings(c)
	if err != nil {
		return err
	}

	if _, err := os.Stat(s.ConfigPath); err == nil && !c.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", s.ConfigPath)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if err := config.Save(effectiveProfile(s), s.ConfigPath); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote %s\n", s.ConfigPath)
	return nil
}

func configServerTest(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("configuration file path required")
	}

	var overrides map[string]any
	if c.IsSet("max-sessions") {
		overrides = map[string]any{"server.max_sessions": c.Int("max-sessions")}
	}

	cfg, err := serverconfig.Load(path, overrides)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s: ok (addr %s, max_sessions %d)\n", path, cfg.Server.Addr, cfg.Server.MaxSessions)
	return nil
}
