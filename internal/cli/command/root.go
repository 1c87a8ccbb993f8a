package command

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvwait/internal/cli/config"
	"github.com/yndnr/kvwait/internal/cli/connection"
	"github.com/yndnr/kvwait/internal/cli/output"
	"github.com/yndnr/kvwait/internal/infra/buildinfo"
)

const settingsKey = "settings"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "kvwait-cli",
		Usage:   "kvwait command-line client",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			RegisterCommand(),
			PutCommand(),
			GetCommand(),
			MultiPutCommand(),
			MultiGetCommand(),
			GetWhenCommand(),
			BatchCommand(),
			ShellCommand(),
			StatusCommand(),
			ConfigCommand(),
		},
		Before: func(c *cli.Context) error {
			s, err := resolveSettings(c)
			if err != nil {
				return err
			}
			if c.App.Metadata == nil {
				c.App.Metadata = make(map[string]any)
			}
			c.App.Metadata[settingsKey] = s
			return nil
		},
	}
}

// globalFlags returns the global CLI flags. Unset flags fall back to the
// profile, then to built-in defaults.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "kvwait server address (e.g., localhost:8080)",
			EnvVars: []string{config.EnvPrefix + "SERVER"},
		},
		&cli.StringFlag{
			Name:    "user",
			Aliases: []string{"u"},
			Usage:   "Username to log in as",
			EnvVars: []string{config.EnvPrefix + "USER"},
		},
		&cli.StringFlag{
			Name:    "password",
			Aliases: []string{"p"},
			Usage:   "Password for --user",
			EnvVars: []string{config.EnvPrefix + "PASSWORD"},
		},
		&cli.StringFlag{
			Name:    "admin",
			Usage:   "Admin HTTP address (e.g., localhost:9090)",
			EnvVars: []string{config.EnvPrefix + "ADMIN"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Profile path (default ~/.kvwait/cli.yaml)",
		},
	}
}

// Settings are the effective connection and output settings of a run.
type Settings struct {
	Server   string
	Admin    string
	User     string
	Password string
	Output   output.Format

	ConfigPath string
	Profile    *config.CLIConfig
}

func resolveSettings(c *cli.Context) (*Settings, error) {
	path := c.String("config")
	if path == "" {
		path = config.DefaultConfigPath()
	}

	profile, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	pick := func(flag, fallback string) string {
		if v := c.String(flag); v != "" {
			return v
		}
		return fallback
	}

	format, err := output.ParseFormat(pick("output", profile.Output.Format))
	if err != nil {
		return nil, err
	}

	return &Settings{
		Server:     pick("server", profile.Connection.Server),
		Admin:      pick("admin", profile.Connection.Admin),
		User:       pick("user", profile.Connection.User),
		Password:   pick("password", profile.Connection.Password),
		Output:     format,
		ConfigPath: path,
		Profile:    profile,
	}, nil
}

// GetSettings returns the settings resolved by the Before hook.
func GetSettings(c *cli.Context) (*Settings, error) {
	if s, ok := c.App.Metadata[settingsKey].(*Settings); ok {
		return s, nil
	}
	return resolveSettings(c)
}

// render writes data to the app writer in the configured format.
func render(c *cli.Context, s *Settings, data any) error {
	return output.NewFormatter(s.Output).Format(c.App.Writer, data)
}

func stderr(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

// withSession dials the server, logs in and runs fn, then sends EXIT.
// Dial returns as soon as TCP connects; when the server is at its session
// limit the login call waits for a slot.
func withSession(c *cli.Context, fn func(ctx context.Context, s *Settings, client *connection.Client) error) error {
	s, err := GetSettings(c)
	if err != nil {
		return err
	}
	if s.User == "" {
		return fmt.Errorf("a user is required: pass --user or set connection.user in %s", s.ConfigPath)
	}

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := connection.Dial(ctx, s.Server)
	if err != nil {
		return err
	}
	defer client.Exit()

	ok, err := client.Login(ctx, s.User, s.Password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if !ok {
		return fmt.Errorf("login failed for user %q", s.User)
	}

	return fn(ctx, s, client)
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
