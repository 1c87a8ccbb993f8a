package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvwait/internal/cli/connection"
	"github.com/yndnr/kvwait/internal/cli/output"
	"github.com/yndnr/kvwait/internal/cli/repl"
)

// ShellCommand returns the interactive shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Start an interactive shell over one connection",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not read or write the history file",
			},
		},
		Action: shellAction,
	}
}

func shellAction(c *cli.Context) error {
	s, err := GetSettings(c)
	if err != nil {
		return err
	}

	historyFile := s.Profile.Shell.HistoryFile
	if c.Bool("no-history") {
		historyFile = ""
	}
	history := repl.NewHistory(historyFile, s.Profile.Shell.HistorySize)
	if err := history.Load(); err != nil {
		fmt.Fprintf(stderr(c), "warning: %v\n", err)
	}

	sh := newShell(s, connection.NewManager())
	defer sh.mgr.Disconnect()

	// Connecting up front is a convenience; the shell stays usable without it.
	if err := sh.connect(c.Context, s.Server, c.App.Writer); err != nil {
		fmt.Fprintf(c.App.Writer, "error: %v\n", err)
	}

	r := repl.New(sh, shellCommands,
		repl.WithIO(os.Stdin, c.App.Writer),
		repl.WithHistory(history),
		repl.WithPrompt(sh.prompt),
	)
	runErr := r.Run(c.Context)

	if err := history.Save(); err != nil {
		fmt.Fprintf(stderr(c), "warning: %v\n", err)
	}
	return runErr
}

var shellCommands = []repl.Command{
	{Name: "connect", Usage: "connect [SERVER]           open a connection (default from profile)"},
	{Name: "disconnect", Usage: "disconnect                 send EXIT and close the connection"},
	{Name: "register", Usage: "register USER PASSWORD     create an account", Sensitive: true},
	{Name: "login", Usage: "login USER PASSWORD        authenticate this connection", Sensitive: true},
	{Name: "put", Usage: "put KEY VALUE              store a value"},
	{Name: "get", Usage: "get KEY                    read a value"},
	{Name: "mput", Usage: "mput KEY=VALUE...          store several values atomically"},
	{Name: "mget", Usage: "mget KEY...                read several values"},
	{Name: "getwhen", Usage: "getwhen KEY CK CV [WAIT]   read KEY once CK holds CV (Ctrl-C aborts)"},
	{Name: "status", Usage: "status                     show the current connection"},
}

// shell executes repl commands against one managed connection.
type shell struct {
	settings  *Settings
	mgr       *connection.Manager
	formatter output.Formatter
}

func newShell(s *Settings, mgr *connection.Manager) *shell {
	return &shell{
		settings:  s,
		mgr:       mgr,
		formatter: output.NewFormatter(s.Output),
	}
}

func (sh *shell) prompt() string {
	cur := sh.mgr.Current()
	switch {
	case cur == nil:
		return "kvwait(disconnected)> "
	case cur.User == "":
		return fmt.Sprintf("kvwait(%s)> ", cur.Server)
	default:
		return fmt.Sprintf("kvwait(%s@%s)> ", cur.User, cur.Server)
	}
}

// Execute implements repl.Executor.
func (sh *shell) Execute(ctx context.Context, args []string, out io.Writer) error {
	name, args := args[0], args[1:]

	switch name {
	case "connect":
		server := sh.settings.Server
		if len(args) > 0 {
			server = args[0]
		}
		return sh.connect(ctx, server, out)

	case "disconnect":
		if !sh.mgr.IsConnected() {
			return connection.ErrNotConnected
		}
		sh.mgr.Disconnect()
		fmt.Fprintln(out, "disconnected")
		return nil

	case "status":
		cur := sh.mgr.Current()
		if cur == nil {
			return connection.ErrNotConnected
		}
		return sh.formatter.Format(out, cur)

	case "login":
		if len(args) != 2 {
			return errors.New("usage: login USER PASSWORD")
		}
		ok, err := sh.mgr.Login(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("login failed")
		}
		fmt.Fprintf(out, "logged in as %s\n", args[0])
		return nil
	}

	client, err := sh.mgr.Client()
	if err != nil {
		return err
	}

	switch name {
	case "register":
		if len(args) != 2 {
			return errors.New("usage: register USER PASSWORD")
		}
		ok, err := client.Register(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		return sh.formatter.Format(out, RegisterResult{User: args[0], Registered: ok})

	case "put":
		if len(args) != 2 {
			return errors.New("usage: put KEY VALUE")
		}
		ok, err := client.Put(ctx, args[0], []byte(args[1]))
		if err != nil {
			return err
		}
		return sh.formatter.Format(out, PutResult{Key: args[0], Value: args[1], Stored: ok})

	case "get":
		if len(args) != 1 {
			return errors.New("usage: get KEY")
		}
		v, found, err := client.Get(ctx, args[0])
		if err != nil {
			return err
		}
		return sh.formatter.Format(out, getResult(args[0], v, found))

	case "mput":
		pairs, err := parsePairs(args)
		if err != nil {
			return err
		}
		ok, err := client.MultiPut(ctx, pairs)
		if err != nil {
			return err
		}
		results := make([]PutResult, len(pairs))
		for i, p := range pairs {
			results[i] = PutResult{Key: p.Key, Value: string(p.Value), Stored: ok}
		}
		return sh.formatter.Format(out, results)

	case "mget":
		if len(args) == 0 {
			return errors.New("usage: mget KEY...")
		}
		pairs, err := client.MultiGet(ctx, args)
		if err != nil {
			return err
		}
		return sh.formatter.Format(out, mergeMultiGet(args, pairs))

	case "getwhen":
		return sh.getWhen(ctx, client, args, out)
	}

	return fmt.Errorf("unknown command %q", name)
}

func (sh *shell) connect(ctx context.Context, server string, out io.Writer) error {
	if err := sh.mgr.Connect(ctx, server); err != nil {
		return err
	}
	fmt.Fprintf(out, "connected to %s\n", server)

	if sh.settings.User == "" {
		return nil
	}
	ok, err := sh.mgr.Login(ctx, sh.settings.User, sh.settings.Password)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("login failed for user %q", sh.settings.User)
	}
	fmt.Fprintf(out, "logged in as %s\n", sh.settings.User)
	return nil
}

// getWhen blocks until the condition holds, Ctrl-C is pressed or the
// optional wait elapses. An abandoned wait also drops the connection.
func (sh *shell) getWhen(ctx context.Context, client *connection.Client, args []string, out io.Writer) error {
	if len(args) != 3 && len(args) != 4 {
		return errors.New("usage: getwhen KEY COND_KEY COND_VALUE [WAIT]")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if len(args) == 4 {
		wait, err := time.ParseDuration(args[3])
		if err != nil {
			return fmt.Errorf("invalid wait %q: %w", args[3], err)
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}

	v, found, err := client.GetWhen(ctx, args[0], args[1], []byte(args[2]))
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("wait abandoned, connection closed; use connect to reopen: %w", err)
		}
		return err
	}
	return sh.formatter.Format(out, getResult(args[0], v, found))
}

