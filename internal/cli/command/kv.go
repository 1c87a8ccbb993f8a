package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvwait/internal/cli/connection"
	"github.com/yndnr/kvwait/internal/cli/output"
	"github.com/yndnr/kvwait/internal/wire"
)

// RegisterResult is the outcome of REGISTER.
type RegisterResult struct {
	User       string `json:"user" yaml:"user"`
	Registered bool   `json:"registered" yaml:"registered"`
}

// PutResult is the outcome of PUT or one MULTIPUT pair.
type PutResult struct {
	Key    string `json:"key" yaml:"key"`
	Value  string `json:"value" yaml:"value"`
	Stored bool   `json:"stored" yaml:"stored"`
}

// GetResult is the outcome of a read for one key.
type GetResult struct {
	Key   string `json:"key" yaml:"key"`
	Found bool   `json:"found" yaml:"found"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
}

func getResult(key string, v []byte, found bool) GetResult {
	r := GetResult{Key: key, Found: found}
	if found {
		r.Value = output.FormatBytes(v)
	}
	return r
}

// RegisterCommand returns the register command.
func RegisterCommand() *cli.Command {
	return &cli.Command{
		Name:      "register",
		Usage:     "Create an account",
		ArgsUsage: "[USER [PASSWORD]]",
		Description: "Registers USER with PASSWORD, defaulting to --user and --password.\n" +
			"Registration does not log the connection in.",
		Action: registerAction,
	}
}

func registerAction(c *cli.Context) error {
	s, err := GetSettings(c)
	if err != nil {
		return err
	}

	user, password := s.User, s.Password
	if c.NArg() > 0 {
		user = c.Args().Get(0)
	}
	if c.NArg() > 1 {
		password = c.Args().Get(1)
	}
	if user == "" {
		return errors.New("a user is required")
	}

	client, err := connection.Dial(c.Context, s.Server)
	if err != nil {
		return err
	}
	defer client.Exit()

	ok, err := client.Register(c.Context, user, password)
	if err != nil {
		return err
	}
	if err := render(c, s, RegisterResult{User: user, Registered: ok}); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("user %q is already registered", user)
	}
	return nil
}

// PutCommand returns the put command.
func PutCommand() *cli.Command {
	return &cli.Command{
		Name:      "put",
		Usage:     "Store a value",
		ArgsUsage: "KEY VALUE",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return errors.New("put requires KEY and VALUE")
			}
			key, value := c.Args().Get(0), c.Args().Get(1)

			return withSession(c, func(ctx context.Context, s *Settings, client *connection.Client) error {
				ok, err := client.Put(ctx, key, []byte(value))
				if err != nil {
					return err
				}
				return render(c, s, PutResult{Key: key, Value: value, Stored: ok})
			})
		},
	}
}

// GetCommand returns the get command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Read a value",
		ArgsUsage: "KEY",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("get requires KEY")
			}
			key := c.Args().First()

			return withSession(c, func(ctx context.Context, s *Settings, client *connection.Client) error {
				v, found, err := client.Get(ctx, key)
				if err != nil {
					return err
				}
				return render(c, s, getResult(key, v, found))
			})
		},
	}
}

// MultiPutCommand returns the mput command.
func MultiPutCommand() *cli.Command {
	return &cli.Command{
		Name:      "mput",
		Usage:     "Store several values atomically",
		ArgsUsage: "KEY=VALUE...",
		Action: func(c *cli.Context) error {
			pairs, err := parsePairs(c.Args().Slice())
			if err != nil {
				return err
			}

			return withSession(c, func(ctx context.Context, s *Settings, client *connection.Client) error {
				ok, err := client.MultiPut(ctx, pairs)
				if err != nil {
					return err
				}
				results := make([]PutResult, len(pairs))
				for i, p := range pairs {
					results[i] = PutResult{Key: p.Key, Value: string(p.Value), Stored: ok}
				}
				return render(c, s, results)
			})
		},
	}
}

// MultiGetCommand returns the mget command.
func MultiGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "mget",
		Usage:     "Read several values",
		ArgsUsage: "KEY...",
		Action: func(c *cli.Context) error {
			keys := c.Args().Slice()
			if len(keys) == 0 {
				return errors.New("mget requires at least one KEY")
			}

			return withSession(c, func(ctx context.Context, s *Settings, client *connection.Client) error {
				pairs, err := client.MultiGet(ctx, keys)
				if err != nil {
					return err
				}
				return render(c, s, mergeMultiGet(keys, pairs))
			})
		},
	}
}

// GetWhenCommand returns the getwhen command.
func GetWhenCommand() *cli.Command {
	return &cli.Command{
		Name:      "getwhen",
		Usage:     "Read a value once another key holds a given value",
		ArgsUsage: "KEY COND_KEY COND_VALUE",
		Description: "Blocks until COND_KEY holds exactly COND_VALUE, then prints KEY.\n" +
			"With --timeout the wait is abandoned after the given duration.",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "Give up after this long (0 waits forever)",
			},
		},
		Action: getWhenAction,
	}
}

func getWhenAction(c *cli.Context) error {
	if c.NArg() != 3 {
		return errors.New("getwhen requires KEY, COND_KEY and COND_VALUE")
	}
	key, condKey, condValue := c.Args().Get(0), c.Args().Get(1), c.Args().Get(2)
	timeout := c.Duration("timeout")

	return withSession(c, func(ctx context.Context, s *Settings, client *connection.Client) error {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		spinner := output.NewSpinner(stderr(c), fmt.Sprintf("waiting for %s = %s", condKey, condValue))
		spinner.Start()
		start := time.Now()

		v, found, err := client.GetWhen(ctx, key, condKey, []byte(condValue))
		if err != nil {
			spinner.Fail(err.Error())
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("getwhen: condition not met within %s", timeout)
			}
			return err
		}
		spinner.Success(fmt.Sprintf("condition met after %s", time.Since(start).Round(time.Millisecond)))

		return render(c, s, getResult(key, v, found))
	})
}

// parsePairs parses KEY=VALUE arguments. The value may contain '='.
func parsePairs(args []string) ([]wire.Pair, error) {
	if len(args) == 0 {
		return nil, errors.New("at least one KEY=VALUE is required")
	}

	pairs := make([]wire.Pair, 0, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid pair %q: want KEY=VALUE", arg)
		}
		pairs = append(pairs, wire.Pair{Key: key, Value: []byte(value)})
	}
	return pairs, nil
}

// mergeMultiGet lists every requested key once, in request order, marking
// the ones the server did not return as not found.
func mergeMultiGet(keys []string, pairs []wire.Pair) []GetResult {
	found := make(map[string][]byte, len(pairs))
	for _, p := range pairs {
		found[p.Key] = p.Value
	}

	seen := make(map[string]struct{}, len(keys))
	results := make([]GetResult, 0, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		v, ok := found[k]
		results = append(results, getResult(k, v, ok))
	}
	return results
}
