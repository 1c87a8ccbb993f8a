package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Executor runs one shell command.
type Executor interface {
	Execute(ctx context.Context, args []string, out io.Writer) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, args []string, out io.Writer) error

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, args []string, out io.Writer) error {
	return f(ctx, args, out)
}

// Command documents one executor command for help and completion.
type Command struct {
	Name  string
	Usage string

	// Sensitive lines carry secrets and are kept out of the history.
	Sensitive bool
}

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	input     io.Reader
	output    io.Writer
	exec      Executor
	commands  []Command
	completer *Completer
	history   *History
	prompt    func() string
}

// Option configures a REPL.
type Option func(*REPL)

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(r *REPL) {
		r.input = in
		r.output = out
	}
}

// WithHistory sets the history store.
func WithHistory(h *History) Option {
	return func(r *REPL) {
		r.history = h
	}
}

// WithPrompt sets a prompt function evaluated before every line.
func WithPrompt(prompt func() string) Option {
	return func(r *REPL) {
		r.prompt = prompt
	}
}

// New creates a new REPL that dispatches to exec. commands lists what exec
// understands.
func New(exec Executor, commands []Command, opts ...Option) *REPL {
	names := make([]string, 0, len(commands)+len(builtins))
	for _, c := range commands {
		names = append(names, c.Name)
	}
	for _, b := range builtins {
		names = append(names, b.Name)
	}

	r := &REPL{
		input:     os.Stdin,
		output:    os.Stdout,
		exec:      exec,
		commands:  commands,
		completer: NewCompleter(names),
		history:   NewHistory("", 1000),
		prompt:    func() string { return "kvwait> " },
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

var builtins = []Command{
	{Name: "help", Usage: "help                       show this list"},
	{Name: "history", Usage: "history                    show previous commands"},
	{Name: "exit", Usage: "exit | quit                leave the shell"},
	{Name: "quit"},
}

// Run starts the REPL loop. It returns nil on exit, quit or end of input,
// and ctx.Err() if ctx ends between commands.
func (r *REPL) Run(ctx context.Context) error {
	reader := bufio.NewReader(r.input)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(r.output, r.prompt())

		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		eof := errors.Is(err, io.EOF)

		line = strings.TrimSpace(line)
		if line == "" {
			if eof {
				fmt.Fprintln(r.output)
				return nil
			}
			continue
		}

		args, perr := Split(line)
		if perr == nil && !r.sensitive(args[0]) {
			r.history.Add(line)
		}
		switch {
		case perr != nil:
			fmt.Fprintf(r.output, "error: %v\n", perr)
		case args[0] == "exit" || args[0] == "quit":
			return nil
		case args[0] == "help":
			r.printHelp()
		case args[0] == "history":
			for i, entry := range r.history.Entries() {
				fmt.Fprintf(r.output, "%4d  %s\n", i+1, entry)
			}
		case !r.known(args[0]):
			r.printUnknown(args[0])
		default:
			if err := r.exec.Execute(ctx, args, r.output); err != nil {
				fmt.Fprintf(r.output, "error: %v\n", err)
			}
		}

		if eof {
			return nil
		}
	}
}

func (r *REPL) sensitive(name string) bool {
	for _, c := range r.commands {
		if c.Name == name {
			return c.Sensitive
		}
	}
	return false
}

func (r *REPL) known(name string) bool {
	for _, c := range r.commands {
		if c.Name == name {
			return true
		}
	}
	return false
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.output, "commands:")
	for _, c := range r.commands {
		fmt.Fprintf(r.output, "  %s\n", c.Usage)
	}
	for _, b := range builtins {
		if b.Usage != "" {
			fmt.Fprintf(r.output, "  %s\n", b.Usage)
		}
	}
}

func (r *REPL) printUnknown(name string) {
	fmt.Fprintf(r.output, "unknown command %q", name)
	if s := r.completer.Complete(name); len(s) > 0 {
		fmt.Fprintf(r.output, " (did you mean: %s)", strings.Join(s, ", "))
	}
	fmt.Fprintln(r.output, "; type help for a list")
}

// Split breaks a line into words. Double quotes group words; inside them
// \" and \\ are escapes.
func Split(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		inWord  bool
	)

	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case inQuote && ch == '\\' && i+1 < len(line) && (line[i+1] == '"' || line[i+1] == '\\'):
			i++
			cur.WriteByte(line[i])
		case ch == '"':
			inQuote = !inQuote
			inWord = true
		case !inQuote && (ch == ' ' || ch == '\t'):
			if inWord {
				args = append(args, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteByte(ch)
			inWord = true
		}
	}

	if inQuote {
		return nil, errors.New("unterminated quote")
	}
	if inWord {
		args = append(args, cur.String())
	}
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}
	return args, nil
}
