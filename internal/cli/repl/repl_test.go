package repl

import (
	"bytes"
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
)

type recordingExec struct {
	calls [][]string
	err   error
}

func (e *recordingExec) Execute(_ context.Context, args []string, out io.Writer) error {
	e.calls = append(e.calls, args)
	if e.err != nil {
		return e.err
	}
	io.WriteString(out, "ran "+args[0]+"\n")
	return nil
}

var testCommands = []Command{
	{Name: "get", Usage: "get KEY"},
	{Name: "put", Usage: "put KEY VALUE"},
	{Name: "login", Usage: "login USER PASSWORD", Sensitive: true},
}

func run(t *testing.T, exec Executor, input string) (string, *History) {
	t.Helper()
	var out bytes.Buffer
	h := NewHistory("", 10)
	r := New(exec, testCommands, WithIO(strings.NewReader(input), &out), WithHistory(h))
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return out.String(), h
}

func TestREPL_Run_Exit(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"exit command", "exit\n"},
		{"quit command", "quit\n"},
		{"EOF", ""},
		{"EOF after blank lines", "\n\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &recordingExec{}
			run(t, exec, tt.input)
			if len(exec.calls) != 0 {
				t.Errorf("executor called %d times", len(exec.calls))
			}
		})
	}
}

func TestREPL_Dispatch(t *testing.T) {
	exec := &recordingExec{}
	out, h := run(t, exec, "put k \"hello world\"\nget k\nexit\nget never\n")

	want := [][]string{{"put", "k", "hello world"}, {"get", "k"}}
	if !reflect.DeepEqual(exec.calls, want) {
		t.Errorf("calls = %q, want %q", exec.calls, want)
	}
	if !strings.Contains(out, "ran put") || !strings.Contains(out, "kvwait> ") {
		t.Errorf("output = %q", out)
	}
	if h.Len() != 3 {
		t.Errorf("history length = %d, want 3", h.Len())
	}
}

func TestREPL_LastLineWithoutNewline(t *testing.T) {
	exec := &recordingExec{}
	run(t, exec, "get k")
	if len(exec.calls) != 1 {
		t.Errorf("calls = %v, want one", exec.calls)
	}
}

func TestREPL_ExecutorError(t *testing.T) {
	exec := &recordingExec{err: errors.New("not connected")}
	out, _ := run(t, exec, "get k\n")
	if !strings.Contains(out, "error: not connected") {
		t.Errorf("output = %q", out)
	}
}

func TestREPL_Builtins(t *testing.T) {
	exec := &recordingExec{}
	out, _ := run(t, exec, "help\nget a\nhistory\ngetx\n\"unterminated\n")

	for _, want := range []string{
		"put KEY VALUE",
		"exit | quit",
		"   2  get a",
		`unknown command "getx" (did you mean: get)`,
		"error: unterminated quote",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if len(exec.calls) != 1 {
		t.Errorf("calls = %v, want only get", exec.calls)
	}
}

func TestREPL_SensitiveNotRecorded(t *testing.T) {
	exec := &recordingExec{}
	_, h := run(t, exec, "login alice secret\nget k\n")
	for _, e := range h.Entries() {
		if strings.Contains(e, "secret") {
			t.Errorf("history recorded %q", e)
		}
	}
	if len(exec.calls) != 2 {
		t.Errorf("calls = %v", exec.calls)
	}
}

func TestREPL_Prompt(t *testing.T) {
	var out bytes.Buffer
	r := New(&recordingExec{}, testCommands,
		WithIO(strings.NewReader("exit\n"), &out),
		WithPrompt(func() string { return "custom$ " }),
	)
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "custom$ ") {
		t.Errorf("output = %q", out.String())
	}
}

func TestREPL_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New(&recordingExec{}, testCommands, WithIO(strings.NewReader("get k\n"), io.Discard))
	if err := r.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		line    string
		want    []string
		wantErr bool
	}{
		{"get k", []string{"get", "k"}, false},
		{"  put   k   v  ", []string{"put", "k", "v"}, false},
		{`put k "two words"`, []string{"put", "k", "two words"}, false},
		{`put k ""`, []string{"put", "k", ""}, false},
		{`put k "say \"hi\""`, []string{"put", "k", `say "hi"`}, false},
		{`put k "back\\slash"`, []string{"put", "k", `back\slash`}, false},
		{"put\tk\tv", []string{"put", "k", "v"}, false},
		{`put k "open`, nil, true},
		{"   ", nil, true},
	}

	for _, tt := range tests {
		got, err := Split(tt.line)
		if (err != nil) != tt.wantErr {
			t.Errorf("Split(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Split(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}
