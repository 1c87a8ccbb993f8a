package command

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvwait/internal/server/admission"
	"github.com/yndnr/kvwait/internal/server/kvserver"
	"github.com/yndnr/kvwait/internal/storage/memory"
)

const (
	testUser     = "alice"
	testPassword = "s3cret"
)

// testServer is a live kvwait server with one registered user.
type testServer struct {
	store *memory.Store
	addr  string
}

func startServer(t *testing.T) *testServer {
	t.Helper()

	gate, err := admission.New(4)
	if err != nil {
		t.Fatalf("admission.New() error = %v", err)
	}
	store := memory.New()
	if ok, err := store.RegisterUser(testUser, testPassword); err != nil || !ok {
		t.Fatalf("RegisterUser() = %v, %v", ok, err)
	}

	cfg := kvserver.DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	srv := kvserver.New(cfg, store, gate)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	return &testServer{store: store, addr: srv.Addr().String()}
}

// runApp runs the CLI with a private, initially absent profile.
func runApp(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	return runAppWithProfile(t, filepath.Join(t.TempDir(), "cli.yaml"), args...)
}

func runAppWithProfile(t *testing.T, profile string, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	var out, errOut bytes.Buffer
	app := App()
	app.Writer = &out
	app.ErrWriter = &errOut
	app.ExitErrHandler = func(*cli.Context, error) {}

	full := append([]string{"kvwait-cli", "--config", profile}, args...)
	err = app.Run(full)
	return out.String(), errOut.String(), err
}

// loggedIn prefixes args with the server address and test credentials.
func (ts *testServer) loggedIn(args ...string) []string {
	return append([]string{"-s", ts.addr, "-u", testUser, "-p", testPassword, "-o", "json"}, args...)
}

func decodeJSON(t *testing.T, s string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(s), v); err != nil {
		t.Fatalf("decode %q: %v", s, err)
	}
}

// mockAdmin serves canned admin endpoint responses.
func mockAdmin(t *testing.T, ready bool) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{"status": "healthy", "version": "v1.2.3"})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if !ready {
			jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]any{"keys": 3, "active_sessions": 1})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// jsonResponse writes a JSON response.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func wantErrContains(t *testing.T, err error, substr string) {
	t.Helper()
	if err == nil {
		t.Fatalf("error = nil, want one containing %q", substr)
	}
	if !strings.Contains(err.Error(), substr) {
		t.Fatalf("error = %q, want it to contain %q", err, substr)
	}
}

// probeCommand captures the resolved settings.
func probeCommand(dst **Settings) *cli.Command {
	return &cli.Command{
		Name: "probe",
		Action: func(c *cli.Context) error {
			s, err := GetSettings(c)
			*dst = s
			return err
		},
	}
}
