package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yndnr/kvwait/internal/core/domain"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
server:
  addr: "127.0.0.1:7000"
  max_sessions: 3
  idle_timeout: 90s
log:
  level: debug
`)
	t.Setenv("KVWAIT_SERVER_RATE_LIMIT", "50")

	cfg, err := Load(path, map[string]any{"server.max_sessions": 8})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:7000" {
		t.Errorf("Addr = %q, want 127.0.0.1:7000", cfg.Server.Addr)
	}
	if cfg.Server.MaxSessions != 8 {
		t.Errorf("MaxSessions = %d, want 8 (override wins)", cfg.Server.MaxSessions)
	}
	if cfg.Server.IdleTimeout != 90*time.Second {
		t.Errorf("IdleTimeout = %v, want 90s", cfg.Server.IdleTimeout)
	}
	if cfg.Server.RateLimit != 50 {
		t.Errorf("RateLimit = %d, want 50", cfg.Server.RateLimit)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Server.ReadTimeout != DefaultReadTimeout {
		t.Errorf("ReadTimeout = %v, want default %v", cfg.Server.ReadTimeout, DefaultReadTimeout)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("", map[string]any{"server.max_sessions": 2})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != DefaultAddr {
		t.Errorf("Addr = %q, want %q", cfg.Server.Addr, DefaultAddr)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		overrides map[string]any
	}{
		{name: "missing max sessions", content: "log:\n  level: info\n"},
		{name: "bad level", content: "log:\n  level: loud\n", overrides: map[string]any{"server.max_sessions": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.content), tt.overrides)
			if !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	if err == nil {
		t.Fatal("Load() should fail for a missing file")
	}
}
