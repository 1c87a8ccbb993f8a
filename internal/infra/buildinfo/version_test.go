package buildinfo

import (
	"runtime"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()

	if info.Version == "" {
		t.Error("Version should not be empty")
	}
	if info.Commit == "" {
		t.Error("Commit should not be empty")
	}
	if info.BuildTime == "" {
		t.Error("BuildTime should not be empty")
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
}

func TestGet_InjectedValues(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	defer func() { Version, Commit = oldVersion, oldCommit }()

	Version = "v1.2.3"
	Commit = "abc123"

	info := Get()
	if info.Version != "v1.2.3" {
		t.Errorf("Version = %q, want v1.2.3", info.Version)
	}
	if info.Commit != "abc123" {
		t.Errorf("Commit = %q, want abc123", info.Commit)
	}
}

func TestString(t *testing.T) {
	s := String()
	if !strings.Contains(s, Get().Version) {
		t.Errorf("String() = %q, should contain version", s)
	}
	if !strings.Contains(s, "built at") {
		t.Errorf("String() = %q, should contain 'built at'", s)
	}
}
