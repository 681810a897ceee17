package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInit_CreatesLogDirectory(t *testing.T) {
	base := t.TempDir()
	t.Cleanup(func() { Logger = nil })

	if err := Init(Config{BaseDir: base}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "logs")); err != nil {
		t.Fatalf("log directory missing: %v", err)
	}
	if Logger == nil {
		t.Fatal("Logger is nil after Init")
	}

	Info("board loaded", "tasks", 3)
	Warn("store slow")
}

func TestInit_DebugMirrorsToStderr(t *testing.T) {
	base := t.TempDir()
	t.Cleanup(func() { Logger = nil })

	var buf bytes.Buffer
	if err := Init(Config{BaseDir: base, Debug: true, Stderr: &buf}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Debug("drag started", "task", "T1")

	if !strings.Contains(buf.String(), "drag started") {
		t.Errorf("expected debug line on stderr mirror, got %q", buf.String())
	}
}

func TestHelpers_WithoutInit(t *testing.T) {
	Logger = nil

	Debug("a")
	Info("b")
	Warn("c")
	Error("d")

	if Named("repo") == nil {
		t.Fatal("Named returned nil before Init")
	}
}

func TestLogFile(t *testing.T) {
	got := LogFile("/srv/join")
	want := filepath.Join("/srv/join", "logs", "join.log")
	if got != want {
		t.Errorf("LogFile = %q, want %q", got, want)
	}
}
