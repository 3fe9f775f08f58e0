package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_CreatesLevelFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	l, err := New(dir, "info")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	l.Info("hello %s", "info")
	l.Warning("careful %d", 1)
	l.Error("broken: %v", os.ErrNotExist)

	for name, want := range map[string]string{
		"info.log":    "hello info",
		"warning.log": "careful 1",
		"error.log":   "broken: file does not exist",
	} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !strings.Contains(string(data), want) {
			t.Errorf("%s = %q, want it to contain %q", name, data, want)
		}
	}
}

func TestLevelThreshold(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, "error")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	l.Info("should be dropped")

	data, _ := os.ReadFile(filepath.Join(dir, "info.log"))
	if len(data) != 0 {
		t.Errorf("info.log should be empty at error level, got %q", data)
	}
}

func TestWith_AddsField(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf).With("session", "abc123")

	l.Info("cycle done")

	out := buf.String()
	if !strings.Contains(out, `"session":"abc123"`) || !strings.Contains(out, "cycle done") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestCleanLogs(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, "info")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	l.Warning("one")

	if err := l.CleanLogs("warning.log"); err != nil {
		t.Fatalf("CleanLogs failed: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "warning.log"))
	if len(data) != 0 {
		t.Errorf("warning.log should be empty, got %q", data)
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("nothing")
	l.With("k", "v").Error("still nothing")
	if err := l.CleanLogs("info.log"); err != nil {
		t.Errorf("CleanLogs on Nop should be a no-op, got %v", err)
	}
}
