package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"none", LevelNone},
		{"bogus", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "pipali.log")

	l, err := New(LevelInfo, path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	l.Info("hello %s", "world")
	l.Debug("should be filtered")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "hello world") {
		t.Errorf("expected log line, got %q", out)
	}
	if strings.Contains(out, "should be filtered") {
		t.Errorf("debug line should have been filtered at info level")
	}
}

func TestLoggerLevelNone(t *testing.T) {
	l, err := New(LevelNone, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !l.disabled {
		t.Error("expected logger with empty path to be disabled")
	}
	// Must not panic.
	l.Error("dropped")
}

func TestSetLevel(t *testing.T) {
	l, _ := New(LevelNone, "")
	l.SetLevel(LevelError)
	if l.GetLevel() != LevelError {
		t.Errorf("expected LevelError, got %v", l.GetLevel())
	}
}
