package logging_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raysh454/secboard/internal/logging"
)

func TestNew_WritesJSONLinesToFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "logs", "secboard.log")

	l, err := logging.New(logging.Config{Level: "debug", File: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	l.With(logging.Field{Key: "component", Value: "test"}).
		Info("scan started", logging.Field{Key: "domain", Value: "example.com"})
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := strings.TrimSpace(string(data))
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, line)
	}
	if entry["msg"] != "scan started" {
		t.Errorf("expected msg 'scan started', got %v", entry["msg"])
	}
	if entry["domain"] != "example.com" {
		t.Errorf("expected domain field, got %v", entry["domain"])
	}
	if entry["component"] != "test" {
		t.Errorf("expected component field from With, got %v", entry["component"])
	}
}

func TestNew_LevelFiltersDebug(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "secboard.log")

	l, err := logging.New(logging.Config{Level: "warn", Format: "text", File: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Debug("hidden")
	l.Info("hidden too")
	l.Warn("visible")
	_ = l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(data), "hidden") {
		t.Errorf("expected debug/info to be filtered, got %q", data)
	}
	if !strings.Contains(string(data), "visible") {
		t.Errorf("expected warn line, got %q", data)
	}
}

func TestNewStdoutLogger_ImplementsLogger(t *testing.T) {
	t.Parallel()
	var _ logging.Logger = logging.NewStdoutLogger("x")
}
