package obslog

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewJSONConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Format: "json", ToConsole: true, Console: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("hello", zap.String("k", "v"))
	_ = logger.Sync()

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected json line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "hello" || entry["k"] != "v" || entry["level"] != "debug" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestLevelFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: "console", ToConsole: true, Console: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("dropped")
	logger.Warn("kept")
	_ = logger.Sync()
	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, "kept") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFileSinkCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.log")
	logger, err := New(Options{Level: "info", Format: "legacy", ToFile: true, File: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("to file")
	_ = logger.Sync()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), "to file") || !strings.Contains(string(raw), " | ") {
		t.Fatalf("unexpected legacy line: %q", raw)
	}
}

func TestSetNilFallsBackToNop(t *testing.T) {
	prev := L()
	t.Cleanup(func() { Set(prev) })
	Set(nil)
	if L() == nil {
		t.Fatalf("expected non-nil logger")
	}
}
