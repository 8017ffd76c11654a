package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewManager_Defaults(t *testing.T) {
	var buf bytes.Buffer
	mgr, logger := NewManagerWithWriter(DefaultConfig(), &buf)
	defer mgr.Close() //nolint:errcheck

	logger.Info("ready", slog.String("component", "test"))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "ready" || rec["component"] != "test" {
		t.Errorf("unexpected record: %v", rec)
	}
	if mgr.Level() != slog.LevelInfo {
		t.Errorf("level = %v, want info", mgr.Level())
	}
}

func TestManager_LevelChangeReachesDerivedLoggers(t *testing.T) {
	var buf bytes.Buffer
	mgr, logger := NewManagerWithWriter(Config{Level: "info", Format: "json"}, &buf)
	defer mgr.Close() //nolint:errcheck

	derived := logger.With(slog.String("component", "matcher"))
	if derived.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be disabled at info")
	}

	mgr.Reconfigure(Config{Level: "debug", Format: "json"})
	if !derived.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be enabled after reconfigure")
	}

	mgr.Reconfigure(Config{Level: "error", Format: "json"})
	if derived.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be disabled at error")
	}
}

func TestManager_FormatSwapKeepsAttrs(t *testing.T) {
	var buf bytes.Buffer
	mgr, logger := NewManagerWithWriter(Config{Level: "info", Format: "json"}, &buf)
	defer mgr.Close() //nolint:errcheck

	derived := logger.With(slog.String("provider", "itunes")).WithGroup("req")
	mgr.Reconfigure(Config{Level: "info", Format: "text"})
	derived.Info("search", slog.String("term", "Scum"))

	out := buf.String()
	if strings.HasPrefix(out, "{") {
		t.Fatalf("expected text output after swap, got %q", out)
	}
	for _, want := range []string{"provider=itunes", "req.term=Scum"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestManager_FileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "loudcat.log")
	cfg := Config{
		Level:  "info",
		Format: "json",
		File:   FileConfig{Path: logFile, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1},
	}
	var console bytes.Buffer
	mgr, logger := NewManagerWithWriter(cfg, &console)

	logger.Info("hello from test")

	if err := mgr.Close(); err != nil {
		t.Fatalf("closing manager: %v", err)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !bytes.Contains(data, []byte("hello from test")) {
		t.Errorf("log file missing record: %q", data)
	}
	if console.Len() == 0 {
		t.Error("expected console output alongside the file")
	}
}

func TestManager_CloseIdempotent(t *testing.T) {
	mgr, _ := NewManagerWithWriter(DefaultConfig(), &bytes.Buffer{})
	if err := mgr.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := mgr.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"", slog.LevelInfo, false},
		{"trace", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseLevel(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestValidFormat(t *testing.T) {
	if !ValidFormat("text") || !ValidFormat("JSON") {
		t.Error("text and json should be valid")
	}
	if ValidFormat("xml") || ValidFormat("") {
		t.Error("xml and empty should be invalid")
	}
}
