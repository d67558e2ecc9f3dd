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
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"invalid", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !test.hasError && level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	for _, lvl := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		parsed, err := ParseLevel(LevelString(lvl))
		if err != nil || parsed != lvl {
			t.Errorf("LevelString(%v) did not round-trip: %v %v", lvl, parsed, err)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("json: got %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("empty: got %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("expected default level Info, got %v", cfg.Level)
	}
	if cfg.Output != "stderr" {
		t.Errorf("expected default output stderr, got %s", cfg.Output)
	}
	if cfg.Component != "keytrail" {
		t.Errorf("expected component keytrail, got %s", cfg.Component)
	}
	if !strings.Contains(cfg.FilePath, "keytrail") {
		t.Errorf("default file path should mention keytrail: %s", cfg.FilePath)
	}
}

func TestShouldRedact(t *testing.T) {
	tests := []struct {
		key      string
		expected bool
	}{
		{"passphrase", true},
		{"cipher_passphrase", true},
		{"SALT", true},
		{"secret", true},
		{"token", true},
		{"session_id", false},
		{"room", false},
		{"key_id", false},
		{"path", false},
	}

	for _, test := range tests {
		t.Run(test.key, func(t *testing.T) {
			if got := shouldRedact(test.key); got != test.expected {
				t.Errorf("shouldRedact(%q) = %v, expected %v", test.key, got, test.expected)
			}
		})
	}
}

func TestJSONOutputWithSessionAndRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{
		Level:     LevelInfo,
		Format:    FormatJSON,
		Component: "test",
		Writer:    &buf,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := ContextWithSessionID(context.Background(), "sess-1")
	logger.WithContext(ctx).Info("opened", "passphrase", "hunter2", "room", "R1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if entry["session_id"] != "sess-1" {
		t.Errorf("session_id = %v", entry["session_id"])
	}
	if entry["passphrase"] != "[REDACTED]" {
		t.Errorf("passphrase not redacted: %v", entry["passphrase"])
	}
	if entry["room"] != "R1" {
		t.Errorf("room = %v", entry["room"])
	}
	if entry["component"] != "test" {
		t.Errorf("component = %v", entry["component"])
	}
}

func TestSetLevelAffectsChildren(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Level: LevelWarn, Format: FormatText, Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	child := logger.WithComponent("recorder")

	child.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %q", buf.String())
	}

	logger.SetLevel(LevelDebug)
	child.Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("debug not logged after SetLevel: %q", buf.String())
	}
}

func TestSetDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger, err := New(&Config{Level: LevelInfo, Writer: &buf, Component: "cli"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	SetDefault(logger)

	if Default() != logger {
		t.Error("Default did not return the installed logger")
	}
	slog.Info("via slog")
	if !strings.Contains(buf.String(), "via slog") || !strings.Contains(buf.String(), "component=cli") {
		t.Errorf("slog default not replaced: %q", buf.String())
	}
}

func TestSessionIDFromContext(t *testing.T) {
	if got := SessionIDFromContext(nil); got != "" {
		t.Errorf("nil ctx: %q", got)
	}
	if got := SessionIDFromContext(context.Background()); got != "" {
		t.Errorf("empty ctx: %q", got)
	}
	ctx := ContextWithSessionID(context.Background(), "abc")
	if got := SessionIDFromContext(ctx); got != "abc" {
		t.Errorf("got %q", got)
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "keytrail.log")

	cfg := DefaultConfig()
	cfg.Output = "file"
	cfg.FilePath = path
	cfg.Compress = false

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hello", "n", 1)
	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "msg=hello") {
		t.Errorf("log file missing entry: %q", data)
	}
}

func TestFileRotatorRotatesOnDayChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	rotator, err := NewFileRotator(&Config{
		FilePath:   path,
		MaxSize:    1,
		MaxAge:     7,
		MaxBackups: 3,
	})
	if err != nil {
		t.Fatalf("NewFileRotator: %v", err)
	}
	defer rotator.Close()

	if _, err := rotator.Write([]byte("day one\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	tomorrow := time.Now().Add(24 * time.Hour)
	rotator.now = func() time.Time { return tomorrow }

	if _, err := rotator.Write([]byte("day two\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	rotated, err := rotator.rotatedFiles()
	if err != nil {
		t.Fatalf("rotatedFiles: %v", err)
	}
	if len(rotated) != 1 {
		t.Fatalf("expected 1 rotated file, got %v", rotated)
	}

	current, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(current) != "day two\n" {
		t.Errorf("active file = %q", current)
	}
}
