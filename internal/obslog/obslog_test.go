package obslog

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/park285/cheese-arena/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel, " WARN ": zapcore.WarnLevel, "warning": zapcore.WarnLevel,
		"error": zapcore.ErrorLevel, "": zapcore.InfoLevel, "verbose": zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestBuild_JSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := build(config.LogConfig{Level: "warn", Format: "json", Console: true}, &buf)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	l.Info("room_create", zap.String("room_id", "R1"))
	l.Warn("room_archive_error", zap.String("room_id", "R1"))
	_ = l.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected only the warn entry, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["msg"] != "room_archive_error" || entry["room_id"] != "R1" || entry["level"] != "warn" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestBuild_LegacySeparator(t *testing.T) {
	var buf bytes.Buffer
	l, err := build(config.LogConfig{Level: "info", Format: "legacy", Console: true}, &buf)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	l.Info("room_move")
	_ = l.Sync()
	if !strings.Contains(buf.String(), " | INFO | ") {
		t.Fatalf("expected legacy separators, got %q", buf.String())
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "arena.log")
	l, err := New(config.LogConfig{Level: "info", Format: "console", ToFile: true, File: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("room_join")
	_ = l.Sync()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), "room_join") {
		t.Fatalf("log file missing entry: %q", b)
	}
}

func TestNew_NoSinks(t *testing.T) {
	l, err := New(config.LogConfig{})
	if err != nil || l == nil {
		t.Fatalf("expected nop logger, got %v err=%v", l, err)
	}
}
