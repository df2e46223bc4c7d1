package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedErrors(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := c.Error("not_found", ErrorData{Room: "R1"})
	if got != "Room R1 does not exist." {
		t.Fatalf("unexpected text: %q", got)
	}
	got = c.Error("illegal_move", ErrorData{Room: "R1", Detail: "e2e5"})
	if !strings.Contains(got, "e2e5") {
		t.Fatalf("detail missing: %q", got)
	}
	if got := c.Error("unknown_action", ErrorData{Action: "dance"}); !strings.Contains(got, `"dance"`) {
		t.Fatalf("action missing: %q", got)
	}
	if got := c.Error("no_such_kind", ErrorData{}); got != "no_such_kind" {
		t.Fatalf("expected kind fallback, got %q", got)
	}
}

func TestEveryKindHasText(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	kinds := []string{
		"already_exists", "not_found", "room_full", "room_busy", "not_a_player", "game_ended",
		"not_active", "not_your_turn", "no_move", "illegal_move", "invalid_parameters",
		"malformed_message", "unknown_action", "conflict", "dependency_unavailable",
	}
	for _, k := range kinds {
		if _, err := c.Render("errors."+k, ErrorData{Room: "R", Detail: "d", Action: "a"}); err != nil {
			t.Fatalf("errors.%s: %v", k, err)
		}
	}
}

func TestRenderMissingKey(t *testing.T) {
	c, _ := New("")
	if _, err := c.Render("errors.not_found", map[string]any{}); err == nil {
		t.Fatalf("expected missingkey error")
	}
	if _, err := c.Render("nope", nil); err == nil {
		t.Fatalf("expected template not found")
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("a.yaml", "errors:\n  not_your_turn: \"Wait for {{.Room}}.\"\n")
	write("ignored.txt", "errors: {not_found: x}\n")
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Error("not_your_turn", ErrorData{Room: "R9"}); got != "Wait for R9." {
		t.Fatalf("override not applied: %q", got)
	}
	if got := c.Error("not_found", ErrorData{Room: "R9"}); got != "Room R9 does not exist." {
		t.Fatalf("non-yaml file applied: %q", got)
	}

	write("b.yml", "errors:\n  not_your_turn: again\n")
	if _, err := New(dir); err == nil || !strings.Contains(err.Error(), "duplicate override key") {
		t.Fatalf("expected duplicate key error, got %v", err)
	}
}

func TestRejectsNonStringLeaves(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("errors:\n  not_found: 3\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected error for numeric leaf")
	}
}
