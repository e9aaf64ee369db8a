package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"reviewgate/internal/ipc"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Daemon:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	deps := []ipc.DependencyStatus{
		{Name: "uvx", Available: false},
		{Name: "uvx-optional", Available: false, Optional: true, Detail: "binary \"uvx\" not found"},
		{Name: "present", Available: true, Command: "uvx"},
		{Name: "resolved", Available: true, Command: "uvx", Resolved: "/usr/local/bin/uvx"},
	}
	lines := dependencyLines(deps, false)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[ERROR] not available") {
		t.Fatalf("expected error detail in first line, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "[WARN] binary") {
		t.Fatalf("expected warn detail in second line, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "[OK] Ready (command: uvx)") {
		t.Fatalf("expected ready detail in third line, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "[OK] Ready (/usr/local/bin/uvx)") {
		t.Fatalf("expected resolved path in fourth line, got %q", lines[3])
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestBuildStatsRowsSorted(t *testing.T) {
	rows := buildStatsRows(map[string]int{"timed_out": 2, "fulfilled": 5})
	if len(rows) != 2 || rows[0][0] != "fulfilled" || rows[1][1] != "2" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestClip(t *testing.T) {
	if got := clip("first line\nsecond", 48); got != "first line" {
		t.Fatalf("expected first line only, got %q", got)
	}
	if got := clip(strings.Repeat("x", 60), 10); got != "xxxxxxx..." {
		t.Fatalf("unexpected clip %q", got)
	}
}

func TestPathLines(t *testing.T) {
	lines := pathLines([]ipc.PathCheck{
		{Name: "Mailbox directory", Passed: true, Detail: "/tmp/m (read/write ok)"},
		{Name: "Log directory", Detail: "/tmp/l (error: does not exist)"},
	}, false)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[OK] /tmp/m") {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if !strings.Contains(lines[1], "[ERROR] /tmp/l") {
		t.Fatalf("unexpected second line %q", lines[1])
	}
}
