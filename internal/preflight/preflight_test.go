package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"reviewgate/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDirectoryAccess_Empty(t *testing.T) {
	if result := CheckDirectoryAccess("test", ""); result.Passed {
		t.Fatal("expected failure for empty path")
	}
}

func TestRunAllReportsMailboxFailure(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.MailboxDir = filepath.Join(base, "missing")
	cfg.Paths.LogDir = base

	results := RunAll(&cfg)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	failed, ok := Failed(results, MailboxDirectory)
	if !ok {
		t.Fatal("expected mailbox directory failure")
	}
	if failed.Detail == "" {
		t.Fatal("expected failure detail")
	}
	if _, ok := Failed(results, LogDirectory); ok {
		t.Fatal("log directory should pass")
	}
}

func TestRunAllNilConfig(t *testing.T) {
	if results := RunAll(nil); results != nil {
		t.Fatalf("expected nil, got %#v", results)
	}
}
