package services_test

import (
	"errors"
	"strings"
	"testing"

	"reviewgate/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "whisperx", "run", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"whisperx", "run", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestHint(t *testing.T) {
	if hint := services.Hint(nil); hint != "" {
		t.Fatalf("nil error hint = %q", hint)
	}
	if hint := services.Hint(errors.New("plain")); hint != "" {
		t.Fatalf("unmarked error hint = %q", hint)
	}
	timeout := services.Wrap(services.ErrTimeout, "whisperx", "run", "deadline exceeded", nil)
	if hint := services.Hint(timeout); !strings.Contains(hint, "transcribe_timeout_seconds") {
		t.Fatalf("timeout hint = %q", hint)
	}
	config := services.Wrap(services.ErrConfiguration, "whisperx", "run", "uvx missing", nil)
	if hint := services.Hint(config); !strings.Contains(hint, "uvx") {
		t.Fatalf("configuration hint = %q", hint)
	}
}
