package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSessionHandlerStampsIdentity(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newSessionHandler(slog.NewJSONHandler(&buf, nil), "sess-1", 4242))
	logger.Info("emitted")

	out := buf.String()
	if !strings.Contains(out, `"session_id":"sess-1"`) {
		t.Fatalf("missing session_id: %s", out)
	}
	if !strings.Contains(out, `"pid":4242`) {
		t.Fatalf("missing pid: %s", out)
	}
}

func TestSessionHandlerOmitsZeroPID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newSessionHandler(slog.NewJSONHandler(&buf, nil), "sess-2", 0)).With("kind", "chat")
	logger.Info("emitted")

	out := buf.String()
	if strings.Contains(out, `"pid"`) {
		t.Fatalf("unexpected pid attr: %s", out)
	}
	if !strings.Contains(out, `"kind":"chat"`) {
		t.Fatalf("expected With attrs preserved: %s", out)
	}
}

func TestSessionHandlerNilBase(t *testing.T) {
	if _, ok := newSessionHandler(nil, "x", 1).(nopHandler); !ok {
		t.Fatal("expected a discarding handler for nil base")
	}
}
