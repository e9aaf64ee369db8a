package gate

import (
	"testing"
	"time"

	"reviewgate/internal/config"
)

func TestParseKind(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Kind
	}{
		{"chat", KindChat},
		{" Quick ", KindQuick},
		{"CONFIRM", KindConfirm},
	} {
		got, err := ParseKind(tc.in)
		if err != nil || got != tc.want {
			t.Fatalf("ParseKind(%q) = %q, %v", tc.in, got, err)
		}
	}
	if _, err := ParseKind("review"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestKindTimeoutAndTool(t *testing.T) {
	cfg := config.Default()
	if got := KindConfirm.Timeout(&cfg); got != time.Duration(cfg.Timeouts.Confirm)*time.Second {
		t.Fatalf("unexpected confirm timeout %s", got)
	}
	if got := KindIngest.Timeout(&cfg); got != time.Duration(cfg.Timeouts.Ingest)*time.Second {
		t.Fatalf("unexpected ingest timeout %s", got)
	}
	if KindConfirm.Tool() != "shutdown_mcp" || KindChat.Tool() != "review_gate_chat" {
		t.Fatal("unexpected tool names")
	}
	if len(Kinds) != len(toolNames) {
		t.Fatal("every kind needs a tool name")
	}
}

func TestIsConfirmation(t *testing.T) {
	cfg := config.Default()
	s := &Service{cfg: &cfg}
	for _, reply := range []string{"CONFIRM", "yes", " y ", "Proceed"} {
		if !s.isConfirmation(reply) {
			t.Fatalf("%q should confirm", reply)
		}
	}
	for _, reply := range []string{"", "no", "confirm please"} {
		if s.isConfirmation(reply) {
			t.Fatalf("%q should not confirm", reply)
		}
	}
}
