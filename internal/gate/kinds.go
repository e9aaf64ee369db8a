package gate

import (
	"fmt"
	"strings"
	"time"

	"reviewgate/internal/config"
)

// Kind tags a request and selects its default timeout.
type Kind string

const (
	KindChat    Kind = "chat"
	KindQuick   Kind = "quick"
	KindFile    Kind = "file"
	KindIngest  Kind = "ingest"
	KindConfirm Kind = "confirm"
)

// Kinds lists every request kind in display order.
var Kinds = []Kind{KindChat, KindQuick, KindFile, KindIngest, KindConfirm}

// toolNames are the frontend popup modes each kind opens.
var toolNames = map[Kind]string{
	KindChat:    "review_gate_chat",
	KindQuick:   "quick_review",
	KindFile:    "file_review",
	KindIngest:  "ingest_text",
	KindConfirm: "shutdown_mcp",
}

// ParseKind accepts a kind name case-insensitively.
func ParseKind(value string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := toolNames[k]; !ok {
		return "", fmt.Errorf("unknown request kind %q", value)
	}
	return k, nil
}

// Tool returns the frontend tool name carried in the trigger payload.
func (k Kind) Tool() string { return toolNames[k] }

// Timeout returns the configured response deadline for k.
func (k Kind) Timeout(cfg *config.Config) time.Duration {
	seconds := cfg.Timeouts.Chat
	switch k {
	case KindQuick:
		seconds = cfg.Timeouts.Quick
	case KindFile:
		seconds = cfg.Timeouts.File
	case KindIngest:
		seconds = cfg.Timeouts.Ingest
	case KindConfirm:
		seconds = cfg.Timeouts.Confirm
	}
	return time.Duration(seconds) * time.Second
}
