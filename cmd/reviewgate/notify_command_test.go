package main

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"reviewgate/internal/testsupport"
)

func TestTestNotifyRequiresTopic(t *testing.T) {
	t.Setenv("REVIEWGATE_MAILBOX_DIR", "")
	t.Setenv("REVIEWGATE_NTFY_TOPIC", "")
	cfg := testsupport.NewConfig(t)
	configPath := writeConfigFile(t, cfg)
	if _, _, err := runCLI(t, []string{"test-notify"}, "", configPath); err == nil {
		t.Fatal("expected error without a topic")
	}
}

func TestTestNotifySends(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Title") == "reviewgate - Test" {
			calls.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	t.Setenv("REVIEWGATE_MAILBOX_DIR", "")
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	configPath := writeConfigFile(t, cfg)

	out, _, err := runCLI(t, []string{"test-notify"}, "", configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	if calls.Load() != 1 {
		t.Fatalf("expected one delivery, got %d", calls.Load())
	}
}
